package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"NewsAgent/internal/domain"
	"NewsAgent/internal/ports"
)

var itemColumns = []string{
	"id", "title", "url", "source", "published_at", "description",
	"summary", "content_hash", "created_at", "updated_at",
}

// publishedNullsLast orders unknown publication dates after known ones on every driver.
const publishedNullsLast = "CASE WHEN published_at IS NULL THEN 1 ELSE 0 END"

// Repository persists papers, news and articles. Every write runs in its own
// short transaction.
type Repository struct {
	db      *sqlx.DB
	dialect dialect
	now     func() time.Time
}

var _ ports.ItemRepository = (*Repository)(nil)

// NewRepository wires a sqlx.DB opened by Open (or any postgres/sqlite handle).
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db:      db,
		dialect: dialectFor(db.DriverName()),
		now:     time.Now,
	}
}

func (r *Repository) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(r.dialect.placeholder)
}

// FindByURL returns domain.ErrNotFound when no row carries url.
func (r *Repository) FindByURL(ctx context.Context, kind domain.Kind, url string) (domain.Item, error) {
	query, args, err := r.builder().
		Select(itemColumns...).
		From(kind.Table()).
		Where(sq.Eq{"url": url}).
		Limit(1).
		ToSql()
	if err != nil {
		return domain.Item{}, fmt.Errorf("build find query: %w", err)
	}

	var item domain.Item
	if err := r.db.GetContext(ctx, &item, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, domain.ErrNotFound
		}
		return domain.Item{}, fmt.Errorf("find %s by url: %w", kind, err)
	}
	return item, nil
}

// Insert stores a new row and returns it with id and bookkeeping timestamps set.
func (r *Repository) Insert(ctx context.Context, kind domain.Kind, item domain.Item) (domain.Item, error) {
	now := domain.NormalizeTime(r.now())
	item.CreatedAt = now
	item.UpdatedAt = now

	query, args, err := r.builder().
		Insert(kind.Table()).
		Columns("title", "url", "source", "published_at", "description", "summary", "content_hash", "created_at", "updated_at").
		Values(item.Title, item.URL, item.Source, nullTime(item.PublishedAt), nullString(item.Description),
			nullString(item.Summary), item.ContentHash, item.CreatedAt, item.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return domain.Item{}, fmt.Errorf("build insert: %w", err)
	}

	err = r.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, query, args...).Scan(&item.ID)
	})
	if err != nil {
		return domain.Item{}, fmt.Errorf("insert %s %s: %w", kind, item.URL, err)
	}
	return item, nil
}

// Update refreshes the ingest-owned fields of an existing row. Summary is not written.
func (r *Repository) Update(ctx context.Context, kind domain.Kind, item domain.Item) error {
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = domain.NormalizeTime(r.now())
	}

	query, args, err := r.builder().
		Update(kind.Table()).
		Set("title", item.Title).
		Set("description", nullString(item.Description)).
		Set("published_at", nullTime(item.PublishedAt)).
		Set("content_hash", item.ContentHash).
		Set("updated_at", item.UpdatedAt).
		Where(sq.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update %s %d: %w", kind, item.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// ListUnsummarized returns the summarization queue: newest publication first with
// unknown dates last, then newest created first.
func (r *Repository) ListUnsummarized(ctx context.Context, kind domain.Kind, limit int) ([]domain.Item, error) {
	qb := r.builder().
		Select(itemColumns...).
		From(kind.Table()).
		Where(sq.Eq{"summary": nil}).
		OrderBy(publishedNullsLast, "published_at DESC", "created_at DESC", "id DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build queue query: %w", err)
	}

	items := []domain.Item{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list unsummarized %s: %w", kind, err)
	}
	return items, nil
}

// SetSummary writes summary only when the row has none yet; it reports whether a
// row was changed.
func (r *Repository) SetSummary(ctx context.Context, kind domain.Kind, id int64, summary string) (bool, error) {
	query, args, err := r.builder().
		Update(kind.Table()).
		Set("summary", summary).
		Where(sq.Eq{"id": id, "summary": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build summary update: %w", err)
	}

	var changed bool
	err = r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		changed = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("set summary %s %d: %w", kind, id, err)
	}
	return changed, nil
}

// List applies filter and orders by publication date, newest first.
func (r *Repository) List(ctx context.Context, kind domain.Kind, filter domain.ListFilter) ([]domain.Item, error) {
	qb := r.builder().
		Select(itemColumns...).
		From(kind.Table()).
		OrderBy(publishedNullsLast, "published_at DESC", "created_at DESC", "id DESC")

	if filter.Source != "" {
		qb = qb.Where(sq.Eq{"source": filter.Source})
	}
	if filter.Title != "" {
		qb = qb.Where(sq.Expr(containsClause("title"), containsPattern(filter.Title)))
	}
	if filter.URL != "" {
		qb = qb.Where(sq.Expr(containsClause("url"), containsPattern(filter.URL)))
	}
	if filter.OnlySummarized {
		qb = qb.Where(sq.NotEq{"summary": nil})
	}
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	items := []domain.Item{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return items, nil
}

// Sources lists distinct source labels alphabetically.
func (r *Repository) Sources(ctx context.Context, kind domain.Kind) ([]string, error) {
	query, args, err := r.builder().
		Select("DISTINCT source").
		From(kind.Table()).
		OrderBy("source").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sources query: %w", err)
	}

	sources := []string{}
	if err := r.db.SelectContext(ctx, &sources, query, args...); err != nil {
		return nil, fmt.Errorf("list %s sources: %w", kind, err)
	}
	return sources, nil
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsClause folds both sides in SQL so column and pattern share the
// driver's notion of case.
func containsClause(column string) string {
	return "LOWER(" + column + `) LIKE LOWER(?) ESCAPE '\'`
}

func containsPattern(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}
