package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnknownKind is returned when a kind string cannot be resolved.
	ErrUnknownKind = errors.New("unknown item kind")
)

// Kind tags which table an item lives in.
type Kind string

const (
	KindPaper   Kind = "paper"
	KindNews    Kind = "news"
	KindArticle Kind = "article"
)

// Kinds lists every supported kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindPaper, KindNews, KindArticle}
}

// ParseKind resolves singular or plural forms ("paper", "papers").
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "paper", "papers":
		return KindPaper, nil
	case "news":
		return KindNews, nil
	case "article", "articles":
		return KindArticle, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
}

// Table is the relational table backing the kind.
func (k Kind) Table() string {
	switch k {
	case KindPaper:
		return "papers"
	case KindNews:
		return "news"
	default:
		return "articles"
	}
}

// Plural is used for route prefixes.
func (k Kind) Plural() string {
	return k.Table()
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindPaper, KindNews, KindArticle:
		return true
	}
	return false
}

// Item is a persisted paper, news item or article.
type Item struct {
	ID          int64      `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	URL         string     `db:"url" json:"url"`
	Source      string     `db:"source" json:"source"`
	PublishedAt *time.Time `db:"published_at" json:"published_at"`
	Description *string    `db:"description" json:"description"`
	Summary     *string    `db:"summary" json:"summary"`
	ContentHash string     `db:"content_hash" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// HasSummary reports whether the summarization pipeline already handled the row.
func (i Item) HasSummary() bool {
	return i.Summary != nil
}

// DescriptionText returns the description or an empty string.
func (i Item) DescriptionText() string {
	if i.Description == nil {
		return ""
	}
	return *i.Description
}

// Entry is the normalized record every fetch adapter produces.
type Entry struct {
	Title       string
	URL         string
	Description string
	PublishedAt *time.Time
	Source      string
}

// ListFilter narrows item listings.
type ListFilter struct {
	Limit          int
	Offset         int
	Source         string
	Title          string
	URL            string
	OnlySummarized bool
}

// NormalizeTime converts t to UTC with whole-second precision so stored values
// compare equal across drivers.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
