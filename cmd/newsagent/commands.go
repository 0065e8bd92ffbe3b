package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"NewsAgent/internal/app"
	"NewsAgent/internal/config"
	"NewsAgent/internal/domain"
	"NewsAgent/internal/logging"
	"NewsAgent/internal/usecase"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "newsagent",
		Short: "AI news ingestion and summarization service",
		Long: `newsagent collects AI papers, news and articles from RSS feeds, arXiv and
Hacker News, summarizes them and serves them over HTTP.

Examples:
  newsagent                         # same as "newsagent serve"
  newsagent fetch --kind news       # one-off fetch, progress on stdout
  newsagent summarize -n 50 -c 4    # fill in missing summaries
  newsagent migrate                 # create tables`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the HTTP API and scheduler", Args: cobra.NoArgs, RunE: runServe},
		newFetchCmd(),
		newSummarizeCmd(),
		&cobra.Command{Use: "migrate", Short: "Create item tables if missing", Args: cobra.NoArgs, RunE: runMigrate},
	)
	return root
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch every configured site once",
		Args:  cobra.NoArgs,
		RunE:  runFetch,
	}
	cmd.Flags().StringSlice("kind", nil, "kinds to fetch: papers, news, articles (default all)")
	cmd.Flags().Int("max-age-days", -1, "drop entries older than this; 0 disables the cutoff (default from config)")
	cmd.Flags().Bool("no-hn", false, "skip Hacker News sites")
	return cmd
}

func newSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize queued items once",
		Args:  cobra.NoArgs,
		RunE:  runSummarize,
	}
	cmd.Flags().StringSlice("kind", nil, "kinds to summarize (default all)")
	cmd.Flags().IntP("limit", "n", usecase.DefaultSummarizeLimit, "maximum rows per kind")
	cmd.Flags().IntP("concurrency", "c", 1, "parallel summarizer calls")
	return cmd
}

// withApp loads configuration, builds the application and runs fn with a
// context cancelled on SIGINT/SIGTERM.
func withApp(fn func(ctx context.Context, a *app.Application) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()
	return fn(ctx, a)
}

func runServe(_ *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app.Application) error {
		return a.Serve(ctx)
	})
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app.Application) error {
		if err := a.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	})
}

func runFetch(cmd *cobra.Command, _ []string) error {
	kinds, err := kindsFlag(cmd)
	if err != nil {
		return err
	}
	maxAge, _ := cmd.Flags().GetInt("max-age-days")
	noHN, _ := cmd.Flags().GetBool("no-hn")

	req := usecase.RefreshRequest{IncludeHN: !noHN, SkipSummarize: true}
	if maxAge >= 0 {
		req.Fetch.MaxAgeDays = &maxAge
	}
	return refresh(cmd.OutOrStdout(), kinds, req)
}

func runSummarize(cmd *cobra.Command, _ []string) error {
	kinds, err := kindsFlag(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if limit < 1 {
		return fmt.Errorf("--limit must be positive")
	}

	req := usecase.RefreshRequest{
		SkipFetch: true,
		Summarize: usecase.SummarizeOptions{Limit: limit, Concurrency: concurrency},
	}
	return refresh(cmd.OutOrStdout(), kinds, req)
}

func refresh(out io.Writer, kinds []domain.Kind, req usecase.RefreshRequest) error {
	return withApp(func(ctx context.Context, a *app.Application) error {
		_, err := a.Refresh(ctx, kinds, req, func(line string) {
			fmt.Fprintln(out, line)
		})
		return err
	})
}

func kindsFlag(cmd *cobra.Command) ([]domain.Kind, error) {
	raw, _ := cmd.Flags().GetStringSlice("kind")
	if len(raw) == 0 {
		return domain.Kinds(), nil
	}
	kinds := make([]domain.Kind, 0, len(raw))
	for _, value := range raw {
		kind, err := domain.ParseKind(value)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
