package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"twig-cs-formatter/internal/cache"
	"twig-cs-formatter/internal/config"
	"twig-cs-formatter/internal/pipeline"
	"twig-cs-formatter/internal/prettier"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorColor.Sprint(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "twigfmt",
		Short: "Prettier-based formatter for Twig templates",
		Long: `Formats Twig templates with Prettier while keeping comments and short inline
elements intact, then reflows Twig component tags, merge() hashes and path()
parameters into a one-item-per-line layout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(formatCmd())
	rootCmd.AddCommand(lspCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(usagesCmd())

	return rootCmd
}

// loadConfig reads the environment and applies the log level.
func loadConfig() *config.Config {
	cfg := config.Load()
	zerolog.SetGlobalLevel(cfg.LogLevel)
	return cfg
}

// newFormatter builds the formatting pipeline from configuration.
func newFormatter(cfg *config.Config) *pipeline.Formatter {
	return pipeline.New(
		prettier.NewCLIEngine(cfg.PrettierCommand),
		prettier.NewFileResolver(),
		pipeline.Options{
			Plugin: cfg.PrettierPlugin,
			Parser: cfg.PrettierParser,
			Strict: cfg.StrictPlaceholders,
		},
	)
}

// newCachedFormatter wraps the pipeline with a format cache, persisted in
// PostgreSQL when DATABASE_URL is set. The returned cleanup closes the pool.
func newCachedFormatter(ctx context.Context, cfg *config.Config) (pipeline.DocumentFormatter, func(), error) {
	var store cache.Store
	cleanup := func() {}

	if cfg.DatabaseURL != "" {
		pool, err := connectPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		pgStore := cache.NewPGStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure cache schema: %w", err)
		}
		store = pgStore
		cleanup = pool.Close
	} else {
		log.Debug().Msg("DATABASE_URL not set, caching in memory only")
	}

	return cache.NewFormatter(newFormatter(cfg), cache.NewFormatCache(store)), cleanup, nil
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			log.Warn().Msg("Received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	log.Info().Msg("Connected to PostgreSQL")
	return pool, nil
}

func connectNeo4j(ctx context.Context, cfg *config.Config) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		return nil, fmt.Errorf("connect Neo4j: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify Neo4j connectivity: %w", err)
	}
	log.Info().Msg("Connected to Neo4j")
	return driver, nil
}
