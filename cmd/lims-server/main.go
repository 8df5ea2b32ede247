package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lims/lims/internal/config"
	"github.com/lims/lims/internal/domain/billing"
	"github.com/lims/lims/internal/domain/catalog"
	"github.com/lims/lims/internal/platform/db"
	"github.com/lims/lims/internal/platform/kv"
	"github.com/lims/lims/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "lims-server",
		Short: "Clinical laboratory management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(backendCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func storeOptions(cfg *config.Config, backend string) kv.Options {
	if backend == "" {
		backend = cfg.DataBackend
	}
	return kv.Options{
		Backend:     backend,
		BoltPath:    cfg.BoltPath,
		DatabaseURL: cfg.DatabaseURL,
		Schema:      cfg.DBSchema,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the LIMS API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, newLogger(cfg))
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema of the remote backend",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, schema, closeFn, err := openMigrator(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := migrator.Up(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, schema, closeFn, err := openMigrator(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func openMigrator(ctx context.Context) (*db.Migrator, string, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, "", nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, "", nil, err
	}
	return db.NewMigrator(pool, migrations.FS), cfg.DBSchema, pool.Close, nil
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the starter templates and services into the active backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.SeedFile
			}
			seed, err := readSeed(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := newLogger(cfg)
			store, err := kv.Open(ctx, storeOptions(cfg, ""), logger)
			if err != nil {
				return err
			}
			defer store.Close()

			a := newApp(cfg, store, nil, logger)
			rep, err := a.catalog.ApplySeed(ctx, seed, a.templates)
			if err != nil {
				return err
			}
			fmt.Printf("Templates: %d created, %d already present\n", rep.TemplatesCreated, rep.TemplatesSkipped)
			fmt.Printf("Services:  %d created, %d already present\n", rep.ServicesCreated, rep.ServicesSkipped)
			return nil
		},
	}
	cmd.Flags().String("file", "", "YAML seed file (defaults to SEED_FILE, then the built-in catalog)")
	return cmd
}

func readSeed(path string) (*catalog.Seed, error) {
	if path == "" {
		return catalog.DefaultSeed(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return catalog.LoadSeed(f)
}

func purgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete completed (or all) invoices and their results",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, _ := cmd.Flags().GetString("scope")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				return fmt.Errorf("--password is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := newLogger(cfg)
			store, err := kv.Open(ctx, storeOptions(cfg, ""), logger)
			if err != nil {
				return err
			}
			defer store.Close()

			a := newApp(cfg, store, nil, logger)
			n, err := a.billing.Purge(ctx, billing.PurgeScope(scope), password)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d invoice(s).\n", n)
			return nil
		},
	}
	cmd.Flags().String("scope", string(billing.PurgeCompleted), "completed or all")
	cmd.Flags().String("password", "", "Data deletion password")
	return cmd
}

func backendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Inspect and migrate datastore backends",
	}

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Check that a backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("backend")
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := kv.Open(ctx, storeOptions(cfg, name), newLogger(cfg))
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Ping(ctx); err != nil {
				return fmt.Errorf("backend unreachable: %w", err)
			}
			fmt.Println("Backend is reachable.")
			return nil
		},
	}
	testCmd.Flags().String("backend", "", "local or remote (defaults to DATA_BACKEND)")
	cmd.AddCommand(testCmd)

	copyCmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy every record from one backend into another",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			if from == to {
				return fmt.Errorf("--from and --to must differ")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			n, err := copyBackends(cmd.Context(), cfg, from, to, newLogger(cfg))
			if err != nil {
				return err
			}
			fmt.Printf("Copied %d record(s) from %s to %s.\n", n, from, to)
			return nil
		},
	}
	copyCmd.Flags().String("from", kv.BackendLocal, "Source backend")
	copyCmd.Flags().String("to", kv.BackendRemote, "Destination backend")
	cmd.AddCommand(copyCmd)

	return cmd
}

// copyBackends opens both backends concurrently and copies every namespace.
func copyBackends(ctx context.Context, cfg *config.Config, from, to string, logger zerolog.Logger) (int, error) {
	var src, dst kv.Store
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := kv.Open(gctx, storeOptions(cfg, from), logger)
		if err != nil {
			return fmt.Errorf("open %s: %w", from, err)
		}
		src = s
		return nil
	})
	g.Go(func() error {
		s, err := kv.Open(gctx, storeOptions(cfg, to), logger)
		if err != nil {
			return fmt.Errorf("open %s: %w", to, err)
		}
		dst = s
		return nil
	})
	err := g.Wait()
	for _, s := range []kv.Store{src, dst} {
		if s != nil {
			defer s.Close()
		}
	}
	if err != nil {
		return 0, err
	}
	logger.Info().Str("from", from).Str("to", to).Strs("namespaces", namespaces).Msg("copying backend")
	return kv.Copy(ctx, src, dst, namespaces)
}

func parseOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
