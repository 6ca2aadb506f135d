package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openparl/hansardsearch/internal/profile"
	"github.com/openparl/hansardsearch/server/ai"
	"github.com/openparl/hansardsearch/server/ingest"
	"github.com/openparl/hansardsearch/server/migration"
	"github.com/openparl/hansardsearch/server/search"
	"github.com/openparl/hansardsearch/store"
	"github.com/openparl/hansardsearch/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "hansardsearch",
		Short: "Ingest and search parliamentary speeches",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogger()
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Copy legacy passages into the normalized layout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			engine := migration.NewEngine(s)
			report, runErr := engine.Run(ctx, &migration.Options{
				Mode:       migration.Mode(viper.GetString("migrate.mode")),
				BatchSize:  viper.GetInt("migrate.batch-size"),
				SampleSize: viper.GetInt("migrate.sample-size"),
			})
			if report != nil {
				printJSON(report)
			}
			return runErr
		},
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print document and passage counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.Stats(ctx)
			if err != nil {
				return err
			}
			printJSON(stats)
			return nil
		},
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest speeches from a JSON file",
		Long:  "Reads a JSON array of speeches and ingests each one. Duplicate speeches are reported and skipped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, s, err := openStoreWithProfile(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			embedder, err := ai.NewProvider(ai.ConfigFromProfile(p))
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var inputs []*ingest.Input
			if err := json.Unmarshal(data, &inputs); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			ingestor := ingest.New(s, ai.NewCachedEmbedder(embedder), p)
			for _, input := range inputs {
				result, err := ingestor.Ingest(ctx, input)
				if err != nil {
					return err
				}
				printJSON(result)
			}
			return nil
		},
	}

	searchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Search passages by semantic similarity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, s, err := openStoreWithProfile(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			embedder, err := ai.NewProvider(ai.ConfigFromProfile(p))
			if err != nil {
				return err
			}

			cached := ai.NewCachedEmbedder(embedder)
			req := &search.Request{
				Query:   args[0],
				Limit:   viper.GetInt("search.limit"),
				Filters: searchFilters(),
			}
			hits, err := search.New(s, cached, p).Search(ctx, req)
			if err != nil {
				return err
			}
			printJSON(hits)
			return nil
		},
	}
)

func init() {
	viper.SetEnvPrefix("hansard")
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("mode", "dev", `mode of the service, can be "dev" or "prod"`)
	rootCmd.PersistentFlags().String("data", "", "data directory for sqlite")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, can be "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")
	rootCmd.PersistentFlags().String("backend", "legacy", `passage storage layout, can be "legacy" or "normalized"`)
	_ = viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode"))
	_ = viper.BindPFlag("data", rootCmd.PersistentFlags().Lookup("data"))
	_ = viper.BindPFlag("driver", rootCmd.PersistentFlags().Lookup("driver"))
	_ = viper.BindPFlag("dsn", rootCmd.PersistentFlags().Lookup("dsn"))
	_ = viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))

	migrateCmd.Flags().String("mode", string(migration.ModeDryRun), `migration mode, can be "dry_run" or "execute"`)
	migrateCmd.Flags().Int("batch-size", 0, "passages copied per batch, 0 for the default")
	migrateCmd.Flags().Int("sample-size", 0, "passages spot-checked after copying, 0 for the default")
	_ = viper.BindPFlag("migrate.mode", migrateCmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("migrate.batch-size", migrateCmd.Flags().Lookup("batch-size"))
	_ = viper.BindPFlag("migrate.sample-size", migrateCmd.Flags().Lookup("sample-size"))

	searchCmd.Flags().Int("limit", 0, "maximum number of hits, 0 for the default")
	searchCmd.Flags().String("party", "", "filter by party")
	searchCmd.Flags().String("chamber", "", "filter by chamber")
	searchCmd.Flags().String("speaker", "", "filter by speaker")
	searchCmd.Flags().String("date-start", "", "earliest sitting date, inclusive (YYYY-MM-DD)")
	searchCmd.Flags().String("date-end", "", "latest sitting date, inclusive (YYYY-MM-DD)")
	_ = viper.BindPFlag("search.limit", searchCmd.Flags().Lookup("limit"))
	_ = viper.BindPFlag("search.party", searchCmd.Flags().Lookup("party"))
	_ = viper.BindPFlag("search.chamber", searchCmd.Flags().Lookup("chamber"))
	_ = viper.BindPFlag("search.speaker", searchCmd.Flags().Lookup("speaker"))
	_ = viper.BindPFlag("search.date-start", searchCmd.Flags().Lookup("date-start"))
	_ = viper.BindPFlag("search.date-end", searchCmd.Flags().Lookup("date-end"))

	rootCmd.AddCommand(migrateCmd, statsCmd, ingestCmd, searchCmd)
}

func loadProfile() (*profile.Profile, error) {
	p := profile.New()
	if v := viper.GetString("mode"); v != "" {
		p.Mode = v
	}
	if v := viper.GetString("data"); v != "" {
		p.Data = v
	}
	if v := viper.GetString("dsn"); v != "" {
		p.DSN = v
	}
	if v := viper.GetString("driver"); v != "" {
		p.Driver = v
	}
	if v := viper.GetString("backend"); v != "" {
		p.Backend = profile.Backend(v)
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func openStoreWithProfile(ctx context.Context) (*profile.Profile, *store.Store, error) {
	p, err := loadProfile()
	if err != nil {
		return nil, nil, err
	}
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, nil, err
	}
	s := store.New(driver, p)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return p, s, nil
}

func openStore(ctx context.Context) (*store.Store, error) {
	_, s, err := openStoreWithProfile(ctx)
	return s, err
}

func searchFilters() store.SearchFilters {
	filters := store.SearchFilters{}
	if v := viper.GetString("search.party"); v != "" {
		filters.Party = &v
	}
	if v := viper.GetString("search.chamber"); v != "" {
		filters.Chamber = &v
	}
	if v := viper.GetString("search.speaker"); v != "" {
		filters.Speaker = &v
	}
	if v := viper.GetString("search.date-start"); v != "" {
		filters.DateStart = &v
	}
	if v := viper.GetString("search.date-end"); v != "" {
		filters.DateEnd = &v
	}
	return filters
}

func setupLogger() {
	level := slog.LevelInfo
	if viper.GetString("mode") != "prod" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
