package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/koba/rowkit/internal/database"
	"github.com/koba/rowkit/internal/diff"
	"github.com/koba/rowkit/internal/generator"
	"github.com/koba/rowkit/internal/introspect"
	"github.com/koba/rowkit/internal/schema"
	"github.com/koba/rowkit/internal/snapshot"
)

var (
	configPath  string
	logLevel    string
	schemaPath  string
	excludes    []string
	allowExtra  bool
	migrateDir  string
	migrateName string
	apply       bool
	tables      []string
	outputDir   string

	logger = zerolog.Nop()
)

// errPending makes check exit non-zero while the database lags the schema.
var errPending = errors.New("database schema differs from the declared schema")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "rowkit",
	Short:             "Schema check, migration and snapshot tool",
	Long:              `Compare a declared schema with a live database, generate migrations, and keep schema snapshots.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogger,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report how the database differs from the declared schema",
	Long:  `Introspect the database, compare it with the declared schema and print the planned operations. Exits non-zero when the plan is not empty.`,
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Generate a migration script",
	Long:  `Plan the operations that bring the database to the declared schema and write them as a versioned migration. With --apply the migration is run first.`,
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [name]",
	Short: "Create a schema snapshot",
	Long:  `Create a snapshot of the current database schema.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSnapshot,
}

var diffCmd = &cobra.Command{
	Use:   "diff <snapshot1> <snapshot2>",
	Short: "Compare two snapshots",
	Long:  `Compare two schema snapshots and display the operations that turn the first into the second.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (environment variables override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $LOG_LEVEL or info)")

	for _, cmd := range []*cobra.Command{checkCmd, migrateCmd} {
		cmd.Flags().StringVar(&schemaPath, "schema", "schema.yaml", "Declared schema file")
		cmd.Flags().StringSliceVar(&excludes, "exclude", nil, "Tables to leave out of the comparison")
	}
	checkCmd.Flags().BoolVar(&allowExtra, "allow-extra", false, "Report tables, columns and indexes missing from the schema instead of planning their removal")

	migrateCmd.Flags().StringVar(&migrateDir, "dir", "./migrations", "Migration directory")
	migrateCmd.Flags().StringVar(&migrateName, "name", "schema_change", "Migration name")
	migrateCmd.Flags().BoolVar(&apply, "apply", false, "Apply the migration before writing it")

	snapshotCmd.Flags().StringSliceVar(&tables, "tables", nil, "Tables to snapshot (default: all tables)")
	snapshotCmd.Flags().StringVar(&outputDir, "output-dir", "./snapshots", "Output directory for snapshots")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(diffCmd)
}

func setupLogger(cmd *cobra.Command, args []string) error {
	name := logLevel
	if name == "" {
		name = os.Getenv("LOG_LEVEL")
	}
	if name == "" {
		name = "info"
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// connect opens the configured database behind a logging connection.
func connect(ctx context.Context) (*database.LoggingConn, database.Config, error) {
	config, err := database.LoadConfig(configPath)
	if err != nil {
		return nil, config, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := database.Open(ctx, config)
	if err != nil {
		return nil, config, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Debug().Str("type", config.Type).Str("database", config.Database).Msg("connected")
	return database.NewLoggingConn(db, logger), config, nil
}

// loadLive reads the declared schema and introspects the database.
func loadLive(ctx context.Context, conn database.Conn, config database.Config) (declared, live *schema.Schema, err error) {
	declared, err = schema.LoadFile(schemaPath)
	if err != nil {
		return nil, nil, err
	}
	live, err = introspect.Introspect(ctx, conn,
		introspect.WithSchema(config.Schema),
		introspect.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to introspect database: %w", err)
	}
	return declared, live, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	conn, config, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	declared, live, err := loadLive(ctx, conn, config)
	if err != nil {
		return err
	}

	var extras []diff.Extra
	opts := []diff.Option{diff.Exclude(excludes...)}
	if allowExtra {
		opts = append(opts, diff.AllowExtra(), diff.OnExtra(func(e diff.Extra) { extras = append(extras, e) }))
	}
	ops, err := diff.Diff(conn.Dialect(), declared, live, opts...)
	if err != nil {
		return fmt.Errorf("failed to plan: %w", err)
	}

	if err := diff.Report(cmd.OutOrStdout(), ops, extras...); err != nil {
		return err
	}
	logger.Debug().Str("stats", conn.Stats().String()).Msg("check finished")
	if len(ops) > 0 {
		return errPending
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	conn, config, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	declared, live, err := loadLive(ctx, conn, config)
	if err != nil {
		return err
	}
	d := conn.Dialect()

	// Existing scripts must be intact before another is added.
	existing, err := generator.ReadDir(migrateDir)
	if err != nil {
		return err
	}
	snapPath := filepath.Join(migrateDir, snapshot.MigrationFile)
	if len(existing) > 0 {
		previous, err := snapshot.Load(ctx, snapPath)
		if err != nil {
			return err
		}
		if err := snapshot.CheckConflicts(d, previous.Schema, declared, live); err != nil {
			return err
		}
	}

	ops, err := diff.Diff(d, declared, live, diff.Exclude(excludes...))
	if err != nil {
		return fmt.Errorf("failed to plan: %w", err)
	}
	if len(ops) == 0 {
		return diff.Report(cmd.OutOrStdout(), nil)
	}

	script, err := generator.New(d).Plan(migrateName, ops)
	if err != nil {
		return fmt.Errorf("failed to generate migration: %w", err)
	}
	if script.Irreversible() {
		logger.Warn().Str("migration", script.Base()).Msg("migration drops data and cannot be reverted")
	}

	if apply {
		if err := generator.Apply(ctx, conn, script); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
		logger.Info().Str("migration", script.Base()).Int("steps", len(script.Up)).Msg("migration applied")
	}

	if err := generator.WriteDir(migrateDir, script); err != nil {
		return err
	}
	if _, err := snapshot.Save(ctx, snapPath, declared, map[string]string{
		snapshot.MetaDialect: d.Name(),
		"migration":          script.Base(),
	}); err != nil {
		return fmt.Errorf("failed to record migration snapshot: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Migration written: %s\n", filepath.Join(migrateDir, script.Base()+".up.sql"))
	return nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	conn, config, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Generate snapshot filename
	var filename string
	if len(args) > 0 {
		filename = args[0]
		if !strings.HasSuffix(filename, ".db") {
			filename += ".db"
		}
	} else {
		name := config.Database
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(config.Path), filepath.Ext(config.Path))
		}
		filename = fmt.Sprintf("%s-%s.db", name, time.Now().Format("2006-01-02-15-04-05"))
	}
	outputPath := filepath.Join(outputDir, filename)

	live, err := introspect.Introspect(ctx, conn,
		introspect.WithSchema(config.Schema),
		introspect.WithTables(tables...),
		introspect.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to introspect database: %w", err)
	}

	logger.Info().Str("path", outputPath).Int("tables", len(live.Tables)).Msg("creating snapshot")
	if _, err := snapshot.Save(ctx, outputPath, live, map[string]string{
		snapshot.MetaDialect: conn.Dialect().Name(),
		"database":           config.Database,
	}); err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot created successfully: %s\n", outputPath)
	return nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	snaps := make([]*snapshot.Snapshot, len(args))
	for i, path := range args {
		logger.Info().Str("path", path).Msg("loading snapshot")
		snap, err := snapshot.Load(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to load snapshot%d: %w", i+1, err)
		}
		snaps[i] = snap
	}

	ops, err := diff.Compare(snaps[0].Schema, snaps[1].Schema)
	if err != nil {
		return fmt.Errorf("failed to compare snapshots: %w", err)
	}
	return diff.Report(cmd.OutOrStdout(), ops)
}
