package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pawelekbyra/gridfeed/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database string
	Columns  int
	Rows     int
	GapEvery int
	Owner    string
}

// SeedResult reports what the seed command wrote.
type SeedResult struct {
	Database string `json:"database"`
	Columns  int    `json:"columns"`
	Rows     int    `json:"rows"`
	Written  int    `json:"written"`
}

// RenderText implements textRenderer.
func (r SeedResult) RenderText(w io.Writer) {
	if r.Written == 0 {
		fmt.Fprintf(w, "%s already seeded (%d columns)\n", r.Database, r.Columns)
		return
	}
	fmt.Fprintf(w, "Seeded %d items across %d columns into %s\n", r.Written, r.Columns, r.Database)
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate a sparse demo grid",
		Long: `Populate the database with a sparse demo grid.

Every column gets up to --rows items with some row slots left empty.
Columns that already hold items are skipped, so seeding is repeatable.

Example:
  feedgrid seed --db ./feedgrid.db
  feedgrid seed --db ./feedgrid.db --columns 8 --rows 40 --gap-every 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().IntVar(&opts.Columns, "columns", 0, "number of columns (overrides config)")
	cmd.Flags().IntVar(&opts.Rows, "rows", 0, "row slots per column (overrides config)")
	cmd.Flags().IntVar(&opts.GapEvery, "gap-every", 0, "leave every n-th slot empty (overrides config)")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner of the seeded items (defaults to the viewer)")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database = opts.Database
	}
	if flags.Changed("columns") {
		cfg.Seed.Columns = opts.Columns
	}
	if flags.Changed("rows") {
		cfg.Seed.Rows = opts.Rows
	}
	if flags.Changed("gap-every") {
		cfg.Seed.GapEvery = opts.GapEvery
	}
	owner := opts.Owner
	if owner == "" {
		owner = cfg.Viewer.ID
	}
	logger := opts.logger(cmd.ErrOrStderr(), cfg.LogLevel)

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	written, err := st.Seed(commandContext(cmd), store.SeedSpec{
		Columns:  cfg.Seed.Columns,
		Rows:     cfg.Seed.Rows,
		Owner:    owner,
		GapEvery: cfg.Seed.GapEvery,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "seed failed", err)
	}
	logger.Info("seeded grid", "path", cfg.Database, "items", written)

	return opts.formatter(cmd).Success(SeedResult{
		Database: cfg.Database,
		Columns:  cfg.Seed.Columns,
		Rows:     cfg.Seed.Rows,
		Written:  written,
	})
}
