package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/pawelekbyra/gridfeed/internal/feed"
	"github.com/pawelekbyra/gridfeed/internal/testutil"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	data    dataFlags
	Extent  int
	Steps   int
	FrameMS int
}

// SimulatedJump is a loop jump observed while walking a column.
type SimulatedJump struct {
	Direction string `json:"direction"`
	Step      int    `json:"step"`
	From      int    `json:"from"`
	To        int    `json:"to"`
	Delta     int    `json:"delta"`
}

// SimulateResult is the outcome of walking one column.
type SimulateResult struct {
	Column int             `json:"column"`
	Items  int             `json:"items"`
	Pages  int             `json:"pages"`
	State  string          `json:"state"`
	Looped bool            `json:"looped"`
	Extent int             `json:"extent"`
	Span   int             `json:"span"`
	Start  int             `json:"start"`
	Steps  int             `json:"steps"`
	Jumps  []SimulatedJump `json:"jumps"`
}

// RenderText implements textRenderer.
func (r SimulateResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Column %d: %d items in %d pages, %s\n", r.Column, r.Items, r.Pages, r.State)
	if !r.Looped {
		fmt.Fprintln(w, "Column did not loop; nothing to scroll.")
		return
	}
	fmt.Fprintf(w, "Loop span %d (extent %d), start position %d\n", r.Span, r.Extent, r.Start)
	for _, j := range r.Jumps {
		fmt.Fprintf(w, "  %-4s step %-3d %6d -> %-6d (%+d)\n", j.Direction, j.Step, j.From, j.To, j.Delta)
	}
	fmt.Fprintf(w, "%d jumps over %d steps each way\n", len(r.Jumps), r.Steps)
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <column>",
		Short: "Walk a column through its loop and print the jumps",
		Long: `Page a column to exhaustion, enter the loop and scroll it item by item,
first down and then up, printing every sentinel jump.

Each step advances a simulated clock by --frame-ms, so jumps that land
inside the settle window are suppressed as they would be on screen.

Example:
  feedgrid simulate 0 --db ./feedgrid.db
  feedgrid simulate 3 --extent 600 --steps 40 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			column, err := parseColumn(args[0])
			if err != nil {
				return err
			}
			return runSimulate(opts, column, cmd)
		},
	}
	opts.data.bind(cmd)
	cmd.Flags().IntVar(&opts.Extent, "extent", 0, "item extent in scroll units (overrides config)")
	cmd.Flags().IntVar(&opts.Steps, "steps", 0, "steps to scroll each way (default twice the column length)")
	cmd.Flags().IntVar(&opts.FrameMS, "frame-ms", 16, "simulated time between steps in milliseconds")

	return cmd
}

func runSimulate(opts *SimulateOptions, column int, cmd *cobra.Command) error {
	if opts.Steps < 0 || opts.FrameMS < 0 {
		return NewExitError(ExitCommandError, "--steps and --frame-ms must be >= 0")
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	opts.data.apply(cmd, &cfg)
	extent := cfg.Feed.ItemExtent
	if cmd.Flags().Changed("extent") {
		if opts.Extent <= 0 {
			return NewExitError(ExitCommandError, "--extent must be > 0")
		}
		extent = opts.Extent
	}
	logger := opts.logger(cmd.ErrOrStderr(), cfg.LogLevel)
	out := opts.formatter(cmd)

	clock := testutil.NewFakeClock(time.Now())
	ctx := commandContext(cmd)
	sess, err := startFeed(ctx, cfg, logger, feed.WithClock(clock))
	if err != nil {
		return err
	}
	defer closeSession(sess, logger)

	var opErr error
	if err := sess.runner.Do(ctx, func(c *feed.Controller) {
		opErr = c.SelectColumn(column)
	}); err != nil {
		return WrapExitError(ExitFailure, "event loop stopped", err)
	}
	if opErr != nil {
		return failWith(out, fmt.Sprintf("failed to select column %d", column), opErr)
	}

	pages, err := sess.runner.FetchAll(ctx, column)
	if err != nil {
		return failWith(out, fmt.Sprintf("failed to fetch column %d", column), err)
	}

	result := SimulateResult{Column: column, Pages: pages, Extent: extent, Jumps: []SimulatedJump{}}
	if err := sess.runner.Do(ctx, func(c *feed.Controller) {
		result.Start, result.Looped = c.Measure(extent)
		st := c.State(column)
		result.State = st.State
		result.Items = st.Loaded
	}); err != nil {
		return WrapExitError(ExitFailure, "event loop stopped", err)
	}
	if !result.Looped {
		return out.Success(result)
	}

	result.Span = result.Items * extent
	result.Steps = opts.Steps
	if result.Steps == 0 {
		result.Steps = 2 * result.Items
	}
	frame := time.Duration(opts.FrameMS) * time.Millisecond

	position := result.Start
	walk := func(direction string, delta int) error {
		for step := 1; step <= result.Steps; step++ {
			position += delta
			clock.Advance(frame)

			var jump SimulatedJump
			var jumped bool
			if err := sess.runner.Do(ctx, func(c *feed.Controller) {
				j, ok := c.OnScroll(position)
				jump = SimulatedJump{Direction: direction, Step: step, From: j.From, To: j.To, Delta: j.Delta}
				jumped = ok
			}); err != nil {
				return err
			}
			if jumped {
				logger.Debug("simulated jump", "direction", direction, "step", step, "from", jump.From, "to", jump.To)
				result.Jumps = append(result.Jumps, jump)
				position = jump.To
			}
		}
		return nil
	}
	if err := walk("down", extent); err != nil {
		return WrapExitError(ExitFailure, "event loop stopped", err)
	}
	if err := walk("up", -extent); err != nil {
		return WrapExitError(ExitFailure, "event loop stopped", err)
	}

	return out.Success(result)
}
