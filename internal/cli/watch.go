package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pawelekbyra/gridfeed/internal/feed"
	"github.com/pawelekbyra/gridfeed/internal/tui"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	data    dataFlags
	LogFile string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Browse the feed in the terminal",
		Long: `Browse the grid one column at a time in a full-screen terminal viewer.

Keys: j/k scroll, h/l switch column, space like, c comments, r reload, q quit.

The screen belongs to the viewer, so logs are discarded unless --log-file
is given.

Example:
  feedgrid watch --db ./feedgrid.db
  feedgrid watch --server http://127.0.0.1:8080 --viewer alice --log-file watch.log`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}
	opts.data.bind(cmd)
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "append logs to this file")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	opts.data.apply(cmd, &cfg)

	var logOut io.Writer = io.Discard
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open log file", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := opts.logger(logOut, cfg.LogLevel)

	b, err := openBackend(commandContext(cmd), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := b.close(); closeErr != nil {
			logger.Error("error closing backend", "error", closeErr)
		}
	}()

	disp := tui.NewDispatcher(cfg.Feed.RequestTimeout())
	ctl := feed.New(b.collab, b.collab, disp, viewerOf(cfg),
		feed.WithPageSize(cfg.Feed.PageSize),
		feed.WithSettleWindow(cfg.Feed.SettleWindow()),
		feed.WithLogger(logger),
	)
	logger.Info("viewer starting", "source", b.kind, "viewer", cfg.Viewer.ID)

	if err := tui.Run(tui.NewModel(ctl, disp, cfg.Feed.ItemExtent)); err != nil {
		return WrapExitError(ExitFailure, "viewer error", err)
	}
	return nil
}
