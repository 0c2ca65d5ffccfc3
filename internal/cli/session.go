package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pawelekbyra/gridfeed/internal/client"
	"github.com/pawelekbyra/gridfeed/internal/config"
	"github.com/pawelekbyra/gridfeed/internal/eventloop"
	"github.com/pawelekbyra/gridfeed/internal/feed"
	"github.com/pawelekbyra/gridfeed/internal/ledger"
	"github.com/pawelekbyra/gridfeed/internal/model"
	"github.com/pawelekbyra/gridfeed/internal/pager"
	"github.com/pawelekbyra/gridfeed/internal/store"
)

// dataFlags are the per-command overrides of the config's data source.
type dataFlags struct {
	Database string
	Server   string
	Viewer   string
	PageSize int
}

func (d *dataFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&d.Server, "server", "", "base URL of a feedgrid server; reads the database when empty")
	cmd.Flags().StringVar(&d.Viewer, "viewer", "", "viewer id (overrides config)")
	cmd.Flags().IntVar(&d.PageSize, "page-size", 0, "rows per page (overrides config)")
}

// apply copies explicitly set flags over cfg.
func (d *dataFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("db") {
		cfg.Database = d.Database
	}
	if cmd.Flags().Changed("server") {
		cfg.Server = d.Server
	}
	if cmd.Flags().Changed("viewer") {
		cfg.Viewer.ID = d.Viewer
		cfg.Viewer.DisplayName = d.Viewer
	}
	if cmd.Flags().Changed("page-size") {
		cfg.Feed.PageSize = d.PageSize
	}
}

// collaborator is everything the feed controller needs from its data side.
type collaborator interface {
	pager.Source
	ledger.Remote
}

// backend is an open collaborator plus the means to release it.
type backend struct {
	collab collaborator
	kind   string
	close  func() error
}

func viewerOf(cfg config.Config) model.Viewer {
	return model.Viewer{ID: cfg.Viewer.ID, DisplayName: cfg.Viewer.DisplayName}
}

// openBackend connects to cfg.Server when set, otherwise opens cfg.Database
// in-process.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backend, error) {
	viewer := viewerOf(cfg)
	if cfg.Server != "" {
		c := client.New(cfg.Server, viewer, client.WithHTTPClient(&http.Client{
			Timeout: cfg.Feed.RequestTimeout(),
		}))
		if err := c.Health(ctx); err != nil {
			return nil, WrapExitError(ExitCommandError, "server unreachable", err)
		}
		logger.Debug("using remote server", "url", cfg.Server, "viewer", viewer.ID)
		return &backend{collab: c, kind: "http", close: func() error { return nil }}, nil
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	logger.Debug("using local database", "path", cfg.Database, "viewer", viewer.ID)
	return &backend{collab: store.NewSession(st, viewer), kind: "sqlite", close: st.Close}, nil
}

// feedSession is a feed controller running on its own event loop.
type feedSession struct {
	backend *backend
	loop    *eventloop.Loop
	runner  *feed.Runner
	stopped chan struct{}
}

// startFeed opens the backend and starts a loop-owned controller over it.
func startFeed(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...feed.Option) (*feedSession, error) {
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	loop := eventloop.New(
		eventloop.WithTimeout(cfg.Feed.RequestTimeout()),
		eventloop.WithLogger(logger),
	)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := loop.Run(context.Background()); err != nil {
			logger.Error("event loop stopped", "error", err)
		}
	}()

	base := []feed.Option{
		feed.WithPageSize(cfg.Feed.PageSize),
		feed.WithSettleWindow(cfg.Feed.SettleWindow()),
		feed.WithLogger(logger),
	}
	ctl := feed.New(b.collab, b.collab, loop, viewerOf(cfg), append(base, opts...)...)

	return &feedSession{
		backend: b,
		loop:    loop,
		runner:  feed.NewRunner(ctl, loop),
		stopped: stopped,
	}, nil
}

// Close waits for in-flight turns to drain, then releases the backend.
func (s *feedSession) Close() error {
	s.loop.Stop()
	<-s.stopped
	return s.backend.close()
}

// errorCode names err for CLI error payloads.
func errorCode(err error) string {
	var fe *model.FeedError
	if errors.As(err, &fe) {
		return string(fe.Code)
	}
	return "E_COMMAND"
}
