package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pawelekbyra/gridfeed/internal/feed"
	"github.com/pawelekbyra/gridfeed/internal/model"
)

// ColumnsOptions holds flags for the columns command.
type ColumnsOptions struct {
	*RootOptions
	data dataFlags
}

// ColumnsResult lists the populated columns.
type ColumnsResult struct {
	Source  string `json:"source"`
	Columns []int  `json:"columns"`
}

// RenderText implements textRenderer.
func (r ColumnsResult) RenderText(w io.Writer) {
	if len(r.Columns) == 0 {
		fmt.Fprintln(w, "No populated columns.")
		return
	}
	parts := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		parts[i] = strconv.Itoa(c)
	}
	fmt.Fprintf(w, "%d populated columns: %s\n", len(r.Columns), strings.Join(parts, " "))
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ColumnsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "columns",
		Short: "List populated columns",
		Long: `List the columns that hold at least one item, in ascending order.

Reads the database directly, or a running server when --server is set.

Example:
  feedgrid columns --db ./feedgrid.db
  feedgrid columns --server http://127.0.0.1:8080 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColumns(opts, cmd)
		},
	}
	opts.data.bind(cmd)

	return cmd
}

func runColumns(opts *ColumnsOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	opts.data.apply(cmd, &cfg)
	logger := opts.logger(cmd.ErrOrStderr(), cfg.LogLevel)

	ctx := commandContext(cmd)
	sess, err := startFeed(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSession(sess, logger)

	cols, err := sess.runner.LoadColumns(ctx)
	if err != nil {
		return failWith(opts.formatter(cmd), "failed to list columns", err)
	}
	return opts.formatter(cmd).Success(ColumnsResult{Source: sess.backend.kind, Columns: cols})
}

// PageOptions holds flags for the page command.
type PageOptions struct {
	*RootOptions
	data  dataFlags
	Pages int
}

// PageResult is the loaded state of one column.
type PageResult struct {
	Column int               `json:"column"`
	Pages  int               `json:"pages"`
	Status feed.ColumnStatus `json:"status"`
	Items  []model.GridItem  `json:"items"`
}

// RenderText implements textRenderer.
func (r PageResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Column %d: %d items in %d pages, %s", r.Column, r.Status.Loaded, r.Status.Pages, r.Status.State)
	if r.Status.Exhausted {
		fmt.Fprint(w, ", exhausted")
	} else if r.Status.Next != nil {
		fmt.Fprintf(w, ", next offset %d", r.Status.Next.Offset)
	}
	fmt.Fprintln(w)
	for _, it := range r.Items {
		fmt.Fprintf(w, "  %4d  %-36s  %-5s  likes %-3d comments %-3d %s\n",
			it.Coordinate.Row, it.ID, it.Kind, it.LikeCount, it.CommentCount, it.Access)
	}
}

// NewPageCommand creates the page command.
func NewPageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "page <column>",
		Short: "Fetch pages of a column",
		Long: `Fetch pages of a column through the feed client and print the loaded rows.

--pages 0 pages the column to exhaustion.

Example:
  feedgrid page 2 --db ./feedgrid.db
  feedgrid page 0 --pages 0 --page-size 5 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			column, err := parseColumn(args[0])
			if err != nil {
				return err
			}
			return runPage(opts, column, cmd)
		},
	}
	opts.data.bind(cmd)
	cmd.Flags().IntVar(&opts.Pages, "pages", 1, "number of pages to fetch (0 = all)")

	return cmd
}

func runPage(opts *PageOptions, column int, cmd *cobra.Command) error {
	if opts.Pages < 0 {
		return NewExitError(ExitCommandError, "--pages must be >= 0")
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	opts.data.apply(cmd, &cfg)
	logger := opts.logger(cmd.ErrOrStderr(), cfg.LogLevel)

	ctx := commandContext(cmd)
	sess, err := startFeed(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSession(sess, logger)

	pages := 0
	if opts.Pages == 0 {
		pages, err = sess.runner.FetchAll(ctx, column)
	} else {
		for pages < opts.Pages {
			var status feed.FetchStatus
			status, err = sess.runner.FetchNext(ctx, column)
			if err != nil || status == feed.FetchDone {
				break
			}
			pages++
		}
	}
	if err != nil {
		return failWith(opts.formatter(cmd), fmt.Sprintf("failed to fetch column %d", column), err)
	}

	result := PageResult{Column: column, Pages: pages}
	if err := sess.runner.Do(ctx, func(c *feed.Controller) {
		result.Status = c.State(column)
		result.Items = c.Items(column)
	}); err != nil {
		return WrapExitError(ExitFailure, "event loop stopped", err)
	}
	return opts.formatter(cmd).Success(result)
}

func parseColumn(arg string) (int, error) {
	column, err := strconv.Atoi(arg)
	if err != nil || column < 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid column %q: must be a non-negative integer", arg))
	}
	return column, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func closeSession(sess *feedSession, logger *slog.Logger) {
	if err := sess.Close(); err != nil {
		logger.Error("error closing session", "error", err)
	}
}

// failWith reports err through f and returns it as an ExitFailure.
func failWith(f *OutputFormatter, message string, err error) error {
	if outErr := f.Error(errorCode(err), message, err.Error()); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, message, err)
}
