package ledger

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pawelekbyra/gridfeed/internal/grid"
	"github.com/pawelekbyra/gridfeed/internal/model"
)

// Operation names passed to the Dispatcher.
const (
	OpToggleLike        = "toggle_like"
	OpPostComment       = "post_comment"
	OpToggleCommentLike = "toggle_comment_like"
)

// Dispatcher runs call off the event loop and delivers its result to done
// on the loop, exactly once. Implementations bound call with a timeout.
type Dispatcher interface {
	Dispatch(op string, call func(ctx context.Context) error, done func(err error))
}

// Remote is the authoritative mutation collaborator.
type Remote interface {
	PostLikeToggle(ctx context.Context, itemID string) (model.LikeResult, error)
	PostComment(ctx context.Context, itemID, text, parentID string) (*model.Comment, error)
	PostCommentLikeToggle(ctx context.Context, commentID string) (model.LikeResult, error)
	GetComments(ctx context.Context, itemID string) ([]*model.Comment, error)
}

// Kind tags a tentative mutation.
type Kind string

const (
	KindLike        Kind = "like"
	KindCommentLike Kind = "comment_like"
	KindComment     Kind = "comment"
)

// Outcome reports the final resolution of a tentative mutation.
type Outcome struct {
	Kind Kind
	// Key is the item ID for likes and comments, the comment ID for
	// comment likes.
	Key string
	// TempID and CommentID are set for comment submissions.
	TempID    string
	CommentID string
	// State is the settled visible like state for toggles.
	State model.LikeState
	Err   error
}

// Tentative is a snapshot of an unresolved mutation.
type Tentative struct {
	Kind      Kind
	Key       string
	Baseline  bool
	Desired   bool
	TempID    string
	ParentID  string
	Text      string
	CreatedAt time.Time
}

// Ledger owns the tentative mutations of one session.
type Ledger struct {
	grid     *grid.Grid
	comments *grid.Comments
	remote   Remote
	dispatch Dispatcher
	viewer   model.Viewer

	toggles map[toggleKey]*toggle
	pending map[string]*commentDraft

	now      func() time.Time
	tempID   func() string
	observer func(Outcome)
	logger   *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the ledger's logger.
func WithLogger(l *slog.Logger) Option {
	return func(lg *Ledger) {
		if l != nil {
			lg.logger = l
		}
	}
}

// WithNow sets the clock used to stamp tentative comments.
func WithNow(now func() time.Time) Option {
	return func(lg *Ledger) {
		if now != nil {
			lg.now = now
		}
	}
}

// WithTempIDs sets the generator of tentative comment IDs.
func WithTempIDs(gen func() string) Option {
	return func(lg *Ledger) {
		if gen != nil {
			lg.tempID = gen
		}
	}
}

// WithObserver registers a callback for every resolution.
func WithObserver(fn func(Outcome)) Option {
	return func(lg *Ledger) {
		lg.observer = fn
	}
}

// New creates a ledger mutating g and comments on behalf of viewer.
func New(g *grid.Grid, comments *grid.Comments, remote Remote, dispatch Dispatcher, viewer model.Viewer, opts ...Option) *Ledger {
	l := &Ledger{
		grid:     g,
		comments: comments,
		remote:   remote,
		dispatch: dispatch,
		viewer:   viewer,
		toggles:  make(map[toggleKey]*toggle),
		pending:  make(map[string]*commentDraft),
		now:      time.Now,
		tempID:   func() string { return "tmp-" + uuid.Must(uuid.NewV7()).String() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Pending returns the number of unresolved tentative mutations.
func (l *Ledger) Pending() int {
	return len(l.toggles) + len(l.pending)
}

// Tentatives snapshots the unresolved mutations ordered by kind and key.
func (l *Ledger) Tentatives() []Tentative {
	out := make([]Tentative, 0, l.Pending())
	for k, t := range l.toggles {
		out = append(out, Tentative{
			Kind:     k.kind,
			Key:      k.key,
			Baseline: t.baseline,
			Desired:  t.desired,
		})
	}
	for _, d := range l.pending {
		out = append(out, Tentative{
			Kind:      KindComment,
			Key:       d.itemID,
			TempID:    d.tempID,
			ParentID:  d.parentID,
			Text:      d.text,
			CreatedAt: d.createdAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].TempID < out[j].TempID
	})
	return out
}

func (l *Ledger) emit(o Outcome) {
	attrs := []any{"kind", o.Kind, "key", o.Key}
	if o.TempID != "" {
		attrs = append(attrs, "temp_id", o.TempID)
	}
	if o.Err != nil {
		l.logger.Warn("mutation reverted", append(attrs, "error", o.Err)...)
	} else {
		l.logger.Debug("mutation confirmed", attrs...)
	}
	if l.observer != nil {
		l.observer(o)
	}
}

// rejection turns a collaborator failure into the error reported to
// observers. Timeouts keep their own code.
func rejection(op, key string, err error) error {
	if model.IsTimeout(err) {
		return err
	}
	return model.NewMutationError(op, key, err)
}
