package ledger

import (
	"context"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

type toggleKey struct {
	kind Kind
	key  string
}

// toggle is the tentative record of a like-style mutation. baseline is the
// last state the server confirmed (or the state before the first click);
// desired is what the viewer currently sees.
type toggle struct {
	target        toggleTarget
	baseline      bool
	baselineCount int
	desired       bool
}

// toggleTarget adapts a likeable record to the shared toggle machinery.
type toggleTarget interface {
	// read returns the visible liked state and count.
	read() (liked bool, count int, ok bool)
	// show makes the record display liked, given the confirmed baseline.
	show(liked bool, t *toggle)
	send(ctx context.Context) (model.LikeResult, error)
	hold()
	release()
	op() string
}

func (l *Ledger) toggle(kind Kind, key string, target toggleTarget) {
	k := toggleKey{kind: kind, key: key}
	if t, ok := l.toggles[k]; ok {
		t.desired = !t.desired
		t.target.show(t.desired, t)
		l.logger.Debug("toggle coalesced", "kind", kind, "key", key, "desired", t.desired)
		return
	}

	liked, count, _ := target.read()
	t := &toggle{
		target:        target,
		baseline:      liked,
		baselineCount: count,
		desired:       !liked,
	}
	l.toggles[k] = t
	target.hold()
	target.show(t.desired, t)
	l.send(k, t)
}

func (l *Ledger) send(k toggleKey, t *toggle) {
	want := t.desired
	var res model.LikeResult
	l.dispatch.Dispatch(t.target.op(),
		func(ctx context.Context) error {
			var err error
			res, err = t.target.send(ctx)
			return err
		},
		func(err error) {
			// res is only safe to read once call has returned cleanly.
			if err != nil {
				l.resolveToggle(k, t, want, model.LikeResult{}, err)
				return
			}
			l.resolveToggle(k, t, want, res, nil)
		},
	)
}

func (l *Ledger) resolveToggle(k toggleKey, t *toggle, want bool, res model.LikeResult, err error) {
	if err != nil {
		t.desired = t.baseline
		t.target.show(t.baseline, t)
		l.finishToggle(k, t, rejection(t.target.op(), k.key, err))
		return
	}

	if res.State != "" && res.State != model.LikeStateOf(want) {
		l.logger.Warn("server like state disagrees with request",
			"kind", k.kind, "key", k.key,
			"requested", model.LikeStateOf(want), "server", res.State)
	}
	t.baselineCount = countFor(want, t.baseline, t.baselineCount)
	t.baseline = want

	if t.desired != t.baseline {
		l.logger.Debug("toggle follow-up", "kind", k.kind, "key", k.key, "desired", t.desired)
		l.send(k, t)
		return
	}
	l.finishToggle(k, t, nil)
}

func (l *Ledger) finishToggle(k toggleKey, t *toggle, err error) {
	delete(l.toggles, k)
	t.target.release()
	l.emit(Outcome{Kind: k.kind, Key: k.key, State: model.LikeStateOf(t.desired), Err: err})
}

// countFor is the count shown for liked given the confirmed baseline.
func countFor(liked, baseline bool, baselineCount int) int {
	switch {
	case liked == baseline:
		return baselineCount
	case liked:
		return baselineCount + 1
	default:
		return baselineCount - 1
	}
}

// itemTarget toggles LikedByViewer and LikeCount on a grid item.
type itemTarget struct {
	l  *Ledger
	id string
}

func (it itemTarget) read() (bool, int, bool) {
	item, ok := it.l.grid.Item(it.id)
	return item.LikedByViewer, item.LikeCount, ok
}

func (it itemTarget) show(liked bool, t *toggle) {
	it.l.grid.Update(it.id, func(item *model.GridItem) {
		item.LikedByViewer = liked
		item.LikeCount = countFor(liked, t.baseline, t.baselineCount)
	})
}

func (it itemTarget) send(ctx context.Context) (model.LikeResult, error) {
	return it.l.remote.PostLikeToggle(ctx, it.id)
}

func (it itemTarget) hold()      { it.l.grid.Pin(it.id) }
func (it itemTarget) release()   { it.l.grid.Unpin(it.id) }
func (it itemTarget) op() string { return OpToggleLike }

// commentTarget toggles the viewer's membership in a comment's LikedBy set.
// The visible count is always the set size.
type commentTarget struct {
	l  *Ledger
	id string
}

func (ct commentTarget) read() (bool, int, bool) {
	c, ok := ct.l.comments.Find(ct.id)
	if !ok {
		return false, 0, false
	}
	return c.LikedBy.Has(ct.l.viewer.ID), c.LikeCount(), true
}

func (ct commentTarget) show(liked bool, _ *toggle) {
	ct.l.comments.Update(ct.id, func(c *model.Comment) {
		if c.LikedBy == nil {
			c.LikedBy = model.NewUserSet()
		}
		if c.LikedBy.Has(ct.l.viewer.ID) != liked {
			c.LikedBy.Toggle(ct.l.viewer.ID)
		}
	})
}

func (ct commentTarget) send(ctx context.Context) (model.LikeResult, error) {
	return ct.l.remote.PostCommentLikeToggle(ctx, ct.id)
}

func (ct commentTarget) hold()      {}
func (ct commentTarget) release()   {}
func (ct commentTarget) op() string { return OpToggleCommentLike }

// ToggleLike flips the viewer's like on an item immediately and reconciles
// with the server in the background. The only error is a validation error
// for an empty or unknown item ID; server failures arrive as Outcomes.
func (l *Ledger) ToggleLike(itemID string) error {
	if itemID == "" {
		return model.NewValidationError(OpToggleLike, "", "item id is required")
	}
	if _, ok := l.grid.Item(itemID); !ok {
		return model.NewValidationError(OpToggleLike, itemID, "item is not in the grid")
	}
	l.toggle(KindLike, itemID, itemTarget{l: l, id: itemID})
	return nil
}

// ToggleCommentLike flips the viewer's membership in a comment's like set.
// Tentative comments cannot be liked until confirmed.
func (l *Ledger) ToggleCommentLike(commentID string) error {
	if commentID == "" {
		return model.NewValidationError(OpToggleCommentLike, "", "comment id is required")
	}
	if l.viewer.ID == "" {
		return model.NewValidationError(OpToggleCommentLike, commentID, "viewer id is required")
	}
	c, ok := l.comments.Find(commentID)
	if !ok {
		return model.NewValidationError(OpToggleCommentLike, commentID, "comment is not loaded")
	}
	if c.Pending {
		return model.NewValidationError(OpToggleCommentLike, commentID, "comment is not confirmed yet")
	}
	l.toggle(KindCommentLike, commentID, commentTarget{l: l, id: commentID})
	return nil
}

// Reapply writes the visible state of in-flight comment likes back onto the
// comment board. Call it after a comment list reload replaced the records.
func (l *Ledger) Reapply() {
	for k, t := range l.toggles {
		if k.kind == KindCommentLike {
			t.target.show(t.desired, t)
		}
	}
}

// InFlight reports whether a toggle of kind is unresolved for key.
func (l *Ledger) InFlight(kind Kind, key string) bool {
	_, ok := l.toggles[toggleKey{kind: kind, key: key}]
	return ok
}
