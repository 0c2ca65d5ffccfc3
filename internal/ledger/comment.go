package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

var errEmptyConfirmation = errors.New("server returned no comment")

// commentDraft is the tentative record of a submitted comment.
type commentDraft struct {
	tempID    string
	itemID    string
	parentID  string
	text      string
	createdAt time.Time
	counted   bool
}

// SubmitComment inserts a tentative comment at the head of the target list
// and posts it. The returned temporary ID identifies the record until the
// server confirms it.
//
// Text is NFC-normalized and trimmed first; empty text, a missing item ID or
// an unknown parent is a validation error and nothing is applied. On success
// the tentative record is replaced in place by the server's; on failure it
// is removed from whichever level holds it and the failure is reported as an
// Outcome.
func (l *Ledger) SubmitComment(itemID, text, parentID string) (string, error) {
	if itemID == "" {
		return "", model.NewValidationError(OpPostComment, "", "item id is required")
	}
	text = model.NormalizeText(text)
	if text == "" {
		return "", model.NewValidationError(OpPostComment, itemID, "comment text is empty")
	}

	if parentID != "" {
		if parent, ok := l.comments.Find(parentID); ok && parent.Pending {
			return "", model.NewValidationError(OpPostComment, itemID, "cannot reply to an unconfirmed comment")
		}
	}

	tempID := l.tempID()
	c := &model.Comment{
		ID:        tempID,
		ItemID:    itemID,
		Author:    l.viewer.Author(),
		Text:      text,
		CreatedAt: l.now(),
		LikedBy:   model.NewUserSet(),
		Pending:   true,
	}
	if err := l.comments.InsertHead(itemID, parentID, c); err != nil {
		return "", model.NewValidationError(OpPostComment, itemID, err.Error())
	}

	d := &commentDraft{
		tempID:    tempID,
		itemID:    itemID,
		parentID:  c.ParentID,
		text:      text,
		createdAt: c.CreatedAt,
	}
	d.counted = l.grid.Update(itemID, func(item *model.GridItem) { item.CommentCount++ })
	if d.counted {
		l.grid.Pin(itemID)
	}
	l.pending[tempID] = d

	var confirmed *model.Comment
	l.dispatch.Dispatch(OpPostComment,
		func(ctx context.Context) error {
			var err error
			confirmed, err = l.remote.PostComment(ctx, d.itemID, d.text, d.parentID)
			return err
		},
		func(err error) {
			if err != nil {
				l.resolveComment(d, nil, err)
				return
			}
			l.resolveComment(d, confirmed, nil)
		},
	)
	return tempID, nil
}

func (l *Ledger) resolveComment(d *commentDraft, confirmed *model.Comment, err error) {
	delete(l.pending, d.tempID)
	if d.counted {
		defer l.grid.Unpin(d.itemID)
	}

	if err == nil && confirmed == nil {
		err = errEmptyConfirmation
	}
	if err != nil {
		// A draft already absorbed by a reload is on the server; keep it.
		_, removed := l.comments.Remove(d.tempID)
		if d.counted && removed {
			l.grid.Update(d.itemID, func(item *model.GridItem) { item.CommentCount-- })
		}
		l.emit(Outcome{Kind: KindComment, Key: d.itemID, TempID: d.tempID, Err: rejection(OpPostComment, d.itemID, err)})
		return
	}

	c := confirmed.Clone()
	c.Pending = false
	if c.LikedBy == nil {
		c.LikedBy = model.NewUserSet()
	}
	if !l.comments.Replace(d.tempID, c) {
		if _, loaded := l.comments.Find(c.ID); loaded {
			l.logger.Debug("confirmed comment already loaded", "temp_id", d.tempID, "comment_id", c.ID)
		} else {
			l.logger.Warn("tentative comment vanished before confirmation", "temp_id", d.tempID, "item_id", d.itemID)
		}
	}
	l.emit(Outcome{Kind: KindComment, Key: d.itemID, TempID: d.tempID, CommentID: c.ID})
}
