package grid

import (
	"fmt"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

// Comments holds per-item comment lists: top level newest first, each
// carrying one level of replies.
type Comments struct {
	lists  map[string][]*model.Comment
	itemOf map[string]string
}

// NewComments creates an empty board.
func NewComments() *Comments {
	return &Comments{
		lists:  make(map[string][]*model.Comment),
		itemOf: make(map[string]string),
	}
}

// Load replaces the list of itemID with an authoritative one.
//
// Tentative (Pending) records still awaiting confirmation survive the
// reload: top-level ones stay at the head, replies are re-attached to their
// parent when it is still present. A fresh record that was not on the board
// before and carries a draft's author, parent and text is the server's copy
// of that draft, so it takes the draft's place.
func (b *Comments) Load(itemID string, comments []*model.Comment) {
	old := b.lists[itemID]
	known := make(map[string]bool)
	for _, c := range old {
		known[c.ID] = true
		for _, r := range c.Replies {
			known[r.ID] = true
		}
		b.unindex(c)
	}

	fresh := make([]*model.Comment, 0, len(comments))
	for _, c := range comments {
		fresh = append(fresh, c.Clone())
	}
	claimed := make(map[string]bool)

	var pendingTop []*model.Comment
	for _, c := range old {
		if c.Pending {
			if match := claimDraft(c, fresh, known, claimed); match != nil {
				fresh = moveToHead(fresh, match)
				continue
			}
			pendingTop = append(pendingTop, c)
			continue
		}
		for _, r := range c.Replies {
			if !r.Pending {
				continue
			}
			for _, parent := range fresh {
				if parent.ID != r.ParentID {
					continue
				}
				if match := claimDraft(r, parent.Replies, known, claimed); match != nil {
					parent.Replies = moveToHead(parent.Replies, match)
				} else {
					parent.Replies = append([]*model.Comment{r}, parent.Replies...)
				}
				break
			}
		}
	}
	list := append(pendingTop, fresh...)
	b.lists[itemID] = list
	for _, c := range list {
		b.index(itemID, c)
	}
}

// claimDraft returns the first unclaimed record of list that is new to the
// board and matches draft.
func claimDraft(draft *model.Comment, list []*model.Comment, known, claimed map[string]bool) *model.Comment {
	for _, c := range list {
		if known[c.ID] || claimed[c.ID] || c.Pending {
			continue
		}
		if c.Author.ID == draft.Author.ID && c.ParentID == draft.ParentID && c.Text == draft.Text {
			claimed[c.ID] = true
			return c
		}
	}
	return nil
}

// moveToHead returns a copy of list with c first.
func moveToHead(list []*model.Comment, c *model.Comment) []*model.Comment {
	out := make([]*model.Comment, 0, len(list))
	out = append(out, c)
	for _, x := range list {
		if x != c {
			out = append(out, x)
		}
	}
	return out
}

func (b *Comments) index(itemID string, c *model.Comment) {
	b.itemOf[c.ID] = itemID
	for _, r := range c.Replies {
		b.itemOf[r.ID] = itemID
	}
}

func (b *Comments) unindex(c *model.Comment) {
	delete(b.itemOf, c.ID)
	for _, r := range c.Replies {
		delete(b.itemOf, r.ID)
	}
}

// Loaded reports whether itemID has a list on the board.
func (b *Comments) Loaded(itemID string) bool {
	_, ok := b.lists[itemID]
	return ok
}

// TopLevel returns deep copies of the top-level comments of itemID.
func (b *Comments) TopLevel(itemID string) []*model.Comment {
	list := b.lists[itemID]
	out := make([]*model.Comment, len(list))
	for i, c := range list {
		out[i] = c.Clone()
	}
	return out
}

// Count returns the number of comments held for itemID, replies included.
func (b *Comments) Count(itemID string) int {
	n := 0
	for _, c := range b.lists[itemID] {
		n += 1 + len(c.Replies)
	}
	return n
}

// locate returns the live record, its containing slice owner (nil for top
// level) and its index in that slice.
func (b *Comments) locate(id string) (c *model.Comment, parent *model.Comment, idx int, ok bool) {
	itemID, ok := b.itemOf[id]
	if !ok {
		return nil, nil, 0, false
	}
	for i, top := range b.lists[itemID] {
		if top.ID == id {
			return top, nil, i, true
		}
		for j, r := range top.Replies {
			if r.ID == id {
				return r, top, j, true
			}
		}
	}
	return nil, nil, 0, false
}

// Find returns a copy of the comment with id at either level.
func (b *Comments) Find(id string) (*model.Comment, bool) {
	c, _, _, ok := b.locate(id)
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// ItemOf returns the item a comment belongs to.
func (b *Comments) ItemOf(id string) (string, bool) {
	itemID, ok := b.itemOf[id]
	return itemID, ok
}

// Update applies fn to the live comment with id. Identity fields are
// restored after fn runs. Returns false if the comment is unknown.
func (b *Comments) Update(id string, fn func(*model.Comment)) bool {
	c, _, _, ok := b.locate(id)
	if !ok {
		return false
	}
	itemID, parentID := c.ItemID, c.ParentID
	fn(c)
	c.ID, c.ItemID, c.ParentID = id, itemID, parentID
	return true
}

// InsertHead puts c at the head of the target list. With an empty parentID
// that is the top-level list of itemID; otherwise it is the reply list of
// parentID's top-level ancestor, so replies to replies flatten one level.
// The resolved parent is written to c.ParentID.
func (b *Comments) InsertHead(itemID, parentID string, c *model.Comment) error {
	c.ItemID = itemID
	if parentID == "" {
		c.ParentID = ""
		b.lists[itemID] = append([]*model.Comment{c}, b.lists[itemID]...)
		b.itemOf[c.ID] = itemID
		return nil
	}

	target, top, _, ok := b.locate(parentID)
	if !ok || b.itemOf[parentID] != itemID {
		return fmt.Errorf("insert comment: parent %s not on item %s", parentID, itemID)
	}
	if top != nil {
		target = top
	}
	c.ParentID = target.ID
	target.Replies = append([]*model.Comment{c}, target.Replies...)
	b.itemOf[c.ID] = itemID
	return nil
}

// Replace swaps the record id for c at the same position. The replacement
// keeps the slot's item and parent. If c.ID is already on the board the
// slot is dropped instead, so no ID appears twice. Returns false if id is
// unknown.
func (b *Comments) Replace(id string, c *model.Comment) bool {
	old, parent, idx, ok := b.locate(id)
	if !ok {
		return false
	}
	if c.ID != id {
		if _, dup := b.itemOf[c.ID]; dup {
			b.Remove(id)
			return true
		}
	}
	itemID := b.itemOf[id]
	c.ItemID = itemID
	c.ParentID = old.ParentID
	if parent == nil {
		if c.Replies == nil {
			c.Replies = old.Replies
		}
		b.lists[itemID][idx] = c
	} else {
		c.Replies = nil
		parent.Replies[idx] = c
	}
	delete(b.itemOf, id)
	b.index(itemID, c)
	return true
}

// Remove deletes the record id from whichever level holds it and returns
// it. Removing a top-level comment removes its replies with it.
func (b *Comments) Remove(id string) (*model.Comment, bool) {
	c, parent, idx, ok := b.locate(id)
	if !ok {
		return nil, false
	}
	itemID := b.itemOf[id]
	if parent == nil {
		list := b.lists[itemID]
		b.lists[itemID] = append(list[:idx:idx], list[idx+1:]...)
		b.unindex(c)
	} else {
		parent.Replies = append(parent.Replies[:idx:idx], parent.Replies[idx+1:]...)
		delete(b.itemOf, id)
	}
	return c, true
}
