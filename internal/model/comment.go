package model

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText NFC-normalizes and trims comment text. Text that is empty
// after normalization is rejected everywhere a comment is accepted.
func NormalizeText(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}

// UserSet is a set of user IDs.
type UserSet map[string]struct{}

// NewUserSet builds a set from the given IDs.
func NewUserSet(ids ...string) UserSet {
	s := make(UserSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s UserSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Toggle flips membership of id and returns the new membership.
func (s UserSet) Toggle(id string) bool {
	if s.Has(id) {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

// Sorted returns the members in ascending order.
func (s UserSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s UserSet) Clone() UserSet {
	c := make(UserSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// MarshalJSON encodes the set as a sorted array.
func (s UserSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a JSON array into the set.
func (s *UserSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewUserSet(ids...)
	return nil
}

// Comment is a comment on an item. Replies are one level deep: a reply to a
// reply is stored under the top-level parent.
type Comment struct {
	ID        string     `json:"id"`
	ItemID    string     `json:"item_id"`
	ParentID  string     `json:"parent_id,omitempty"`
	Author    Author     `json:"author"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"created_at"`
	LikedBy   UserSet    `json:"liked_by"`
	Replies   []*Comment `json:"replies,omitempty"`

	// Pending marks a tentative record that the server has not confirmed.
	Pending bool `json:"pending,omitempty"`
}

// LikeCount is the size of the LikedBy set.
func (c *Comment) LikeCount() int {
	return len(c.LikedBy)
}

// IsReply reports whether the comment hangs under a parent.
func (c *Comment) IsReply() bool {
	return c.ParentID != ""
}

// Clone deep-copies the comment and its replies.
func (c *Comment) Clone() *Comment {
	if c == nil {
		return nil
	}
	cp := *c
	cp.LikedBy = c.LikedBy.Clone()
	if c.Replies != nil {
		cp.Replies = make([]*Comment, len(c.Replies))
		for i, r := range c.Replies {
			cp.Replies[i] = r.Clone()
		}
	}
	return &cp
}
