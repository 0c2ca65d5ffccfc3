package store

import (
	"context"
	"fmt"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

// SeedSpec describes a demo grid.
type SeedSpec struct {
	// Columns is the number of columns to populate.
	Columns int

	// Rows is the number of row slots per column; some slots stay empty so the
	// grid is sparse.
	Rows int

	// Owner is recorded as the owner of every seeded item.
	Owner string

	// GapEvery leaves every n-th row slot empty (0 disables gaps).
	GapEvery int
}

// seedKinds rotates through content kinds by row.
var seedKinds = []model.ItemKind{model.KindVideo, model.KindImage, model.KindHTML}

// Seed populates a sparse demo grid and returns the number of items written.
// Seeding the same spec twice leaves existing coordinates untouched.
func (s *Store) Seed(ctx context.Context, spec SeedSpec) (int, error) {
	if spec.Columns < 0 || spec.Rows < 0 {
		return 0, fmt.Errorf("seed: columns and rows must be non-negative")
	}
	owner := spec.Owner
	if owner == "" {
		owner = "seed"
	}

	written := 0
	for col := 0; col < spec.Columns; col++ {
		existing, err := s.CountColumn(ctx, col)
		if err != nil {
			return written, fmt.Errorf("seed: %w", err)
		}
		if existing > 0 {
			continue
		}
		for row := 0; row < spec.Rows; row++ {
			if spec.GapEvery > 0 && (row+col)%spec.GapEvery == spec.GapEvery-1 {
				continue
			}
			kind := seedKinds[row%len(seedKinds)]
			item := model.GridItem{
				Kind:       kind,
				OwnerID:    owner,
				Access:     model.AccessPublic,
				Coordinate: model.Coordinate{Column: col, Row: row},
				Title:      fmt.Sprintf("%s %d:%d", kind, col, row),
			}
			if row%7 == 6 {
				item.Access = model.AccessSecret
			}
			switch kind {
			case model.KindVideo:
				item.MediaURL = fmt.Sprintf("https://media.example/%d/%d/master.m3u8", col, row)
			case model.KindImage:
				item.MediaURL = fmt.Sprintf("https://media.example/%d/%d.jpg", col, row)
			case model.KindHTML:
				item.Body = fmt.Sprintf("<p>slide %d of column %d</p>", row, col)
			}
			if _, err := s.InsertItem(ctx, item); err != nil {
				return written, fmt.Errorf("seed %d:%d: %w", col, row, err)
			}
			written++
		}
	}
	return written, nil
}
