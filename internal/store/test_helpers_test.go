package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

var testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp dir with
// deterministic IDs and timestamps.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	n := 0
	s, err := Open(path,
		WithClock(func() time.Time { return testEpoch }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		}),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertColumn writes n items into column at rows 0, step, 2*step, ...
// with IDs "<prefix><row>".
func insertColumn(t *testing.T, s *Store, column, n, step int, prefix string) {
	t.Helper()
	for i := 0; i < n; i++ {
		row := i * step
		_, err := s.InsertItem(context.Background(), model.GridItem{
			ID:         fmt.Sprintf("%s%03d", prefix, row),
			Kind:       model.KindVideo,
			OwnerID:    "owner",
			Coordinate: model.Coordinate{Column: column, Row: row},
		})
		if err != nil {
			t.Fatalf("InsertItem(%d:%d) failed: %v", column, row, err)
		}
	}
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
