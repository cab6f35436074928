package pagination

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Sternrassler/bulkfetch/pkg/artifact"
	"github.com/Sternrassler/bulkfetch/pkg/logging"
)

// ErrCountMismatch is matched by every *MismatchError.
var ErrCountMismatch = errors.New("declared total does not match unique ids")

// MismatchError reports a listing whose unique ID count differs from the
// total the endpoint declared.
type MismatchError struct {
	Declared int
	Unique   int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("declared total %d does not match %d unique ids", e.Declared, e.Unique)
}

// Is allows errors.Is(err, ErrCountMismatch).
func (e *MismatchError) Is(target error) bool {
	return target == ErrCountMismatch
}

// UniqueIDs extracts the ID at idPath from every item and returns the sorted
// distinct set. Items without a usable ID are skipped and counted.
func UniqueIDs(items []json.RawMessage, idPath string) (ids []int64, skipped int) {
	seen := make(map[int64]struct{}, len(items))
	for i, item := range items {
		id, err := artifact.IDAt(item, idPath)
		if err != nil {
			skipped++
			logger := logging.NewLogger(logging.ComponentPagination)
			logger.Warn().
				Int("index", i).
				Err(err).
				Msg("Skipping listing item without id")
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, skipped
}

// CheckCompleteness returns a *MismatchError unless unique == declared.
// A declared total of zero with items present is a mismatch too.
func CheckCompleteness(declared, unique int) error {
	if declared != unique {
		return &MismatchError{Declared: declared, Unique: unique}
	}
	return nil
}
