package sqlite3

import (
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
)

const fieldRowID = "rowid"

// InvalidCursorError is returned for cursors this package did not issue.
type InvalidCursorError struct {
	Cursor string
}

func (err InvalidCursorError) Error() string {
	return fmt.Sprintf("invalid cursor: %q", err.Cursor)
}

func (err InvalidCursorError) InvalidInput() bool { return true }

// paginate orders by insertion and fetches one extra row to detect a next
// page. The selected columns must start with rowid.
func paginate(q sq.SelectBuilder, cursor string, limit int) (sq.SelectBuilder, error) {
	if cursor != "" {
		after, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil || after < 0 {
			return q, &InvalidCursorError{Cursor: cursor}
		}

		q = q.Where(sq.Gt{fieldRowID: after})
	}

	return q.OrderBy(fieldRowID + " ASC").Limit(uint64(limit) + 1), nil
}

// trimPage cuts the extra row fetched by paginate and returns the cursor of
// the next page, or "" when there is none.
func trimPage[T any](items []T, rowIDs []int64, limit int) ([]T, string) {
	if len(items) <= limit {
		return items, ""
	}

	return items[:limit], strconv.FormatInt(rowIDs[limit-1], 10)
}
