package sqlite3

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
)

const (
	fieldID     = "id"
	fieldUserID = "user_id"
)

// A set table stores one (key, user_id) row per member.

// addToSet adds userID to the set of every key that still exists as an id in
// sourceTable. Unknown keys are skipped.
func addToSet(ctx context.Context, db *sql.DB, table, keyField, sourceTable string, keys []string, userID string) error {
	if len(keys) == 0 {
		return nil
	}

	existing := sq.Select(fieldID).
		Column(sq.Expr("?", userID)).
		From(sourceTable).
		Where(sq.Eq{fieldID: keys})

	// The WHERE clause keeps sqlite from reading ON CONFLICT as a join constraint.
	q := sq.Insert(table).
		Columns(keyField, fieldUserID).
		Select(existing).
		Suffix("ON CONFLICT DO NOTHING").
		RunWith(db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert into %s: %w", table, err)
	}

	return nil
}

func addMembersToSet(ctx context.Context, db *sql.DB, table, keyField, key string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	q := sq.Insert(table).Columns(keyField, fieldUserID)

	for _, userID := range userIDs {
		q = q.Values(key, userID)
	}

	q = q.Suffix("ON CONFLICT DO NOTHING").RunWith(db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert into %s: %w", table, err)
	}

	return nil
}

func removeFromSet(ctx context.Context, db *sql.DB, table, keyField, key string, userID string) error {
	q := sq.Delete(table).
		Where(sq.Eq{keyField: key, fieldUserID: userID}).
		RunWith(db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec delete from %s: %w", table, err)
	}

	return nil
}

func clearSet(ctx context.Context, db *sql.DB, table, keyField, key string) error {
	q := sq.Delete(table).Where(sq.Eq{keyField: key}).RunWith(db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec delete from %s: %w", table, err)
	}

	return nil
}

// loadSets returns the members of every key. Keys without members map to an
// empty slice.
func loadSets(ctx context.Context, db *sql.DB, table, keyField string, keys []string) (map[string][]string, error) {
	res := make(map[string][]string, len(keys))
	for _, key := range keys {
		res[key] = []string{}
	}

	if len(keys) == 0 {
		return res, nil
	}

	q := sq.Select(keyField, fieldUserID).
		From(table).
		Where(sq.Eq{keyField: keys}).
		OrderBy(fieldRowID + " ASC").
		RunWith(db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	for rows.Next() {
		var key, userID string

		err := rows.Scan(&key, &userID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}

		res[key] = append(res[key], userID)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return res, nil
}

func loadSet(ctx context.Context, db *sql.DB, table, keyField, key string) ([]string, error) {
	sets, err := loadSets(ctx, db, table, keyField, []string{key})
	if err != nil {
		return nil, err
	}

	return sets[key], nil
}

// queryStrings runs a single-column query and collects the values.
func queryStrings(ctx context.Context, q sq.SelectBuilder, db *sql.DB) ([]string, error) {
	rows, err := q.RunWith(db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	res := make([]string, 0)

	for rows.Next() {
		var s string

		err := rows.Scan(&s)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		res = append(res, s)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return res, nil
}

func queryInt(ctx context.Context, q sq.SelectBuilder, db *sql.DB) (int, error) {
	var n int

	err := q.RunWith(db).QueryRowContext(ctx).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to scan count: %w", err)
	}

	return n, nil
}
