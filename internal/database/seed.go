// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// seedTree is the development sample: root name to child names.
var seedTree = []struct {
	root     string
	children []string
}{
	{root: "movie", children: []string{"action", "comedy", "drama"}},
	{root: "music", children: []string{"jazz", "rock"}},
}

// Seed populates an empty categories table with a small sample forest.
// It is a no-op when any category exists.
func Seed(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return fmt.Errorf("seed check categories: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, entry := range seedTree {
		var rootID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO categories (name) VALUES ($1) RETURNING id`, entry.root,
		).Scan(&rootID)
		if err != nil {
			return fmt.Errorf("seed insert %s: %w", entry.root, err)
		}
		inserted++

		for _, child := range entry.children {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO categories (name, parent_id) VALUES ($1, $2)`, child, rootID,
			); err != nil {
				return fmt.Errorf("seed insert %s: %w", child, err)
			}
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with sample categories", "count", inserted)
	return nil
}
