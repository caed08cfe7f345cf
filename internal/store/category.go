// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"categorytree/internal/models"
	"categorytree/internal/tree"
)

// CategoryStore manages categories in PostgreSQL. It satisfies tree.Store.
type CategoryStore struct {
	db *sql.DB
	q  querier
}

// NewCategoryStore returns a new CategoryStore.
func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db, q: db}
}

const categoryColumns = `id, name, parent_id, created_at, updated_at`

// scanCategory scans a row into a Category struct.
func scanCategory(scanner interface{ Scan(...any) error }) (*models.Category, error) {
	var c models.Category
	if err := scanner.Scan(&c.ID, &c.Name, &c.ParentID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByID retrieves a category by ID. Returns nil if not found.
func (s *CategoryStore) FindByID(ctx context.Context, id int64) (*models.Category, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by id: %w", classify(err))
	}
	return c, nil
}

// FindParentID returns the parent id of the category. found is false when
// the category does not exist.
func (s *CategoryStore) FindParentID(ctx context.Context, id int64) (parentID *int64, found bool, err error) {
	err = s.q.QueryRowContext(ctx, `SELECT parent_id FROM categories WHERE id = $1`, id).Scan(&parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find category parent: %w", classify(err))
	}
	return parentID, true, nil
}

// FindWithChildren loads the category and its descendants down to depth
// levels below it. Nodes on the last level have an empty Children list.
// Returns nil if the category does not exist.
func (s *CategoryStore) FindWithChildren(ctx context.Context, id int64, depth int) (*models.Node, error) {
	rows, err := s.q.QueryContext(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT id, name, parent_id, created_at, updated_at, 0 AS depth
			FROM categories
			WHERE id = $1
			UNION ALL
			SELECT c.id, c.name, c.parent_id, c.created_at, c.updated_at, st.depth + 1
			FROM categories c
			JOIN subtree st ON c.parent_id = st.id
			WHERE st.depth < $2
		)
		SELECT id, name, parent_id, created_at, updated_at
		FROM subtree
		ORDER BY depth, id
	`, id, depth)
	if err != nil {
		return nil, fmt.Errorf("find category subtree: %w", classify(err))
	}
	defer rows.Close()

	var flat []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		flat = append(flat, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find category subtree: %w", classify(err))
	}
	if len(flat) == 0 {
		return nil, nil
	}

	// The CTE orders by depth, so the requested category comes first.
	root := models.NewNode(flat[0])
	root.Children = buildTree(flat[1:], &root.ID)
	return &root, nil
}

// List returns every category ordered by id.
func (s *CategoryStore) List(ctx context.Context) ([]models.Category, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", classify(err))
	}
	defer rows.Close()

	var items []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// Tree returns the whole forest as nested nodes, roots first.
func (s *CategoryStore) Tree(ctx context.Context) ([]models.Node, error) {
	flat, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return buildTree(flat, nil), nil
}

// buildTree recursively builds a tree from a flat list.
func buildTree(flat []models.Category, parentID *int64) []models.Node {
	result := []models.Node{}
	for _, c := range flat {
		if ptrEqual(c.ParentID, parentID) {
			n := models.NewNode(c)
			n.Children = buildTree(flat, &c.ID)
			result = append(result, n)
		}
	}
	return result
}

// ptrEqual compares two *int64 for equality (both nil or same value).
func ptrEqual(a, b *int64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// Create inserts a new category and returns it.
func (s *CategoryStore) Create(ctx context.Context, name string, parentID *int64) (*models.Category, error) {
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO categories (name, parent_id)
		VALUES ($1, $2)
		RETURNING `+categoryColumns,
		name, parentID,
	)
	c, err := scanCategory(row)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", classify(err))
	}
	return c, nil
}

// UpdateParent sets parent_id and refreshes updated_at. Returns nil if the
// category does not exist.
func (s *CategoryStore) UpdateParent(ctx context.Context, id int64, parentID *int64) (*models.Category, error) {
	row := s.q.QueryRowContext(ctx, `
		UPDATE categories SET parent_id = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+categoryColumns,
		parentID, id,
	)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update category parent: %w", classify(err))
	}
	return c, nil
}

// Delete removes a category by ID and returns the deleted row, or nil if it
// did not exist. Children become roots (ON DELETE SET NULL).
func (s *CategoryStore) Delete(ctx context.Context, id int64) (*models.Category, error) {
	row := s.q.QueryRowContext(ctx, `DELETE FROM categories WHERE id = $1 RETURNING `+categoryColumns, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete category: %w", classify(err))
	}
	return c, nil
}

// Atomic runs fn inside a serializable transaction. fn receives a store bound
// to the transaction; the transaction commits only if fn returns nil.
func (s *CategoryStore) Atomic(ctx context.Context, fn func(tree.Store) error) error {
	if s.db == nil {
		// Already inside a transaction.
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", classify(err))
	}
	defer tx.Rollback()

	if err := fn(&CategoryStore{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", classify(err))
	}
	return nil
}
