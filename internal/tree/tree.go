// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package tree owns the shape of the category forest. The Manager validates
// parents, assembles subtrees and re-parents categories without ever letting
// a category become its own ancestor. It keeps no state between calls; all
// data lives behind the Store.
package tree

import (
	"context"
	"log/slog"

	"categorytree/internal/models"
)

// SubtreeDepth is how many levels below the requested category FindSubtree
// loads. Nodes on the last level are returned with no children.
const SubtreeDepth = 2

// Store is the persistence capability the Manager needs. Lookups return
// (nil, nil) when the category does not exist.
type Store interface {
	FindByID(ctx context.Context, id int64) (*models.Category, error)
	FindParentID(ctx context.Context, id int64) (parentID *int64, found bool, err error)
	FindWithChildren(ctx context.Context, id int64, depth int) (*models.Node, error)
	Tree(ctx context.Context) ([]models.Node, error)
	Create(ctx context.Context, name string, parentID *int64) (*models.Category, error)
	UpdateParent(ctx context.Context, id int64, parentID *int64) (*models.Category, error)
	Delete(ctx context.Context, id int64) (*models.Category, error)

	// Atomic runs fn so that its reads and writes commit together or not at all.
	Atomic(ctx context.Context, fn func(Store) error) error
}

// Manager implements the category tree operations on top of a Store.
type Manager struct {
	store Store
}

// NewManager returns a Manager backed by s.
func NewManager(s Store) *Manager {
	return &Manager{store: s}
}

// Create inserts a category named name under parentID, or as a root when
// parentID is nil. A non-nil parentID must reference an existing category.
func (m *Manager) Create(ctx context.Context, name string, parentID *int64) (created *models.Category, err error) {
	defer func() { observe("create", err) }()

	err = m.store.Atomic(ctx, func(s Store) error {
		if parentID != nil {
			parent, err := s.FindByID(ctx, *parentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return notFound(EntityParent, *parentID)
			}
		}

		c, err := s.Create(ctx, name, parentID)
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("category created", "id", created.ID, "parent_id", derefID(created.ParentID))
	return created, nil
}

// FindSubtree returns the category with its children and grandchildren.
func (m *Manager) FindSubtree(ctx context.Context, id int64) (node *models.Node, err error) {
	defer func() { observe("find_subtree", err) }()

	node, err = m.store.FindWithChildren(ctx, id, SubtreeDepth)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, notFound(EntityCategory, id)
	}
	return node, nil
}

// Forest returns every root with all of its descendants.
func (m *Manager) Forest(ctx context.Context) (roots []models.Node, err error) {
	defer func() { observe("forest", err) }()
	return m.store.Tree(ctx)
}

// Remove deletes the category and returns it as it was before deletion.
// Its children are not deleted; the store turns them into roots.
func (m *Manager) Remove(ctx context.Context, id int64) (removed *models.Category, err error) {
	defer func() { observe("remove", err) }()

	err = m.store.Atomic(ctx, func(s Store) error {
		existing, err := s.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return notFound(EntityCategory, id)
		}

		removed, err = s.Delete(ctx, id)
		if err != nil {
			return err
		}
		if removed == nil {
			return notFound(EntityCategory, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("category removed", "id", id)
	return removed, nil
}

// Move re-parents the category under targetParentID, or makes it a root when
// targetParentID is nil. The move is rejected with ErrCycleDetected when the
// target is the category itself or one of its descendants.
func (m *Manager) Move(ctx context.Context, id int64, targetParentID *int64) (moved *models.Category, err error) {
	defer func() { observe("move", err) }()

	err = m.store.Atomic(ctx, func(s Store) error {
		existing, err := s.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return notFound(EntityCategory, id)
		}

		if targetParentID != nil {
			target, err := s.FindByID(ctx, *targetParentID)
			if err != nil {
				return err
			}
			if target == nil {
				return notFound(EntityTargetParent, *targetParentID)
			}
			if err := validateNoCycle(ctx, s, id, *targetParentID); err != nil {
				return err
			}
		}

		moved, err = s.UpdateParent(ctx, id, targetParentID)
		if err != nil {
			return err
		}
		if moved == nil {
			return notFound(EntityCategory, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("category moved", "id", id, "parent_id", derefID(targetParentID))
	return moved, nil
}

// validateNoCycle walks up the parent chain from targetParentID and fails
// if it reaches sourceID. A missing ancestor or a root ends the walk.
func validateNoCycle(ctx context.Context, s Store, sourceID, targetParentID int64) error {
	current := &targetParentID
	seen := make(map[int64]struct{})
	steps := 0
	defer func() { cycleWalkSteps.Observe(float64(steps)) }()

	for current != nil {
		steps++
		if *current == sourceID {
			return ErrCycleDetected
		}
		if _, ok := seen[*current]; ok {
			return ErrBrokenHierarchy
		}
		seen[*current] = struct{}{}

		parentID, found, err := s.FindParentID(ctx, *current)
		if err != nil {
			return err
		}
		if !found {
			slog.Warn("cycle check reached a missing category", "id", *current)
			return nil
		}
		current = parentID
	}
	return nil
}

// derefID formats an optional id for logging.
func derefID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
