// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"categorytree/internal/models"
	"categorytree/internal/tree"
)

// fakeStore is an in-memory tree.Store for handler tests. Deleting a category
// turns its children into roots, as the PostgreSQL schema does.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.Category
	err    error

	// reads counts subtree and forest queries.
	reads int
	// afterRead, when set, runs once after the next subtree query has taken
	// its snapshot and released the lock.
	afterRead func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, rows: make(map[int64]models.Category)}
}

func (f *fakeStore) FindByID(_ context.Context, id int64) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeStore) FindParentID(_ context.Context, id int64) (*int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, false, nil
	}
	return c.ParentID, true, nil
}

func (f *fakeStore) FindWithChildren(_ context.Context, id int64, depth int) (*models.Node, error) {
	node, hook, err := f.snapshot(id, depth)
	if hook != nil {
		hook()
	}
	return node, err
}

func (f *fakeStore) snapshot(id int64, depth int) (*models.Node, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, nil, f.err
	}
	f.reads++
	hook := f.afterRead
	f.afterRead = nil
	c, ok := f.rows[id]
	if !ok {
		return nil, hook, nil
	}
	n := f.expand(c, depth)
	return &n, hook, nil
}

func (f *fakeStore) Tree(_ context.Context) ([]models.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.reads++
	roots := []models.Node{}
	for _, c := range f.sorted() {
		if c.IsRoot() {
			roots = append(roots, f.expand(c, len(f.rows)))
		}
	}
	return roots, nil
}

func (f *fakeStore) expand(c models.Category, depth int) models.Node {
	n := models.NewNode(c)
	if depth == 0 {
		return n
	}
	for _, child := range f.sorted() {
		if child.HasParent(c.ID) {
			n.Children = append(n.Children, f.expand(child, depth-1))
		}
	}
	return n
}

func (f *fakeStore) sorted() []models.Category {
	out := make([]models.Category, 0, len(f.rows))
	for _, c := range f.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeStore) Create(_ context.Context, name string, parentID *int64) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	c := models.Category{ID: f.nextID, Name: name, ParentID: parentID, CreatedAt: now, UpdatedAt: now}
	f.rows[c.ID] = c
	f.nextID++
	return &c, nil
}

func (f *fakeStore) UpdateParent(_ context.Context, id int64, parentID *int64) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	c.ParentID = parentID
	c.UpdatedAt = time.Now().UTC()
	f.rows[id] = c
	return &c, nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	delete(f.rows, id)
	for childID, child := range f.rows {
		if child.HasParent(id) {
			child.ParentID = nil
			f.rows[childID] = child
		}
	}
	return &c, nil
}

func (f *fakeStore) Atomic(_ context.Context, fn func(tree.Store) error) error {
	return fn(f)
}

// add inserts a category directly and returns its id.
func (f *fakeStore) add(name string, parentID *int64) int64 {
	c, _ := f.Create(context.Background(), name, parentID)
	return c.ID
}

func (f *fakeStore) parentOf(id int64) *int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].ParentID
}

func (f *fakeStore) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}
