// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package tree

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"categorytree/internal/models"
)

// memStore is an in-memory Store used by the Manager tests. It mirrors the
// PostgreSQL schema: ids are assigned sequentially and deleting a category
// turns its children into roots.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.Category

	creates, updates, deletes int
	failWith                  error

	// failParentLookup makes FindParentID fail, so errors inside the cycle
	// walk can be exercised after the existence checks have passed.
	failParentLookup error
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, rows: make(map[int64]models.Category)}
}

func (m *memStore) FindByID(_ context.Context, id int64) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	c, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStore) FindParentID(_ context.Context, id int64) (*int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, false, m.failWith
	}
	if m.failParentLookup != nil {
		return nil, false, m.failParentLookup
	}
	c, ok := m.rows[id]
	if !ok {
		return nil, false, nil
	}
	return c.ParentID, true, nil
}

func (m *memStore) FindWithChildren(_ context.Context, id int64, depth int) (*models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	n := m.expand(c, depth)
	return &n, nil
}

func (m *memStore) Tree(_ context.Context) ([]models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roots := []models.Node{}
	for _, c := range m.sorted() {
		if c.ParentID == nil {
			roots = append(roots, m.expand(c, len(m.rows)))
		}
	}
	return roots, nil
}

// expand builds the node for c with depth levels of children. Callers hold mu.
func (m *memStore) expand(c models.Category, depth int) models.Node {
	n := models.NewNode(c)
	if depth == 0 {
		return n
	}
	for _, child := range m.sorted() {
		if child.HasParent(c.ID) {
			n.Children = append(n.Children, m.expand(child, depth-1))
		}
	}
	return n
}

func (m *memStore) sorted() []models.Category {
	out := make([]models.Category, 0, len(m.rows))
	for _, c := range m.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) Create(_ context.Context, name string, parentID *int64) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	c := models.Category{ID: m.nextID, Name: name, ParentID: copyID(parentID), CreatedAt: now, UpdatedAt: now}
	m.rows[c.ID] = c
	m.nextID++
	m.creates++
	return &c, nil
}

func (m *memStore) UpdateParent(_ context.Context, id int64, parentID *int64) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	c.ParentID = copyID(parentID)
	c.UpdatedAt = time.Now()
	m.rows[id] = c
	m.updates++
	return &c, nil
}

func (m *memStore) Delete(_ context.Context, id int64) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	delete(m.rows, id)
	for childID, child := range m.rows {
		if child.HasParent(id) {
			child.ParentID = nil
			m.rows[childID] = child
		}
	}
	m.deletes++
	return &c, nil
}

func (m *memStore) Atomic(_ context.Context, fn func(Store) error) error {
	return fn(m)
}

func (m *memStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates + m.updates + m.deletes
}

// put stores c verbatim, bypassing the Manager, so tests can build any shape.
func (m *memStore) put(c models.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[c.ID] = c
	if c.ID >= m.nextID {
		m.nextID = c.ID + 1
	}
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func idPtr(id int64) *int64 { return &id }

var errStoreDown = errors.New("store unavailable")
