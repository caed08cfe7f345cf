// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every *NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrCycleDetected is returned when a move would make a category its
	// own ancestor.
	ErrCycleDetected = errors.New("moving this category would create a cycle in the hierarchy")

	// ErrBrokenHierarchy is returned when the stored parent chain already
	// loops. It indicates corrupted data, not a client mistake.
	ErrBrokenHierarchy = errors.New("stored parent chain contains a loop")
)

// Entity names the role of a category that could not be found.
type Entity string

const (
	EntityCategory     Entity = "category"
	EntityParent       Entity = "parent category"
	EntityTargetParent Entity = "target parent category"
)

// NotFoundError reports a missing category in a given role.
type NotFoundError struct {
	Entity Entity
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %d not found", e.Entity, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) true for any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(entity Entity, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}
