// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package models defines the domain types shared by the store, tree and
// handler layers.
package models

import "time"

// Category is a named node in the category forest. A nil ParentID marks a root.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parentId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// HasParent reports whether the category's parent is id.
func (c *Category) HasParent(id int64) bool {
	return c.ParentID != nil && *c.ParentID == id
}

// Node is a category together with the children loaded by a tree query.
// Children is never nil so that leaves serialize as an empty list.
type Node struct {
	Category
	Children []Node `json:"children"`
}

// NewNode wraps c as a leaf node.
func NewNode(c Category) Node {
	return Node{Category: c, Children: []Node{}}
}
