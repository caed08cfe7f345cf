// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON HTTP API for the category tree.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"categorytree/internal/cache"
	"categorytree/internal/tree"
)

// Categories groups the category endpoints. Subtree and forest reads go
// through the Valkey cache when one is configured; every successful mutation
// clears it.
type Categories struct {
	manager *tree.Manager
	cache   *cache.SubtreeCache
}

// NewCategories creates the category handler group. subtreeCache may be nil
// when Valkey is not configured.
func NewCategories(manager *tree.Manager, subtreeCache *cache.SubtreeCache) *Categories {
	return &Categories{manager: manager, cache: subtreeCache}
}

// Create handles POST /category.
func (h *Categories) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	created, err := h.manager.Create(r.Context(), req.Name, req.ParentID)
	if err != nil {
		writeManagerError(w, r, err)
		return
	}

	h.invalidate(r.Context())
	writeJSON(w, http.StatusCreated, created)
}

// Get handles GET /category/{id} and returns the category with two levels
// of children.
func (h *Categories) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	gen, cached := h.generation(ctx)
	if cached {
		if node, hit := h.cache.GetSubtree(ctx, gen, id); hit {
			writeJSON(w, http.StatusOK, node)
			return
		}
	}

	node, err := h.manager.FindSubtree(ctx, id)
	if err != nil {
		writeManagerError(w, r, err)
		return
	}

	if cached {
		h.cache.SetSubtree(ctx, gen, node)
	}
	writeJSON(w, http.StatusOK, node)
}

// Delete handles DELETE /category/{id} and returns the removed category.
func (h *Categories) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	removed, err := h.manager.Remove(r.Context(), id)
	if err != nil {
		writeManagerError(w, r, err)
		return
	}

	h.invalidate(r.Context())
	writeJSON(w, http.StatusOK, removed)
}

// Move handles PATCH /category/{id}/move. A null targetParentId turns the
// category into a root.
func (h *Categories) Move(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req moveRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	moved, err := h.manager.Move(r.Context(), id, req.TargetParentID.Value)
	if err != nil {
		writeManagerError(w, r, err)
		return
	}

	h.invalidate(r.Context())
	writeJSON(w, http.StatusOK, moved)
}

// Forest handles GET /categories and returns every root with all of its
// descendants.
func (h *Categories) Forest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	gen, cached := h.generation(ctx)
	if cached {
		if roots, hit := h.cache.GetForest(ctx, gen); hit {
			writeJSON(w, http.StatusOK, roots)
			return
		}
	}

	roots, err := h.manager.Forest(ctx)
	if err != nil {
		writeManagerError(w, r, err)
		return
	}

	if cached {
		h.cache.SetForest(ctx, gen, roots)
	}
	writeJSON(w, http.StatusOK, roots)
}

// generation returns the cache generation to read and write under. It must
// be taken before the database read so a concurrent invalidation hides what
// this request writes back.
func (h *Categories) generation(ctx context.Context) (cache.Generation, bool) {
	if h.cache == nil {
		return 0, false
	}
	return h.cache.Generation(ctx)
}

// invalidate clears the cache after a committed mutation. The client may
// already be gone, so the request's cancellation does not apply.
func (h *Categories) invalidate(ctx context.Context) {
	if h.cache != nil {
		h.cache.InvalidateAll(context.WithoutCancel(ctx))
	}
}

// parseID reads the {id} URL parameter. On failure it writes a 400 and
// returns false.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}
