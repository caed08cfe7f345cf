// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store implements PostgreSQL persistence for the category forest.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConflict is returned when a write lost a race with a concurrent
// transaction. The caller may retry the whole operation.
var ErrConflict = errors.New("concurrent modification")

// PostgreSQL error codes that indicate a lost race rather than a fault.
const (
	codeSerializationFailure = "40001"
	codeForeignKeyViolation  = "23503"
)

// querier is the subset of *sql.DB and *sql.Tx used by the stores.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// classify maps driver errors that signal a concurrent modification to
// ErrConflict, keeping the driver error in the chain.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeForeignKeyViolation:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
	}
	return err
}
