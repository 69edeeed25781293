package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// ErrExpansionAlreadyExists is returned when creating a duplicate expansion
var ErrExpansionAlreadyExists = errors.New("expansion already exists")

// ExpansionRepository defines data access for card sets
type ExpansionRepository interface {
	List(ctx context.Context) ([]Expansion, error)
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, expansion *Expansion) error
}

// ExpansionRepo implements ExpansionRepository using PostgreSQL through sqlx
type ExpansionRepo struct {
	db *sqlx.DB
}

// NewExpansionRepo creates a new ExpansionRepo instance
func NewExpansionRepo(db *sqlx.DB) *ExpansionRepo {
	return &ExpansionRepo{db: db}
}

// List returns every expansion in display order
func (r *ExpansionRepo) List(ctx context.Context) ([]Expansion, error) {
	var expansions []Expansion
	err := r.db.SelectContext(ctx, &expansions, `SELECT name, display_order FROM expansions ORDER BY display_order, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list expansions: %w", err)
	}
	return expansions, nil
}

// Exists reports whether an expansion with the exact name is registered
func (r *ExpansionRepo) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM expansions WHERE name = $1)`, name)
	if err != nil {
		return false, fmt.Errorf("failed to check expansion: %w", err)
	}
	return exists, nil
}

// Create registers an expansion
func (r *ExpansionRepo) Create(ctx context.Context, expansion *Expansion) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO expansions (name, display_order) VALUES (:name, :display_order)`, expansion)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrExpansionAlreadyExists
		}
		return fmt.Errorf("failed to create expansion: %w", err)
	}
	return nil
}
