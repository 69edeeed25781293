package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// BanlistRepository defines data access for banlist and rotation records
type BanlistRepository interface {
	ListBanlist(ctx context.Context, format string) ([]BanlistEntry, error)
	UpsertBanlist(ctx context.Context, entry *BanlistEntry) error
	DeleteBanlist(ctx context.Context, cardName, format string) error

	ListRotation(ctx context.Context, format string) ([]RotationEntry, error)
	UpsertRotation(ctx context.Context, entry *RotationEntry) error
	DeleteRotation(ctx context.Context, cardName, format string) error
}

// BanlistRepo implements BanlistRepository using PostgreSQL through sqlx
type BanlistRepo struct {
	db *sqlx.DB
}

// NewBanlistRepo creates a new BanlistRepo instance
func NewBanlistRepo(db *sqlx.DB) *BanlistRepo {
	return &BanlistRepo{db: db}
}

// ListBanlist returns the entries of one format, or of all formats when
// format is empty, in insertion order
func (r *BanlistRepo) ListBanlist(ctx context.Context, format string) ([]BanlistEntry, error) {
	query := `SELECT card_name, format, status, max_copies, updated_at FROM banlist`
	var args []interface{}
	if format != "" {
		query += ` WHERE format = $1`
		args = append(args, format)
	}
	query += ` ORDER BY id`

	var entries []BanlistEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list banlist: %w", err)
	}
	return entries, nil
}

// UpsertBanlist inserts or replaces the entry for (card_name, format)
func (r *BanlistRepo) UpsertBanlist(ctx context.Context, entry *BanlistEntry) error {
	query := `
		INSERT INTO banlist (card_name, format, status, max_copies)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (card_name, format)
		DO UPDATE SET status = EXCLUDED.status, max_copies = EXCLUDED.max_copies, updated_at = NOW()
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, entry.CardName, entry.Format, entry.Status, entry.MaxCopies).
		Scan(&entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert banlist entry: %w", err)
	}
	return nil
}

// DeleteBanlist removes an entry; a missing row is not an error
func (r *BanlistRepo) DeleteBanlist(ctx context.Context, cardName, format string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM banlist WHERE card_name = $1 AND format = $2`, cardName, format); err != nil {
		return fmt.Errorf("failed to delete banlist entry: %w", err)
	}
	return nil
}

// ListRotation returns the rotation entries of one format, or all
func (r *BanlistRepo) ListRotation(ctx context.Context, format string) ([]RotationEntry, error) {
	query := `SELECT card_name, format, rotation_expansion, updated_at FROM rotation`
	var args []interface{}
	if format != "" {
		query += ` WHERE format = $1`
		args = append(args, format)
	}
	query += ` ORDER BY id`

	var entries []RotationEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list rotation: %w", err)
	}
	return entries, nil
}

// UpsertRotation inserts or replaces the rotation entry for (card_name, format)
func (r *BanlistRepo) UpsertRotation(ctx context.Context, entry *RotationEntry) error {
	query := `
		INSERT INTO rotation (card_name, format, rotation_expansion)
		VALUES ($1, $2, $3)
		ON CONFLICT (card_name, format)
		DO UPDATE SET rotation_expansion = EXCLUDED.rotation_expansion, updated_at = NOW()
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, entry.CardName, entry.Format, entry.RotationExpansion).
		Scan(&entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert rotation entry: %w", err)
	}
	return nil
}

// DeleteRotation removes a rotation entry; a missing row is not an error
func (r *BanlistRepo) DeleteRotation(ctx context.Context, cardName, format string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rotation WHERE card_name = $1 AND format = $2`, cardName, format); err != nil {
		return fmt.Errorf("failed to delete rotation entry: %w", err)
	}
	return nil
}
