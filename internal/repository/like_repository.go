package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LikeRepository defines data access for the deck like toggle relation
type LikeRepository interface {
	Exists(ctx context.Context, deckID, userID uuid.UUID) (bool, error)
	Create(ctx context.Context, deckID, userID uuid.UUID) error
	Delete(ctx context.Context, deckID, userID uuid.UUID) error
	CountByDeck(ctx context.Context, deckID uuid.UUID) (int, error)
	LikedDeckIDs(ctx context.Context, userID uuid.UUID, deckIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

// LikeRepo implements LikeRepository using PostgreSQL
type LikeRepo struct {
	pool *pgxpool.Pool
}

// NewLikeRepo creates a new LikeRepo instance
func NewLikeRepo(pool *pgxpool.Pool) *LikeRepo {
	return &LikeRepo{pool: pool}
}

// Exists reports whether the user has liked the deck
func (r *LikeRepo) Exists(ctx context.Context, deckID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM deck_likes WHERE deck_id = $1 AND user_id = $2)`,
		deckID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return exists, nil
}

// Create adds a like; liking twice is a no-op
func (r *LikeRepo) Create(ctx context.Context, deckID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deck_likes (id, deck_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (deck_id, user_id) DO NOTHING
	`, uuid.New(), deckID, userID)
	if err != nil {
		return fmt.Errorf("failed to create like: %w", err)
	}
	return nil
}

// Delete removes a like if present
func (r *LikeRepo) Delete(ctx context.Context, deckID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM deck_likes WHERE deck_id = $1 AND user_id = $2`, deckID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	return nil
}

// CountByDeck returns the derived like count of a deck
func (r *LikeRepo) CountByDeck(ctx context.Context, deckID uuid.UUID) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deck_likes WHERE deck_id = $1`, deckID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return count, nil
}

// LikedDeckIDs returns the subset of deckIDs the user has liked
func (r *LikeRepo) LikedDeckIDs(ctx context.Context, userID uuid.UUID, deckIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	liked := make(map[uuid.UUID]bool, len(deckIDs))
	if len(deckIDs) == 0 {
		return liked, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT deck_id FROM deck_likes WHERE user_id = $1 AND deck_id = ANY($2)`,
		userID, deckIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query liked decks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan liked deck: %w", err)
		}
		liked[id] = true
	}

	return liked, rows.Err()
}
