package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deck repository errors
var (
	ErrDeckNotFound = errors.New("deck not found")
)

// Community listing sort keys
const (
	DeckSortRecent  = "recent"
	DeckSortPopular = "popular"
	DeckSortName    = "name"
)

// DeckRepository defines data access for decks
type DeckRepository interface {
	Create(ctx context.Context, deck *Deck) error
	GetByID(ctx context.Context, id uuid.UUID) (*Deck, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Deck, error)
	Update(ctx context.Context, deck *Deck) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListPublic(ctx context.Context, params ListPublicDecksParams) ([]DeckSummary, int, error)
}

// DeckRepo implements DeckRepository using PostgreSQL
type DeckRepo struct {
	pool *pgxpool.Pool
}

// NewDeckRepo creates a new DeckRepo instance
func NewDeckRepo(pool *pgxpool.Pool) *DeckRepo {
	return &DeckRepo{pool: pool}
}

const deckColumns = `d.id, d.name, d.description, d.user_id, d.race, d.format, d.is_public, d.cards, d.sideboard, d.created_at, d.updated_at`

func deckFields(d *Deck) []interface{} {
	return []interface{}{
		&d.ID, &d.Name, &d.Description, &d.UserID, &d.Race, &d.Format,
		&d.IsPublic, &d.Cards, &d.Sideboard, &d.CreatedAt, &d.UpdatedAt,
	}
}

func nonNilLines(lines []DeckCard) []DeckCard {
	if lines == nil {
		return []DeckCard{}
	}
	return lines
}

// Create inserts a new deck
func (r *DeckRepo) Create(ctx context.Context, deck *Deck) error {
	query := `
		INSERT INTO decks (id, name, description, user_id, race, format, is_public, cards, sideboard, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	if deck.ID == uuid.Nil {
		deck.ID = uuid.New()
	}
	deck.Cards = nonNilLines(deck.Cards)
	deck.Sideboard = nonNilLines(deck.Sideboard)

	err := r.pool.QueryRow(ctx, query,
		deck.ID,
		deck.Name,
		deck.Description,
		deck.UserID,
		deck.Race,
		deck.Format,
		deck.IsPublic,
		deck.Cards,
		deck.Sideboard,
		now,
		now,
	).Scan(&deck.CreatedAt, &deck.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deck: %w", err)
	}

	return nil
}

// GetByID retrieves a deck by its ID
func (r *DeckRepo) GetByID(ctx context.Context, id uuid.UUID) (*Deck, error) {
	query := `SELECT ` + deckColumns + ` FROM decks d WHERE d.id = $1`

	deck := &Deck{}
	err := r.pool.QueryRow(ctx, query, id).Scan(deckFields(deck)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeckNotFound
		}
		return nil, fmt.Errorf("failed to get deck: %w", err)
	}

	return deck, nil
}

// ListByUser returns a user's decks, most recently updated first
func (r *DeckRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]Deck, error) {
	query := `SELECT ` + deckColumns + ` FROM decks d WHERE d.user_id = $1 ORDER BY d.updated_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decks: %w", err)
	}
	defer rows.Close()

	decks := []Deck{}
	for rows.Next() {
		var deck Deck
		if err := rows.Scan(deckFields(&deck)...); err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		decks = append(decks, deck)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decks: %w", err)
	}

	return decks, nil
}

// Update replaces the editable fields of a deck
func (r *DeckRepo) Update(ctx context.Context, deck *Deck) error {
	query := `
		UPDATE decks
		SET name = $1, description = $2, race = $3, format = $4, is_public = $5,
			cards = $6, sideboard = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at
	`

	deck.Cards = nonNilLines(deck.Cards)
	deck.Sideboard = nonNilLines(deck.Sideboard)

	err := r.pool.QueryRow(ctx, query,
		deck.Name,
		deck.Description,
		deck.Race,
		deck.Format,
		deck.IsPublic,
		deck.Cards,
		deck.Sideboard,
		deck.ID,
	).Scan(&deck.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDeckNotFound
		}
		return fmt.Errorf("failed to update deck: %w", err)
	}

	return nil
}

// Delete removes a deck and, by cascade, its likes
func (r *DeckRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM decks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrDeckNotFound
	}

	return nil
}

// ListPublic returns one page of public decks with owner names and like
// counts, plus the total number of matching decks
func (r *DeckRepo) ListPublic(ctx context.Context, params ListPublicDecksParams) ([]DeckSummary, int, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 12
	}
	if params.Limit > 50 {
		params.Limit = 50
	}

	baseQuery := `
		FROM decks d
		JOIN users u ON u.id = d.user_id
		WHERE d.is_public = TRUE
	`
	args := []interface{}{}
	argIdx := 1

	if params.Race != "" {
		baseQuery += fmt.Sprintf(" AND d.race = $%d", argIdx)
		args = append(args, params.Race)
		argIdx++
	}

	var totalCount int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count public decks: %w", err)
	}

	selectQuery := `
		SELECT ` + deckColumns + `, u.username,
			(SELECT COUNT(*) FROM deck_likes l WHERE l.deck_id = d.id) AS likes_count
	` + baseQuery

	switch params.SortBy {
	case DeckSortPopular:
		selectQuery += " ORDER BY likes_count DESC, d.created_at DESC"
	case DeckSortName:
		selectQuery += " ORDER BY d.name ASC, d.created_at DESC"
	default:
		selectQuery += " ORDER BY d.created_at DESC"
	}

	offset := pageOffset(params.Page, params.Limit)
	selectQuery += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, params.Limit, offset)

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query public decks: %w", err)
	}
	defer rows.Close()

	decks := []DeckSummary{}
	for rows.Next() {
		var s DeckSummary
		dest := append(deckFields(&s.Deck), &s.Username, &s.LikesCount)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan public deck: %w", err)
		}
		decks = append(decks, s)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating public decks: %w", err)
	}

	return decks, totalCount, nil
}

// pageOffset turns a 1-based page into a row offset. Pages past the int64
// range saturate so Postgres returns an empty page instead of rejecting a
// negative OFFSET.
func pageOffset(page, limit int) int64 {
	if page < 1 || limit < 1 {
		return 0
	}
	p, l := int64(page-1), int64(limit)
	if p > math.MaxInt64/l {
		return math.MaxInt64
	}
	return p * l
}
