package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// MaxRowsPerRequest is the most rows a single card query returns. Callers
// that need the full filtered set must page with offsets.
const MaxRowsPerRequest = 1000

// Card repository errors
var (
	ErrCardNotFound = errors.New("card not found")
)

// CardRepository defines data access for catalog printings
type CardRepository interface {
	ListPage(ctx context.Context, filter CardFilter, offset, limit int) ([]Card, error)
	SearchActiveByNames(ctx context.Context, fragments []string, offset, limit int) ([]Card, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Card, error)
	GetActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]Card, error)
	GetActiveByName(ctx context.Context, name string) ([]Card, error)
	Create(ctx context.Context, card *Card) error
	Update(ctx context.Context, card *Card) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// CardRepo implements CardRepository using PostgreSQL through sqlx
type CardRepo struct {
	db *sqlx.DB
}

// NewCardRepo creates a new CardRepo instance
func NewCardRepo(db *sqlx.DB) *CardRepo {
	return &CardRepo{db: db}
}

const cardColumns = `id, name, type, cost, attack, defense, description, image_file, rarity, expansion, race, is_active, created_at, updated_at`

func clampLimit(limit int) int {
	if limit < 1 || limit > MaxRowsPerRequest {
		return MaxRowsPerRequest
	}
	return limit
}

// ListPage returns one range of the filtered card set ordered by id
func (r *CardRepo) ListPage(ctx context.Context, filter CardFilter, offset, limit int) ([]Card, error) {
	var where []string
	var args []interface{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if !filter.IncludeInactive {
		where = append(where, "is_active = TRUE")
	}
	if filter.Expansion != "" {
		add("expansion = $%d", filter.Expansion)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.Race != "" {
		// race may hold several comma-joined values
		add("race ILIKE $%d", "%"+escapeLike(filter.Race)+"%")
	}
	if filter.Rarity != "" {
		add("rarity = $%d", filter.Rarity)
	}

	query := "SELECT " + cardColumns + " FROM cards"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, clampLimit(limit), offset)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var cards []Card
	if err := r.db.SelectContext(ctx, &cards, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

// SearchActiveByNames returns active cards whose name contains any of the
// fragments (case-insensitive)
func (r *CardRepo) SearchActiveByNames(ctx context.Context, fragments []string, offset, limit int) ([]Card, error) {
	if len(fragments) == 0 {
		return nil, nil
	}

	ors := make([]string, 0, len(fragments))
	args := make([]interface{}, 0, len(fragments)+2)
	for _, f := range fragments {
		args = append(args, "%"+escapeLike(f)+"%")
		ors = append(ors, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	args = append(args, clampLimit(limit), offset)

	query := "SELECT " + cardColumns + " FROM cards WHERE is_active = TRUE AND (" +
		strings.Join(ors, " OR ") + ")" +
		fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var cards []Card
	if err := r.db.SelectContext(ctx, &cards, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search cards by name: %w", err)
	}
	return cards, nil
}

// GetByID retrieves a card regardless of its active flag
func (r *CardRepo) GetByID(ctx context.Context, id uuid.UUID) (*Card, error) {
	var card Card
	err := r.db.GetContext(ctx, &card, "SELECT "+cardColumns+" FROM cards WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return &card, nil
}

// GetActiveByIDs retrieves the active cards among ids
func (r *CardRepo) GetActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT "+cardColumns+" FROM cards WHERE is_active = TRUE AND id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build card batch query: %w", err)
	}

	var cards []Card
	if err := r.db.SelectContext(ctx, &cards, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get cards by ids: %w", err)
	}
	return cards, nil
}

// GetActiveByName returns every active printing sharing the exact name
func (r *CardRepo) GetActiveByName(ctx context.Context, name string) ([]Card, error) {
	query := "SELECT " + cardColumns + " FROM cards WHERE is_active = TRUE AND name = $1 ORDER BY expansion, image_file"

	var cards []Card
	if err := r.db.SelectContext(ctx, &cards, query, name); err != nil {
		return nil, fmt.Errorf("failed to get card versions: %w", err)
	}
	return cards, nil
}

// Create inserts a new printing
func (r *CardRepo) Create(ctx context.Context, card *Card) error {
	now := time.Now().UTC()
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	card.CreatedAt = now
	card.UpdatedAt = now

	query := `
		INSERT INTO cards (id, name, type, cost, attack, defense, description, image_file, rarity, expansion, race, is_active, created_at, updated_at)
		VALUES (:id, :name, :type, :cost, :attack, :defense, :description, :image_file, :rarity, :expansion, :race, :is_active, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, card); err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// Update replaces every editable column of a printing
func (r *CardRepo) Update(ctx context.Context, card *Card) error {
	card.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE cards SET
			name = :name, type = :type, cost = :cost, attack = :attack, defense = :defense,
			description = :description, image_file = :image_file, rarity = :rarity,
			expansion = :expansion, race = :race, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, card)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrCardNotFound
	}
	return nil
}

// SetActive toggles the catalog visibility flag
func (r *CardRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.db.ExecContext(ctx, "UPDATE cards SET is_active = $1, updated_at = NOW() WHERE id = $2", active, id)
	if err != nil {
		return fmt.Errorf("failed to set card active flag: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrCardNotFound
	}
	return nil
}

// escapeLike escapes LIKE wildcards in user-provided text
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
