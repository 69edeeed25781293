// Package catalog answers filtered, paginated, accent-insensitive queries over
// the full card set and owns card and expansion administration.
package catalog

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/tcglibrary/catalog/internal/apperr"
	"github.com/tcglibrary/catalog/internal/metrics"
	"github.com/tcglibrary/catalog/internal/repository"
	"github.com/tcglibrary/catalog/internal/textnorm"
	"github.com/tcglibrary/catalog/internal/validation"
)

// Pagination defaults
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxBatchIDs bounds POST /cards/batch
	MaxBatchIDs = 500
)

// Catalog errors
var (
	ErrCardNotFound      = apperr.NotFound("Card not found")
	ErrExpansionNotFound = apperr.Field("expansion", "expansion does not exist")
	ErrExpansionExists   = apperr.Conflict("EXPANSION_EXISTS", "Expansion already exists")
	ErrNameRequired      = apperr.Field("name", "name is required")
	ErrIDsRequired       = apperr.Field("ids", "ids must be a non-empty list")
)

// CacheInvalidator is told whenever card data changes so derived views can be
// rebuilt
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// Query holds the catalog filters and the requested page
type Query struct {
	Expansion string
	Search    string
	Type      string
	Race      string
	Rarity    string
	Page      int
	Limit     int
	// IncludeInactive is only set by admin listings
	IncludeInactive bool
}

// Pagination describes the slice returned from the filtered set
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalCount int  `json:"totalCount"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Page is one page of catalog results
type Page struct {
	Cards      []repository.Card `json:"cards"`
	Pagination Pagination        `json:"pagination"`
}

// CardInput is the admin create/update payload
type CardInput struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Type        string  `json:"type" validate:"required,oneof=TALISMAN ARMA TOTEM ALIADO ORO"`
	Cost        *int    `json:"cost" validate:"omitempty,min=0"`
	Attack      *int    `json:"attack" validate:"omitempty,min=0"`
	Defense     *int    `json:"defense" validate:"omitempty,min=0"`
	Description string  `json:"description" validate:"max=4000"`
	ImageFile   *string `json:"image_file"`
	Rarity      string  `json:"rarity" validate:"required,oneof=VASALLO CORTESANO REAL MEGA_REAL ULTRA_REAL LEGENDARIA PROMO SECRETA"`
	Expansion   string  `json:"expansion" validate:"required"`
	Race        *string `json:"race"`
	IsActive    *bool   `json:"is_active"`
}

// ExpansionInput is the admin expansion payload
type ExpansionInput struct {
	Name         string `json:"name" validate:"required,max=100"`
	DisplayOrder int    `json:"display_order" validate:"min=0"`
}

// Service implements the catalog query engine and card administration
type Service struct {
	cards       repository.CardRepository
	expansions  repository.ExpansionRepository
	invalidator CacheInvalidator
	batchSize   int
	logger      *slog.Logger
}

// NewService creates a catalog Service. batchSize is the fixed fetch size
// used to walk the filtered set; values outside (0, MaxRowsPerRequest] use
// the repository maximum.
func NewService(
	cards repository.CardRepository,
	expansions repository.ExpansionRepository,
	invalidator CacheInvalidator,
	batchSize int,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 || batchSize > repository.MaxRowsPerRequest {
		batchSize = repository.MaxRowsPerRequest
	}
	return &Service{
		cards:       cards,
		expansions:  expansions,
		invalidator: invalidator,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Query returns one page of the filtered, searched and sorted catalog.
// Structural filters are pushed down; search runs in memory because it must
// ignore accents.
func (s *Service) Query(ctx context.Context, q Query) (*Page, error) {
	page, limit := normalizePage(q.Page, q.Limit)

	all, err := s.fetchAll(ctx, repository.CardFilter{
		Expansion:       strings.TrimSpace(q.Expansion),
		Type:            strings.TrimSpace(q.Type),
		Race:            strings.TrimSpace(q.Race),
		Rarity:          strings.TrimSpace(q.Rarity),
		IncludeInactive: q.IncludeInactive,
	})
	if err != nil {
		return nil, err
	}

	matched := filterSearch(all, strings.TrimSpace(q.Search))
	SortCards(matched)

	return &Page{
		Cards:      slicePage(matched, page, limit),
		Pagination: NewPagination(len(matched), page, limit),
	}, nil
}

// fetchAll walks the filtered set in fixed-size batches until a short batch
func (s *Service) fetchAll(ctx context.Context, filter repository.CardFilter) ([]repository.Card, error) {
	var all []repository.Card
	for offset := 0; ; offset += s.batchSize {
		batch, err := s.cards.ListPage(ctx, filter, offset, s.batchSize)
		if err != nil {
			return nil, err
		}
		metrics.CatalogBatchesFetched.Inc()
		all = append(all, batch...)
		if len(batch) < s.batchSize {
			return all, nil
		}
	}
}

func filterSearch(cards []repository.Card, search string) []repository.Card {
	if search == "" {
		return cards
	}
	out := make([]repository.Card, 0, len(cards))
	for _, c := range cards {
		if textnorm.ContainsIgnoringAccents(c.Name, search) || textnorm.ContainsIgnoringAccents(c.Description, search) {
			out = append(out, c)
		}
	}
	return out
}

// SortCards orders cards by expansion then image file, a nil image sorting
// as the empty string
func SortCards(cards []repository.Card) {
	slices.SortStableFunc(cards, func(a, b repository.Card) int {
		return cmp.Or(
			strings.Compare(a.Expansion, b.Expansion),
			strings.Compare(a.ImageKey(), b.ImageKey()),
		)
	})
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// NewPagination describes one page of a result set holding total items
func NewPagination(total, page, limit int) Pagination {
	totalPages := (total + limit - 1) / limit
	return Pagination{
		Page:       page,
		Limit:      limit,
		TotalCount: total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// slicePage compares page numbers before multiplying so a huge page cannot
// wrap the offset negative
func slicePage(cards []repository.Card, page, limit int) []repository.Card {
	if page-1 >= (len(cards)+limit-1)/limit {
		return []repository.Card{}
	}
	start := (page - 1) * limit
	end := min(start+limit, len(cards))
	return cards[start:end]
}

// Batch returns the active cards for the given ids. Unknown ids are skipped.
func (s *Service) Batch(ctx context.Context, rawIDs []string) ([]repository.Card, error) {
	if len(rawIDs) == 0 {
		return nil, ErrIDsRequired
	}
	if len(rawIDs) > MaxBatchIDs {
		return nil, apperr.Field("ids", "too many ids")
	}

	ids := make([]uuid.UUID, 0, len(rawIDs))
	seen := make(map[uuid.UUID]bool, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, apperr.Field("ids", "invalid card id: "+raw)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	cards, err := s.cards.GetActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []repository.Card{}
	}
	return cards, nil
}

// Versions returns every active printing that shares name
func (s *Service) Versions(ctx context.Context, name string) ([]repository.Card, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	cards, err := s.cards.GetActiveByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []repository.Card{}
	}
	return cards, nil
}

// GetCard returns a single printing, active or not
func (s *Service) GetCard(ctx context.Context, id uuid.UUID) (*repository.Card, error) {
	card, err := s.cards.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

// CreateCard validates and inserts a new printing. New cards are active
// unless is_active is explicitly false.
func (s *Service) CreateCard(ctx context.Context, in CardInput) (*repository.Card, error) {
	card, err := s.buildCard(ctx, in)
	if err != nil {
		return nil, err
	}
	card.IsActive = in.IsActive == nil || *in.IsActive

	if err := s.cards.Create(ctx, card); err != nil {
		return nil, err
	}

	s.logger.Info("Card created", "card_id", card.ID, "name", card.Name)
	s.invalidate(ctx)
	return card, nil
}

// UpdateCard replaces the editable fields of a printing. is_active keeps its
// current value when omitted.
func (s *Service) UpdateCard(ctx context.Context, id uuid.UUID, in CardInput) (*repository.Card, error) {
	existing, err := s.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}

	card, err := s.buildCard(ctx, in)
	if err != nil {
		return nil, err
	}
	card.ID = existing.ID
	card.CreatedAt = existing.CreatedAt
	card.IsActive = existing.IsActive
	if in.IsActive != nil {
		card.IsActive = *in.IsActive
	}

	if err := s.cards.Update(ctx, card); err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}

	s.logger.Info("Card updated", "card_id", card.ID)
	s.invalidate(ctx)
	return card, nil
}

// SetActive shows or hides a printing from player-facing views
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.cards.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return ErrCardNotFound
		}
		return err
	}
	s.logger.Info("Card visibility changed", "card_id", id, "active", active)
	s.invalidate(ctx)
	return nil
}

func (s *Service) buildCard(ctx context.Context, in CardInput) (*repository.Card, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Expansion = strings.TrimSpace(in.Expansion)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	exists, err := s.expansions.Exists(ctx, in.Expansion)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrExpansionNotFound
	}

	return &repository.Card{
		Name:        in.Name,
		Type:        in.Type,
		Cost:        in.Cost,
		Attack:      in.Attack,
		Defense:     in.Defense,
		Description: in.Description,
		ImageFile:   trimmedOrNil(in.ImageFile),
		Rarity:      in.Rarity,
		Expansion:   in.Expansion,
		Race:        trimmedOrNil(in.Race),
	}, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator != nil {
		s.invalidator.InvalidateCache(ctx)
	}
}

// ListExpansions returns every expansion in display order
func (s *Service) ListExpansions(ctx context.Context) ([]repository.Expansion, error) {
	expansions, err := s.expansions.List(ctx)
	if err != nil {
		return nil, err
	}
	if expansions == nil {
		expansions = []repository.Expansion{}
	}
	return expansions, nil
}

// CreateExpansion registers a new expansion name
func (s *Service) CreateExpansion(ctx context.Context, in ExpansionInput) (*repository.Expansion, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	expansion := &repository.Expansion{Name: in.Name, DisplayOrder: in.DisplayOrder}
	if err := s.expansions.Create(ctx, expansion); err != nil {
		if errors.Is(err, repository.ErrExpansionAlreadyExists) {
			return nil, ErrExpansionExists
		}
		return nil, err
	}

	s.logger.Info("Expansion created", "name", expansion.Name)
	return expansion, nil
}
