package catalog

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tcglibrary/catalog/internal/repository"
)

// mockCardRepository implements repository.CardRepository over a slice
type mockCardRepository struct {
	mu      sync.Mutex
	cards   []repository.Card
	calls   int
	filters []repository.CardFilter
}

func (m *mockCardRepository) add(cards ...repository.Card) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cards {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		m.cards = append(m.cards, c)
	}
}

func matchesFilter(c repository.Card, f repository.CardFilter) bool {
	if !f.IncludeInactive && !c.IsActive {
		return false
	}
	if f.Expansion != "" && c.Expansion != f.Expansion {
		return false
	}
	if f.Type != "" && c.Type != f.Type {
		return false
	}
	if f.Rarity != "" && c.Rarity != f.Rarity {
		return false
	}
	if f.Race != "" && (c.Race == nil || !strings.Contains(strings.ToLower(*c.Race), strings.ToLower(f.Race))) {
		return false
	}
	return true
}

func (m *mockCardRepository) ListPage(ctx context.Context, filter repository.CardFilter, offset, limit int) ([]repository.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.filters = append(m.filters, filter)

	var matched []repository.Card
	for _, c := range m.cards {
		if matchesFilter(c, filter) {
			matched = append(matched, c)
		}
	}
	slices.SortFunc(matched, func(a, b repository.Card) int { return strings.Compare(a.ID.String(), b.ID.String()) })

	if offset >= len(matched) {
		return nil, nil
	}
	return matched[offset:min(offset+limit, len(matched))], nil
}

func (m *mockCardRepository) SearchActiveByNames(ctx context.Context, fragments []string, offset, limit int) ([]repository.Card, error) {
	return nil, nil
}

func (m *mockCardRepository) GetByID(ctx context.Context, id uuid.UUID) (*repository.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.ID == id {
			copied := c
			return &copied, nil
		}
	}
	return nil, repository.ErrCardNotFound
}

func (m *mockCardRepository) GetActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]repository.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.Card
	for _, c := range m.cards {
		if c.IsActive && slices.Contains(ids, c.ID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCardRepository) GetActiveByName(ctx context.Context, name string) ([]repository.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.Card
	for _, c := range m.cards {
		if c.IsActive && c.Name == name {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCardRepository) Create(ctx context.Context, card *repository.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	card.ID = uuid.New()
	card.CreatedAt = time.Now().UTC()
	card.UpdatedAt = card.CreatedAt
	m.cards = append(m.cards, *card)
	return nil
}

func (m *mockCardRepository) Update(ctx context.Context, card *repository.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.cards {
		if c.ID == card.ID {
			m.cards[i] = *card
			return nil
		}
	}
	return repository.ErrCardNotFound
}

func (m *mockCardRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.cards {
		if c.ID == id {
			m.cards[i].IsActive = active
			return nil
		}
	}
	return repository.ErrCardNotFound
}

// mockExpansionRepository implements repository.ExpansionRepository
type mockExpansionRepository struct {
	mu         sync.Mutex
	expansions []repository.Expansion
}

func (m *mockExpansionRepository) List(ctx context.Context) ([]repository.Expansion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.expansions)
	slices.SortFunc(out, func(a, b repository.Expansion) int { return a.DisplayOrder - b.DisplayOrder })
	return out, nil
}

func (m *mockExpansionRepository) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.ContainsFunc(m.expansions, func(e repository.Expansion) bool { return e.Name == name }), nil
}

func (m *mockExpansionRepository) Create(ctx context.Context, expansion *repository.Expansion) error {
	if ok, _ := m.Exists(ctx, expansion.Name); ok {
		return repository.ErrExpansionAlreadyExists
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expansions = append(m.expansions, *expansion)
	return nil
}

// countingInvalidator records cache invalidations
type countingInvalidator struct {
	mu sync.Mutex
	n  int
}

func (c *countingInvalidator) InvalidateCache(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type catalogFixture struct {
	service    *Service
	cards      *mockCardRepository
	expansions *mockExpansionRepository
	cache      *countingInvalidator
}

func newCatalogFixture(batchSize int) *catalogFixture {
	cards := &mockCardRepository{}
	expansions := &mockExpansionRepository{expansions: []repository.Expansion{
		{Name: "Espada Sagrada", DisplayOrder: 1},
		{Name: "Helenica", DisplayOrder: 2},
	}}
	cache := &countingInvalidator{}
	return &catalogFixture{
		service:    NewService(cards, expansions, cache, batchSize, nil),
		cards:      cards,
		expansions: expansions,
		cache:      cache,
	}
}

func strPtr(s string) *string { return &s }

func card(name, expansion, image string) repository.Card {
	c := repository.Card{
		Name:      name,
		Type:      repository.CardTypeAliado,
		Rarity:    repository.RarityReal,
		Expansion: expansion,
		IsActive:  true,
	}
	if image != "" {
		c.ImageFile = strPtr(image)
	}
	return c
}
