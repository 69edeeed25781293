package banlist

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tcglibrary/catalog/internal/repository"
)

// mockCardRepository answers name searches the way ILIKE '%fragment%' does
type mockCardRepository struct {
	mu          sync.Mutex
	cards       []repository.Card
	searchCalls [][]string
	listCalls   int
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

func (m *mockCardRepository) ListPage(ctx context.Context, filter repository.CardFilter, offset, limit int) ([]repository.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++

	var active []repository.Card
	for _, c := range m.cards {
		if c.IsActive || filter.IncludeInactive {
			active = append(active, c)
		}
	}
	if offset >= len(active) {
		return nil, nil
	}
	return active[offset:min(offset+limit, len(active))], nil
}

func (m *mockCardRepository) SearchActiveByNames(ctx context.Context, fragments []string, offset, limit int) ([]repository.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls = append(m.searchCalls, slices.Clone(fragments))

	var out []repository.Card
	for _, c := range m.cards {
		if !c.IsActive {
			continue
		}
		for _, f := range fragments {
			if strings.Contains(strings.ToLower(c.Name), strings.ToLower(f)) {
				out = append(out, c)
				break
			}
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (m *mockCardRepository) GetByID(ctx context.Context, id uuid.UUID) (*repository.Card, error) {
	return nil, repository.ErrCardNotFound
}

func (m *mockCardRepository) GetActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]repository.Card, error) {
	return nil, nil
}

func (m *mockCardRepository) GetActiveByName(ctx context.Context, name string) ([]repository.Card, error) {
	return nil, nil
}

func (m *mockCardRepository) Create(ctx context.Context, card *repository.Card) error { return nil }

func (m *mockCardRepository) Update(ctx context.Context, card *repository.Card) error { return nil }

func (m *mockCardRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return nil
}

// mockBanlistRepository keeps entries keyed by card name and format
type mockBanlistRepository struct {
	mu              sync.Mutex
	banlist         []repository.BanlistEntry
	rotation        []repository.RotationEntry
	listCalls       int
	upsertCalls     int
	rotationUpserts int
	// afterList runs once the rows are read, before the caller sees them
	afterList func()
}

func (m *mockBanlistRepository) ListBanlist(ctx context.Context, format string) ([]repository.BanlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []repository.BanlistEntry
	for _, e := range m.banlist {
		if format == "" || e.Format == format {
			out = append(out, e)
		}
	}
	hook := m.afterList
	m.afterList = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	m.mu.Lock()
	return out, nil
}

func (m *mockBanlistRepository) UpsertBanlist(ctx context.Context, entry *repository.BanlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	entry.UpdatedAt = time.Now().UTC()
	for i, e := range m.banlist {
		if e.CardName == entry.CardName && e.Format == entry.Format {
			m.banlist[i] = *entry
			return nil
		}
	}
	m.banlist = append(m.banlist, *entry)
	return nil
}

func (m *mockBanlistRepository) DeleteBanlist(ctx context.Context, cardName, format string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banlist = slices.DeleteFunc(m.banlist, func(e repository.BanlistEntry) bool {
		return e.CardName == cardName && e.Format == format
	})
	return nil
}

func (m *mockBanlistRepository) ListRotation(ctx context.Context, format string) ([]repository.RotationEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.RotationEntry
	for _, e := range m.rotation {
		if format == "" || e.Format == format {
			out = append(out, e)
		}
	}
	hook := m.afterList
	m.afterList = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	m.mu.Lock()
	return out, nil
}

func (m *mockBanlistRepository) UpsertRotation(ctx context.Context, entry *repository.RotationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotationUpserts++
	entry.UpdatedAt = time.Now().UTC()
	for i, e := range m.rotation {
		if e.CardName == entry.CardName && e.Format == entry.Format {
			m.rotation[i] = *entry
			return nil
		}
	}
	m.rotation = append(m.rotation, *entry)
	return nil
}

func (m *mockBanlistRepository) DeleteRotation(ctx context.Context, cardName, format string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotation = slices.DeleteFunc(m.rotation, func(e repository.RotationEntry) bool {
		return e.CardName == cardName && e.Format == format
	})
	return nil
}

type mockExpansionRepository struct {
	names []string
}

func (m *mockExpansionRepository) List(ctx context.Context) ([]repository.Expansion, error) {
	return nil, nil
}

func (m *mockExpansionRepository) Exists(ctx context.Context, name string) (bool, error) {
	return slices.Contains(m.names, name), nil
}

func (m *mockExpansionRepository) Create(ctx context.Context, expansion *repository.Expansion) error {
	return nil
}

// recordingCache wraps MemoryCache and counts invalidations per namespace
type recordingCache struct {
	*MemoryCache
	mu          sync.Mutex
	invalidated map[string]int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{MemoryCache: NewMemoryCache(), invalidated: make(map[string]int)}
}

func (c *recordingCache) Invalidate(ctx context.Context, namespace string) error {
	c.mu.Lock()
	c.invalidated[namespace]++
	c.mu.Unlock()
	return c.MemoryCache.Invalidate(ctx, namespace)
}

func (c *recordingCache) count(namespace string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidated[namespace]
}

// brokenCache fails every operation
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	return nil, false, errCacheDown
}

func (brokenCache) Set(ctx context.Context, namespace, key string, value []byte) error {
	return errCacheDown
}

func (brokenCache) Invalidate(ctx context.Context, namespace string) error {
	return errCacheDown
}

func (brokenCache) Generation(ctx context.Context, namespace string) (int64, error) {
	return 0, errCacheDown
}

type banlistFixture struct {
	service *Service
	repo    *mockBanlistRepository
	cards   *mockCardRepository
	cache   *recordingCache
}

func newBanlistFixture() *banlistFixture {
	repo := &mockBanlistRepository{}
	cards := &mockCardRepository{}
	cache := newRecordingCache()
	expansions := &mockExpansionRepository{names: []string{"Helenica", "Espada Sagrada"}}
	return &banlistFixture{
		service: NewService(repo, cards, expansions, cache, nil),
		repo:    repo,
		cards:   cards,
		cache:   cache,
	}
}

func printingOf(name, rarity string) repository.Card {
	return repository.Card{
		ID:        uuid.New(),
		Name:      name,
		Type:      repository.CardTypeAliado,
		Rarity:    rarity,
		Expansion: "Helenica",
		IsActive:  true,
	}
}

func intPtr(i int) *int { return &i }
