package deck

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tcglibrary/catalog/internal/repository"
)

// mockDeckRepository implements repository.DeckRepository over a map
type mockDeckRepository struct {
	mu        sync.Mutex
	decks     map[uuid.UUID]repository.Deck
	usernames map[uuid.UUID]string
	likes     *mockLikeRepository
	lastQuery repository.ListPublicDecksParams
}

func newMockDeckRepository(likes *mockLikeRepository) *mockDeckRepository {
	return &mockDeckRepository{
		decks:     make(map[uuid.UUID]repository.Deck),
		usernames: make(map[uuid.UUID]string),
		likes:     likes,
	}
}

func (m *mockDeckRepository) Create(ctx context.Context, deck *repository.Deck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if deck.ID == uuid.Nil {
		deck.ID = uuid.New()
	}
	deck.CreatedAt = time.Now().UTC().Add(time.Duration(len(m.decks)) * time.Second)
	deck.UpdatedAt = deck.CreatedAt
	m.decks[deck.ID] = *deck
	return nil
}

func (m *mockDeckRepository) GetByID(ctx context.Context, id uuid.UUID) (*repository.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[id]
	if !ok {
		return nil, repository.ErrDeckNotFound
	}
	return &d, nil
}

func (m *mockDeckRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]repository.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []repository.Deck{}
	for _, d := range m.decks {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDeckRepository) Update(ctx context.Context, deck *repository.Deck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.decks[deck.ID]; !ok {
		return repository.ErrDeckNotFound
	}
	deck.UpdatedAt = time.Now().UTC()
	m.decks[deck.ID] = *deck
	return nil
}

func (m *mockDeckRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.decks[id]; !ok {
		return repository.ErrDeckNotFound
	}
	delete(m.decks, id)
	return nil
}

func (m *mockDeckRepository) ListPublic(ctx context.Context, params repository.ListPublicDecksParams) ([]repository.DeckSummary, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = params

	var all []repository.DeckSummary
	for _, d := range m.decks {
		if !d.IsPublic || (params.Race != "" && d.Race != params.Race) {
			continue
		}
		count, _ := m.likes.CountByDeck(ctx, d.ID)
		all = append(all, repository.DeckSummary{Deck: d, Username: m.usernames[d.UserID], LikesCount: count})
	}

	slices.SortFunc(all, func(a, b repository.DeckSummary) int {
		switch params.SortBy {
		case repository.DeckSortPopular:
			if a.LikesCount != b.LikesCount {
				return b.LikesCount - a.LikesCount
			}
		case repository.DeckSortName:
			if c := strings.Compare(a.Name, b.Name); c != 0 {
				return c
			}
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if params.Page-1 >= (len(all)+params.Limit-1)/params.Limit {
		return []repository.DeckSummary{}, len(all), nil
	}
	start := (params.Page - 1) * params.Limit
	return all[start:min(start+params.Limit, len(all))], len(all), nil
}

type likeKey struct {
	deck uuid.UUID
	user uuid.UUID
}

// mockLikeRepository implements repository.LikeRepository as a set
type mockLikeRepository struct {
	mu    sync.Mutex
	likes map[likeKey]bool
}

func newMockLikeRepository() *mockLikeRepository {
	return &mockLikeRepository{likes: make(map[likeKey]bool)}
}

func (m *mockLikeRepository) Exists(ctx context.Context, deckID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.likes[likeKey{deckID, userID}], nil
}

func (m *mockLikeRepository) Create(ctx context.Context, deckID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.likes[likeKey{deckID, userID}] = true
	return nil
}

func (m *mockLikeRepository) Delete(ctx context.Context, deckID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.likes, likeKey{deckID, userID})
	return nil
}

func (m *mockLikeRepository) CountByDeck(ctx context.Context, deckID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.likes {
		if k.deck == deckID {
			n++
		}
	}
	return n, nil
}

func (m *mockLikeRepository) LikedDeckIDs(ctx context.Context, userID uuid.UUID, deckIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]bool)
	for _, id := range deckIDs {
		if m.likes[likeKey{id, userID}] {
			out[id] = true
		}
	}
	return out, nil
}

// mockCardRepository only answers GetActiveByIDs
type mockCardRepository struct {
	active map[uuid.UUID]bool
}

func (m *mockCardRepository) ListPage(ctx context.Context, filter repository.CardFilter, offset, limit int) ([]repository.Card, error) {
	return nil, nil
}

func (m *mockCardRepository) SearchActiveByNames(ctx context.Context, fragments []string, offset, limit int) ([]repository.Card, error) {
	return nil, nil
}

func (m *mockCardRepository) GetByID(ctx context.Context, id uuid.UUID) (*repository.Card, error) {
	return nil, repository.ErrCardNotFound
}

func (m *mockCardRepository) GetActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]repository.Card, error) {
	var out []repository.Card
	for _, id := range ids {
		if m.active[id] {
			out = append(out, repository.Card{ID: id, IsActive: true})
		}
	}
	return out, nil
}

func (m *mockCardRepository) GetActiveByName(ctx context.Context, name string) ([]repository.Card, error) {
	return nil, nil
}

func (m *mockCardRepository) Create(ctx context.Context, card *repository.Card) error { return nil }

func (m *mockCardRepository) Update(ctx context.Context, card *repository.Card) error { return nil }

func (m *mockCardRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return nil
}

type deckFixture struct {
	service *Service
	decks   *mockDeckRepository
	likes   *mockLikeRepository
	cardIDs []uuid.UUID
	alice   uuid.UUID
	bob     uuid.UUID
}

func newDeckFixture() *deckFixture {
	likes := newMockLikeRepository()
	decks := newMockDeckRepository(likes)
	cards := &mockCardRepository{active: make(map[uuid.UUID]bool)}

	f := &deckFixture{decks: decks, likes: likes, alice: uuid.New(), bob: uuid.New()}
	for i := 0; i < 4; i++ {
		id := uuid.New()
		cards.active[id] = true
		f.cardIDs = append(f.cardIDs, id)
	}
	decks.usernames[f.alice] = "alice"
	decks.usernames[f.bob] = "bob"

	f.service = NewService(decks, likes, cards, nil, nil)
	return f
}

// input builds a valid deck using the fixture's first two cards
func (f *deckFixture) input(name string, public bool) Input {
	return Input{
		Name:      name,
		Race:      "Olimpico",
		Format:    "Imperio Racial",
		IsPublic:  public,
		Cards:     []CardLine{{CardID: f.cardIDs[0].String(), Quantity: 3}, {CardID: f.cardIDs[1].String(), Quantity: 1}},
		Sideboard: []CardLine{{CardID: f.cardIDs[2].String(), Quantity: 2}},
	}
}
