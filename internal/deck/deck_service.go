// Package deck implements deck building, sharing, copying and likes.
package deck

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tcglibrary/catalog/internal/apperr"
	"github.com/tcglibrary/catalog/internal/catalog"
	"github.com/tcglibrary/catalog/internal/repository"
	"github.com/tcglibrary/catalog/internal/sanitizer"
	"github.com/tcglibrary/catalog/internal/validation"
)

// Community listing bounds
const (
	DefaultCommunityLimit = 12
	MaxCommunityLimit     = 50
)

// CopySuffix is appended to the name of a copied deck
const CopySuffix = " (Copia)"

// Deck errors
var (
	ErrDeckNotFound = apperr.NotFound("Deck not found")
	ErrNotOwner     = apperr.Authorization("You do not own this deck")
	ErrDeckPrivate  = apperr.Authorization("This deck is private")
	ErrCopyOwnDeck  = apperr.Field("id", "You cannot copy your own deck")
	ErrUnknownCards = apperr.Field("cards", "Deck contains unknown or inactive cards")
)

// CardLine is one {card_id, quantity} line of a deck or sideboard
type CardLine struct {
	CardID   string `json:"card_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"min=1,max=3"`
}

// Input is the create and update payload
type Input struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Description string     `json:"description" validate:"max=2000"`
	Race        string     `json:"race" validate:"max=100"`
	Format      string     `json:"format" validate:"omitempty,oneof='Imperio Racial' VCR Triadas"`
	IsPublic    bool       `json:"is_public"`
	Cards       []CardLine `json:"cards" validate:"max=100,unique=CardID,dive"`
	Sideboard   []CardLine `json:"sideboard" validate:"max=50,unique=CardID,dive"`
}

// CommunityQuery selects a page of public decks
type CommunityQuery struct {
	Page   int
	Limit  int
	SortBy string
	Race   string
}

// CommunityDeck is a public deck as seen by one viewer
type CommunityDeck struct {
	repository.DeckSummary
	LikedByViewer bool `json:"liked_by_viewer"`
}

// CommunityPage is one page of the community listing
type CommunityPage struct {
	Decks      []CommunityDeck    `json:"decks"`
	Pagination catalog.Pagination `json:"pagination"`
}

// LikeStatus is the viewer's like state for a deck
type LikeStatus struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// Service manages decks and their likes
type Service struct {
	decks     repository.DeckRepository
	likes     repository.LikeRepository
	cards     repository.CardRepository
	sanitizer sanitizer.TextSanitizer
	logger    *slog.Logger
}

// NewService creates a new deck Service
func NewService(
	decks repository.DeckRepository,
	likes repository.LikeRepository,
	cards repository.CardRepository,
	textSanitizer sanitizer.TextSanitizer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if textSanitizer == nil {
		textSanitizer = sanitizer.NewTextSanitizer()
	}
	return &Service{
		decks:     decks,
		likes:     likes,
		cards:     cards,
		sanitizer: textSanitizer,
		logger:    logger,
	}
}

// Create stores a new deck owned by ownerID
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in Input) (*repository.Deck, error) {
	deck, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}
	deck.UserID = ownerID

	if err := s.decks.Create(ctx, deck); err != nil {
		return nil, err
	}

	s.logger.Info("Deck created", "deck_id", deck.ID, "user_id", ownerID)
	return deck, nil
}

// ListMine returns the decks owned by ownerID
func (s *Service) ListMine(ctx context.Context, ownerID uuid.UUID) ([]repository.Deck, error) {
	return s.decks.ListByUser(ctx, ownerID)
}

// Get returns a deck the viewer may see: their own or a public one.
// viewerID is uuid.Nil for anonymous viewers.
func (s *Service) Get(ctx context.Context, viewerID, id uuid.UUID) (*repository.Deck, error) {
	deck, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !deck.IsPublic && deck.UserID != viewerID {
		return nil, ErrDeckPrivate
	}
	return deck, nil
}

// Update replaces a deck's contents; only the owner may do so
func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, in Input) (*repository.Deck, error) {
	existing, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	deck, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}
	deck.ID = existing.ID
	deck.UserID = existing.UserID
	deck.CreatedAt = existing.CreatedAt

	if err := s.decks.Update(ctx, deck); err != nil {
		if errors.Is(err, repository.ErrDeckNotFound) {
			return nil, ErrDeckNotFound
		}
		return nil, err
	}
	return deck, nil
}

// Delete removes a deck; only the owner may do so
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.decks.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrDeckNotFound) {
			return ErrDeckNotFound
		}
		return err
	}

	s.logger.Info("Deck deleted", "deck_id", id, "user_id", ownerID)
	return nil
}

// Copy clones another user's public deck into a private deck owned by userID
func (s *Service) Copy(ctx context.Context, userID, id uuid.UUID) (*repository.Deck, error) {
	source, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if source.UserID == userID {
		return nil, ErrCopyOwnDeck
	}
	if !source.IsPublic {
		return nil, ErrDeckPrivate
	}

	clone := &repository.Deck{
		Name:        source.Name + CopySuffix,
		Description: source.Description,
		UserID:      userID,
		Race:        source.Race,
		Format:      source.Format,
		IsPublic:    false,
		Cards:       append([]repository.DeckCard{}, source.Cards...),
		Sideboard:   append([]repository.DeckCard{}, source.Sideboard...),
	}
	if err := s.decks.Create(ctx, clone); err != nil {
		return nil, err
	}

	s.logger.Info("Deck copied", "source_id", source.ID, "deck_id", clone.ID, "user_id", userID)
	return clone, nil
}

// ToggleLike flips the user's like on a visible deck
func (s *Service) ToggleLike(ctx context.Context, userID, id uuid.UUID) (*LikeStatus, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	liked, err := s.likes.Exists(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if liked {
		err = s.likes.Delete(ctx, id, userID)
	} else {
		err = s.likes.Create(ctx, id, userID)
	}
	if err != nil {
		return nil, err
	}

	count, err := s.likes.CountByDeck(ctx, id)
	if err != nil {
		return nil, err
	}
	return &LikeStatus{Liked: !liked, LikesCount: count}, nil
}

// LikeStatus reports whether the user likes a visible deck
func (s *Service) LikeStatus(ctx context.Context, userID, id uuid.UUID) (*LikeStatus, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	liked, err := s.likes.Exists(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	count, err := s.likes.CountByDeck(ctx, id)
	if err != nil {
		return nil, err
	}
	return &LikeStatus{Liked: liked, LikesCount: count}, nil
}

// Community lists public decks. Liked flags are filled in when viewerID is
// not uuid.Nil.
func (s *Service) Community(ctx context.Context, viewerID uuid.UUID, q CommunityQuery) (*CommunityPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultCommunityLimit
	}
	if q.Limit > MaxCommunityLimit {
		q.Limit = MaxCommunityLimit
	}
	switch q.SortBy {
	case repository.DeckSortRecent, repository.DeckSortPopular, repository.DeckSortName:
	case "":
		q.SortBy = repository.DeckSortRecent
	default:
		return nil, apperr.Field("sortBy", "sortBy must be one of: recent, popular, name")
	}

	summaries, total, err := s.decks.ListPublic(ctx, repository.ListPublicDecksParams{
		Page:   q.Page,
		Limit:  q.Limit,
		SortBy: q.SortBy,
		Race:   strings.TrimSpace(q.Race),
	})
	if err != nil {
		return nil, err
	}

	liked := map[uuid.UUID]bool{}
	if viewerID != uuid.Nil && len(summaries) > 0 {
		ids := make([]uuid.UUID, len(summaries))
		for i, d := range summaries {
			ids[i] = d.ID
		}
		if liked, err = s.likes.LikedDeckIDs(ctx, viewerID, ids); err != nil {
			return nil, err
		}
	}

	decks := make([]CommunityDeck, len(summaries))
	for i, d := range summaries {
		decks[i] = CommunityDeck{DeckSummary: d, LikedByViewer: liked[d.ID]}
	}

	return &CommunityPage{
		Decks:      decks,
		Pagination: catalog.NewPagination(total, q.Page, q.Limit),
	}, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*repository.Deck, error) {
	deck, err := s.decks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDeckNotFound) {
			return nil, ErrDeckNotFound
		}
		return nil, err
	}
	return deck, nil
}

func (s *Service) owned(ctx context.Context, ownerID, id uuid.UUID) (*repository.Deck, error) {
	deck, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if deck.UserID != ownerID {
		return nil, ErrNotOwner
	}
	return deck, nil
}

// build sanitizes and validates in, then checks every card exists
func (s *Service) build(ctx context.Context, in Input) (*repository.Deck, error) {
	in.Name = s.sanitizer.Name(in.Name)
	in.Description = s.sanitizer.Description(in.Description)
	in.Race = strings.TrimSpace(in.Race)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	cards := toDeckCards(in.Cards)
	sideboard := toDeckCards(in.Sideboard)
	if err := s.checkCardsExist(ctx, cards, sideboard); err != nil {
		return nil, err
	}

	return &repository.Deck{
		Name:        in.Name,
		Description: in.Description,
		Race:        in.Race,
		Format:      in.Format,
		IsPublic:    in.IsPublic,
		Cards:       cards,
		Sideboard:   sideboard,
	}, nil
}

// toDeckCards converts validated lines; ids are known to parse
func toDeckCards(lines []CardLine) []repository.DeckCard {
	out := make([]repository.DeckCard, len(lines))
	for i, l := range lines {
		out[i] = repository.DeckCard{CardID: uuid.MustParse(l.CardID), Quantity: l.Quantity}
	}
	return out
}

func (s *Service) checkCardsExist(ctx context.Context, lists ...[]repository.DeckCard) error {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, list := range lists {
		for _, line := range list {
			if !seen[line.CardID] {
				seen[line.CardID] = true
				ids = append(ids, line.CardID)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	found, err := s.cards.GetActiveByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return ErrUnknownCards
	}
	return nil
}
