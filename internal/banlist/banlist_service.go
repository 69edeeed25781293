// Package banlist administers per-format card restrictions and rotations and
// serves them resolved against the catalog.
package banlist

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/tcglibrary/catalog/internal/apperr"
	"github.com/tcglibrary/catalog/internal/repository"
	"github.com/tcglibrary/catalog/internal/textnorm"
	"github.com/tcglibrary/catalog/internal/validation"
)

// Formats
const (
	FormatImperioRacial = "Imperio Racial"
	FormatVCR           = "VCR"
	FormatTriadas       = "Triadas"
)

// Banlist statuses
const (
	StatusBanned   = "banned"
	StatusLimited1 = "limited-1"
	StatusLimited2 = "limited-2"
	StatusAllowed  = "allowed"
)

// Formats lists every playable format
var Formats = []string{FormatImperioRacial, FormatVCR, FormatTriadas}

// allFormatsKey caches the unfiltered view
const allFormatsKey = "_all"

// ErrRotationExpansionNotFound is returned when a rotation names an unknown expansion
var ErrRotationExpansionNotFound = apperr.Field("rotation_expansion", "rotation_expansion does not exist")

// BanlistInput is the admin upsert payload
type BanlistInput struct {
	CardName  string `json:"card_name" validate:"required,max=200"`
	Format    string `json:"format" validate:"required,oneof='Imperio Racial' VCR Triadas"`
	Status    string `json:"status" validate:"required,oneof=banned limited-1 limited-2 allowed"`
	MaxCopies *int   `json:"max_copies" validate:"required,min=0,max=3"`
}

// RotationInput is the admin upsert payload
type RotationInput struct {
	CardName          string `json:"card_name" validate:"required,max=200"`
	Format            string `json:"format" validate:"required,oneof='Imperio Racial' VCR Triadas"`
	RotationExpansion string `json:"rotation_expansion" validate:"required"`
}

// entryKey identifies an entry for deletion
type entryKey struct {
	CardName string `json:"card_name" validate:"required"`
	Format   string `json:"format" validate:"required,oneof='Imperio Racial' VCR Triadas"`
}

// ResolvedBanlistEntry is a banlist entry with its canonical card, nil when
// no active printing matched
type ResolvedBanlistEntry struct {
	repository.BanlistEntry
	Card *repository.Card `json:"card"`
}

// ResolvedRotationEntry is a rotation entry with its canonical card
type ResolvedRotationEntry struct {
	repository.RotationEntry
	Card *repository.Card `json:"card"`
}

// Service serves banlist and rotation data
type Service struct {
	repo       repository.BanlistRepository
	cards      repository.CardRepository
	expansions repository.ExpansionRepository
	cache      Cache
	logger     *slog.Logger
}

// NewService creates a banlist Service. A nil cache uses process memory.
func NewService(
	repo repository.BanlistRepository,
	cards repository.CardRepository,
	expansions repository.ExpansionRepository,
	cache Cache,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{
		repo:       repo,
		cards:      cards,
		expansions: expansions,
		cache:      cache,
		logger:     logger,
	}
}

func validateFormat(format string) error {
	if format != "" && !slices.Contains(Formats, format) {
		return apperr.Field("format", "format must be one of: "+strings.Join(Formats, ", "))
	}
	return nil
}

func cacheKey(format string) string {
	if format == "" {
		return allFormatsKey
	}
	return format
}

// Banlist returns the entries of format (all formats when empty) resolved
// against the catalog, read through the cache
func (s *Service) Banlist(ctx context.Context, format string) ([]ResolvedBanlistEntry, error) {
	format = strings.TrimSpace(format)
	if err := validateFormat(format); err != nil {
		return nil, err
	}

	key, cacheable := s.viewKey(ctx, NamespaceBanlist, format)
	var cached []ResolvedBanlistEntry
	if cacheable && s.readCache(ctx, NamespaceBanlist, key, &cached) {
		return cached, nil
	}

	entries, err := s.repo.ListBanlist(ctx, format)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.CardName
	}
	resolved, err := s.resolve(ctx, names)
	if err != nil {
		return nil, err
	}

	out := make([]ResolvedBanlistEntry, len(entries))
	for i, e := range entries {
		out[i] = ResolvedBanlistEntry{BanlistEntry: e, Card: lookup(resolved, e.CardName)}
	}

	if cacheable {
		s.writeCache(ctx, NamespaceBanlist, key, out)
	}
	return out, nil
}

// Rotation returns the rotation entries of format resolved against the catalog
func (s *Service) Rotation(ctx context.Context, format string) ([]ResolvedRotationEntry, error) {
	format = strings.TrimSpace(format)
	if err := validateFormat(format); err != nil {
		return nil, err
	}

	key, cacheable := s.viewKey(ctx, NamespaceRotation, format)
	var cached []ResolvedRotationEntry
	if cacheable && s.readCache(ctx, NamespaceRotation, key, &cached) {
		return cached, nil
	}

	entries, err := s.repo.ListRotation(ctx, format)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.CardName
	}
	resolved, err := s.resolve(ctx, names)
	if err != nil {
		return nil, err
	}

	out := make([]ResolvedRotationEntry, len(entries))
	for i, e := range entries {
		out[i] = ResolvedRotationEntry{RotationEntry: e, Card: lookup(resolved, e.CardName)}
	}

	if cacheable {
		s.writeCache(ctx, NamespaceRotation, key, out)
	}
	return out, nil
}

func lookup(resolved map[string]repository.Card, name string) *repository.Card {
	c, ok := resolved[textnorm.Key(name)]
	if !ok {
		return nil
	}
	return &c
}

// resolve fetches candidates for names and matches them, loading the full
// active card list only when some name misses every candidate
func (s *Service) resolve(ctx context.Context, names []string) (map[string]repository.Card, error) {
	if len(names) == 0 {
		return map[string]repository.Card{}, nil
	}

	candidates, err := FetchCandidates(ctx, s.cards, names)
	if err != nil {
		return nil, err
	}

	m := NewMatcher(candidates)
	if m.NeedsFallback(names) {
		all, err := s.allActiveCards(ctx)
		if err != nil {
			return nil, err
		}
		m.SetFallback(all)
	}
	return m.Resolve(names), nil
}

func (s *Service) allActiveCards(ctx context.Context) ([]repository.Card, error) {
	var all []repository.Card
	for offset := 0; ; offset += repository.MaxRowsPerRequest {
		batch, err := s.cards.ListPage(ctx, repository.CardFilter{}, offset, repository.MaxRowsPerRequest)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < repository.MaxRowsPerRequest {
			return all, nil
		}
	}
}

// viewKey returns the cache key of a format's view under the namespace's
// current generation. It must be taken before the store is read. A false
// result means the cache is unusable for this read.
func (s *Service) viewKey(ctx context.Context, namespace, format string) (string, bool) {
	gen, err := s.cache.Generation(ctx, namespace)
	if err != nil {
		s.logger.Warn("Cache generation read failed", "namespace", namespace, "error", err)
		return "", false
	}
	return cacheKey(format) + "@" + strconv.FormatInt(gen, 10), true
}

func (s *Service) readCache(ctx context.Context, namespace, key string, dst interface{}) bool {
	data, ok, err := s.cache.Get(ctx, namespace, key)
	if err != nil {
		s.logger.Warn("Cache read failed", "namespace", namespace, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("Discarding undecodable cache entry", "namespace", namespace, "error", err)
		return false
	}
	return true
}

func (s *Service) writeCache(ctx context.Context, namespace, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("Failed to encode cache entry", "namespace", namespace, "error", err)
		return
	}
	if err := s.cache.Set(ctx, namespace, key, data); err != nil {
		s.logger.Warn("Cache write failed", "namespace", namespace, "error", err)
	}
}

// invalidate clears namespace before the write is acknowledged
func (s *Service) invalidate(ctx context.Context, namespace string) error {
	if err := s.cache.Invalidate(ctx, namespace); err != nil {
		return apperr.Internal("failed to invalidate "+namespace+" cache", err)
	}
	return nil
}

// InvalidateCache clears both resolved views. Card writes call it since the
// resolved printings may change.
func (s *Service) InvalidateCache(ctx context.Context) {
	for _, ns := range []string{NamespaceBanlist, NamespaceRotation} {
		if err := s.cache.Invalidate(ctx, ns); err != nil {
			s.logger.Error("Failed to invalidate cache", "namespace", ns, "error", err)
		}
	}
}

// ListBanlistEntries returns the raw banlist rows for administration
func (s *Service) ListBanlistEntries(ctx context.Context, format string) ([]repository.BanlistEntry, error) {
	format = strings.TrimSpace(format)
	if err := validateFormat(format); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListBanlist(ctx, format)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []repository.BanlistEntry{}
	}
	return entries, nil
}

// UpsertBanlist validates and writes a banlist entry
func (s *Service) UpsertBanlist(ctx context.Context, in BanlistInput) (*repository.BanlistEntry, error) {
	in.CardName = strings.TrimSpace(in.CardName)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	entry := &repository.BanlistEntry{
		CardName:  in.CardName,
		Format:    in.Format,
		Status:    in.Status,
		MaxCopies: *in.MaxCopies,
	}
	if err := s.repo.UpsertBanlist(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.invalidate(ctx, NamespaceBanlist); err != nil {
		return nil, err
	}

	s.logger.Info("Banlist entry saved", "card_name", entry.CardName, "format", entry.Format, "status", entry.Status)
	return entry, nil
}

// DeleteBanlist removes a banlist entry; a missing entry is not an error
func (s *Service) DeleteBanlist(ctx context.Context, cardName, format string) error {
	key := entryKey{CardName: strings.TrimSpace(cardName), Format: strings.TrimSpace(format)}
	if err := validation.Struct(key); err != nil {
		return err
	}

	if err := s.repo.DeleteBanlist(ctx, key.CardName, key.Format); err != nil {
		return err
	}
	if err := s.invalidate(ctx, NamespaceBanlist); err != nil {
		return err
	}

	s.logger.Info("Banlist entry deleted", "card_name", key.CardName, "format", key.Format)
	return nil
}

// ListRotationEntries returns the raw rotation rows for administration
func (s *Service) ListRotationEntries(ctx context.Context, format string) ([]repository.RotationEntry, error) {
	format = strings.TrimSpace(format)
	if err := validateFormat(format); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListRotation(ctx, format)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []repository.RotationEntry{}
	}
	return entries, nil
}

// UpsertRotation validates and writes a rotation entry. The rotation
// expansion must already exist.
func (s *Service) UpsertRotation(ctx context.Context, in RotationInput) (*repository.RotationEntry, error) {
	in.CardName = strings.TrimSpace(in.CardName)
	in.RotationExpansion = strings.TrimSpace(in.RotationExpansion)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	exists, err := s.expansions.Exists(ctx, in.RotationExpansion)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRotationExpansionNotFound
	}

	entry := &repository.RotationEntry{
		CardName:          in.CardName,
		Format:            in.Format,
		RotationExpansion: in.RotationExpansion,
	}
	if err := s.repo.UpsertRotation(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.invalidate(ctx, NamespaceRotation); err != nil {
		return nil, err
	}

	s.logger.Info("Rotation entry saved", "card_name", entry.CardName, "format", entry.Format)
	return entry, nil
}

// DeleteRotation removes a rotation entry; a missing entry is not an error
func (s *Service) DeleteRotation(ctx context.Context, cardName, format string) error {
	key := entryKey{CardName: strings.TrimSpace(cardName), Format: strings.TrimSpace(format)}
	if err := validation.Struct(key); err != nil {
		return err
	}

	if err := s.repo.DeleteRotation(ctx, key.CardName, key.Format); err != nil {
		return err
	}
	if err := s.invalidate(ctx, NamespaceRotation); err != nil {
		return err
	}

	s.logger.Info("Rotation entry deleted", "card_name", key.CardName, "format", key.Format)
	return nil
}
