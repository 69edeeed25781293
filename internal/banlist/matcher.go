package banlist

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/tcglibrary/catalog/internal/repository"
	"github.com/tcglibrary/catalog/internal/textnorm"
)

// NameChunkSize is how many entry names share one candidate query
const NameChunkSize = 10

// unknownRarityRank sorts unrecognized rarities after every known one
const unknownRarityRank = 999

// rarityRank orders printings from most basic to most exclusive
var rarityRank = map[string]int{
	repository.RarityVasallo:    1,
	repository.RarityCortesano:  2,
	repository.RarityReal:       3,
	repository.RarityMegaReal:   4,
	repository.RarityUltraReal:  5,
	repository.RarityPromo:      6,
	repository.RarityLegendaria: 7,
	repository.RaritySecreta:    8,
}

// RarityRank returns the canonical-printing rank of a rarity
func RarityRank(rarity string) int {
	if rank, ok := rarityRank[rarity]; ok {
		return rank
	}
	return unknownRarityRank
}

// printing is an active card with its lookup key
type printing struct {
	key  string
	card repository.Card
}

// Matcher resolves free-text entry names to catalog printings.
//
// Ordering is fixed so ties never depend on store return order: the canonical
// map and the full list are both scanned shortest key first, then
// alphabetically, then by rarity rank and id.
type Matcher struct {
	canonical map[string]repository.Card
	keys      []string
	all       []printing
}

// NewMatcher builds a matcher over the candidate cards. Inactive cards are
// ignored. The candidates also serve as the last-resort list until
// SetFallback replaces it.
func NewMatcher(candidates []repository.Card) *Matcher {
	all := printings(candidates)

	m := &Matcher{canonical: make(map[string]repository.Card), all: all}
	for _, p := range all {
		// Sorted by rank within a key, so the first printing seen wins
		if _, ok := m.canonical[p.key]; !ok {
			m.canonical[p.key] = p.card
			m.keys = append(m.keys, p.key)
		}
	}
	return m
}

// SetFallback sets the full card list scanned when no canonical key matches
func (m *Matcher) SetFallback(cards []repository.Card) {
	m.all = printings(cards)
}

func printings(cards []repository.Card) []printing {
	out := make([]printing, 0, len(cards))
	for _, c := range cards {
		if !c.IsActive {
			continue
		}
		key := textnorm.Key(c.Name)
		if key == "" {
			continue
		}
		out = append(out, printing{key: key, card: c})
	}
	slices.SortFunc(out, comparePrintings)
	return out
}

func comparePrintings(a, b printing) int {
	return cmp.Or(
		cmp.Compare(len(a.key), len(b.key)),
		strings.Compare(a.key, b.key),
		cmp.Compare(RarityRank(a.card.Rarity), RarityRank(b.card.Rarity)),
		strings.Compare(a.card.ID.String(), b.card.ID.String()),
	)
}

// Canonical returns the canonical printing for an exact lookup key
func (m *Matcher) Canonical(key string) (repository.Card, bool) {
	c, ok := m.canonical[key]
	return c, ok
}

// Match resolves one entry name: exact canonical key, then substring in
// either direction against canonical keys, then substring against every
// active printing.
func (m *Matcher) Match(name string) (repository.Card, bool) {
	key := textnorm.Key(name)
	if key == "" {
		return repository.Card{}, false
	}

	if c, ok := m.matchCanonical(key); ok {
		return c, true
	}

	for _, p := range m.all {
		if overlaps(p.key, key) {
			return p.card, true
		}
	}

	return repository.Card{}, false
}

func (m *Matcher) matchCanonical(key string) (repository.Card, bool) {
	if c, ok := m.canonical[key]; ok {
		return c, true
	}
	for _, k := range m.keys {
		if overlaps(k, key) {
			return m.canonical[k], true
		}
	}
	return repository.Card{}, false
}

// NeedsFallback reports whether some name misses every canonical key, so
// the full card list has to be loaded
func (m *Matcher) NeedsFallback(names []string) bool {
	for _, name := range names {
		key := textnorm.Key(name)
		if key == "" {
			continue
		}
		if _, ok := m.matchCanonical(key); !ok {
			return true
		}
	}
	return false
}

func overlaps(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Resolve maps each entry key to its matched printing. The first entry to
// claim a key keeps it; unresolved names are left out.
func (m *Matcher) Resolve(names []string) map[string]repository.Card {
	resolved := make(map[string]repository.Card, len(names))
	for _, name := range names {
		key := textnorm.Key(name)
		if _, taken := resolved[key]; taken {
			continue
		}
		if c, ok := m.Match(name); ok {
			resolved[key] = c
		}
	}
	return resolved
}

// chunk splits names into groups of at most size
func chunk(names []string, size int) [][]string {
	var out [][]string
	for size < len(names) {
		names, out = names[size:], append(out, names[:size:size])
	}
	if len(names) > 0 {
		out = append(out, names)
	}
	return out
}

// FetchCandidates loads every active card whose name contains one of the
// entry names, querying NameChunkSize names at a time.
func FetchCandidates(ctx context.Context, cards repository.CardRepository, names []string) ([]repository.Card, error) {
	var fragments []string
	seenName := make(map[string]bool, len(names))
	for _, name := range names {
		key := textnorm.Key(name)
		if key != "" && !seenName[key] {
			seenName[key] = true
			fragments = append(fragments, strings.TrimSpace(name))
		}
	}

	var out []repository.Card
	seen := make(map[uuid.UUID]bool)
	for _, group := range chunk(fragments, NameChunkSize) {
		for offset := 0; ; offset += repository.MaxRowsPerRequest {
			batch, err := cards.SearchActiveByNames(ctx, group, offset, repository.MaxRowsPerRequest)
			if err != nil {
				return nil, err
			}
			for _, c := range batch {
				if !seen[c.ID] {
					seen[c.ID] = true
					out = append(out, c)
				}
			}
			if len(batch) < repository.MaxRowsPerRequest {
				break
			}
		}
	}
	return out, nil
}
