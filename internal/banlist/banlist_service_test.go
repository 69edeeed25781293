package banlist

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tcglibrary/catalog/internal/apperr"
	"github.com/tcglibrary/catalog/internal/repository"
)

func TestBanlist_ResolvesEntriesAndCaches(t *testing.T) {
	f := newBanlistFixture()
	ctx := context.Background()
	vasallo := printingOf("Centinela", repository.RarityVasallo)
	f.cards.add(printingOf("Centinela", repository.RarityUltraReal), vasallo)
	f.repo.banlist = []repository.BanlistEntry{
		{CardName: "Centinela", Format: FormatVCR, Status: StatusBanned, MaxCopies: 0},
		{CardName: "Carta Inexistente", Format: FormatVCR, Status: StatusLimited1, MaxCopies: 1},
		{CardName: "Centinela", Format: FormatTriadas, Status: StatusLimited2, MaxCopies: 2},
	}

	view, err := f.service.Banlist(ctx, FormatVCR)
	if err != nil {
		t.Fatalf("banlist failed: %v", err)
	}
	if len(view) != 2 {
		t.Fatalf("expected 2 VCR entries, got %d", len(view))
	}
	if view[0].Card == nil || view[0].Card.ID != vasallo.ID {
		t.Errorf("expected canonical VASALLO printing, got %+v", view[0].Card)
	}
	if view[1].Card != nil {
		t.Errorf("unresolved entry should carry a nil card, got %+v", view[1].Card)
	}

	if _, err := f.service.Banlist(ctx, FormatVCR); err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if f.repo.listCalls != 1 {
		t.Errorf("second read should come from the cache, store read %d times", f.repo.listCalls)
	}
}

func TestBanlist_FullListOnlyWhenNeeded(t *testing.T) {
	f := newBanlistFixture()
	ctx := context.Background()
	f.cards.add(printingOf("Dragón Dorado", repository.RarityReal), printingOf("Centinela", repository.RarityReal))

	f.repo.banlist = []repository.BanlistEntry{{CardName: "Centinela", Format: FormatVCR, Status: StatusBanned}}
	if _, err := f.service.Banlist(ctx, FormatVCR); err != nil {
		t.Fatalf("banlist failed: %v", err)
	}
	if f.cards.listCalls != 0 {
		t.Errorf("full card list loaded without need (%d calls)", f.cards.listCalls)
	}

	f.repo.banlist = []repository.BanlistEntry{{CardName: "Dragón Dorado (promo)", Format: FormatTriadas, Status: StatusBanned}}
	view, err := f.service.Banlist(ctx, FormatTriadas)
	if err != nil {
		t.Fatalf("banlist failed: %v", err)
	}
	if f.cards.listCalls == 0 {
		t.Error("expected the full card list fallback")
	}
	if view[0].Card == nil || view[0].Card.Name != "Dragón Dorado" {
		t.Errorf("expected fallback resolution, got %+v", view[0].Card)
	}
}

func TestBanlist_RejectsUnknownFormat(t *testing.T) {
	f := newBanlistFixture()
	if _, err := f.service.Banlist(context.Background(), "Libre"); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := f.service.Rotation(context.Background(), "Libre"); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpsertBanlist_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    BanlistInput
		field string
	}{
		{"too many copies", BanlistInput{CardName: "Centinela", Format: FormatVCR, Status: StatusLimited1, MaxCopies: intPtr(4)}, "max_copies"},
		{"negative copies", BanlistInput{CardName: "Centinela", Format: FormatVCR, Status: StatusLimited1, MaxCopies: intPtr(-1)}, "max_copies"},
		{"missing copies", BanlistInput{CardName: "Centinela", Format: FormatVCR, Status: StatusLimited1}, "max_copies"},
		{"unknown format", BanlistInput{CardName: "Centinela", Format: "Libre", Status: StatusBanned, MaxCopies: intPtr(0)}, "format"},
		{"unknown status", BanlistInput{CardName: "Centinela", Format: FormatVCR, Status: "restricted", MaxCopies: intPtr(0)}, "status"},
		{"blank name", BanlistInput{CardName: "  ", Format: FormatVCR, Status: StatusBanned, MaxCopies: intPtr(0)}, "card_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBanlistFixture()
			_, err := f.service.UpsertBanlist(context.Background(), tt.in)

			e, ok := apperr.As(err)
			if !ok || e.Kind != apperr.KindValidation || len(e.Fields[tt.field]) == 0 {
				t.Fatalf("expected %s validation error, got %v", tt.field, err)
			}
			if f.repo.upsertCalls != 0 || f.cache.count(NamespaceBanlist) != 0 {
				t.Error("rejected input must not reach the store or the cache")
			}
		})
	}
}

func TestUpsertBanlist_InvalidatesBeforeReturning(t *testing.T) {
	f := newBanlistFixture()
	ctx := context.Background()
	f.cards.add(printingOf("Centinela", repository.RarityReal))

	if view, _ := f.service.Banlist(ctx, FormatVCR); len(view) != 0 {
		t.Fatalf("expected empty banlist, got %d", len(view))
	}

	entry, err := f.service.UpsertBanlist(ctx, BanlistInput{
		CardName: " Centinela ", Format: FormatVCR, Status: StatusAllowed, MaxCopies: intPtr(0),
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if entry.CardName != "Centinela" || entry.MaxCopies != 0 {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if f.cache.count(NamespaceBanlist) != 1 || f.cache.count(NamespaceRotation) != 0 {
		t.Errorf("expected only the banlist namespace invalidated, got %v", f.cache.invalidated)
	}

	view, _ := f.service.Banlist(ctx, FormatVCR)
	if len(view) != 1 || view[0].Card == nil {
		t.Errorf("expected the new entry right after the write, got %+v", view)
	}

	if err := f.service.DeleteBanlist(ctx, "Centinela", FormatVCR); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if view, _ := f.service.Banlist(ctx, FormatVCR); len(view) != 0 {
		t.Errorf("expected entry gone after delete, got %d", len(view))
	}
	if err := f.service.DeleteBanlist(ctx, "", FormatVCR); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("delete without card name should be 400, got %v", err)
	}
}

func TestUpsertRotation(t *testing.T) {
	f := newBanlistFixture()
	ctx := context.Background()

	_, err := f.service.UpsertRotation(ctx, RotationInput{CardName: "Centinela", Format: FormatImperioRacial, RotationExpansion: "Atlantis"})
	if e, ok := apperr.As(err); !ok || len(e.Fields["rotation_expansion"]) == 0 {
		t.Fatalf("expected rotation_expansion error, got %v", err)
	}
	if f.repo.rotationUpserts != 0 || f.cache.count(NamespaceRotation) != 0 {
		t.Error("rejected rotation must not be written")
	}

	entry, err := f.service.UpsertRotation(ctx, RotationInput{CardName: "Centinela", Format: FormatImperioRacial, RotationExpansion: "Helenica"})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if entry.Format != FormatImperioRacial || f.cache.count(NamespaceRotation) != 1 {
		t.Errorf("unexpected entry %+v or invalidations %v", entry, f.cache.invalidated)
	}

	view, err := f.service.Rotation(ctx, "")
	if err != nil || len(view) != 1 || view[0].Card != nil {
		t.Errorf("expected one unresolved rotation entry, got %+v (%v)", view, err)
	}
}

func TestInvalidateCache_ClearsBothViews(t *testing.T) {
	f := newBanlistFixture()
	ctx := context.Background()

	f.service.Banlist(ctx, "")
	f.service.Rotation(ctx, "")
	f.service.InvalidateCache(ctx)

	if f.cache.count(NamespaceBanlist) != 1 || f.cache.count(NamespaceRotation) != 1 {
		t.Errorf("expected both namespaces invalidated, got %v", f.cache.invalidated)
	}
	f.service.Banlist(ctx, "")
	if f.repo.listCalls != 2 {
		t.Errorf("expected a fresh read after invalidation, got %d reads", f.repo.listCalls)
	}
}

// A write that commits while a reader is between its store read and its
// cache fill must still be visible to the next read.
func TestBanlist_WriteDuringReadIsNotMasked(t *testing.T) {
	f := newBanlistFixture()
	ctx := context.Background()
	f.repo.banlist = []repository.BanlistEntry{{CardName: "Centinela", Format: FormatVCR, Status: StatusBanned, MaxCopies: 0}}

	f.repo.afterList = func() {
		if _, err := f.service.UpsertBanlist(ctx, BanlistInput{
			CardName: "Centinela", Format: FormatVCR, Status: StatusAllowed, MaxCopies: intPtr(3),
		}); err != nil {
			t.Errorf("upsert failed: %v", err)
		}
	}

	view, err := f.service.Banlist(ctx, FormatVCR)
	if err != nil {
		t.Fatalf("banlist failed: %v", err)
	}
	if view[0].Status != StatusBanned {
		t.Fatalf("in-flight read should see the rows it read, got %s", view[0].Status)
	}

	view, err = f.service.Banlist(ctx, FormatVCR)
	if err != nil {
		t.Fatalf("banlist failed: %v", err)
	}
	if view[0].Status != StatusAllowed || view[0].MaxCopies != 3 {
		t.Errorf("next read served a stale view: %s max=%d", view[0].Status, view[0].MaxCopies)
	}

	// The fresh view is cached from here on
	reads := f.repo.listCalls
	if _, err := f.service.Banlist(ctx, FormatVCR); err != nil {
		t.Fatalf("banlist failed: %v", err)
	}
	if f.repo.listCalls != reads {
		t.Errorf("expected a cache hit, store read %d more times", f.repo.listCalls-reads)
	}
}

func TestRotation_WriteDuringReadIsNotMasked(t *testing.T) {
	f := newBanlistFixture()
	ctx := context.Background()
	f.repo.rotation = []repository.RotationEntry{{CardName: "Centinela", Format: FormatVCR, RotationExpansion: "Helenica"}}

	f.repo.afterList = func() {
		if _, err := f.service.UpsertRotation(ctx, RotationInput{
			CardName: "Centinela", Format: FormatVCR, RotationExpansion: "Espada Sagrada",
		}); err != nil {
			t.Errorf("upsert failed: %v", err)
		}
	}

	if _, err := f.service.Rotation(ctx, FormatVCR); err != nil {
		t.Fatalf("rotation failed: %v", err)
	}
	view, err := f.service.Rotation(ctx, FormatVCR)
	if err != nil {
		t.Fatalf("rotation failed: %v", err)
	}
	if view[0].RotationExpansion != "Espada Sagrada" {
		t.Errorf("next read served a stale view: %s", view[0].RotationExpansion)
	}
}

func TestBrokenCache_ReadsFallBackToStore(t *testing.T) {
	repo := &mockBanlistRepository{banlist: []repository.BanlistEntry{{CardName: "Centinela", Format: FormatVCR, Status: StatusBanned}}}
	svc := NewService(repo, &mockCardRepository{}, &mockExpansionRepository{}, brokenCache{}, nil)
	ctx := context.Background()

	view, err := svc.Banlist(ctx, FormatVCR)
	if err != nil || len(view) != 1 {
		t.Fatalf("expected store read despite cache failure, got %v (%v)", view, err)
	}

	// A write whose cache cannot be cleared is reported
	_, err = svc.UpsertBanlist(ctx, BanlistInput{CardName: "Centinela", Format: FormatVCR, Status: StatusBanned, MaxCopies: intPtr(0)})
	if apperr.KindOf(err) != apperr.KindInternal {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if _, ok, _ := c.Get(ctx, NamespaceBanlist, "VCR"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Set(ctx, NamespaceBanlist, "VCR", []byte("a"))
	c.Set(ctx, NamespaceRotation, "VCR", []byte("b"))

	if v, ok, _ := c.Get(ctx, NamespaceBanlist, "VCR"); !ok || string(v) != "a" {
		t.Errorf("expected hit, got %q %v", v, ok)
	}

	c.Invalidate(ctx, NamespaceBanlist)
	if _, ok, _ := c.Get(ctx, NamespaceBanlist, "VCR"); ok {
		t.Error("banlist namespace should be empty")
	}
	if _, ok, _ := c.Get(ctx, NamespaceRotation, "VCR"); !ok {
		t.Error("rotation namespace should be untouched")
	}

	if gen, _ := c.Generation(ctx, NamespaceBanlist); gen != 1 {
		t.Errorf("expected banlist generation 1, got %d", gen)
	}
	if gen, _ := c.Generation(ctx, NamespaceRotation); gen != 0 {
		t.Errorf("expected rotation generation 0, got %d", gen)
	}
}

func TestRedisCache_UnreachableServerIsAnError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := NewRedisCache(client)

	if _, ok, err := c.Get(context.Background(), NamespaceBanlist, "VCR"); err == nil || ok {
		t.Errorf("expected an error rather than a miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Invalidate(context.Background(), NamespaceBanlist); err == nil {
		t.Error("expected invalidate to fail")
	}
	if _, err := c.Generation(context.Background(), NamespaceBanlist); err == nil {
		t.Error("expected generation read to fail")
	}
}
