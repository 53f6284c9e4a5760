package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gatherlyapp/gatherly-server/internal/domain"
	"github.com/gatherlyapp/gatherly-server/internal/store"
)

func TestCreateAndGetLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	link := &domain.Link{
		Record: domain.Record{
			ID:        "link-1",
			CreatedAt: now,
			UpdatedAt: now,
		},
		Slug:           "slug-one",
		OrderRef:       "order-1",
		Title:          "Deniz & Can",
		Status:         domain.LinkDraft,
		GrantedRegular: 50,
		GrantedTest:    5,
	}

	if err := s.CreateLink(ctx, link); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	got, err := s.GetLink(ctx, "link-1")
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}

	if got.ID != link.ID {
		t.Errorf("ID: got %q, want %q", got.ID, link.ID)
	}
	if got.Slug != link.Slug {
		t.Errorf("Slug: got %q, want %q", got.Slug, link.Slug)
	}
	if got.OrderRef != link.OrderRef {
		t.Errorf("OrderRef: got %q, want %q", got.OrderRef, link.OrderRef)
	}
	if got.Title != link.Title {
		t.Errorf("Title: got %q, want %q", got.Title, link.Title)
	}
	if got.Status != domain.LinkDraft {
		t.Errorf("Status: got %q, want %q", got.Status, domain.LinkDraft)
	}
	if got.GrantedRegular != 50 || got.GrantedTest != 5 {
		t.Errorf("granted: got %d/%d, want 50/5", got.GrantedRegular, got.GrantedTest)
	}
	if got.UsedRegular != 0 || got.UsedTest != 0 {
		t.Errorf("used: got %d/%d, want 0/0", got.UsedRegular, got.UsedTest)
	}
	if got.ActivatedAt != nil || got.ExpiresAt != nil || got.ExpiredAt != nil {
		t.Error("draft link should have no lifecycle timestamps")
	}

	// Timestamps should round-trip.
	if got.CreatedAt.Unix() != link.CreatedAt.Unix() {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, link.CreatedAt)
	}
}

func TestGetLink_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetLink(ctx, "nonexistent")
	if !errors.Is(err, store.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}

	_, err = s.GetLinkBySlug(ctx, "no-such-slug")
	if !errors.Is(err, store.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestGetLinkBySlug(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestLink(t, s, "link-slug-1", "public-token", 10, 1)

	got, err := s.GetLinkBySlug(ctx, "public-token")
	if err != nil {
		t.Fatalf("GetLinkBySlug: %v", err)
	}
	if got.ID != "link-slug-1" {
		t.Errorf("ID: got %q, want %q", got.ID, "link-slug-1")
	}
}

func TestCreateLink_DuplicateSlug(t *testing.T) {
	s := newTestStore(t)

	insertTestLink(t, s, "link-dup-1", "same-slug", 10, 1)

	now := time.Now()
	dup := &domain.Link{
		Record: domain.Record{
			ID:        "link-dup-2",
			CreatedAt: now,
			UpdatedAt: now,
		},
		Slug:     "same-slug",
		OrderRef: "order-dup",
		Status:   domain.LinkDraft,
	}

	err := s.CreateLink(context.Background(), dup)
	if !errors.Is(err, store.ErrSlugExists) {
		t.Fatalf("expected ErrSlugExists, got %v", err)
	}
}

func TestActivateLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	link := &domain.Link{
		Record: domain.Record{
			ID:        "link-act-1",
			CreatedAt: now,
			UpdatedAt: now,
		},
		Slug:           "activate-me",
		OrderRef:       "order-act",
		Status:         domain.LinkDraft,
		GrantedRegular: 5,
	}
	if err := s.CreateLink(ctx, link); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	if err := link.Activate(now, 15*24*time.Hour); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := s.ActivateLink(ctx, link); err != nil {
		t.Fatalf("ActivateLink: %v", err)
	}

	got, err := s.GetLink(ctx, "link-act-1")
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if got.Status != domain.LinkActive {
		t.Errorf("Status: got %q, want active", got.Status)
	}
	if got.ActivatedAt == nil || got.ExpiresAt == nil {
		t.Fatal("expected activation timestamps")
	}
	if got.ExpiresAt.Unix() != now.Add(15*24*time.Hour).Unix() {
		t.Errorf("ExpiresAt: got %v", got.ExpiresAt)
	}

	// Activating again loses the draft-state condition.
	err = s.ActivateLink(ctx, link)
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestMarkLinkExpired_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	link := insertTestLink(t, s, "link-exp-1", "expire-me", 10, 1)

	link.Expire(time.Now())
	if err := s.MarkLinkExpired(ctx, link); err != nil {
		t.Fatalf("MarkLinkExpired: %v", err)
	}

	got, err := s.GetLink(ctx, "link-exp-1")
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if got.Status != domain.LinkExpired {
		t.Errorf("Status: got %q, want expired", got.Status)
	}
	if got.ExpiredAt == nil {
		t.Fatal("expected ExpiredAt to be set")
	}

	// Second expire is a no-op, not an error.
	if err := s.MarkLinkExpired(ctx, link); err != nil {
		t.Fatalf("second MarkLinkExpired: %v", err)
	}

	// Unknown link still reports not found.
	missing := &domain.Link{Record: domain.Record{ID: "link-gone"}}
	missing.Expire(time.Now())
	if err := s.MarkLinkExpired(ctx, missing); !errors.Is(err, store.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestGrantAdditionalSlots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestLink(t, s, "link-grant-1", "grant-slug", 10, 1)

	if err := s.GrantAdditionalSlots(ctx, "link-grant-1", 5, 2); err != nil {
		t.Fatalf("GrantAdditionalSlots: %v", err)
	}

	got, err := s.GetLink(ctx, "link-grant-1")
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if got.GrantedRegular != 15 || got.GrantedTest != 3 {
		t.Errorf("granted: got %d/%d, want 15/3", got.GrantedRegular, got.GrantedTest)
	}
	if got.UsedRegular != 0 || got.UsedTest != 0 {
		t.Errorf("used counters must be untouched, got %d/%d", got.UsedRegular, got.UsedTest)
	}

	if err := s.GrantAdditionalSlots(ctx, "link-none", 1, 0); !errors.Is(err, store.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestReserveSlot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestLink(t, s, "link-res-1", "reserve-slug", 2, 1)

	// Two regular reservations succeed, the third is rejected.
	for i := 0; i < 2; i++ {
		if err := s.ReserveSlot(ctx, "link-res-1", domain.SlotRegular); err != nil {
			t.Fatalf("ReserveSlot regular #%d: %v", i+1, err)
		}
	}
	if err := s.ReserveSlot(ctx, "link-res-1", domain.SlotRegular); !errors.Is(err, store.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// The test pool is accounted separately.
	if err := s.ReserveSlot(ctx, "link-res-1", domain.SlotTest); err != nil {
		t.Fatalf("ReserveSlot test: %v", err)
	}
	if err := s.ReserveSlot(ctx, "link-res-1", domain.SlotTest); !errors.Is(err, store.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded for test pool, got %v", err)
	}

	got, err := s.GetLink(ctx, "link-res-1")
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if got.UsedRegular != 2 || got.UsedTest != 1 {
		t.Errorf("used: got %d/%d, want 2/1", got.UsedRegular, got.UsedTest)
	}
}

func TestReserveSlot_InactiveLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	draft := &domain.Link{
		Record: domain.Record{
			ID:        "link-res-draft",
			CreatedAt: now,
			UpdatedAt: now,
		},
		Slug:           "draft-slug",
		OrderRef:       "order-d",
		Status:         domain.LinkDraft,
		GrantedRegular: 10,
	}
	if err := s.CreateLink(ctx, draft); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	// Quota remains, but the row is not active.
	if err := s.ReserveSlot(ctx, "link-res-draft", domain.SlotRegular); !errors.Is(err, store.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded for draft link, got %v", err)
	}

	if err := s.ReserveSlot(ctx, "link-absent", domain.SlotRegular); !errors.Is(err, store.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

// TestReserveSlot_Concurrent fires many more reservations than the pool
// holds, from real goroutines, and verifies exactly granted-many succeed.
func TestReserveSlot_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const granted = 10
	const attempts = 50

	insertTestLink(t, s, "link-conc-1", "concurrent-slug", granted, 0)

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results <- s.ReserveSlot(ctx, "link-conc-1", domain.SlotRegular)
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrQuotaExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if succeeded != granted {
		t.Errorf("succeeded: got %d, want %d", succeeded, granted)
	}
	if rejected != attempts-granted {
		t.Errorf("rejected: got %d, want %d", rejected, attempts-granted)
	}

	got, err := s.GetLink(ctx, "link-conc-1")
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if got.UsedRegular != granted {
		t.Errorf("UsedRegular: got %d, want %d", got.UsedRegular, granted)
	}
}

func TestIncrementCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestLink(t, s, "link-cnt-1", "counter-slug", 10, 1)

	for i := 0; i < 3; i++ {
		if err := s.IncrementLinkViews(ctx, "link-cnt-1"); err != nil {
			t.Fatalf("IncrementLinkViews: %v", err)
		}
	}
	if err := s.IncrementUniqueGuests(ctx, "link-cnt-1"); err != nil {
		t.Fatalf("IncrementUniqueGuests: %v", err)
	}

	got, err := s.GetLink(ctx, "link-cnt-1")
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if got.TotalViews != 3 {
		t.Errorf("TotalViews: got %d, want 3", got.TotalViews)
	}
	if got.UniqueGuestCount != 1 {
		t.Errorf("UniqueGuestCount: got %d, want 1", got.UniqueGuestCount)
	}

	if err := s.IncrementLinkViews(ctx, "link-none"); !errors.Is(err, store.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestListLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	first := insertTestLink(t, s, "link-list-1", "list-slug-1", 10, 1)
	_ = first

	second := &domain.Link{
		Record: domain.Record{
			ID:        "link-list-2",
			CreatedAt: now.Add(time.Second),
			UpdatedAt: now.Add(time.Second),
		},
		Slug:     "list-slug-2",
		OrderRef: "order-2",
		Status:   domain.LinkDraft,
	}
	if err := s.CreateLink(ctx, second); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	links, err := s.ListLinks(ctx)
	if err != nil {
		t.Fatalf("ListLinks: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("ListLinks: got %d links, want 2", len(links))
	}

	// ListLinks orders by created_at DESC, so the later link comes first.
	if links[0].ID != "link-list-2" {
		t.Errorf("first link ID: got %q, want %q", links[0].ID, "link-list-2")
	}
	if links[1].ID != "link-list-1" {
		t.Errorf("second link ID: got %q, want %q", links[1].ID, "link-list-1")
	}
}
