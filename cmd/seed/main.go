// Package main provides a tool to seed the database with test invitation data.
//
// It creates a mix of draft, active, and expired links with registered guests
// so dashboard and quota features can be exercised against realistic data.
//
// Usage:
//
//	DATA_PATH=~/Gatherly/data go run ./cmd/seed
//	DATA_PATH=~/Gatherly/data go run ./cmd/seed --links 10
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gatherlyapp/gatherly-server/internal/domain"
	"github.com/gatherlyapp/gatherly-server/internal/id"
	"github.com/gatherlyapp/gatherly-server/internal/store/sqlite"
)

var linkCount = flag.Int("links", 5, "Number of active links to create")

var guestNames = []string{
	"Ada Lovelace", "Grace Hopper", "Alan Turing", "Edsger Dijkstra",
	"Barbara Liskov", "Donald Knuth", "Margaret Hamilton", "Ken Thompson",
	"Frances Allen", "Tony Hoare", "Radia Perlman", "Leslie Lamport",
}

var rsvpStatuses = []domain.RSVPStatus{
	domain.RSVPUndecided, domain.RSVPAttending, domain.RSVPNotAttending,
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/Gatherly/data")
	}

	dbPath := filepath.Join(dataPath, "gatherly.db")
	fmt.Printf("Opening database at: %s\n", dbPath)

	st, err := sqlite.Open(dbPath, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// One draft link: ordered but not yet approved.
	draft := seedLink(ctx, st, rng, domain.LinkDraft)
	fmt.Printf("Created draft link   %s (slug %s)\n", draft.ID, draft.Slug)

	// One expired link with a few historical guests. Guests are admitted
	// while the link is still active so quota reservation works, then the
	// link is flipped to expired.
	expired := seedLink(ctx, st, rng, domain.LinkActive)
	seedGuests(ctx, st, rng, expired, 3)
	expired.Expire(time.Now())
	if err := st.MarkLinkExpired(ctx, expired); err != nil {
		log.Fatalf("Failed to expire link: %v", err)
	}
	fmt.Printf("Created expired link %s (slug %s)\n", expired.ID, expired.Slug)

	// Active links with partially consumed quotas.
	for i := 0; i < *linkCount; i++ {
		link := seedLink(ctx, st, rng, domain.LinkActive)
		admitted := seedGuests(ctx, st, rng, link, 1+rng.Intn(link.GrantedRegular))
		fmt.Printf("Created active link  %s (slug %s, %d guests)\n", link.ID, link.Slug, admitted)
	}

	fmt.Println("\nDone.")
}

func seedLink(ctx context.Context, st *sqlite.Store, rng *rand.Rand, status domain.LinkStatus) *domain.Link {
	linkID, err := id.Generate("link")
	if err != nil {
		log.Fatalf("Failed to generate link ID: %v", err)
	}
	slug, err := id.NewSlug(id.DefaultSlugLength)
	if err != nil {
		log.Fatalf("Failed to generate slug: %v", err)
	}

	link := &domain.Link{
		Record:         domain.Record{ID: linkID},
		Slug:           slug,
		OrderRef:       fmt.Sprintf("seed-order-%04d", rng.Intn(10000)),
		Title:          fmt.Sprintf("Seeded event %d", rng.Intn(1000)),
		Status:         status,
		GrantedRegular: 5 + rng.Intn(20),
		GrantedTest:    1 + rng.Intn(3),
	}
	link.InitTimestamps()

	if status == domain.LinkActive {
		activated := time.Now().Add(-time.Duration(rng.Intn(72)) * time.Hour)
		expires := activated.Add(15 * 24 * time.Hour)
		link.ActivatedAt = &activated
		link.ExpiresAt = &expires
	}

	if err := st.CreateLink(ctx, link); err != nil {
		log.Fatalf("Failed to create link: %v", err)
	}
	return link
}

// seedGuests registers count guests on the link, reserving quota through the
// same atomic path the server uses so the counters stay honest.
func seedGuests(ctx context.Context, st *sqlite.Store, rng *rand.Rand, link *domain.Link, count int) int {
	admitted := 0
	for i := 0; i < count; i++ {
		if err := st.ReserveSlot(ctx, link.ID, domain.SlotRegular); err != nil {
			break
		}

		guestID, err := id.Generate("gst")
		if err != nil {
			log.Fatalf("Failed to generate guest ID: %v", err)
		}

		fp := sha256.Sum256([]byte(fmt.Sprintf("%s-device-%d", link.ID, i)))
		registeredAt := time.Now().Add(-time.Duration(rng.Intn(240)) * time.Hour)

		guest := &domain.Guest{
			Record:            domain.Record{ID: guestID},
			LinkID:            link.ID,
			Name:              guestNames[rng.Intn(len(guestNames))],
			DeviceFingerprint: hex.EncodeToString(fp[:]),
			IPAddress:         fmt.Sprintf("203.0.113.%d", rng.Intn(254)+1),
			UserAgent:         "seed-tool/1.0",
			RSVPStatus:        rsvpStatuses[rng.Intn(len(rsvpStatuses))],
			RegisteredAt:      registeredAt,
		}
		guest.InitTimestamps()

		if err := st.CreateGuest(ctx, guest); err != nil {
			log.Fatalf("Failed to create guest: %v", err)
		}
		if err := st.IncrementUniqueGuests(ctx, link.ID); err != nil {
			log.Fatalf("Failed to bump unique guests: %v", err)
		}
		admitted++
	}
	return admitted
}
