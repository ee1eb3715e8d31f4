package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"card-offers-api/internal/cache"
	"card-offers-api/internal/database"
	"card-offers-api/internal/events"
	"card-offers-api/internal/models"
	"card-offers-api/internal/validation"
)

func setupTestService(t *testing.T) (*Service, func()) {
	dbPath := "./test_" + uuid.New().String() + ".db"
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	svc := NewService(db)

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return svc, cleanup
}

func rawOffer(id, cardNum string) models.RawOffer {
	return models.RawOffer{
		ID:      id,
		Source:  models.SourceAmex,
		CardNum: cardNum,
		Title:   "10% back at Acme",
		Expires: "12/31/99",
	}
}

func TestIngestOffers_EmptyBatchRejected(t *testing.T) {
	svc, cleanup := setupTestService(t)
	defer cleanup()

	_, err := svc.IngestOffers(context.Background(), uuid.New().String(), nil)
	if err == nil {
		t.Fatal("Expected error for empty batch")
	}
}

func TestIngestOffers_NormalizesExpiry(t *testing.T) {
	svc, cleanup := setupTestService(t)
	defer cleanup()

	userID := uuid.New().String()
	offer := rawOffer("X1", "12345")
	offer.Expires = "Expires 01/02/99"

	count, err := svc.IngestOffers(context.Background(), userID, []models.RawOffer{offer})
	if err != nil {
		t.Fatalf("Failed to ingest: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count 1, got %d", count)
	}

	resp, err := svc.ListOffers(context.Background(), userID, models.ListOffersQuery{})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(resp.Offers) != 1 {
		t.Fatalf("Expected 1 offer, got %d", len(resp.Offers))
	}
	if resp.Offers[0].Expires != "2099-01-02" {
		t.Errorf("Expected normalized expiry 2099-01-02, got %q", resp.Offers[0].Expires)
	}
}

func TestIngestOffers_StaleReapPerCard(t *testing.T) {
	svc, cleanup := setupTestService(t)
	defer cleanup()

	userID := uuid.New().String()
	ctx := context.Background()

	first := []models.RawOffer{
		rawOffer("X1", "12345"),
		rawOffer("Y1", "99999"),
	}
	if _, err := svc.IngestOffers(ctx, userID, first); err != nil {
		t.Fatalf("Failed first ingest: %v", err)
	}

	// Re-ingest card 12345 with a different offer: X1 must be reaped,
	// the other card's Y1 must survive.
	second := []models.RawOffer{rawOffer("X2", "12345")}
	if _, err := svc.IngestOffers(ctx, userID, second); err != nil {
		t.Fatalf("Failed second ingest: %v", err)
	}

	resp, err := svc.ListOffers(ctx, userID, models.ListOffersQuery{})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}

	ids := map[string]bool{}
	for _, offer := range resp.Offers {
		ids[offer.ID] = true
	}

	if ids["X1"] {
		t.Error("Expected X1 to be reaped")
	}
	if !ids["X2"] || !ids["Y1"] {
		t.Errorf("Expected X2 and Y1 to remain, got %v", ids)
	}
}

func TestIngestOffers_CardlessOffersReapToo(t *testing.T) {
	svc, cleanup := setupTestService(t)
	defer cleanup()

	userID := uuid.New().String()
	ctx := context.Background()

	if _, err := svc.IngestOffers(ctx, userID, []models.RawOffer{rawOffer("old", "")}); err != nil {
		t.Fatalf("Failed first ingest: %v", err)
	}
	if _, err := svc.IngestOffers(ctx, userID, []models.RawOffer{rawOffer("new", "")}); err != nil {
		t.Fatalf("Failed second ingest: %v", err)
	}

	resp, err := svc.ListOffers(ctx, userID, models.ListOffersQuery{})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(resp.Offers) != 1 || resp.Offers[0].ID != "new" {
		t.Errorf("Expected only the latest cardless offer, got %+v", resp.Offers)
	}
}

func TestIngestOffers_RejectsUnknownSource(t *testing.T) {
	svc, cleanup := setupTestService(t)
	defer cleanup()

	offer := rawOffer("X1", "12345")
	offer.Source = "boa"

	_, err := svc.IngestOffers(context.Background(), uuid.New().String(), []models.RawOffer{offer})
	if err == nil {
		t.Fatal("Expected error for unknown source")
	}
}

func TestListOffers_DefaultsAndCaps(t *testing.T) {
	svc, cleanup := setupTestService(t)
	defer cleanup()

	userID := uuid.New().String()
	resp, err := svc.ListOffers(context.Background(), userID, models.ListOffersQuery{Limit: 10000})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}

	if resp.Page != 1 {
		t.Errorf("Expected default page 1, got %d", resp.Page)
	}
	if resp.Limit != maxLimit {
		t.Errorf("Expected limit capped at %d, got %d", maxLimit, resp.Limit)
	}
	if resp.Offers == nil {
		t.Error("Expected empty offers slice, not nil")
	}
}

func TestListOffers_UnknownSourceIsValidationError(t *testing.T) {
	svc, cleanup := setupTestService(t)
	defer cleanup()

	_, err := svc.ListOffers(context.Background(), uuid.New().String(), models.ListOffersQuery{Source: "boa"})
	if err == nil {
		t.Fatal("Expected error for unknown source filter")
	}
	var vErr *validation.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("Expected a validation error, got %v", err)
	}
}

func TestSetHighlight_UnknownOffer(t *testing.T) {
	svc, cleanup := setupTestService(t)
	defer cleanup()

	updated, err := svc.SetHighlight(context.Background(), uuid.New().String(), "missing", nil, true)
	if err != nil {
		t.Fatalf("Failed: %v", err)
	}
	if updated != 0 {
		t.Errorf("Expected 0 rows updated, got %d", updated)
	}
}

func TestCaching_InvalidatedByIngest(t *testing.T) {
	dbPath := "./test_" + uuid.New().String() + ".db"
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	defer func() {
		db.Close()
		os.Remove(dbPath)
	}()

	svc := NewServiceWithOptions(db, Options{Cache: cache.NewInMemoryCache()})
	userID := uuid.New().String()
	ctx := context.Background()

	if _, err := svc.IngestOffers(ctx, userID, []models.RawOffer{rawOffer("X1", "12345")}); err != nil {
		t.Fatalf("Failed to ingest: %v", err)
	}

	resp, err := svc.ListOffers(ctx, userID, models.ListOffersQuery{})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(resp.Offers) != 1 {
		t.Fatalf("Expected 1 offer, got %d", len(resp.Offers))
	}

	// Second ingest must rotate the cache generation so the next listing
	// reflects the reap instead of the cached page.
	if _, err := svc.IngestOffers(ctx, userID, []models.RawOffer{rawOffer("X2", "12345")}); err != nil {
		t.Fatalf("Failed second ingest: %v", err)
	}

	resp, err = svc.ListOffers(ctx, userID, models.ListOffersQuery{})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(resp.Offers) != 1 || resp.Offers[0].ID != "X2" {
		t.Errorf("Expected fresh listing with X2 only, got %+v", resp.Offers)
	}

	// Unchanged data: repeated listing should serve the cached page.
	again, err := svc.ListOffers(ctx, userID, models.ListOffersQuery{})
	if err != nil {
		t.Fatalf("Failed to list again: %v", err)
	}
	if len(again.Offers) != 1 || again.Offers[0].ID != "X2" {
		t.Errorf("Expected cached listing to match, got %+v", again.Offers)
	}
}

func TestIngestOffers_MixedSourceEventCounts(t *testing.T) {
	dbPath := "./test_" + uuid.New().String() + ".db"
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	defer func() {
		db.Close()
		os.Remove(dbPath)
	}()

	mgr := events.NewManager(true)
	defer mgr.Shutdown()

	received := make(chan events.OffersIngestedData, 1)
	mgr.Subscribe(events.EventOffersIngested, func(ctx context.Context, e events.Event) error {
		if data, ok := e.Data.(events.OffersIngestedData); ok {
			received <- data
		}
		return nil
	})

	svc := NewServiceWithOptions(db, Options{Events: mgr})
	userID := uuid.New().String()

	chase := rawOffer("C1", "99887")
	chase.Source = models.SourceChase
	batch := []models.RawOffer{rawOffer("A1", "12345"), rawOffer("A2", "12345"), chase}

	if _, err := svc.IngestOffers(context.Background(), userID, batch); err != nil {
		t.Fatalf("Failed to ingest: %v", err)
	}

	select {
	case data := <-received:
		if data.Count != 3 {
			t.Errorf("Expected count 3, got %d", data.Count)
		}
		if data.Sources[models.SourceAmex] != 2 || data.Sources[models.SourceChase] != 1 {
			t.Errorf("Expected per-source counts amex=2 chase=1, got %v", data.Sources)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Ingestion event was not delivered")
	}
}
