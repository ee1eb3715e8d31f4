package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"card-offers-api/internal/cache"
	"card-offers-api/internal/database"
	"card-offers-api/internal/events"
	"card-offers-api/internal/expiry"
	"card-offers-api/internal/models"
	"card-offers-api/internal/validation"
)

const (
	defaultPage  = 1
	defaultLimit = 50
	maxLimit     = 200

	listCacheTTL = 30 * time.Second
	genCacheTTL  = 24 * time.Hour
)

// Service provides business logic for the card offers API.
type Service struct {
	db     *database.DB
	cache  cache.Cache
	events *events.Manager
}

// Options holds optional service collaborators.
type Options struct {
	Cache  cache.Cache     // nil disables listing caching
	Events *events.Manager // nil disables event publishing
}

// NewService creates a new service instance.
func NewService(db *database.DB) *Service {
	return NewServiceWithOptions(db, Options{})
}

// NewServiceWithOptions creates a new service instance with collaborators.
func NewServiceWithOptions(db *database.DB, opts Options) *Service {
	return &Service{
		db:     db,
		cache:  opts.Cache,
		events: opts.Events,
	}
}

// IngestOffers validates and normalizes an uploaded batch, upserts it, then
// reaps stale rows per card group. Rows not present in the latest batch for a
// card are deleted; other cards for the same user are untouched. The reap
// deliberately runs outside the upsert's transaction: a crash in between
// leaves extra rows that the next successful ingest removes.
func (s *Service) IngestOffers(ctx context.Context, userID string, raw []models.RawOffer) (int, error) {
	for i := range raw {
		validation.SanitizeRawOffer(&raw[i])
	}

	if err := validation.ValidateBatch(raw); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	offers := make([]models.Offer, 0, len(raw))
	for _, r := range raw {
		offers = append(offers, normalizeOffer(r, now))
	}

	processed, err := s.db.UpsertOffers(userID, offers)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert offers: %w", err)
	}

	for cardNum, ids := range groupIDsByCard(offers) {
		deleted, err := s.db.ReapStale(userID, cardNum, ids)
		if err != nil {
			return 0, fmt.Errorf("failed to reap stale offers for card %q: %w", cardNum, err)
		}
		if deleted > 0 && s.events != nil {
			s.events.PublishOffersReaped(ctx, userID, cardNum, deleted)
		}
	}

	s.invalidateListings(ctx, userID)

	if s.events != nil {
		s.events.PublishOffersIngested(ctx, userID, countBySource(offers), processed)
	}

	return processed, nil
}

// normalizeOffer maps a sanitized raw offer onto the canonical record.
func normalizeOffer(r models.RawOffer, now time.Time) models.Offer {
	collectedAt := r.CollectedAt
	if collectedAt.IsZero() {
		collectedAt = now
	}

	return models.Offer{
		ID:          r.ID,
		Source:      r.Source,
		CardNum:     r.CardNum,
		CardLabel:   r.CardLabel,
		Title:       r.Title,
		Summary:     r.Summary,
		Image:       r.Image,
		Expires:     expiry.Normalize(r.Expires),
		Categories:  r.Categories,
		Channels:    r.Channels,
		Enrolled:    r.Enrolled,
		CollectedAt: collectedAt,
	}
}

// groupIDsByCard partitions a batch into card groups. The empty card number
// is a group like any other, so cardless offers get reaped too.
func groupIDsByCard(offers []models.Offer) map[string][]string {
	groups := make(map[string][]string)
	for _, offer := range offers {
		groups[offer.CardNum] = append(groups[offer.CardNum], offer.ID)
	}
	return groups
}

// countBySource tallies batch rows per source for event metadata. Batches
// are usually single-source but nothing stops a caller mixing them.
func countBySource(offers []models.Offer) map[string]int {
	counts := make(map[string]int)
	for _, offer := range offers {
		counts[offer.Source]++
	}
	return counts
}

// ListOffers serves one filtered page of a user's unexpired offers, through
// the cache when one is configured.
func (s *Service) ListOffers(ctx context.Context, userID string, q models.ListOffersQuery) (models.ListOffersResponse, error) {
	if q.Page < 1 {
		q.Page = defaultPage
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Source != "" && !models.KnownSource(q.Source) {
		return models.ListOffersResponse{}, &validation.ValidationError{
			Field:   "source",
			Message: fmt.Sprintf("unknown source '%s'", q.Source),
		}
	}

	key := s.listKey(ctx, userID, q)
	if key != "" {
		var cached models.ListOffersResponse
		if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
			return cached, nil
		}
	}

	offers, total, totalRows, err := s.db.ListOffers(userID, q, time.Now())
	if err != nil {
		return models.ListOffersResponse{}, fmt.Errorf("failed to list offers: %w", err)
	}
	if offers == nil {
		offers = []models.Offer{}
	}

	resp := models.ListOffersResponse{
		Offers:    offers,
		Total:     total,
		TotalRows: totalRows,
		Page:      q.Page,
		Limit:     q.Limit,
	}

	if key != "" {
		if err := cache.SetJSON(ctx, s.cache, key, resp, listCacheTTL); err != nil {
			log.Printf("failed to cache listing for user %s: %v", userID, err)
		}
	}

	return resp, nil
}

// SetHighlight toggles the highlight flag on an offer. A nil cardNum applies
// to every row carrying the id. Returns the number of rows updated; zero
// means no such offer.
func (s *Service) SetHighlight(ctx context.Context, userID, offerID string, cardNum *string, highlighted bool) (int, error) {
	if offerID == "" {
		return 0, &validation.ValidationError{
			Field:   "offer_id",
			Message: "is required",
		}
	}

	updated, err := s.db.SetHighlight(userID, offerID, cardNum, highlighted)
	if err != nil {
		return 0, fmt.Errorf("failed to set highlight: %w", err)
	}

	if updated > 0 {
		s.invalidateListings(ctx, userID)
		if s.events != nil {
			s.events.PublishOfferHighlighted(ctx, userID, offerID, highlighted)
		}
	}

	return updated, nil
}

// PurgeOffers bulk-deletes a user's rows, optionally scoped to one source.
func (s *Service) PurgeOffers(ctx context.Context, userID, source string) (int, error) {
	if source != "" && !models.KnownSource(source) {
		return 0, &validation.ValidationError{
			Field:   "source",
			Message: fmt.Sprintf("unknown source '%s'", source),
		}
	}

	deleted, err := s.db.PurgeOffers(userID, source)
	if err != nil {
		return 0, fmt.Errorf("failed to purge offers: %w", err)
	}

	if deleted > 0 {
		s.invalidateListings(ctx, userID)
		if s.events != nil {
			s.events.PublishOffersPurged(ctx, userID, source, deleted)
		}
	}

	return deleted, nil
}

// listKey resolves the cache key for a listing query, creating the user's
// generation token on first use. Empty when caching is disabled.
func (s *Service) listKey(ctx context.Context, userID string, q models.ListOffersQuery) string {
	if s.cache == nil {
		return ""
	}

	gen, err := s.cache.Get(ctx, cache.GenKey(userID))
	if err != nil {
		gen = []byte(uuid.NewString())
		if err := s.cache.Set(ctx, cache.GenKey(userID), gen, genCacheTTL); err != nil {
			return ""
		}
	}

	highlighted := "any"
	if q.Highlighted != nil {
		highlighted = fmt.Sprintf("%t", *q.Highlighted)
	}

	return cache.ListKey(userID, string(gen), q.Page, q.Limit, q.Search, q.CardNum, q.Source, highlighted)
}

// invalidateListings rotates the user's generation token, orphaning every
// cached listing page for that user.
func (s *Service) invalidateListings(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cache.GenKey(userID), []byte(uuid.NewString()), genCacheTTL); err != nil {
		log.Printf("failed to invalidate listings for user %s: %v", userID, err)
	}
}
