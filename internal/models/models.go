package models

import (
	"encoding/json"
	"time"
)

// Source identifiers for the banks offers are collected from.
const (
	SourceAmex  = "amex"
	SourceChase = "chase"
	SourceCiti  = "citi"
)

// KnownSource reports whether s is one of the supported bank sources.
func KnownSource(s string) bool {
	switch s {
	case SourceAmex, SourceChase, SourceCiti:
		return true
	}
	return false
}

// Offer is the canonical offer record. A row is identified by
// (ID, CardNum, UserID); ID is only unique within a source+card+user scope.
type Offer struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`    // amex | chase | citi
	CardNum     string    `json:"cardNum"`   // last digits of the card, "" when unknown
	CardLabel   string    `json:"cardLabel"` // cosmetic card name
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Image       string    `json:"image"`
	Expires     string    `json:"expires,omitempty"` // YYYY-MM-DD, "" when the source gave none
	Categories  []string  `json:"categories"`
	Channels    []string  `json:"channels"`
	Enrolled    bool      `json:"enrolled"`
	Highlighted bool      `json:"highlighted"`
	CollectedAt time.Time `json:"collectedAt"`
}

// RawOffer is the ingest-boundary shape. Historical uploaders disagree on
// field names (cardNum/card_num, source/bank, expires/expiresAt), so the
// aliases are resolved here, once, and nothing past the handler sees them.
type RawOffer struct {
	ID          string
	Source      string
	CardNum     string
	CardLabel   string
	Title       string
	Summary     string
	Image       string
	Expires     string // unnormalized, whatever the bank payload carried
	Categories  []string
	Channels    []string
	Enrolled    bool
	CollectedAt time.Time
}

type rawOfferJSON struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Bank        string    `json:"bank,omitempty"`
	CardNum     string    `json:"cardNum"`
	CardNumAlt  string    `json:"card_num,omitempty"`
	CardLabel   string    `json:"cardLabel"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Image       string    `json:"image"`
	Expires     string    `json:"expires"`
	ExpiresAt   string    `json:"expiresAt,omitempty"`
	Categories  []string  `json:"categories"`
	Channels    []string  `json:"channels"`
	Enrolled    bool      `json:"enrolled"`
	CollectedAt time.Time `json:"collectedAt"`
}

// UnmarshalJSON decodes a raw offer, preferring the canonical field name over
// its legacy alias when both are present.
func (o *RawOffer) UnmarshalJSON(data []byte) error {
	var aux rawOfferJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	o.ID = aux.ID
	o.Source = firstNonEmpty(aux.Source, aux.Bank)
	o.CardNum = firstNonEmpty(aux.CardNum, aux.CardNumAlt)
	o.CardLabel = aux.CardLabel
	o.Title = aux.Title
	o.Summary = aux.Summary
	o.Image = aux.Image
	o.Expires = firstNonEmpty(aux.Expires, aux.ExpiresAt)
	o.Categories = aux.Categories
	o.Channels = aux.Channels
	o.Enrolled = aux.Enrolled
	o.CollectedAt = aux.CollectedAt
	return nil
}

// MarshalJSON emits only the canonical field names.
func (o RawOffer) MarshalJSON() ([]byte, error) {
	return json.Marshal(rawOfferJSON{
		ID:          o.ID,
		Source:      o.Source,
		CardNum:     o.CardNum,
		CardLabel:   o.CardLabel,
		Title:       o.Title,
		Summary:     o.Summary,
		Image:       o.Image,
		Expires:     o.Expires,
		Categories:  o.Categories,
		Channels:    o.Channels,
		Enrolled:    o.Enrolled,
		CollectedAt: o.CollectedAt,
	})
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// IngestOffersRequest is the request body for uploading a batch of offers.
type IngestOffersRequest struct {
	Offers []RawOffer `json:"offers"`
}

// IngestOffersResponse reports how many offers a batch upload processed.
type IngestOffersResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

// ListOffersQuery carries the parsed listing filters.
type ListOffersQuery struct {
	Page        int
	Limit       int
	Search      string // substring match on title/summary
	CardNum     string // exact
	Source      string // exact
	Highlighted *bool  // nil means "either"
}

// ListOffersResponse is one page of offers plus both cardinalities: Total
// counts distinct offer ids, TotalRows counts rows (the same id under two
// cards counts twice).
type ListOffersResponse struct {
	Offers    []Offer `json:"offers"`
	Total     int     `json:"total"`
	TotalRows int     `json:"totalRows"`
	Page      int     `json:"page"`
	Limit     int     `json:"limit"`
}

// HighlightRequest is the body for toggling an offer's highlight flag.
type HighlightRequest struct {
	Highlighted bool `json:"highlighted"`
}

// PurgeOffersResponse reports how many rows a purge removed.
type PurgeOffersResponse struct {
	OK      bool `json:"ok"`
	Deleted int  `json:"deleted"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
