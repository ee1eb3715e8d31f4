package validation

import (
	"errors"
	"testing"

	"card-offers-api/internal/models"
)

func validOffer() models.RawOffer {
	return models.RawOffer{
		ID:      "X1",
		Source:  models.SourceAmex,
		CardNum: "12345",
		Title:   "10% back",
	}
}

func TestValidateBatch_Empty(t *testing.T) {
	if err := ValidateBatch(nil); err == nil {
		t.Error("Expected error for empty batch")
	}
	if err := ValidateBatch([]models.RawOffer{}); err == nil {
		t.Error("Expected error for empty batch")
	}
}

func TestValidateBatch_TooLarge(t *testing.T) {
	batch := make([]models.RawOffer, maxBatchSize+1)
	for i := range batch {
		batch[i] = validOffer()
	}
	if err := ValidateBatch(batch); err == nil {
		t.Error("Expected error for oversized batch")
	}
}

func TestValidateBatch_WrapsOffenderIndex(t *testing.T) {
	bad := validOffer()
	bad.Source = "boa"

	err := ValidateBatch([]models.RawOffer{validOffer(), bad})
	if err == nil {
		t.Fatal("Expected error")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("Expected wrapped ValidationError, got %v", err)
	}
}

func TestValidateRawOffer(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.RawOffer)
		wantOK bool
	}{
		{"valid", func(o *models.RawOffer) {}, true},
		{"cardless is valid", func(o *models.RawOffer) { o.CardNum = "" }, true},
		{"missing id", func(o *models.RawOffer) { o.ID = "" }, false},
		{"missing source", func(o *models.RawOffer) { o.Source = "" }, false},
		{"unknown source", func(o *models.RawOffer) { o.Source = "boa" }, false},
		{"non-digit card", func(o *models.RawOffer) { o.CardNum = "12a45" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offer := validOffer()
			tt.mutate(&offer)
			err := ValidateRawOffer(offer)
			if tt.wantOK && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
			if !tt.wantOK && err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSanitizeRawOffer(t *testing.T) {
	offer := models.RawOffer{
		ID:      " X1\x00 ",
		Source:  " AMEX ",
		CardNum: " 12345 ",
		Title:   "deal\x07",
	}

	SanitizeRawOffer(&offer)

	if offer.ID != "X1" {
		t.Errorf("Expected sanitized id, got %q", offer.ID)
	}
	if offer.Source != "amex" {
		t.Errorf("Expected lowercased source, got %q", offer.Source)
	}
	if offer.CardNum != "12345" {
		t.Errorf("Expected trimmed card, got %q", offer.CardNum)
	}
	if offer.Title != "deal" {
		t.Errorf("Expected control chars stripped, got %q", offer.Title)
	}
}
