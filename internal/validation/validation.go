package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"card-offers-api/internal/models"
)

var cardNumRegex = regexp.MustCompile(`^\d{1,8}$`)

const (
	maxBatchSize = 1000
	maxTagCount  = 50
	maxFieldLen  = 2048
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidateBatch checks an uploaded offer batch as a whole.
func ValidateBatch(offers []models.RawOffer) error {
	if len(offers) == 0 {
		return &ValidationError{
			Field:   "offers",
			Message: "at least one offer is required",
		}
	}

	if len(offers) > maxBatchSize {
		return &ValidationError{
			Field:   "offers",
			Message: fmt.Sprintf("cannot process more than %d offers per request", maxBatchSize),
		}
	}

	for i, offer := range offers {
		if err := ValidateRawOffer(offer); err != nil {
			return fmt.Errorf("invalid offer at index %d: %w", i, err)
		}
	}

	return nil
}

// ValidateRawOffer checks a single incoming offer before it is normalized.
func ValidateRawOffer(offer models.RawOffer) error {
	if offer.ID == "" {
		return &ValidationError{
			Field:   "id",
			Message: "is required",
		}
	}

	if len(offer.ID) > maxFieldLen {
		return &ValidationError{
			Field:   "id",
			Message: "exceeds maximum length",
		}
	}

	if offer.Source == "" {
		return &ValidationError{
			Field:   "source",
			Message: "is required",
		}
	}

	if !models.KnownSource(offer.Source) {
		return &ValidationError{
			Field:   "source",
			Message: fmt.Sprintf("unknown source '%s'", offer.Source),
		}
	}

	if err := ValidateCardNum(offer.CardNum); err != nil {
		return err
	}

	if len(offer.Title) > maxFieldLen {
		return &ValidationError{
			Field:   "title",
			Message: "exceeds maximum length",
		}
	}

	if err := validateTags(offer.Categories, "categories"); err != nil {
		return err
	}

	if err := validateTags(offer.Channels, "channels"); err != nil {
		return err
	}

	return nil
}

// ValidateCardNum checks a card identifier. Empty is allowed (card unknown);
// otherwise it must be the trailing digits of a card number.
func ValidateCardNum(cardNum string) error {
	if cardNum == "" {
		return nil
	}

	if !cardNumRegex.MatchString(cardNum) {
		return &ValidationError{
			Field:   "cardNum",
			Message: "must be digits only",
		}
	}

	return nil
}

func validateTags(tags []string, field string) error {
	if len(tags) > maxTagCount {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("cannot contain more than %d entries", maxTagCount),
		}
	}

	for i, tag := range tags {
		if len(tag) > maxFieldLen {
			return &ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "exceeds maximum length",
			}
		}
	}

	return nil
}

// SanitizeString drops control characters (except whitespace) and trims.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// SanitizeRawOffer sanitizes all string fields of an incoming offer in place.
func SanitizeRawOffer(offer *models.RawOffer) {
	offer.ID = SanitizeString(offer.ID)
	offer.Source = strings.ToLower(SanitizeString(offer.Source))
	offer.CardNum = SanitizeString(offer.CardNum)
	offer.CardLabel = SanitizeString(offer.CardLabel)
	offer.Title = SanitizeString(offer.Title)
	offer.Summary = SanitizeString(offer.Summary)
	offer.Image = SanitizeString(offer.Image)
	offer.Expires = SanitizeString(offer.Expires)
	for i := range offer.Categories {
		offer.Categories[i] = SanitizeString(offer.Categories[i])
	}
	for i := range offer.Channels {
		offer.Channels[i] = SanitizeString(offer.Channels[i])
	}
}
