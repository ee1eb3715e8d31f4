package normalize

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"card-offers-api/internal/models"
)

// AmexNormalizer handles the Amex offers API response: a per-card envelope
// with the card's last-5 under cardAccount and an offers array.
type AmexNormalizer struct{}

func (AmexNormalizer) Source() string { return models.SourceAmex }

func (AmexNormalizer) Extract(payload []byte, collectedAt time.Time) ([]models.RawOffer, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("amex: invalid JSON payload")
	}

	root := gjson.ParseBytes(payload)
	cardNum := root.Get("cardAccount.last5").String()
	cardLabel := root.Get("cardAccount.productName").String()

	var offers []models.RawOffer
	root.Get("offers").ForEach(func(_, entry gjson.Result) bool {
		id := entry.Get("offerId").String()
		if id == "" {
			return true
		}

		offers = append(offers, models.RawOffer{
			ID:          id,
			Source:      models.SourceAmex,
			CardNum:     cardNum,
			CardLabel:   cardLabel,
			Title:       entry.Get("merchantName").String(),
			Summary:     entry.Get("shortDescription").String(),
			Image:       entry.Get("merchantLogoUrl").String(),
			Expires:     entry.Get("expirationDate").String(),
			Categories:  tagList(entry.Get("categories")),
			Channels:    tagList(entry.Get("redemptionChannels")),
			Enrolled:    entry.Get("enrolled").Bool(),
			CollectedAt: collectedAt,
		})
		return true
	})

	return offers, nil
}
