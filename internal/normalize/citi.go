package normalize

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"card-offers-api/internal/models"
)

// CitiNormalizer handles the Citi merchant offers payload: accountInfo with
// the card's last four plus an offerList array. Enrollment is a single-letter
// status code ("E" enrolled, "A" available).
type CitiNormalizer struct{}

func (CitiNormalizer) Source() string { return models.SourceCiti }

func (CitiNormalizer) Extract(payload []byte, collectedAt time.Time) ([]models.RawOffer, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("citi: invalid JSON payload")
	}

	root := gjson.ParseBytes(payload)
	cardNum := root.Get("accountInfo.cardLastFourDigits").String()
	cardLabel := root.Get("accountInfo.cardName").String()

	var offers []models.RawOffer
	root.Get("offerList").ForEach(func(_, entry gjson.Result) bool {
		id := entry.Get("offerId").String()
		if id == "" {
			return true
		}

		offers = append(offers, models.RawOffer{
			ID:          id,
			Source:      models.SourceCiti,
			CardNum:     cardNum,
			CardLabel:   cardLabel,
			Title:       entry.Get("displayName").String(),
			Summary:     entry.Get("offerDetails").String(),
			Image:       entry.Get("merchantOfferImage").String(),
			Expires:     entry.Get("expiryDate").String(),
			Categories:  tagList(entry.Get("categoryList")),
			Channels:    tagList(entry.Get("channelList")),
			Enrolled:    entry.Get("enrollmentStatus").String() == "E",
			CollectedAt: collectedAt,
		})
		return true
	})

	return offers, nil
}
