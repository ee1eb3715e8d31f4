package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"card-offers-api/internal/models"
)

// ChaseNormalizer handles the Chase offer hub payload: an account block with
// the card mask and an offers array whose expiry strings read like
// "Expires 01/02/24".
type ChaseNormalizer struct{}

func (ChaseNormalizer) Source() string { return models.SourceChase }

func (ChaseNormalizer) Extract(payload []byte, collectedAt time.Time) ([]models.RawOffer, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("chase: invalid JSON payload")
	}

	root := gjson.ParseBytes(payload)
	cardNum := root.Get("account.mask").String()
	cardLabel := root.Get("account.productName").String()

	var offers []models.RawOffer
	root.Get("offers").ForEach(func(_, entry gjson.Result) bool {
		id := entry.Get("offerId").String()
		if id == "" {
			return true
		}

		offers = append(offers, models.RawOffer{
			ID:          id,
			Source:      models.SourceChase,
			CardNum:     cardNum,
			CardLabel:   cardLabel,
			Title:       entry.Get("title").String(),
			Summary:     entry.Get("description").String(),
			Image:       entry.Get("merchantLogo").String(),
			Expires:     entry.Get("expires").String(),
			Categories:  tagList(entry.Get("categories")),
			Channels:    tagList(entry.Get("channels")),
			Enrolled:    strings.EqualFold(entry.Get("status").String(), "enrolled"),
			CollectedAt: collectedAt,
		})
		return true
	})

	return offers, nil
}
