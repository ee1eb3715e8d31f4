// Package normalize maps the JSON payloads captured from bank offer pages
// into canonical offer records. Each bank gets its own Normalizer; the
// payload shapes here track what the banks' own offer APIs return, so they
// change when the banks do.
package normalize

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"card-offers-api/internal/models"
)

// Normalizer extracts canonical offers from one bank's payload shape.
type Normalizer interface {
	// Source returns the bank source identifier this normalizer handles.
	Source() string
	// Extract pulls offer records out of a captured response body.
	Extract(payload []byte, collectedAt time.Time) ([]models.RawOffer, error)
}

var registry = map[string]Normalizer{
	models.SourceAmex:  AmexNormalizer{},
	models.SourceChase: ChaseNormalizer{},
	models.SourceCiti:  CitiNormalizer{},
}

// ForSource returns the normalizer for a bank source.
func ForSource(source string) (Normalizer, error) {
	n, ok := registry[source]
	if !ok {
		return nil, fmt.Errorf("no normalizer for source %q", source)
	}
	return n, nil
}

func tagList(result gjson.Result) []string {
	if !result.Exists() {
		return nil
	}
	var tags []string
	result.ForEach(func(_, value gjson.Result) bool {
		if s := value.String(); s != "" {
			tags = append(tags, s)
		}
		return true
	})
	return tags
}
