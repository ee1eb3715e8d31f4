package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"card-offers-api/internal/models"
)

const defaultRequestTimeout = 15 * time.Second

// Uploader posts batches to the backend ingestion endpoint. One request at a
// time; the queue enforces that.
type Uploader struct {
	client *resty.Client
}

// UploaderOptions configures an Uploader.
type UploaderOptions struct {
	// Timeout bounds each upload request (default 15s).
	Timeout time.Duration
}

// NewUploader creates an uploader for the backend at baseURL, authenticating
// with the given bearer token.
func NewUploader(baseURL, token string, opts UploaderOptions) *Uploader {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Uploader{client: client}
}

// SendBatch uploads one batch to POST /offers.
func (u *Uploader) SendBatch(ctx context.Context, batch Batch) error {
	var result models.IngestOffersResponse
	var apiErr models.ErrorResponse

	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(models.IngestOffersRequest{Offers: batch.Offers}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/offers")
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}

	if resp.IsError() {
		if apiErr.Error != "" {
			return fmt.Errorf("upload rejected (%d): %s", resp.StatusCode(), apiErr.Error)
		}
		return fmt.Errorf("upload rejected (%d)", resp.StatusCode())
	}

	if !result.OK {
		return fmt.Errorf("upload not acknowledged")
	}

	return nil
}
