// Package collector is the client side of the ingestion pipeline: it
// accumulates normalized offers as they are scraped, debounces, and uploads
// them one card group at a time.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"card-offers-api/internal/models"
)

const defaultDebounce = 800 * time.Millisecond

// Batch is one upload unit: every pending offer sharing a (source, card)
// partition.
type Batch struct {
	Source  string
	CardNum string
	Offers  []models.RawOffer
}

// Sender uploads one batch. Implementations must be safe to call from the
// queue's drain goroutine.
type Sender interface {
	SendBatch(ctx context.Context, batch Batch) error
}

// StatusFunc receives human-readable upload status lines.
type StatusFunc func(status string)

type pendingKey struct {
	source  string
	offerID string
	cardNum string
}

// Queue accumulates offers, collapses duplicates, and flushes per-card
// batches through a single in-flight sender. Every Push re-arms the debounce
// timer; the batch goes out only after pushes stop for the debounce window.
type Queue struct {
	sender   Sender
	debounce time.Duration
	onStatus StatusFunc

	mu      sync.Mutex
	cond    *sync.Cond
	pending map[pendingKey]models.RawOffer
	order   []pendingKey
	queue   []Batch
	sending bool // single in-flight upload invariant
	timer   *time.Timer
	closed  bool
}

// QueueOptions configures a Queue.
type QueueOptions struct {
	// Debounce is how long pushes must go quiet before a flush (default 800ms).
	Debounce time.Duration
	// OnStatus, when set, receives upload progress lines.
	OnStatus StatusFunc
}

// NewQueue creates a batching queue in front of sender.
func NewQueue(sender Sender, opts QueueOptions) *Queue {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	q := &Queue{
		sender:   sender,
		debounce: opts.Debounce,
		onStatus: opts.OnStatus,
		pending:  make(map[pendingKey]models.RawOffer),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push adds an offer to the pending window. Exact duplicates (same source,
// offer id and card) within one window are dropped silently.
func (q *Queue) Push(offer models.RawOffer) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	key := pendingKey{source: offer.Source, offerID: offer.ID, cardNum: offer.CardNum}
	if _, dup := q.pending[key]; dup {
		return
	}
	q.pending[key] = offer
	q.order = append(q.order, key)

	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.debounce, q.flushPending)
}

// flushPending partitions the pending window by (source, card) and hands the
// batches to the send queue.
func (q *Queue) flushPending() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueuePendingLocked()
}

func (q *Queue) enqueuePendingLocked() {
	if len(q.pending) == 0 {
		return
	}

	type partition struct {
		source  string
		cardNum string
	}
	batches := make(map[partition]*Batch)
	var parts []partition

	for _, key := range q.order {
		offer, ok := q.pending[key]
		if !ok {
			continue
		}
		p := partition{source: key.source, cardNum: key.cardNum}
		b, ok := batches[p]
		if !ok {
			b = &Batch{Source: p.source, CardNum: p.cardNum}
			batches[p] = b
			parts = append(parts, p)
		}
		b.Offers = append(b.Offers, offer)
	}

	for _, p := range parts {
		q.queue = append(q.queue, *batches[p])
	}

	q.pending = make(map[pendingKey]models.RawOffer)
	q.order = nil

	if !q.sending {
		q.sending = true
		go q.drain()
	}
}

// drain uploads queued batches one at a time. A failed batch is dropped, not
// retried; the next batch goes out regardless.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.queue) == 0 {
			q.sending = false
			q.cond.Broadcast()
			q.mu.Unlock()
			return
		}
		batch := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()

		if err := q.sender.SendBatch(context.Background(), batch); err != nil {
			q.status("Send failed")
			continue
		}
		q.status(fmt.Sprintf("Sent %d offers (%s, card %q)", len(batch.Offers), batch.Source, batch.CardNum))
	}
}

func (q *Queue) status(s string) {
	if q.onStatus != nil {
		q.onStatus(s)
	}
}

// Flush forces the pending window out immediately and blocks until every
// queued batch has been attempted.
func (q *Queue) Flush() {
	q.mu.Lock()
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.enqueuePendingLocked()
	for q.sending || len(q.queue) > 0 {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// Close drains the queue and rejects further pushes.
func (q *Queue) Close() {
	q.Flush()
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
