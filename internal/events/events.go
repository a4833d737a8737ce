// Package events defines the best-effort progress notification port. Workers
// publish after each terminal transition; delivery to subscribers is never
// required for correctness and must never block or fail the pipeline.
package events

import "github.com/eraycetinay/mailblast/internal/domain"

// Progress reports one batch's counters after a terminal transition.
type Progress struct {
	BatchID   string `json:"batchId"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

// Completion reports a batch reaching its final status.
type Completion struct {
	BatchID     string             `json:"batchId"`
	FinalStatus domain.BatchStatus `json:"finalStatus"`
}

// Publisher fans progress events out to subscribers.
type Publisher interface {
	PublishProgress(event Progress)
	PublishCompletion(event Completion)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) PublishProgress(Progress)     {}
func (NopPublisher) PublishCompletion(Completion) {}
