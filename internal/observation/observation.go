// Package observation defines the domain model for frog-call recordings and
// the accounts that submit and review them.
package observation

import (
	"fmt"
	"time"

	"github.com/frogwatch/frogwatch-go/internal/errors"
)

// Status is the review lifecycle state of a Recording.
type Status string

const (
	StatusNeedsReview Status = "needs_review"
	StatusApproved    Status = "approved"
	StatusDiscarded   Status = "discarded"
)

// IsValid reports whether s is one of the defined lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusNeedsReview, StatusApproved, StatusDiscarded:
		return true
	}
	return false
}

// Action names recorded in a Recording's history log.
const (
	ActionSubmit   = "submit"
	ActionApprove  = "approve"
	ActionDiscard  = "discard"
	ActionResubmit = "resubmit"
)

// ConfidenceLevel is the coarse categorical confidence a volunteer selects.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// IsValid reports whether c is one of the defined levels. The empty level is
// not valid; optionality is expressed by the caller.
func (c ConfidenceLevel) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// SpeciesGuess is one entry of a prediction's ranked candidate list.
type SpeciesGuess struct {
	Species    string
	Confidence float64
}

// AIPrediction is the result of the external species predictor for one clip.
// Mock is set when the prediction came from the local fallback rather than a
// configured endpoint.
type AIPrediction struct {
	Species    string
	Confidence float64
	Top3       []SpeciesGuess
	Mock       bool
}

// Validate checks the prediction invariants: at most three candidates,
// confidences within [0,1] and sorted descending.
func (p *AIPrediction) Validate() error {
	if p.Confidence < 0 || p.Confidence > 1 {
		return errors.Newf("prediction confidence out of range: %f", p.Confidence).
			Category(errors.CategoryValidation).
			Build()
	}
	if len(p.Top3) > 3 {
		return errors.Newf("prediction candidate list too long: %d", len(p.Top3)).
			Category(errors.CategoryValidation).
			Build()
	}
	prev := 1.0
	for i := range p.Top3 {
		c := p.Top3[i].Confidence
		if c < 0 || c > 1 {
			return errors.Newf("candidate confidence out of range: %f", c).
				Category(errors.CategoryValidation).
				Build()
		}
		if c > prev {
			return errors.Newf("candidate confidences not sorted descending at index %d", i).
				Category(errors.CategoryValidation).
				Build()
		}
		prev = c
	}
	return nil
}

// HistoryEntry is one append-only log entry on a Recording.
type HistoryEntry struct {
	Action    string
	ActorID   string
	Timestamp time.Time
	Comment   string // optional reviewer comment
}

// Recording is one submitted frog-call observation.
type Recording struct {
	ID         string
	OwnerID    string
	CapturedAt time.Time
	AudioRef   string // opaque blob locator, resolved by blobstore
	Latitude   float64
	Longitude  float64
	PlaceName  string // resolved lazily via the geocode memoizer, empty until then

	AI                  AIPrediction
	VolunteerConfidence ConfidenceLevel // optional, empty when not selected
	NumericOverride     *float64        // percent 0-100, set only via edit
	VolunteerSpecies    string          // optional override of the AI species
	Notes               string

	Status     Status
	ReviewerID string
	ReviewedAt *time.Time

	History []HistoryEntry
}

// Species returns the display species: the volunteer override when present,
// otherwise the AI determination.
func (r *Recording) Species() string {
	if r.VolunteerSpecies != "" {
		return r.VolunteerSpecies
	}
	return r.AI.Species
}

// DisplayScore returns the reconciled confidence as a percent, selecting the
// numeric override over the AI confidence. The second result is false when no
// confidence signal is available at all.
func (r *Recording) DisplayScore() (float64, bool) {
	if r.NumericOverride != nil {
		return NormalizeConfidence(*r.NumericOverride), true
	}
	if r.AI.Species != "" {
		return NormalizeConfidence(r.AI.Confidence), true
	}
	return 0, false
}

// Reviewed reports whether the recording carries reviewer fields.
func (r *Recording) Reviewed() bool {
	return r.Status == StatusApproved || r.Status == StatusDiscarded
}

// AppendHistory appends one history entry, keeping timestamps non-decreasing.
func (r *Recording) AppendHistory(action, actorID, comment string, at time.Time) {
	if n := len(r.History); n > 0 && at.Before(r.History[n-1].Timestamp) {
		at = r.History[n-1].Timestamp
	}
	r.History = append(r.History, HistoryEntry{
		Action:    action,
		ActorID:   actorID,
		Timestamp: at,
		Comment:   comment,
	})
}

// Validate checks the recording's structural invariants.
func (r *Recording) Validate() error {
	if !r.Status.IsValid() {
		return errors.Newf("invalid recording status: %q", r.Status).
			Category(errors.CategoryValidation).
			Build()
	}
	if r.Reviewed() && r.ReviewerID == "" {
		return errors.Newf("recording %s is %s without a reviewer", r.ID, r.Status).
			Category(errors.CategoryState).
			Build()
	}
	if r.NumericOverride != nil {
		if v := *r.NumericOverride; v < 0 || v > 100 {
			return errors.Newf("numeric confidence override out of range: %f", v).
				Category(errors.CategoryValidation).
				Build()
		}
	}
	if r.VolunteerConfidence != "" && !r.VolunteerConfidence.IsValid() {
		return errors.Newf("invalid volunteer confidence: %q", r.VolunteerConfidence).
			Category(errors.CategoryValidation).
			Build()
	}
	if err := r.AI.Validate(); err != nil {
		return fmt.Errorf("recording %s: %w", r.ID, err)
	}
	for i := 1; i < len(r.History); i++ {
		if r.History[i].Timestamp.Before(r.History[i-1].Timestamp) {
			return errors.Newf("history timestamps decrease at entry %d", i).
				Category(errors.CategoryState).
				Build()
		}
	}
	return nil
}

// NormalizeConfidence converts a confidence value to a percent for display.
// Values at or below 1 are treated as fractions and scaled; values above 1
// are already percents and pass through unchanged, which makes the
// normalization idempotent.
func NormalizeConfidence(v float64) float64 {
	if v <= 1 {
		return v * 100
	}
	return v
}
