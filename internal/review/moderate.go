package review

import (
	"context"
	"time"

	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/observation"
)

// Approve resolves a needs_review recording to approved. Re-applying it to
// an already-approved recording is a no-op so duplicate deliveries are
// harmless; approving a discarded recording is illegal without a resubmit in
// between.
func (e *Engine) Approve(ctx context.Context, actor observation.User, recordingID, comment string) error {
	return e.moderate(ctx, actor, recordingID, comment, observation.StatusApproved)
}

// Discard resolves a needs_review recording to discarded. Symmetric to
// Approve: duplicate discards are no-ops, discarding an approved recording
// is illegal.
func (e *Engine) Discard(ctx context.Context, actor observation.User, recordingID, comment string) error {
	return e.moderate(ctx, actor, recordingID, comment, observation.StatusDiscarded)
}

func (e *Engine) moderate(ctx context.Context, actor observation.User, recordingID, comment string, target observation.Status) error {
	action := observation.ActionApprove
	if target == observation.StatusDiscarded {
		action = observation.ActionDiscard
	}

	// Authorization first: a rejected actor never triggers a store read or write.
	if !actor.Role.CanModerate() {
		return errors.AuthorizationError(action, string(actor.Role))
	}

	rec, err := e.store.GetRecording(recordingID)
	if err != nil {
		return err
	}

	if rec.Status == target {
		logger.Debug("duplicate moderation delivery ignored",
			"recording_id", recordingID,
			"status", rec.Status)
		return nil
	}
	if rec.Status != observation.StatusNeedsReview {
		return errors.Newf("cannot %s a recording in state %s", action, rec.Status).
			Component("review").
			Category(errors.CategoryState).
			Context("recording_id", recordingID).
			UserMessage("This recording must be resubmitted before it can be reviewed again.").
			Build()
	}

	now := time.Now()
	rec.Status = target
	rec.ReviewerID = actor.ID
	rec.ReviewedAt = &now
	rec.AppendHistory(action, actor.ID, comment, now)

	if err := e.store.UpdateRecording(&rec); err != nil {
		return err
	}

	logger.Info("recording reviewed",
		"recording_id", recordingID,
		"reviewer_id", actor.ID,
		"decision", target)
	return nil
}

// EditRequest carries an owner's edit+resubmit payload. Field values
// overwrite the stored ones; a nil NumericOverride clears any prior
// override.
type EditRequest struct {
	Actor       observation.User
	RecordingID string

	VolunteerSpecies    string
	Notes               string
	VolunteerConfidence observation.ConfidenceLevel
	NumericOverride     *float64
}

// EditResubmit returns a recording of any state to needs_review. Only the
// original owner may edit; reviewer fields are cleared and exactly one
// history entry is appended.
func (e *Engine) EditResubmit(ctx context.Context, req *EditRequest) (observation.Recording, error) {
	if req.NumericOverride != nil {
		if v := *req.NumericOverride; v < 0 || v > 100 {
			return observation.Recording{}, errors.ValidationError("confidence must be between 0 and 100")
		}
	}
	if req.VolunteerConfidence != "" && !req.VolunteerConfidence.IsValid() {
		return observation.Recording{}, errors.ValidationError("invalid confidence level")
	}

	rec, err := e.store.GetRecording(req.RecordingID)
	if err != nil {
		return observation.Recording{}, err
	}

	if rec.OwnerID != req.Actor.ID {
		return observation.Recording{}, errors.AuthorizationError("edit this recording", string(req.Actor.Role))
	}

	rec.VolunteerSpecies = req.VolunteerSpecies
	rec.Notes = req.Notes
	rec.VolunteerConfidence = req.VolunteerConfidence
	rec.NumericOverride = req.NumericOverride
	rec.Status = observation.StatusNeedsReview
	rec.ReviewerID = ""
	rec.ReviewedAt = nil
	rec.AppendHistory(observation.ActionResubmit, req.Actor.ID, "", time.Now())

	if err := e.store.UpdateRecording(&rec); err != nil {
		return observation.Recording{}, err
	}

	logger.Info("recording resubmitted",
		"recording_id", rec.ID,
		"owner_id", rec.OwnerID)
	return rec, nil
}
