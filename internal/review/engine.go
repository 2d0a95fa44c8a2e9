// Package review implements the recording lifecycle: submission, the
// approve/discard review workflow, edit+resubmit, and the role checks that
// gate every transition. Authorization is checked before any write, so a
// rejected operation never leaves a partial mutation behind.
package review

import (
	"context"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/frogwatch/frogwatch-go/internal/blobstore"
	"github.com/frogwatch/frogwatch-go/internal/datastore"
	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/logging"
	"github.com/frogwatch/frogwatch-go/internal/observation"
)

// Package-level logger specific to the review engine
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "review.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "review", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize review file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "review")
		closeLogger = func() error { return nil }
	}
}

// Predictor identifies the species on an audio clip.
type Predictor interface {
	Predict(ctx context.Context, audio []byte, lat, lon float64) (observation.AIPrediction, error)
}

// Uploader stores audio bytes under a blob reference. An upload failure
// aborts the whole submission.
type Uploader interface {
	Upload(ctx context.Context, audioRef string, audio []byte) error
}

// Geocoder resolves coordinates to a place name. Implemented by the
// memoizing geocode cache; never returns an error, only a sentinel.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) string
}

// draftState tracks client-side submission state for one draft.
type draftState int

const (
	draftInFlight draftState = iota + 1
	draftFinalized
)

// Engine executes all role-gated mutations against the document store.
type Engine struct {
	store     datastore.Interface
	predictor Predictor
	uploader  Uploader
	geocoder  Geocoder

	mu     sync.Mutex
	drafts map[string]draftState
}

// NewEngine creates a review engine. The uploader and geocoder may be nil
// when the corresponding collaborator is not configured.
func NewEngine(store datastore.Interface, pred Predictor, uploader Uploader, geocoder Geocoder) *Engine {
	return &Engine{
		store:     store,
		predictor: pred,
		uploader:  uploader,
		geocoder:  geocoder,
		drafts:    make(map[string]draftState),
	}
}

// SubmitRequest carries one draft submission.
type SubmitRequest struct {
	// DraftID is the client-generated identity of the draft, used to reject
	// a second submit of the same draft without a network round trip.
	DraftID string

	Actor      observation.User
	CapturedAt time.Time
	Audio      []byte
	Latitude   float64
	Longitude  float64

	VolunteerConfidence observation.ConfidenceLevel
	VolunteerSpecies    string
	Notes               string

	// SelfApprove creates the recording already approved with a synthetic
	// review by the submitter. Experts and admins only.
	SelfApprove bool
}

// Submit runs the full submission pipeline: validation, authorization, the
// prediction call, the audio upload, and the document create. Any failure
// before the create leaves no recording behind; a failure of the create
// itself is atomic in the store.
func (e *Engine) Submit(ctx context.Context, req *SubmitRequest) (observation.Recording, error) {
	if err := validateSubmit(req); err != nil {
		return observation.Recording{}, err
	}

	if req.SelfApprove && !req.Actor.Role.CanModerate() {
		return observation.Recording{}, errors.AuthorizationError("submit with self-approve", string(req.Actor.Role))
	}

	if err := e.claimDraft(req.DraftID); err != nil {
		return observation.Recording{}, err
	}

	rec, err := e.submit(ctx, req)

	e.mu.Lock()
	if err != nil {
		// A failed submit releases the draft so the user can retry.
		delete(e.drafts, req.DraftID)
	} else {
		e.drafts[req.DraftID] = draftFinalized
	}
	e.mu.Unlock()

	return rec, err
}

func (e *Engine) submit(ctx context.Context, req *SubmitRequest) (observation.Recording, error) {
	prediction, err := e.predictor.Predict(ctx, req.Audio, req.Latitude, req.Longitude)
	if err != nil {
		return observation.Recording{}, err
	}

	audioRef := blobstore.NewAudioRef(req.Actor.ID)
	if e.uploader != nil {
		if err := e.uploader.Upload(ctx, audioRef, req.Audio); err != nil {
			logger.Error("audio upload failed, aborting submit",
				"draft_id", req.DraftID,
				"audio_ref", audioRef,
				"error", err)
			return observation.Recording{}, errors.New(err).
				Component("review").
				Category(errors.CategoryUpload).
				UserMessage("Uploading the recording failed, please try again.").
				Build()
		}
	}

	now := time.Now()
	rec := observation.Recording{
		ID:                  uuid.New().String(),
		OwnerID:             req.Actor.ID,
		CapturedAt:          req.CapturedAt,
		AudioRef:            audioRef,
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		AI:                  prediction,
		VolunteerConfidence: req.VolunteerConfidence,
		VolunteerSpecies:    req.VolunteerSpecies,
		Notes:               req.Notes,
		Status:              observation.StatusNeedsReview,
	}
	rec.AppendHistory(observation.ActionSubmit, req.Actor.ID, "", now)

	if req.SelfApprove {
		// The only path that creates a recording already approved: the
		// synthetic review is attached in the same create, so needs_review
		// is never observable for it.
		rec.Status = observation.StatusApproved
		rec.ReviewerID = req.Actor.ID
		reviewedAt := now
		rec.ReviewedAt = &reviewedAt
		rec.AppendHistory(observation.ActionApprove, req.Actor.ID, "", now)
	}

	if err := e.store.CreateRecording(&rec); err != nil {
		return observation.Recording{}, err
	}

	logger.Info("recording submitted",
		"recording_id", rec.ID,
		"owner_id", rec.OwnerID,
		"status", rec.Status,
		"species", rec.Species(),
		"mock_prediction", rec.AI.Mock)

	e.resolvePlace(ctx, &rec)

	return rec, nil
}

// resolvePlace lazily fills the place name after the recording exists. A
// geocoder failure only leaves the name empty for a later retry.
func (e *Engine) resolvePlace(ctx context.Context, rec *observation.Recording) {
	if e.geocoder == nil {
		return
	}
	name := e.geocoder.ReverseGeocode(ctx, rec.Latitude, rec.Longitude)
	if name == "" {
		return
	}
	rec.PlaceName = name
	if err := e.store.UpdateRecording(rec); err != nil {
		logger.Warn("failed to store resolved place name",
			"recording_id", rec.ID,
			"error", err)
	}
}

// claimDraft marks a draft as having an outstanding submit. A draft that is
// already in flight or finalized is rejected here, before any network call.
func (e *Engine) claimDraft(draftID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.drafts[draftID] {
	case draftInFlight:
		return errors.Newf("draft %s already has a submit in flight", draftID).
			Component("review").
			Category(errors.CategoryConflict).
			UserMessage("This recording is already being submitted.").
			Build()
	case draftFinalized:
		return errors.Newf("draft %s was already submitted", draftID).
			Component("review").
			Category(errors.CategoryConflict).
			UserMessage("This recording was already submitted.").
			Build()
	}

	e.drafts[draftID] = draftInFlight
	return nil
}

func validateSubmit(req *SubmitRequest) error {
	if req.DraftID == "" {
		return errors.ValidationError("a draft id is required")
	}
	if len(req.Audio) == 0 {
		return errors.ValidationError("an audio clip is required")
	}
	if !req.VolunteerConfidence.IsValid() {
		return errors.ValidationError("please select a confidence level before submitting")
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		return errors.ValidationError("the recording location is out of range")
	}
	if req.CapturedAt.IsZero() {
		return errors.ValidationError("a capture time is required")
	}
	return nil
}

// Close flushes the service log writer.
func Close() {
	if closeLogger != nil {
		_ = closeLogger()
	}
}
