// internal/api/v2/recordings.go
package api

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/observation"
	"github.com/frogwatch/frogwatch-go/internal/review"
	"github.com/frogwatch/frogwatch-go/internal/search"
)

// RecordingResponse is the JSON shape of one recording.
type RecordingResponse struct {
	ID         string  `json:"id"`
	OwnerID    string  `json:"ownerId"`
	CapturedAt string  `json:"capturedAt"`
	AudioRef   string  `json:"audioRef"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	PlaceName  string  `json:"placeName,omitempty"`

	Species             string   `json:"species"`
	DisplayScore        *float64 `json:"displayScore,omitempty"`
	VolunteerConfidence string   `json:"volunteerConfidence,omitempty"`
	VolunteerSpecies    string   `json:"volunteerSpecies,omitempty"`
	Notes               string   `json:"notes,omitempty"`
	Mock                bool     `json:"mock,omitempty"`

	Status     string `json:"status"`
	ReviewerID string `json:"reviewerId,omitempty"`
	ReviewedAt string `json:"reviewedAt,omitempty"`

	History []HistoryResponse `json:"history"`
}

// HistoryResponse is one append-only history entry.
type HistoryResponse struct {
	Action    string `json:"action"`
	ActorID   string `json:"actorId"`
	Timestamp string `json:"timestamp"`
	Comment   string `json:"comment,omitempty"`
}

func recordingToResponse(rec *observation.Recording) RecordingResponse {
	resp := RecordingResponse{
		ID:                  rec.ID,
		OwnerID:             rec.OwnerID,
		CapturedAt:          rec.CapturedAt.Format(time.RFC3339),
		AudioRef:            rec.AudioRef,
		Latitude:            rec.Latitude,
		Longitude:           rec.Longitude,
		PlaceName:           rec.PlaceName,
		Species:             rec.Species(),
		VolunteerConfidence: string(rec.VolunteerConfidence),
		VolunteerSpecies:    rec.VolunteerSpecies,
		Notes:               rec.Notes,
		Mock:                rec.AI.Mock,
		Status:              string(rec.Status),
		ReviewerID:          rec.ReviewerID,
		History:             make([]HistoryResponse, 0, len(rec.History)),
	}
	if score, ok := rec.DisplayScore(); ok {
		resp.DisplayScore = &score
	}
	if rec.ReviewedAt != nil {
		resp.ReviewedAt = rec.ReviewedAt.Format(time.RFC3339)
	}
	for _, h := range rec.History {
		resp.History = append(resp.History, HistoryResponse{
			Action:    h.Action,
			ActorID:   h.ActorID,
			Timestamp: h.Timestamp.Format(time.RFC3339),
			Comment:   h.Comment,
		})
	}
	return resp
}

// ListRecordings returns the actor's visible recordings, filtered and
// sorted. Volunteers see their own submissions; experts and admins see all.
func (c *Controller) ListRecordings(ctx echo.Context) error {
	actor, err := c.resolveActor(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	var recs []observation.Recording
	if actor.Role.CanModerate() {
		recs, err = c.DS.GetAllRecordings()
	} else {
		recs, err = c.DS.GetRecordingsByOwner(actor.ID)
	}
	if err != nil {
		return c.handleError(ctx, err)
	}

	criteria := &search.Criteria{
		Query:   ctx.QueryParam("query"),
		Species: splitMulti(ctx.QueryParams()["species"]),
	}
	if v := ctx.QueryParam("start"); v != "" {
		criteria.Start, err = time.Parse("2006-01-02", v)
		if err != nil {
			return c.handleError(ctx, errors.ValidationError("start must be YYYY-MM-DD"))
		}
	}
	if v := ctx.QueryParam("end"); v != "" {
		criteria.End, err = time.Parse("2006-01-02", v)
		if err != nil {
			return c.handleError(ctx, errors.ValidationError("end must be YYYY-MM-DD"))
		}
	}

	recs = search.Filter(recs, criteria)
	search.SortByCaptureDesc(recs)

	out := make([]RecordingResponse, 0, len(recs))
	for i := range recs {
		out = append(out, recordingToResponse(&recs[i]))
	}
	counts := search.StatusCounts(recs)

	return ctx.JSON(http.StatusOK, map[string]any{
		"recordings": out,
		"counts": map[string]int{
			string(observation.StatusNeedsReview): counts[observation.StatusNeedsReview],
			string(observation.StatusApproved):    counts[observation.StatusApproved],
			string(observation.StatusDiscarded):   counts[observation.StatusDiscarded],
		},
	})
}

// splitMulti flattens repeated query parameters, dropping empties.
func splitMulti(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// submitBody is the JSON payload for POST /recordings.
type submitBody struct {
	DraftID             string  `json:"draftId"`
	CapturedAt          string  `json:"capturedAt"`
	AudioBase64         string  `json:"audio"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
	VolunteerConfidence string  `json:"volunteerConfidence"`
	VolunteerSpecies    string  `json:"volunteerSpecies"`
	Notes               string  `json:"notes"`
	SelfApprove         bool    `json:"selfApprove"`
}

// SubmitRecording runs the full submission pipeline for one draft.
func (c *Controller) SubmitRecording(ctx echo.Context) error {
	actor, err := c.resolveActor(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	var body submitBody
	if err := ctx.Bind(&body); err != nil {
		return c.handleError(ctx, errors.ValidationError("invalid request body"))
	}

	capturedAt, err := time.Parse(time.RFC3339, body.CapturedAt)
	if err != nil {
		return c.handleError(ctx, errors.ValidationError("capturedAt must be RFC 3339"))
	}
	audio, err := base64.StdEncoding.DecodeString(body.AudioBase64)
	if err != nil {
		return c.handleError(ctx, errors.ValidationError("audio must be base64"))
	}

	rec, err := c.engine.Submit(ctx.Request().Context(), &review.SubmitRequest{
		DraftID:             body.DraftID,
		Actor:               actor,
		CapturedAt:          capturedAt,
		Audio:               audio,
		Latitude:            body.Latitude,
		Longitude:           body.Longitude,
		VolunteerConfidence: observation.ConfidenceLevel(body.VolunteerConfidence),
		VolunteerSpecies:    body.VolunteerSpecies,
		Notes:               body.Notes,
		SelfApprove:         body.SelfApprove,
	})
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, recordingToResponse(&rec))
}

// reviewBody is the JSON payload for POST /recordings/:id/review.
type reviewBody struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

// ReviewRecording applies an approve or discard decision.
func (c *Controller) ReviewRecording(ctx echo.Context) error {
	actor, err := c.resolveActor(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	var body reviewBody
	if err := ctx.Bind(&body); err != nil {
		return c.handleError(ctx, errors.ValidationError("invalid request body"))
	}

	recordingID := ctx.Param("id")
	switch body.Decision {
	case string(observation.StatusApproved):
		err = c.engine.Approve(ctx.Request().Context(), actor, recordingID, body.Comment)
	case string(observation.StatusDiscarded):
		err = c.engine.Discard(ctx.Request().Context(), actor, recordingID, body.Comment)
	default:
		err = errors.ValidationError("decision must be approved or discarded")
	}
	if err != nil {
		return c.handleError(ctx, err)
	}

	rec, err := c.DS.GetRecording(recordingID)
	if err != nil {
		return c.handleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, recordingToResponse(&rec))
}

// resubmitBody is the JSON payload for POST /recordings/:id/resubmit.
type resubmitBody struct {
	VolunteerSpecies    string   `json:"volunteerSpecies"`
	Notes               string   `json:"notes"`
	VolunteerConfidence string   `json:"volunteerConfidence"`
	NumericOverride     *float64 `json:"numericOverride"`
}

// ResubmitRecording edits a recording and returns it to the review queue.
func (c *Controller) ResubmitRecording(ctx echo.Context) error {
	actor, err := c.resolveActor(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	var body resubmitBody
	if err := ctx.Bind(&body); err != nil {
		return c.handleError(ctx, errors.ValidationError("invalid request body"))
	}

	rec, err := c.engine.EditResubmit(ctx.Request().Context(), &review.EditRequest{
		Actor:               actor,
		RecordingID:         ctx.Param("id"),
		VolunteerSpecies:    body.VolunteerSpecies,
		Notes:               body.Notes,
		VolunteerConfidence: observation.ConfidenceLevel(body.VolunteerConfidence),
		NumericOverride:     body.NumericOverride,
	})
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, recordingToResponse(&rec))
}
