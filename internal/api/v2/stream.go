// internal/api/v2/stream.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/livequery"
	"github.com/frogwatch/frogwatch-go/internal/observation"
)

// heartbeatInterval keeps idle SSE connections from being reaped by proxies.
const heartbeatInterval = 30 * time.Second

// snapshotEvent is the SSE payload: one full snapshot of the subscribed
// result set. Clients replace their local state wholesale on every event.
type snapshotEvent struct {
	Scope      string              `json:"scope"`
	Seq        uint64              `json:"seq"`
	At         string              `json:"at"`
	Recordings []RecordingResponse `json:"recordings,omitempty"`
	Ranks      []int               `json:"ranks,omitempty"`
	Users      []UserResponse      `json:"users,omitempty"`
}

// StreamRecordings serves the live snapshot stream over SSE. The scope query
// parameter selects the result set; it defaults to the actor's own
// recordings, and the wider scopes are role gated.
func (c *Controller) StreamRecordings(ctx echo.Context) error {
	actor, err := c.resolveActor(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	scope, err := c.scopeForRequest(ctx, actor)
	if err != nil {
		return c.handleError(ctx, err)
	}

	sub, err := c.live.Subscribe(scope)
	if err != nil {
		return c.handleError(ctx, err)
	}
	defer c.live.Unsubscribe(sub)

	c.setSSEHeaders(ctx)
	ctx.Response().WriteHeader(http.StatusOK)
	ctx.Response().Flush()

	clientGone := ctx.Request().Context().Done()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-clientGone:
			return nil
		case <-sub.Done():
			// Actor switch or service shutdown tore the subscription down.
			return nil
		case snapshot, ok := <-sub.Snapshots():
			if !ok {
				return nil
			}
			if err := c.writeSnapshot(ctx, snapshot); err != nil {
				return nil
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprintf(ctx.Response(), ": heartbeat\n\n"); err != nil {
				return nil
			}
			ctx.Response().Flush()
		}
	}
}

func (c *Controller) scopeForRequest(ctx echo.Context, actor observation.User) (livequery.Scope, error) {
	kind := livequery.ScopeKind(ctx.QueryParam("scope"))
	if kind == "" {
		kind = livequery.ScopeOwnerRecordings
	}

	switch kind {
	case livequery.ScopeOwnerRecordings:
		return livequery.Scope{Kind: kind, OwnerID: actor.ID, ActorID: actor.ID}, nil
	case livequery.ScopeAllRecordings:
		if !actor.Role.CanModerate() {
			return livequery.Scope{}, errors.AuthorizationError("stream all recordings", string(actor.Role))
		}
		return livequery.Scope{Kind: kind, ActorID: actor.ID}, nil
	case livequery.ScopeModerationUsers:
		if actor.Role != observation.RoleAdmin {
			return livequery.Scope{}, errors.AuthorizationError("stream users", string(actor.Role))
		}
		return livequery.Scope{Kind: kind, ActorID: actor.ID}, nil
	default:
		return livequery.Scope{}, errors.ValidationError("unknown scope")
	}
}

func (c *Controller) setSSEHeaders(ctx echo.Context) {
	ctx.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	ctx.Response().Header().Set("Cache-Control", "no-cache")
	ctx.Response().Header().Set("Connection", "keep-alive")
	ctx.Response().Header().Set("X-Accel-Buffering", "no")
}

func (c *Controller) writeSnapshot(ctx echo.Context, snapshot *livequery.Snapshot) error {
	event := snapshotEvent{
		Scope: string(snapshot.Scope.Kind),
		Seq:   snapshot.Seq,
		At:    snapshot.At.Format(time.RFC3339),
	}
	for i := range snapshot.Recordings {
		event.Recordings = append(event.Recordings, recordingToResponse(&snapshot.Recordings[i].Recording))
		event.Ranks = append(event.Ranks, snapshot.Recordings[i].Rank)
	}
	for i := range snapshot.Users {
		entry := &snapshot.Users[i]
		event.Users = append(event.Users, UserResponse{
			ID:              entry.User.ID,
			Role:            string(entry.User.Role),
			IsPendingExpert: entry.User.IsPendingExpert,
			SubmissionCount: entry.SubmissionCount,
		})
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(ctx.Response(), "event: snapshot\ndata: %s\n\n", data); err != nil {
		return err
	}
	ctx.Response().Flush()
	return nil
}
