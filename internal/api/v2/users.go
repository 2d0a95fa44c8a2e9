// internal/api/v2/users.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/observation"
)

// UserResponse is the JSON shape of one account in the moderation view.
type UserResponse struct {
	ID              string `json:"id"`
	Role            string `json:"role"`
	IsPendingExpert bool   `json:"isPendingExpert,omitempty"`
	SubmissionCount int64  `json:"submissionCount"`
}

// ListUsers returns the moderation view: every non-admin account together
// with its submission count. Admin only.
func (c *Controller) ListUsers(ctx echo.Context) error {
	actor, err := c.resolveActor(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}
	if actor.Role != observation.RoleAdmin {
		return c.handleError(ctx, errors.AuthorizationError("list users", string(actor.Role)))
	}

	users, err := c.DS.GetModerationTargets()
	if err != nil {
		return c.handleError(ctx, err)
	}
	counts, err := c.DS.SubmissionCounts()
	if err != nil {
		return c.handleError(ctx, err)
	}

	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, UserResponse{
			ID:              users[i].ID,
			Role:            string(users[i].Role),
			IsPendingExpert: users[i].IsPendingExpert,
			SubmissionCount: counts[users[i].ID],
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"users": out})
}

// roleBody is the JSON payload for POST /users/:id/role.
type roleBody struct {
	// Action is one of grant-expert, revoke-expert, approve-pending,
	// reject-pending.
	Action string `json:"action"`
}

// ChangeRole applies an admin role mutation to the target account.
func (c *Controller) ChangeRole(ctx echo.Context) error {
	actor, err := c.resolveActor(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	var body roleBody
	if err := ctx.Bind(&body); err != nil {
		return c.handleError(ctx, errors.ValidationError("invalid request body"))
	}

	targetID := ctx.Param("id")
	reqCtx := ctx.Request().Context()
	switch body.Action {
	case "grant-expert":
		err = c.engine.GrantExpert(reqCtx, actor, targetID)
	case "revoke-expert":
		err = c.engine.RevokeExpert(reqCtx, actor, targetID)
	case "approve-pending":
		err = c.engine.ResolvePendingExpert(reqCtx, actor, targetID, true)
	case "reject-pending":
		err = c.engine.ResolvePendingExpert(reqCtx, actor, targetID, false)
	default:
		err = errors.ValidationError("unknown role action")
	}
	if err != nil {
		return c.handleError(ctx, err)
	}

	target, err := c.DS.GetUser(targetID)
	if err != nil {
		return c.handleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, UserResponse{
		ID:              target.ID,
		Role:            string(target.Role),
		IsPendingExpert: target.IsPendingExpert,
	})
}

// RequestExpert flags the calling volunteer as wanting the expert role.
func (c *Controller) RequestExpert(ctx echo.Context) error {
	actor, err := c.resolveActor(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}
	if err := c.engine.RequestExpert(ctx.Request().Context(), actor); err != nil {
		return c.handleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "pending"})
}
