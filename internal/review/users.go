package review

import (
	"context"

	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/observation"
)

// Register creates a new account. Role is fixed to volunteer at
// registration; only an admin mutates it afterwards.
func (e *Engine) Register(ctx context.Context, userID string) (observation.User, error) {
	if userID == "" {
		return observation.User{}, errors.ValidationError("a user id is required")
	}
	u := observation.User{
		ID:   userID,
		Role: observation.RoleVolunteer,
	}
	if err := e.store.CreateUser(&u); err != nil {
		return observation.User{}, err
	}
	logger.Info("user registered", "user_id", userID)
	return u, nil
}

// RequestExpert marks the actor's own account as pending expert review.
// Experts and admins cannot request: pending and expert are mutually
// exclusive.
func (e *Engine) RequestExpert(ctx context.Context, actor observation.User) error {
	if actor.Role != observation.RoleVolunteer {
		return errors.Newf("account with role %s cannot request expert status", actor.Role).
			Component("review").
			Category(errors.CategoryState).
			UserMessage("Your account already has reviewer access.").
			Build()
	}

	actor.IsPendingExpert = true
	if err := e.store.UpdateUser(&actor); err != nil {
		return err
	}

	logger.Info("expert status requested", "user_id", actor.ID)
	return nil
}

// GrantExpert promotes an account to expert. Admin only. The role change
// and the pending flag clear land in one atomic update.
func (e *Engine) GrantExpert(ctx context.Context, actor observation.User, targetID string) error {
	return e.setRole(ctx, actor, targetID, observation.RoleExpert, "grant expert role")
}

// RevokeExpert demotes an account back to volunteer. Admin only.
func (e *Engine) RevokeExpert(ctx context.Context, actor observation.User, targetID string) error {
	return e.setRole(ctx, actor, targetID, observation.RoleVolunteer, "revoke expert role")
}

// ResolvePendingExpert approves or denies a pending expert request. Admin
// only. Approval is identical to a grant; denial only clears the pending
// flag.
func (e *Engine) ResolvePendingExpert(ctx context.Context, actor observation.User, targetID string, approve bool) error {
	if actor.Role != observation.RoleAdmin {
		return errors.AuthorizationError("resolve a pending expert request", string(actor.Role))
	}

	target, err := e.store.GetUser(targetID)
	if err != nil {
		return err
	}
	if !target.IsPendingExpert {
		return errors.Newf("user %s has no pending expert request", targetID).
			Component("review").
			Category(errors.CategoryState).
			Build()
	}

	if approve {
		target.Role = observation.RoleExpert
	}
	target.IsPendingExpert = false
	if err := e.store.UpdateUser(&target); err != nil {
		return err
	}

	logger.Info("pending expert request resolved",
		"user_id", targetID,
		"approved", approve,
		"resolved_by", actor.ID)
	return nil
}

func (e *Engine) setRole(ctx context.Context, actor observation.User, targetID string, role observation.Role, action string) error {
	if actor.Role != observation.RoleAdmin {
		return errors.AuthorizationError(action, string(actor.Role))
	}

	target, err := e.store.GetUser(targetID)
	if err != nil {
		return err
	}

	target.Role = role
	target.IsPendingExpert = false
	if err := e.store.UpdateUser(&target); err != nil {
		return err
	}

	logger.Info("role changed",
		"user_id", targetID,
		"role", role,
		"changed_by", actor.ID)
	return nil
}
