package datastore

import (
	"github.com/frogwatch/frogwatch-go/internal/datastore/entities"
	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/events"
	"github.com/frogwatch/frogwatch-go/internal/observation"
	"gorm.io/gorm"
)

// CreateUser stores a new account.
func (ds *DataStore) CreateUser(u *observation.User) error {
	entity := userToEntity(u)
	if err := ds.DB.Create(&entity).Error; err != nil {
		getLogger().Error("Failed to create user", "user_id", u.ID, "error", err)
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "create_user").
			Build()
	}

	ds.publishCommit(events.CollectionUsers, u.ID)
	return nil
}

// UpdateUser writes role and pending-expert state in a single update so a
// grant is observed atomically: the explicit role, the legacy flags it
// shadows, and the pending bit change together or not at all.
func (ds *DataStore) UpdateUser(u *observation.User) error {
	entity := userToEntity(u)
	result := ds.DB.Model(&entities.UserEntity{}).Where("id = ?", u.ID).Updates(map[string]any{
		"role":              entity.Role,
		"is_admin":          entity.IsAdmin,
		"is_expert":         entity.IsExpert,
		"is_pending_expert": entity.IsPendingExpert,
	})
	if result.Error != nil {
		getLogger().Error("Failed to update user", "user_id", u.ID, "error", result.Error)
		return errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "update_user").
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.Newf("user not found: %s", u.ID).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}

	ds.publishCommit(events.CollectionUsers, u.ID)
	return nil
}

// GetUser retrieves one account, resolving the dual role representation into
// the canonical Role at this boundary.
func (ds *DataStore) GetUser(id string) (observation.User, error) {
	var entity entities.UserEntity
	if err := ds.DB.First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return observation.User{}, errors.Newf("user not found: %s", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return observation.User{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_user").
			Build()
	}
	return userToDomain(&entity), nil
}

// GetModerationTargets returns all accounts that can appear in the admin's
// moderation listing. Admins are excluded after roles are resolved, so a
// legacy is_admin flag hides an account just like an explicit admin role.
func (ds *DataStore) GetModerationTargets() ([]observation.User, error) {
	var rows []entities.UserEntity
	if err := ds.DB.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "moderation_targets").
			Build()
	}

	users := make([]observation.User, 0, len(rows))
	for i := range rows {
		u := userToDomain(&rows[i])
		if u.Role == observation.RoleAdmin {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}
