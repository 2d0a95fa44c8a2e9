package datastore

import (
	"github.com/frogwatch/frogwatch-go/internal/datastore/entities"
	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/events"
	"github.com/frogwatch/frogwatch-go/internal/observation"
	"gorm.io/gorm"
)

// CreateRecording stores a new recording with its candidates and history as a
// single transaction. A failed write leaves no partially-created recording
// behind.
func (ds *DataStore) CreateRecording(rec *observation.Recording) error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	entity := recordingToEntity(rec)

	if err := ds.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&entity).Error
	}); err != nil {
		getLogger().Error("Failed to create recording", "recording_id", rec.ID, "error", err)
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "create_recording").
			Build()
	}

	ds.publishCommit(events.CollectionRecordings, rec.ID)
	return nil
}

// UpdateRecording overwrites a recording's mutable fields, replaces its
// candidate list and appends any new history entries, all in one transaction.
// Persisted history rows are never rewritten; the log is append-only.
func (ds *DataStore) UpdateRecording(rec *observation.Recording) error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&entities.RecordingEntity{}).Where("id = ?", rec.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			return errors.Newf("recording not found: %s", rec.ID).
				Category(errors.CategoryNotFound).
				Build()
		}

		columns := map[string]any{
			"place_name":           rec.PlaceName,
			"species":              rec.AI.Species,
			"confidence":           rec.AI.Confidence,
			"mock_prediction":      rec.AI.Mock,
			"volunteer_confidence": string(rec.VolunteerConfidence),
			"numeric_override":     rec.NumericOverride,
			"volunteer_species":    rec.VolunteerSpecies,
			"notes":                rec.Notes,
			"status":               string(rec.Status),
			"reviewer_id":          rec.ReviewerID,
			"reviewed_at":          rec.ReviewedAt,
		}
		if err := tx.Model(&entities.RecordingEntity{}).Where("id = ?", rec.ID).Updates(columns).Error; err != nil {
			return err
		}

		if err := tx.Where("recording_id = ?", rec.ID).Delete(&entities.CandidateEntity{}).Error; err != nil {
			return err
		}
		for i, c := range rec.AI.Top3 {
			candidate := entities.CandidateEntity{
				RecordingID: rec.ID,
				Rank:        i + 1,
				Species:     c.Species,
				Confidence:  c.Confidence,
			}
			if err := tx.Create(&candidate).Error; err != nil {
				return err
			}
		}

		var persisted int64
		if err := tx.Model(&entities.HistoryEntity{}).Where("recording_id = ?", rec.ID).Count(&persisted).Error; err != nil {
			return err
		}
		for _, h := range rec.History[min(int(persisted), len(rec.History)):] {
			entry := entities.HistoryEntity{
				RecordingID: rec.ID,
				Action:      h.Action,
				ActorID:     h.ActorID,
				Timestamp:   h.Timestamp,
				Comment:     h.Comment,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return err
		}
		getLogger().Error("Failed to update recording", "recording_id", rec.ID, "error", err)
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "update_recording").
			Build()
	}

	ds.publishCommit(events.CollectionRecordings, rec.ID)
	return nil
}

// GetRecording retrieves one recording by ID.
func (ds *DataStore) GetRecording(id string) (observation.Recording, error) {
	var entity entities.RecordingEntity
	err := ds.DB.
		Preload("Candidates").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp ASC, id ASC") }).
		First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return observation.Recording{}, errors.Newf("recording not found: %s", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return observation.Recording{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_recording").
			Build()
	}
	return recordingToDomain(&entity), nil
}

// GetAllRecordings returns every recording, newest capture first.
func (ds *DataStore) GetAllRecordings() ([]observation.Recording, error) {
	return ds.queryRecordings(ds.DB)
}

// GetRecordingsByOwner returns the recordings owned by one account, newest
// capture first.
func (ds *DataStore) GetRecordingsByOwner(ownerID string) ([]observation.Recording, error) {
	return ds.queryRecordings(ds.DB.Where("owner_id = ?", ownerID))
}

func (ds *DataStore) queryRecordings(q *gorm.DB) ([]observation.Recording, error) {
	var rows []entities.RecordingEntity
	err := q.
		Preload("Candidates").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp ASC, id ASC") }).
		Order("captured_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "query_recordings").
			Build()
	}

	recordings := make([]observation.Recording, 0, len(rows))
	for i := range rows {
		recordings = append(recordings, recordingToDomain(&rows[i]))
	}
	return recordings, nil
}

// SubmissionCount returns the number of recordings owned by one account,
// independent of status. The count is always derived, never stored.
func (ds *DataStore) SubmissionCount(ownerID string) (int64, error) {
	var count int64
	err := ds.DB.Model(&entities.RecordingEntity{}).Where("owner_id = ?", ownerID).Count(&count).Error
	if err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "submission_count").
			Build()
	}
	return count, nil
}

// SubmissionCounts returns the per-owner recording counts in one query.
func (ds *DataStore) SubmissionCounts() (map[string]int64, error) {
	var rows []struct {
		OwnerID string
		Count   int64
	}
	err := ds.DB.Model(&entities.RecordingEntity{}).
		Select("owner_id, count(*) as count").
		Group("owner_id").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "submission_counts").
			Build()
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.OwnerID] = row.Count
	}
	return counts, nil
}
