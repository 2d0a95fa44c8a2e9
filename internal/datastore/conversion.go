package datastore

import (
	"sort"

	"github.com/frogwatch/frogwatch-go/internal/datastore/entities"
	"github.com/frogwatch/frogwatch-go/internal/observation"
)

// recordingToEntity maps a domain recording onto its persistence model.
func recordingToEntity(rec *observation.Recording) entities.RecordingEntity {
	e := entities.RecordingEntity{
		ID:                  rec.ID,
		OwnerID:             rec.OwnerID,
		CapturedAt:          rec.CapturedAt,
		AudioRef:            rec.AudioRef,
		Latitude:            rec.Latitude,
		Longitude:           rec.Longitude,
		PlaceName:           rec.PlaceName,
		Species:             rec.AI.Species,
		Confidence:          rec.AI.Confidence,
		MockPrediction:      rec.AI.Mock,
		VolunteerConfidence: string(rec.VolunteerConfidence),
		NumericOverride:     rec.NumericOverride,
		VolunteerSpecies:    rec.VolunteerSpecies,
		Notes:               rec.Notes,
		Status:              string(rec.Status),
		ReviewerID:          rec.ReviewerID,
		ReviewedAt:          rec.ReviewedAt,
	}

	for i, c := range rec.AI.Top3 {
		e.Candidates = append(e.Candidates, entities.CandidateEntity{
			Rank:       i + 1,
			Species:    c.Species,
			Confidence: c.Confidence,
		})
	}

	for _, h := range rec.History {
		e.History = append(e.History, entities.HistoryEntity{
			Action:    h.Action,
			ActorID:   h.ActorID,
			Timestamp: h.Timestamp,
			Comment:   h.Comment,
		})
	}

	return e
}

// recordingToDomain maps a persistence model back into the domain.
func recordingToDomain(e *entities.RecordingEntity) observation.Recording {
	rec := observation.Recording{
		ID:         e.ID,
		OwnerID:    e.OwnerID,
		CapturedAt: e.CapturedAt,
		AudioRef:   e.AudioRef,
		Latitude:   e.Latitude,
		Longitude:  e.Longitude,
		PlaceName:  e.PlaceName,
		AI: observation.AIPrediction{
			Species:    e.Species,
			Confidence: e.Confidence,
			Mock:       e.MockPrediction,
		},
		VolunteerConfidence: observation.ConfidenceLevel(e.VolunteerConfidence),
		NumericOverride:     e.NumericOverride,
		VolunteerSpecies:    e.VolunteerSpecies,
		Notes:               e.Notes,
		Status:              observation.Status(e.Status),
		ReviewerID:          e.ReviewerID,
		ReviewedAt:          e.ReviewedAt,
	}

	candidates := make([]entities.CandidateEntity, len(e.Candidates))
	copy(candidates, e.Candidates)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Rank < candidates[j].Rank })
	for _, c := range candidates {
		rec.AI.Top3 = append(rec.AI.Top3, observation.SpeciesGuess{
			Species:    c.Species,
			Confidence: c.Confidence,
		})
	}

	for _, h := range e.History {
		rec.History = append(rec.History, observation.HistoryEntry{
			Action:    h.Action,
			ActorID:   h.ActorID,
			Timestamp: h.Timestamp,
			Comment:   h.Comment,
		})
	}

	return rec
}

// userToEntity maps a domain user onto its persistence model. The explicit
// role string is authoritative; the legacy flags are kept in sync so older
// readers of the table stay consistent.
func userToEntity(u *observation.User) entities.UserEntity {
	return entities.UserEntity{
		ID:              u.ID,
		Role:            string(u.Role),
		IsAdmin:         u.Role == observation.RoleAdmin,
		IsExpert:        u.Role == observation.RoleExpert,
		IsPendingExpert: u.IsPendingExpert,
	}
}

// userToDomain maps a persistence model into the domain, resolving the dual
// role representation into the canonical Role exactly once.
func userToDomain(e *entities.UserEntity) observation.User {
	return observation.User{
		ID:              e.ID,
		Role:            observation.ResolveRole(e.Role, e.IsAdmin, e.IsExpert),
		IsPendingExpert: e.IsPendingExpert,
	}
}
