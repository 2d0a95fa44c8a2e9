// Package entities contains GORM models that map directly to database tables.
// These are persistence-layer structures separate from the domain model.
package entities

import "time"

// RecordingEntity is the GORM model for the 'recordings' table.
type RecordingEntity struct {
	ID         string    `gorm:"primaryKey;size:36"`
	OwnerID    string    `gorm:"index:idx_recordings_owner;size:36"`
	CapturedAt time.Time `gorm:"index:idx_recordings_captured"`
	AudioRef   string
	Latitude   float64
	Longitude  float64
	PlaceName  string

	Species        string
	Confidence     float64
	MockPrediction bool

	VolunteerConfidence string   `gorm:"type:varchar(10)"`
	NumericOverride     *float64 // percent, null when never edited
	VolunteerSpecies    string
	Notes               string `gorm:"type:text"`

	Status     string     `gorm:"index:idx_recordings_status;type:varchar(20)"`
	ReviewerID string     `gorm:"size:36"`
	ReviewedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	Candidates []CandidateEntity `gorm:"foreignKey:RecordingID;constraint:OnDelete:CASCADE"`
	History    []HistoryEntity   `gorm:"foreignKey:RecordingID;constraint:OnDelete:CASCADE"`
}

// TableName ensures GORM uses the expected table name.
func (RecordingEntity) TableName() string {
	return "recordings"
}
