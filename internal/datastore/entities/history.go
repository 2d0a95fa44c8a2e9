package entities

import "time"

// HistoryEntity represents one append-only lifecycle log entry of a
// recording. Maps to the 'recording_history' table.
type HistoryEntity struct {
	ID          uint      `gorm:"primaryKey"`
	RecordingID string    `gorm:"index;not null;size:36;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:RecordingID;references:ID"`
	Action      string    `gorm:"type:varchar(20)"`
	ActorID     string    `gorm:"size:36"`
	Timestamp   time.Time `gorm:"index"`
	Comment     string    `gorm:"type:text"`
}

// TableName ensures GORM uses the expected table name.
func (HistoryEntity) TableName() string {
	return "recording_history"
}
