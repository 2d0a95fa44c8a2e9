package entities

// CandidateEntity represents one entry of a prediction's ranked candidate
// list. Maps to the 'candidates' table.
type CandidateEntity struct {
	ID          uint   `gorm:"primaryKey"`
	RecordingID string `gorm:"index;not null;size:36;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:RecordingID;references:ID"`
	Rank        int    `gorm:"not null"`
	Species     string
	Confidence  float64
}

// TableName ensures GORM uses the expected table name.
func (CandidateEntity) TableName() string {
	return "candidates"
}
