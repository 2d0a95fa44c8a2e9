// interfaces.go: this code defines the interface for the document store operations
package datastore

import (
	"time"

	"github.com/frogwatch/frogwatch-go/internal/conf"
	"github.com/frogwatch/frogwatch-go/internal/events"
	"github.com/frogwatch/frogwatch-go/internal/observation"
	"gorm.io/gorm"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// Interface abstracts the underlying database implementation and defines the
// operations the review workflow and the synchronization layer depend on.
// Recordings are never hard-deleted; subsequent writes are transitions or
// edits, so there is deliberately no delete operation.
type Interface interface {
	Open() error
	Close() error

	CreateRecording(rec *observation.Recording) error
	UpdateRecording(rec *observation.Recording) error
	GetRecording(id string) (observation.Recording, error)
	GetAllRecordings() ([]observation.Recording, error)
	GetRecordingsByOwner(ownerID string) ([]observation.Recording, error)

	CreateUser(u *observation.User) error
	UpdateUser(u *observation.User) error
	GetUser(id string) (observation.User, error)
	GetModerationTargets() ([]observation.User, error)

	SubmissionCount(ownerID string) (int64, error)
	SubmissionCounts() (map[string]int64, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB      *gorm.DB    // GORM database instance
	commits *events.Bus // commit bus feeding the synchronization layer, may be nil
}

// New creates a new datastore based on the provided settings. Every
// successful write is announced on the commit bus when one is given.
func New(settings *conf.Settings, commits *events.Bus) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{commits: commits},
			Settings:  settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{commits: commits},
			Settings:  settings,
		}
	default:
		return nil
	}
}

// publishCommit announces a committed write on the bus.
func (ds *DataStore) publishCommit(collection events.Collection, docID string) {
	if ds.commits == nil {
		return
	}
	ds.commits.Publish(events.CommitEvent{
		Collection: collection,
		DocID:      docID,
		At:         timeNow(),
	})
}
