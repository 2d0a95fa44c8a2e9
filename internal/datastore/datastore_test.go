package datastore

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frogwatch/frogwatch-go/internal/conf"
	"github.com/frogwatch/frogwatch-go/internal/datastore/entities"
	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/events"
	"github.com/frogwatch/frogwatch-go/internal/observation"
)

// commitRecorder captures publishes without a live dispatch worker.
type commitRecorder struct {
	mu     sync.Mutex
	events []events.CommitEvent
}

func (r *commitRecorder) Name() string { return "test-recorder" }

func (r *commitRecorder) OnCommit(ev events.CommitEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *commitRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// waitCount waits for async bus delivery to catch up to n commits.
func (r *commitRecorder) waitCount(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d commit events, saw %d", n, r.count())
}

func newTestStore(t *testing.T) (*SQLiteStore, *commitRecorder) {
	t.Helper()

	bus := events.NewBus(nil)
	t.Cleanup(bus.Shutdown)
	recorder := &commitRecorder{}
	bus.RegisterConsumer(recorder)

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	store := &SQLiteStore{
		DataStore: DataStore{commits: bus},
		Settings:  settings,
	}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store, recorder
}

func sampleRecording(id, ownerID string) observation.Recording {
	rec := observation.Recording{
		ID:         id,
		OwnerID:    ownerID,
		CapturedAt: time.Date(2026, 4, 12, 21, 30, 0, 0, time.UTC),
		AudioRef:   "recordings_audio/" + ownerID + "/" + id + ".wav",
		Latitude:   44.5,
		Longitude:  -76.5,
		AI: observation.AIPrediction{
			Species:    "Spring Peeper",
			Confidence: 0.92,
			Top3: []observation.SpeciesGuess{
				{Species: "Spring Peeper", Confidence: 0.92},
				{Species: "Wood Frog", Confidence: 0.05},
			},
		},
		VolunteerConfidence: observation.ConfidenceHigh,
		Status:              observation.StatusNeedsReview,
	}
	rec.AppendHistory(observation.ActionSubmit, ownerID, "", rec.CapturedAt)
	return rec
}

func TestCreateAndGetRecording(t *testing.T) {
	store, recorder := newTestStore(t)

	rec := sampleRecording("r1", "alice")
	require.NoError(t, store.CreateRecording(&rec))

	got, err := store.GetRecording("r1")
	require.NoError(t, err)

	assert.Equal(t, rec.OwnerID, got.OwnerID)
	assert.Equal(t, rec.AudioRef, got.AudioRef)
	assert.Equal(t, observation.StatusNeedsReview, got.Status)
	assert.Equal(t, rec.AI.Species, got.AI.Species)
	require.Len(t, got.AI.Top3, 2)
	assert.Equal(t, "Spring Peeper", got.AI.Top3[0].Species, "candidates come back in rank order")
	require.Len(t, got.History, 1)
	assert.Equal(t, observation.ActionSubmit, got.History[0].Action)

	recorder.waitCount(t, 1)
	assert.Equal(t, 1, recorder.count(), "every create announces one commit")
}

func TestGetRecordingNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetRecording("missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestCreateRecordingRejectsInvalid(t *testing.T) {
	store, recorder := newTestStore(t)

	rec := sampleRecording("r1", "alice")
	rec.Status = "pending" // not a lifecycle state
	require.Error(t, store.CreateRecording(&rec))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, recorder.count(), "a rejected write publishes nothing")
}

func TestUpdateRecordingHistoryIsAppendOnly(t *testing.T) {
	store, _ := newTestStore(t)

	rec := sampleRecording("r1", "alice")
	require.NoError(t, store.CreateRecording(&rec))

	// A moderation pass adds reviewer state and one history entry.
	now := time.Date(2026, 4, 13, 9, 0, 0, 0, time.UTC)
	rec.Status = observation.StatusApproved
	rec.ReviewerID = "exp-1"
	rec.ReviewedAt = &now
	rec.AppendHistory(observation.ActionApprove, "exp-1", "clear call", now)
	require.NoError(t, store.UpdateRecording(&rec))

	got, err := store.GetRecording("r1")
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	assert.Equal(t, observation.ActionApprove, got.History[1].Action)
	assert.Equal(t, "clear call", got.History[1].Comment)

	// Updating again without new entries must not duplicate rows.
	got.Notes = "second listen"
	require.NoError(t, store.UpdateRecording(&got))
	again, err := store.GetRecording("r1")
	require.NoError(t, err)
	assert.Len(t, again.History, 2)
	assert.Equal(t, "second listen", again.Notes)
}

func TestUpdateRecordingReplacesCandidates(t *testing.T) {
	store, _ := newTestStore(t)

	rec := sampleRecording("r1", "alice")
	require.NoError(t, store.CreateRecording(&rec))

	rec.AI.Top3 = []observation.SpeciesGuess{
		{Species: "Gray Treefrog", Confidence: 0.7},
	}
	require.NoError(t, store.UpdateRecording(&rec))

	got, err := store.GetRecording("r1")
	require.NoError(t, err)
	require.Len(t, got.AI.Top3, 1)
	assert.Equal(t, "Gray Treefrog", got.AI.Top3[0].Species)
}

func TestUpdateRecordingNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	rec := sampleRecording("ghost", "alice")
	err := store.UpdateRecording(&rec)
	assert.True(t, errors.IsNotFound(err))
}

func TestRecordingsOrderedByCaptureDesc(t *testing.T) {
	store, _ := newTestStore(t)

	older := sampleRecording("r1", "alice")
	newer := sampleRecording("r2", "alice")
	newer.CapturedAt = older.CapturedAt.Add(2 * time.Hour)
	newer.History[0].Timestamp = newer.CapturedAt
	require.NoError(t, store.CreateRecording(&older))
	require.NoError(t, store.CreateRecording(&newer))

	all, err := store.GetAllRecordings()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r2", all[0].ID)
	assert.Equal(t, "r1", all[1].ID)
}

func TestGetRecordingsByOwner(t *testing.T) {
	store, _ := newTestStore(t)

	a := sampleRecording("r1", "alice")
	b := sampleRecording("r2", "bob")
	require.NoError(t, store.CreateRecording(&a))
	require.NoError(t, store.CreateRecording(&b))

	got, err := store.GetRecordingsByOwner("alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
}

func TestSubmissionCounts(t *testing.T) {
	store, _ := newTestStore(t)

	for i, owner := range []string{"alice", "alice", "bob"} {
		rec := sampleRecording(string(rune('a'+i)), owner)
		require.NoError(t, store.CreateRecording(&rec))
	}

	counts, err := store.SubmissionCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["alice"])
	assert.Equal(t, int64(1), counts["bob"])

	n, err := store.SubmissionCount("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUserRoleResolutionAtBoundary(t *testing.T) {
	store, _ := newTestStore(t)

	// Legacy rows carry only the boolean flags.
	require.NoError(t, store.DB.Create(&entities.UserEntity{ID: "legacy-admin", IsAdmin: true}).Error)
	require.NoError(t, store.DB.Create(&entities.UserEntity{ID: "legacy-expert", IsExpert: true}).Error)
	// A row where the explicit enum disagrees with stale flags.
	require.NoError(t, store.DB.Create(&entities.UserEntity{ID: "demoted", Role: "volunteer", IsExpert: true}).Error)

	admin, err := store.GetUser("legacy-admin")
	require.NoError(t, err)
	assert.Equal(t, observation.RoleAdmin, admin.Role)

	expert, err := store.GetUser("legacy-expert")
	require.NoError(t, err)
	assert.Equal(t, observation.RoleExpert, expert.Role)

	demoted, err := store.GetUser("demoted")
	require.NoError(t, err)
	assert.Equal(t, observation.RoleVolunteer, demoted.Role, "the explicit enum wins over stale flags")
}

func TestUpdateUserIsAtomicGrant(t *testing.T) {
	store, recorder := newTestStore(t)

	u := observation.User{ID: "alice", Role: observation.RoleVolunteer, IsPendingExpert: true}
	require.NoError(t, store.CreateUser(&u))

	u.Role = observation.RoleExpert
	u.IsPendingExpert = false
	require.NoError(t, store.UpdateUser(&u))

	var entity entities.UserEntity
	require.NoError(t, store.DB.First(&entity, "id = ?", "alice").Error)
	assert.Equal(t, "expert", entity.Role)
	assert.True(t, entity.IsExpert, "legacy flags follow the enum")
	assert.False(t, entity.IsAdmin)
	assert.False(t, entity.IsPendingExpert)

	recorder.waitCount(t, 2)
}

func TestUpdateUserNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	u := observation.User{ID: "ghost", Role: observation.RoleVolunteer}
	err := store.UpdateUser(&u)
	assert.True(t, errors.IsNotFound(err))
}

func TestGetModerationTargetsExcludesAdmins(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.CreateUser(&observation.User{ID: "alice", Role: observation.RoleVolunteer}))
	require.NoError(t, store.CreateUser(&observation.User{ID: "bob", Role: observation.RoleExpert}))
	require.NoError(t, store.CreateUser(&observation.User{ID: "root", Role: observation.RoleAdmin}))
	// Legacy admin flag hides the account just like the explicit role.
	require.NoError(t, store.DB.Create(&entities.UserEntity{ID: "old-root", IsAdmin: true}).Error)

	targets, err := store.GetModerationTargets()
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "alice", targets[0].ID)
	assert.Equal(t, "bob", targets[1].ID)
}
