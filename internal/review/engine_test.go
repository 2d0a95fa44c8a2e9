package review

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/observation"
	"github.com/frogwatch/frogwatch-go/internal/predictor"
)

// memStore is an in-memory datastore for engine tests.
type memStore struct {
	mu         sync.Mutex
	recordings map[string]observation.Recording
	users      map[string]observation.User

	getRecordingCalls atomic.Int64
}

func newMemStore() *memStore {
	return &memStore{
		recordings: make(map[string]observation.Recording),
		users:      make(map[string]observation.User),
	}
}

func (m *memStore) Open() error  { return nil }
func (m *memStore) Close() error { return nil }

func (m *memStore) CreateRecording(rec *observation.Recording) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordings[rec.ID] = *rec
	return nil
}

func (m *memStore) UpdateRecording(rec *observation.Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recordings[rec.ID]; !ok {
		return errors.Newf("recording not found: %s", rec.ID).
			Category(errors.CategoryNotFound).
			Build()
	}
	m.recordings[rec.ID] = *rec
	return nil
}

func (m *memStore) GetRecording(id string) (observation.Recording, error) {
	m.getRecordingCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recordings[id]
	if !ok {
		return observation.Recording{}, errors.Newf("recording not found: %s", id).
			Category(errors.CategoryNotFound).
			Build()
	}
	return rec, nil
}

func (m *memStore) GetAllRecordings() ([]observation.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]observation.Recording, 0, len(m.recordings))
	for _, rec := range m.recordings {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memStore) GetRecordingsByOwner(ownerID string) ([]observation.Recording, error) {
	all, _ := m.GetAllRecordings()
	var out []observation.Recording
	for _, rec := range all {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) CreateUser(u *observation.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) UpdateUser(u *observation.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return errors.Newf("user not found: %s", u.ID).
			Category(errors.CategoryNotFound).
			Build()
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) GetUser(id string) (observation.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return observation.User{}, errors.Newf("user not found: %s", id).
			Category(errors.CategoryNotFound).
			Build()
	}
	return u, nil
}

func (m *memStore) GetModerationTargets() ([]observation.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []observation.User
	for _, u := range m.users {
		if u.Role != observation.RoleAdmin {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) SubmissionCount(ownerID string) (int64, error) {
	counts, _ := m.SubmissionCounts()
	return counts[ownerID], nil
}

func (m *memStore) SubmissionCounts() (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int64)
	for _, rec := range m.recordings {
		counts[rec.OwnerID]++
	}
	return counts, nil
}

// stubPredictor returns a fixed prediction and counts calls.
type stubPredictor struct {
	calls atomic.Int64
	err   error
}

func (p *stubPredictor) Predict(context.Context, []byte, float64, float64) (observation.AIPrediction, error) {
	p.calls.Add(1)
	if p.err != nil {
		return observation.AIPrediction{}, p.err
	}
	return observation.AIPrediction{Species: "Spring Peeper", Confidence: 0.92}, nil
}

type stubUploader struct {
	calls atomic.Int64
	err   error
}

func (u *stubUploader) Upload(context.Context, string, []byte) error {
	u.calls.Add(1)
	return u.err
}

type stubGeocoder struct{ name string }

func (g *stubGeocoder) ReverseGeocode(context.Context, float64, float64) string { return g.name }

var (
	volunteer = observation.User{ID: "vol-1", Role: observation.RoleVolunteer}
	expert    = observation.User{ID: "exp-1", Role: observation.RoleExpert}
	admin     = observation.User{ID: "adm-1", Role: observation.RoleAdmin}
)

func submitRequest(actor observation.User, draftID string) *SubmitRequest {
	return &SubmitRequest{
		DraftID:             draftID,
		Actor:               actor,
		CapturedAt:          time.Date(2026, 4, 12, 21, 30, 0, 0, time.UTC),
		Audio:               []byte("riff-wave-bytes"),
		Latitude:            44.5,
		Longitude:           -76.5,
		VolunteerConfidence: observation.ConfidenceHigh,
	}
}

func TestSubmitCreatesNeedsReviewRecording(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	pred := &stubPredictor{}
	upload := &stubUploader{}
	engine := NewEngine(store, pred, upload, &stubGeocoder{name: "Bullfrog Lake"})

	rec, err := engine.Submit(context.Background(), submitRequest(volunteer, "draft-1"))
	require.NoError(t, err)

	assert.Equal(t, observation.StatusNeedsReview, rec.Status)
	assert.Equal(t, volunteer.ID, rec.OwnerID)
	assert.Empty(t, rec.ReviewerID)
	assert.True(t, strings.HasPrefix(rec.AudioRef, "recordings_audio/vol-1/"))
	assert.Equal(t, "Bullfrog Lake", rec.PlaceName)
	assert.Equal(t, int64(1), pred.calls.Load())
	assert.Equal(t, int64(1), upload.calls.Load())

	require.Len(t, rec.History, 1)
	assert.Equal(t, observation.ActionSubmit, rec.History[0].Action)
	assert.Equal(t, volunteer.ID, rec.History[0].ActorID)

	stored, err := store.GetRecording(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bullfrog Lake", stored.PlaceName)
}

func TestSubmitSelfApprove(t *testing.T) {
	t.Parallel()

	t.Run("expert gets synthetic review", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		engine := NewEngine(store, &stubPredictor{}, nil, nil)

		req := submitRequest(expert, "draft-1")
		req.SelfApprove = true
		rec, err := engine.Submit(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, observation.StatusApproved, rec.Status)
		assert.Equal(t, expert.ID, rec.ReviewerID, "the synthetic review names the submitter")
		require.NotNil(t, rec.ReviewedAt)

		require.Len(t, rec.History, 2)
		assert.Equal(t, observation.ActionSubmit, rec.History[0].Action)
		assert.Equal(t, observation.ActionApprove, rec.History[1].Action)
	})

	t.Run("volunteer rejected before any work", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		pred := &stubPredictor{}
		engine := NewEngine(store, pred, nil, nil)

		req := submitRequest(volunteer, "draft-2")
		req.SelfApprove = true
		_, err := engine.Submit(context.Background(), req)
		require.Error(t, err)
		assert.True(t, errors.IsAuthorization(err))
		assert.Equal(t, int64(0), pred.calls.Load())
		recs, _ := store.GetAllRecordings()
		assert.Empty(t, recs)
	})
}

func TestSubmitDuplicateDraftRejectedLocally(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	pred := &stubPredictor{}
	engine := NewEngine(store, pred, nil, nil)

	_, err := engine.Submit(context.Background(), submitRequest(volunteer, "draft-1"))
	require.NoError(t, err)

	_, err = engine.Submit(context.Background(), submitRequest(volunteer, "draft-1"))
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, int64(1), pred.calls.Load(), "the duplicate must be rejected before the prediction call")
}

func TestSubmitFailureReleasesDraft(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	pred := &stubPredictor{err: errors.Newf("model down").Category(errors.CategoryNetwork).Build()}
	engine := NewEngine(store, pred, nil, nil)

	_, err := engine.Submit(context.Background(), submitRequest(volunteer, "draft-1"))
	require.Error(t, err)

	// The predictor recovers; the same draft may retry.
	pred.err = nil
	rec, err := engine.Submit(context.Background(), submitRequest(volunteer, "draft-1"))
	require.NoError(t, err)
	assert.Equal(t, observation.StatusNeedsReview, rec.Status)
}

func TestSubmitUploadFailureAborts(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	upload := &stubUploader{err: errors.Newf("bucket unavailable").Category(errors.CategoryUpload).Build()}
	engine := NewEngine(store, &stubPredictor{}, upload, nil)

	_, err := engine.Submit(context.Background(), submitRequest(volunteer, "draft-1"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryUpload))

	recs, _ := store.GetAllRecordings()
	assert.Empty(t, recs, "no recording may exist without its audio")
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	engine := NewEngine(newMemStore(), &stubPredictor{}, nil, nil)
	ctx := context.Background()

	t.Run("missing audio", func(t *testing.T) {
		t.Parallel()
		req := submitRequest(volunteer, "d1")
		req.Audio = nil
		_, err := engine.Submit(ctx, req)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("missing confidence", func(t *testing.T) {
		t.Parallel()
		req := submitRequest(volunteer, "d2")
		req.VolunteerConfidence = ""
		_, err := engine.Submit(ctx, req)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("location out of range", func(t *testing.T) {
		t.Parallel()
		req := submitRequest(volunteer, "d3")
		req.Latitude = 91
		_, err := engine.Submit(ctx, req)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("missing draft id", func(t *testing.T) {
		t.Parallel()
		req := submitRequest(volunteer, "")
		_, err := engine.Submit(ctx, req)
		assert.True(t, errors.IsValidation(err))
	})
}

func TestSubmitMockPredictionIsStored(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	engine := NewEngine(store, &mockOnlyPredictor{}, nil, nil)

	rec, err := engine.Submit(context.Background(), submitRequest(volunteer, "draft-1"))
	require.NoError(t, err)
	assert.True(t, rec.AI.Mock, "a fallback prediction stays flagged all the way to the store")
}

type mockOnlyPredictor struct{}

func (mockOnlyPredictor) Predict(_ context.Context, audio []byte, _, _ float64) (observation.AIPrediction, error) {
	return predictor.MockPrediction(audio), nil
}
