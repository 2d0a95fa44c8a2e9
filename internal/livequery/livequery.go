// Package livequery keeps every active view consistent with the document
// store. A subscription delivers the full current result set for its scope as
// one snapshot on every committed change; consumers never receive partial
// deltas, so local state can never drift from the authoritative store.
package livequery

import (
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/frogwatch/frogwatch-go/internal/datastore"
	"github.com/frogwatch/frogwatch-go/internal/errors"
	"github.com/frogwatch/frogwatch-go/internal/events"
	"github.com/frogwatch/frogwatch-go/internal/logging"
	"github.com/frogwatch/frogwatch-go/internal/observability/metrics"
	"github.com/frogwatch/frogwatch-go/internal/observation"
)

// Package-level logger specific to the livequery service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "livequery.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "livequery", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize livequery file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "livequery")
		closeLogger = func() error { return nil }
	}
}

// ScopeKind selects which result set a subscription tracks.
type ScopeKind string

const (
	// ScopeOwnerRecordings tracks the recordings owned by one account.
	ScopeOwnerRecordings ScopeKind = "owner_recordings"
	// ScopeAllRecordings tracks every recording (expert/admin views).
	ScopeAllRecordings ScopeKind = "all_recordings"
	// ScopeModerationUsers tracks all non-admin accounts (admin view).
	ScopeModerationUsers ScopeKind = "moderation_users"
)

// Scope identifies one subscribed result set. ActorID names the signed-in
// actor the subscription belongs to; SwitchActor tears down by this field.
type Scope struct {
	Kind    ScopeKind
	OwnerID string // required for ScopeOwnerRecordings
	ActorID string
}

// RankedRecording pairs a recording with its display rank. The rank is
// positional, recomputed on every snapshot: within the capture-time
// descending order the oldest capture is #1. It is never stored.
type RankedRecording struct {
	observation.Recording
	Rank int
}

// UserEntry pairs an account with its derived submission count.
type UserEntry struct {
	observation.User
	SubmissionCount int64
}

// Snapshot is one full re-delivery of a scope's result set. Seq increases by
// one per emission within a stream, following backend commit order. No
// ordering is guaranteed across independent streams.
type Snapshot struct {
	Scope      Scope
	Recordings []RankedRecording // set for recording scopes
	Users      []UserEntry       // set for ScopeModerationUsers
	Seq        uint64
	At         time.Time
}

// Subscription is one consumer's handle on a scope's snapshot stream.
type Subscription struct {
	scope Scope
	ch    chan *Snapshot
	done  chan struct{}
	seq   uint64
}

// Snapshots returns the stream of full snapshots. The channel is closed when
// the subscription is torn down.
func (sub *Subscription) Snapshots() <-chan *Snapshot {
	return sub.ch
}

// Done is closed when the subscription has been torn down.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Scope returns the scope this subscription tracks.
func (sub *Subscription) Scope() Scope {
	return sub.scope
}

// Config holds livequery service configuration.
type Config struct {
	// BufferSize is the per-subscription snapshot channel buffer. When a slow
	// consumer falls behind, older snapshots are dropped in favour of newer
	// ones; every snapshot is complete, so only the latest matters.
	BufferSize int
	Debug      bool
	// Metrics is optional; a nil value disables instrumentation.
	Metrics *metrics.LivequeryMetrics
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() *Config {
	return &Config{BufferSize: 16}
}

// Service owns all live subscriptions. It is the single consumer of the
// commit bus; the store is the single writer of the data it projects.
type Service struct {
	store  datastore.Interface
	bus    *events.Bus
	config *Config

	mu   sync.Mutex
	subs []*Subscription
}

// NewService creates the livequery service and registers it on the commit bus.
func NewService(store datastore.Interface, bus *events.Bus, config *Config) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Service{
		store:  store,
		bus:    bus,
		config: config,
	}
	if bus != nil {
		bus.RegisterConsumer(s)
	}

	logger.Info("livequery service initialized", "buffer_size", config.BufferSize)
	return s
}

// Name implements events.Consumer.
func (s *Service) Name() string { return "livequery" }

// Subscribe opens a snapshot stream for the given scope. The current result
// set is delivered as the first snapshot before Subscribe returns a handle,
// so a consumer never observes an empty view while data exists.
func (s *Service) Subscribe(scope Scope) (*Subscription, error) {
	if scope.Kind == ScopeOwnerRecordings && scope.OwnerID == "" {
		return nil, errors.Newf("owner scope requires an owner id").
			Component("livequery").
			Category(errors.CategoryValidation).
			Build()
	}

	sub := &Subscription{
		scope: scope,
		ch:    make(chan *Snapshot, s.config.BufferSize),
		done:  make(chan struct{}),
	}

	snapshot, err := s.buildSnapshot(sub)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.send(sub, snapshot)
	total := len(s.subs)
	if s.config.Metrics != nil {
		s.config.Metrics.SetActiveSubscriptions(total)
	}
	s.mu.Unlock()

	if s.config.Debug {
		logger.Debug("subscription added",
			"kind", scope.Kind,
			"actor", scope.ActorID,
			"total_subscriptions", total)
	}

	return sub, nil
}

// Unsubscribe tears down one subscription. When it returns, no further
// emission on the subscription is observable: delivery and removal are
// serialized on the same lock, so any in-flight broadcast has either already
// sent or will find the subscription gone.
func (s *Service) Unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(sub)
}

// SwitchActor tears down every subscription that does not belong to the given
// actor. It is called on sign-out/sign-in before any new-actor subscription
// is established, so stale and fresh snapshots never interleave. An empty
// actor ID tears down everything.
func (s *Service) SwitchActor(actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.subs[:0]
	for _, sub := range s.subs {
		if actorID != "" && sub.scope.ActorID == actorID {
			remaining = append(remaining, sub)
			continue
		}
		close(sub.done)
		close(sub.ch)
	}
	s.subs = remaining
	if s.config.Metrics != nil {
		s.config.Metrics.SetActiveSubscriptions(len(s.subs))
	}

	logger.Info("actor switch, stale subscriptions torn down",
		"actor", actorID,
		"remaining", len(s.subs))
}

// Shutdown tears down all subscriptions and detaches from the commit bus.
func (s *Service) Shutdown() {
	if s.bus != nil {
		s.bus.UnregisterConsumer(s.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		close(sub.done)
		close(sub.ch)
	}
	s.subs = nil
	if s.config.Metrics != nil {
		s.config.Metrics.SetActiveSubscriptions(0)
	}

	if closeLogger != nil {
		_ = closeLogger()
	}
}

// OnCommit implements events.Consumer. Runs on the bus dispatch goroutine,
// one event at a time, so snapshots within a stream follow commit order.
func (s *Service) OnCommit(ev events.CommitEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if !affects(ev.Collection, sub.scope.Kind) {
			continue
		}
		snapshot, err := s.buildSnapshot(sub)
		if err != nil {
			logger.Error("failed to rebuild snapshot after commit",
				"kind", sub.scope.Kind,
				"collection", ev.Collection,
				"error", err)
			continue
		}
		s.send(sub, snapshot)
	}
}

// affects reports whether a commit to the given collection changes the
// result set of the given scope kind. Recording commits also touch the user
// scope because submission counts derive from recordings.
func affects(collection events.Collection, kind ScopeKind) bool {
	switch kind {
	case ScopeOwnerRecordings, ScopeAllRecordings:
		return collection == events.CollectionRecordings
	case ScopeModerationUsers:
		return true
	}
	return false
}

// buildSnapshot queries the store and assembles the full result set for one
// subscription. Caller may hold s.mu; the store is responsible for its own
// synchronization.
func (s *Service) buildSnapshot(sub *Subscription) (*Snapshot, error) {
	snapshot := &Snapshot{
		Scope: sub.scope,
		At:    time.Now(),
	}

	switch sub.scope.Kind {
	case ScopeOwnerRecordings, ScopeAllRecordings:
		var (
			recs []observation.Recording
			err  error
		)
		if sub.scope.Kind == ScopeOwnerRecordings {
			recs, err = s.store.GetRecordingsByOwner(sub.scope.OwnerID)
		} else {
			recs, err = s.store.GetAllRecordings()
		}
		if err != nil {
			return nil, err
		}
		snapshot.Recordings = rankRecordings(recs)

	case ScopeModerationUsers:
		users, err := s.store.GetModerationTargets()
		if err != nil {
			return nil, err
		}
		counts, err := s.store.SubmissionCounts()
		if err != nil {
			return nil, err
		}
		entries := make([]UserEntry, 0, len(users))
		for _, u := range users {
			entries = append(entries, UserEntry{User: u, SubmissionCount: counts[u.ID]})
		}
		snapshot.Users = entries

	default:
		return nil, errors.Newf("unknown scope kind: %q", sub.scope.Kind).
			Component("livequery").
			Category(errors.CategoryValidation).
			Build()
	}

	return snapshot, nil
}

// rankRecordings assigns positional display ranks to a capture-time
// descending list: the oldest capture is #1, the newest #len.
func rankRecordings(recs []observation.Recording) []RankedRecording {
	ranked := make([]RankedRecording, 0, len(recs))
	for i := range recs {
		ranked = append(ranked, RankedRecording{
			Recording: recs[i],
			Rank:      len(recs) - i,
		})
	}
	return ranked
}

// send delivers a snapshot without blocking the dispatch goroutine. A full
// buffer sheds the oldest queued snapshot first; each snapshot is the entire
// result set, so the newest always supersedes anything queued. Caller holds
// s.mu.
func (s *Service) send(sub *Subscription, snapshot *Snapshot) {
	sub.seq++
	snapshot.Seq = sub.seq

	for {
		select {
		case sub.ch <- snapshot:
			if s.config.Metrics != nil {
				s.config.Metrics.RecordSnapshot(string(sub.scope.Kind))
			}
			return
		default:
			select {
			case <-sub.ch:
				if s.config.Metrics != nil {
					s.config.Metrics.RecordDroppedSnapshot()
				}
				if s.config.Debug {
					logger.Debug("slow consumer, dropped stale snapshot",
						"kind", sub.scope.Kind,
						"actor", sub.scope.ActorID)
				}
			default:
			}
		}
	}
}

// removeLocked removes one subscription and closes its channels. Caller
// holds s.mu.
func (s *Service) removeLocked(target *Subscription) {
	for i, sub := range s.subs {
		if sub == target {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			close(sub.done)
			close(sub.ch)
			if s.config.Metrics != nil {
				s.config.Metrics.SetActiveSubscriptions(len(s.subs))
			}
			return
		}
	}
}
