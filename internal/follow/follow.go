// Package follow keeps the list of stories a reader follows. The list is
// stored as one JSON array under StorageKey and never holds more than
// MaxStories entries; following one more evicts the oldest by FollowedAt.
package follow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"novapress/internal/api"
	"novapress/internal/logging"
	"novapress/internal/store"
)

// StorageKey is the key of the persisted array.
const StorageKey = "novapress_followed_stories"

// MaxStories caps the list.
const MaxStories = 20

// ErrNotFollowed is returned for operations on an id that is not followed.
var ErrNotFollowed = errors.New("story is not followed")

// Story is one followed synthesis.
type Story struct {
	SynthesisID    string     `json:"synthesisId"`
	Title          string     `json:"title"`
	Category       string     `json:"category"`
	FollowedAt     time.Time  `json:"followedAt"`
	LastChecked    time.Time  `json:"lastChecked"`
	LastUpdated    *time.Time `json:"lastUpdated,omitempty"`
	NarrativePhase string     `json:"narrativePhase,omitempty"`
	NotifyOnUpdate bool       `json:"notifyOnUpdate"`
}

// SynthesisFetcher loads the current state of a synthesis.
// *api.SynthesisScope implements it.
type SynthesisFetcher interface {
	Get(ctx context.Context, id string) (*api.Synthesis, error)
}

// Store is the followed-stories list backed by a store.KV.
type Store struct {
	mu     sync.Mutex
	kv     store.KV
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a Store over kv.
func New(kv store.KV, opts ...Option) *Store {
	s := &Store{kv: kv, now: time.Now, logger: logging.Discard()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// load reads the list. A corrupt payload is logged and treated as empty.
func (s *Store) load() ([]Story, error) {
	raw, ok, err := s.kv.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("load followed stories: %w", err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var stories []Story
	if err := json.Unmarshal(raw, &stories); err != nil {
		s.logger.Warn("discarding corrupt followed stories", "error", err)
		return nil, nil
	}
	return stories, nil
}

func (s *Store) save(stories []Story) error {
	if stories == nil {
		stories = []Story{}
	}
	raw, err := json.Marshal(stories)
	if err != nil {
		return fmt.Errorf("save followed stories: marshal: %w", err)
	}
	if err := s.kv.Put(StorageKey, raw); err != nil {
		return fmt.Errorf("save followed stories: %w", err)
	}
	return nil
}

// Follow adds a story, or updates it in place when already followed
// (keeping its original FollowedAt). Zero FollowedAt and LastChecked are set
// to now. It returns the story evicted to respect MaxStories, if any.
func (s *Store) Follow(st Story) (evicted *Story, err error) {
	if st.SynthesisID == "" {
		return nil, fmt.Errorf("follow: synthesis id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stories, err := s.load()
	if err != nil {
		return nil, err
	}
	now := s.now()
	if st.FollowedAt.IsZero() {
		st.FollowedAt = now
	}
	if st.LastChecked.IsZero() {
		st.LastChecked = now
	}

	if i := indexOf(stories, st.SynthesisID); i >= 0 {
		st.FollowedAt = stories[i].FollowedAt
		stories[i] = st
	} else {
		stories = append(stories, st)
	}

	// A list persisted by another build may already exceed the cap.
	for len(stories) > MaxStories {
		oldest := oldestIndex(stories, st.SynthesisID)
		ev := stories[oldest]
		if evicted == nil {
			evicted = &ev
		}
		stories = slices.Delete(stories, oldest, oldest+1)
		s.logger.Info("evicted oldest followed story", "synthesis_id", ev.SynthesisID)
	}
	return evicted, s.save(stories)
}

// Unfollow removes a story.
func (s *Store) Unfollow(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stories, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(stories, id)
	if i < 0 {
		return fmt.Errorf("unfollow %s: %w", id, ErrNotFollowed)
	}
	return s.save(slices.Delete(stories, i, i+1))
}

// IsFollowed reports whether id is in the list.
func (s *Store) IsFollowed(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stories, err := s.load()
	if err != nil {
		return false, err
	}
	return indexOf(stories, id) >= 0, nil
}

// Get returns one followed story.
func (s *Store) Get(id string) (Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stories, err := s.load()
	if err != nil {
		return Story{}, err
	}
	i := indexOf(stories, id)
	if i < 0 {
		return Story{}, fmt.Errorf("get %s: %w", id, ErrNotFollowed)
	}
	return stories[i], nil
}

// List returns the stories, most recently followed first.
func (s *Store) List() ([]Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stories, err := s.load()
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(stories, func(a, b Story) int {
		return b.FollowedAt.Compare(a.FollowedAt)
	})
	return stories, nil
}

// Clear removes every story.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(StorageKey)
}

// MarkChecked records that a story was looked at.
func (s *Store) MarkChecked(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stories, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(stories, id)
	if i < 0 {
		return fmt.Errorf("mark checked %s: %w", id, ErrNotFollowed)
	}
	stories[i].LastChecked = at
	return s.save(stories)
}

// Update describes a followed story whose synthesis changed since it was
// last checked.
type Update struct {
	Story     Story
	Synthesis *api.Synthesis
}

// CheckUpdates fetches every followed synthesis and records LastUpdated and
// NarrativePhase for those changed since LastChecked. LastChecked is bumped
// for every story that could be fetched. Updates are returned only for
// stories with NotifyOnUpdate. Fetch failures are logged and skipped; the
// first one is returned alongside the updates.
func (s *Store) CheckUpdates(ctx context.Context, f SynthesisFetcher) ([]Update, error) {
	s.mu.Lock()
	stories, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	type result struct {
		id  string
		syn *api.Synthesis
	}
	var fetched []result
	var firstErr error
	for _, st := range stories {
		syn, err := f.Get(ctx, st.SynthesisID)
		if err != nil {
			s.logger.WarnContext(ctx, "check followed story", "synthesis_id", st.SynthesisID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("check %s: %w", st.SynthesisID, err)
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		fetched = append(fetched, result{id: st.SynthesisID, syn: syn})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Reload so concurrent follow/unfollow calls are not overwritten.
	current, err := s.load()
	if err != nil {
		return nil, err
	}
	now := s.now()
	var updates []Update
	for _, r := range fetched {
		i := indexOf(current, r.id)
		if i < 0 {
			continue
		}
		st := &current[i]
		changed := r.syn.LastChange().Time()
		if !changed.IsZero() && changed.After(st.LastChecked) {
			t := changed
			st.LastUpdated = &t
			if r.syn.NarrativePhase != "" {
				st.NarrativePhase = r.syn.NarrativePhase
			}
			if st.NotifyOnUpdate {
				updates = append(updates, Update{Story: *st, Synthesis: r.syn})
			}
		}
		st.LastChecked = now
	}
	if err := s.save(current); err != nil {
		return nil, err
	}
	return updates, firstErr
}

func indexOf(stories []Story, id string) int {
	return slices.IndexFunc(stories, func(s Story) bool { return s.SynthesisID == id })
}

// oldestIndex returns the index of the smallest FollowedAt, skipping the
// story keep; ties go to the earlier position.
func oldestIndex(stories []Story, keep string) int {
	oldest := -1
	for i, st := range stories {
		if st.SynthesisID == keep {
			continue
		}
		if oldest < 0 || st.FollowedAt.Before(stories[oldest].FollowedAt) {
			oldest = i
		}
	}
	return oldest
}
