package follow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"novapress/internal/api"
	"novapress/internal/store"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore(t *testing.T) (*Store, *store.MemStore, *clock) {
	t.Helper()
	kv := store.NewMemStore()
	c := &clock{t: base}
	return New(kv, WithClock(c.now)), kv, c
}

func TestFollow_AddAndList(t *testing.T) {
	s, _, c := newTestStore(t)
	for i := range 3 {
		c.t = base.Add(time.Duration(i) * time.Minute)
		if _, err := s.Follow(Story{SynthesisID: fmt.Sprintf("s%d", i), Title: "t"}); err != nil {
			t.Fatalf("Follow: %v", err)
		}
	}
	got, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, st := range got {
		ids = append(ids, st.SynthesisID)
	}
	if diff := cmp.Diff([]string{"s2", "s1", "s0"}, ids); diff != "" {
		t.Errorf("List order (-want +got):\n%s", diff)
	}
	if !got[2].FollowedAt.Equal(base) || !got[2].LastChecked.Equal(base) {
		t.Errorf("timestamps not defaulted: %+v", got[2])
	}
}

func TestFollow_UpsertKeepsFollowedAt(t *testing.T) {
	s, _, c := newTestStore(t)
	if _, err := s.Follow(Story{SynthesisID: "a", Title: "old"}); err != nil {
		t.Fatal(err)
	}
	c.t = base.Add(time.Hour)
	if _, err := s.Follow(Story{SynthesisID: "a", Title: "new", NotifyOnUpdate: true}); err != nil {
		t.Fatal(err)
	}
	list, _ := s.List()
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	if list[0].Title != "new" || !list[0].NotifyOnUpdate {
		t.Errorf("story not updated: %+v", list[0])
	}
	if !list[0].FollowedAt.Equal(base) {
		t.Errorf("FollowedAt = %v, want %v", list[0].FollowedAt, base)
	}
}

func TestFollow_CapEvictsOldest(t *testing.T) {
	s, _, c := newTestStore(t)
	for i := range MaxStories {
		c.t = base.Add(time.Duration(i) * time.Minute)
		if _, err := s.Follow(Story{SynthesisID: fmt.Sprintf("s%02d", i)}); err != nil {
			t.Fatal(err)
		}
	}
	c.t = base.Add(time.Hour)
	evicted, err := s.Follow(Story{SynthesisID: "fresh"})
	if err != nil {
		t.Fatal(err)
	}
	if evicted == nil || evicted.SynthesisID != "s00" {
		t.Fatalf("evicted = %+v, want s00", evicted)
	}
	list, _ := s.List()
	if len(list) != MaxStories {
		t.Errorf("len = %d, want %d", len(list), MaxStories)
	}
	if ok, _ := s.IsFollowed("s00"); ok {
		t.Error("s00 still followed")
	}
	if ok, _ := s.IsFollowed("fresh"); !ok {
		t.Error("fresh not followed")
	}
}

func TestFollow_TrimsOversizedList(t *testing.T) {
	s, kv, c := newTestStore(t)
	var seeded []Story
	for i := range MaxStories + 5 {
		at := base.Add(time.Duration(i) * time.Minute)
		seeded = append(seeded, Story{SynthesisID: fmt.Sprintf("s%02d", i), FollowedAt: at, LastChecked: at})
	}
	raw, err := json.Marshal(seeded)
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Put(StorageKey, raw); err != nil {
		t.Fatal(err)
	}

	c.t = base.Add(time.Hour)
	evicted, err := s.Follow(Story{SynthesisID: "fresh"})
	if err != nil {
		t.Fatal(err)
	}
	if evicted == nil || evicted.SynthesisID != "s00" {
		t.Errorf("evicted = %+v, want s00", evicted)
	}
	list, _ := s.List()
	if len(list) != MaxStories {
		t.Fatalf("len = %d, want %d", len(list), MaxStories)
	}
	for i := range 6 {
		if ok, _ := s.IsFollowed(fmt.Sprintf("s%02d", i)); ok {
			t.Errorf("s%02d still followed", i)
		}
	}
	if ok, _ := s.IsFollowed("fresh"); !ok {
		t.Error("fresh not followed")
	}
}

func TestUnfollow(t *testing.T) {
	s, _, _ := newTestStore(t)
	if _, err := s.Follow(Story{SynthesisID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Unfollow("a"); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
	if err := s.Unfollow("a"); !errors.Is(err, ErrNotFollowed) {
		t.Errorf("second Unfollow = %v, want ErrNotFollowed", err)
	}
	if _, err := s.Get("a"); !errors.Is(err, ErrNotFollowed) {
		t.Errorf("Get = %v, want ErrNotFollowed", err)
	}
}

func TestFollow_RequiresID(t *testing.T) {
	s, _, _ := newTestStore(t)
	if _, err := s.Follow(Story{Title: "x"}); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestCorruptPayloadIsEmpty(t *testing.T) {
	s, kv, _ := newTestStore(t)
	if err := kv.Put(StorageKey, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	list, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len = %d, want 0", len(list))
	}
	if _, err := s.Follow(Story{SynthesisID: "a"}); err != nil {
		t.Fatalf("Follow after corruption: %v", err)
	}
	if ok, _ := s.IsFollowed("a"); !ok {
		t.Error("a not followed")
	}
}

func TestPersistedShape(t *testing.T) {
	s, kv, _ := newTestStore(t)
	if _, err := s.Follow(Story{SynthesisID: "a", Title: "T", Category: "MONDE", NotifyOnUpdate: true}); err != nil {
		t.Fatal(err)
	}
	raw, ok, err := kv.Get(StorageKey)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	want := `[{"synthesisId":"a","title":"T","category":"MONDE","followedAt":"2025-03-01T12:00:00Z","lastChecked":"2025-03-01T12:00:00Z","notifyOnUpdate":true}]`
	if string(raw) != want {
		t.Errorf("payload =\n%s\nwant\n%s", raw, want)
	}
}

func TestClearAndMarkChecked(t *testing.T) {
	s, _, _ := newTestStore(t)
	if _, err := s.Follow(Story{SynthesisID: "a"}); err != nil {
		t.Fatal(err)
	}
	later := base.Add(2 * time.Hour)
	if err := s.MarkChecked("a", later); err != nil {
		t.Fatal(err)
	}
	st, _ := s.Get("a")
	if !st.LastChecked.Equal(later) {
		t.Errorf("LastChecked = %v, want %v", st.LastChecked, later)
	}
	if err := s.MarkChecked("zz", later); !errors.Is(err, ErrNotFollowed) {
		t.Errorf("MarkChecked unknown = %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if list, _ := s.List(); len(list) != 0 {
		t.Errorf("len after Clear = %d", len(list))
	}
}

type fakeFetcher map[string]*api.Synthesis

func (f fakeFetcher) Get(_ context.Context, id string) (*api.Synthesis, error) {
	if s, ok := f[id]; ok {
		return s, nil
	}
	return nil, errors.New("boom")
}

func ts(t time.Time) *api.Timestamp {
	v := api.Timestamp(t)
	return &v
}

func TestCheckUpdates(t *testing.T) {
	s, _, c := newTestStore(t)
	for _, st := range []Story{
		{SynthesisID: "changed", NotifyOnUpdate: true},
		{SynthesisID: "quiet-change"},
		{SynthesisID: "same", NotifyOnUpdate: true},
		{SynthesisID: "missing", NotifyOnUpdate: true},
	} {
		if _, err := s.Follow(st); err != nil {
			t.Fatal(err)
		}
	}
	c.t = base.Add(3 * time.Hour)
	f := fakeFetcher{
		"changed":      {ID: "changed", NarrativePhase: "escalation", UpdatedAt: ts(base.Add(time.Hour))},
		"quiet-change": {ID: "quiet-change", UpdatedAt: ts(base.Add(time.Hour))},
		"same":         {ID: "same", CreatedAt: ts(base.Add(-time.Hour))},
	}
	updates, err := s.CheckUpdates(context.Background(), f)
	if err == nil {
		t.Error("expected error for missing synthesis")
	}
	if len(updates) != 1 || updates[0].Story.SynthesisID != "changed" {
		t.Fatalf("updates = %+v, want only changed", updates)
	}
	if updates[0].Story.NarrativePhase != "escalation" {
		t.Errorf("phase = %q", updates[0].Story.NarrativePhase)
	}

	quiet, _ := s.Get("quiet-change")
	if quiet.LastUpdated == nil || !quiet.LastUpdated.Equal(base.Add(time.Hour)) {
		t.Errorf("quiet LastUpdated = %v", quiet.LastUpdated)
	}
	if !quiet.LastChecked.Equal(c.t) {
		t.Errorf("quiet LastChecked = %v, want %v", quiet.LastChecked, c.t)
	}
	same, _ := s.Get("same")
	if same.LastUpdated != nil {
		t.Errorf("same LastUpdated = %v, want nil", same.LastUpdated)
	}
	missing, _ := s.Get("missing")
	if !missing.LastChecked.Equal(base) {
		t.Errorf("missing LastChecked moved to %v", missing.LastChecked)
	}
}
