package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"koboland/internal/model"
	"koboland/internal/repository"

	"gorm.io/gorm"
)

// fakeLedger is an in-memory VoteRepository. Each method is atomic under one
// mutex, mirroring the per-statement atomicity of the real store.
type fakeLedger struct {
	mu      sync.Mutex
	rows    map[string]model.Vote
	nextID  int
	queries int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[string]model.Vote)}
}

func ledgerKey(voterID, targetType, targetID string) string {
	return voterID + "|" + targetType + "|" + targetID
}

func (f *fakeLedger) Find(tx *gorm.DB, voterID, targetType, targetID string) (*model.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[ledgerKey(voterID, targetType, targetID)]; ok {
		return &row, nil
	}
	return nil, nil
}

func (f *fakeLedger) Upsert(tx *gorm.DB, vote *model.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if vote.ID == "" {
		f.nextID++
		vote.ID = fmt.Sprintf("vote-%d", f.nextID)
	}
	f.rows[ledgerKey(vote.VoterID, vote.TargetType, vote.TargetID)] = *vote
	return nil
}

func (f *fakeLedger) Delete(tx *gorm.DB, voterID, targetType, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, ledgerKey(voterID, targetType, targetID))
	return nil
}

func (f *fakeLedger) FindByVoterAndTargets(voterID, targetType string, targetIDs []string) ([]model.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	var out []model.Vote
	for _, id := range targetIDs {
		if row, ok := f.rows[ledgerKey(voterID, targetType, id)]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeLedger) CountForTarget(targetType, targetID string) (model.Counters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var c model.Counters
	for _, row := range f.rows {
		if row.TargetType != targetType || row.TargetID != targetID {
			continue
		}
		switch row.VoteType {
		case model.VoteTypeLike:
			c.Likes++
		case model.VoteTypeDislike:
			c.Dislikes++
		}
		if row.IsShared {
			c.Shares++
		}
	}
	return c, nil
}

// fakeRegistry is an in-memory TargetRegistry. failApply injects transient
// conflicts into ApplyDeltas to exercise the engine's retry loop.
type fakeRegistry struct {
	mu           sync.Mutex
	counters     map[string]model.Counters
	failApply    int
	permanentErr error
	applyCalls   int
}

func newFakeRegistry(targets ...string) *fakeRegistry {
	r := &fakeRegistry{counters: make(map[string]model.Counters)}
	for _, key := range targets {
		r.counters[key] = model.Counters{}
	}
	return r
}

func targetKeyOf(targetType, targetID string) string {
	return targetType + "|" + targetID
}

func (f *fakeRegistry) Exists(targetType, targetID string) (bool, error) {
	if targetType != model.TargetTypeTopic && targetType != model.TargetTypePost {
		return false, repository.ErrUnknownTargetKind
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.counters[targetKeyOf(targetType, targetID)]
	return ok, nil
}

func (f *fakeRegistry) LockCounters(tx *gorm.DB, targetType, targetID string) (model.Counters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.counters[targetKeyOf(targetType, targetID)]
	if !ok {
		return model.Counters{}, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (f *fakeRegistry) ApplyDeltas(tx *gorm.DB, targetType, targetID string, delta model.CounterDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyCalls++
	if f.permanentErr != nil {
		return f.permanentErr
	}
	if f.failApply > 0 {
		f.failApply--
		return errors.New("ERROR: could not serialize access (SQLSTATE 40001)")
	}
	key := targetKeyOf(targetType, targetID)
	c, ok := f.counters[key]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Likes += delta.Likes
	c.Dislikes += delta.Dislikes
	c.Shares += delta.Shares
	f.counters[key] = c
	return nil
}

func (f *fakeRegistry) Counters(targetType, targetID string) (model.Counters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.counters[targetKeyOf(targetType, targetID)]
	if !ok {
		return model.Counters{}, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (f *fakeRegistry) InvalidateCounters(targetType, targetID string) {}

func newTestVoteService(ledger *fakeLedger, registry *fakeRegistry) VoteService {
	return NewVoteService(nil, ledger, registry, nil)
}

// checkConsistent asserts the denormalized counters match a recount of the
// ledger rows behind them.
func checkConsistent(t *testing.T, ledger *fakeLedger, registry *fakeRegistry, targetType, targetID string) {
	t.Helper()
	stored, err := registry.Counters(targetType, targetID)
	if err != nil {
		t.Fatalf("Counters: %v", err)
	}
	counted, err := ledger.CountForTarget(targetType, targetID)
	if err != nil {
		t.Fatalf("CountForTarget: %v", err)
	}
	if stored != counted {
		t.Fatalf("counters %+v diverged from ledger recount %+v", stored, counted)
	}
}

func TestApplyChangeValidation(t *testing.T) {
	registry := newFakeRegistry(targetKeyOf(model.TargetTypeTopic, "t1"))
	svc := newTestVoteService(newFakeLedger(), registry)

	_, err := svc.ApplyChange("alice", model.TargetTypeTopic, "t1", VoteChange{})
	if !errors.Is(err, ErrNothingRequested) {
		t.Errorf("empty change: err = %v, want ErrNothingRequested", err)
	}

	_, err = svc.ApplyChange("alice", model.TargetTypeTopic, "t1", VoteChange{VoteType: strPtr("UPVOTE")})
	if !errors.Is(err, ErrInvalidVoteType) {
		t.Errorf("bad vote type: err = %v, want ErrInvalidVoteType", err)
	}

	_, err = svc.ApplyChange("alice", "comment", "t1", VoteChange{VoteType: strPtr(model.VoteTypeLike)})
	if !errors.Is(err, ErrUnknownTargetKind) {
		t.Errorf("bad kind: err = %v, want ErrUnknownTargetKind", err)
	}

	_, err = svc.ApplyChange("alice", model.TargetTypeTopic, "missing", VoteChange{VoteType: strPtr(model.VoteTypeLike)})
	if !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("missing target: err = %v, want ErrTargetNotFound", err)
	}
}

func TestApplyChangeLifecycle(t *testing.T) {
	ledger := newFakeLedger()
	registry := newFakeRegistry(targetKeyOf(model.TargetTypePost, "p1"))
	svc := newTestVoteService(ledger, registry)

	steps := []struct {
		name   string
		change VoteChange
		want   model.Counters
	}{
		{"like", VoteChange{VoteType: strPtr(model.VoteTypeLike)}, model.Counters{Likes: 1}},
		{"switch to dislike", VoteChange{VoteType: strPtr(model.VoteTypeDislike)}, model.Counters{Dislikes: 1}},
		{"share while disliking", VoteChange{Shared: boolPtr(true)}, model.Counters{Dislikes: 1, Shares: 1}},
		{"retract vote, keep share", VoteChange{VoteType: strPtr(model.VoteTypeNone)}, model.Counters{Shares: 1}},
		{"unshare", VoteChange{Shared: boolPtr(false)}, model.Counters{}},
	}

	for _, step := range steps {
		counters, err := svc.ApplyChange("alice", model.TargetTypePost, "p1", step.change)
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if counters != step.want {
			t.Fatalf("%s: counters = %+v, want %+v", step.name, counters, step.want)
		}
		checkConsistent(t, ledger, registry, model.TargetTypePost, "p1")
	}

	// Back at the default state the ledger row must be gone, not zeroed.
	row, err := ledger.Find(nil, "alice", model.TargetTypePost, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if row != nil {
		t.Errorf("row still present after returning to the default state: %+v", row)
	}
}

func TestApplyChangeKeepsRowWhileShared(t *testing.T) {
	ledger := newFakeLedger()
	registry := newFakeRegistry(targetKeyOf(model.TargetTypeTopic, "t1"))
	svc := newTestVoteService(ledger, registry)

	mustApply := func(change VoteChange) {
		t.Helper()
		if _, err := svc.ApplyChange("bob", model.TargetTypeTopic, "t1", change); err != nil {
			t.Fatal(err)
		}
	}

	mustApply(VoteChange{VoteType: strPtr(model.VoteTypeLike), Shared: boolPtr(true)})
	mustApply(VoteChange{VoteType: strPtr(model.VoteTypeNone)})

	row, err := ledger.Find(nil, "bob", model.TargetTypeTopic, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil {
		t.Fatal("row deleted while the share flag is still set")
	}
	if row.VoteType != model.VoteTypeNone || !row.IsShared {
		t.Errorf("row = (%s, shared=%v), want (NO_VOTE, shared=true)", row.VoteType, row.IsShared)
	}
}

func TestApplyChangeIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	registry := newFakeRegistry(targetKeyOf(model.TargetTypeTopic, "t1"))
	svc := newTestVoteService(ledger, registry)

	change := VoteChange{VoteType: strPtr(model.VoteTypeLike)}
	for i := 0; i < 3; i++ {
		counters, err := svc.ApplyChange("alice", model.TargetTypeTopic, "t1", change)
		if err != nil {
			t.Fatal(err)
		}
		if counters.Likes != 1 {
			t.Fatalf("likes = %d after %d identical requests, want 1", counters.Likes, i+1)
		}
	}
	checkConsistent(t, ledger, registry, model.TargetTypeTopic, "t1")
}

func TestApplyChangeConcurrentVoters(t *testing.T) {
	const voters = 32

	ledger := newFakeLedger()
	registry := newFakeRegistry(targetKeyOf(model.TargetTypeTopic, "t1"))
	svc := newTestVoteService(ledger, registry)

	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.ApplyChange(fmt.Sprintf("voter-%d", i), model.TargetTypeTopic, "t1",
				VoteChange{VoteType: strPtr(model.VoteTypeLike)})
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	counters, err := registry.Counters(model.TargetTypeTopic, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if counters.Likes != voters {
		t.Errorf("likes = %d, want %d", counters.Likes, voters)
	}
	checkConsistent(t, ledger, registry, model.TargetTypeTopic, "t1")
}

func TestApplyChangeRetriesTransientConflict(t *testing.T) {
	ledger := newFakeLedger()
	registry := newFakeRegistry(targetKeyOf(model.TargetTypeTopic, "t1"))
	registry.failApply = 1
	svc := newTestVoteService(ledger, registry)

	counters, err := svc.ApplyChange("alice", model.TargetTypeTopic, "t1",
		VoteChange{VoteType: strPtr(model.VoteTypeLike)})
	if err != nil {
		t.Fatalf("one transient conflict should be retried, got %v", err)
	}
	if counters.Likes != 1 {
		t.Errorf("likes = %d, want 1", counters.Likes)
	}
	checkConsistent(t, ledger, registry, model.TargetTypeTopic, "t1")
}

func TestApplyChangeRetryExhausted(t *testing.T) {
	registry := newFakeRegistry(targetKeyOf(model.TargetTypeTopic, "t1"))
	registry.failApply = applyMaxAttempts
	svc := newTestVoteService(newFakeLedger(), registry)

	_, err := svc.ApplyChange("alice", model.TargetTypeTopic, "t1",
		VoteChange{VoteType: strPtr(model.VoteTypeLike)})
	if !errors.Is(err, ErrConflictRetryExhausted) {
		t.Errorf("err = %v, want ErrConflictRetryExhausted", err)
	}
}

func TestApplyChangeDoesNotRetryPermanentErrors(t *testing.T) {
	registry := newFakeRegistry(targetKeyOf(model.TargetTypeTopic, "t1"))
	registry.permanentErr = errors.New("connection refused")
	svc := newTestVoteService(newFakeLedger(), registry)

	_, err := svc.ApplyChange("alice", model.TargetTypeTopic, "t1",
		VoteChange{VoteType: strPtr(model.VoteTypeLike)})
	if err == nil || errors.Is(err, ErrConflictRetryExhausted) {
		t.Fatalf("err = %v, want the permanent error unchanged", err)
	}
	if registry.applyCalls != 1 {
		t.Errorf("applyCalls = %d, permanent errors must not be retried", registry.applyCalls)
	}
}

func TestEnrichTargets(t *testing.T) {
	ledger := newFakeLedger()
	registry := newFakeRegistry()
	svc := newTestVoteService(ledger, registry)

	seed := func(targetType, targetID, voteType string, shared bool) {
		t.Helper()
		err := ledger.Upsert(nil, &model.Vote{
			VoterID:    "alice",
			TargetType: targetType,
			TargetID:   targetID,
			VoteType:   voteType,
			IsShared:   shared,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	seed(model.TargetTypeTopic, "t1", model.VoteTypeLike, false)
	seed(model.TargetTypePost, "p2", model.VoteTypeDislike, true)
	seed(model.TargetTypePost, "p9", model.VoteTypeNone, true)

	refs := []model.TargetRef{
		{Type: model.TargetTypeTopic, ID: "t1"},
		{Type: model.TargetTypePost, ID: "p1"},
		{Type: model.TargetTypePost, ID: "p2"},
		{Type: model.TargetTypeTopic, ID: "t2"},
		{Type: model.TargetTypePost, ID: "p9"},
	}

	states, err := svc.EnrichTargets("alice", refs)
	if err != nil {
		t.Fatal(err)
	}

	want := []model.ViewerVote{
		{VoteType: model.VoteTypeLike},
		{VoteType: model.VoteTypeNone},
		{VoteType: model.VoteTypeDislike, IsShared: true},
		{VoteType: model.VoteTypeNone},
		{VoteType: model.VoteTypeNone, IsShared: true},
	}
	if len(states) != len(want) {
		t.Fatalf("got %d states, want %d", len(states), len(want))
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %+v, want %+v", i, states[i], want[i])
		}
	}

	// Two distinct kinds in the batch means exactly two ledger queries,
	// however many targets there are.
	if ledger.queries != 2 {
		t.Errorf("ledger queries = %d, want 2", ledger.queries)
	}
}

func TestEnrichTargetsQueryCountScalesWithKinds(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestVoteService(ledger, newFakeRegistry())

	refs := make([]model.TargetRef, 500)
	for i := range refs {
		refs[i] = model.TargetRef{Type: model.TargetTypePost, ID: fmt.Sprintf("p%d", i)}
	}

	states, err := svc.EnrichTargets("alice", refs)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != len(refs) {
		t.Fatalf("got %d states, want %d", len(states), len(refs))
	}
	if ledger.queries != 1 {
		t.Errorf("ledger queries = %d for a single-kind batch, want 1", ledger.queries)
	}
}

func TestEnrichTargetsRejectsUnknownKind(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestVoteService(ledger, newFakeRegistry())

	refs := []model.TargetRef{{Type: "comment", ID: "c1"}}

	// Unregistered kinds are client errors even for anonymous viewers,
	// never silently all-default states.
	if _, err := svc.EnrichTargets("", refs); !errors.Is(err, ErrUnknownTargetKind) {
		t.Errorf("anonymous: err = %v, want ErrUnknownTargetKind", err)
	}
	if _, err := svc.EnrichTargets("alice", refs); !errors.Is(err, ErrUnknownTargetKind) {
		t.Errorf("authenticated: err = %v, want ErrUnknownTargetKind", err)
	}
	if ledger.queries != 0 {
		t.Errorf("ledger queries = %d, want 0", ledger.queries)
	}
}

func TestEnrichTargetsAnonymousViewer(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestVoteService(ledger, newFakeRegistry())

	refs := []model.TargetRef{{Type: model.TargetTypeTopic, ID: "t1"}}
	states, err := svc.EnrichTargets("", refs)
	if err != nil {
		t.Fatal(err)
	}
	if states[0].VoteType != model.VoteTypeNone || states[0].IsShared {
		t.Errorf("anonymous state = %+v, want default", states[0])
	}
	if ledger.queries != 0 {
		t.Errorf("ledger queries = %d for anonymous viewer, want 0", ledger.queries)
	}
}

func TestTargetCounters(t *testing.T) {
	registry := newFakeRegistry(targetKeyOf(model.TargetTypeTopic, "t1"))
	registry.counters[targetKeyOf(model.TargetTypeTopic, "t1")] = model.Counters{Likes: 4, Shares: 2}
	svc := newTestVoteService(newFakeLedger(), registry)

	counters, err := svc.TargetCounters(model.TargetTypeTopic, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if counters != (model.Counters{Likes: 4, Shares: 2}) {
		t.Errorf("counters = %+v", counters)
	}

	_, err = svc.TargetCounters(model.TargetTypeTopic, "missing")
	if !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("err = %v, want ErrTargetNotFound", err)
	}
}
