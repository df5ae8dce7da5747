package service

import (
	"errors"
	"fmt"
	"time"

	"koboland/internal/model"
	"koboland/internal/repository"
	"koboland/internal/util"

	"gorm.io/gorm"
)

// VoteService is the counter consistency engine: it turns a requested change
// to a voter's state into counter deltas and a ledger mutation, applied as
// one atomic unit.
type VoteService interface {
	// ApplyChange applies a vote/share change for one voter and target and
	// returns the target's counters after commit.
	ApplyChange(voterID, targetType, targetID string, change VoteChange) (model.Counters, error)

	// EnrichTargets returns the viewer's state for each target in refs, in
	// input order, using one ledger query per distinct target kind.
	EnrichTargets(viewerID string, refs []model.TargetRef) ([]model.ViewerVote, error)

	// TargetCounters reads a target's current counters.
	TargetCounters(targetType, targetID string) (model.Counters, error)
}

const (
	applyMaxAttempts = 3
	applyRetryDelay  = 25 * time.Millisecond
)

type voteService struct {
	db      *gorm.DB
	votes   repository.VoteRepository
	targets repository.TargetRegistry
	events  *ReactionEventPublisher
}

func NewVoteService(
	db *gorm.DB,
	votes repository.VoteRepository,
	targets repository.TargetRegistry,
	events *ReactionEventPublisher,
) VoteService {
	return &voteService{
		db:      db,
		votes:   votes,
		targets: targets,
		events:  events,
	}
}

// ApplyChange validates the request, then runs the read-decide-write
// sequence inside one transaction, retrying on benign races.
func (s *voteService) ApplyChange(voterID, targetType, targetID string, change VoteChange) (model.Counters, error) {
	if change.Empty() {
		return model.Counters{}, ErrNothingRequested
	}
	if change.VoteType != nil && !model.IsValidVoteType(*change.VoteType) {
		return model.Counters{}, ErrInvalidVoteType
	}

	exists, err := s.targets.Exists(targetType, targetID)
	if err != nil {
		return model.Counters{}, err
	}
	if !exists {
		return model.Counters{}, ErrTargetNotFound
	}

	var counters model.Counters
	var lastErr error
	for attempt := 0; attempt < applyMaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(applyRetryDelay * time.Duration(1<<(attempt-1)))
		}

		counters, lastErr = s.applyOnce(voterID, targetType, targetID, change)
		if lastErr == nil {
			s.targets.InvalidateCounters(targetType, targetID)
			if s.events != nil {
				s.events.PublishVoteUpdate(targetType, targetID, counters)
			}
			return counters, nil
		}

		// A unique violation on the ledger is a lost race against a
		// concurrent writer for the same (voter, target); re-reading on the
		// next attempt resolves it. Everything else propagates.
		if !util.IsUniqueViolation(lastErr) && !util.IsSerializationFailure(lastErr) {
			return model.Counters{}, lastErr
		}
	}

	return model.Counters{}, fmt.Errorf("%w: %v", ErrConflictRetryExhausted, lastErr)
}

// applyOnce is one attempt at the atomic unit: lock target counters, read
// the ledger row, compute the transition, apply deltas and the row
// mutation, commit. Nothing is visible on failure.
func (s *voteService) applyOnce(voterID, targetType, targetID string, change VoteChange) (model.Counters, error) {
	var counters model.Counters

	err := s.transact(func(tx *gorm.DB) error {
		current, err := s.targets.LockCounters(tx, targetType, targetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTargetNotFound
			}
			return err
		}

		existing, err := s.votes.Find(tx, voterID, targetType, targetID)
		if err != nil {
			return err
		}

		state := neutralState()
		if existing != nil {
			state = voteState{VoteType: existing.VoteType, IsShared: existing.IsShared}
		}

		next, delta := applyTransition(state, change)

		if err := s.targets.ApplyDeltas(tx, targetType, targetID, delta); err != nil {
			return err
		}

		if next == neutralState() {
			// Sparsity: the default state is row absence, not a neutral row.
			if existing != nil {
				if err := s.votes.Delete(tx, voterID, targetType, targetID); err != nil {
					return err
				}
			}
		} else {
			vote := existing
			if vote == nil {
				vote = &model.Vote{
					VoterID:    voterID,
					TargetType: targetType,
					TargetID:   targetID,
				}
			}
			vote.VoteType = next.VoteType
			vote.IsShared = next.IsShared
			if err := s.votes.Upsert(tx, vote); err != nil {
				return err
			}
		}

		counters = model.Counters{
			Likes:    current.Likes + delta.Likes,
			Dislikes: current.Dislikes + delta.Dislikes,
			Shares:   current.Shares + delta.Shares,
		}
		return nil
	})

	return counters, err
}

// transact wraps fn in a database transaction. Repositories not backed by
// gorm (fakes in tests) run fn directly and provide their own atomicity.
func (s *voteService) transact(fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return fn(nil)
	}
	return s.db.Transaction(fn)
}

// EnrichTargets annotates an ordered batch of targets with the viewer's
// state, bounded to one ledger query per distinct kind in the batch. An
// unregistered kind is a client error even for anonymous viewers.
func (s *voteService) EnrichTargets(viewerID string, refs []model.TargetRef) ([]model.ViewerVote, error) {
	out := make([]model.ViewerVote, len(refs))
	for i := range out {
		out[i] = model.ViewerVote{VoteType: model.VoteTypeNone}
	}

	idsByKind := make(map[string][]string)
	for _, ref := range refs {
		if !repository.KnownTargetKind(ref.Type) {
			return nil, ErrUnknownTargetKind
		}
		idsByKind[ref.Type] = append(idsByKind[ref.Type], ref.ID)
	}
	if viewerID == "" || len(refs) == 0 {
		return out, nil
	}

	type targetKey struct {
		kind string
		id   string
	}
	found := make(map[targetKey]model.ViewerVote)

	for kind, ids := range idsByKind {
		votes, err := s.votes.FindByVoterAndTargets(viewerID, kind, ids)
		if err != nil {
			return nil, err
		}
		for _, v := range votes {
			found[targetKey{kind, v.TargetID}] = model.ViewerVote{
				VoteType: v.VoteType,
				IsShared: v.IsShared,
			}
		}
	}

	for i, ref := range refs {
		if vv, ok := found[targetKey{ref.Type, ref.ID}]; ok {
			out[i] = vv
		}
	}
	return out, nil
}

// TargetCounters reads a target's counters through the registry cache
func (s *voteService) TargetCounters(targetType, targetID string) (model.Counters, error) {
	counters, err := s.targets.Counters(targetType, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Counters{}, ErrTargetNotFound
		}
		return model.Counters{}, err
	}
	return counters, nil
}
