package service

import (
	"koboland/internal/model"
)

// voteState is one voter's (vote_type, is_shared) tuple toward one target.
// A missing ledger row reads as (NO_VOTE, false).
type voteState struct {
	VoteType string
	IsShared bool
}

func neutralState() voteState {
	return voteState{VoteType: model.VoteTypeNone}
}

// VoteChange requests movement on one or both axes. A nil field leaves that
// axis unchanged.
type VoteChange struct {
	VoteType *string
	Shared   *bool
}

// Empty reports whether the change requests nothing on either axis.
func (c VoteChange) Empty() bool {
	return c.VoteType == nil && c.Shared == nil
}

// applyTransition computes the post state and the summed counter delta for
// a requested change against the current state. The vote-type axis and the
// share axis are orthogonal: each contributes its own delta. Re-requesting
// the state already held is a no-op, not an error.
func applyTransition(current voteState, change VoteChange) (voteState, model.CounterDelta) {
	next := current
	var delta model.CounterDelta

	if change.VoteType != nil && *change.VoteType != current.VoteType {
		delta = delta.Add(voteTypeDelta(current.VoteType, -1))
		delta = delta.Add(voteTypeDelta(*change.VoteType, +1))
		next.VoteType = *change.VoteType
	}

	if change.Shared != nil && *change.Shared != current.IsShared {
		if *change.Shared {
			delta.Shares++
		} else {
			delta.Shares--
		}
		next.IsShared = *change.Shared
	}

	return next, delta
}

func voteTypeDelta(voteType string, sign int64) model.CounterDelta {
	switch voteType {
	case model.VoteTypeLike:
		return model.CounterDelta{Likes: sign}
	case model.VoteTypeDislike:
		return model.CounterDelta{Dislikes: sign}
	}
	// NO_VOTE touches no counter
	return model.CounterDelta{}
}
