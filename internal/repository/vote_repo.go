package repository

import (
	"errors"

	"koboland/internal/model"

	"gorm.io/gorm"
)

// VoteRepository is the reaction ledger: the authoritative set of individual
// vote rows, at most one per (voter, target_type, target_id). The composite
// unique index on that triple rejects concurrent duplicate writers at the
// store, not just in application logic.
type VoteRepository interface {
	// Find returns the voter's row for a target, or nil when absent.
	Find(tx *gorm.DB, voterID, targetType, targetID string) (*model.Vote, error)
	Upsert(tx *gorm.DB, vote *model.Vote) error
	Delete(tx *gorm.DB, voterID, targetType, targetID string) error

	// FindByVoterAndTargets fetches all of one voter's rows for a batch of
	// targets of one kind in a single query.
	FindByVoterAndTargets(voterID, targetType string, targetIDs []string) ([]model.Vote, error)

	// CountForTarget recounts the live rows behind a target's counters.
	CountForTarget(targetType, targetID string) (model.Counters, error)
}

type voteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

func (r *voteRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Find returns the voter's row for a target, or nil when no row exists
func (r *voteRepository) Find(tx *gorm.DB, voterID, targetType, targetID string) (*model.Vote, error) {
	var vote model.Vote
	err := r.conn(tx).
		Where("voter_id = ? AND target_type = ? AND target_id = ?", voterID, targetType, targetID).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

// Upsert creates the row on first write and updates it in place afterwards
func (r *voteRepository) Upsert(tx *gorm.DB, vote *model.Vote) error {
	if vote.ID == "" {
		return r.conn(tx).Create(vote).Error
	}
	return r.conn(tx).Save(vote).Error
}

// Delete removes the voter's row for a target
func (r *voteRepository) Delete(tx *gorm.DB, voterID, targetType, targetID string) error {
	return r.conn(tx).
		Where("voter_id = ? AND target_type = ? AND target_id = ?", voterID, targetType, targetID).
		Delete(&model.Vote{}).Error
}

// FindByVoterAndTargets fetches one voter's rows for many targets of one kind
func (r *voteRepository) FindByVoterAndTargets(voterID, targetType string, targetIDs []string) ([]model.Vote, error) {
	if len(targetIDs) == 0 {
		return nil, nil
	}
	var votes []model.Vote
	err := r.db.
		Where("voter_id = ? AND target_type = ? AND target_id IN ?", voterID, targetType, targetIDs).
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}

// CountForTarget recounts the ledger rows for a target
func (r *voteRepository) CountForTarget(targetType, targetID string) (model.Counters, error) {
	var c model.Counters

	base := r.db.Model(&model.Vote{}).Where("target_type = ? AND target_id = ?", targetType, targetID)

	if err := base.Session(&gorm.Session{}).Where("vote_type = ?", model.VoteTypeLike).Count(&c.Likes).Error; err != nil {
		return c, err
	}
	if err := base.Session(&gorm.Session{}).Where("vote_type = ?", model.VoteTypeDislike).Count(&c.Dislikes).Error; err != nil {
		return c, err
	}
	if err := base.Session(&gorm.Session{}).Where("is_shared = ?", true).Count(&c.Shares).Error; err != nil {
		return c, err
	}
	return c, nil
}
