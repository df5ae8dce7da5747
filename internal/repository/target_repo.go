package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"koboland/internal/model"
	"koboland/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownTargetKind is returned for a target kind the registry does not
// know about.
var ErrUnknownTargetKind = errors.New("unknown target kind")

// targetTables maps a target kind to the table holding its counter columns.
// Adding a new votable kind means adding a row here, nothing in the engine.
var targetTables = map[string]string{
	model.TargetTypeTopic: "topics",
	model.TargetTypePost:  "posts",
}

const (
	counterCachePrefix     = "counters:"
	counterCacheExpiration = 10 * time.Minute
)

// KnownTargetKind reports whether kind names a registered votable kind.
func KnownTargetKind(kind string) bool {
	_, ok := targetTables[kind]
	return ok
}

// TargetRegistry resolves (target_kind, target_id) pairs to their counter
// columns. The tx-aware methods participate in the caller's transaction so
// counter mutation and ledger mutation commit as one unit.
type TargetRegistry interface {
	Exists(targetType, targetID string) (bool, error)

	// LockCounters reads the target's counters under FOR UPDATE, serializing
	// concurrent writers on the same target.
	LockCounters(tx *gorm.DB, targetType, targetID string) (model.Counters, error)

	// ApplyDeltas adds signed deltas to the counter columns in SQL, never
	// writing back values computed from a stale read.
	ApplyDeltas(tx *gorm.DB, targetType, targetID string, delta model.CounterDelta) error

	// Counters is the plain read path, served from cache when possible.
	Counters(targetType, targetID string) (model.Counters, error)

	// InvalidateCounters drops the cached snapshot after a committed change.
	InvalidateCounters(targetType, targetID string)
}

type targetRegistry struct {
	db    *gorm.DB
	redis *util.RedisClient
}

func NewTargetRegistry(db *gorm.DB, redis *util.RedisClient) TargetRegistry {
	return &targetRegistry{db: db, redis: redis}
}

func (r *targetRegistry) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *targetRegistry) Exists(targetType, targetID string) (bool, error) {
	table, ok := targetTables[targetType]
	if !ok {
		return false, ErrUnknownTargetKind
	}

	var count int64
	err := r.db.Table(table).Where("id = ?", targetID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *targetRegistry) LockCounters(tx *gorm.DB, targetType, targetID string) (model.Counters, error) {
	var c model.Counters

	table, ok := targetTables[targetType]
	if !ok {
		return c, ErrUnknownTargetKind
	}

	err := r.conn(tx).Table(table).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("likes", "dislikes", "shares").
		Where("id = ?", targetID).
		Take(&c).Error
	return c, err
}

func (r *targetRegistry) ApplyDeltas(tx *gorm.DB, targetType, targetID string, delta model.CounterDelta) error {
	table, ok := targetTables[targetType]
	if !ok {
		return ErrUnknownTargetKind
	}
	if delta.IsZero() {
		return nil
	}

	updates := map[string]interface{}{}
	if delta.Likes != 0 {
		updates["likes"] = gorm.Expr("likes + ?", delta.Likes)
	}
	if delta.Dislikes != 0 {
		updates["dislikes"] = gorm.Expr("dislikes + ?", delta.Dislikes)
	}
	if delta.Shares != 0 {
		updates["shares"] = gorm.Expr("shares + ?", delta.Shares)
	}

	res := r.conn(tx).Table(table).Where("id = ?", targetID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *targetRegistry) Counters(targetType, targetID string) (model.Counters, error) {
	var c model.Counters

	table, ok := targetTables[targetType]
	if !ok {
		return c, ErrUnknownTargetKind
	}

	// Try cache first
	cacheKey := counterCacheKey(targetType, targetID)
	if r.redis != nil {
		if cached, err := r.redis.Get(cacheKey); err == nil {
			if json.Unmarshal([]byte(cached), &c) == nil {
				return c, nil
			}
		}
	}

	err := r.db.Table(table).
		Select("likes", "dislikes", "shares").
		Where("id = ?", targetID).
		Take(&c).Error
	if err != nil {
		return c, err
	}

	if r.redis != nil {
		r.redis.Set(cacheKey, c, counterCacheExpiration)
	}
	return c, nil
}

func (r *targetRegistry) InvalidateCounters(targetType, targetID string) {
	if r.redis == nil {
		return
	}
	r.redis.Delete(counterCacheKey(targetType, targetID))
}

func counterCacheKey(targetType, targetID string) string {
	return fmt.Sprintf("%s%s:%s", counterCachePrefix, targetType, targetID)
}
