package util

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{gorm.ErrDuplicatedKey, true},
		{fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{errors.New(`duplicate key value violates unique constraint "idx_voter_target" (SQLSTATE 23505)`), true},
		{errors.New("UNIQUE constraint failed: votes.voter_id"), true},
		{errors.New("connection refused"), false},
		{gorm.ErrRecordNotFound, false},
	}

	for _, tt := range tests {
		if got := IsUniqueViolation(tt.err); got != tt.want {
			t.Errorf("IsUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestIsSerializationFailure(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("could not serialize access due to concurrent update (SQLSTATE 40001)"), true},
		{errors.New("deadlock detected (SQLSTATE 40P01)"), true},
		{errors.New("connection refused"), false},
		{gorm.ErrDuplicatedKey, false},
	}

	for _, tt := range tests {
		if got := IsSerializationFailure(tt.err); got != tt.want {
			t.Errorf("IsSerializationFailure(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
