package util

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
)

const (
	publicIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	publicIDLength   = 11

	// At 62^11 possible ids a collision is effectively unreachable; hitting
	// the retry bound means the allocator is broken, not unlucky.
	maxAllocateAttempts = 5
)

// ErrAllocationExhausted is returned when public id allocation keeps
// colliding past the retry bound. This is a systemic failure, never a
// user-facing validation error.
var ErrAllocationExhausted = errors.New("public id allocation exhausted")

// NewPublicID generates a short collision-resistant public identifier.
func NewPublicID() string {
	id := make([]byte, publicIDLength)
	max := big.NewInt(int64(len(publicIDAlphabet)))
	for i := range id {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			panic(fmt.Sprintf("publicid: rand failed: %v", err))
		}
		id[i] = publicIDAlphabet[n.Int64()]
	}
	return string(id)
}

// AllocatePublicID calls create with fresh ids until the insert succeeds,
// retrying only on uniqueness violations. Any other error propagates
// unchanged.
func AllocatePublicID(create func(id string) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAllocateAttempts; attempt++ {
		id := NewPublicID()
		err := create(id)
		if err == nil {
			return nil
		}
		if !IsUniqueViolation(err) {
			return err
		}
		log.Printf("publicid: collision on attempt %d/%d", attempt, maxAllocateAttempts)
		lastErr = err
	}
	log.Printf("publicid: allocation exhausted after %d attempts: %v", maxAllocateAttempts, lastErr)
	return ErrAllocationExhausted
}
