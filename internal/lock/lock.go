package lock

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLockTimeout = errors.New("lock_timeout")
	ErrEmptyKey    = errors.New("lock key is empty")
)

// Locker serializes work on a named resource across callers. Release must be
// called exactly once after a successful Acquire.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

const (
	defaultTTL     = 15 * time.Second
	defaultWait    = 10 * time.Second
	minRetryDelay  = 10 * time.Millisecond
	maxRetryDelay  = 200 * time.Millisecond
	releaseTimeout = 2 * time.Second
)

// LoanKey is the lock name guarding one loan's financial state.
func LoanKey(initialInvoiceNo string) string {
	return "pawnshop:loan:" + initialInvoiceNo
}

// ItemKey guards an existing item while it is pledged to a new loan.
func ItemKey(itemID string) string {
	return "pawnshop:item:" + itemID
}
