// Package memory provides an in-process ports.Store for tests and local demos.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/samirrijal/bilbopark/internal/core/domain"
	"github.com/samirrijal/bilbopark/internal/core/ports"
)

// op mutates the store while the data lock is held and returns a func that reverts it.
type op func(s *Store) (undo func(), err error)

// Store keeps lots, spots and reservations in maps guarded by one RWMutex.
// Transactions stage their writes and apply them together at commit, so
// readers never observe a partial mutation. Spot row locks are per spot.
type Store struct {
	mu           sync.RWMutex
	lots         map[string]domain.Lot
	lotOrder     []string
	spots        map[string]domain.Spot
	spotOrder    []string
	labels       map[string]string // lotID/label -> spotID
	reservations map[string]domain.Reservation
	resOrder     []string

	locksMu   sync.Mutex
	spotLocks map[string]chan struct{}
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		lots:         make(map[string]domain.Lot),
		spots:        make(map[string]domain.Spot),
		labels:       make(map[string]string),
		reservations: make(map[string]domain.Reservation),
		spotLocks:    make(map[string]chan struct{}),
	}
}

var _ ports.Store = (*Store)(nil)

// Repositories returns autocommit repositories.
func (s *Store) Repositories() ports.Repositories {
	return s.repos(nil)
}

// InTx runs fn with transaction-bound repositories. Staged writes are applied
// atomically when fn returns nil and discarded otherwise, including on panic.
func (s *Store) InTx(ctx context.Context, fn ports.TxFunc) (err error) {
	t := &tx{held: make(map[string]chan struct{})}
	defer t.release()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("transaction panic: %v", p)
		}
	}()

	if err := fn(ctx, s.repos(t)); err != nil {
		return err
	}
	return s.commit(t.ops)
}

func (s *Store) repos(t *tx) ports.Repositories {
	return ports.Repositories{
		Lots:         &lotRepo{s: s, tx: t},
		Spots:        &spotRepo{s: s, tx: t},
		Reservations: &reservationRepo{s: s, tx: t},
	}
}

func (s *Store) commit(ops []op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	undos := make([]func(), 0, len(ops))
	for _, o := range ops {
		undo, err := o(s)
		if err != nil {
			for i := len(undos) - 1; i >= 0; i-- {
				undos[i]()
			}
			return err
		}
		undos = append(undos, undo)
	}
	return nil
}

// write applies o immediately, or stages it when t is a transaction.
func (s *Store) write(t *tx, o op) error {
	if t != nil {
		t.ops = append(t.ops, o)
		return nil
	}
	return s.commit([]op{o})
}

// lockSpot blocks until the spot lock is held by t or ctx is done.
// Lock channels live as long as the store. Spots are never deleted, so
// spotLocks holds at most one entry per spot ever created.
func (s *Store) lockSpot(ctx context.Context, t *tx, id string) error {
	if _, ok := t.held[id]; ok {
		return nil
	}

	s.locksMu.Lock()
	ch, ok := s.spotLocks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.spotLocks[id] = ch
	}
	s.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
		t.held[id] = ch
		return nil
	case <-ctx.Done():
		return domain.Infrastructure("lock spot "+id, ctx.Err())
	}
}

// tx is the state of one InTx call.
type tx struct {
	ops  []op
	held map[string]chan struct{}
}

func (t *tx) release() {
	for id, ch := range t.held {
		<-ch
		delete(t.held, id)
	}
}

func labelKey(lotID, label string) string {
	return lotID + "/" + label
}
