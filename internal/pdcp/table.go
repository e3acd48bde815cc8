package pdcp

import (
	"fmt"
	"sync"
)

type tableKind string

const (
	tableUnicast   tableKind = "unicast"
	tableMulticast tableKind = "multicast"
)

// slot exclusively owns one entity. Activation is read from the entity,
// never stored here.
type slot struct {
	mu     sync.Mutex
	entity Entity
}

// table is a fixed-size, index-addressed set of slots.
type table struct {
	kind  tableKind
	slots []*slot
}

func newTable(kind tableKind, size int, factory EntityFactory) (*table, error) {
	t := &table{kind: kind, slots: make([]*slot, size)}
	for i := range t.slots {
		e := factory()
		if e == nil {
			return nil, fmt.Errorf("%w: entity factory returned nil for %s slot %d", ErrInvalidOptions, kind, i)
		}
		t.slots[i] = &slot{entity: e}
	}
	return t, nil
}

func (t *table) size() int {
	return len(t.slots)
}

func (t *table) inRange(lcid uint32) bool {
	return uint64(lcid) < uint64(len(t.slots))
}

// with runs fn on the slot entity under the slot lock, whatever its state.
func (t *table) with(lcid uint32, fn func(Entity)) error {
	if !t.inRange(lcid) {
		return ErrLCIDOutOfRange
	}
	s := t.slots[lcid]
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.entity)
	return nil
}

// withActive runs fn only when the slot is in range and active. The check
// and fn share one critical section so a reset cannot slip in between.
func (t *table) withActive(lcid uint32, fn func(Entity)) error {
	if !t.inRange(lcid) {
		return ErrLCIDOutOfRange
	}
	s := t.slots[lcid]
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.entity.IsActive() {
		return ErrBearerInactive
	}
	fn(s.entity)
	return nil
}

// activate initializes an inactive slot. An active slot is left untouched.
func (t *table) activate(lcid uint32, c Collaborators, cfg Config) error {
	if !t.inRange(lcid) {
		return ErrLCIDOutOfRange
	}
	s := t.slots[lcid]
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entity.IsActive() {
		return ErrBearerActive
	}
	s.entity.Init(c, lcid, cfg)
	return nil
}

func (t *table) isActive(lcid uint32) (bool, error) {
	if !t.inRange(lcid) {
		return false, ErrLCIDOutOfRange
	}
	s := t.slots[lcid]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entity.IsActive(), nil
}

// each visits slots in index order, locking one at a time.
func (t *table) each(fn func(lcid uint32, e Entity)) {
	for i, s := range t.slots {
		s.mu.Lock()
		fn(uint32(i), s.entity)
		s.mu.Unlock()
	}
}

// eachActive visits only slots active at the moment they are locked.
func (t *table) eachActive(fn func(lcid uint32, e Entity)) int {
	visited := 0
	t.each(func(lcid uint32, e Entity) {
		if e.IsActive() {
			fn(lcid, e)
			visited++
		}
	})
	return visited
}
