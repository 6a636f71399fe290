package services

import (
	"fmt"
	"sync"
)

// keyedMutex hands out one mutex per key so unrelated bookings and
// properties never contend with each other. Entries are kept for the
// process lifetime; the key space (active bookings/properties) is small.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	m := k.get(key)
	m.Lock()
	return m.Unlock
}

var (
	bookingLocks  = newKeyedMutex()
	propertyLocks = newKeyedMutex()
)

// LockBooking serializes lifecycle transitions for a single booking.
// Gateway calls must complete before this is taken; the lock only covers
// the local state transition.
func LockBooking(bookingID uint) func() {
	return bookingLocks.Lock(fmt.Sprintf("booking:%d", bookingID))
}

// LockProperty serializes availability checks and reservations for a
// single property. Different properties proceed fully in parallel.
func LockProperty(propertyID uint) func() {
	return propertyLocks.Lock(fmt.Sprintf("property:%d", propertyID))
}
