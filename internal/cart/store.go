// Package cart holds the client-side cache of the server-owned cart.
// The server is authoritative: every mutation is confirmed by the server
// before it is applied locally, so the cache can never silently diverge
// from the server's ledger for a money-bearing resource.
package cart

import (
	"context"
	"fmt"
	"sync"

	"cafe-ordering/internal/logger"
	"cafe-ordering/internal/models"
)

// Gateway is the slice of the backend the store depends on.
type Gateway interface {
	FetchCart(ctx context.Context, token string) ([]models.CartEntry, error)
	UpdateQuantity(ctx context.Context, token, entryID string, quantity int) error
	RemoveEntry(ctx context.Context, token, entryID string) error
	ClearCart(ctx context.Context, token string) error
}

// Store caches the current user's cart entries.
//
// Rapid repeated mutations of the same entry are serialized by request
// sequence: only the most recently issued request's result may mutate the
// cache, regardless of response arrival order (last-request-wins).
type Store struct {
	gateway Gateway
	logger  *logger.Logger

	mu      sync.Mutex
	entries map[string]models.CartEntry
	seq     map[string]uint64
}

// NewStore creates an empty cart store backed by the given gateway.
func NewStore(gateway Gateway, log *logger.Logger) *Store {
	return &Store{
		gateway: gateway,
		logger:  log,
		entries: make(map[string]models.CartEntry),
		seq:     make(map[string]uint64),
	}
}

// Load replaces the local state wholesale with the server's entry set.
// On failure the last-known-good state is retained and a FetchError is
// returned so the caller can surface a retry affordance.
func (s *Store) Load(ctx context.Context, token string) error {
	entries, err := s.gateway.FetchCart(ctx, token)
	if err != nil {
		return &FetchError{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]models.CartEntry, len(entries))
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return nil
}

// SetQuantity updates one entry's quantity, server first. Quantities
// below 1 are rejected as a no-op. The local change is applied only after
// the server acknowledges, and only if no newer request for the same
// entry was issued meanwhile.
func (s *Store) SetQuantity(ctx context.Context, token, entryID string, quantity int) error {
	if quantity < 1 {
		return nil
	}

	s.mu.Lock()
	if _, ok := s.entries[entryID]; !ok {
		s.mu.Unlock()
		return &MutationError{Op: "update", EntryID: entryID, Err: fmt.Errorf("no such entry")}
	}
	s.seq[entryID]++
	issued := s.seq[entryID]
	s.mu.Unlock()

	err := s.gateway.UpdateQuantity(ctx, token, entryID, quantity)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq[entryID] != issued {
		// A newer request for this entry was issued while ours was in
		// flight; its result owns the entry now.
		s.logger.Debug("cart_update_superseded", "Discarding superseded update result", "", map[string]interface{}{
			"entry_id": entryID,
			"quantity": quantity,
		})
		return nil
	}
	if err != nil {
		return &MutationError{Op: "update", EntryID: entryID, Err: err}
	}

	entry, ok := s.entries[entryID]
	if !ok {
		// Entry removed while the update was in flight.
		return nil
	}
	entry.Quantity = quantity
	s.entries[entryID] = entry
	return nil
}

// Remove deletes one entry, server first, then locally on acknowledgment.
func (s *Store) Remove(ctx context.Context, token, entryID string) error {
	s.mu.Lock()
	if _, ok := s.entries[entryID]; !ok {
		s.mu.Unlock()
		return &MutationError{Op: "remove", EntryID: entryID, Err: fmt.Errorf("no such entry")}
	}
	s.seq[entryID]++
	issued := s.seq[entryID]
	s.mu.Unlock()

	err := s.gateway.RemoveEntry(ctx, token, entryID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq[entryID] != issued {
		return nil
	}
	if err != nil {
		return &MutationError{Op: "remove", EntryID: entryID, Err: err}
	}

	delete(s.entries, entryID)
	delete(s.seq, entryID)
	return nil
}

// Clear removes all entries, server first. Used after an order has been
// successfully placed.
func (s *Store) Clear(ctx context.Context, token string) error {
	err := s.gateway.ClearCart(ctx, token)
	if err != nil {
		return &MutationError{Op: "clear", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]models.CartEntry)
	s.seq = make(map[string]uint64)
	return nil
}

// Entries returns a copy of the current entries.
func (s *Store) Entries() []models.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]models.CartEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	return entries
}

// Total recomputes the cart total from current entries on every call.
func (s *Store) Total() models.Cents {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total models.Cents
	for _, e := range s.entries {
		total += e.Subtotal()
	}
	return total
}

// Len returns the number of entries in the cart.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
