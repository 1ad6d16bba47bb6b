package room

import (
	"context"
	"sort"
	"sync"
	"time"

	"bitcollab/internal/pkg/identity"
	"bitcollab/internal/pkg/randx"
)

// MemoryStore keeps rooms in process memory. It backs development runs
// without a database and the test suite. Deactivated rooms are retained so
// their codes stay reserved, matching the durable store's soft-delete.
type MemoryStore struct {
	// mu protects the rooms map itself; each room carries its own lock.
	mu    sync.RWMutex
	rooms map[string]*memRoom
}

// memRoom serializes all mutations of one room behind a single mutex,
// the in-memory equivalent of the postgres row lock.
type memRoom struct {
	mu sync.Mutex
	r  Room
}

// NewMemoryStore returns an empty in-memory room store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*memRoom)}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, name, creator string, maxParticipants int) (*Room, error) {
	if !identity.IsValid(creator) {
		return nil, ErrCreatorRequired
	}

	if name == "" {
		name = DefaultRoomName
	}

	now := time.Now().UTC()

	for i := 0; i < CodeAttempts; i++ {
		code, err := randx.RoomCode()
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if _, exists := s.rooms[code]; exists {
			s.mu.Unlock()
			continue
		}

		rm := Room{
			Code:            code,
			Name:            name,
			Creator:         identity.Normalize(creator),
			MaxParticipants: clampCapacity(maxParticipants),
			Active:          true,
			CreatedAt:       now,
			LastActivity:    now,
			Participants: []Participant{{
				Identity:    identity.Normalize(creator),
				DisplayName: creator,
				JoinedAt:    now,
			}},
			PendingRequests: []PendingRequest{},
		}

		s.rooms[code] = &memRoom{r: rm}
		s.mu.Unlock()

		return rm.clone(), nil
	}

	return nil, ErrCodeExhausted
}

// GetActive implements Store.
func (s *MemoryStore) GetActive(ctx context.Context, code string) (*Room, error) {
	entry, ok := s.lookup(code)
	if !ok {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.r.Active {
		return nil, ErrNotFound
	}
	return entry.r.clone(), nil
}

// ListActive implements Store.
func (s *MemoryStore) ListActive(ctx context.Context, limit int) ([]*Room, error) {
	s.mu.RLock()
	entries := make([]*memRoom, 0, len(s.rooms))
	for _, e := range s.rooms {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	rooms := make([]*Room, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.r.Active {
			rooms = append(rooms, e.r.clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})

	if limit > 0 && len(rooms) > limit {
		rooms = rooms[:limit]
	}
	return rooms, nil
}

// AddParticipant implements Store.
func (s *MemoryStore) AddParticipant(ctx context.Context, code, id, displayName string) (*Room, bool, error) {
	var already bool

	rm, err := s.mutate(code, func(r *Room) error {
		if r.HasParticipant(id) {
			already = true
			return nil
		}
		if r.IsFull() {
			return ErrRoomFull
		}
		r.addParticipant(id, displayName, time.Now().UTC())
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return rm, already, nil
}

// RemoveParticipant implements Store.
func (s *MemoryStore) RemoveParticipant(ctx context.Context, code, id string) (*Room, *Participant, error) {
	var removed *Participant

	rm, err := s.mutate(code, func(r *Room) error {
		removed = r.removeParticipant(id)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return rm, removed, nil
}

// EnqueuePending implements Store.
func (s *MemoryStore) EnqueuePending(ctx context.Context, code, id, displayName string) (*Room, error) {
	return s.mutate(code, func(r *Room) error {
		r.enqueuePending(id, displayName, time.Now().UTC())
		return nil
	})
}

// DequeuePending implements Store.
func (s *MemoryStore) DequeuePending(ctx context.Context, code, id string) (*Room, *PendingRequest, error) {
	var removed *PendingRequest

	rm, err := s.mutate(code, func(r *Room) error {
		removed = r.dequeuePending(id)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return rm, removed, nil
}

// Approve implements Store.
func (s *MemoryStore) Approve(ctx context.Context, code, id string) (*Room, *Participant, error) {
	var approved *Participant

	rm, err := s.mutate(code, func(r *Room) error {
		if !r.HasPending(id) {
			return nil
		}
		if r.IsFull() && !r.HasParticipant(id) {
			return ErrRoomFull
		}
		pending := r.dequeuePending(id)
		now := time.Now().UTC()
		r.addParticipant(pending.Identity, pending.DisplayName, now)
		for i := range r.Participants {
			if identity.Equal(r.Participants[i].Identity, id) {
				cp := r.Participants[i]
				approved = &cp
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return rm, approved, nil
}

// Close implements Store.
func (s *MemoryStore) Close() {}

// lookup finds the room entry by normalized code.
func (s *MemoryStore) lookup(code string) (*memRoom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rooms[randx.NormalizeRoomCode(code)]
	return entry, ok
}

// mutate runs fn against the live room record under its lock. Missing or
// inactive rooms fail with ErrNotFound before fn runs. Every successful
// mutation bumps lastActivity. The returned Room is a snapshot.
func (s *MemoryStore) mutate(code string, fn func(*Room) error) (*Room, error) {
	entry, ok := s.lookup(code)
	if !ok {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.r.Active {
		return nil, ErrNotFound
	}

	if err := fn(&entry.r); err != nil {
		return nil, err
	}

	entry.r.LastActivity = time.Now().UTC()
	return entry.r.clone(), nil
}
