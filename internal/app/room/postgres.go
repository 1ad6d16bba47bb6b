package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bitcollab/internal/pkg/identity"
	"bitcollab/internal/pkg/randx"
)

// PostgresStore persists rooms in a PostgreSQL table, membership lists as
// jsonb. Mutations read the room row under FOR UPDATE inside a transaction,
// apply the change in Go, and write back — one writer per room at a time.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an initialized connection pool (see NewPool).
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const roomColumns = `code, name, creator, participants, pending_requests, max_participants, active, created_at, last_activity`

// Create implements Store. A concurrent insert of the same candidate code
// surfaces as a unique violation and counts as a failed attempt.
func (s *PostgresStore) Create(ctx context.Context, name, creator string, maxParticipants int) (*Room, error) {
	if !identity.IsValid(creator) {
		return nil, ErrCreatorRequired
	}

	if name == "" {
		name = DefaultRoomName
	}

	now := time.Now().UTC()

	rm := Room{
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

	participants, err := json.Marshal(rm.Participants)
	if err != nil {
		return nil, fmt.Errorf("failed to encode participants: %w", err)
	}

	for i := 0; i < CodeAttempts; i++ {
		code, err := randx.RoomCode()
		if err != nil {
			return nil, err
		}

		// Codes must be unique among all rooms ever created, active or not,
		// so the existence check does not filter on active.
		var exists bool
		err = s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)`, code,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check room code: %w", err)
		}
		if exists {
			continue
		}

		_, err = s.pool.Exec(ctx,
			`INSERT INTO rooms (code, name, creator, participants, pending_requests, max_participants, active, created_at, last_activity)
			 VALUES ($1, $2, $3, $4, '[]'::jsonb, $5, TRUE, $6, $6)`,
			code, rm.Name, rm.Creator, participants, rm.MaxParticipants, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, fmt.Errorf("failed to insert room: %w", err)
		}

		rm.Code = code
		return rm.clone(), nil
	}

	return nil, ErrCodeExhausted
}

// GetActive implements Store.
func (s *PostgresStore) GetActive(ctx context.Context, code string) (*Room, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE code = $1 AND active = TRUE`,
		randx.NormalizeRoomCode(code),
	)
	return scanRoom(row)
}

// ListActive implements Store.
func (s *PostgresStore) ListActive(ctx context.Context, limit int) ([]*Room, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE active = TRUE ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, rm)
	}
	return rooms, rows.Err()
}

// AddParticipant implements Store.
func (s *PostgresStore) AddParticipant(ctx context.Context, code, id, displayName string) (*Room, bool, error) {
	var already bool

	rm, err := s.mutate(ctx, code, func(r *Room) error {
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
func (s *PostgresStore) RemoveParticipant(ctx context.Context, code, id string) (*Room, *Participant, error) {
	var removed *Participant

	rm, err := s.mutate(ctx, code, func(r *Room) error {
		removed = r.removeParticipant(id)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return rm, removed, nil
}

// EnqueuePending implements Store.
func (s *PostgresStore) EnqueuePending(ctx context.Context, code, id, displayName string) (*Room, error) {
	return s.mutate(ctx, code, func(r *Room) error {
		r.enqueuePending(id, displayName, time.Now().UTC())
		return nil
	})
}

// DequeuePending implements Store.
func (s *PostgresStore) DequeuePending(ctx context.Context, code, id string) (*Room, *PendingRequest, error) {
	var removed *PendingRequest

	rm, err := s.mutate(ctx, code, func(r *Room) error {
		removed = r.dequeuePending(id)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return rm, removed, nil
}

// Approve implements Store. The dequeue and the append happen in the same
// transaction, so exactly one entry moves and no duplicate can appear.
func (s *PostgresStore) Approve(ctx context.Context, code, id string) (*Room, *Participant, error) {
	var approved *Participant

	rm, err := s.mutate(ctx, code, func(r *Room) error {
		if !r.HasPending(id) {
			return nil
		}
		if r.IsFull() && !r.HasParticipant(id) {
			return ErrRoomFull
		}
		pending := r.dequeuePending(id)
		r.addParticipant(pending.Identity, pending.DisplayName, time.Now().UTC())
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
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// mutate runs fn against the room inside a transaction holding the row lock.
// Missing or inactive rooms fail with ErrNotFound before fn runs. Every
// successful mutation bumps lastActivity.
func (s *PostgresStore) mutate(ctx context.Context, code string, fn func(*Room) error) (*Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE code = $1 AND active = TRUE FOR UPDATE`,
		randx.NormalizeRoomCode(code),
	)
	rm, err := scanRoom(row)
	if err != nil {
		return nil, err
	}

	if err := fn(rm); err != nil {
		return nil, err
	}

	rm.LastActivity = time.Now().UTC()

	participants, err := json.Marshal(rm.Participants)
	if err != nil {
		return nil, fmt.Errorf("failed to encode participants: %w", err)
	}
	pending, err := json.Marshal(rm.PendingRequests)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pending requests: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE rooms
		 SET participants = $2, pending_requests = $3, active = $4, last_activity = $5
		 WHERE code = $1`,
		rm.Code, participants, pending, rm.Active, rm.LastActivity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit room update: %w", err)
	}

	return rm, nil
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRoom reads one room row, decoding the jsonb membership columns.
func scanRoom(row rowScanner) (*Room, error) {
	var rm Room
	var participants, pending []byte

	err := row.Scan(
		&rm.Code, &rm.Name, &rm.Creator, &participants, &pending,
		&rm.MaxParticipants, &rm.Active, &rm.CreatedAt, &rm.LastActivity,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}

	if err := json.Unmarshal(participants, &rm.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants: %w", err)
	}
	if err := json.Unmarshal(pending, &rm.PendingRequests); err != nil {
		return nil, fmt.Errorf("failed to decode pending requests: %w", err)
	}

	return &rm, nil
}

// isUniqueViolation checks for a PostgreSQL unique constraint violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
