package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Outbox delivery states.
const (
	OutboxPending   = "pending"
	OutboxDelivered = "delivered"
	OutboxFailed    = "failed"
)

// OutboxEntry is a result record awaiting delivery.
type OutboxEntry struct {
	ID        string
	Record    *Record
	State     string
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OutboxStore persists result records until a worker delivers them.
type OutboxStore interface {
	// Enqueue stores a record in pending state.
	Enqueue(ctx context.Context, rec *Record) error

	// PendingBatch returns up to limit pending entries, oldest first.
	PendingBatch(ctx context.Context, limit int) ([]*OutboxEntry, error)

	// MarkDelivered transitions an entry out of pending.
	MarkDelivered(ctx context.Context, id string) error

	// MarkFailed records a delivery failure. Entries that exhaust their
	// attempts move to failed state and leave the pending set.
	MarkFailed(ctx context.Context, id string, deliveryErr error, final bool) error
}

// MemoryOutboxStore keeps pending records in memory. Delivery guarantees
// do not survive a restart; use the Postgres store for that.
type MemoryOutboxStore struct {
	mu      sync.Mutex
	entries map[string]*OutboxEntry
	order   []string
}

func NewMemoryOutboxStore() *MemoryOutboxStore {
	return &MemoryOutboxStore{entries: make(map[string]*OutboxEntry)}
}

func (s *MemoryOutboxStore) Enqueue(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.entries[rec.ID] = &OutboxEntry{
		ID:        rec.ID,
		Record:    rec,
		State:     OutboxPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *MemoryOutboxStore) PendingBatch(_ context.Context, limit int) ([]*OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make([]*OutboxEntry, 0, limit)
	for _, id := range s.order {
		entry, ok := s.entries[id]
		if !ok || entry.State != OutboxPending {
			continue
		}
		copied := *entry
		batch = append(batch, &copied)
		if len(batch) == limit {
			break
		}
	}
	return batch, nil
}

func (s *MemoryOutboxStore) MarkDelivered(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("outbox entry %s not found", id)
	}
	entry.State = OutboxDelivered
	entry.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryOutboxStore) MarkFailed(_ context.Context, id string, deliveryErr error, final bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("outbox entry %s not found", id)
	}
	entry.Attempts++
	entry.LastError = deliveryErr.Error()
	entry.UpdatedAt = time.Now().UTC()
	if final {
		entry.State = OutboxFailed
	}
	return nil
}

// PostgresOutboxStore persists pending records in the payment_outbox
// table so delivery survives restarts.
type PostgresOutboxStore struct {
	pool *pgxpool.Pool
}

func NewPostgresOutboxStore(pool *pgxpool.Pool) *PostgresOutboxStore {
	return &PostgresOutboxStore{pool: pool}
}

func (s *PostgresOutboxStore) Enqueue(ctx context.Context, rec *Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	query := `
		INSERT INTO payment_outbox (id, merchant_ref, payload, state, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
	`
	if _, err := s.pool.Exec(ctx, query, rec.ID, rec.MerchantRef, payload, OutboxPending); err != nil {
		return fmt.Errorf("enqueue outbox entry: %w", err)
	}
	return nil
}

func (s *PostgresOutboxStore) PendingBatch(ctx context.Context, limit int) ([]*OutboxEntry, error) {
	query := `
		SELECT id, payload, attempts, COALESCE(last_error, ''), created_at, updated_at
		FROM payment_outbox
		WHERE state = $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, OutboxPending, limit)
	if err != nil {
		return nil, fmt.Errorf("load pending outbox entries: %w", err)
	}
	defer rows.Close()

	var batch []*OutboxEntry
	for rows.Next() {
		entry := &OutboxEntry{State: OutboxPending}
		var payload []byte
		if err := rows.Scan(&entry.ID, &payload, &entry.Attempts, &entry.LastError, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		rec := &Record{}
		if err := json.Unmarshal(payload, rec); err != nil {
			return nil, fmt.Errorf("decode outbox payload %s: %w", entry.ID, err)
		}
		entry.Record = rec
		batch = append(batch, entry)
	}
	return batch, rows.Err()
}

func (s *PostgresOutboxStore) MarkDelivered(ctx context.Context, id string) error {
	query := `UPDATE payment_outbox SET state = $1, updated_at = NOW() WHERE id = $2`
	if _, err := s.pool.Exec(ctx, query, OutboxDelivered, id); err != nil {
		return fmt.Errorf("mark outbox entry delivered: %w", err)
	}
	return nil
}

func (s *PostgresOutboxStore) MarkFailed(ctx context.Context, id string, deliveryErr error, final bool) error {
	state := OutboxPending
	if final {
		state = OutboxFailed
	}
	query := `
		UPDATE payment_outbox
		SET state = $1, attempts = attempts + 1, last_error = $2, updated_at = NOW()
		WHERE id = $3
	`
	if _, err := s.pool.Exec(ctx, query, state, deliveryErr.Error(), id); err != nil {
		return fmt.Errorf("mark outbox entry failed: %w", err)
	}
	return nil
}
