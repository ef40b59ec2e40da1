package leadstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"crescoflow/internal/leads/domain"
	"crescoflow/internal/outbound"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Snapshot is the full persisted pipeline state.
type Snapshot struct {
	Leads []domain.Lead
	Queue []outbound.QueueItem
}

// Repository loads and saves whole snapshots.
type Repository interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// PostgresRepository stores one row per lead and per queue item, each with
// its JSON payload. Save replaces the tables in one transaction.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	rows, err := r.pool.Query(ctx, `SELECT payload FROM leads ORDER BY position ASC`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load leads: %w", err)
	}
	leads, err := pgx.CollectRows(rows, scanPayload[domain.Lead])
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan leads: %w", err)
	}
	snap.Leads = leads

	rows, err = r.pool.Query(ctx, `SELECT payload FROM outbound_queue ORDER BY position ASC`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load queue: %w", err)
	}
	queue, err := pgx.CollectRows(rows, scanPayload[outbound.QueueItem])
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan queue: %w", err)
	}
	snap.Queue = queue

	return snap, nil
}

func scanPayload[T any](row pgx.CollectableRow) (T, error) {
	var (
		raw []byte
		out T
	)
	if err := row.Scan(&raw); err != nil {
		return out, err
	}
	err := json.Unmarshal(raw, &out)
	return out, err
}

func (r *PostgresRepository) Save(ctx context.Context, snap Snapshot) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM outbound_queue`)
	batch.Queue(`DELETE FROM leads`)

	for i, l := range snap.Leads {
		payload, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("encode lead %s: %w", l.ID, err)
		}
		batch.Queue(`INSERT INTO leads (id, position, company_name, pipeline_tag, payload, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())`,
			l.ID, i, l.CompanyName, string(l.PipelineTag), payload)
	}
	for i, it := range snap.Queue {
		payload, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("encode queue item %s: %w", it.ID, err)
		}
		batch.Queue(`INSERT INTO outbound_queue (id, position, lead_id, channel, scheduled_date, status, payload, updated_at)
			VALUES ($1, $2, $3, $4, $5::date, $6, $7, now())`,
			it.ID, i, it.LeadID, string(it.Channel), it.ScheduledDate, string(it.Status), payload)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return tx.Commit(ctx)
}

// MemoryRepository keeps the last saved snapshot in memory. It backs tests
// and runs without DATABASE_URL.
type MemoryRepository struct {
	mu    sync.Mutex
	snap  Snapshot
	saves int
	err   error
}

func NewMemoryRepository(seed Snapshot) *MemoryRepository {
	return &MemoryRepository{snap: copySnapshot(seed)}
}

func (r *MemoryRepository) Load(context.Context) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copySnapshot(r.snap), nil
}

func (r *MemoryRepository) Save(_ context.Context, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.snap = copySnapshot(snap)
	r.saves++
	return nil
}

// FailWith makes subsequent saves return err; nil restores normal saves.
func (r *MemoryRepository) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Saves returns how many snapshots were written.
func (r *MemoryRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func copySnapshot(s Snapshot) Snapshot {
	out := Snapshot{
		Leads: make([]domain.Lead, len(s.Leads)),
		Queue: make([]outbound.QueueItem, len(s.Queue)),
	}
	for i, l := range s.Leads {
		out.Leads[i] = l.Clone()
	}
	for i, it := range s.Queue {
		out.Queue[i] = cloneItem(it)
	}
	return out
}

func cloneItem(it outbound.QueueItem) outbound.QueueItem {
	if it.SentAt != nil {
		t := *it.SentAt
		it.SentAt = &t
	}
	return it
}
