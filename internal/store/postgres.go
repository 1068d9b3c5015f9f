// internal/store/postgres.go
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the production Store: documents live in a single
// documents(collection, id, doc jsonb) table. Batches commit inside one
// transaction, which gives the same all-or-nothing guarantee as the store
// contract requires. Field merges are computed in Go (applyFields) so the
// update semantics match the in-memory store exactly.
type Postgres struct {
	Pool *pgxpool.Pool

	// OnEvent, if set, is invoked after every committed mutation.
	OnEvent func(Event)
}

// ConnectPostgres builds a pgx pool from the POSTGRES_USER,
// POSTGRES_PASSWORD, PG_HOST, PG_PORT and PG_DATABASE environment
// variables and pings it.
func ConnectPostgres(ctx context.Context) (*Postgres, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("PG_HOST"),
		os.Getenv("PG_PORT"),
		os.Getenv("PG_DATABASE"),
	)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

// Schema is the DDL for the documents table. Applied by cmd/initdb.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	doc        JSONB NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection);
`

func (p *Postgres) emit(events []Event) {
	if p.OnEvent == nil {
		return
	}
	for _, ev := range events {
		p.OnEvent(ev)
	}
}

// Get fetches one document, or ErrNotFound.
func (p *Postgres) Get(ctx context.Context, ref Ref) (Snapshot, error) {
	var body []byte
	q := `SELECT doc FROM documents WHERE collection=$1 AND id=$2`
	err := p.Pool.QueryRow(ctx, q, ref.Collection, ref.ID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get %s: %w", ref.Path(), err)
	}
	return Snapshot{Ref: ref, Data: body}, nil
}

// Set creates or replaces one document.
func (p *Postgres) Set(ctx context.Context, ref Ref, doc any) error {
	body, err := encodeDoc(doc)
	if err != nil {
		return err
	}

	var events []Event
	err = pgx.BeginTxFunc(ctx, p.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ev, err := txSet(ctx, tx, ref, body)
		if err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", ref.Path(), err)
	}
	p.emit(events)
	return nil
}

// Update merges fields into an existing document, or returns ErrNotFound.
func (p *Postgres) Update(ctx context.Context, ref Ref, fields map[string]any) error {
	var events []Event
	err := pgx.BeginTxFunc(ctx, p.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ev, err := txUpdate(ctx, tx, ref, fields)
		if err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update %s: %w", ref.Path(), err)
	}
	p.emit(events)
	return nil
}

// Delete removes one document. Missing documents are a no-op.
func (p *Postgres) Delete(ctx context.Context, ref Ref) error {
	var events []Event
	err := pgx.BeginTxFunc(ctx, p.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ev, deleted, err := txDelete(ctx, tx, ref)
		if err != nil {
			return err
		}
		if deleted {
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref.Path(), err)
	}
	p.emit(events)
	return nil
}

// Query returns every document in the collection whose top-level field
// equals value, ordered by id.
func (p *Postgres) Query(ctx context.Context, collection, field, value string) ([]Snapshot, error) {
	q := `SELECT id, doc FROM documents WHERE collection=$1 AND doc->>$2 = $3 ORDER BY id`
	rows, err := p.Pool.Query(ctx, q, collection, field, value)
	if err != nil {
		return nil, fmt.Errorf("query %s where %s=%s: %w", collection, field, value, err)
	}
	defer rows.Close()
	return scanSnaps(rows, collection)
}

// List returns every document in the collection, ordered by id.
func (p *Postgres) List(ctx context.Context, collection string) ([]Snapshot, error) {
	q := `SELECT id, doc FROM documents WHERE collection=$1 ORDER BY id`
	rows, err := p.Pool.Query(ctx, q, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()
	return scanSnaps(rows, collection)
}

// Batch starts an empty write batch.
func (p *Postgres) Batch() WriteBatch {
	return &pgBatch{store: p}
}

type pgBatch struct {
	store *Postgres
	ops   []batchOp
}

func (b *pgBatch) Set(ref Ref, doc any) {
	body, err := encodeDoc(doc)
	b.ops = append(b.ops, batchOp{kind: EventCreated, ref: ref, doc: body, err: err})
}

func (b *pgBatch) Update(ref Ref, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: EventUpdated, ref: ref, fields: fields})
}

func (b *pgBatch) Delete(ref Ref) {
	b.ops = append(b.ops, batchOp{kind: EventDeleted, ref: ref})
}

func (b *pgBatch) Len() int {
	return len(b.ops)
}

// Commit runs every queued operation inside a single transaction.
func (b *pgBatch) Commit(ctx context.Context) error {
	if len(b.ops) > MaxBatchOps {
		return fmt.Errorf("batch holds %d operations, limit is %d", len(b.ops), MaxBatchOps)
	}

	var events []Event
	err := pgx.BeginTxFunc(ctx, b.store.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, op := range b.ops {
			if op.err != nil {
				return op.err
			}
			switch op.kind {
			case EventCreated:
				ev, err := txSet(ctx, tx, op.ref, op.doc)
				if err != nil {
					return err
				}
				events = append(events, ev)
			case EventUpdated:
				ev, err := txUpdate(ctx, tx, op.ref, op.fields)
				if err != nil {
					return err
				}
				events = append(events, ev)
			case EventDeleted:
				ev, deleted, err := txDelete(ctx, tx, op.ref)
				if err != nil {
					return err
				}
				if deleted {
					events = append(events, ev)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch commit: %w", err)
	}
	b.store.emit(events)
	return nil
}

func txSet(ctx context.Context, tx pgx.Tx, ref Ref, body []byte) (Event, error) {
	before, err := txLoad(ctx, tx, ref)
	if err != nil {
		return Event{}, err
	}

	q := `
	INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
	ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc
	`
	if _, err := tx.Exec(ctx, q, ref.Collection, ref.ID, body); err != nil {
		return Event{}, err
	}

	kind := EventCreated
	if before != nil {
		kind = EventUpdated
	}
	return Event{Kind: kind, Ref: ref, Before: before, After: body}, nil
}

func txUpdate(ctx context.Context, tx pgx.Tx, ref Ref, fields map[string]any) (Event, error) {
	before, err := txLoad(ctx, tx, ref)
	if err != nil {
		return Event{}, err
	}
	if before == nil {
		return Event{}, fmt.Errorf("update %s: %w", ref.Path(), ErrNotFound)
	}

	after, err := applyFields(before, fields)
	if err != nil {
		return Event{}, err
	}

	q := `UPDATE documents SET doc=$3 WHERE collection=$1 AND id=$2`
	if _, err := tx.Exec(ctx, q, ref.Collection, ref.ID, after); err != nil {
		return Event{}, err
	}
	return Event{Kind: EventUpdated, Ref: ref, Before: before, After: after}, nil
}

func txDelete(ctx context.Context, tx pgx.Tx, ref Ref) (Event, bool, error) {
	before, err := txLoad(ctx, tx, ref)
	if err != nil {
		return Event{}, false, err
	}
	if before == nil {
		return Event{}, false, nil
	}

	q := `DELETE FROM documents WHERE collection=$1 AND id=$2`
	if _, err := tx.Exec(ctx, q, ref.Collection, ref.ID); err != nil {
		return Event{}, false, err
	}
	return Event{Kind: EventDeleted, Ref: ref, Before: before}, true, nil
}

func txLoad(ctx context.Context, tx pgx.Tx, ref Ref) ([]byte, error) {
	var body []byte
	q := `SELECT doc FROM documents WHERE collection=$1 AND id=$2 FOR UPDATE`
	err := tx.QueryRow(ctx, q, ref.Collection, ref.ID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func scanSnaps(rows pgx.Rows, collection string) ([]Snapshot, error) {
	var snaps []Snapshot
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		snaps = append(snaps, Snapshot{
			Ref:  Ref{Collection: collection, ID: id},
			Data: body,
		})
	}
	return snaps, rows.Err()
}
