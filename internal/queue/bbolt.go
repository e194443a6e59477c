package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var messagesBucket = []byte("queue_messages")

// boltRecord is the on-disk encoding of a Message plus its scheduling
// state; bbolt has no query language, so Dequeue linearly scans the bucket
// in key order (global sequence), which preserves each project's relative
// enqueue order even interleaved with other projects' messages.
type boltRecord struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Payload       []byte    `json:"payload"`
	DeliveryCount int       `json:"delivery_count"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	VisibleAt     time.Time `json:"visible_at"`
	LockedUntil   time.Time `json:"locked_until"`
}

// BoltQueue is the embedded single-process Queue backend for the "local"
// deployment mode (no Postgres available). A
// mutex serializes Dequeue's scan-then-claim sequence since bbolt
// transactions alone don't prevent two goroutines picking the same record
// between its own Begin calls.
type BoltQueue struct {
	db     *bolt.DB
	mu     sync.Mutex
	logger *slog.Logger
}

func NewBoltQueue(path string) (*BoltQueue, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt queue: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(messagesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bbolt queue bucket: %w", err)
	}
	return &BoltQueue{db: db, logger: slog.Default().With("component", "queue-bbolt")}, nil
}

func (q *BoltQueue) Enqueue(ctx context.Context, projectID string, payload []byte) (string, error) {
	id := uuid.NewString()
	now := time.Now()
	rec := boltRecord{ID: id, ProjectID: projectID, Payload: payload, EnqueuedAt: now, VisibleAt: now}

	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(messagesBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
	if err != nil {
		return "", fmt.Errorf("enqueue message: %w", err)
	}
	return id, nil
}

func (q *BoltQueue) Dequeue(ctx context.Context, visibilityTimeout time.Duration) (*Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var claimed *Message
	now := time.Now()

	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(messagesBucket)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			if rec.VisibleAt.After(now) {
				continue
			}
			if !rec.LockedUntil.IsZero() && rec.LockedUntil.After(now) {
				continue
			}

			rec.DeliveryCount++
			rec.LockedUntil = now.Add(visibilityTimeout)
			rec.VisibleAt = rec.LockedUntil
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put(k, data); err != nil {
				return err
			}

			claimed = &Message{
				ID: rec.ID, ProjectID: rec.ProjectID, Payload: rec.Payload,
				DeliveryCount: rec.DeliveryCount, EnqueuedAt: rec.EnqueuedAt,
			}
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dequeue message: %w", err)
	}
	return claimed, nil
}

func (q *BoltQueue) Ack(ctx context.Context, id string) error {
	return q.mutateByID(id, func(tx *bolt.Tx, k []byte) error {
		return tx.Bucket(messagesBucket).Delete(k)
	})
}

func (q *BoltQueue) Release(ctx context.Context, id string) error {
	return q.mutateByID(id, func(tx *bolt.Tx, k []byte) error {
		b := tx.Bucket(messagesBucket)
		var rec boltRecord
		if err := json.Unmarshal(b.Get(k), &rec); err != nil {
			return err
		}
		rec.VisibleAt = time.Time{}
		rec.LockedUntil = time.Time{}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(k, data)
	})
}

func (q *BoltQueue) mutateByID(id string, fn func(tx *bolt.Tx, key []byte) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(messagesBucket)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			if rec.ID == id {
				return fn(tx, k)
			}
		}
		return fmt.Errorf("message %s not found", id)
	})
}

func (q *BoltQueue) Close() error {
	return q.db.Close()
}

func seqKey(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}
