package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// leaseTTL bounds how long a held per-project lease survives a worker
// crash before another worker can claim the project.
const leaseTTL = 2 * time.Minute

// leaseRefreshInterval refreshes a held lease well inside its TTL so a
// long-running job never loses its lease mid-analysis.
const leaseRefreshInterval = 30 * time.Second

// Lease is a Redis-backed per-project mutual-exclusion lock (`SET NX PX`).
// Two workers racing Dequeue on the same project never run the Builder
// concurrently because only one of them can acquire the lease.
type Lease struct {
	client *redis.Client
}

// NewLease builds a Lease from the same Redis endpoint the LLM rate
// limiter uses.
func NewLease(addr, password string) *Lease {
	return &Lease{client: redis.NewClient(&redis.Options{Addr: addr, Password: password})}
}

// Held represents one successfully acquired lease; Release must be called
// (typically via defer) once the job leaves the project alone.
type Held struct {
	lease         *Lease
	key           string
	token         string
	cancelRefresh context.CancelFunc
}

func leaseKey(projectID string) string {
	return fmt.Sprintf("lease:%s", projectID)
}

// Acquire attempts to take the per-project lease, returning ok=false
// (not an error) when another worker already holds it — the caller
// should leave the job on the queue (Release, not Ack) and try a
// different message.
func (l *Lease) Acquire(ctx context.Context, projectID string) (*Held, bool, error) {
	token := uuid.NewString()
	key := leaseKey(projectID)

	ok, err := l.client.SetNX(ctx, key, token, leaseTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	refreshCtx, cancel := context.WithCancel(context.Background())
	h := &Held{lease: l, key: key, token: token, cancelRefresh: cancel}
	go h.refreshLoop(refreshCtx)
	return h, true, nil
}

// refreshLoop extends the lease's TTL periodically so a job that runs
// longer than leaseTTL doesn't lose exclusivity mid-build.
func (h *Held) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(leaseRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.lease.client.Expire(ctx, h.key, leaseTTL)
		}
	}
}

// releaseScript only deletes the key if it still holds our token,
// avoiding releasing a lease another worker has since acquired after
// ours expired.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// Release stops the refresh loop and drops the lease, tolerating the
// case where it already expired and was reacquired by someone else.
func (h *Held) Release(ctx context.Context) error {
	h.cancelRefresh()
	err := h.lease.client.Eval(ctx, releaseScript, []string{h.key}, h.token).Err()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", h.key, err)
	}
	return nil
}

func (l *Lease) Close() error {
	return l.client.Close()
}
