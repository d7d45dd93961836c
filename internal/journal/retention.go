package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/dltrophy/simulator/internal/monitoring"
)

// Retention bounds the messages table. Saved states are never pruned.
type Retention struct {
	// MaxAge drops messages last received longer ago than this; 0 keeps them.
	MaxAge time.Duration
	// MaxMessages keeps at most this many rows, newest first; 0 is unlimited.
	MaxMessages int
}

const (
	DefaultMaxAge      = 24 * time.Hour
	DefaultMaxMessages = 500000
)

// DefaultRetention is what a freshly opened journal enforces.
func DefaultRetention() Retention {
	return Retention{MaxAge: DefaultMaxAge, MaxMessages: DefaultMaxMessages}
}

// SetRetention replaces the retention bounds used by Prune.
func (j *Journal) SetRetention(r Retention) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.retention = r
}

// Prune deletes the messages that fall outside the retention bounds and
// returns how many rows went.
func (j *Journal) Prune(ctx context.Context) (int64, error) {
	j.mu.Lock()
	r := j.retention
	j.mu.Unlock()

	var total int64
	if r.MaxAge > 0 {
		cutoff := j.clock.Now().Add(-r.MaxAge).UnixNano()
		res, err := j.db.ExecContext(ctx,
			`DELETE FROM messages WHERE COALESCE(last_received_at, received_at) < ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to prune old messages: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if r.MaxMessages > 0 {
		res, err := j.db.ExecContext(ctx, `
			DELETE FROM messages WHERE rowid <= (
				SELECT rowid FROM messages ORDER BY rowid DESC LIMIT 1 OFFSET ?
			)`, r.MaxMessages)
		if err != nil {
			return total, fmt.Errorf("failed to prune excess messages: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// RunRetention prunes every interval until ctx is done.
func (j *Journal) RunRetention(ctx context.Context, interval time.Duration) {
	ticker := j.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			n, err := j.Prune(ctx)
			if err != nil {
				monitoring.Logf("[Journal] %v", err)
				continue
			}
			if n > 0 {
				monitoring.Debugf("[Journal] pruned %d messages", n)
			}
		}
	}
}
