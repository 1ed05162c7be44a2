package limiter

import (
	"context"
	"time"

	"github.com/uledev/taskchain/internal/repository/postgres"
)

// PG is a PostgreSQL-backed fixed-window limiter.
type PG struct {
	db     *postgres.DB
	window time.Duration
	max    int
}

// NewPG constructs a limiter allowing max pushes per window per chain.
func NewPG(db *postgres.DB, window time.Duration, max int) *PG {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 60
	}
	return &PG{db: db, window: window, max: max}
}

// Allow records the attempt and checks it against the current window.
func (l *PG) Allow(ctx context.Context, keyHash []byte) (bool, time.Duration, error) {
	const q = `
INSERT INTO push_limits (key_hash, window_start, count)
VALUES ($1, now(), 1)
ON CONFLICT (key_hash) DO UPDATE SET
	count = CASE WHEN push_limits.window_start < now() - make_interval(secs => $2)
		THEN 1 ELSE push_limits.count + 1 END,
	window_start = CASE WHEN push_limits.window_start < now() - make_interval(secs => $2)
		THEN now() ELSE push_limits.window_start END
RETURNING count, window_start`

	var (
		count       int
		windowStart time.Time
	)
	row := l.db.Pool.QueryRow(ctx, q, keyHash, l.window.Seconds())
	if err := row.Scan(&count, &windowStart); err != nil {
		return false, 0, err
	}
	if count <= l.max {
		return true, 0, nil
	}
	retry := time.Until(windowStart.Add(l.window))
	if retry < 0 {
		retry = 0
	}
	return false, retry, nil
}
