package fetch

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// progress counts completions across workers and logs every n-th one and
// the last.
type progress struct {
	total  int64
	every  int64
	count  atomic.Int64
	start  time.Time
	logger zerolog.Logger
}

func newProgress(total, every int, logger zerolog.Logger) *progress {
	return &progress{
		total:  int64(total),
		every:  int64(every),
		start:  time.Now(),
		logger: logger,
	}
}

// done records one completion and returns the new count.
func (p *progress) done() int64 {
	n := p.count.Add(1)
	if n%p.every == 0 || n == p.total {
		elapsed := time.Since(p.start).Seconds()
		if elapsed < 0.001 {
			elapsed = 0.001
		}
		p.logger.Info().
			Int64("done", n).
			Int64("total", p.total).
			Float64("rate_per_sec", float64(n)/elapsed).
			Msg("Fetch progress")
	}
	return n
}
