package fetch

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestProgress_LogsEveryNthAndLast(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(7, 3, zerolog.New(&buf))

	for i := 0; i < 7; i++ {
		p.done()
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// 3, 6 and the final 7.
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"done":3`)
	assert.Contains(t, lines[1], `"done":6`)
	assert.Contains(t, lines[2], `"done":7`)
	assert.Contains(t, lines[2], `"total":7`)
	assert.Contains(t, lines[2], "rate_per_sec")
}

func TestProgress_ConcurrentCount(t *testing.T) {
	p := newProgress(100, 1000, zerolog.Nop())

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				p.done()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), p.count.Load())
}
