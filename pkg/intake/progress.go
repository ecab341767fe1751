package intake

import (
	"fmt"
	"io"
	"math"
	"sync"
)

// Counter derives progress from object sequence indexes. The first index
// observed fixes the total at index+1; each object then counts as
// total-index processed.
type Counter struct {
	total int
	seen  bool
}

// Observe records an object's index and returns the processed count and
// the total.
func (c *Counter) Observe(index int) (processed, total int, err error) {
	if !c.seen {
		if index < 0 {
			return 0, 0, fmt.Errorf("object index %d is negative", index)
		}
		c.total = index + 1
		c.seen = true
	}
	if index < 0 || index >= c.total {
		return 0, 0, fmt.Errorf("object index %d outside total %d", index, c.total)
	}
	return c.total - index, c.total, nil
}

// Total returns the fixed total, or 0 before the first observation.
func (c *Counter) Total() int {
	return c.total
}

// Percent rounds n/total to a whole percentage.
func Percent(n, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(n) / float64(total)))
}

func receivingLine(n, total int) string {
	return fmt.Sprintf("Receiving objects: %d%% (%d/%d)\r", Percent(n, total), n, total)
}

func receivingDone(total int) string {
	return fmt.Sprintf("Receiving objects: 100%% (%d/%d), done.\n", total, total)
}

// lockedWriter serializes writes from concurrently driven sequences.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}
