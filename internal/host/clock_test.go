package host

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_ResumeAt(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(42), c.Next())
}

func TestClock_Concurrent(t *testing.T) {
	c := NewClock()
	var wg sync.WaitGroup
	seen := make([]int64, 100)
	for i := range seen {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = c.Next()
		}(i)
	}
	wg.Wait()

	unique := make(map[int64]bool)
	for _, s := range seen {
		unique[s] = true
	}
	assert.Len(t, unique, 100)
	assert.Equal(t, int64(100), c.Current())
}

func TestSequentialGenerator(t *testing.T) {
	g := NewSequentialGenerator("")
	assert.Equal(t, "tx-1", g.Generate())
	assert.Equal(t, "tx-2", g.Generate())
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

func TestQuotaEnforcer(t *testing.T) {
	q := NewQuotaEnforcer(2)
	assert.NoError(t, q.Check("tx"))
	assert.NoError(t, q.Check("tx"))
	assert.Error(t, q.Check("tx"))
	assert.Equal(t, 3, q.Current())
	assert.Equal(t, 2, q.MaxCalls())
}
