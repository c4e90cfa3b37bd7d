package registry

import (
	"fmt"
	"sync"
	"testing"

	"quote-broadcaster/src/models"

	"github.com/stretchr/testify/assert"
)

func syms(s ...string) []models.MCanonicalSymbol {
	out := make([]models.MCanonicalSymbol, len(s))
	for i, v := range s {
		out[i] = models.MCanonicalSymbol(v)
	}
	return out
}

func TestSubscribe_Idempotent(t *testing.T) {
	r := New()

	assert.Equal(t, 2, r.Subscribe("c1", syms("XAUUSD", "XAGUSD")))
	once := r.Snapshot()
	assert.Equal(t, 0, r.Subscribe("c1", syms("XAUUSD")))

	assert.Equal(t, once, r.Snapshot())
	assert.Equal(t, syms("XAGUSD", "XAUUSD"), r.Snapshot()["c1"])
}

func TestUnsubscribe_AbsentIsNoop(t *testing.T) {
	r := New()
	r.Subscribe("c1", syms("XAUUSD"))

	assert.Equal(t, 0, r.Unsubscribe("c1", syms("XPTUSD")))
	assert.Equal(t, 0, r.Unsubscribe("ghost", syms("XAUUSD")))
	assert.Equal(t, 1, r.Unsubscribe("c1", syms("XAUUSD")))
	assert.Equal(t, 0, r.Unsubscribe("c1", syms("XAUUSD")))

	subs, ok := r.Snapshot()["c1"]
	assert.True(t, ok)
	assert.Empty(t, subs)
}

func TestDrop(t *testing.T) {
	r := New()
	r.Register("c1")
	r.Subscribe("c1", syms("XAUUSD"))

	r.Drop("c1")
	r.Drop("never-registered")

	assert.Equal(t, 0, r.Len())
	assert.NotContains(t, r.Snapshot(), "c1")
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	r := New()
	r.Subscribe("c1", syms("XAUUSD"))

	snap := r.Snapshot()
	snap["c1"][0] = "MUTATED"
	r.Subscribe("c1", syms("XAGUSD"))

	assert.Equal(t, syms("XAGUSD", "XAUUSD"), r.Snapshot()["c1"])
	assert.Equal(t, 2, r.Subscriptions())
}

func TestConcurrentMutations(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			r.Register(id)
			r.Subscribe(id, syms("XAUUSD", "XAGUSD"))
			_ = r.Snapshot()
			r.Unsubscribe(id, syms("XAGUSD"))
			if i%2 == 0 {
				r.Drop(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, r.Len())
	assert.Equal(t, 10, r.Subscriptions())
}
