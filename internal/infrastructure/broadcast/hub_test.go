package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightstream-service/internal/domain/entity"
	"flightstream-service/pkg/logger"
	"flightstream-service/pkg/metrics"
)

func batchOf(dates ...string) []entity.Flight {
	out := make([]entity.Flight, len(dates))
	for i, d := range dates {
		out[i] = entity.Flight{FlightDate: d}
	}
	return out
}

func TestBroadcastReachesEverySubscriber(t *testing.T) {
	h := NewHub(2, logger.NewNopLogger(), metrics.NewTestMetrics())
	a := h.Subscribe()
	b := h.Subscribe()
	assert.NotEqual(t, a.ID, b.ID)

	assert.Equal(t, 2, h.Broadcast(batchOf("d1")))

	assert.Equal(t, batchOf("d1"), <-a.C)
	assert.Equal(t, batchOf("d1"), <-b.C)
}

func TestLateSubscriberGetsNoHistory(t *testing.T) {
	h := NewHub(2, logger.NewNopLogger(), metrics.NewTestMetrics())
	h.Broadcast(batchOf("old"))

	sub := h.Subscribe()
	select {
	case batch := <-sub.C:
		t.Fatalf("unexpected replay: %v", batch)
	default:
	}

	h.Broadcast(batchOf("new"))
	assert.Equal(t, batchOf("new"), <-sub.C)
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	m := metrics.NewTestMetrics()
	h := NewHub(2, logger.NewNopLogger(), m)
	slow := h.Subscribe()
	fast := h.Subscribe()

	for _, d := range []string{"t1", "t2", "t3"} {
		h.Broadcast(batchOf(d))
		if d != "t3" {
			<-fast.C
		}
	}

	assert.Equal(t, batchOf("t2"), <-slow.C)
	assert.Equal(t, batchOf("t3"), <-slow.C)
	assert.Equal(t, batchOf("t3"), <-fast.C)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedBatches))
}

func TestUnsubscribeClosesOnlyThatSubscriber(t *testing.T) {
	m := metrics.NewTestMetrics()
	h := NewHub(2, logger.NewNopLogger(), m)
	a := h.Subscribe()
	b := h.Subscribe()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Subscribers))

	h.Unsubscribe(a)
	h.Unsubscribe(a)
	_, ok := <-a.C
	assert.False(t, ok)

	assert.Equal(t, 1, h.Broadcast(batchOf("d1")))
	assert.Equal(t, batchOf("d1"), <-b.C)
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Subscribers))
}

func TestCloseDetachesAll(t *testing.T) {
	h := NewHub(1, logger.NewNopLogger(), metrics.NewTestMetrics())
	a := h.Subscribe()
	h.Close()
	h.Close()

	_, ok := <-a.C
	assert.False(t, ok)
	assert.Equal(t, 0, h.Broadcast(batchOf("d1")))

	late := h.Subscribe()
	_, ok = <-late.C
	assert.False(t, ok)
	h.Unsubscribe(late)
}

func TestConcurrentChurn(t *testing.T) {
	h := NewHub(1, logger.NewNopLogger(), metrics.NewTestMetrics())
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				h.Broadcast(batchOf("tick"))
			}
		}
	}()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub := h.Subscribe()
				select {
				case <-sub.C:
				case <-time.After(time.Millisecond):
				}
				h.Unsubscribe(sub)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
	require.Equal(t, 0, h.Len())
}
