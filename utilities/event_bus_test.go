package utilities

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus_PublishReachesEverySubscriber(t *testing.T) {
	bus := NewEventBus()
	var hits atomic.Int32
	var got atomic.Value
	bus.Subscribe(EventReportSubmitted, func(data interface{}) {
		hits.Add(1)
		got.Store(data)
	})
	bus.Subscribe(EventReportSubmitted, func(interface{}) { hits.Add(1) })
	bus.Subscribe("other", func(interface{}) { hits.Add(100) })

	bus.Publish(EventReportSubmitted, "abc")
	bus.Wait()

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, "abc", got.Load())
}

func TestEventBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewEventBus()
	bus.Publish("nobody", 1)
	bus.Wait()
}
