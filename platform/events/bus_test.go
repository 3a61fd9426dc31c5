package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"crm_automation_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishSyncRunsAllHandlersAndReturnsFirstError(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	var calls int32
	boom := errors.New("boom")

	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return boom
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	err := bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPublishAsyncSurvivesCanceledContextAndPanics(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	var calls int32

	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, _ Event) error {
		if ctx.Err() == nil {
			atomic.AddInt32(&calls, 1)
		}
		return nil
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		panic("handler exploded")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, pingEvent{BaseEvent: NewBaseEvent()})
	bus.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	bus.Publish(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	assert.NoError(t, bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()}))
}

func TestNewBaseEventIsUniqueAndUTC(t *testing.T) {
	a, b := NewBaseEvent(), NewBaseEvent()
	assert.NotEqual(t, a.EventID(), b.EventID())
	assert.Equal(t, time.UTC, a.OccurredAt().Location())
}

func TestHandlersReceiveTheSameEventID(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	var seen []string
	for i := 0; i < 2; i++ {
		bus.Subscribe("test.ping", HandlerFunc(func(_ context.Context, e Event) error {
			seen = append(seen, e.EventID().String())
			return nil
		}))
	}

	event := pingEvent{BaseEvent: NewBaseEvent()}
	require.NoError(t, bus.PublishSync(context.Background(), event))
	assert.Equal(t, []string{event.ID.String(), event.ID.String()}, seen)
}
