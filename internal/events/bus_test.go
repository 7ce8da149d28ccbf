package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimsentry/backend/internal/validator"
)

func receiveOne(t *testing.T, ch chan *CloudEvent) *CloudEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBus_TypedSubscription(t *testing.T) {
	bus := NewBus("/test")
	accepted := bus.Subscribe(TypeVerdictAccepted)

	bus.Emit(TypeVerdictRejected, "evt-1", nil)
	bus.Emit(TypeVerdictAccepted, "evt-2", nil)

	ev := receiveOne(t, accepted)
	assert.Equal(t, TypeVerdictAccepted, ev.Type)
	assert.Equal(t, "evt-2", ev.Subject)
	assert.Len(t, accepted, 0, "the rejected event must not be delivered to this subscriber")
}

func TestBus_WildcardSubscription(t *testing.T) {
	bus := NewBus("/test")
	all := bus.Subscribe()

	bus.Emit(TypeVerdictAccepted, "evt-1", nil)
	bus.Emit(TypeAssessmentCompleted, "report-1", nil)

	assert.Equal(t, TypeVerdictAccepted, receiveOne(t, all).Type)
	assert.Equal(t, TypeAssessmentCompleted, receiveOne(t, all).Type)
}

func TestBus_EnvelopeIsCloudEvents(t *testing.T) {
	bus := NewBus("/claimsentry/validator")
	ch := bus.Subscribe(TypeVerdictAccepted)

	bus.Emit(TypeVerdictAccepted, "evt-1", map[string]string{"k": "v"})

	ev := receiveOne(t, ch)
	assert.Equal(t, "1.0", ev.SpecVersion)
	assert.Equal(t, "/claimsentry/validator", ev.Source)
	assert.NotEmpty(t, ev.ID)
	assert.WithinDuration(t, time.Now(), ev.Time, time.Second)
}

func TestBus_FullSubscriberDropsNotBlocks(t *testing.T) {
	bus := NewBus("/test")
	ch := bus.Subscribe(TypeVerdictAccepted)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ { // far beyond the buffer
			bus.Emit(TypeVerdictAccepted, "evt", nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing to a full subscriber must never block")
	}
	assert.LessOrEqual(t, len(ch), 100)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus("/test")
	ch := bus.Subscribe(TypeVerdictAccepted)
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Unsubscribe(ch)
	assert.Zero(t, bus.SubscriberCount())

	_, open := <-ch
	assert.False(t, open, "unsubscribed channels are closed")
}

func TestVerdictSink_PublishesByValidity(t *testing.T) {
	bus := NewBus("/test")
	accepted := bus.Subscribe(TypeVerdictAccepted)
	rejected := bus.Subscribe(TypeVerdictRejected)

	sink := NewVerdictSink(bus)
	sink.Publish(validator.Verdict{EventID: "evt-good", OverallValid: true})
	sink.Publish(validator.Verdict{EventID: "evt-bad", OverallValid: false})

	good := receiveOne(t, accepted)
	assert.Equal(t, "evt-good", good.Subject)

	bad := receiveOne(t, rejected)
	assert.Equal(t, "evt-bad", bad.Subject)
}

func TestCloudEvent_SSEFormat(t *testing.T) {
	ce := NewCloudEvent(TypeVerdictAccepted, "/test", "evt-1", nil)
	framed, err := ce.SSEFormat()
	require.NoError(t, err)
	assert.Contains(t, string(framed), "event: verdict.accepted\n")
	assert.Contains(t, string(framed), "id: "+ce.ID)
}
