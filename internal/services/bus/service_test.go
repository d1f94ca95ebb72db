package bus

import (
	"fmt"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/common"
	"github.com/ternarybob/sitebatch/internal/models"
)

// chanSubscriber delivers envelopes into a channel for assertions
type chanSubscriber struct {
	received chan models.Envelope
	fail     bool
}

func newChanSubscriber() *chanSubscriber {
	return &chanSubscriber{received: make(chan models.Envelope, 16)}
}

func (s *chanSubscriber) Send(envelope models.Envelope) error {
	if s.fail {
		return fmt.Errorf("connection gone")
	}
	s.received <- envelope
	return nil
}

func (s *chanSubscriber) waitFor(t *testing.T) models.Envelope {
	t.Helper()
	select {
	case env := <-s.received:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for delivery")
		return models.Envelope{}
	}
}

func (s *chanSubscriber) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case env := <-s.received:
		t.Fatalf("Unexpected delivery: %+v", env)
	case <-time.After(100 * time.Millisecond):
	}
}

func newTestBus(t *testing.T) *Service {
	t.Helper()
	svc := NewService(&common.WebSocketConfig{BufferSize: 16}, arbor.NewLogger())
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestPublishDeliversToTopic(t *testing.T) {
	svc := newTestBus(t)

	sub := newChanSubscriber()
	svc.Connect(models.TopicBroadcast, sub)

	svc.Publish(models.TopicBroadcast, models.EventGroupStatus, map[string]any{"group_id": "g1"})

	env := sub.waitFor(t)
	if env.Event != models.EventGroupStatus {
		t.Errorf("Expected %s, got %s", models.EventGroupStatus, env.Event)
	}
}

func TestPublishIsTopicScoped(t *testing.T) {
	svc := newTestBus(t)

	alice := newChanSubscriber()
	bob := newChanSubscriber()
	svc.Connect(models.UserTopic("alice"), alice)
	svc.Connect(models.UserTopic("bob"), bob)

	svc.Publish(models.UserTopic("alice"), models.EventItemFinished, nil)

	alice.waitFor(t)
	bob.expectNothing(t)
}

func TestPublishWithoutSubscribersIsDropped(t *testing.T) {
	svc := newTestBus(t)

	// No subscribers: must not block or panic
	svc.Publish(models.TopicBroadcast, models.EventGroupAdded, nil)

	// A later subscriber sees nothing; there is no replay
	late := newChanSubscriber()
	svc.Connect(models.TopicBroadcast, late)
	late.expectNothing(t)
}

func TestLateSubscriberMissesEarlierEvents(t *testing.T) {
	svc := newTestBus(t)

	early := newChanSubscriber()
	svc.Connect(models.TopicBroadcast, early)

	svc.Publish(models.TopicBroadcast, models.EventGroupAdded, map[string]any{"group_id": "g1"})
	early.waitFor(t)

	// A subscriber joining after the publish sees only what comes next,
	// even if it connects before the delivery goroutine has drained the
	// queue
	late := newChanSubscriber()
	svc.Connect(models.TopicBroadcast, late)

	svc.Publish(models.TopicBroadcast, models.EventGroupStatus, map[string]any{"group_id": "g1"})

	env := late.waitFor(t)
	if env.Event != models.EventGroupStatus {
		t.Errorf("Late subscriber received earlier event %s", env.Event)
	}
	early.waitFor(t)
	late.expectNothing(t)
}

func TestFailingSubscriberIsDropped(t *testing.T) {
	svc := newTestBus(t)

	broken := newChanSubscriber()
	broken.fail = true
	healthy := newChanSubscriber()
	svc.Connect(models.TopicBroadcast, broken)
	svc.Connect(models.TopicBroadcast, healthy)

	svc.Publish(models.TopicBroadcast, models.EventGroupStatus, nil)
	healthy.waitFor(t)

	waitForCondition(t, func() bool { return svc.SubscriberCount(models.TopicBroadcast) == 1 })

	// Subsequent events still flow to the healthy subscriber
	svc.Publish(models.TopicBroadcast, models.EventGroupStatus, nil)
	healthy.waitFor(t)
}

func TestDisconnect(t *testing.T) {
	svc := newTestBus(t)

	sub := newChanSubscriber()
	svc.Connect(models.TopicBroadcast, sub)
	svc.Disconnect(models.TopicBroadcast, sub)

	if count := svc.SubscriberCount(models.TopicBroadcast); count != 0 {
		t.Errorf("Expected 0 subscribers, got %d", count)
	}

	svc.Publish(models.TopicBroadcast, models.EventGroupStatus, nil)
	sub.expectNothing(t)

	// Disconnecting again is harmless
	svc.Disconnect(models.TopicBroadcast, sub)
}

func TestPublishAfterCloseIsIgnored(t *testing.T) {
	svc := NewService(nil, arbor.NewLogger())

	sub := newChanSubscriber()
	svc.Connect(models.TopicBroadcast, sub)

	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}

	svc.Publish(models.TopicBroadcast, models.EventGroupStatus, nil)
	sub.expectNothing(t)
}

func TestThrottledEvent(t *testing.T) {
	config := &common.WebSocketConfig{
		BufferSize:        16,
		ThrottleIntervals: map[string]string{models.EventItemFinished: "1h"},
	}
	svc := NewService(config, arbor.NewLogger())
	t.Cleanup(func() { svc.Close() })

	sub := newChanSubscriber()
	svc.Connect(models.TopicBroadcast, sub)

	// First publish passes the limiter, the burst after is suppressed
	svc.Publish(models.TopicBroadcast, models.EventItemFinished, nil)
	sub.waitFor(t)

	for i := 0; i < 5; i++ {
		svc.Publish(models.TopicBroadcast, models.EventItemFinished, nil)
	}
	sub.expectNothing(t)

	// Other events are unaffected
	svc.Publish(models.TopicBroadcast, models.EventGroupStatus, nil)
	sub.waitFor(t)
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for condition")
}
