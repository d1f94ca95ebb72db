package bus

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/common"
	"github.com/ternarybob/sitebatch/internal/interfaces"
	"github.com/ternarybob/sitebatch/internal/models"
	"golang.org/x/time/rate"
)

// topicEvent is one envelope queued for the delivery goroutine. The
// subscriber set is snapshotted at publish time: connections made after the
// publish never see the event.
type topicEvent struct {
	topic    string
	subs     []interfaces.Subscriber
	envelope models.Envelope
}

// Service implements interfaces.NotificationBus. Publishers (worker
// context) hand events to a bounded channel; a single delivery goroutine
// drains it and fans out to subscribers, so a slow or failing observer
// never blocks aggregation. Delivery order matches publish order for calls
// from one goroutine; cross-goroutine order is best-effort.
type Service struct {
	mu     sync.RWMutex
	subs   map[string]map[interfaces.Subscriber]bool
	closed bool

	events     chan topicEvent
	done       chan struct{}
	throttlers map[string]*rate.Limiter
	logger     arbor.ILogger
}

// NewService creates the bus and starts its delivery loop
func NewService(config *common.WebSocketConfig, logger arbor.ILogger) *Service {
	bufferSize := 256
	if config != nil && config.BufferSize > 0 {
		bufferSize = config.BufferSize
	}

	s := &Service{
		subs:       make(map[string]map[interfaces.Subscriber]bool),
		events:     make(chan topicEvent, bufferSize),
		done:       make(chan struct{}),
		throttlers: make(map[string]*rate.Limiter),
		logger:     logger,
	}

	// Optional throttling of high-frequency events, keyed by event name
	if config != nil {
		for event, intervalStr := range config.ThrottleIntervals {
			interval, err := time.ParseDuration(intervalStr)
			if err != nil {
				logger.Warn().Err(err).Str("event", event).Str("interval", intervalStr).
					Msg("Invalid throttle interval - throttler disabled")
				continue
			}
			s.throttlers[event] = rate.NewLimiter(rate.Every(interval), 1)
			logger.Debug().Str("event", event).Str("interval", intervalStr).
				Msg("Throttler initialized")
		}
	}

	go s.deliveryLoop()
	return s
}

// Connect attaches a subscriber to a topic
func (s *Service) Connect(topic string, sub interfaces.Subscriber) {
	s.mu.Lock()
	if s.subs[topic] == nil {
		s.subs[topic] = make(map[interfaces.Subscriber]bool)
	}
	s.subs[topic][sub] = true
	count := len(s.subs[topic])
	s.mu.Unlock()

	s.logger.Debug().Str("topic", topic).Int("subscribers", count).Msg("Subscriber connected")
}

// Disconnect detaches a subscriber from a topic; absent subscribers are a no-op
func (s *Service) Disconnect(topic string, sub interfaces.Subscriber) {
	s.mu.Lock()
	if subs, ok := s.subs[topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(s.subs, topic)
		}
	}
	count := len(s.subs[topic])
	s.mu.Unlock()

	s.logger.Debug().Str("topic", topic).Int("subscribers", count).Msg("Subscriber disconnected")
}

// Publish queues an event for delivery to the topic's current subscribers.
// It never blocks and never panics back into the caller: a full queue or a
// closed bus drops the event with a log line. A topic with no subscribers
// drops the event outright; there is no queueing for late joiners.
func (s *Service) Publish(topic, event string, data any) {
	if limiter, ok := s.throttlers[event]; ok && !limiter.Allow() {
		return
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	subs := make([]interfaces.Subscriber, 0, len(s.subs[topic]))
	for sub := range s.subs[topic] {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	select {
	case s.events <- topicEvent{topic: topic, subs: subs, envelope: models.Envelope{Event: event, Data: data}}:
	default:
		s.logger.Warn().Str("topic", topic).Str("event", event).
			Msg("Notification queue full - event dropped")
	}
}

// Close stops the delivery loop and forgets all subscribers
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subs = make(map[string]map[interfaces.Subscriber]bool)
	s.mu.Unlock()

	close(s.done)
	s.logger.Debug().Msg("Notification bus closed")
	return nil
}

func (s *Service) deliveryLoop() {
	for {
		select {
		case ev := <-s.events:
			s.deliver(ev)
		case <-s.done:
			return
		}
	}
}

// deliver sends to the subscriber set captured at publish time. Subscribers
// whose Send fails are dropped from the topic; the remaining subscribers
// still receive the event.
func (s *Service) deliver(ev topicEvent) {
	var dead []interfaces.Subscriber
	for _, sub := range ev.subs {
		if err := sub.Send(ev.envelope); err != nil {
			s.logger.Warn().Err(err).Str("topic", ev.topic).Str("event", ev.envelope.Event).
				Msg("Subscriber delivery failed - dropping")
			dead = append(dead, sub)
		}
	}

	if len(dead) > 0 {
		s.mu.Lock()
		if subs, ok := s.subs[ev.topic]; ok {
			for _, d := range dead {
				delete(subs, d)
			}
			if len(subs) == 0 {
				delete(s.subs, ev.topic)
			}
		}
		s.mu.Unlock()
	}
}

// SubscriberCount reports the current number of subscribers on a topic
func (s *Service) SubscriberCount(topic string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[topic])
}
