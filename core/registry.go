package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// TopicRegistry is the static routing table mapping topic strings to
// handlers. Each integration registers its topics once at process start;
// registering the same topic twice is a wiring error.
type TopicRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewTopicRegistry() *TopicRegistry {
	return &TopicRegistry{handlers: make(map[string]Handler)}
}

func (r *TopicRegistry) Register(topic string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("core: handler is nil")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return fmt.Errorf("core: topic is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[topic]; exists {
		return fmt.Errorf("core: handler already registered for topic: %s", topic)
	}
	r.handlers[topic] = handler
	return nil
}

func (r *TopicRegistry) Resolve(topic string) (Handler, bool) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, false
	}
	r.mu.RLock()
	handler, ok := r.handlers[topic]
	r.mu.RUnlock()
	return handler, ok
}

func (r *TopicRegistry) Topics() []string {
	r.mu.RLock()
	topics := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		topics = append(topics, topic)
	}
	r.mu.RUnlock()
	sort.Strings(topics)
	return topics
}

var _ Registry = (*TopicRegistry)(nil)
