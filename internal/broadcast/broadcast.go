// Package broadcast provides the cross-tab channel used to tell every open painel
// session for an origin that the user logged out.
//
// A message published on one endpoint is delivered to every other open endpoint
// with the same name, never back to the publisher. Endpoints opened after a
// publish do not see it; they bootstrap from the persisted token instead.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ChannelName is the fixed name shared by all session endpoints
const ChannelName = "auth-channel"

// Message is a payload sent over a channel
type Message string

// LoggedOut is the only message the session layer acts on
const LoggedOut Message = "logout"

var ErrClosed = errors.New("broadcast channel closed")

// Handler receives messages published by other endpoints
type Handler func(msg Message)

// Subscription is returned by Subscribe and releases the handler
type Subscription interface {
	Unsubscribe()
}

// Channel is one endpoint of a named same-origin broadcast channel
type Channel interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(h Handler) (Subscription, error)
	Close() error
}

// envelope is the wire format for backends that cross process boundaries
type envelope struct {
	Sender string  `json:"sender"`
	Data   Message `json:"data"`
}

func encodeEnvelope(sender string, msg Message) ([]byte, error) {
	return json.Marshal(envelope{Sender: sender, Data: msg})
}

func decodeEnvelope(b []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return envelope{}, err
	}
	if env.Sender == "" {
		return envelope{}, errors.New("envelope has no sender")
	}
	return env, nil
}

// handlerSet is the subscriber list shared by every backend
type handlerSet struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
}

func newHandlerSet() *handlerSet {
	return &handlerSet{handlers: make(map[int]Handler)}
}

func (s *handlerSet) add(h Handler) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.handlers[id] = h
	return &subscription{set: s, id: id}
}

func (s *handlerSet) remove(id int) {
	s.mu.Lock()
	delete(s.handlers, id)
	s.mu.Unlock()
}

func (s *handlerSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// dispatch calls handlers outside the lock so a handler may unsubscribe itself
func (s *handlerSet) dispatch(msg Message) {
	s.mu.RLock()
	hs := make([]Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		hs = append(hs, h)
	}
	s.mu.RUnlock()

	for _, h := range hs {
		h(msg)
	}
}

type subscription struct {
	set  *handlerSet
	id   int
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.set.remove(s.id) })
}
