package broadcast

import (
	"context"
	"sync"
)

// Hub connects LocalChannel endpoints living in the same process
type Hub struct {
	mu        sync.RWMutex
	endpoints map[string]map[*LocalChannel]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{endpoints: make(map[string]map[*LocalChannel]struct{})}
}

// Open returns a new endpoint on the named channel
func (h *Hub) Open(name string) *LocalChannel {
	ch := &LocalChannel{hub: h, name: name, handlers: newHandlerSet()}

	h.mu.Lock()
	if h.endpoints[name] == nil {
		h.endpoints[name] = make(map[*LocalChannel]struct{})
	}
	h.endpoints[name][ch] = struct{}{}
	h.mu.Unlock()

	return ch
}

func (h *Hub) peers(from *LocalChannel) []*LocalChannel {
	h.mu.RLock()
	defer h.mu.RUnlock()

	peers := make([]*LocalChannel, 0, len(h.endpoints[from.name]))
	for ch := range h.endpoints[from.name] {
		if ch != from {
			peers = append(peers, ch)
		}
	}
	return peers
}

func (h *Hub) detach(ch *LocalChannel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.endpoints[ch.name], ch)
	if len(h.endpoints[ch.name]) == 0 {
		delete(h.endpoints, ch.name)
	}
}

// LocalChannel is an in-process endpoint. Delivery is synchronous: Publish
// returns after every peer handler has run.
type LocalChannel struct {
	hub      *Hub
	name     string
	handlers *handlerSet

	mu     sync.RWMutex
	closed bool
}

func (c *LocalChannel) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	for _, peer := range c.hub.peers(c) {
		peer.handlers.dispatch(msg)
	}
	return nil
}

func (c *LocalChannel) Subscribe(h Handler) (Subscription, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.handlers.add(h), nil
}

func (c *LocalChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.hub.detach(c)
	return nil
}
