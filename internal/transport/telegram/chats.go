package telegram

import (
	"sort"
	"strconv"
	"sync"
)

// Chats is the set of chats that receive trade notifications.
type Chats struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

// NewChats creates a set seeded with ids. Zero ids are ignored.
func NewChats(ids ...int64) *Chats {
	c := &Chats{ids: make(map[int64]struct{})}
	for _, id := range ids {
		if id != 0 {
			c.ids[id] = struct{}{}
		}
	}
	return c
}

// Remember adds the chat identified by session. Non-numeric sessions are ignored.
func (c *Chats) Remember(session string) {
	id, err := strconv.ParseInt(session, 10, 64)
	if err != nil || id == 0 {
		return
	}
	c.mu.Lock()
	c.ids[id] = struct{}{}
	c.mu.Unlock()
}

// IDs returns the remembered chats in ascending order.
func (c *Chats) IDs() []int64 {
	c.mu.RLock()
	out := make([]int64, 0, len(c.ids))
	for id := range c.ids {
		out = append(out, id)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
