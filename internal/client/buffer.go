package client

import "sync"

// Buffer is an in-memory editing surface. Every SetValue that changes the
// text notifies the listeners synchronously, before SetValue returns, the
// same way a browser editor fires its change event for programmatic writes.
type Buffer struct {
	mu        sync.RWMutex
	value     string
	listeners []func(string)
}

func NewBuffer(initial string) *Buffer {
	return &Buffer{value: initial}
}

func (b *Buffer) Value() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value
}

func (b *Buffer) SetValue(content string) {
	b.mu.Lock()
	if b.value == content {
		b.mu.Unlock()
		return
	}
	b.value = content
	listeners := append(([]func(string))(nil), b.listeners...)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(content)
	}
}

// OnChange registers fn for every subsequent change.
func (b *Buffer) OnChange(fn func(content string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}
