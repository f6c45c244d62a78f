package conn

import "sync/atomic"

// Holder publishes the current Context. Readers load it without locks;
// only the lifecycle replaces it.
type Holder struct {
	cur   atomic.Pointer[Context]
	epoch atomic.Uint64
}

// Current returns the active context, or nil before the first one.
func (h *Holder) Current() *Context { return h.cur.Load() }

// NextEpoch returns a fresh, strictly increasing epoch.
func (h *Holder) NextEpoch() uint64 { return h.epoch.Add(1) }

// Replace installs next and returns the context it supersedes.
func (h *Holder) Replace(next *Context) *Context { return h.cur.Swap(next) }

// IsCurrent reports whether epoch belongs to the active context.
func (h *Holder) IsCurrent(epoch uint64) bool {
	c := h.cur.Load()
	return c != nil && c.Epoch == epoch
}

// Ready reports whether the active context can serve commands.
func (h *Holder) Ready() bool { return h.Current().Ready() }
