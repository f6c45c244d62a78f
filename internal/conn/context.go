// Package conn holds the connection context: the single live provider
// client together with the metadata that belongs to it.
package conn

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/matheus3301/wppbridge/internal/provider"
)

// QR is a rendered pairing artifact.
type QR struct {
	Code        string // raw pairing code
	Image       string // data URL of a PNG
	GeneratedAt time.Time
}

// Context is one provider session and its metadata. A Context is
// replaced as a whole when the session is recreated; its Client and
// Epoch never change.
type Context struct {
	Client provider.Client
	Epoch  uint64

	mu      sync.RWMutex
	number  string
	name    string
	qr      *QR
	qrToken uint64
	ready   bool

	initializing atomic.Bool
}

// New returns a context for client. Client may be nil when the provider
// could not be built.
func New(epoch uint64, client provider.Client) *Context {
	return &Context{Client: client, Epoch: epoch}
}

// Snapshot is a consistent copy of the mutable fields.
type Snapshot struct {
	Epoch   uint64
	Number  string
	Name    string
	QR      *QR
	QRToken uint64
	Ready   bool
}

// Snapshot copies the context's observable state, QR included.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Snapshot{
		Epoch:   c.Epoch,
		Number:  c.number,
		Name:    c.name,
		QRToken: c.qrToken,
		Ready:   c.ready,
	}
	if c.qr != nil {
		qr := *c.qr
		s.QR = &qr
	}
	return s
}

// Ready reports whether the session can serve commands.
func (c *Context) Ready() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// MarkReady sets readiness and the authenticated identity, and resets
// the QR token.
func (c *Context) MarkReady(number, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = true
	c.number = number
	c.name = name
	c.qr = nil
	c.qrToken = 0
}

// NextQRToken issues a new QR generation token, clears the identity and
// returns the token.
func (c *Context) NextQRToken() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qrToken++
	c.number = ""
	c.name = ""
	return c.qrToken
}

// CommitQR stores qr only if token is still current. It reports whether
// the artifact was stored.
func (c *Context) CommitQR(token uint64, qr QR) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == 0 || token != c.qrToken {
		return false
	}
	c.qr = &qr
	return true
}

// ClearQR drops the pending QR artifact.
func (c *Context) ClearQR() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qr = nil
}

// Reset marks the session unusable: readiness false, identity and QR
// cleared, token zeroed.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = false
	c.number = ""
	c.name = ""
	c.qr = nil
	c.qrToken = 0
}

// Unready clears readiness and the QR artifact but keeps the identity.
func (c *Context) Unready() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = false
	c.qr = nil
}

// BeginInit claims the initialization guard. It returns false when an
// initialization is already in flight.
func (c *Context) BeginInit() bool { return c.initializing.CompareAndSwap(false, true) }

// EndInit releases the initialization guard.
func (c *Context) EndInit() { c.initializing.Store(false) }
