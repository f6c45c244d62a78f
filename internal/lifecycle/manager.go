// Package lifecycle drives the provider session: it creates and replaces
// connection contexts, turns provider events into status transitions and
// schedules recovery after disconnects and failures.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/matheus3301/wppbridge/internal/bus"
	"github.com/matheus3301/wppbridge/internal/clock"
	"github.com/matheus3301/wppbridge/internal/common"
	"github.com/matheus3301/wppbridge/internal/conn"
	"github.com/matheus3301/wppbridge/internal/provider"
	"github.com/matheus3301/wppbridge/internal/status"
	"github.com/matheus3301/wppbridge/internal/sync"
	"go.uber.org/zap"
)

// ErrStopped is returned by commands issued after Stop.
var ErrStopped = errors.New("lifecycle stopped")

// Options tunes the manager. Zero values select the defaults.
type Options struct {
	ReconnectDelay time.Duration
	Render         RenderFunc
	Clock          clock.Clock
}

// Manager owns every status transition. Commands, provider events and
// asynchronous results are all applied on a single goroutine, so
// transition logic never races with itself.
type Manager struct {
	factory provider.Factory
	holder  *conn.Holder
	machine *status.Machine
	engine  *sync.Engine
	bus     *bus.Bus
	clock   clock.Clock
	render  RenderFunc
	delay   time.Duration
	logger  *zap.Logger

	inbox chan func()
	tasks chan func(context.Context)
	done  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     gosync.WaitGroup

	// owned by the loop goroutine
	reconnect    clock.Timer
	reconnectGen uint64
	stopping     bool
}

// NewManager creates a manager in the idle state. Start must be called
// before any command.
func NewManager(factory provider.Factory, holder *conn.Holder, machine *status.Machine, engine *sync.Engine,
	b *bus.Bus, opts Options, logger *zap.Logger) *Manager {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.Render == nil {
		opts.Render = RenderPNG
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		factory: factory,
		holder:  holder,
		machine: machine,
		engine:  engine,
		bus:     b,
		clock:   opts.Clock,
		render:  opts.Render,
		delay:   opts.ReconnectDelay,
		logger:  logger,
		inbox:   make(chan func(), 64),
		tasks:   make(chan func(context.Context), 1024),
		done:    make(chan struct{}),
	}
}

// Start launches the event loop and the background sync worker.
func (m *Manager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.work()
	go m.loop()
}

// Stop moves the session to shutdown, closes the provider client and
// waits for background work to finish.
func (m *Manager) Stop() {
	_ = m.do(context.Background(), func() error {
		m.stopReconnect()
		if err := m.machine.Transition(status.Shutdown); err != nil {
			m.logger.Debug("shutdown transition", zap.Error(err))
		}
		if cc := m.holder.Current(); cc != nil {
			cc.Reset()
			if cc.Client != nil {
				cc.Client.Close()
			}
		}
		m.stopping = true
		return nil
	})
	<-m.done
	m.cancel()
	m.wg.Wait()
}

// Status returns the current status and a snapshot of the active context.
func (m *Manager) Status() (status.State, conn.Snapshot) {
	var snap conn.Snapshot
	if cc := m.holder.Current(); cc != nil {
		snap = cc.Snapshot()
	}
	return m.machine.Current(), snap
}

// Connect attaches a session unless one is already connecting or
// connected. A reachable existing client is kept; otherwise the context
// is recreated and initialized.
func (m *Manager) Connect(ctx context.Context) error {
	return m.do(ctx, func() error {
		switch m.machine.Current() {
		case status.Connecting, status.Connected:
			return nil
		case status.Shutdown:
			return ErrStopped
		}
		if cc := m.holder.Current(); cc != nil && cc.Client != nil && cc.Client.Reachable(m.ctx) {
			return nil
		}
		m.initialize(m.recreate("connect requested"))
		return nil
	})
}

// Logout ends the provider session best-effort, then recreates and
// reinitializes the context so a fresh pairing can start.
func (m *Manager) Logout(ctx context.Context) error {
	if cc := m.holder.Current(); cc != nil && cc.Client != nil {
		if err := cc.Client.Logout(ctx); err != nil {
			m.logger.Warn("provider logout failed", zap.Error(err))
		}
	}
	return m.do(ctx, func() error {
		if m.machine.Current() == status.Shutdown {
			return ErrStopped
		}
		m.initialize(m.recreate("logout"))
		return nil
	})
}

// loop is the only goroutine that mutates status or replaces contexts.
func (m *Manager) loop() {
	defer close(m.done)
	for fn := range m.inbox {
		fn()
		if m.stopping {
			return
		}
	}
}

func (m *Manager) post(fn func()) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.inbox <- fn:
		return true
	case <-m.done:
		return false
	}
}

// do runs fn on the loop and waits for its result.
func (m *Manager) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	if !m.post(func() { errc <- fn() }) {
		return ErrStopped
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrStopped
		}
	}
}

// recreate discards the active context and installs a fresh one. A live
// status first passes through disconnected.
func (m *Manager) recreate(reason string) *conn.Context {
	m.stopReconnect()
	if m.machine.Current().Live() {
		m.transition(status.Disconnected)
	}
	if old := m.holder.Current(); old != nil {
		old.Reset()
		if old.Client != nil {
			old.Client.Close()
		}
	}

	epoch := m.holder.NextEpoch()
	client, err := m.factory(m.ctx)
	if err != nil {
		m.holder.Replace(conn.New(epoch, nil))
		m.fail(fmt.Errorf("create provider client: %w", err))
		return nil
	}
	cc := conn.New(epoch, client)
	m.holder.Replace(cc)
	m.logger.Info("connection context created", zap.Uint64("epoch", epoch), zap.String("reason", reason))

	go m.pump(cc)
	return cc
}

// pump forwards provider events of one context to the loop. It ends when
// the client closes its event channel.
func (m *Manager) pump(cc *conn.Context) {
	for evt := range cc.Client.Events() {
		if !m.post(func() { m.handle(cc, evt) }) {
			return
		}
	}
}

// initialize starts the provider session of cc. Concurrent calls for the
// same context are no-ops while one is in flight.
func (m *Manager) initialize(cc *conn.Context) {
	if cc == nil || cc.Client == nil {
		return
	}
	if !cc.BeginInit() {
		m.logger.Debug("initialize already in flight", zap.Uint64("epoch", cc.Epoch))
		return
	}
	m.stopReconnect()
	m.transition(status.Connecting)

	go func() {
		err := cc.Client.Connect(m.ctx)
		m.post(func() {
			cc.EndInit()
			if err != nil && m.holder.IsCurrent(cc.Epoch) {
				m.fail(fmt.Errorf("initialize: %w", err))
			}
		})
	}()
}

func (m *Manager) handle(cc *conn.Context, evt provider.Event) {
	if !m.holder.IsCurrent(cc.Epoch) {
		m.logger.Debug("dropping event from superseded context",
			zap.Stringer("kind", evt.Kind), zap.Uint64("epoch", cc.Epoch))
		return
	}

	switch evt.Kind {
	case provider.EventQR:
		if !m.transition(status.QR) {
			return
		}
		token := cc.NextQRToken()
		code := evt.Code
		go func() {
			img, err := m.render(code)
			m.post(func() { m.commitQR(cc, token, code, img, err) })
		}()

	case provider.EventAuthenticated:
		if m.transition(status.Authenticated) {
			cc.ClearQR()
		}

	case provider.EventReady:
		if !m.transition(status.Connected) && m.machine.Current() != status.Connected {
			return
		}
		self := cc.Client.Self()
		cc.MarkReady(self.Number, self.Name)
		m.logger.Info("session ready", zap.String("number", self.Number))
		m.enqueue(func(ctx context.Context) {
			if _, err := m.engine.SyncChats(ctx, cc.Client); err != nil {
				m.logger.Error("initial chat sync failed", zap.Error(err))
			}
		})

	case provider.EventDisconnected:
		m.logger.Warn("provider disconnected", zap.String("reason", evt.Reason))
		m.transition(status.Disconnected)
		cc.Reset()
		m.recreate("disconnected")
		m.scheduleReconnect()

	case provider.EventAuthFailure:
		m.logger.Error("provider authentication failed", zap.String("reason", evt.Reason))
		m.transition(status.Failed)
		cc.Unready()
		m.scheduleReconnect()

	case provider.EventMessage:
		if evt.Message == nil {
			return
		}
		msg := *evt.Message
		m.enqueue(func(ctx context.Context) {
			if _, err := m.engine.UpsertMessage(ctx, cc.Client, msg); err != nil {
				m.logger.Warn("message sync failed", zap.String("chat_id", msg.ChatID),
					zap.String("msg_id", msg.ID), zap.Error(fmt.Errorf("%w: %w", common.ErrSync, err)))
			}
		})

	case provider.EventHistorySynced:
		if !cc.Ready() {
			return
		}
		m.enqueue(func(ctx context.Context) {
			if _, err := m.engine.SyncChats(ctx, cc.Client); err != nil {
				m.logger.Warn("history chat sync failed", zap.Error(err))
			}
		})
	}
}

// commitQR stores a rendered artifact only while it is still the newest
// one and the session is still waiting for a scan.
func (m *Manager) commitQR(cc *conn.Context, token uint64, code, img string, renderErr error) {
	current := m.holder.IsCurrent(cc.Epoch) && m.machine.Current() == status.QR && cc.Snapshot().QRToken == token
	if !current {
		m.logger.Debug("discarding stale qr render", zap.Uint64("token", token))
		return
	}
	if renderErr != nil {
		m.fail(fmt.Errorf("%w: %w", common.ErrQRRender, renderErr))
		return
	}
	qr := conn.QR{Code: code, Image: img, GeneratedAt: m.clock.Now()}
	if cc.CommitQR(token, qr) {
		m.publish(bus.KindQR, qr)
	}
}

func (m *Manager) fail(err error) {
	m.logger.Error("connection failed", zap.Error(err))
	m.transition(status.Failed)
	if cc := m.holder.Current(); cc != nil {
		cc.Unready()
	}
	m.scheduleReconnect()
}

// scheduleReconnect recreates and reinitializes the context after the
// configured delay, unless something else has moved the session on.
func (m *Manager) scheduleReconnect() {
	m.stopReconnect()
	gen := m.reconnectGen
	m.reconnect = m.clock.AfterFunc(m.delay, func() {
		m.post(func() {
			if gen != m.reconnectGen {
				return
			}
			m.reconnect = nil
			st := m.machine.Current()
			if st != status.Disconnected && st != status.Failed {
				return
			}
			cc := m.holder.Current()
			if st == status.Failed || cc == nil || cc.Client == nil {
				cc = m.recreate("reconnect")
			}
			m.initialize(cc)
		})
	})
}

func (m *Manager) stopReconnect() {
	m.reconnectGen++
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

// transition applies to and logs rejected moves. It reports success.
func (m *Manager) transition(to status.State) bool {
	if err := m.machine.Transition(to); err != nil {
		m.logger.Debug("transition rejected", zap.Error(err))
		return false
	}
	m.logger.Info("status changed", zap.String("status", string(to)))
	return true
}

func (m *Manager) enqueue(task func(context.Context)) {
	select {
	case m.tasks <- task:
	case <-m.ctx.Done():
	}
}

// work runs sync tasks one at a time, in arrival order.
func (m *Manager) work() {
	defer m.wg.Done()
	for {
		select {
		case task := <-m.tasks:
			task(m.ctx)
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) publish(kind string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(bus.Event{Kind: kind, Timestamp: m.clock.Now(), Payload: payload})
}
