package api

import (
	"context"
	"strconv"
	"time"

	"github.com/matheus3301/wppbridge/internal/api/wppv1"
	"github.com/matheus3301/wppbridge/internal/bridge"
	"github.com/matheus3301/wppbridge/internal/bus"
	"google.golang.org/grpc"
)

const watchBuffer = 256

// SessionService implements the SessionService gRPC service.
type SessionService struct {
	wppv1.UnimplementedSessionServiceServer

	sessionName string
	startedAt   time.Time
	bridge      *bridge.Service
	bus         *bus.Bus
}

// NewSessionService creates a new session service.
func NewSessionService(sessionName string, svc *bridge.Service, b *bus.Bus) *SessionService {
	return &SessionService{
		sessionName: sessionName,
		startedAt:   time.Now(),
		bridge:      svc,
		bus:         b,
	}
}

func (s *SessionService) status(ctx context.Context) *wppv1.SessionStatus {
	return statusToWire(s.sessionName, time.Since(s.startedAt), s.bridge.Status(ctx))
}

func (s *SessionService) GetStatus(ctx context.Context, _ *wppv1.GetStatusRequest) (*wppv1.SessionStatus, error) {
	return s.status(ctx), nil
}

func (s *SessionService) Connect(ctx context.Context, _ *wppv1.ConnectRequest) (*wppv1.SessionStatus, error) {
	if err := s.bridge.Connect(ctx); err != nil {
		return nil, err
	}
	return s.status(ctx), nil
}

func (s *SessionService) Logout(ctx context.Context, _ *wppv1.LogoutRequest) (*wppv1.SessionStatus, error) {
	if err := s.bridge.Logout(ctx); err != nil {
		return nil, err
	}
	return s.status(ctx), nil
}

// WatchEvents streams bus events until the client goes away. A watcher
// that falls behind loses events and is told so with a lagged notice
// carrying the running drop count.
func (s *SessionService) WatchEvents(req *wppv1.WatchEventsRequest, stream grpc.ServerStreamingServer[wppv1.Event]) error {
	sub := s.bus.Subscribe(watchBuffer, req.Namespaces...)
	defer sub.Close()

	var reported uint64
	ctx := stream.Context()
	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				return nil
			}
			if dropped := sub.Dropped(); dropped > reported {
				reported = dropped
				if err := stream.Send(laggedEvent(dropped)); err != nil {
					return err
				}
			}
			if err := stream.Send(eventToWire(evt)); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func laggedEvent(dropped uint64) *wppv1.Event {
	return &wppv1.Event{
		Kind:        bus.KindWatchLagged,
		TimestampMs: time.Now().UnixMilli(),
		Detail:      strconv.FormatUint(dropped, 10),
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
