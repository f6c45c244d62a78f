package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/matheus3301/wppbridge/internal/api"
	"github.com/matheus3301/wppbridge/internal/api/wppv1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Media payloads travel inline in messages, so lift the 4 MiB default.
const maxMessageSize = 64 << 20

// Server serves the bridge API on the session's unix socket.
type Server struct {
	grpc   *grpc.Server
	lis    net.Listener
	socket string
	logger *zap.Logger
}

// NewServer binds the session socket and registers both services. The
// socket is only reachable by the owning user.
func NewServer(p Params, logger *zap.Logger, sessionSvc *api.SessionService, chatSvc *api.ChatService) (*Server, error) {
	socket := p.paths().Socket
	lis, err := listenUnix(socket)
	if err != nil {
		return nil, err
	}

	apiLog := logger.Named("api")
	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMessageSize),
		grpc.MaxSendMsgSize(maxMessageSize),
		grpc.UnaryInterceptor(api.ErrorInterceptor(apiLog)),
		grpc.StreamInterceptor(api.StreamErrorInterceptor(apiLog)),
	)
	wppv1.RegisterSessionServiceServer(srv, sessionSvc)
	wppv1.RegisterChatServiceServer(srv, chatSvc)

	return &Server{grpc: srv, lis: lis, socket: socket, logger: logger}, nil
}

// listenUnix replaces any leftover socket file. Only the lock holder gets
// this far, so a file already there belongs to a dead daemon.
func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	lis, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = lis.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return lis, nil
}

// Start serves until Stop. A clean stop returns nil.
func (s *Server) Start() error {
	s.logger.Info("api listening", zap.String("socket", s.socket))
	if err := s.grpc.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop drains in-flight calls and removes the socket file. Open event
// streams are cut once ctx expires.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("api stopping")
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
		<-done
	}
	_ = os.Remove(s.socket)
}
