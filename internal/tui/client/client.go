// Package client dials a session daemon over its unix socket.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/wppbridge/internal/api/wppv1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Messages may carry inline media; matches the daemon's limit.
const maxRecvSize = 64 << 20

// Client holds the typed service stubs of one daemon connection.
type Client struct {
	conn    *grpc.ClientConn
	Session *wppv1.SessionServiceClient
	Chat    *wppv1.ChatServiceClient
}

// New prepares a connection to socketPath. Dialing is lazy, so an absent
// daemon only shows up on the first call.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvSize)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{
		conn:    conn,
		Session: wppv1.NewSessionServiceClient(conn),
		Chat:    wppv1.NewChatServiceClient(conn),
	}, nil
}

// Probe reports whether a daemon answers a status call on socketPath
// within timeout. A bare socket connect is not enough: the file outlives
// crashed daemons.
func Probe(socketPath string, timeout time.Duration) bool {
	c, err := New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err = c.Session.GetStatus(ctx, &wppv1.GetStatusRequest{})
	return err == nil
}

// Wait probes socketPath every interval until a daemon answers or ctx ends.
func Wait(ctx context.Context, socketPath string, interval time.Duration) error {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		if Probe(socketPath, interval) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("daemon at %s not ready: %w", socketPath, ctx.Err())
		case <-tick.C:
		}
	}
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
