// Package outbound sends messages through the live session and mirrors
// them into the local store.
package outbound

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheus3301/wppbridge/internal/common"
	"github.com/matheus3301/wppbridge/internal/conn"
	"github.com/matheus3301/wppbridge/internal/provider"
	"github.com/matheus3301/wppbridge/internal/sync"
	"go.uber.org/zap"
)

// DirectServer is the namespace raw phone numbers are promoted to.
const DirectServer = "s.whatsapp.net"

// Dispatcher sends text messages. It never queues: a send either reaches
// the provider now or fails.
type Dispatcher struct {
	holder *conn.Holder
	engine *sync.Engine
	logger *zap.Logger
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(holder *conn.Holder, engine *sync.Engine, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{holder: holder, engine: engine, logger: logger}
}

// Send delivers body to dest and stores the sent message through the
// same upsert path as inbound traffic. A provider failure is returned as
// common.ErrSendFailure and leaves the store untouched.
func (d *Dispatcher) Send(ctx context.Context, dest, body string) (*provider.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: empty message body", common.ErrInvalidIdentifier)
	}
	chatID, err := NormalizeDestination(dest)
	if err != nil {
		return nil, err
	}
	cc := d.holder.Current()
	if !cc.Ready() {
		return nil, common.ErrNotReady
	}

	sent, err := cc.Client.SendText(ctx, chatID, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSendFailure, err)
	}
	if sent.ChatID == "" {
		sent.ChatID = chatID
	}
	sent.FromMe = true

	d.mirror(ctx, cc.Client, sent)
	return sent, nil
}

func (d *Dispatcher) mirror(ctx context.Context, client provider.Client, sent *provider.Message) {
	log := d.logger.With(zap.String("chat_id", sent.ChatID), zap.String("msg_id", sent.ID))

	if chat, err := client.GetChat(ctx, sent.ChatID); err == nil {
		if d.engine.Allowed(chat.ID) {
			if err := d.engine.UpsertChat(ctx, client, *chat); err != nil {
				log.Warn("mirror sent chat", zap.Error(fmt.Errorf("%w: %w", common.ErrSync, err)))
			}
		}
	} else {
		log.Debug("sent chat lookup failed", zap.Error(err))
	}
	if _, err := d.engine.UpsertMessage(ctx, client, *sent); err != nil {
		log.Warn("mirror sent message", zap.Error(fmt.Errorf("%w: %w", common.ErrSync, err)))
	}
}

// NormalizeDestination turns user input into a chat id. Ids that already
// carry a namespace pass through; anything else is reduced to its digits
// and placed in the direct-chat namespace.
func NormalizeDestination(dest string) (string, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return "", fmt.Errorf("%w: empty destination", common.ErrInvalidIdentifier)
	}
	if strings.Contains(dest, "@") {
		return dest, nil
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, dest)
	if digits == "" {
		return "", fmt.Errorf("%w: no digits in %q", common.ErrInvalidIdentifier, dest)
	}
	return digits + "@" + DirectServer, nil
}
