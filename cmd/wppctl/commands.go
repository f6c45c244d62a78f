package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matheus3301/wppbridge/internal/api/wppv1"
	"github.com/matheus3301/wppbridge/internal/lock"
	"github.com/matheus3301/wppbridge/internal/session"
	"github.com/urfave/cli/v2"
)

const callTimeout = 10 * time.Second

func call(ctx *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Context, callTimeout)
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "Show session status",
	Action: func(ctx *cli.Context) error {
		c, cancel := call(ctx)
		defer cancel()
		st, err := getClient(ctx).Session.GetStatus(c, &wppv1.GetStatusRequest{})
		if err != nil {
			return err
		}
		return printStatus(ctx, st)
	},
}

var connectCommand = &cli.Command{
	Name:  "connect",
	Usage: "Attach the session, reusing stored credentials when present",
	Action: func(ctx *cli.Context) error {
		c, cancel := call(ctx)
		defer cancel()
		st, err := getClient(ctx).Session.Connect(c, &wppv1.ConnectRequest{})
		if err != nil {
			return err
		}
		return printStatus(ctx, st)
	},
}

var logoutCommand = &cli.Command{
	Name:  "logout",
	Usage: "Unlink the session from the phone and start a fresh pairing",
	Action: func(ctx *cli.Context) error {
		c, cancel := call(ctx)
		defer cancel()
		st, err := getClient(ctx).Session.Logout(c, &wppv1.LogoutRequest{})
		if err != nil {
			return err
		}
		return printStatus(ctx, st)
	},
}

var loginCommand = &cli.Command{
	Name:  "login",
	Usage: "Connect and print pairing QR codes until the session is ready",
	Action: func(ctx *cli.Context) error {
		cl := getClient(ctx)
		stream, err := cl.Session.WatchEvents(ctx.Context, &wppv1.WatchEventsRequest{Namespaces: []string{"session."}})
		if err != nil {
			return err
		}
		c, cancel := call(ctx)
		st, err := cl.Session.Connect(c, &wppv1.ConnectRequest{})
		cancel()
		if err != nil {
			return err
		}
		if st.Ready {
			fmt.Fprintln(ctx.App.Writer, "already connected")
			return nil
		}
		if st.QRCode != "" {
			printQR(ctx.App.Writer, st.QRCode)
		}

		for {
			evt, err := stream.Recv()
			if err != nil {
				return err
			}
			switch {
			case evt.QRCode != "":
				printQR(ctx.App.Writer, evt.QRCode)
			case evt.Status == wppv1.StatusConnected:
				fmt.Fprintln(ctx.App.Writer, "connected")
				return nil
			case evt.Status == wppv1.StatusFailed:
				fmt.Fprintln(ctx.App.Writer, "authentication failed, retrying...")
			}
		}
	},
}

var chatsCommand = &cli.Command{
	Name:  "chats",
	Usage: "List chats, most recently active first",
	Action: func(ctx *cli.Context) error {
		c, cancel := call(ctx)
		defer cancel()
		resp, err := getClient(ctx).Chat.ListChats(c, &wppv1.ListChatsRequest{})
		if err != nil {
			return err
		}
		if ctx.Bool("json") {
			return printJSON(ctx, resp.Chats)
		}
		for _, ch := range resp.Chats {
			printChat(ctx.App.Writer, ch)
		}
		return nil
	},
}

var chatCommand = &cli.Command{
	Name:      "chat",
	Usage:     "Show one chat",
	ArgsUsage: "CHAT_ID",
	Action: func(ctx *cli.Context) error {
		id, err := requireArg(ctx, "CHAT_ID")
		if err != nil {
			return err
		}
		c, cancel := call(ctx)
		defer cancel()
		resp, err := getClient(ctx).Chat.GetChat(c, &wppv1.GetChatRequest{ChatID: id})
		if err != nil {
			return err
		}
		if ctx.Bool("json") {
			return printJSON(ctx, resp)
		}
		printChat(ctx.App.Writer, resp.Chat)
		fmt.Fprintf(ctx.App.Writer, "  %d messages stored\n", resp.MessageCount)
		return nil
	},
}

var messagesCommand = &cli.Command{
	Name:      "messages",
	Usage:     "Show a page of a chat's messages, oldest first",
	ArgsUsage: "CHAT_ID",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: 50, Usage: "page size"},
		&cli.StringFlag{Name: "before", Usage: "cursor from a previous page"},
	},
	Action: func(ctx *cli.Context) error {
		id, err := requireArg(ctx, "CHAT_ID")
		if err != nil {
			return err
		}
		c, cancel := call(ctx)
		defer cancel()
		resp, err := getClient(ctx).Chat.GetMessages(c, &wppv1.GetMessagesRequest{
			ChatID: id,
			Limit:  ctx.Int("limit"),
			Before: ctx.String("before"),
		})
		if err != nil {
			return err
		}
		if ctx.Bool("json") {
			return printJSON(ctx, resp)
		}
		for _, m := range resp.Messages {
			printMessage(ctx.App.Writer, m)
		}
		if resp.HasMore {
			fmt.Fprintf(ctx.App.Writer, "-- more: --before %s\n", resp.Cursor)
		}
		return nil
	},
}

var sendCommand = &cli.Command{
	Name:      "send",
	Usage:     "Send a text message to a chat id or phone number",
	ArgsUsage: "DEST TEXT...",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 2 {
			return errors.New("usage: wppctl send DEST TEXT...")
		}
		body := strings.Join(ctx.Args().Tail(), " ")
		c, cancel := call(ctx)
		defer cancel()
		resp, err := getClient(ctx).Chat.SendMessage(c, &wppv1.SendMessageRequest{To: ctx.Args().First(), Body: body})
		if err != nil {
			return err
		}
		if ctx.Bool("json") {
			return printJSON(ctx, resp.Message)
		}
		fmt.Fprintf(ctx.App.Writer, "sent %s to %s\n", resp.Message.ID, resp.Message.ChatID)
		return nil
	},
}

var readCommand = &cli.Command{
	Name:      "read",
	Usage:     "Mark a chat as read",
	ArgsUsage: "CHAT_ID",
	Action: func(ctx *cli.Context) error {
		id, err := requireArg(ctx, "CHAT_ID")
		if err != nil {
			return err
		}
		c, cancel := call(ctx)
		defer cancel()
		_, err = getClient(ctx).Chat.MarkRead(c, &wppv1.MarkReadRequest{ChatID: id})
		return err
	},
}

var searchCommand = &cli.Command{
	Name:      "search",
	Usage:     "Search stored message bodies",
	ArgsUsage: "QUERY",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "chat", Usage: "restrict to one chat id"},
		&cli.IntFlag{Name: "limit", Value: 50, Usage: "maximum results"},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			return errors.New("usage: wppctl search QUERY")
		}
		c, cancel := call(ctx)
		defer cancel()
		resp, err := getClient(ctx).Chat.SearchMessages(c, &wppv1.SearchMessagesRequest{
			Query:  strings.Join(ctx.Args().Slice(), " "),
			ChatID: ctx.String("chat"),
			Limit:  ctx.Int("limit"),
		})
		if err != nil {
			return err
		}
		if ctx.Bool("json") {
			return printJSON(ctx, resp.Results)
		}
		for _, r := range resp.Results {
			fmt.Fprintf(ctx.App.Writer, "%s  %s  %s\n", r.Message.ChatID, r.Message.ID, r.Snippet)
		}
		return nil
	},
}

var watchCommand = &cli.Command{
	Name:  "watch",
	Usage: "Stream daemon events until interrupted",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "ns", Usage: "event namespace prefix (session., chat., message., sync.)"},
	},
	Action: func(ctx *cli.Context) error {
		stream, err := getClient(ctx).Session.WatchEvents(ctx.Context, &wppv1.WatchEventsRequest{
			Namespaces: ctx.StringSlice("ns"),
		})
		if err != nil {
			return err
		}
		for {
			evt, err := stream.Recv()
			if errors.Is(err, io.EOF) || ctx.Context.Err() != nil {
				return nil
			}
			if err != nil {
				return err
			}
			if ctx.Bool("json") {
				if err := printJSON(ctx, evt); err != nil {
					return err
				}
				continue
			}
			printEvent(ctx.App.Writer, evt)
		}
	},
}

var sessionsCommand = &cli.Command{
	Name:  "sessions",
	Usage: "List sessions on this machine and whether their daemon runs",
	Action: func(ctx *cli.Context) error {
		names, err := session.List()
		if err != nil {
			return err
		}
		type row struct {
			Name    string    `json:"name"`
			Running bool      `json:"running"`
			PID     int       `json:"pid,omitempty"`
			Since   time.Time `json:"since,omitzero"`
		}
		rows := make([]row, 0, len(names))
		for _, n := range names {
			info, held, err := lock.Inspect(session.For(n).Lock)
			if err != nil {
				return err
			}
			rows = append(rows, row{Name: n, Running: held, PID: info.PID, Since: info.Since})
		}
		if ctx.Bool("json") {
			return printJSON(ctx, rows)
		}
		for _, r := range rows {
			state := "stopped"
			if r.Running {
				state = fmt.Sprintf("running (pid %d since %s)", r.PID, r.Since.Local().Format(time.DateTime))
			}
			fmt.Fprintf(ctx.App.Writer, "%-20s %s\n", r.Name, state)
		}
		return nil
	},
}

func requireArg(ctx *cli.Context, name string) (string, error) {
	if ctx.NArg() != 1 {
		return "", fmt.Errorf("usage: wppctl %s %s", ctx.Command.Name, name)
	}
	return ctx.Args().First(), nil
}
