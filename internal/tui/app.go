package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppbridge/internal/api/wppv1"
	"github.com/matheus3301/wppbridge/internal/tui/client"
	"github.com/matheus3301/wppbridge/internal/tui/keys"
	"github.com/matheus3301/wppbridge/internal/tui/model"
	"github.com/matheus3301/wppbridge/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	pageChats  = "chats"
	pageChat   = "chat"
	pageSearch = "search"
	pageAuth   = "auth"

	flashTTL = 5 * time.Second
	// Watch stream retry delay after the daemon drops it.
	rewatchDelay = 2 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	vm        *model.ViewModel
	grpc      *client.Client
	registry  *keys.Registry
	statusBar *views.StatusBar
	chatList  *views.ChatList
	msgView   *views.MessageView
	composer  *views.Composer
	searchV   *views.SearchView
	authView  *views.AuthView
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        model.NewViewModel(c),
		grpc:      c,
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(),
		chatList:  views.NewChatList(),
		msgView:   views.NewMessageView(),
		composer:  views.NewComposer(),
		searchV:   views.NewSearchView(),
		authView:  views.NewAuthView(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetSession(sessionName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func runeAction(r rune, desc string, fn func()) *keys.Action {
	return &keys.Action{Key: tcell.KeyRune, Rune: r, Description: desc, Visible: true, Handler: fn}
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", runeAction('q', "q:quit", a.app.Stop))
	a.registry.AddGlobal("search", runeAction('s', "s:search", a.showSearch))
	a.registry.AddGlobal("connect", runeAction('c', "c:connect", func() {
		a.async("Connect failed", func() error { return a.vm.Connect(a.ctx) })
	}))
	a.registry.AddGlobal("logout", runeAction('L', "L:logout", func() {
		a.async("Logout failed", func() error { return a.vm.Logout(a.ctx) })
	}))

	a.registry.AddView(pageChats, "refresh", runeAction('R', "R:refresh", func() {
		a.async("Refresh failed", func() error { return a.vm.LoadChats(a.ctx) })
	}))

	a.registry.AddView(pageChat, "compose", runeAction('i', "i:compose", func() {
		a.app.SetFocus(a.composer.InputField)
	}))
	a.registry.AddView(pageChat, "older", runeAction('o', "o:older", a.loadOlder))
	a.registry.AddView(pageChat, "read", runeAction('r', "r:read", func() {
		chatID := a.vm.ActiveChat()
		if chatID == "" {
			return
		}
		a.async("Mark read failed", func() error {
			if err := a.vm.MarkRead(a.ctx, chatID); err != nil {
				return err
			}
			return a.vm.LoadChats(a.ctx)
		})
	}))
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(row, col int) {
		if id := a.chatList.SelectedChat(); id != "" {
			a.openChat(id)
		}
	})

	a.composer.SetOnSend(func(text string) {
		chatID := a.vm.ActiveChat()
		if chatID == "" {
			return
		}
		go func() {
			if err := a.vm.SendText(a.ctx, chatID, text); err != nil {
				a.vm.Flash.Error("Send failed: "+err.Error(), flashTTL)
			}
			_ = a.vm.LoadMessages(a.ctx, chatID)
			a.app.QueueUpdateDraw(func() {
				a.msgView.Update(a.vm.GetMessages(), a.vm.HasMore(), false)
				a.showFlash()
			})
		}()
	})

	a.searchV.SetOnQuery(func(query string) {
		if strings.TrimSpace(query) == "" {
			return
		}
		go func() {
			results, err := a.vm.SearchMessages(a.ctx, query)
			if err != nil {
				a.flash("Search failed: " + err.Error())
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.searchV.Update(results, a.vm.ChatName)
				a.app.SetFocus(a.searchV.Results())
			})
		}()
	})
	a.searchV.SetOnOpen(a.openChat)
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage(pageChats, a.chatList, true, true)
	a.pages.AddPage(pageChat, chatFlex, true, false)
	a.pages.AddPage(pageSearch, a.searchV, true, false)
	a.pages.AddPage(pageAuth, a.authView, true, false)
	a.pages.SetChangedFunc(func() {
		page, _ := a.pages.GetFrontPage()
		a.statusBar.SetHints(a.registry.Hints(page))
	})

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			if _, ok := a.app.GetFocus().(*tview.InputField); ok && currentPage == pageChat {
				a.app.SetFocus(a.msgView)
				return nil
			}
			switch currentPage {
			case pageChat, pageSearch, pageAuth:
				a.showChats()
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}
		return event
	})
}

// async runs fn off the UI goroutine and flashes its error, if any.
func (a *App) async(failure string, fn func() error) {
	go func() {
		if err := fn(); err != nil {
			a.flash(failure + ": " + err.Error())
			return
		}
		a.app.QueueUpdateDraw(a.render)
	}()
}

// flash reports a failure on the status bar.
func (a *App) flash(msg string) {
	a.vm.Flash.Error(msg, flashTTL)
	a.app.QueueUpdateDraw(a.showFlash)
}

func (a *App) showFlash() {
	msg, level := a.vm.Flash.Current()
	a.statusBar.SetFlash(msg, level == model.FlashError)
}

func (a *App) openChat(chatID string) {
	go func() {
		if err := a.vm.LoadMessages(a.ctx, chatID); err != nil {
			a.flash("Load failed: " + err.Error())
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.SetChatName(a.vm.ChatName(chatID))
			a.msgView.Update(a.vm.GetMessages(), a.vm.HasMore(), false)
			a.pages.SwitchToPage(pageChat)
			a.app.SetFocus(a.msgView)
		})
	}()
}

func (a *App) loadOlder() {
	go func() {
		ok, err := a.vm.LoadOlder(a.ctx)
		if err != nil {
			a.flash("Load failed: " + err.Error())
			return
		}
		if !ok {
			a.vm.Flash.Set("No older messages", flashTTL)
			a.app.QueueUpdateDraw(a.showFlash)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.Update(a.vm.GetMessages(), a.vm.HasMore(), true)
		})
	}()
}

func (a *App) showSearch() {
	a.pages.SwitchToPage(pageSearch)
	a.app.SetFocus(a.searchV.Input())
}

func (a *App) showChats() {
	a.pages.SwitchToPage(pageChats)
	a.app.SetFocus(a.chatList)
}

// render redraws every view from the view model. Must run on the UI
// goroutine.
func (a *App) render() {
	a.chatList.Update(a.vm.GetChats())
	a.showFlash()

	ss := a.vm.GetSessionStatus()
	if ss == nil {
		return
	}
	a.statusBar.SetStatus(ss.Status)
	a.statusBar.SetReady(ss.Ready, ss.Number)

	page, _ := a.pages.GetFrontPage()
	switch {
	case ss.Status == wppv1.StatusQR && ss.QRCode != "":
		var issued time.Time
		if ss.QRGeneratedAtMs > 0 {
			issued = time.UnixMilli(ss.QRGeneratedAtMs)
		}
		a.authView.ShowQR(ss.QRCode, issued)
		if page != pageAuth {
			a.pages.SwitchToPage(pageAuth)
		}
	case page == pageAuth && ss.Ready:
		a.showChats()
	case page == pageAuth:
		a.authView.ShowMessage("Session " + ss.Status + "...")
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		_ = a.vm.LoadSessionStatus(a.ctx)
		_ = a.vm.LoadChats(a.ctx)
		a.app.QueueUpdateDraw(a.render)
		a.watch()
	}()

	a.statusBar.SetHints(a.registry.Hints(pageChats))
	return a.app.Run()
}

// watch follows daemon events until the app stops, resubscribing when the
// stream breaks.
func (a *App) watch() {
	for a.ctx.Err() == nil {
		err := a.follow()
		if a.ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, io.EOF) {
			a.flash("Event stream lost: " + err.Error())
		}
		select {
		case <-time.After(rewatchDelay):
		case <-a.ctx.Done():
			return
		}
		// Catch up on what happened while disconnected.
		_ = a.vm.LoadSessionStatus(a.ctx)
		_ = a.vm.LoadChats(a.ctx)
		a.app.QueueUpdateDraw(a.render)
	}
}

func (a *App) follow() error {
	stream, err := a.grpc.Session.WatchEvents(a.ctx, &wppv1.WatchEventsRequest{})
	if err != nil {
		return err
	}
	for {
		evt, err := stream.Recv()
		if err != nil {
			return err
		}
		a.apply(evt)
	}
}

// apply refreshes the parts of the view model an event touches.
func (a *App) apply(evt *wppv1.Event) {
	switch {
	case strings.HasPrefix(evt.Kind, "session."):
		_ = a.vm.LoadSessionStatus(a.ctx)
		if evt.Status == wppv1.StatusConnected {
			_ = a.vm.LoadChats(a.ctx)
		}
		a.app.QueueUpdateDraw(a.render)
	case strings.HasPrefix(evt.Kind, "chat."), strings.HasPrefix(evt.Kind, "sync."):
		_ = a.vm.LoadChats(a.ctx)
		a.app.QueueUpdateDraw(a.render)
	case strings.HasPrefix(evt.Kind, "message."):
		_ = a.vm.LoadChats(a.ctx)
		if evt.Message == nil || evt.Message.ChatID != a.vm.ActiveChat() {
			a.app.QueueUpdateDraw(a.render)
			return
		}
		_ = a.vm.LoadMessages(a.ctx, evt.Message.ChatID)
		a.app.QueueUpdateDraw(func() {
			a.render()
			if page, _ := a.pages.GetFrontPage(); page == pageChat {
				a.msgView.Update(a.vm.GetMessages(), a.vm.HasMore(), false)
			}
		})
	case strings.HasPrefix(evt.Kind, "watch."):
		// Events were lost; resync everything that may have changed.
		_ = a.vm.LoadSessionStatus(a.ctx)
		_ = a.vm.LoadChats(a.ctx)
		if id := a.vm.ActiveChat(); id != "" {
			_ = a.vm.LoadMessages(a.ctx, id)
		}
		a.app.QueueUpdateDraw(a.render)
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
