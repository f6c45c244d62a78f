package keys

import (
	"github.com/elliotchance/orderedmap/v3"
	"github.com/gdamore/tcell/v2"
)

// Action represents a keybinding action.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Visible     bool
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

type bindings = orderedmap.OrderedMap[string, *Action]

// Registry holds keybindings organized by scope. Bindings keep their
// registration order, so hints render the same way every time.
type Registry struct {
	global *bindings
	views  map[string]*bindings
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{
		global: orderedmap.NewOrderedMap[string, *Action](),
		views:  make(map[string]*bindings),
	}
}

// AddGlobal registers a global keybinding.
func (r *Registry) AddGlobal(name string, action *Action) {
	r.global.Set(name, action)
}

// AddView registers a view-specific keybinding.
func (r *Registry) AddView(view, name string, action *Action) {
	if r.views[view] == nil {
		r.views[view] = orderedmap.NewOrderedMap[string, *Action]()
	}
	r.views[view].Set(name, action)
}

// Hints returns visible keybinding descriptions for a given view, view
// bindings first.
func (r *Registry) Hints(view string) []string {
	var hints []string
	collect := func(m *bindings) {
		for el := m.Front(); el != nil; el = el.Next() {
			if el.Value.Visible {
				hints = append(hints, el.Value.Description)
			}
		}
	}
	if vb, ok := r.views[view]; ok {
		collect(vb)
	}
	collect(r.global)
	return hints
}

// HandleEvent dispatches a key event to matching action in the given view.
// Returns true if a handler matched.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	if vb, ok := r.views[view]; ok && dispatch(vb, ev) {
		return true
	}
	return dispatch(r.global, ev)
}

func dispatch(m *bindings, ev *tcell.EventKey) bool {
	for el := m.Front(); el != nil; el = el.Next() {
		if el.Value.Matches(ev) {
			el.Value.Handler()
			return true
		}
	}
	return false
}
