package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Enter       key.Binding
	Right       key.Binding
	Back        key.Binding
	Left        key.Binding
	Select      key.Binding
	ClearCart   key.Binding
	Clean       key.Binding
	Action      key.Binding
	Undo        key.Binding
	Refresh     key.Binding
	Scan        key.Binding
	QuickScan   key.Binding
	Sort        key.Binding
	Hidden      key.Binding
	Treemap     key.Binding
	Algorithm   key.Binding
	Search      key.Binding
	ExtFilter   key.Binding
	SizeFilter  key.Binding
	ClearFilter key.Binding
	Confirm     key.Binding
	Cancel      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "expand"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "enter"),
		),
		Back: key.NewBinding(
			key.WithKeys("backspace"),
			key.WithHelp("backspace", "up"),
		),
		Left: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "toggle cart"),
		),
		ClearCart: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "empty cart"),
		),
		Clean: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "clean"),
		),
		Action: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "cycle action"),
		),
		Undo: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "undo"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Scan: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "deep scan"),
		),
		QuickScan: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "quick scan"),
		),
		Sort: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "order"),
		),
		Hidden: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "hidden"),
		),
		Treemap: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "treemap"),
		),
		Algorithm: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "layout"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		ExtFilter: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "ext"),
		),
		SizeFilter: key.NewBinding(
			key.WithKeys("z"),
			key.WithHelp("z", "min size"),
		),
		ClearFilter: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear filters"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n/esc", "cancel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// WithBindings overrides keys by binding name, e.g. {"quit": "Q,ctrl+c"}.
// Unknown names are ignored.
func (keys KeyMap) WithBindings(bindings map[string]string) KeyMap {
	named := map[string]*key.Binding{
		"up":          &keys.Up,
		"down":        &keys.Down,
		"enter":       &keys.Enter,
		"right":       &keys.Right,
		"back":        &keys.Back,
		"left":        &keys.Left,
		"select":      &keys.Select,
		"clearCart":   &keys.ClearCart,
		"clean":       &keys.Clean,
		"action":      &keys.Action,
		"undo":        &keys.Undo,
		"refresh":     &keys.Refresh,
		"scan":        &keys.Scan,
		"quickScan":   &keys.QuickScan,
		"sort":        &keys.Sort,
		"hidden":      &keys.Hidden,
		"treemap":     &keys.Treemap,
		"algorithm":   &keys.Algorithm,
		"search":      &keys.Search,
		"extFilter":   &keys.ExtFilter,
		"sizeFilter":  &keys.SizeFilter,
		"clearFilter": &keys.ClearFilter,
		"confirm":     &keys.Confirm,
		"cancel":      &keys.Cancel,
		"help":        &keys.Help,
		"quit":        &keys.Quit,
	}
	for name, value := range bindings {
		binding, ok := named[name]
		if !ok {
			continue
		}
		var list []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				list = append(list, part)
			}
		}
		if len(list) == 0 {
			continue
		}
		binding.SetKeys(list...)
		binding.SetHelp(strings.Join(list, "/"), binding.Help().Desc)
	}
	return keys
}

func (keys KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{keys.Select, keys.Clean, keys.Undo, keys.Scan, keys.Treemap, keys.Search, keys.Help, keys.Quit}
}

func (keys KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{keys.Up, keys.Down, keys.Enter, keys.Right, keys.Back, keys.Left},
		{keys.Select, keys.ClearCart, keys.Clean, keys.Action, keys.Undo, keys.Confirm, keys.Cancel},
		{keys.Scan, keys.QuickScan, keys.Refresh, keys.Sort, keys.Hidden, keys.Treemap, keys.Algorithm},
		{keys.Search, keys.ExtFilter, keys.SizeFilter, keys.ClearFilter, keys.Help, keys.Quit},
	}
}
