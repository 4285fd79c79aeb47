package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the list view bindings. It implements help.KeyMap.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Top     key.Binding
	Bottom  key.Binding
	Open    key.Binding
	Search  key.Binding
	Clear   key.Binding
	Sort    key.Binding
	Newest  key.Binding
	Popular key.Binding
	Recent  key.Binding
	Reload  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Top:     key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	Bottom:  key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
	Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Clear:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
	Sort:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
	Newest:  key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "newest")),
	Popular: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "popular")),
	Recent:  key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "last 24h")),
	Reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Sort, k.Open, k.Reload, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.Search, k.Clear, k.Open},
		{k.Sort, k.Newest, k.Popular, k.Recent},
		{k.Reload, k.Help, k.Quit},
	}
}
