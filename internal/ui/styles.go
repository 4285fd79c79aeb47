package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorError     = lipgloss.Color("196") // Red
	colorGold      = lipgloss.Color("220") // Binance yellow
)

// Header style for the title line.
var Header = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorGold).
	Padding(0, 1)

// SelectedMarker marks the card under the cursor.
var SelectedMarker = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// AuthorStyle for the author label on cards.
var AuthorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255"))

// MetaItem style for ages and counters.
var MetaItem = lipgloss.NewStyle().
	Foreground(colorSecondary)

// KeywordBadge style for keyword tags.
var KeywordBadge = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

// StatsLabel style for stats field names.
var StatsLabel = lipgloss.NewStyle().
	Foreground(colorMuted)

// StatsValue style for stats numbers.
var StatsValue = lipgloss.NewStyle().
	Foreground(colorGold).
	Bold(true)

// StatusOnline style for the live indicator.
var StatusOnline = lipgloss.NewStyle().
	Foreground(colorSuccess)

// StatusOffline style for the disconnected indicator.
var StatusOffline = lipgloss.NewStyle().
	Foreground(colorError)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// SuccessToast style for update notices.
var SuccessToast = lipgloss.NewStyle().
	Foreground(lipgloss.Color("0")).
	Background(colorSuccess).
	Padding(0, 1)

// ErrorToast style for error notices.
var ErrorToast = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(colorError).
	Bold(true).
	Padding(0, 1)

// EmptyStyle for the no results placeholder.
var EmptyStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)

// FilterBar style for the search input bar.
var FilterBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("240")).
	Padding(0, 1)

// FilterBarCount style for the view count.
var FilterBarCount = lipgloss.NewStyle().
	Foreground(colorSecondary)

// DetailFrame surrounds the detail panel.
var DetailFrame = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(0, 1)
