package app

import (
	"context"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/ims-notify/internal/store"
	"github.com/nhle/ims-notify/internal/theme"
)

// themeLoadedMsg carries the persisted theme mode.
type themeLoadedMsg struct {
	mode theme.Mode
}

// loadTheme reads the persisted theme mode. A missing or unreadable value
// falls back to dark.
func (m Model) loadTheme() tea.Cmd {
	kv := m.svc.KV
	return func() tea.Msg {
		v, ok, err := kv.Get(context.Background(), store.KeyThemeMode)
		if err != nil {
			log.Printf("app: loading theme: %v", err)
		}
		if !ok {
			return themeLoadedMsg{mode: theme.ModeDark}
		}
		return themeLoadedMsg{mode: theme.ParseMode(v)}
	}
}

// setTheme applies mode immediately and persists it.
func (m *Model) setTheme(mode theme.Mode) tea.Cmd {
	m.mode = mode
	theme.Apply(mode)

	kv := m.svc.KV
	return func() tea.Msg {
		if err := kv.Set(context.Background(), store.KeyThemeMode, string(mode)); err != nil {
			log.Printf("app: saving theme: %v", err)
		}
		return nil
	}
}

// Mode returns the active theme mode.
func (m Model) Mode() theme.Mode { return m.mode }
