package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestBell(t *testing.T) {
	tests := []struct {
		unread int
		want   string
		absent bool
	}{
		{unread: 0, want: "", absent: true},
		{unread: 3, want: "3"},
		{unread: 150, want: "99+"},
	}
	for _, tc := range tests {
		got := Bell(tc.unread)
		if tc.absent {
			if strings.ContainsAny(got, "0123456789") {
				t.Errorf("Bell(0) = %q, want no badge", got)
			}
			continue
		}
		if !strings.Contains(got, tc.want) {
			t.Errorf("Bell(%d) = %q, want badge %q", tc.unread, got, tc.want)
		}
	}
}

func TestRenderHeaderFillsWidth(t *testing.T) {
	l := NewLayout(80, 24)
	header := l.RenderHeader("IMS Notifications", "checked 09:00", 2)
	if w := lipgloss.Width(header); w != 80 {
		t.Errorf("header width = %d, want 80", w)
	}
	if l.ContentHeight() != 22 {
		t.Errorf("ContentHeight = %d, want 22", l.ContentHeight())
	}
}

func TestDrawerWidth(t *testing.T) {
	if w := NewLayout(120, 40).DrawerWidth(); w != 40 {
		t.Errorf("DrawerWidth = %d, want 40", w)
	}
	if w := NewLayout(60, 40).DrawerWidth(); w != 36 {
		t.Errorf("DrawerWidth = %d, want minimum 36", w)
	}
	if w := NewLayout(20, 40).DrawerWidth(); w != 20 {
		t.Errorf("DrawerWidth = %d, want clamped to 20", w)
	}
}
