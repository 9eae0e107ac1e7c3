package viz

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/picascade/internal/config"
	"github.com/san-kum/picascade/internal/experiment"
)

func newTestModel(t *testing.T, cfg *config.Config) Model {
	t.Helper()
	exp, err := experiment.New(cfg, experiment.NewRegistry())
	if err != nil {
		t.Fatalf("experiment: %v", err)
	}
	return NewModel(exp, cfg.Plant)
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTickAdvancesSimulation(t *testing.T) {
	m := newTestModel(t, config.DefaultConfig())
	m = update(t, m, TickMsg(time.Now()))

	if m.t <= 0 {
		t.Fatalf("expected time to advance, got %f", m.t)
	}
	if len(m.outputs) != 2 || len(m.outputs[0]) != m.stepsPerFrame {
		t.Errorf("expected %d samples per output, got %v", m.stepsPerFrame, len(m.outputs))
	}

	view := m.View()
	for _, want := range []string{"BATTERY", "CC", "voltage", "current", "kp"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestPauseStopsStepping(t *testing.T) {
	m := newTestModel(t, config.DefaultConfig())
	m = update(t, m, key(" "))
	if m.running {
		t.Fatal("expected paused")
	}

	m = update(t, m, TickMsg(time.Now()))
	if m.t != 0 {
		t.Errorf("paused model advanced to %f", m.t)
	}
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("view should show PAUSED")
	}
}

func TestTuneAndReset(t *testing.T) {
	m := newTestModel(t, config.GetPreset("load", "step"))
	if len(m.paramKeys) != 2 {
		t.Fatalf("expected kp and ki, got %v", m.paramKeys)
	}

	// keys are sorted: ki, kp
	m = update(t, m, key("tab"))
	m = update(t, m, key("up"))
	if got := m.params["kp"]; got <= 0.5 {
		t.Errorf("expected kp above 0.5, got %f", got)
	}
	if got := m.exp.Stage("load").KP; float64(got) <= 0.5 {
		t.Errorf("stage kp not updated, got %f", got)
	}

	m = update(t, m, TickMsg(time.Now()))
	m = update(t, m, key("r"))
	if m.t != 0 || m.outputs != nil {
		t.Error("reset should clear time and history")
	}
	if m.params["kp"] != 0.5 || m.exp.Stage("load").KP != 0.5 {
		t.Error("reset should restore gains")
	}
	if mem := m.exp.Stage("load").Memory(); mem.PreviousOutput != 0 {
		t.Errorf("reset should clear stage memory, got %+v", mem)
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, config.DefaultConfig())
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestThemeCycle(t *testing.T) {
	defer SetTheme(CurrentTheme.Name)

	before := CurrentTheme.Name
	nextTheme()
	if CurrentTheme.Name == before {
		t.Error("theme did not change")
	}
	if GetTheme("unknown").Name != ThemeCyberpunk.Name {
		t.Error("unknown theme should fall back to the default")
	}
}
