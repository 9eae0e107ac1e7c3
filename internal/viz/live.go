package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/picascade/internal/experiment"
	"github.com/san-kum/picascade/internal/sim"
)

const (
	graphWidth      = 60
	graphHeight     = 6
	historyCapacity = 600
	frameRate       = 30
)

type TickMsg time.Time

// Model steps an experiment's simulator in real time.
type Model struct {
	exp           *experiment.Experiment
	sim           *sim.Simulator
	cfg           sim.Config
	title         string
	outputNames   []string
	x             sim.State
	y             sim.State
	u             sim.Control
	t             float64
	stepsPerFrame int
	running       bool
	outputs       [][]float64
	commands      []float64
	params        map[string]float64
	initialParams map[string]float64
	paramKeys     []string
	selected      int
}

// NewModel prepares exp for interactive stepping. Each frame advances
// simulated time by one frame period.
func NewModel(exp *experiment.Experiment, title string) Model {
	cfg := exp.SimConfig()
	s := exp.GetSimulator()
	s.Prepare(cfg)

	steps := int(1.0/(frameRate*cfg.Dt) + 0.5)
	if steps < 1 {
		steps = 1
	}

	m := Model{
		exp:           exp,
		sim:           s,
		cfg:           cfg,
		title:         title,
		outputNames:   outputNames(exp.Config().Plant),
		x:             exp.Plant().InitialState(),
		stepsPerFrame: steps,
		running:       true,
		params:        make(map[string]float64),
		initialParams: make(map[string]float64),
	}

	if c, ok := s.Controller().(sim.Configurable); ok {
		for k, v := range c.GetParams() {
			if !strings.HasSuffix(k, "kp") && !strings.HasSuffix(k, "ki") {
				continue
			}
			m.params[k] = v
			m.initialParams[k] = v
			m.paramKeys = append(m.paramKeys, k)
		}
	}
	sort.Strings(m.paramKeys)

	return m
}

func outputNames(plantName string) []string {
	switch plantName {
	case "battery":
		return []string{"voltage", "current"}
	default:
		return []string{"output"}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "tab":
			m.cycleParam()
		case "up", "k":
			m.adjustParam(1.05)
		case "down", "j":
			m.adjustParam(0.95)
		case "t":
			nextTheme()
		}
	case TickMsg:
		if m.running {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) advance() {
	for i := 0; i < m.stepsPerFrame; i++ {
		next, y, u := m.sim.Step(m.x, m.t, m.cfg.Dt)
		if !next.IsValid() {
			m.running = false
			return
		}
		m.x, m.y, m.u = next, y, u
		m.t += m.cfg.Dt
		m.record()
	}
}

func (m *Model) record() {
	if m.outputs == nil {
		m.outputs = make([][]float64, len(m.y))
	}
	for i := range m.outputs {
		if i < len(m.y) {
			m.outputs[i] = appendCapped(m.outputs[i], m.y[i])
		}
	}
	if len(m.u) > 0 {
		m.commands = appendCapped(m.commands, m.u[0])
	}
}

func appendCapped(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

func (m *Model) cycleParam() {
	if len(m.paramKeys) == 0 {
		return
	}
	m.selected = (m.selected + 1) % len(m.paramKeys)
}

func (m *Model) adjustParam(factor float64) {
	if len(m.paramKeys) == 0 {
		return
	}
	key := m.paramKeys[m.selected]
	newVal := m.params[key] * factor
	if newVal == 0 && factor > 1 {
		newVal = 0.01
	}
	c, ok := m.sim.Controller().(sim.Configurable)
	if !ok {
		return
	}
	if err := c.SetParam(key, newVal); err == nil {
		m.params[key] = newVal
	}
}

// reset restores the initial state, controller memory and gains.
func (m *Model) reset() {
	m.t = 0
	m.x = m.exp.Plant().InitialState()
	m.y, m.u = nil, nil
	m.outputs, m.commands = nil, nil
	if c, ok := m.sim.Controller().(sim.Configurable); ok {
		for k, v := range m.initialParams {
			m.params[k] = v
			_ = c.SetParam(k, v)
		}
	}
	m.sim.Prepare(m.cfg)
}

// View renders the TUI interface.
func (m Model) View() string {
	var graphs strings.Builder
	for i, h := range m.outputs {
		if len(h) < 2 {
			continue
		}
		name := fmt.Sprintf("y%d", i)
		if i < len(m.outputNames) {
			name = m.outputNames[i]
		}
		graphs.WriteString(graphStyle().Render(plot(h, name)) + "\n")
	}
	if len(m.commands) > 1 {
		graphs.WriteString(graphStyle().Render(plot(m.commands, "command")) + "\n")
	}

	var s strings.Builder
	s.WriteString(headerStyle().Render(strings.ToUpper(m.title)) + "\n")
	status := "RUNNING"
	if !m.running {
		status = "PAUSED"
	}
	s.WriteString(status + "\n\n")

	s.WriteString(row("Time", fmt.Sprintf("%.2fs", m.t)))
	if ch, ok := m.sim.Controller().(*experiment.ChargerController); ok {
		mode := ch.Mode()
		s.WriteString(labelStyle().Render("Mode") + modeStyle(mode).Render(strings.ToUpper(mode.String())) + "\n")
	}
	for i, v := range m.y {
		name := fmt.Sprintf("y%d", i)
		if i < len(m.outputNames) {
			name = m.outputNames[i]
		}
		s.WriteString(row(name, fmt.Sprintf("%.3f", v)))
	}
	if len(m.u) > 0 {
		s.WriteString(row("command", fmt.Sprintf("%.3f", m.u[0])))
	}

	s.WriteString("\nSTAGES\n")
	for _, name := range m.exp.StageNames() {
		st := m.exp.Stage(name)
		if st == nil {
			continue
		}
		mem := st.Memory()
		s.WriteString(activeParamStyle().Render(name) + "\n")
		s.WriteString(row("  ref", fmt.Sprintf("%.3f", st.ReferencePoint)))
		s.WriteString(row("  error", fmt.Sprintf("%.3f", mem.Error)))
		s.WriteString(row("  prev err", fmt.Sprintf("%.3f", mem.PreviousError)))
		s.WriteString(row("  integral", fmt.Sprintf("%.3f", mem.PreviousOutput)))
	}

	s.WriteString("\nGAINS\n")
	if len(m.paramKeys) == 0 {
		s.WriteString(labelStyle().Render("  (none)") + "\n")
	}
	for i, k := range m.paramKeys {
		line := fmt.Sprintf("%-12s %.4f", k, m.params[k])
		if i == m.selected {
			s.WriteString(activeParamStyle().Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + valueStyle().Render(line) + "\n")
		}
	}

	s.WriteString(helpStyle().Render("SP:Pause R:Reset Q:Quit\nTab:Gain ↑↓:Tune T:Theme"))

	return lipgloss.JoinHorizontal(lipgloss.Top, graphs.String(), statsStyle().Render(s.String()))
}

func row(label, value string) string {
	return labelStyle().Render(label) + valueStyle().Render(value) + "\n"
}

func plot(data []float64, caption string) string {
	return asciigraph.Plot(data,
		asciigraph.Height(graphHeight),
		asciigraph.Width(graphWidth),
		asciigraph.Caption(caption),
	)
}
