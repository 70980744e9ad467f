package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/luabind/internal/demo"
	"github.com/wippyai/luabind/runtime"
	"github.com/wippyai/luabind/signature"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	rt       *runtime.Runtime
	fixture  *demo.Fixture
	library  string
	result   string
	funcs    []funcInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type funcInfo struct {
	name   string
	sig    *signature.Signature
	params []paramInfo
}

type paramInfo struct {
	name    string
	typeStr string
	hint    string
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(library string) *interactiveModel {
	return &interactiveModel{
		library: library,
		state:   stateSelectFunc,
	}
}

type loadedMsg struct {
	err     error
	rt      *runtime.Runtime
	fixture *demo.Fixture
	funcs   []funcInfo
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadLibrary
}

func (m *interactiveModel) loadLibrary() tea.Msg {
	lib := demo.Library(m.library, nil)
	sigs, err := lib.Signatures()
	if err != nil {
		return loadedMsg{err: err}
	}

	funcs := make([]funcInfo, 0, len(sigs))
	for i, e := range lib.Entries() {
		funcs = append(funcs, funcInfo{
			name:   e.Name,
			sig:    sigs[i],
			params: paramsOf(sigs[i]),
		})
	}

	// TestFunc1 echoes to its writer; the UI shows the returned line instead.
	rt, f, err := newRuntime(io.Discard)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{funcs: funcs, rt: rt, fixture: f}
}

func paramsOf(sig *signature.Signature) []paramInfo {
	var params []paramInfo
	if sig.Shape.HasInstance() {
		params = append(params, paramInfo{
			name:    "self",
			typeStr: "*" + sig.Owner.String(),
			hint:    "pA",
		})
	}
	if sig.Shape == signature.ShapeField {
		return append(params, paramInfo{
			name:    "value",
			typeStr: sig.Results[0].String(),
			hint:    "empty reads the field",
		})
	}
	for i, p := range sig.Params {
		params = append(params, paramInfo{
			name:    fmt.Sprintf("arg%d", i+1),
			typeStr: p.String(),
			hint:    "lua expression",
		})
	}
	return params
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, m.quit()

		case "q":
			if m.state != stateInputArgs {
				return m, m.quit()
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.funcs = msg.funcs
		m.rt = msg.rt
		m.fixture = msg.fixture

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) quit() tea.Cmd {
	if m.rt != nil {
		m.rt.Close()
		m.rt = nil
	}
	return tea.Quit
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.params))
	for i, p := range f.params {
		ti := textinput.New()
		ti.Placeholder = p.hint
		ti.Prompt = p.name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

// callFunction evaluates lib.name(args...) with every input taken as a Lua
// expression. Empty inputs pass nil.
func (m *interactiveModel) callFunction() tea.Msg {
	if m.rt == nil {
		return callResultMsg{err: fmt.Errorf("library not loaded")}
	}
	f := m.funcs[m.selected]
	args := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		args[i] = strings.TrimSpace(input.Value())
		if args[i] == "" {
			args[i] = "nil"
		}
	}
	vals, err := m.rt.Eval(fmt.Sprintf("%s.%s(%s)", m.library, f.name, strings.Join(args, ", ")))
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: formatValues(vals)}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.funcs) == 0 {
		return "Loading library..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Lua Binder"))
	b.WriteString(" ")
	b.WriteString(m.library)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatFunc(f)))
			} else {
				b.WriteString(cursor + m.formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		m.writeObjects(&b)
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.params[i].typeStr))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		m.writeObjects(&b)
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) writeObjects(b *strings.Builder) {
	if m.fixture == nil {
		return
	}
	printObject(b, "pA", m.fixture.A)
	printObject(b, "pB", m.fixture.B)
	b.WriteString("\n")
}

func (m *interactiveModel) formatFunc(f funcInfo) string {
	var params []string
	for _, p := range f.params {
		params = append(params, p.name+": "+typeStyle.Render(p.typeStr))
	}
	result := ""
	switch {
	case f.sig.Shape == signature.ShapeField:
		result = " -> " + typeStyle.Render(f.sig.Results[0].String())
	case len(f.sig.Results) > 0:
		types := make([]string, len(f.sig.Results))
		for i, r := range f.sig.Results {
			types[i] = r.String()
		}
		result = " -> " + typeStyle.Render(strings.Join(types, ", "))
	}
	return funcStyle.Render(f.name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive() error {
	p := tea.NewProgram(newInteractiveModel(cfg.Library), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
