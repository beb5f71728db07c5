package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/wasm-trampoline/engine"
	"github.com/wippyai/wasm-trampoline/hosts"
	"github.com/wippyai/wasm-trampoline/linker"
)

type interactiveModel struct {
	err      error
	inst     *linker.Instance[hosts.State]
	filename string
	result   string
	state    string
	exports  []engine.Export
	inputs   []textinput.Model
	selected int
	focusIdx int
	mode     modelMode
}

type modelMode int

const (
	modeSelectExport modelMode = iota
	modeInputArgs
	modeShowResult
)

func newInteractiveModel(filename string, inst *linker.Instance[hosts.State]) *interactiveModel {
	exports := append([]engine.Export(nil), inst.Exports()...)
	sort.Slice(exports, func(i, j int) bool { return exports[i].Name < exports[j].Name })
	return &interactiveModel{
		filename: filename,
		inst:     inst,
		exports:  exports,
		mode:     modeSelectExport,
	}
}

type callResultMsg struct {
	err    error
	result string
	state  string
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.mode != modeInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.mode == modeSelectExport && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.mode == modeSelectExport && m.selected < len(m.exports)-1 {
				m.selected++
			}

		case "enter":
			switch m.mode {
			case modeSelectExport:
				if len(m.exports) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callExport
				}
				m.mode = modeInputArgs

			case modeInputArgs:
				return m, m.callExport

			case modeShowResult:
				m.reset()
			}

		case "tab":
			if m.mode == modeInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.mode {
			case modeInputArgs:
				m.mode = modeSelectExport
				m.inputs = nil
			case modeShowResult:
				m.reset()
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = msg.state
		m.mode = modeShowResult
	}

	if m.mode == modeInputArgs {
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

func (m *interactiveModel) reset() {
	m.mode = modeSelectExport
	m.result = ""
	m.err = nil
}

func (m *interactiveModel) prepareInputs() {
	e := m.exports[m.selected]
	m.inputs = make([]textinput.Model, len(e.Signature.Params))
	for i, p := range e.Signature.Params {
		ti := textinput.New()
		ti.Placeholder = engine.TypeName(p)
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callExport() tea.Msg {
	ctx := context.Background()
	e := m.exports[m.selected]

	values := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		values[i] = input.Value()
	}
	args, err := convertArgs(e.Signature, values)
	if err != nil {
		return callResultMsg{err: err}
	}

	res, err := m.inst.Invoke(ctx, e.Name, args...)
	msg := callResultMsg{err: err, result: formatResults(res)}
	_ = m.inst.WithContext(ctx, func(_ context.Context, s *hosts.State) error {
		msg.state = fmt.Sprintf("count=%d slept=%dms log=%d", s.Count, s.Slept, len(s.Log))
		return nil
	})
	return msg
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Trampoline"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if len(m.exports) == 0 {
		b.WriteString("The module has no exports.\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	switch m.mode {
	case modeSelectExport:
		b.WriteString("Select an export to call:\n\n")
		for i, e := range m.exports {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + formatExport(e)))
			} else {
				b.WriteString("  " + formatExport(e))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case modeInputArgs:
		e := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(e.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(engine.TypeName(e.Signature.Params[i])))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case modeShowResult:
		e := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(e.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		if m.state != "" {
			b.WriteString("\n\n")
			b.WriteString(typeStyle.Render("host state: " + m.state))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatExport(e engine.Export) string {
	return funcStyle.Render(e.Name) + " " + typeStyle.Render(e.Signature.String())
}

func runInteractive(filename string, inst *linker.Instance[hosts.State]) error {
	p := tea.NewProgram(newInteractiveModel(filename, inst), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
