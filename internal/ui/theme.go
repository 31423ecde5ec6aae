package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/zsprackett/flowcontrol/internal/api"
	"github.com/zsprackett/flowcontrol/internal/state"
)

// Theme colors for the TUI.
var (
	ColorBackground      = tcell.NewHexColor(0x1e1e2e)
	ColorBackgroundPanel = tcell.NewHexColor(0x181825)
	ColorBackgroundElem  = tcell.NewHexColor(0x313244)
	ColorPrimary         = tcell.NewHexColor(0x89b4fa) // blue
	ColorAccent          = tcell.NewHexColor(0xcba6f7) // mauve
	ColorText            = tcell.NewHexColor(0xcdd6f4)
	ColorTextMuted       = tcell.NewHexColor(0x6c7086)
	ColorSuccess         = tcell.NewHexColor(0xa6e3a1) // green
	ColorWarning         = tcell.NewHexColor(0xf9e2af) // yellow
	ColorError           = tcell.NewHexColor(0xf38ba8) // red
	ColorBorder          = tcell.NewHexColor(0x45475a)
	ColorSelected        = tcell.NewHexColor(0x89b4fa)
	ColorSelectedText    = tcell.NewHexColor(0x1e1e2e)
)

const (
	IconOptimal  = "●"
	IconNormal   = "◐"
	IconWarning  = "▲"
	IconCritical = "✗"
	IconUnknown  = "○"
)

// StationIcon maps a station status to its table glyph and color.
func StationIcon(status api.StationStatus) (string, tcell.Color) {
	switch status {
	case api.StationOptimal:
		return IconOptimal, ColorSuccess
	case api.StationNormal:
		return IconNormal, ColorPrimary
	case api.StationWarning:
		return IconWarning, ColorWarning
	case api.StationCritical:
		return IconCritical, ColorError
	default:
		return IconUnknown, ColorTextMuted
	}
}

// StepIcon maps a journey step status to a glyph and color.
func StepIcon(status api.StepStatus) (string, tcell.Color) {
	switch status {
	case api.StepCompleted:
		return "✓", ColorSuccess
	case api.StepInProgress:
		return "▶", ColorPrimary
	case api.StepWaiting:
		return "◐", ColorWarning
	case api.StepSkipped:
		return "–", ColorTextMuted
	default:
		return "○", ColorTextMuted
	}
}

// severityTag is the tview color tag for an alert severity.
func severityTag(severity string) string {
	switch severity {
	case "critical":
		return "red"
	case "warning":
		return "yellow"
	default:
		return "blue"
	}
}

func healthTag(h state.Health) string {
	switch h {
	case state.HealthCritical:
		return "red"
	case state.HealthWarning:
		return "yellow"
	default:
		return "green"
	}
}
