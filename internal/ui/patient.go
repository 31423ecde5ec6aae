package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/flowcontrol/internal/state"
)

// PatientScreen shows the queue ticket, the journey and received notifications.
type PatientScreen struct {
	*tview.Flex
	header  *tview.TextView
	ticket  *tview.TextView
	journey *tview.Table
	notes   *tview.TextView
	footer  *tview.TextView

	onCheckIn  func()
	onRefresh  func()
	onLanguage func()
	onExit     func()
	onQuit     func()
}

func NewPatientScreen() *PatientScreen {
	s := &PatientScreen{}

	s.header = tview.NewTextView().SetDynamicColors(true)
	s.header.SetBackgroundColor(ColorBackgroundPanel)

	s.ticket = tview.NewTextView().SetDynamicColors(true).SetWrap(true)
	s.ticket.SetBorder(true).SetTitle(" Ticket ").SetTitleAlign(tview.AlignLeft)
	s.ticket.SetBackgroundColor(ColorBackground)
	s.ticket.SetBorderColor(ColorBorder)

	s.journey = tview.NewTable().SetSelectable(false, false)
	s.journey.SetBorder(true).SetTitle(" Journey ").SetTitleAlign(tview.AlignLeft)
	s.journey.SetBackgroundColor(ColorBackground)
	s.journey.SetBorderColor(ColorBorder)

	s.notes = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	s.notes.SetBorder(true).SetTitle(" Notifications ").SetTitleAlign(tview.AlignLeft)
	s.notes.SetBackgroundColor(ColorBackground)
	s.notes.SetBorderColor(ColorBorder)

	s.footer = tview.NewTextView().SetDynamicColors(true)
	s.footer.SetBackgroundColor(ColorBackgroundPanel)
	s.footer.SetText(
		"[green]c[-] check in  [green]r[-] refresh  [green]l[-] language  " +
			"[green]x[-] exit queue  [green]?[-] help  [green]q[-] quit")

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.ticket, 0, 3, false).
		AddItem(s.notes, 0, 2, false)

	content := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(left, 0, 55, false).
		AddItem(s.journey, 0, 45, false)

	s.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.header, 1, 0, false).
		AddItem(content, 0, 1, true).
		AddItem(s.footer, 1, 0, false)

	s.setupInput()
	return s
}

func (s *PatientScreen) SetCallbacks(onCheckIn, onRefresh, onLanguage, onExit, onQuit func()) {
	s.onCheckIn = onCheckIn
	s.onRefresh = onRefresh
	s.onLanguage = onLanguage
	s.onExit = onExit
	s.onQuit = onQuit
}

func (s *PatientScreen) setupInput() {
	s.Flex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		var fn func()
		switch event.Rune() {
		case 'c':
			fn = s.onCheckIn
		case 'r':
			fn = s.onRefresh
		case 'l':
			fn = s.onLanguage
		case 'x':
			fn = s.onExit
		case 'q':
			fn = s.onQuit
		default:
			return event
		}
		if fn != nil {
			fn()
		}
		return nil
	})
}

// Update redraws every panel from v. Call it on the UI goroutine.
func (s *PatientScreen) Update(v state.PatientView, now time.Time) {
	lang := "ไทย"
	if v.Language == "en" {
		lang = "English"
	}
	header := fmt.Sprintf(" [::b]Flow Control[::-]  %s  [gray]%s[-]", connectionTag(v.Connected), lang)
	if v.Loading {
		header += "  [yellow]⟳[-]"
	}
	s.header.SetText(header)

	s.ticket.SetText(ticketText(v, now))
	s.notes.SetText(notificationsText(v, now))
	s.renderJourney(v)
}

func (s *PatientScreen) renderJourney(v state.PatientView) {
	s.journey.Clear()
	if !v.HasPatient() || len(v.Patient.Journey) == 0 {
		s.journey.SetCell(0, 0, tview.NewTableCell(" No journey yet").SetTextColor(ColorTextMuted))
		return
	}
	for i, step := range v.Patient.Journey {
		icon, color := StepIcon(step.Status)
		detail := strings.ReplaceAll(string(step.Status), "_", " ")
		switch {
		case step.Position != nil && step.EstimatedWait != nil:
			detail = fmt.Sprintf("#%.0f, ~%.0f min", *step.Position, *step.EstimatedWait)
		case step.DurationMinutes != nil:
			detail = fmt.Sprintf("%.0f min", *step.DurationMinutes)
		}
		s.journey.SetCell(i, 0, tview.NewTableCell(" "+icon).SetTextColor(color))
		s.journey.SetCell(i, 1, tview.NewTableCell(stationLabel(step.Station)).SetTextColor(ColorText).SetExpansion(1))
		s.journey.SetCell(i, 2, tview.NewTableCell(detail+" ").SetTextColor(ColorTextMuted).SetAlign(tview.AlignRight))
	}
}
