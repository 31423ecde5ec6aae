package ui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/flowcontrol/internal/state"
)

// AdminCallbacks are the dashboard actions bound to keys. Any may be nil.
type AdminCallbacks struct {
	Refresh         func()
	ToggleAuto      func()
	ChangeInterval  func(delta time.Duration)
	Simulate        func(station string)
	Resolve         func(station string)
	SelectStation   func(station string)
	Apply           func(alertID string, idx int)
	Dismiss         func(alertID string)
	ToggleDismissed func()
	ClearDismissed  func()
	Report          func()
	Chat            func()
	Quit            func()
}

// AdminScreen is the dashboard: station table, alert list and the selected
// alert's recommendations.
type AdminScreen struct {
	*tview.Flex
	app      *tview.Application
	header   *tview.TextView
	stations *tview.Table
	alerts   *tview.Table
	detail   *tview.TextView
	footer   *tview.TextView

	cb        AdminCallbacks
	view      state.DashboardView
	shown     []state.Alert
	rendering bool
}

func NewAdminScreen(app *tview.Application) *AdminScreen {
	s := &AdminScreen{app: app}

	s.header = tview.NewTextView().SetDynamicColors(true)
	s.header.SetBackgroundColor(ColorBackgroundPanel)

	selected := tcell.StyleDefault.Background(ColorSelected).Foreground(ColorSelectedText)

	s.stations = tview.NewTable().SetSelectable(true, false).SetFixed(1, 0).SetSelectedStyle(selected)
	s.stations.SetBorder(true).SetTitle(" Stations ").SetTitleAlign(tview.AlignLeft)
	s.stations.SetBackgroundColor(ColorBackground)
	s.stations.SetBorderColor(ColorBorder)
	s.stations.SetSelectionChangedFunc(func(row, _ int) {
		if s.rendering || row < 1 || row > len(s.view.Stations) || s.cb.SelectStation == nil {
			return
		}
		s.cb.SelectStation(s.view.Stations[row-1].Station)
	})

	s.alerts = tview.NewTable().SetSelectable(true, false).SetSelectedStyle(selected)
	s.alerts.SetBorder(true).SetTitle(" Alerts ").SetTitleAlign(tview.AlignLeft)
	s.alerts.SetBackgroundColor(ColorBackground)
	s.alerts.SetBorderColor(ColorBorder)
	s.alerts.SetSelectionChangedFunc(func(int, int) {
		if !s.rendering {
			s.renderDetail()
		}
	})

	s.detail = tview.NewTextView().SetDynamicColors(true).SetWrap(true).SetScrollable(true)
	s.detail.SetBorder(true).SetTitle(" Recommendations ").SetTitleAlign(tview.AlignLeft)
	s.detail.SetBackgroundColor(ColorBackground)
	s.detail.SetBorderColor(ColorBorder)

	s.footer = tview.NewTextView().SetDynamicColors(true)
	s.footer.SetBackgroundColor(ColorBackgroundPanel)
	s.footer.SetText(
		"[green]r[-] refresh  [green]a[-] auto  [green]+/-[-] interval  [green]b[-] bottleneck  " +
			"[green]v[-] resolve  [green]Tab[-] alerts  [green]p[-] report  [green]s[-] supervisor  " +
			"[green]?[-] help  [green]q[-] quit")

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.alerts, 0, 1, false).
		AddItem(s.detail, 0, 1, false)

	content := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(s.stations, 0, 55, true).
		AddItem(right, 0, 45, false)

	s.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.header, 1, 0, false).
		AddItem(content, 0, 1, true).
		AddItem(s.footer, 1, 0, false)

	s.setupInput()
	return s
}

func (s *AdminScreen) SetCallbacks(cb AdminCallbacks) { s.cb = cb }

// Focus target after dialogs close.
func (s *AdminScreen) Table() *tview.Table { return s.stations }

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

func (s *AdminScreen) setupInput() {
	s.Flex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyTab || event.Key() == tcell.KeyBacktab {
			if s.alerts.HasFocus() {
				s.app.SetFocus(s.stations)
			} else {
				s.app.SetFocus(s.alerts)
			}
			return nil
		}

		r := event.Rune()
		if s.alerts.HasFocus() {
			if a, ok := s.selectedAlert(); ok {
				switch {
				case r >= '1' && r <= '9':
					if s.cb.Apply != nil {
						s.cb.Apply(a.AlertID, int(r-'1'))
					}
					return nil
				case r == 'd':
					if s.cb.Dismiss != nil {
						s.cb.Dismiss(a.AlertID)
					}
					return nil
				}
			}
		}

		switch r {
		case 'r':
			call(s.cb.Refresh)
		case 'a':
			call(s.cb.ToggleAuto)
		case '+':
			if s.cb.ChangeInterval != nil {
				s.cb.ChangeInterval(time.Second)
			}
		case '-':
			if s.cb.ChangeInterval != nil {
				s.cb.ChangeInterval(-time.Second)
			}
		case 'b', 'v':
			station := s.selectedStation()
			if station == "" {
				return nil
			}
			if r == 'b' && s.cb.Simulate != nil {
				s.cb.Simulate(station)
			} else if r == 'v' && s.cb.Resolve != nil {
				s.cb.Resolve(station)
			}
		case 'D':
			call(s.cb.ToggleDismissed)
		case 'C':
			call(s.cb.ClearDismissed)
		case 'p':
			call(s.cb.Report)
		case 's':
			call(s.cb.Chat)
		case 'q':
			call(s.cb.Quit)
		case 'j':
			return tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)
		case 'k':
			return tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)
		default:
			return event
		}
		return nil
	})
}

func (s *AdminScreen) selectedStation() string {
	row, _ := s.stations.GetSelection()
	if row < 1 || row > len(s.view.Stations) {
		return ""
	}
	return s.view.Stations[row-1].Station
}

func (s *AdminScreen) selectedAlert() (state.Alert, bool) {
	row, _ := s.alerts.GetSelection()
	if row < 0 || row >= len(s.shown) {
		return state.Alert{}, false
	}
	return s.shown[row], true
}

// Update redraws the screen from v. Call it on the UI goroutine.
func (s *AdminScreen) Update(v state.DashboardView, now time.Time) {
	s.rendering = true
	defer func() { s.rendering = false }()

	s.view = v
	header := summaryText(v, now)
	if v.Err != "" {
		header += "  [red]" + tview.Escape(v.Err) + "[-]"
	}
	s.header.SetText(header)
	s.renderStations()
	s.renderAlerts()
	s.renderDetail()
}

func (s *AdminScreen) renderStations() {
	s.stations.Clear()
	headers := []string{"", "Station", "Queue", "Wait", "Per hr", "Staff"}
	for col, h := range headers {
		s.stations.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(ColorTextMuted).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold))
	}
	selectedRow := 1
	for i, st := range s.view.Stations {
		row := i + 1
		icon, color := StationIcon(st.Status)
		name := stationLabel(st.Station)
		if s.view.IsBottleneck(st.Station) {
			name += " ⚠"
		}
		s.stations.SetCell(row, 0, tview.NewTableCell(" "+icon).SetTextColor(color))
		s.stations.SetCell(row, 1, tview.NewTableCell(tview.Escape(name)).SetTextColor(ColorText).SetExpansion(1))
		s.stations.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%d", st.QueueLength)).SetAlign(tview.AlignRight).SetTextColor(color))
		s.stations.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%.0fm", st.AverageWaitMinutes)).SetAlign(tview.AlignRight).SetTextColor(ColorText))
		s.stations.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("%.1f", st.ThroughputPerHour)).SetAlign(tview.AlignRight).SetTextColor(ColorText))
		s.stations.SetCell(row, 5, tview.NewTableCell(fmt.Sprintf("%d ", st.ActiveStaff)).SetAlign(tview.AlignRight).SetTextColor(ColorText))
		if st.Station == s.view.SelectedStation {
			selectedRow = row
		}
	}
	if len(s.view.Stations) > 0 {
		s.stations.Select(selectedRow, 0)
	}
}

func (s *AdminScreen) renderAlerts() {
	prev, _ := s.selectedAlert()
	s.shown = s.view.VisibleAlerts()

	s.alerts.Clear()
	if len(s.shown) == 0 {
		s.alerts.SetCell(0, 0, tview.NewTableCell(" No active alerts").SetTextColor(ColorSuccess).SetSelectable(false))
		return
	}
	selected := 0
	for i, a := range s.shown {
		color := ColorText
		switch {
		case a.Dismissed:
			color = ColorTextMuted
		case a.Severity == "critical":
			color = ColorError
		case a.Severity == "warning":
			color = ColorWarning
		}
		s.alerts.SetCell(i, 0, tview.NewTableCell(" ■").SetTextColor(color))
		s.alerts.SetCell(i, 1, tview.NewTableCell(tview.Escape(a.Message)).SetTextColor(color).SetExpansion(1))
		if a.AlertID == prev.AlertID {
			selected = i
		}
	}
	s.alerts.Select(selected, 0)
}

func (s *AdminScreen) renderDetail() {
	a, ok := s.selectedAlert()
	if !ok {
		s.detail.SetText("")
		return
	}
	text := alertsText([]state.Alert{a})
	if !a.Dismissed {
		text += "\n [gray]Tab to alerts, 1-9 apply, d dismiss[-]"
	}
	s.detail.SetText(text)
}
