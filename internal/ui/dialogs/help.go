package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const PatientHelp = `[yellow]Patient Keys[-]

  [green]c[-]        Check in
  [green]r[-]        Refresh status and journey
  [green]l[-]        Switch language (ไทย / English)
  [green]x[-]        Exit queue and clear my data
  [green]?[-]        This help
  [green]q[-]        Quit

The ticket updates live while the connection
indicator shows [green]● live[-].

Press [green]Escape[-] or [green]?[-] to close.`

const AdminHelp = `[yellow]Dashboard Keys[-]

  [green]↑/k ↓/j[-]  Select station
  [green]r[-]        Refresh now
  [green]a[-]        Toggle auto-refresh
  [green]+ / -[-]    Change refresh interval
  [green]b[-]        Simulate bottleneck at station
  [green]v[-]        Resolve bottleneck at station
  [green]Tab[-]      Focus alerts
  [green]1-9[-]      Apply recommendation (alerts focused)
  [green]d[-]        Dismiss alert (alerts focused)
  [green]D[-]        Show/hide dismissed alerts
  [green]C[-]        Clear dismissed alerts
  [green]p[-]        Daily report
  [green]s[-]        Supervisor chat
  [green]?[-]        This help
  [green]q[-]        Quit

Press [green]Escape[-] or [green]?[-] to close.`

// HelpDialog shows text, one of PatientHelp or AdminHelp.
func HelpDialog(text string, onClose func()) *tview.TextView {
	tv := tview.NewTextView()
	tv.SetBorder(true).SetTitle(" Help ").SetTitleAlign(tview.AlignLeft)
	tv.SetDynamicColors(true)
	tv.SetBackgroundColor(tcell.ColorDefault)
	tv.SetText(text)
	tv.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == '?' {
			onClose()
			return nil
		}
		return event
	})
	return tv
}
