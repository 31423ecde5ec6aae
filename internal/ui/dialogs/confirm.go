package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Confirm is a question asked before a step that changes backend state.
// Cancel has focus when the dialog opens, so a stray Enter backs out.
// y and n answer directly; Escape is n.
type Confirm struct {
	Message   string
	Action    string // confirm button label, e.g. "Leave"
	OnConfirm func()
	OnCancel  func()
}

func (c Confirm) Modal() *tview.Modal {
	answer := func(yes bool) {
		if yes {
			c.OnConfirm()
			return
		}
		c.OnCancel()
	}
	modal := tview.NewModal().
		SetText(c.Message).
		AddButtons([]string{c.Action, "Cancel"}).
		SetDoneFunc(func(idx int, _ string) { answer(idx == 0) }).
		SetFocus(1)
	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape, event.Rune() == 'n':
			answer(false)
		case event.Rune() == 'y':
			answer(true)
		default:
			return event
		}
		return nil
	})
	return modal
}
