package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// LoginDialog asks for the admin username and password. message is shown
// above the fields, e.g. the reason a previous attempt failed.
func LoginDialog(message string, onSubmit func(username, password string), onCancel func()) *tview.Form {
	form := tview.NewForm()
	form.SetBorder(true).SetTitle(" Admin Login ").SetTitleAlign(tview.AlignLeft)
	form.SetBackgroundColor(tcell.ColorDefault)
	form.SetFieldBackgroundColor(tcell.ColorDefault)

	if message != "" {
		form.AddTextView("", "[red]"+tview.Escape(message)+"[-]", 40, 1, true, false)
	}
	form.AddInputField("Username", "", 24, nil, nil)
	form.AddPasswordField("Password", "", 24, '*', nil)

	form.AddButton("Login", func() {
		user := form.GetFormItemByLabel("Username").(*tview.InputField).GetText()
		pass := form.GetFormItemByLabel("Password").(*tview.InputField).GetText()
		onSubmit(user, pass)
	})
	form.AddButton("Quit", onCancel)

	form.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			onCancel()
			return nil
		}
		return event
	})
	return form
}
