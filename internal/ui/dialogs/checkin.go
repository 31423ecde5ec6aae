package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/flowcontrol/internal/api"
)

type CheckInResult struct {
	PatientID      string
	ChiefComplaint string
	Language       api.Language
}

var languages = []api.Language{api.LanguageThai, api.LanguageEnglish}

var languageNames = []string{"ไทย (Thai)", "English"}

// CheckInDialog shows the patient check-in form. Empty fields are passed
// through; the caller reports validation errors.
func CheckInDialog(patientID string, lang api.Language,
	onSubmit func(CheckInResult), onCancel func()) *tview.Form {

	form := tview.NewForm()
	form.SetBorder(true).SetTitle(" Check In ").SetTitleAlign(tview.AlignLeft)
	form.SetBackgroundColor(tcell.ColorDefault)
	form.SetFieldBackgroundColor(tcell.ColorDefault)

	langIdx := 0
	for i, l := range languages {
		if l == lang {
			langIdx = i
		}
	}

	form.AddInputField("Patient ID", patientID, 20, nil, nil)
	form.AddTextArea("Chief complaint", "", 40, 3, 0, nil)
	form.AddDropDown("Language", languageNames, langIdx, nil)

	form.AddButton("Check in", func() {
		id := form.GetFormItemByLabel("Patient ID").(*tview.InputField).GetText()
		complaint := form.GetFormItemByLabel("Chief complaint").(*tview.TextArea).GetText()
		idx, _ := form.GetFormItemByLabel("Language").(*tview.DropDown).GetCurrentOption()
		if idx < 0 {
			idx = 0
		}
		onSubmit(CheckInResult{
			PatientID:      id,
			ChiefComplaint: complaint,
			Language:       languages[idx],
		})
	})

	form.AddButton("Cancel", onCancel)

	form.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			onCancel()
			return nil
		}
		return event
	})

	return form
}
