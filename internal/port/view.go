package port

import "github.com/rl1809/whiskey-cellar/internal/core/domain"

// View is the presentation boundary driven by the view controller.
type View interface {
	// Render replaces the whole list with rows
	Render(rows []domain.Row)

	// Fill shows form in the input fields
	Fill(form domain.Form)

	// Alert shows a message to the user
	Alert(message string)
}
