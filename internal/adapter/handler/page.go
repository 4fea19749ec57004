package handler

import (
	"embed"
	"html/template"
	"sync"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

//go:embed templates/index.html
var templates embed.FS

var pageTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

var _ port.View = (*PageView)(nil)

// PageView keeps what the view controller last drew, for the next page load.
// An alert is shown once.
type PageView struct {
	mu    sync.Mutex
	rows  []domain.Row
	form  domain.Form
	alert string
}

func NewPageView() *PageView {
	return &PageView{}
}

func (p *PageView) Render(rows []domain.Row) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = rows
}

func (p *PageView) Fill(form domain.Form) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.form = form
}

func (p *PageView) Alert(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alert = message
}

type pageData struct {
	Rows     []domain.Row
	Form     domain.Form
	Alert    string
	Selected string
}

func (p *PageView) take(selected string) pageData {
	p.mu.Lock()
	defer p.mu.Unlock()

	data := pageData{
		Rows:     p.rows,
		Form:     p.form,
		Alert:    p.alert,
		Selected: selected,
	}
	p.alert = ""
	return data
}
