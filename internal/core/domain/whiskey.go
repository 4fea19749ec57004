package domain

import (
	"fmt"
	"strings"
)

const (
	DatabaseName     = "WhiskeyDB"
	SchemaVersion    = 1
	WhiskeyStoreName = "whiskeyStore"
)

type Whiskey struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Age     int    `json:"age"`
	Owned   bool   `json:"owned"`
}

// WhiskeyFields is everything a user can edit; the id is owned by the store.
type WhiskeyFields struct {
	Name    string
	Country string
	Age     int
	Owned   bool
}

func (f WhiskeyFields) WithID(id string) Whiskey {
	return Whiskey{
		ID:      id,
		Name:    f.Name,
		Country: f.Country,
		Age:     f.Age,
		Owned:   f.Owned,
	}
}

func (w Whiskey) Fields() WhiskeyFields {
	return WhiskeyFields{
		Name:    w.Name,
		Country: w.Country,
		Age:     w.Age,
		Owned:   w.Owned,
	}
}

// Row is one rendered list entry. ID is kept so the view can hand it back on selection.
type Row struct {
	ID    string
	Label string
}

func NewRow(w Whiskey) Row {
	return Row{
		ID:    w.ID,
		Label: fmt.Sprintf("%s from %s %d years old", w.Name, w.Country, w.Age),
	}
}

// Validate checks a complete record, e.g. one read back from a backup.
func (w Whiskey) Validate() error {
	switch {
	case w.ID == "":
		return &ValidationError{Message: "id is required"}
	case strings.TrimSpace(w.Name) == "" || strings.TrimSpace(w.Country) == "":
		return &ValidationError{Message: MsgMissingFields}
	case w.Age < 0:
		return &ValidationError{Message: MsgAgeNegative}
	}
	return nil
}
