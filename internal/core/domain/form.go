package domain

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	MsgMissingFields = "Please fill all the form fields"
	MsgAgeNotNumber  = "Please enter a number for years old field"
	MsgAgeNegative   = "Years old cannot be negative"
	MsgAgeTooLarge   = "Years old is too large"
)

// decimalNumber is plain decimal notation, optionally with a fraction or an
// exponent. Hex, Inf and NaN are not ages.
var decimalNumber = regexp.MustCompile(`^[+-]?\d+(\.\d*)?([eE][+-]?\d+)?$`)

// Form is the raw input of the whiskey form. Age stays text until validated.
type Form struct {
	Name    string
	Country string
	Age     string
	Owned   bool
}

// FormFromWhiskey is what the form shows after a row was selected.
func FormFromWhiskey(w Whiskey) Form {
	return Form{
		Name:    w.Name,
		Country: w.Country,
		Age:     strconv.Itoa(w.Age),
		Owned:   w.Owned,
	}
}

// Validate turns the form into fields ready to persist. The age must be a
// decimal number and only its leading integer digits are kept, so "12.7" is
// 12 and "1e3" is 1.
func (f Form) Validate() (WhiskeyFields, error) {
	if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Country) == "" || strings.TrimSpace(f.Age) == "" {
		return WhiskeyFields{}, &ValidationError{Message: MsgMissingFields}
	}

	age, err := parseAge(strings.TrimSpace(f.Age))
	if err != nil {
		return WhiskeyFields{}, err
	}

	return WhiskeyFields{
		Name:    f.Name,
		Country: f.Country,
		Age:     age,
		Owned:   f.Owned,
	}, nil
}

func parseAge(s string) (int, error) {
	if !decimalNumber.MatchString(s) {
		return 0, &ValidationError{Message: MsgAgeNotNumber}
	}

	end := 0
	if s[0] == '+' || s[0] == '-' {
		end = 1
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	age, err := strconv.ParseInt(s[:end], 10, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		if s[0] == '-' {
			return 0, &ValidationError{Message: MsgAgeNegative}
		}
		return 0, &ValidationError{Message: MsgAgeTooLarge}
	case err != nil:
		return 0, &ValidationError{Message: MsgAgeNotNumber}
	case age < 0:
		return 0, &ValidationError{Message: MsgAgeNegative}
	case age > math.MaxInt32:
		return 0, &ValidationError{Message: MsgAgeTooLarge}
	}
	return int(age), nil
}
