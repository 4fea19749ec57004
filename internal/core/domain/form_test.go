package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormValidate(t *testing.T) {
	tests := []struct {
		name    string
		form    Form
		want    WhiskeyFields
		wantMsg string
	}{
		{
			name: "valid",
			form: Form{Name: "Talisker", Country: "Scotland", Age: "10", Owned: true},
			want: WhiskeyFields{Name: "Talisker", Country: "Scotland", Age: 10, Owned: true},
		},
		{
			name: "age with surrounding spaces",
			form: Form{Name: "Redbreast", Country: "Ireland", Age: " 12 "},
			want: WhiskeyFields{Name: "Redbreast", Country: "Ireland", Age: 12},
		},
		{
			name: "fractional age truncated",
			form: Form{Name: "Yamazaki", Country: "Japan", Age: "12.7"},
			want: WhiskeyFields{Name: "Yamazaki", Country: "Japan", Age: 12},
		},
		{
			name:    "blank name",
			form:    Form{Name: "   ", Country: "Scotland", Age: "10"},
			wantMsg: MsgMissingFields,
		},
		{
			name:    "blank country",
			form:    Form{Name: "Talisker", Country: "", Age: "10"},
			wantMsg: MsgMissingFields,
		},
		{
			name:    "blank age",
			form:    Form{Name: "Talisker", Country: "Scotland", Age: "\t"},
			wantMsg: MsgMissingFields,
		},
		{
			name:    "age not a number",
			form:    Form{Name: "Talisker", Country: "Scotland", Age: "abc"},
			wantMsg: MsgAgeNotNumber,
		},
		{
			name:    "age NaN",
			form:    Form{Name: "Talisker", Country: "Scotland", Age: "NaN"},
			wantMsg: MsgAgeNotNumber,
		},
		{
			name:    "negative age",
			form:    Form{Name: "Talisker", Country: "Scotland", Age: "-3"},
			wantMsg: MsgAgeNegative,
		},
		{
			name: "exponent keeps leading digits",
			form: Form{Name: "Yamazaki", Country: "Japan", Age: "1e3"},
			want: WhiskeyFields{Name: "Yamazaki", Country: "Japan", Age: 1},
		},
		{
			name: "explicit plus sign",
			form: Form{Name: "Yamazaki", Country: "Japan", Age: "+18"},
			want: WhiskeyFields{Name: "Yamazaki", Country: "Japan", Age: 18},
		},
		{
			name: "negative fraction above minus one",
			form: Form{Name: "Yamazaki", Country: "Japan", Age: "-0.5"},
			want: WhiskeyFields{Name: "Yamazaki", Country: "Japan", Age: 0},
		},
		{
			name:    "hex float",
			form:    Form{Name: "Talisker", Country: "Scotland", Age: "0x1p4"},
			wantMsg: MsgAgeNotNumber,
		},
		{
			name:    "hex integer",
			form:    Form{Name: "Talisker", Country: "Scotland", Age: "0x10"},
			wantMsg: MsgAgeNotNumber,
		},
		{
			name:    "infinity",
			form:    Form{Name: "Talisker", Country: "Scotland", Age: "Inf"},
			wantMsg: MsgAgeNotNumber,
		},
		{
			name:    "digit separators",
			form:    Form{Name: "Talisker", Country: "Scotland", Age: "1_000"},
			wantMsg: MsgAgeNotNumber,
		},
		{
			name:    "no leading digits",
			form:    Form{Name: "Talisker", Country: "Scotland", Age: ".5"},
			wantMsg: MsgAgeNotNumber,
		},
		{
			name:    "age above int32",
			form:    Form{Name: "Talisker", Country: "Scotland", Age: "3000000000"},
			wantMsg: MsgAgeTooLarge,
		},
		{
			name:    "age beyond int64",
			form:    Form{Name: "Talisker", Country: "Scotland", Age: "99999999999999999999"},
			wantMsg: MsgAgeTooLarge,
		},
		{
			name:    "negative beyond int64",
			form:    Form{Name: "Talisker", Country: "Scotland", Age: "-99999999999999999999"},
			wantMsg: MsgAgeNegative,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.form.Validate()
			if tt.wantMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidationFailed))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantMsg, verr.Message)
		})
	}
}

func TestFormFromWhiskey(t *testing.T) {
	w := Whiskey{ID: "id-1", Name: "Lagavulin", Country: "Scotland", Age: 16, Owned: true}

	form := FormFromWhiskey(w)
	assert.Equal(t, Form{Name: "Lagavulin", Country: "Scotland", Age: "16", Owned: true}, form)

	fields, err := form.Validate()
	require.NoError(t, err)
	assert.Equal(t, w, fields.WithID("id-1"))
}

func TestNewRow(t *testing.T) {
	row := NewRow(Whiskey{ID: "abc", Name: "Talisker", Country: "Scotland", Age: 10})
	assert.Equal(t, "abc", row.ID)
	assert.Equal(t, "Talisker from Scotland 10 years old", row.Label)
}

func TestWhiskeyValidate(t *testing.T) {
	assert.NoError(t, Whiskey{ID: "a", Name: "n", Country: "c", Age: 0}.Validate())
	assert.ErrorIs(t, Whiskey{Name: "n", Country: "c"}.Validate(), ErrValidationFailed)
	assert.ErrorIs(t, Whiskey{ID: "a", Name: " ", Country: "c"}.Validate(), ErrValidationFailed)
	assert.ErrorIs(t, Whiskey{ID: "a", Name: "n", Country: "c", Age: -1}.Validate(), ErrValidationFailed)
}
