package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"nil slice", nil, nil},
		{"empty slice", []string{}, []string{}},
		{
			"trims whitespace",
			[]string{"  Nambale Archdeaconry  ", "Butula Archdeaconry "},
			[]string{"Nambale Archdeaconry", "Butula Archdeaconry"},
		},
		{
			"drops blanks and repeats in order",
			[]string{"Nambale Archdeaconry", "", "  ", "Butula Archdeaconry", "Nambale Archdeaconry"},
			[]string{"Nambale Archdeaconry", "Butula Archdeaconry"},
		},
		{
			"case is significant",
			[]string{"Nambale", "nambale"},
			[]string{"Nambale", "nambale"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.input))
		})
	}
}
