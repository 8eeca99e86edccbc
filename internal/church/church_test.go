package church

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArchdeaconriesSorted(t *testing.T) {
	names := Archdeaconries()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		require.LessOrEqual(t, names[i-1], names[i])
	}
	require.Contains(t, names, "Busia Archdeaconry")
}

func TestParishes(t *testing.T) {
	parishes := Parishes("Namaindi Archdeaconry")
	require.Equal(t, []string{"Kaludeka Parish", "Mulwakari Parish", "Namaindi Parish"}, parishes)

	require.Nil(t, Parishes("Nowhere Archdeaconry"))
}

func TestValidParish(t *testing.T) {
	require.True(t, ValidParish("Busia Archdeaconry", "St. Stephen's Busia Parish"))
	require.False(t, ValidParish("Busia Archdeaconry", "Lugulu Parish"))
	require.False(t, ValidParish("Nowhere", "Lugulu Parish"))
}

func TestAllParishesDeduplicated(t *testing.T) {
	all := AllParishes()
	seen := make(map[string]struct{})
	for _, p := range all {
		_, dup := seen[p]
		require.False(t, dup, "duplicate parish %q", p)
		seen[p] = struct{}{}
	}
}
