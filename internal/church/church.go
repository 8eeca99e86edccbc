// Package church holds the diocesan hierarchy the organization operates
// under. The structure changes rarely enough that it ships with the binary
// rather than living in the database.
package church

import "sort"

// hierarchy maps each archdeaconry to its parishes.
var hierarchy = map[string][]string{
	"Nambale Archdeaconry": {
		"Nasira Parish",
		"St Thomas Nambale Cathedral Parish",
		"Malanga Parish",
		"Ebuwanga Parish",
		"Emaduwa Parish",
		"Buloma Parish",
	},
	"Namaindi Archdeaconry": {
		"Namaindi Parish",
		"Mulwakari Parish",
		"Kaludeka Parish",
	},
	"Khasoko Archdeaconry": {
		"Khasoko Parish",
		"Sikinga Parish",
		"Mungore Parish",
		"Namusasi Parish",
		"Lupida Parish",
	},
	"Lugulu Archdeaconry": {
		"Lugulu Parish",
		"Buduma Parish",
		"Bukuyudi Parish",
		"Emasinde Parish",
	},
	"Bukhalalire Archdeaconry": {
		"Bukhalalire Parish",
		"Bumutiru Parish",
		"Simuli Parish",
		"Busiada Parish",
	},
	"Bujumba Archdeaconry": {
		"Bujumba Parish",
		"Igula Parish",
		"Bumala Parish",
		"Dadira Parish",
	},
	"Busende Archdeaconry": {
		"Busende Parish",
		"Nasewa Parish",
		"Budokomi Parish",
		"Burumba Parish",
		"Mayenje Parish",
		"Mundaya Parish",
		"Bugeng'i Parish",
		"Emaseno Parish",
	},
	"Busia Archdeaconry": {
		"St. Stephen's Busia Parish",
	},
	"Namboboto Archdeaconry": {
		"Namboboto Parish",
		"Busibi Parish",
		"Funyula Parish",
		"Odiado Parish",
		"Nyakwaka Parish",
		"Luchululo Parish",
		"Lugala Parish",
		"Nyakhobi Parish",
		"Wakhungu Parish",
	},
	"Sigalame Archdeaconry": {
		"Sigalame Parish",
		"Nandereka Parish",
		"Namahudu Parish",
		"Neyayo Parish",
		"Namasari Parish",
	},
	"Lugare Archdeaconry": {
		"Port-Victoria Parish",
		"Lugare Parish",
		"Osieko Parish",
		"Budalangi Parish",
	},
}

// Archdeaconries returns the archdeaconry names, sorted.
func Archdeaconries() []string {
	names := make([]string, 0, len(hierarchy))
	for name := range hierarchy {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parishes returns the parishes of one archdeaconry, sorted, or nil for an
// unknown archdeaconry.
func Parishes(archdeaconry string) []string {
	parishes, ok := hierarchy[archdeaconry]
	if !ok {
		return nil
	}
	out := make([]string, len(parishes))
	copy(out, parishes)
	sort.Strings(out)
	return out
}

// AllParishes returns every parish in the diocese, sorted and deduplicated.
func AllParishes() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, parishes := range hierarchy {
		for _, p := range parishes {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// ValidArchdeaconry reports whether the name is a known archdeaconry.
func ValidArchdeaconry(name string) bool {
	_, ok := hierarchy[name]
	return ok
}

// ValidParish reports whether the parish belongs to the archdeaconry.
func ValidParish(archdeaconry, parish string) bool {
	for _, p := range hierarchy[archdeaconry] {
		if p == parish {
			return true
		}
	}
	return false
}
