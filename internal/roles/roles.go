// Package roles defines the access tier hierarchy used to gate knowledge
// base content. Tiers are strictly ordered; a user at a given tier can
// read content published at their own tier and every tier below it.
package roles

// Tier identifies one level of the access hierarchy.
type Tier string

const (
	TierPublic     Tier = "public"
	TierInterested Tier = "interested"
	TierPassenger  Tier = "passenger"
	TierSailor     Tier = "sailor"
	TierSkipper    Tier = "skipper"
)

// hierarchy lists tiers from least to most privileged. Accessible
// depends on this ordering.
var hierarchy = []Tier{
	TierPublic,
	TierInterested,
	TierPassenger,
	TierSailor,
	TierSkipper,
}

// Valid reports whether t is a known tier.
func Valid(t Tier) bool {
	for _, h := range hierarchy {
		if h == t {
			return true
		}
	}
	return false
}

// Accessible returns the tiers readable by a user at tier t, ordered
// from least to most privileged. Unknown tiers degrade to public-only
// access rather than failing.
func Accessible(t Tier) []Tier {
	idx := 0
	for i, h := range hierarchy {
		if h == t {
			idx = i
			break
		}
	}
	out := make([]Tier, idx+1)
	copy(out, hierarchy[:idx+1])
	return out
}

// AtLeast reports whether t grants at least the privileges of min.
// Unknown tiers rank below public.
func AtLeast(t, min Tier) bool {
	return rank(t) >= rank(min)
}

func rank(t Tier) int {
	for i, h := range hierarchy {
		if h == t {
			return i
		}
	}
	return -1
}

// displayNames maps tier to human-readable names per UI language.
var displayNames = map[Tier]map[string]string{
	TierPublic:     {"ru": "Гость", "en": "Guest"},
	TierInterested: {"ru": "Интересующийся", "en": "Interested"},
	TierPassenger:  {"ru": "Пассажир", "en": "Passenger"},
	TierSailor:     {"ru": "Матрос", "en": "Sailor"},
	TierSkipper:    {"ru": "Шкипер", "en": "Skipper"},
}

// DisplayName returns the localized name for a tier. Unknown tiers and
// languages fall back to the tier identifier itself.
func DisplayName(t Tier, language string) string {
	names, ok := displayNames[t]
	if !ok {
		return string(t)
	}
	if name, ok := names[language]; ok {
		return name
	}
	return names["en"]
}
