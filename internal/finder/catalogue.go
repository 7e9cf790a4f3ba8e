package finder

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Specialists is the catalogue offered by the specialist filter.
var Specialists = []string{
	"General Practitioner",
	"Cardiologist",
	"Orthopedic Surgeon",
	"Dermatologist",
	"Gynecologist",
	"Ophthalmologist",
	"Dentist",
}

// DistanceOptions are the radius choices, in miles.
var DistanceOptions = []int{5, 10, 20, 30}

var folder = cases.Fold()

func foldKey(s string) string {
	return folder.String(norm.NFKC.String(strings.TrimSpace(s)))
}

// CanonicalSpecialist maps free text onto the catalogue spelling when it
// matches an entry ignoring case. Unknown text is returned trimmed, since
// any keyword is a valid search term.
func CanonicalSpecialist(input string) string {
	key := foldKey(input)
	if key == "" {
		return ""
	}
	for _, s := range Specialists {
		if foldKey(s) == key {
			return s
		}
	}
	return strings.TrimSpace(input)
}

// ParseDistance reads the distance field. Empty, non-numeric, negative
// and non-finite input all mean "no distance".
func ParseDistance(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
