// Package normalize strips formatting from the numeric-looking fields of an
// extracted rate confirmation and puts its stops in route order.
package normalize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/ratecon-tracker/constants"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

// NumericFields are the record fields reduced to plain decimal strings.
var NumericFields = []string{"weight", "rate", "miles", "rate_per_mile", "detention_charges", "accessorial_charges"}

// Numeric reduces a value such as "$1,234.50" or "42,000 lbs" to "1234.50" / "42000".
// nil stays nil, and so does a value that does not print exactly one number.
func Numeric(v *string) *string {
	if v == nil {
		return nil
	}
	out := Decimal(*v)
	if out == "" {
		return nil
	}
	return &out
}

// numberToken matches one printed number, with or without thousands separators.
var numberToken = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?|\.\d+`)

// Decimal reduces s to the single number it prints, dropping currency symbols,
// thousands separators and units. It returns "" when s holds no number or more
// than one, so free text such as "$50/hr after 2 hrs" never becomes a value.
func Decimal(s string) string {
	tokens := numberToken.FindAllString(s, 2)
	if len(tokens) != 1 {
		return ""
	}
	out := strings.ReplaceAll(tokens[0], ",", "")
	if strings.HasPrefix(out, ".") {
		out = "0" + out
	}
	return out
}

// Record returns a copy of rec with NumericFields normalized and stops renumbered.
func Record(rec *entity.ExtractedRecord) *entity.ExtractedRecord {
	if rec == nil {
		return nil
	}
	out := rec.Clone()
	for _, f := range []*string{
		&out.Weight, &out.Rate, &out.Miles,
		&out.RatePerMile, &out.DetentionCharges, &out.AccessorialCharges,
	} {
		*f = Decimal(*f)
	}
	out.Stops = Stops(out.Stops)
	return out
}

// Stops orders stops by their reported sequence (unnumbered stops keep their
// relative order after the numbered ones), renumbers them 1..n and canonicalises
// their type. The input slice is not modified.
func Stops(stops []entity.StopEvent) []entity.StopEvent {
	if len(stops) == 0 {
		return nil
	}
	out := append([]entity.StopEvent(nil), stops...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Sequence, out[j].Sequence
		if a <= 0 {
			return false
		}
		if b <= 0 {
			return true
		}
		return a < b
	})
	for i := range out {
		out[i].Sequence = i + 1
		out[i].Type = string(constants.CanonicalStopType(out[i].Type))
	}
	return out
}
