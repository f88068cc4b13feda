package address

import (
	"strings"

	"github.com/joseph-ayodele/ratecon-tracker/constants"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

// countrySuffixes are dropped from the end of a single-line address before it is split.
var countrySuffixes = map[string]struct{}{
	"US": {}, "USA": {}, "U.S.": {}, "U.S.A.": {}, "UNITED STATES": {},
	"UNITED STATES OF AMERICA": {}, "CANADA": {},
}

// ParseCityState splits a "City, ST" string. The city is the first comma
// segment and the state the first two letters of the second one, upper-cased.
// Without a comma the whole string is taken as the city.
func ParseCityState(s string) (city, state string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	parts := strings.Split(s, ",")
	city = strings.TrimSpace(parts[0])
	if len(parts) < 2 {
		return city, ""
	}
	st := strings.TrimSpace(parts[1])
	if len(st) >= 2 && isLetter(st[0]) && isLetter(st[1]) {
		state = strings.ToUpper(st[:2])
	}
	return city, state
}

// ParseFullAddress reads a single-line address such as
// "ABC Foods, 100 Main St, Hollister, CA 95023". The second-to-last comma
// segment is the city; the state is the last token of the last segment that is
// a known upper-case state code, so street suffixes such as "ST" or "DR" are skipped.
func ParseFullAddress(s string) (city, state string) {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if n := len(parts); n > 1 {
		if _, ok := countrySuffixes[strings.ToUpper(parts[n-1])]; ok {
			parts = parts[:n-1]
		}
	}
	if len(parts) == 0 {
		return "", ""
	}

	toks := strings.Fields(parts[len(parts)-1])
	for i := len(toks) - 1; i >= 0; i-- {
		if constants.IsStateCode(toks[i]) {
			state = toks[i]
			break
		}
	}
	if len(parts) >= 2 {
		city = parts[len(parts)-2]
	}
	return city, state
}

// BuildFull joins company, address lines, "City, ST" and postal code into one
// line, skipping empty parts. The postal code follows the city/state after a space.
func BuildFull(a *entity.NormalizedAddress, loc Location) string {
	var company, line1, line2, postal string
	if a != nil {
		company = strings.TrimSpace(a.CompanyName)
		line1 = strings.TrimSpace(a.AddressLine1)
		line2 = strings.TrimSpace(a.AddressLine2)
		postal = strings.TrimSpace(a.PostalCode)
	}
	locality := loc.CityState()
	if postal != "" {
		if locality != "" {
			locality += " " + postal
		} else {
			locality = postal
		}
	}

	parts := make([]string, 0, 4)
	for _, p := range []string{company, line1, line2, locality} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

