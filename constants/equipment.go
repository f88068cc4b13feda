package constants

import (
	"strings"
)

type EquipmentType string

const (
	DryVan    EquipmentType = "DRY_VAN"
	Reefer    EquipmentType = "REEFER"
	Flatbed   EquipmentType = "FLATBED"
	StepDeck  EquipmentType = "STEP_DECK"
	Lowboy    EquipmentType = "LOWBOY"
	PowerOnly EquipmentType = "POWER_ONLY"
	BoxTruck  EquipmentType = "BOX_TRUCK"
	OtherType EquipmentType = "OTHER"
)

var allEquipment = []EquipmentType{
	DryVan,
	Reefer,
	Flatbed,
	StepDeck,
	Lowboy,
	PowerOnly,
	BoxTruck,
	OtherType,
}

// equipmentLabels is the code -> display label table used on the load form.
var equipmentLabels = map[EquipmentType]string{
	DryVan:    "Dry Van",
	Reefer:    "Reefer",
	Flatbed:   "Flatbed",
	StepDeck:  "Step Deck",
	Lowboy:    "Lowboy",
	PowerOnly: "Power Only",
	BoxTruck:  "Box Truck",
	OtherType: "Other",
}

// equipmentKeywords is checked in order; the first whole-word hit wins.
// "VAN" is last so that "REEFER VAN" resolves to a reefer.
var equipmentKeywords = []struct {
	code  EquipmentType
	words []string
}{
	{Reefer, []string{"REEFER", "REFRIGERATED", "TEMP CONTROLLED", "RF"}},
	{Flatbed, []string{"FLATBED", "FLAT BED", "FLAT", "FB"}},
	{StepDeck, []string{"STEP DECK", "STEPDECK", "DROP DECK", "SD"}},
	{Lowboy, []string{"LOWBOY", "LOW BOY", "RGN"}},
	{PowerOnly, []string{"POWER ONLY", "PO"}},
	{BoxTruck, []string{"BOX TRUCK", "STRAIGHT TRUCK", "BOX"}},
	{DryVan, []string{"DRY VAN", "DRYVAN", "VAN", "DV"}},
}

func EquipmentCodes() []string {
	result := make([]string, len(allEquipment))
	for i, e := range allEquipment {
		result[i] = string(e)
	}
	return result
}

// Label returns the display label, or "" for codes outside the enumeration.
func (e EquipmentType) Label() string {
	return equipmentLabels[e]
}

// CanonicalizeEquipment maps a free-form equipment code or description onto the
// enumeration. Input that matches no known category returns ("", false); OTHER is
// only produced when the input says so explicitly.
func CanonicalizeEquipment(input string) (EquipmentType, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	for _, e := range allEquipment {
		if normalized == string(e) {
			return e, true
		}
	}

	// "53' DRY-VAN", "STEP_DECK 48" -> space separated words
	normalized = strings.Join(strings.Fields(strings.NewReplacer("_", " ", "-", " ", "/", " ").Replace(normalized)), " ")
	if normalized == "OTHER" {
		return OtherType, true
	}
	for _, kw := range equipmentKeywords {
		for _, w := range kw.words {
			if containsWord(normalized, w) {
				return kw.code, true
			}
		}
	}
	return "", false
}

// MapEquipment returns the display label for an equipment code or description,
// or "" when the value matches none of the known categories.
func MapEquipment(input string) string {
	e, ok := CanonicalizeEquipment(input)
	if !ok {
		return ""
	}
	return e.Label()
}

// containsWord reports whether needle occurs in text bounded by non-alphanumeric
// characters or the string ends. Both arguments are expected upper-cased.
func containsWord(text, needle string) bool {
	if needle == "" || text == "" {
		return false
	}
	start := 0
	for {
		idx := strings.Index(text[start:], needle)
		if idx < 0 {
			return false
		}
		absIdx := start + idx
		endIdx := absIdx + len(needle)

		leftOK := absIdx == 0 || !isAlphaNum(text[absIdx-1])
		rightOK := endIdx == len(text) || !isAlphaNum(text[endIdx])
		if leftOK && rightOK {
			return true
		}
		start = absIdx + 1
	}
}

func isAlphaNum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
