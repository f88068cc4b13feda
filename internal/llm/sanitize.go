package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/ratecon-tracker/constants"
)

// nullish values models print instead of omitting a field.
var nullish = map[string]struct{}{
	"null": {}, "none": {}, "n/a": {}, "na": {}, "unknown": {}, "-": {}, "--": {},
}

// Sanitize prepares parsed model output for validation without touching m:
//   - drops keys outside the schema and its aliases
//   - drops null, blank and placeholder values
//   - turns JSON numbers in string fields into strings
//   - canonicalises equipment_type and state codes, dropping what it cannot map
//   - cleans nested addresses and stops the same way
//
// It returns the cleaned object and a description of every dropped key.
func Sanitize(m map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(m))
	dropped := make([]string, 0, 8)
	drop := func(k, why string) { dropped = append(dropped, k+"("+why+")") }

	for _, k := range slices.Sorted(maps.Keys(m)) {
		v := m[k]
		kind, ok := allowedTopLevel[k]
		if !ok {
			drop(k, "unknown")
			continue
		}
		switch kind {
		case "address":
			addr, why := sanitizeObject(v, k, addressFields, &dropped)
			if addr == nil {
				drop(k, why)
				continue
			}
			out[k] = addr
		case "stops":
			stops, why := sanitizeStops(v, &dropped)
			if stops == nil {
				drop(k, why)
				continue
			}
			out[k] = stops
		case "enum":
			s, why := scalarString(v)
			if why != "" {
				drop(k, why)
				continue
			}
			e, ok := constants.CanonicalizeEquipment(s)
			if !ok {
				drop(k, "unmapped")
				continue
			}
			out[k] = string(e)
		default:
			s, why := scalarString(v)
			if why == "type" {
				// leave structural mismatches for the validator to report
				out[k] = v
				continue
			}
			if why != "" {
				drop(k, why)
				continue
			}
			if k == "pickup_state" || k == "delivery_state" {
				code, ok := constants.CanonicalState(s)
				if !ok {
					drop(k, "unmapped")
					continue
				}
				s = code
			}
			out[k] = s
		}
	}
	return out, dropped
}

// scalarString returns the trimmed string form of a scalar, or the reason it was rejected.
func scalarString(v any) (string, string) {
	switch t := v.(type) {
	case nil:
		return "", "null"
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return "", "empty"
		}
		if _, ok := nullish[strings.ToLower(s)]; ok {
			return "", "null"
		}
		return s, ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), ""
	case json.Number:
		return t.String(), ""
	case bool:
		return "", "bool"
	}
	return "", "type"
}

// sanitizeObject cleans one nested address-like object; nil means drop it.
func sanitizeObject(v any, path string, fields []string, dropped *[]string) (map[string]any, string) {
	if v == nil {
		return nil, "null"
	}
	src, ok := v.(map[string]any)
	if !ok {
		return nil, "type"
	}
	allowed := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		allowed[f] = struct{}{}
	}

	out := make(map[string]any, len(src))
	for _, k := range slices.Sorted(maps.Keys(src)) {
		if _, ok := allowed[k]; !ok {
			*dropped = append(*dropped, path+"."+k+"(unknown)")
			continue
		}
		s, why := scalarString(src[k])
		if why != "" {
			*dropped = append(*dropped, path+"."+k+"("+why+")")
			continue
		}
		if k == "state" {
			code, ok := constants.CanonicalState(s)
			if !ok {
				*dropped = append(*dropped, path+".state(unmapped)")
				continue
			}
			s = code
		}
		out[k] = s
	}
	if len(out) == 0 {
		return nil, "empty"
	}
	return out, ""
}

func sanitizeStops(v any, dropped *[]string) ([]any, string) {
	if v == nil {
		return nil, "null"
	}
	src, ok := v.([]any)
	if !ok {
		return nil, "type"
	}
	out := make([]any, 0, len(src))
	for i, item := range src {
		path := fmt.Sprintf("stops[%d]", i)
		raw, ok := item.(map[string]any)
		if !ok {
			*dropped = append(*dropped, path+"(type)")
			continue
		}
		rest := maps.Clone(raw)
		seqVal, hasSeq := rest["sequence"]
		typeVal := rest["type"]
		delete(rest, "sequence")
		delete(rest, "type")

		stop, _ := sanitizeObject(rest, path, stopFields, dropped)
		if stop == nil {
			stop = map[string]any{}
		}
		if hasSeq {
			if seq, ok := sequenceOf(seqVal); ok {
				stop["sequence"] = seq
			} else {
				*dropped = append(*dropped, path+".sequence(invalid)")
			}
		}
		if s, why := scalarString(typeVal); why == "" {
			stop["type"] = string(constants.CanonicalStopType(s))
		} else {
			stop["type"] = string(constants.StopOther)
		}
		if len(stop) == 1 {
			// only a type survived: nothing to place on the route
			*dropped = append(*dropped, path+"(empty)")
			continue
		}
		out = append(out, stop)
	}
	if len(out) == 0 {
		return nil, "empty"
	}
	return out, ""
}

func sequenceOf(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
