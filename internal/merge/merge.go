// Package merge reconciles an extracted rate confirmation with the load form
// the user is editing.
package merge

import (
	"strings"

	"github.com/joseph-ayodele/ratecon-tracker/internal/address"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

// Change reports one form field replaced by an extracted value.
type Change struct {
	Field  string `json:"field"`
	Source string `json:"source"`
	Old    string `json:"old,omitempty"`
	New    string `json:"new"`
}

// Apply merges rec into a copy of form: a field is overwritten only when its
// precedence list yields a non-blank value, otherwise the form value is kept.
// Neither form nor rec is modified. Fields whose value changes are reported.
func Apply(form entity.FormState, rec *entity.ExtractedRecord, res address.Resolution) (entity.FormState, []Change) {
	out := form.Clone()
	if rec == nil {
		return out, nil
	}
	in := &input{rec: rec, res: res}

	var changes []Change
	for _, r := range rules {
		value, source, ok := r.pick(in)
		if !ok {
			continue
		}
		dst := r.field(&out)
		if *dst == value {
			continue
		}
		changes = append(changes, Change{Field: r.target, Source: source, Old: *dst, New: value})
		*dst = value
	}

	if stops := toStops(rec.Stops); len(stops) > 0 {
		out.Stops = stops
		changes = append(changes, Change{Field: "stops", Source: "stops", New: summarizeStops(stops)})
	}
	return out, changes
}

// Fields returns the names of the changed fields, in table order.
func Fields(changes []Change) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.Field)
	}
	return out
}

func (r rule) pick(in *input) (value, source string, ok bool) {
	for _, c := range r.candidates {
		v := strings.TrimSpace(c.get(in))
		if v == "" {
			continue
		}
		if r.transform != nil {
			if v = r.transform(v); v == "" {
				// a rejected value does not fall through to weaker candidates
				return "", "", false
			}
		}
		source = c.name
		if c.source != nil {
			if s := c.source(in); s != "" {
				source = s
			}
		}
		return v, source, true
	}
	return "", "", false
}

func toStops(events []entity.StopEvent) []entity.Stop {
	if len(events) == 0 {
		return nil
	}
	out := make([]entity.Stop, 0, len(events))
	for _, ev := range events {
		loc := address.Location{City: strings.TrimSpace(ev.City), State: strings.ToUpper(strings.TrimSpace(ev.State))}
		out = append(out, entity.Stop{
			Sequence:        ev.Sequence,
			Type:            ev.Type,
			CompanyName:     strings.TrimSpace(ev.CompanyName),
			Address:         address.BuildFull(&ev.NormalizedAddress, loc),
			City:            loc.City,
			State:           loc.State,
			PostalCode:      strings.TrimSpace(ev.PostalCode),
			ScheduledStart:  strings.TrimSpace(ev.ScheduledStart),
			ScheduledEnd:    strings.TrimSpace(ev.ScheduledEnd),
			ContactName:     strings.TrimSpace(ev.ContactName),
			ContactPhone:    strings.TrimSpace(ev.ContactPhone),
			ReferenceNumber: strings.TrimSpace(ev.ReferenceNumber),
			Notes:           strings.TrimSpace(ev.Notes),
		})
	}
	return out
}

func summarizeStops(stops []entity.Stop) string {
	parts := make([]string, 0, len(stops))
	for _, s := range stops {
		label := s.Type
		if cs := (address.Location{City: s.City, State: s.State}).CityState(); cs != "" {
			label += " " + cs
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, " -> ")
}
