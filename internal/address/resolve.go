// Package address derives the pickup and delivery city/state of a rate
// confirmation from the several places a model may report them.
package address

import (
	"strings"

	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

// Location is a resolved city/state pair with the record field each part came from.
type Location struct {
	City        string `json:"city"`
	State       string `json:"state"`
	CitySource  string `json:"city_source,omitempty"`
	StateSource string `json:"state_source,omitempty"`
}

// CityState renders "City, ST", or whichever half is known.
func (l Location) CityState() string {
	switch {
	case l.City != "" && l.State != "":
		return l.City + ", " + l.State
	case l.City != "":
		return l.City
	}
	return l.State
}

// Resolution holds both resolved locations of one record.
type Resolution struct {
	Pickup   Location `json:"pickup"`
	Delivery Location `json:"delivery"`
}

type candidate struct {
	citySource  string
	stateSource string
	get         func(r *entity.ExtractedRecord) (city, state string)
}

// Candidates are consulted in order; city and state each take the first non-empty value.
var pickupCandidates = []candidate{
	{"pickup_city", "pickup_state", func(r *entity.ExtractedRecord) (string, string) {
		return r.PickupCity, r.PickupState
	}},
	{"pickup_address.city", "pickup_address.state", func(r *entity.ExtractedRecord) (string, string) {
		return fromNormalized(r.PickupAddress)
	}},
	{"origin", "origin", func(r *entity.ExtractedRecord) (string, string) {
		return ParseCityState(r.Origin)
	}},
	{"pickup_address_full", "pickup_address_full", func(r *entity.ExtractedRecord) (string, string) {
		return ParseFullAddress(r.PickupAddressFull)
	}},
}

var deliveryCandidates = []candidate{
	{"delivery_city", "delivery_state", func(r *entity.ExtractedRecord) (string, string) {
		return r.DeliveryCity, r.DeliveryState
	}},
	{"delivery_address.city", "delivery_address.state", func(r *entity.ExtractedRecord) (string, string) {
		return fromNormalized(r.DeliveryAddress)
	}},
	{"destination", "destination", func(r *entity.ExtractedRecord) (string, string) {
		return ParseCityState(r.Destination)
	}},
	{"delivery_address_full", "delivery_address_full", func(r *entity.ExtractedRecord) (string, string) {
		return ParseFullAddress(r.DeliveryAddressFull)
	}},
}

// Resolve derives both locations. A nil record resolves to empty locations.
func Resolve(r *entity.ExtractedRecord) Resolution {
	if r == nil {
		return Resolution{}
	}
	return Resolution{
		Pickup:   resolve(r, pickupCandidates),
		Delivery: resolve(r, deliveryCandidates),
	}
}

func resolve(r *entity.ExtractedRecord, candidates []candidate) Location {
	var loc Location
	for _, c := range candidates {
		city, state := c.get(r)
		city, state = strings.TrimSpace(city), strings.TrimSpace(state)
		if loc.City == "" && city != "" {
			loc.City, loc.CitySource = city, c.citySource
		}
		if loc.State == "" && state != "" {
			loc.State, loc.StateSource = strings.ToUpper(state), c.stateSource
		}
		if loc.City != "" && loc.State != "" {
			break
		}
	}
	return loc
}

func fromNormalized(a *entity.NormalizedAddress) (string, string) {
	if a == nil {
		return "", ""
	}
	return a.City, a.State
}
