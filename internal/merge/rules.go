package merge

import (
	"github.com/joseph-ayodele/ratecon-tracker/constants"
	"github.com/joseph-ayodele/ratecon-tracker/internal/address"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

type input struct {
	rec *entity.ExtractedRecord
	res address.Resolution
}

// candidate is one extracted source for a form field. source overrides name
// in the change report when the value was derived (address resolution).
type candidate struct {
	name   string
	get    func(in *input) string
	source func(in *input) string
}

// rule is the ordered precedence list of one form field. The first candidate
// with a non-blank value wins; transform may reject a value by returning "".
type rule struct {
	target     string
	field      func(f *entity.FormState) *string
	candidates []candidate
	transform  func(string) string
}

func from(name string, get func(r *entity.ExtractedRecord) string) candidate {
	return candidate{name: name, get: func(in *input) string { return get(in.rec) }}
}

func direct(target string, field func(f *entity.FormState) *string, get func(r *entity.ExtractedRecord) string) rule {
	return rule{target: target, field: field, candidates: []candidate{from(target, get)}}
}

// rules is the field precedence table applied by Apply, in report order.
var rules = []rule{
	{
		target: "reference",
		field:  func(f *entity.FormState) *string { return &f.Reference },
		candidates: []candidate{
			from("reference", func(r *entity.ExtractedRecord) string { return r.Reference }),
			from("reference_number", func(r *entity.ExtractedRecord) string { return r.ReferenceNumber }),
			from("load_number", func(r *entity.ExtractedRecord) string { return r.LoadNumber }),
		},
	},
	{
		target: "bol_number",
		field:  func(f *entity.FormState) *string { return &f.BOLNumber },
		candidates: []candidate{
			from("bol_number", func(r *entity.ExtractedRecord) string { return r.BOLNumber }),
			from("bol", func(r *entity.ExtractedRecord) string { return r.BOL }),
			from("bill_of_lading", func(r *entity.ExtractedRecord) string { return r.BillOfLading }),
		},
	},
	{
		target: "pro_number",
		field:  func(f *entity.FormState) *string { return &f.PRONumber },
		candidates: []candidate{
			from("pro_number", func(r *entity.ExtractedRecord) string { return r.PRONumber }),
			from("pro", func(r *entity.ExtractedRecord) string { return r.PRO }),
		},
	},
	{
		target: "po_number",
		field:  func(f *entity.FormState) *string { return &f.PONumber },
		candidates: []candidate{
			from("po_number", func(r *entity.ExtractedRecord) string { return r.PONumber }),
			from("po", func(r *entity.ExtractedRecord) string { return r.PO }),
			from("purchase_order", func(r *entity.ExtractedRecord) string { return r.PurchaseOrder }),
			from("customer_reference", func(r *entity.ExtractedRecord) string { return r.CustomerReference }),
		},
	},
	direct("customer_reference", func(f *entity.FormState) *string { return &f.CustomerReference },
		func(r *entity.ExtractedRecord) string { return r.CustomerReference }),
	direct("broker_name", func(f *entity.FormState) *string { return &f.BrokerName },
		func(r *entity.ExtractedRecord) string { return r.BrokerName }),
	direct("shipper", func(f *entity.FormState) *string { return &f.Shipper },
		func(r *entity.ExtractedRecord) string { return r.Shipper }),

	direct("pickup_date", func(f *entity.FormState) *string { return &f.PickupDate },
		func(r *entity.ExtractedRecord) string { return r.PickupDate }),
	direct("pickup_time", func(f *entity.FormState) *string { return &f.PickupTime },
		func(r *entity.ExtractedRecord) string { return r.PickupTime }),
	{
		target: "pickup_city",
		field:  func(f *entity.FormState) *string { return &f.PickupCity },
		candidates: []candidate{{
			name:   "pickup_city",
			get:    func(in *input) string { return in.res.Pickup.City },
			source: func(in *input) string { return in.res.Pickup.CitySource },
		}},
	},
	{
		target: "pickup_state",
		field:  func(f *entity.FormState) *string { return &f.PickupState },
		candidates: []candidate{{
			name:   "pickup_state",
			get:    func(in *input) string { return in.res.Pickup.State },
			source: func(in *input) string { return in.res.Pickup.StateSource },
		}},
	},
	{
		target: "pickup_address",
		field:  func(f *entity.FormState) *string { return &f.PickupAddress },
		candidates: []candidate{
			from("pickup_address_full", func(r *entity.ExtractedRecord) string { return r.PickupAddressFull }),
			{name: "pickup_address", get: func(in *input) string { return address.BuildFull(in.rec.PickupAddress, in.res.Pickup) }},
		},
	},

	direct("delivery_date", func(f *entity.FormState) *string { return &f.DeliveryDate },
		func(r *entity.ExtractedRecord) string { return r.DeliveryDate }),
	direct("delivery_time", func(f *entity.FormState) *string { return &f.DeliveryTime },
		func(r *entity.ExtractedRecord) string { return r.DeliveryTime }),
	{
		target: "delivery_city",
		field:  func(f *entity.FormState) *string { return &f.DeliveryCity },
		candidates: []candidate{{
			name:   "delivery_city",
			get:    func(in *input) string { return in.res.Delivery.City },
			source: func(in *input) string { return in.res.Delivery.CitySource },
		}},
	},
	{
		target: "delivery_state",
		field:  func(f *entity.FormState) *string { return &f.DeliveryState },
		candidates: []candidate{{
			name:   "delivery_state",
			get:    func(in *input) string { return in.res.Delivery.State },
			source: func(in *input) string { return in.res.Delivery.StateSource },
		}},
	},
	{
		target: "delivery_address",
		field:  func(f *entity.FormState) *string { return &f.DeliveryAddress },
		candidates: []candidate{
			from("delivery_address_full", func(r *entity.ExtractedRecord) string { return r.DeliveryAddressFull }),
			{name: "delivery_address", get: func(in *input) string { return address.BuildFull(in.rec.DeliveryAddress, in.res.Delivery) }},
		},
	},

	direct("shipper_contact_name", func(f *entity.FormState) *string { return &f.ShipperContactName },
		func(r *entity.ExtractedRecord) string { return r.ShipperContactName }),
	direct("shipper_contact_phone", func(f *entity.FormState) *string { return &f.ShipperContactPhone },
		func(r *entity.ExtractedRecord) string { return r.ShipperContactPhone }),
	direct("shipper_contact_email", func(f *entity.FormState) *string { return &f.ShipperContactEmail },
		func(r *entity.ExtractedRecord) string { return r.ShipperContactEmail }),
	direct("receiver_contact_name", func(f *entity.FormState) *string { return &f.ReceiverContactName },
		func(r *entity.ExtractedRecord) string { return r.ReceiverContactName }),
	direct("receiver_contact_phone", func(f *entity.FormState) *string { return &f.ReceiverContactPhone },
		func(r *entity.ExtractedRecord) string { return r.ReceiverContactPhone }),
	direct("receiver_contact_email", func(f *entity.FormState) *string { return &f.ReceiverContactEmail },
		func(r *entity.ExtractedRecord) string { return r.ReceiverContactEmail }),

	direct("commodity", func(f *entity.FormState) *string { return &f.Commodity },
		func(r *entity.ExtractedRecord) string { return r.Commodity }),
	direct("weight", func(f *entity.FormState) *string { return &f.Weight },
		func(r *entity.ExtractedRecord) string { return r.Weight }),
	direct("pieces", func(f *entity.FormState) *string { return &f.Pieces },
		func(r *entity.ExtractedRecord) string { return r.Pieces }),
	{
		target:     "equipment_type",
		field:      func(f *entity.FormState) *string { return &f.EquipmentType },
		candidates: []candidate{from("equipment_type", func(r *entity.ExtractedRecord) string { return r.EquipmentType })},
		transform:  constants.MapEquipment,
	},
	direct("temperature", func(f *entity.FormState) *string { return &f.Temperature },
		func(r *entity.ExtractedRecord) string { return r.Temperature }),
	direct("special_instructions", func(f *entity.FormState) *string { return &f.SpecialInstructions },
		func(r *entity.ExtractedRecord) string { return r.SpecialInstructions }),

	direct("miles", func(f *entity.FormState) *string { return &f.Miles },
		func(r *entity.ExtractedRecord) string { return r.Miles }),
	direct("rate", func(f *entity.FormState) *string { return &f.Rate },
		func(r *entity.ExtractedRecord) string { return r.Rate }),
	direct("rate_per_mile", func(f *entity.FormState) *string { return &f.RatePerMile },
		func(r *entity.ExtractedRecord) string { return r.RatePerMile }),
	direct("detention_charges", func(f *entity.FormState) *string { return &f.DetentionCharges },
		func(r *entity.ExtractedRecord) string { return r.DetentionCharges }),
	direct("accessorial_charges", func(f *entity.FormState) *string { return &f.AccessorialCharges },
		func(r *entity.ExtractedRecord) string { return r.AccessorialCharges }),
}

// Precedence returns the ordered candidate names per form field, for audit and docs.
func Precedence() map[string][]string {
	out := make(map[string][]string, len(rules))
	for _, r := range rules {
		names := make([]string, 0, len(r.candidates))
		for _, c := range r.candidates {
			names = append(names, c.name)
		}
		out[r.target] = names
	}
	out["stops"] = []string{"stops"}
	return out
}
