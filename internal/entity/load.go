package entity

import (
	"time"

	"github.com/google/uuid"
)

// Stop is a route stop as held on the load form.
type Stop struct {
	Sequence        int    `json:"sequence"`
	Type            string `json:"type"`
	CompanyName     string `json:"company_name,omitempty"`
	Address         string `json:"address,omitempty"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	PostalCode      string `json:"postal_code,omitempty"`
	ScheduledStart  string `json:"scheduled_start,omitempty"`
	ScheduledEnd    string `json:"scheduled_end,omitempty"`
	ContactName     string `json:"contact_name,omitempty"`
	ContactPhone    string `json:"contact_phone,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// FormState is the in-progress load being created or edited. It is passed by
// value; Clone must be used before handing the same snapshot to two owners.
type FormState struct {
	Reference         string `json:"reference,omitempty"`
	BOLNumber         string `json:"bol_number,omitempty"`
	PRONumber         string `json:"pro_number,omitempty"`
	PONumber          string `json:"po_number,omitempty"`
	CustomerReference string `json:"customer_reference,omitempty"`

	BrokerName string `json:"broker_name,omitempty"`
	Shipper    string `json:"shipper,omitempty"`

	PickupDate      string `json:"pickup_date,omitempty"`
	PickupTime      string `json:"pickup_time,omitempty"`
	PickupCity      string `json:"pickup_city,omitempty"`
	PickupState     string `json:"pickup_state,omitempty"`
	PickupAddress   string `json:"pickup_address,omitempty"`
	DeliveryDate    string `json:"delivery_date,omitempty"`
	DeliveryTime    string `json:"delivery_time,omitempty"`
	DeliveryCity    string `json:"delivery_city,omitempty"`
	DeliveryState   string `json:"delivery_state,omitempty"`
	DeliveryAddress string `json:"delivery_address,omitempty"`

	ShipperContactName   string `json:"shipper_contact_name,omitempty"`
	ShipperContactPhone  string `json:"shipper_contact_phone,omitempty"`
	ShipperContactEmail  string `json:"shipper_contact_email,omitempty"`
	ReceiverContactName  string `json:"receiver_contact_name,omitempty"`
	ReceiverContactPhone string `json:"receiver_contact_phone,omitempty"`
	ReceiverContactEmail string `json:"receiver_contact_email,omitempty"`

	Commodity           string `json:"commodity,omitempty"`
	Weight              string `json:"weight,omitempty"`
	Pieces              string `json:"pieces,omitempty"`
	EquipmentType       string `json:"equipment_type,omitempty"`
	Temperature         string `json:"temperature,omitempty"`
	SpecialInstructions string `json:"special_instructions,omitempty"`

	Miles              string `json:"miles,omitempty"`
	Rate               string `json:"rate,omitempty"`
	RatePerMile        string `json:"rate_per_mile,omitempty"`
	DetentionCharges   string `json:"detention_charges,omitempty"`
	AccessorialCharges string `json:"accessorial_charges,omitempty"`

	Stops []Stop `json:"stops,omitempty"`
}

// Clone returns a copy that shares no memory with f.
func (f FormState) Clone() FormState {
	if f.Stops != nil {
		f.Stops = append([]Stop(nil), f.Stops...)
	}
	return f
}

// Load is a saved FormState draft.
type Load struct {
	ID        uuid.UUID `json:"id"`
	Form      FormState `json:"form"`
	SourceSHA string    `json:"source_sha256,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
