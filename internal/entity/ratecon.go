package entity

// NormalizedAddress is a structured facility address as returned by the model.
type NormalizedAddress struct {
	CompanyName  string `json:"company_name,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Country      string `json:"country,omitempty"`
}

func (a *NormalizedAddress) IsZero() bool {
	return a == nil || *a == NormalizedAddress{}
}

// StopEvent is one pickup, delivery or intermediate stop on the route.
type StopEvent struct {
	Sequence int    `json:"sequence,omitempty"`
	Type     string `json:"type,omitempty"`
	NormalizedAddress
	ScheduledStart  string `json:"scheduled_start,omitempty"`
	ScheduledEnd    string `json:"scheduled_end,omitempty"`
	ContactName     string `json:"contact_name,omitempty"`
	ContactPhone    string `json:"contact_phone,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// ExtractedRecord is the candidate output of one extraction. Every leaf is
// optional; an empty string means the model did not report the field.
type ExtractedRecord struct {
	Reference   string `json:"reference,omitempty"`
	Shipper     string `json:"shipper,omitempty"`
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	BrokerName  string `json:"broker_name,omitempty"`

	PickupDate   string `json:"pickup_date,omitempty"`
	PickupTime   string `json:"pickup_time,omitempty"`
	DeliveryDate string `json:"delivery_date,omitempty"`
	DeliveryTime string `json:"delivery_time,omitempty"`

	ShipperContactName   string `json:"shipper_contact_name,omitempty"`
	ShipperContactPhone  string `json:"shipper_contact_phone,omitempty"`
	ShipperContactEmail  string `json:"shipper_contact_email,omitempty"`
	ReceiverContactName  string `json:"receiver_contact_name,omitempty"`
	ReceiverContactPhone string `json:"receiver_contact_phone,omitempty"`
	ReceiverContactEmail string `json:"receiver_contact_email,omitempty"`

	BOLNumber         string `json:"bol_number,omitempty"`
	PONumber          string `json:"po_number,omitempty"`
	CustomerReference string `json:"customer_reference,omitempty"`

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

	PickupAddressFull   string             `json:"pickup_address_full,omitempty"`
	DeliveryAddressFull string             `json:"delivery_address_full,omitempty"`
	PickupAddress       *NormalizedAddress `json:"pickup_address,omitempty"`
	DeliveryAddress     *NormalizedAddress `json:"delivery_address,omitempty"`

	Stops []StopEvent `json:"stops,omitempty"`

	// Synonyms some documents and models use; consulted by the merge fallback tables.
	ReferenceNumber string `json:"reference_number,omitempty"`
	LoadNumber      string `json:"load_number,omitempty"`
	BOL             string `json:"bol,omitempty"`
	BillOfLading    string `json:"bill_of_lading,omitempty"`
	PRONumber       string `json:"pro_number,omitempty"`
	PRO             string `json:"pro,omitempty"`
	PO              string `json:"po,omitempty"`
	PurchaseOrder   string `json:"purchase_order,omitempty"`
	PickupCity      string `json:"pickup_city,omitempty"`
	PickupState     string `json:"pickup_state,omitempty"`
	DeliveryCity    string `json:"delivery_city,omitempty"`
	DeliveryState   string `json:"delivery_state,omitempty"`
}

// Clone returns a deep copy.
func (r *ExtractedRecord) Clone() *ExtractedRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.PickupAddress != nil {
		a := *r.PickupAddress
		out.PickupAddress = &a
	}
	if r.DeliveryAddress != nil {
		a := *r.DeliveryAddress
		out.DeliveryAddress = &a
	}
	if r.Stops != nil {
		out.Stops = append([]StopEvent(nil), r.Stops...)
	}
	return &out
}
