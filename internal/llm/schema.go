package llm

import (
	"strings"

	"github.com/joseph-ayodele/ratecon-tracker/constants"
)

// SchemaVersion identifies the extraction contract shared by the prompt and the validator.
const SchemaVersion = "ratecon.v1"

type fieldSpec struct {
	name string
	kind string // string | number | enum | address | stops
	desc string
}

// extractionFields is the authoritative top-level field list, in prompt order.
var extractionFields = []fieldSpec{
	{"reference", "string", "load / reference / confirmation number assigned by the broker"},
	{"shipper", "string", "shipper (pickup facility) company name"},
	{"origin", "string", `pickup location as "City, ST"`},
	{"destination", "string", `delivery location as "City, ST"`},
	{"broker_name", "string", "freight broker company issuing the rate confirmation"},
	{"pickup_date", "string", "pickup date, YYYY-MM-DD when possible"},
	{"pickup_time", "string", "pickup time or appointment window"},
	{"delivery_date", "string", "delivery date, YYYY-MM-DD when possible"},
	{"delivery_time", "string", "delivery time or appointment window"},
	{"shipper_contact_name", "string", "contact person at the pickup facility"},
	{"shipper_contact_phone", "string", "phone of the pickup facility contact"},
	{"shipper_contact_email", "string", "email of the pickup facility contact"},
	{"receiver_contact_name", "string", "contact person at the delivery facility"},
	{"receiver_contact_phone", "string", "phone of the delivery facility contact"},
	{"receiver_contact_email", "string", "email of the delivery facility contact"},
	{"bol_number", "string", "bill of lading number"},
	{"po_number", "string", "purchase order number"},
	{"customer_reference", "string", "customer / shipper reference number"},
	{"commodity", "string", "commodity description"},
	{"weight", "number", "total weight as printed"},
	{"pieces", "string", "piece, pallet or case count"},
	{"equipment_type", "enum", "required trailer type"},
	{"temperature", "string", "temperature requirement for refrigerated loads"},
	{"special_instructions", "string", "special handling or driver instructions"},
	{"miles", "number", "loaded miles"},
	{"rate", "number", "total carrier pay / line haul rate"},
	{"rate_per_mile", "number", "rate per mile"},
	{"detention_charges", "number", "detention amount as a single number"},
	{"accessorial_charges", "number", "total accessorial charges"},
	{"pickup_address_full", "string", "complete single-line pickup facility address"},
	{"delivery_address_full", "string", "complete single-line delivery facility address"},
	{"pickup_address", "address", "structured pickup facility address (NormalizedAddress)"},
	{"delivery_address", "address", "structured delivery facility address (NormalizedAddress)"},
	{"stops", "stops", "every pickup, delivery and intermediate stop in route order (array of StopEvent)"},
}

// Aliases are synonyms accepted from the model in addition to the schema
// fields. They only feed the merge fallback tables.
var Aliases = []string{
	"reference_number", "load_number",
	"bol", "bill_of_lading",
	"pro_number", "pro",
	"po", "purchase_order",
	"pickup_city", "pickup_state", "delivery_city", "delivery_state",
}

var addressFields = []string{"company_name", "address_line1", "address_line2", "city", "state", "postal_code", "country"}

var stopFields = append([]string{"sequence", "type"}, append(append([]string(nil), addressFields...),
	"scheduled_start", "scheduled_end", "contact_name", "contact_phone", "reference_number", "notes")...)

var stopTypes = []string{string(constants.StopPickup), string(constants.StopDelivery), string(constants.StopOther)}

// SchemaFields returns the top-level ExtractionSchema field names in order.
func SchemaFields() []string {
	out := make([]string, len(extractionFields))
	for i, f := range extractionFields {
		out[i] = f.name
	}
	return out
}

// IsSchemaKey reports whether key is a schema field or an accepted alias.
// Nested keys ("pickup_address.city") are checked by their top-level name.
func IsSchemaKey(key string) bool {
	if i := strings.IndexByte(key, '.'); i >= 0 {
		key = key[:i]
	}
	_, ok := allowedTopLevel[key]
	return ok
}

var allowedTopLevel = func() map[string]string {
	m := make(map[string]string, len(extractionFields)+len(Aliases))
	for _, f := range extractionFields {
		m[f.name] = f.kind
	}
	for _, a := range Aliases {
		m[a] = "string"
	}
	return m
}()

// BuildExtractionJSONSchema returns the ExtractionSchema as a JSON-Schema map.
// It is sent to providers as the output contract and compiled locally to
// validate sanitized output.
func BuildExtractionJSONSchema() map[string]any {
	props := make(map[string]any, len(allowedTopLevel))
	for _, f := range extractionFields {
		props[f.name] = propFor(f.kind)
	}
	for _, a := range Aliases {
		props[a] = stringProp()
	}
	props["pickup_state"] = stateProp()
	props["delivery_state"] = stateProp()

	return map[string]any{
		"title":                "rate confirmation " + SchemaVersion,
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

func propFor(kind string) map[string]any {
	switch kind {
	case "number":
		// numeric-looking fields arrive as printed ("$1,234.50"); normalization happens later
		return stringProp()
	case "enum":
		return map[string]any{"type": "string", "enum": constants.EquipmentCodes()}
	case "address":
		return addressProp()
	case "stops":
		return map[string]any{"type": "array", "items": stopProp()}
	}
	return stringProp()
}

func stringProp() map[string]any {
	return map[string]any{"type": "string", "minLength": 1}
}

func stateProp() map[string]any {
	return map[string]any{"type": "string", "pattern": `^[A-Z]{2}$`}
}

func addressProps() map[string]any {
	props := make(map[string]any, len(addressFields))
	for _, k := range addressFields {
		props[k] = stringProp()
	}
	props["state"] = stateProp()
	return props
}

func addressProp() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           addressProps(),
	}
}

func stopProp() map[string]any {
	props := addressProps()
	for _, k := range stopFields {
		if _, ok := props[k]; !ok {
			props[k] = stringProp()
		}
	}
	props["sequence"] = map[string]any{"type": "integer", "minimum": 1}
	props["type"] = map[string]any{"type": "string", "enum": stopTypes}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}
