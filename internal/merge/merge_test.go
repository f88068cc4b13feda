package merge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/ratecon-tracker/internal/address"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

func apply(form entity.FormState, rec *entity.ExtractedRecord) (entity.FormState, []Change) {
	return Apply(form, rec, address.Resolve(rec))
}

func TestApplyOverridesPresentValue(t *testing.T) {
	form := entity.FormState{Reference: "OLD"}
	out, changes := apply(form, &entity.ExtractedRecord{Reference: "LD-1"})

	assert.Equal(t, "LD-1", out.Reference)
	require.Len(t, changes, 1)
	assert.Equal(t, Change{Field: "reference", Source: "reference", Old: "OLD", New: "LD-1"}, changes[0])
	assert.Equal(t, "OLD", form.Reference, "input untouched")
}

func TestApplyReferenceJSONShape(t *testing.T) {
	var form entity.FormState
	require.NoError(t, json.Unmarshal([]byte(`{"reference":"OLD"}`), &form))

	out, _ := apply(form, &entity.ExtractedRecord{Reference: "LD-1"})
	body, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reference":"LD-1"}`, string(body))

	out, _ = apply(form, &entity.ExtractedRecord{Rate: "100"})
	body, err = json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reference":"OLD","rate":"100"}`, string(body))
}

func TestApplyRetainsOnAbsentValue(t *testing.T) {
	form := entity.FormState{Reference: "OLD", Rate: "1500"}
	out, changes := apply(form, &entity.ExtractedRecord{Reference: "   "})

	assert.Equal(t, form, out)
	assert.Empty(t, changes)

	out, changes = apply(form, nil)
	assert.Equal(t, form, out)
	assert.Empty(t, changes)
}

func TestIdentifierFallbackOrder(t *testing.T) {
	tests := []struct {
		name   string
		rec    entity.ExtractedRecord
		want   func(entity.FormState) string
		value  string
		source string
	}{
		{"reference wins", entity.ExtractedRecord{Reference: "A", ReferenceNumber: "B", LoadNumber: "C"},
			func(f entity.FormState) string { return f.Reference }, "A", "reference"},
		{"reference_number second", entity.ExtractedRecord{ReferenceNumber: "B", LoadNumber: "C"},
			func(f entity.FormState) string { return f.Reference }, "B", "reference_number"},
		{"load_number last", entity.ExtractedRecord{LoadNumber: "C"},
			func(f entity.FormState) string { return f.Reference }, "C", "load_number"},
		{"bill_of_lading", entity.ExtractedRecord{BillOfLading: "BL9"},
			func(f entity.FormState) string { return f.BOLNumber }, "BL9", "bill_of_lading"},
		{"pro", entity.ExtractedRecord{PRO: "P1"},
			func(f entity.FormState) string { return f.PRONumber }, "P1", "pro"},
		{"po from customer reference", entity.ExtractedRecord{CustomerReference: "CR7"},
			func(f entity.FormState) string { return f.PONumber }, "CR7", "customer_reference"},
		{"po before purchase order", entity.ExtractedRecord{PO: "P", PurchaseOrder: "Q"},
			func(f entity.FormState) string { return f.PONumber }, "P", "po"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changes := apply(entity.FormState{}, &tt.rec)
			assert.Equal(t, tt.value, tt.want(out))
			var sources []string
			for _, c := range changes {
				sources = append(sources, c.Source)
			}
			assert.Contains(t, sources, tt.source)
		})
	}
}

func TestEquipmentMapping(t *testing.T) {
	out, _ := apply(entity.FormState{EquipmentType: "Flatbed"}, &entity.ExtractedRecord{EquipmentType: "REEFER UNIT"})
	assert.Equal(t, "Reefer", out.EquipmentType)

	out, changes := apply(entity.FormState{EquipmentType: "Flatbed"}, &entity.ExtractedRecord{EquipmentType: "UNKNOWN_CODE"})
	assert.Equal(t, "Flatbed", out.EquipmentType)
	assert.Empty(t, changes)
}

func TestLocationFields(t *testing.T) {
	rec := &entity.ExtractedRecord{
		Origin: "Chicago, IL",
		DeliveryAddress: &entity.NormalizedAddress{
			CompanyName: "ABC Foods", AddressLine1: "100 Main St", City: "Hollister", State: "CA", PostalCode: "95023",
		},
	}
	out, changes := apply(entity.FormState{PickupCity: "Gary"}, rec)

	assert.Equal(t, "Chicago", out.PickupCity)
	assert.Equal(t, "IL", out.PickupState)
	assert.Equal(t, "Hollister", out.DeliveryCity)
	assert.Equal(t, "CA", out.DeliveryState)
	assert.Equal(t, "ABC Foods, 100 Main St, Hollister, CA 95023", out.DeliveryAddress)

	bySource := map[string]string{}
	for _, c := range changes {
		bySource[c.Field] = c.Source
	}
	assert.Equal(t, "origin", bySource["pickup_city"])
	assert.Equal(t, "delivery_address.city", bySource["delivery_city"])
	assert.Equal(t, "delivery_address", bySource["delivery_address"])
}

func TestFullAddressPreferredOverBuilt(t *testing.T) {
	rec := &entity.ExtractedRecord{
		PickupAddressFull: "Dock 3, 1 Elm St, Reno, NV 89501",
		PickupAddress:     &entity.NormalizedAddress{AddressLine1: "1 Elm St"},
	}
	out, _ := apply(entity.FormState{}, rec)
	assert.Equal(t, "Dock 3, 1 Elm St, Reno, NV 89501", out.PickupAddress)
	assert.Equal(t, "Reno", out.PickupCity)
}

func TestStopsReplacedOnlyWhenPresent(t *testing.T) {
	existing := []entity.Stop{{Sequence: 1, Type: "PICKUP", City: "Gary"}}
	form := entity.FormState{Stops: existing}

	out, _ := apply(form, &entity.ExtractedRecord{Rate: "100"})
	assert.Equal(t, existing, out.Stops)

	rec := &entity.ExtractedRecord{Stops: []entity.StopEvent{
		{Sequence: 1, Type: "PICKUP", NormalizedAddress: entity.NormalizedAddress{City: "Chicago", State: "il"}},
		{Sequence: 2, Type: "DELIVERY", NormalizedAddress: entity.NormalizedAddress{City: "Reno", State: "NV"}},
	}}
	out, changes := apply(form, rec)
	require.Len(t, out.Stops, 2)
	assert.Equal(t, "Chicago, IL", out.Stops[0].Address)
	assert.Equal(t, "Gary", form.Stops[0].City, "input untouched")
	assert.Equal(t, "PICKUP Chicago, IL -> DELIVERY Reno, NV", changes[len(changes)-1].New)
}

func TestPrecedenceTable(t *testing.T) {
	p := Precedence()
	assert.Equal(t, []string{"reference", "reference_number", "load_number"}, p["reference"])
	assert.Equal(t, []string{"bol_number", "bol", "bill_of_lading"}, p["bol_number"])
	assert.Equal(t, []string{"pro_number", "pro"}, p["pro_number"])
	assert.Equal(t, []string{"po_number", "po", "purchase_order", "customer_reference"}, p["po_number"])
}
