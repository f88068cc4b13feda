package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

func ptr(s string) *string { return &s }

func TestNumeric(t *testing.T) {
	assert.Equal(t, "1234.50", *Numeric(ptr("$1,234.50")))
	assert.Nil(t, Numeric(nil))
	assert.Nil(t, Numeric(ptr("N/A")))
	assert.Nil(t, Numeric(ptr("$50/hr after 2 hrs")))
}

func TestDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$1,234.50", "1234.50"},
		{"42,000 lbs", "42000"},
		{"USD 2.85/mi", "2.85"},
		{"1.234.56", ""},
		{"$50/hr after 2 hrs", ""},
		{"Lumper $150, TONU $200", ""},
		{"2 stops @ $75", ""},
		{"$ 1,250,000.75", "1250000.75"},
		{".5", "0.5"},
		{"100.", "100"},
		{"", ""},
		{"call", ""},
		{"1234.50", "1234.50"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Decimal(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Decimal(got), "idempotent")
		})
	}
}

func TestRecordDoesNotMutateInput(t *testing.T) {
	in := &entity.ExtractedRecord{
		Rate:   "$2,500.00",
		Weight: "40,000 lbs",
		Miles:  "812 mi",
		Stops: []entity.StopEvent{
			{Sequence: 2, Type: "consignee"},
			{Sequence: 0, Type: "fuel"},
			{Sequence: 1, Type: "Pick Up"},
		},
	}
	out := Record(in)

	assert.Equal(t, "2500.00", out.Rate)
	assert.Equal(t, "40000", out.Weight)
	assert.Equal(t, "812", out.Miles)
	assert.Equal(t, "", out.RatePerMile)

	require.Len(t, out.Stops, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{out.Stops[0].Sequence, out.Stops[1].Sequence, out.Stops[2].Sequence})
	assert.Equal(t, "PICKUP", out.Stops[0].Type)
	assert.Equal(t, "DELIVERY", out.Stops[1].Type)
	assert.Equal(t, "STOP", out.Stops[2].Type)

	assert.Equal(t, "$2,500.00", in.Rate)
	assert.Equal(t, 2, in.Stops[0].Sequence)
	assert.Equal(t, out, Record(out), "idempotent")
}
