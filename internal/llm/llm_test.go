package llm

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
	"github.com/joseph-ayodele/ratecon-tracker/internal/resilience"
)

func TestSystemPromptListsEverySchemaField(t *testing.T) {
	prompt := BuildSystemPrompt()
	for _, f := range SchemaFields() {
		assert.Contains(t, prompt, f, "field %s missing from prompt", f)
	}
	assert.Contains(t, prompt, "DRY_VAN")
	assert.Contains(t, prompt, "remittance")
}

func TestUserPromptPageGuidance(t *testing.T) {
	multi := BuildUserPrompt(3, "ratecon.pdf")
	assert.Contains(t, multi, "3 pages")
	assert.Contains(t, multi, "ONE unified JSON object")
	assert.Contains(t, multi, "ratecon.pdf")

	single := BuildUserPrompt(1, "")
	assert.NotContains(t, single, "unified")
	assert.NotContains(t, single, "Filename")
}

func TestIsSchemaKey(t *testing.T) {
	assert.True(t, IsSchemaKey("rate"))
	assert.True(t, IsSchemaKey("pickup_address.city"))
	assert.True(t, IsSchemaKey("load_number"))
	assert.False(t, IsSchemaKey("remit_to"))
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":            `{"a":1}`,
		"Here you go: {\"a\":1} hope it helps": `{"a":1}`,
		"  {\"a\":1}  ":                        `{"a":1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, StripFences(in), in)
	}
}

func TestParseObject_Malformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"Sorry, I cannot read this document.",
		`{"rate": "1200",`,
		`{"a":1} and {"b":2}`,
	} {
		_, err := ParseObject(raw)
		var perr *common.ResponseParseError
		require.Error(t, err, raw)
		assert.True(t, errors.As(err, &perr), raw)
		assert.Equal(t, common.KindParse, common.KindOf(err))
	}
}

func TestParseObject_RejectsArray(t *testing.T) {
	_, err := ParseObject(`[{"rate":"1"}]`)
	var perr *common.ResponseParseError
	assert.True(t, errors.As(err, &perr))
}

func TestSanitize(t *testing.T) {
	in := map[string]any{
		"rate":           1250.5,
		"reference":      "  LD-9  ",
		"remit_to":       "PO Box 1",
		"commodity":      "N/A",
		"shipper":        nil,
		"equipment_type": "53' Reefer",
		"pickup_state":   "illinois",
		"delivery_state": "Narnia",
		"pickup_address": map[string]any{"city": "Joliet", "state": "il", "fax": "x"},
		"stops": []any{
			map[string]any{"sequence": 2.0, "type": "Consignee", "city": "Reno"},
			map[string]any{"type": "pickup"},
		},
	}
	out, dropped := Sanitize(in)

	assert.Equal(t, "1250.5", out["rate"])
	assert.Equal(t, "LD-9", out["reference"])
	assert.Equal(t, "REEFER", out["equipment_type"])
	assert.Equal(t, "IL", out["pickup_state"])
	assert.NotContains(t, out, "remit_to")
	assert.NotContains(t, out, "commodity")
	assert.NotContains(t, out, "shipper")
	assert.NotContains(t, out, "delivery_state")
	assert.Equal(t, map[string]any{"city": "Joliet", "state": "IL"}, out["pickup_address"])

	stops := out["stops"].([]any)
	require.Len(t, stops, 1)
	assert.Equal(t, map[string]any{"sequence": 2, "type": "DELIVERY", "city": "Reno"}, stops[0])

	joined := strings.Join(dropped, " ")
	assert.Contains(t, joined, "remit_to(unknown)")
	assert.Contains(t, joined, "pickup_address.fax(unknown)")
	assert.Contains(t, joined, "stops[1](empty)")
	assert.Contains(t, in, "remit_to", "input must not be mutated")
}

func TestValidateExtraction_ReportsFields(t *testing.T) {
	err := ValidateExtraction([]byte(`{"rate":{"amount":5},"reference":"LD-1"}`))
	require.Error(t, err)

	var verrs common.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.NotEmpty(t, verrs)
	assert.Equal(t, "rate", verrs[0].Field)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestValidateExtraction_Accepts(t *testing.T) {
	err := ValidateExtraction([]byte(`{"reference":"LD-1","stops":[{"sequence":1,"type":"PICKUP","city":"Joliet"}]}`))
	assert.NoError(t, err)
}

func TestParseRecord(t *testing.T) {
	raw := "```json\n" + `{
		"reference": "LD-1",
		"rate": 1800,
		"equipment_type": "Dry Van",
		"pickup_address": {"city": "Joliet", "state": "IL"},
		"stops": [{"sequence": 1, "type": "PICKUP", "city": "Joliet", "state": "IL"}],
		"notes_to_self": "ignored"
	}` + "\n```"

	rec, b, err := ParseRecord(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, "LD-1", rec.Reference)
	assert.Equal(t, "1800", rec.Rate)
	assert.Equal(t, "DRY_VAN", rec.EquipmentType)
	require.NotNil(t, rec.PickupAddress)
	assert.Equal(t, "Joliet", rec.PickupAddress.City)
	require.Len(t, rec.Stops, 1)
	assert.Equal(t, "IL", rec.Stops[0].State)
	assert.NotContains(t, string(b), "notes_to_self")
}

func TestParseRecord_SchemaViolation(t *testing.T) {
	_, _, err := ParseRecord(`{"rate": ["1", "2"]}`, nil)
	var verrs common.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

type fakeClient struct {
	calls atomic.Int32
	fn    func(n int32, req VisionRequest) (string, error)
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Complete(_ context.Context, req VisionRequest) (string, error) {
	return f.fn(f.calls.Add(1), req)
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestRequesterBuild(t *testing.T) {
	r := NewRequester(&fakeClient{}, fastRetry(), nil)
	req := r.Build([]entity.RenderedPage{
		{Index: 1, MediaType: "image/png", Data: []byte("p1")},
		{Index: 2, MediaType: "image/png", Data: []byte("p2")},
	}, "a.pdf")

	require.Len(t, req.Images, 2)
	assert.Equal(t, 1, req.Images[0].Page)
	assert.Equal(t, 2, req.Images[1].Page)
	assert.Equal(t, 2, req.PageCount)
	assert.Contains(t, req.Prompt, "2 pages")
	assert.NotEmpty(t, req.System)
	assert.NotNil(t, req.Schema)
}

func TestRequesterSend_RetriesTransientOnce(t *testing.T) {
	fc := &fakeClient{fn: func(int32, VisionRequest) (string, error) {
		return "", &common.ExtractionServiceError{Provider: "fake", StatusCode: 503, Retryable: true}
	}}
	r := NewRequester(fc, fastRetry(), nil)

	_, err := r.Send(context.Background(), VisionRequest{PageCount: 1})
	require.Error(t, err)
	assert.Equal(t, int32(2), fc.calls.Load())
	assert.Equal(t, common.KindExtraction, common.KindOf(err))
}

func TestRequesterSend_NoRetryOnPermanent(t *testing.T) {
	fc := &fakeClient{fn: func(int32, VisionRequest) (string, error) {
		return "", &common.ExtractionServiceError{Provider: "fake", StatusCode: 400}
	}}
	r := NewRequester(fc, fastRetry(), nil)

	_, err := r.Send(context.Background(), VisionRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), fc.calls.Load())
}

func TestRequesterSend_RecoversAndWrapsPlainErrors(t *testing.T) {
	fc := &fakeClient{fn: func(n int32, _ VisionRequest) (string, error) {
		if n == 1 {
			return "", context.DeadlineExceeded
		}
		return `{"reference":"LD-1"}`, nil
	}}
	r := NewRequester(fc, fastRetry(), nil)

	out, err := r.Send(context.Background(), VisionRequest{})
	require.NoError(t, err)
	assert.Equal(t, `{"reference":"LD-1"}`, out)
	assert.Equal(t, int32(2), fc.calls.Load())
}

func TestRequesterSend_EmptyContent(t *testing.T) {
	fc := &fakeClient{fn: func(int32, VisionRequest) (string, error) { return "   ", nil }}
	r := NewRequester(fc, fastRetry(), nil)

	_, err := r.Send(context.Background(), VisionRequest{})
	var se *common.ExtractionServiceError
	require.True(t, errors.As(err, &se))
	assert.False(t, se.Retryable)
	assert.Equal(t, int32(1), fc.calls.Load())
}
