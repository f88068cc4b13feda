package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/ratecon-tracker/constants"
)

// BuildSystemPrompt lists every ExtractionSchema field with its meaning and
// the location rules the model must follow.
func BuildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You extract structured data from freight rate confirmations. ")
	b.WriteString("Return ONLY one JSON object that matches the provided JSON Schema (" + SchemaVersion + "). ")
	b.WriteString("Never invent values: if a field is not visible in the document, omit it or use null.\n\n")

	b.WriteString("Fields:\n")
	for _, f := range extractionFields {
		b.WriteString("- ")
		b.WriteString(f.name)
		switch f.kind {
		case "enum":
			b.WriteString(" (enum: " + strings.Join(constants.EquipmentCodes(), ", ") + ")")
		case "number":
			b.WriteString(" (number as printed, may include currency symbols)")
		}
		b.WriteString(": ")
		b.WriteString(f.desc)
		b.WriteString("\n")
	}
	b.WriteString("NormalizedAddress: " + strings.Join(addressFields, ", ") + "; state is the 2-letter code.\n")
	b.WriteString("StopEvent: sequence (integer, ascending from 1), type (" + strings.Join(stopTypes, "|") +
		"), the NormalizedAddress fields, scheduled_start, scheduled_end, contact_name, contact_phone, reference_number, notes.\n\n")

	b.WriteString("Locations: pickup_* and delivery_* fields and stops describe the TRUE pickup and delivery ")
	b.WriteString("locations, i.e. the shipper and consignee/receiver facilities where freight is loaded and unloaded. ")
	b.WriteString("Do NOT use remittance, billing, 'send invoices to', factoring or broker office addresses for them, ")
	b.WriteString("even when those addresses are more prominent on the page.\n")
	b.WriteString("Identifiers: put the broker's load/reference number in 'reference'; keep BOL, PO and customer reference numbers in their own fields.\n")
	b.WriteString("equipment_type must be one of the enum values; if the trailer type is not stated, omit it.")
	return b.String()
}

// BuildUserPrompt carries the page-count guidance. Multi-page documents are
// reconciled by the model into one object.
func BuildUserPrompt(pageCount int, filename string) string {
	var b strings.Builder
	if name := strings.TrimSpace(filename); name != "" {
		b.WriteString("Filename: ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	if pageCount > 1 {
		b.WriteString(fmt.Sprintf("This rate confirmation has %d pages, attached in order. ", pageCount))
		b.WriteString(fmt.Sprintf("Combine the information found across all %d pages into ONE unified JSON object; ", pageCount))
		b.WriteString("fields are not page-scoped (for example pickup details on page 1 and rate details on page 2 belong to the same load).\n")
	} else {
		b.WriteString("The rate confirmation is attached as one image.\n")
	}
	b.WriteString("Return ONLY JSON that matches the provided schema.")
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// SchemaText renders the ExtractionSchema for providers without native schema support.
func SchemaText(schema map[string]any) string {
	return "JSON Schema:\n" + mustJSON(schema)
}
