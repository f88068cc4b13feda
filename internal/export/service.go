package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

// LoadLister is the read side of the load repository.
type LoadLister interface {
	List(ctx context.Context, limit int) ([]entity.Load, error)
}

// Service produces XLSX bytes for exports.
type Service struct {
	loads  LoadLister
	logger *slog.Logger
}

func NewService(loads LoadLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{loads: loads, logger: logger}
}

const sheet = "Loads"

type column struct {
	header string
	width  float64
	value  func(l entity.Load) string
}

var columns = []column{
	{"Load ID", 38, func(l entity.Load) string { return l.ID.String() }},
	{"Reference", 16, func(l entity.Load) string { return l.Form.Reference }},
	{"Broker", 24, func(l entity.Load) string { return l.Form.BrokerName }},
	{"Shipper", 24, func(l entity.Load) string { return l.Form.Shipper }},
	{"Pickup Date", 12, func(l entity.Load) string { return l.Form.PickupDate }},
	{"Origin", 22, func(l entity.Load) string { return cityState(l.Form.PickupCity, l.Form.PickupState) }},
	{"Delivery Date", 12, func(l entity.Load) string { return l.Form.DeliveryDate }},
	{"Destination", 22, func(l entity.Load) string { return cityState(l.Form.DeliveryCity, l.Form.DeliveryState) }},
	{"Equipment", 14, func(l entity.Load) string { return l.Form.EquipmentType }},
	{"Commodity", 20, func(l entity.Load) string { return l.Form.Commodity }},
	{"Weight", 10, func(l entity.Load) string { return l.Form.Weight }},
	{"Miles", 10, func(l entity.Load) string { return l.Form.Miles }},
	{"Rate", 12, func(l entity.Load) string { return l.Form.Rate }},
	{"Rate/Mile", 10, func(l entity.Load) string { return l.Form.RatePerMile }},
	{"BOL", 14, func(l entity.Load) string { return l.Form.BOLNumber }},
	{"PO", 14, func(l entity.Load) string { return l.Form.PONumber }},
	{"Stops", 10, func(l entity.Load) string { return fmt.Sprintf("%d", len(l.Form.Stops)) }},
	{"Saved", 20, func(l entity.Load) string { return l.CreatedAt.UTC().Format(time.RFC3339) }},
}

// ExportLoadsXLSX returns a workbook with one row per saved load, newest first.
func (s *Service) ExportLoadsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	loads, err := s.loads.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("query loads: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("xlsx close failed", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, c := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, c.header)
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, c.width)
	}

	for r, l := range loads {
		for i, c := range columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			_ = f.SetCellValue(sheet, cell, c.value(l))
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(loads),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func cityState(city, state string) string {
	return strings.TrimSuffix(strings.TrimSpace(city+", "+state), ",")
}
