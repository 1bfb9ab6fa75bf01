package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/xuri/excelize/v2"

	"agrismart.dev/agrismart/internal/models"
	"agrismart.dev/agrismart/pkg/logger"
)

const (
	priceSheet     = "Market Prices"
	xlsxMIME       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxImportBytes = 5 << 20
	maxRowErrors   = 20
)

// priceColumns is the required import header, in export order. Variety is
// exported last and optional on import.
var priceColumns = []string{
	"commodity", "market", "district", "state",
	"min_price", "max_price", "modal_price", "arrival_date",
}

var importDateLayouts = []string{
	time.DateOnly,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"01-02-06",
	time.RFC3339,
}

// RowError reports why one spreadsheet row was rejected.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (s *Server) handleExportMarketPrices(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	filter, err := marketFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("limit") == "" {
		filter.Limit = maxPriceLimit
	}

	prices, err := s.config.Reference.ListMarketPrices(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	f, err := marketWorkbook(prices)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed to close workbook", "error", err)
		}
	}()

	name := fmt.Sprintf("market-prices-%s.xlsx", time.Now().UTC().Format(time.DateOnly))
	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	if err := f.Write(w); err != nil {
		logger.FromContext(r.Context(), s.logger).Error("failed to write workbook", "error", err)
	}
}

// marketWorkbook builds a one-sheet workbook of prices.
func marketWorkbook(prices []models.MarketPrice) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", priceSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, 0, len(priceColumns)+1)
	for _, c := range priceColumns {
		header = append(header, c)
	}
	header = append(header, "variety")
	if err := f.SetSheetRow(priceSheet, "A1", &header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(priceSheet, "A1", "I1", bold)
	}
	_ = f.SetColWidth(priceSheet, "A", "I", 16)

	for i, p := range prices {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		row := []any{
			p.Commodity, p.Market, p.District, p.State,
			p.MinPrice, p.MaxPrice, p.ModalPrice,
			p.ArrivalDate.Format(time.DateOnly), p.Variety,
		}
		if err := f.SetSheetRow(priceSheet, cell, &row); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return f, nil
}

func (s *Server) handleImportMarketPrices(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ *caller) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes+(1<<20))
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, invalid("spreadsheet must be at most 5 MiB"))
			return
		}
		s.fail(w, r, invalid("expected a multipart form with a file"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, invalid("file is required"))
		return
	}
	defer file.Close()

	f, err := excelize.OpenReader(file)
	if err != nil {
		s.fail(w, r, invalid("file is not a valid XLSX workbook"))
		return
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		s.fail(w, r, invalid("workbook has no sheets"))
		return
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		s.fail(w, r, invalid("failed to read sheet %q", sheets[0]))
		return
	}

	prices, rowErrs, err := parsePriceRows(rows)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(rowErrs) > 0 {
		RespondWithJSON(w, http.StatusBadRequest, envelope{
			"success":    false,
			"error":      fmt.Sprintf("%d row(s) could not be imported", len(rowErrs)),
			"row_errors": rowErrs,
		})
		return
	}

	if err := s.config.Reference.CreateMarketPrices(r.Context(), prices); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, envelope{"imported": len(prices)})
}

// parsePriceRows maps a header row and data rows to prices. Blank rows are
// skipped. Any invalid row rejects the whole import.
func parsePriceRows(rows [][]string) ([]models.MarketPrice, []RowError, error) {
	if len(rows) == 0 {
		return nil, nil, invalid("spreadsheet is empty")
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range priceColumns {
		if _, found := index[c]; !found {
			return nil, nil, invalid("missing column %q", c)
		}
	}

	var (
		prices []models.MarketPrice
		errs   []RowError
	)
	for n, row := range rows[1:] {
		rowNum := n + 2
		cell := func(col string) string {
			i, found := index[col]
			if !found || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if blank(row) {
			continue
		}

		p, err := priceFromRow(cell)
		if err == nil {
			err = validatePrice(p)
		}
		if err != nil {
			if len(errs) < maxRowErrors {
				errs = append(errs, RowError{Row: rowNum, Message: err.Error()})
			}
			continue
		}
		prices = append(prices, *p)
	}

	if len(prices) == 0 && len(errs) == 0 {
		return nil, nil, invalid("spreadsheet has no data rows")
	}
	return prices, errs, nil
}

func priceFromRow(cell func(string) string) (*models.MarketPrice, error) {
	p := &models.MarketPrice{
		Commodity: cell("commodity"),
		Market:    cell("market"),
		District:  cell("district"),
		State:     cell("state"),
		Variety:   cell("variety"),
	}
	for _, f := range []struct {
		col string
		dst *float64
	}{
		{"min_price", &p.MinPrice},
		{"max_price", &p.MaxPrice},
		{"modal_price", &p.ModalPrice},
	} {
		v := strings.ReplaceAll(cell(f.col), ",", "")
		if v == "" {
			continue
		}
		n, ok := parseFinite(v)
		if !ok {
			return nil, invalid("%s %q is not a number", f.col, v)
		}
		*f.dst = n
	}

	d, err := importDate(cell("arrival_date"))
	if err != nil {
		return nil, err
	}
	p.ArrivalDate = d
	return p, nil
}

// importDate accepts the common date layouts and raw Excel serial numbers.
func importDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, invalid("arrival_date is required")
	}
	for _, layout := range importDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, ok := parseFinite(v); ok && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalid("arrival_date %q is not a date", v)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
