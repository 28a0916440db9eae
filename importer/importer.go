// Package importer reads member spreadsheets (CSV or XLSX) into rows for
// the bulk upsert.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"fitsense-backend/services"
	"fitsense-backend/utils"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .csv or .xlsx")
	ErrMissingHeader     = errors.New("header row must contain a name column")
)

const maxEmptyRows = 10

type column int

const (
	colName column = iota
	colEmail
	colPhone
	colPlan
	colTotal
	colPaid
	colMode
	colStart
	colEnd
	colNotes
)

// headerAliases maps normalized header cells to columns.
var headerAliases = map[string]column{
	"name":                  colName,
	"member name":           colName,
	"full name":             colName,
	"email":                 colEmail,
	"email address":         colEmail,
	"phone":                 colPhone,
	"mobile":                colPhone,
	"phone number":          colPhone,
	"plan":                  colPlan,
	"plan name":             colPlan,
	"plan total":            colTotal,
	"plan total amount":     colTotal,
	"total":                 colTotal,
	"paid":                  colPaid,
	"paid amount":           colPaid,
	"amount paid":           colPaid,
	"payment mode":          colMode,
	"mode":                  colMode,
	"start date":            colStart,
	"membership start":      colStart,
	"membership start date": colStart,
	"end date":              colEnd,
	"membership end":        colEnd,
	"membership end date":   colEnd,
	"notes":                 colNotes,
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func mapHeader(header []string) (map[column]int, error) {
	cols := make(map[column]int)
	for i, cell := range header {
		if col, ok := headerAliases[normalizeHeader(cell)]; ok {
			if _, seen := cols[col]; !seen {
				cols[col] = i
			}
		}
	}
	if _, ok := cols[colName]; !ok {
		return nil, ErrMissingHeader
	}
	return cols, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Parse picks the reader from the file extension.
func Parse(r io.Reader, filename string) ([]services.ImportRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r, "")
	default:
		return nil, ErrUnsupportedFormat
	}
}

func ParseCSV(r io.Reader) ([]services.ImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRecords(records)
}

// ParseXLSX reads the named sheet, or the first sheet when sheet is empty.
func ParseXLSX(r io.Reader, sheet string) ([]services.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrMissingHeader
		}
		sheet = sheets[0]
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return fromRecords(records)
}

func fromRecords(records [][]string) ([]services.ImportRow, error) {
	if len(records) == 0 {
		return nil, ErrMissingHeader
	}
	cols, err := mapHeader(records[0])
	if err != nil {
		return nil, err
	}

	rows := []services.ImportRow{}
	empty := 0
	for _, record := range records[1:] {
		if isEmptyRow(record) {
			empty++
			if empty >= maxEmptyRows {
				break
			}
			continue
		}
		empty = 0
		rows = append(rows, toRow(record, cols))
	}
	return rows, nil
}

func toRow(record []string, cols map[column]int) services.ImportRow {
	cell := func(col column) string {
		i, ok := cols[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := services.ImportRow{
		Name:        cell(colName),
		Email:       cell(colEmail),
		Phone:       cell(colPhone),
		PlanName:    cell(colPlan),
		PaymentMode: strings.ToLower(cell(colMode)),
		Notes:       cell(colNotes),
	}
	var problems []string

	if v, err := parseAmount(cell(colTotal)); err != nil {
		problems = append(problems, "plan total: "+err.Error())
	} else {
		row.PlanTotalAmount = v
	}
	if v, err := parseAmount(cell(colPaid)); err != nil {
		problems = append(problems, "paid amount: "+err.Error())
	} else {
		row.PaidAmount = v
	}
	if s := cell(colStart); s != "" {
		if t, ok := utils.ParseDate(s); ok {
			row.StartDate = &t
		} else {
			problems = append(problems, fmt.Sprintf("unrecognised start date %q", s))
		}
	}
	if s := cell(colEnd); s != "" {
		if t, ok := utils.ParseDate(s); ok {
			row.EndDate = &t
		} else {
			problems = append(problems, fmt.Sprintf("unrecognised end date %q", s))
		}
	}
	row.ParseError = strings.Join(problems, "; ")
	return row
}

// parseAmount accepts plain numbers and values with currency symbols or
// thousands separators, as spreadsheets often export them.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer(",", "", "₹", "", "$", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d, nil
	}
	f, err := cast.ToFloat64E(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return decimal.NewFromFloat(f), nil
}
