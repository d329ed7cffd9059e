// Package export renders reservations into an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"bookbite/internal/engine"
	"bookbite/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	ListSheet      = "Reservations"
	OccupancySheet = "Occupancy"
)

var listHeaders = []string{
	"ID", "Restaurant", "Table", "Date", "Start", "End", "Guests",
	"Status", "Phone", "Email", "Fee", "Promo", "Special requests", "Created",
}

// Fill colours per occupancy cell state.
const (
	colorFree      = "#FFFFFF"
	colorPending   = "#FFEB9C"
	colorConfirmed = "#C6EFCE"
	colorCancelled = "#FFC7CE"
	colorHeader    = "#DDEBF7"
	colorRowHeader = "#E2EFDA"
)

// Write renders reservations between from and to (inclusive) as a workbook
// with a flat list sheet and a table-by-date occupancy sheet.
func Write(w io.Writer, from, to time.Time, reservations []models.Reservation) error {
	if to.Before(from) {
		return fmt.Errorf("export range %s..%s is inverted", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ListSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := writeList(f, reservations); err != nil {
		return err
	}

	if _, err := f.NewSheet(OccupancySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	if err := writeOccupancy(f, from, to, reservations); err != nil {
		return err
	}

	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writeList(f *excelize.File, reservations []models.Reservation) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, header := range listHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ListSheet, cell, header)
		_ = f.SetCellStyle(ListSheet, cell, cell, bold)
	}

	for i, r := range reservations {
		row := []interface{}{
			r.ID, r.RestaurantID, r.TableID, r.Date, r.StartTime, r.EndTime, r.GuestCount,
			string(r.Status), r.ContactPhone, r.ContactEmail, engine.Money(r.FeeCents).String(),
			r.PromoCode, r.SpecialRequests, r.CreatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(ListSheet, cell, &row); err != nil {
			return fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(ListSheet, "A", "C", 10)
	_ = f.SetColWidth(ListSheet, "D", "H", 12)
	_ = f.SetColWidth(ListSheet, "I", "J", 22)
	_ = f.SetColWidth(ListSheet, "K", "L", 12)
	_ = f.SetColWidth(ListSheet, "M", "M", 40)
	_ = f.SetColWidth(ListSheet, "N", "N", 18)
	return nil
}

// writeOccupancy lays tables out as rows and dates as columns. Each cell lists
// the bookings of that table on that day and is coloured by their state.
func writeOccupancy(f *excelize.File, from, to time.Time, reservations []models.Reservation) error {
	_ = f.SetCellValue(OccupancySheet, "A1", fmt.Sprintf("Period: %s - %s",
		from.Format(time.DateOnly), to.Format(time.DateOnly)))

	dateCols := writeDateHeaders(f, from, to)

	byTable := make(map[int64]map[string][]models.Reservation)
	for _, r := range reservations {
		if byTable[r.TableID] == nil {
			byTable[r.TableID] = make(map[string][]models.Reservation)
		}
		byTable[r.TableID][r.Date] = append(byTable[r.TableID][r.Date], r)
	}
	tableIDs := make([]int64, 0, len(byTable))
	for id := range byTable {
		tableIDs = append(tableIDs, id)
	}
	sort.Slice(tableIDs, func(i, j int) bool { return tableIDs[i] < tableIDs[j] })

	styles := make(map[string]int)
	styleFor := func(color string) (int, error) {
		if id, ok := styles[color]; ok {
			return id, nil
		}
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true},
		})
		if err == nil {
			styles[color] = id
		}
		return id, err
	}

	rowHeader, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{colorRowHeader}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return err
	}

	for i, tableID := range tableIDs {
		row := i + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(OccupancySheet, cell, fmt.Sprintf("Table %d", tableID))
		_ = f.SetCellStyle(OccupancySheet, cell, cell, rowHeader)

		for date, col := range dateCols {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			bookings := byTable[tableID][date]
			_ = f.SetCellValue(OccupancySheet, cell, cellText(bookings))
			if style, err := styleFor(cellColor(bookings)); err == nil {
				_ = f.SetCellStyle(OccupancySheet, cell, cell, style)
			}
		}
	}

	_ = f.SetColWidth(OccupancySheet, "A", "A", 14)
	if len(dateCols) > 0 {
		last, _ := excelize.ColumnNumberToName(len(dateCols) + 1)
		_ = f.SetColWidth(OccupancySheet, "B", last, 24)
		_ = f.MergeCell(OccupancySheet, "A1", last+"1")
	}
	title, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err == nil {
		_ = f.SetCellStyle(OccupancySheet, "A1", "A1", title)
	}
	return nil
}

func writeDateHeaders(f *excelize.File, from, to time.Time) map[string]int {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{colorHeader}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	cols := make(map[string]int)
	col := 2
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(OccupancySheet, cell, d.Format("01-02"))
		_ = f.SetCellStyle(OccupancySheet, cell, cell, style)
		cols[d.Format(time.DateOnly)] = col
		col++
	}
	return cols
}

func cellText(bookings []models.Reservation) string {
	if len(bookings) == 0 {
		return "free"
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].StartTime < bookings[j].StartTime })
	var b strings.Builder
	for _, r := range bookings {
		fmt.Fprintf(&b, "%s-%s %s (%d)\n", r.StartTime, r.EndTime, r.Status, r.GuestCount)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// cellColor: red when everything was cancelled, yellow while anything awaits
// confirmation, green otherwise.
func cellColor(bookings []models.Reservation) string {
	if len(bookings) == 0 {
		return colorFree
	}
	active := 0
	for _, r := range bookings {
		switch r.Status {
		case models.StatusPending:
			return colorPending
		case models.StatusCancelled:
		default:
			active++
		}
	}
	if active == 0 {
		return colorCancelled
	}
	return colorConfirmed
}
