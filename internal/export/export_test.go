package export

import (
	"bytes"
	"testing"
	"time"

	"bookbite/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func day(s string) time.Time {
	d, _ := time.Parse(time.DateOnly, s)
	return d
}

func TestWrite(t *testing.T) {
	reservations := []models.Reservation{
		{ID: 1, RestaurantID: 1, TableID: 5, Date: "2024-05-20", StartTime: "12:00", EndTime: "13:00",
			Status: models.StatusConfirmed, GuestCount: 4, ContactPhone: "+15550100", FeeCents: 1000},
		{ID: 2, RestaurantID: 1, TableID: 6, Date: "2024-05-21", StartTime: "18:00", EndTime: "20:00",
			Status: models.StatusPending, GuestCount: 2, FeeCents: 500, PromoCode: "WELCOME10"},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, day("2024-05-20"), day("2024-05-22"), reservations))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{ListSheet, OccupancySheet}, f.GetSheetList())

	rows, err := f.GetRows(ListSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "2024-05-20", rows[1][3])
	assert.Equal(t, "confirmed", rows[1][7])
	assert.Equal(t, "10.00", rows[1][10])
	assert.Equal(t, "WELCOME10", rows[2][11])

	header, err := f.GetCellValue(OccupancySheet, "D2")
	require.NoError(t, err)
	assert.Equal(t, "05-22", header)

	table5, err := f.GetCellValue(OccupancySheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "Table 5", table5)

	booked, err := f.GetCellValue(OccupancySheet, "B3")
	require.NoError(t, err)
	assert.Contains(t, booked, "12:00-13:00 confirmed (4)")

	free, err := f.GetCellValue(OccupancySheet, "C3")
	require.NoError(t, err)
	assert.Equal(t, "free", free)
}

func TestWriteInvertedRange(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, day("2024-05-22"), day("2024-05-20"), nil)
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestCellColor(t *testing.T) {
	tests := []struct {
		name     string
		statuses []models.ReservationStatus
		want     string
	}{
		{"Empty", nil, colorFree},
		{"Confirmed", []models.ReservationStatus{models.StatusConfirmed, models.StatusCompleted}, colorConfirmed},
		{"AnyPending", []models.ReservationStatus{models.StatusConfirmed, models.StatusPending}, colorPending},
		{"AllCancelled", []models.ReservationStatus{models.StatusCancelled}, colorCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var list []models.Reservation
			for _, s := range tt.statuses {
				list = append(list, models.Reservation{Status: s})
			}
			assert.Equal(t, tt.want, cellColor(list))
		})
	}
}
