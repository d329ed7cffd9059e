package engine

import (
	"errors"
	"testing"
	"time"

	"bookbite/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	fallbacks int
	accepted  int
	rejected  int
	applied   int
	refused   int
}

func (c *countingObserver) HoursFallback() { c.fallbacks++ }

func (c *countingObserver) Validated(v ValidationErrors) {
	if len(v) == 0 {
		c.accepted++
		return
	}
	c.rejected++
}

func (c *countingObserver) Transitioned(_, _ models.ReservationStatus, err error) {
	if err != nil {
		c.refused++
		return
	}
	c.applied++
}

var (
	validNow   = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)
	validHours = Hours{Opening: 540, Closing: 1320}
	validTable = models.Table{ID: 5, RestaurantID: 1, SeatCount: 4, IsAvailable: true}
)

func validRequest() models.BookingRequest {
	return models.BookingRequest{
		TableID:      5,
		Date:         "2024-06-01",
		StartTime:    "19:00",
		EndTime:      "21:00",
		GuestCount:   4,
		ContactPhone: "+1 555 0100",
		ContactEmail: "diner@example.com",
	}
}

func violations(t *testing.T, err error) ValidationErrors {
	t.Helper()
	var v ValidationErrors
	require.True(t, errors.As(err, &v), "expected ValidationErrors, got %v", err)
	return v
}

func TestValidateBookingAccepted(t *testing.T) {
	booking, err := ValidateBooking(validRequest(), validTable, validHours, nil, validNow)
	require.NoError(t, err)
	assert.Equal(t, "6.00", booking.Fee.String())
	assert.Equal(t, Interval{Start: 1140, End: 1260}, booking.Interval)
	assert.Equal(t, "2024-06-01", booking.Date)
	assert.False(t, booking.FallbackHoursUsed)
}

func TestValidateBookingCapacity(t *testing.T) {
	req := validRequest()
	req.GuestCount = 5

	_, err := ValidateBooking(req, validTable, validHours, nil, validNow)
	v := violations(t, err)
	assert.Equal(t, []ViolationCode{CodeCapacityExceeded}, v.Codes())
	assert.Len(t, v, 1)
}

func TestValidateBookingViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.BookingRequest)
		want   []ViolationCode
	}{
		{"MissingDate", func(r *models.BookingRequest) { r.Date = "" }, []ViolationCode{CodeMissingField}},
		{"PastDate", func(r *models.BookingRequest) { r.Date = "2024-05-19" }, []ViolationCode{CodeInvalidDateRange}},
		{"MalformedDate", func(r *models.BookingRequest) { r.Date = "2024/06/01" }, []ViolationCode{CodeInvalidDateRange}},
		{"MissingStart", func(r *models.BookingRequest) { r.StartTime = "" }, []ViolationCode{CodeMissingField}},
		{"MalformedEnd", func(r *models.BookingRequest) { r.EndTime = "9pm" }, []ViolationCode{CodeInvalidDateRange}},
		{"EndBeforeStart", func(r *models.BookingRequest) { r.StartTime, r.EndTime = "20:00", "19:00" }, []ViolationCode{CodeInvalidDateRange}},
		{"TooShort", func(r *models.BookingRequest) { r.EndTime = "19:30" }, []ViolationCode{CodeDurationOutOfBounds}},
		{"TooLong", func(r *models.BookingRequest) { r.StartTime, r.EndTime = "12:00", "15:30" }, []ViolationCode{CodeDurationOutOfBounds}},
		{"BeforeOpening", func(r *models.BookingRequest) { r.StartTime, r.EndTime = "08:00", "09:30" }, []ViolationCode{CodeInvalidDateRange}},
		{"AfterClosing", func(r *models.BookingRequest) { r.StartTime, r.EndTime = "21:30", "22:30" }, []ViolationCode{CodeInvalidDateRange}},
		{"NoGuests", func(r *models.BookingRequest) { r.GuestCount = 0 }, []ViolationCode{CodeMissingField}},
		{"NoPhone", func(r *models.BookingRequest) { r.ContactPhone = " " }, []ViolationCode{CodeMissingField}},
		{"NoEmail", func(r *models.BookingRequest) { r.ContactEmail = "" }, []ViolationCode{CodeMissingField}},
		{"BadEmail", func(r *models.BookingRequest) { r.ContactEmail = "diner@example" }, []ViolationCode{CodeInvalidContactInfo}},
		{"WrongTable", func(r *models.BookingRequest) { r.TableID = 9 }, []ViolationCode{CodeMissingField}},
		{
			"Several",
			func(r *models.BookingRequest) { r.GuestCount = 8; r.ContactEmail = "nope"; r.EndTime = "19:30" },
			[]ViolationCode{CodeDurationOutOfBounds, CodeCapacityExceeded, CodeInvalidContactInfo},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			booking, err := ValidateBooking(req, validTable, validHours, nil, validNow)
			assert.Nil(t, booking)
			assert.Equal(t, tt.want, violations(t, err).Codes())
		})
	}
}

func TestValidateBookingTableMismatch(t *testing.T) {
	req := validRequest()
	req.TableID = 9

	_, err := ValidateBooking(req, validTable, validHours, nil, validNow)
	v := violations(t, err)
	require.Len(t, v, 1)
	assert.Equal(t, "table_id", v[0].Field)
	assert.Equal(t, "request names table 9 but the booking is for table 5", v[0].Message)
}

func TestValidateBookingAvailability(t *testing.T) {
	existing := []models.Reservation{confirmed(3, 5, "2024-06-01", "18:00", "19:30")}

	t.Run("Conflict", func(t *testing.T) {
		_, err := ValidateBooking(validRequest(), validTable, validHours, existing, validNow)
		v := violations(t, err)
		assert.True(t, v.Has(CodeSlotUnavailable))
		assert.Contains(t, err.Error(), "19:00-21:00 on 2024-06-01 is not available")
	})

	t.Run("ChangeIgnoresItself", func(t *testing.T) {
		_, err := Default().ValidateChange(3, validRequest(), validTable, validHours, existing, validNow)
		assert.NoError(t, err)
	})

	t.Run("SameDayTooSoon", func(t *testing.T) {
		now := time.Date(2024, 6, 1, 18, 45, 0, 0, time.UTC)
		_, err := ValidateBooking(validRequest(), validTable, validHours, nil, now)
		assert.Equal(t, []ViolationCode{CodeSlotUnavailable}, violations(t, err).Codes())
	})

	t.Run("SameDayLaterIsFine", func(t *testing.T) {
		now := time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC)
		_, err := ValidateBooking(validRequest(), validTable, validHours, nil, now)
		assert.NoError(t, err)
	})
}

func TestValidateBookingFallbackHours(t *testing.T) {
	obs := &countingObserver{}
	e, err := New(DefaultPolicy(), nil, WithObserver(obs))
	require.NoError(t, err)

	booking, err := e.ValidateBooking(validRequest(), validTable, ResolveHours("", "22:00"), nil, validNow)
	require.NoError(t, err)
	assert.True(t, booking.FallbackHoursUsed)
	assert.Equal(t, DefaultHours, booking.Hours)
	assert.Equal(t, 1, obs.fallbacks)
	assert.Equal(t, 1, obs.accepted)

	req := validRequest()
	req.GuestCount = 0
	_, err = e.ValidateBooking(req, validTable, validHours, nil, validNow)
	require.Error(t, err)
	assert.Equal(t, 1, obs.rejected)
}

func TestValidationErrorsMessage(t *testing.T) {
	var v ValidationErrors
	assert.Equal(t, "no violations", v.Error())

	v.add(CodeMissingField, "date", "date is required")
	v.add(CodeMissingField, "contact_phone", "phone number is required")
	assert.Equal(t, "booking rejected: date: date is required; contact_phone: phone number is required", v.Error())
	assert.Equal(t, []ViolationCode{CodeMissingField}, v.Codes())
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.MaxDurationMinutes = 30
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.DefaultHours = Hours{Opening: 600, Closing: 600}
	_, err := New(p, nil)
	assert.Error(t, err)
}
