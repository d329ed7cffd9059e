package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bookbite/internal/config"
	"bookbite/internal/database"
	"bookbite/internal/engine"
	"bookbite/internal/models"
	"bookbite/internal/repository"
	"bookbite/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fixedNow = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true, Port: 0},
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "web", Extra: "web-extra", Permissions: []string{PermReadAvailability, PermWriteReservations}},
				{Key: "admin", Extra: "admin-extra"},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 1000, Burst: 1000},
	}
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.UpsertRestaurant(ctx, &models.Restaurant{ID: 1, Name: "Harbor", OpeningTime: "09:00", ClosingTime: "22:00"}))
	require.NoError(t, db.UpsertTable(ctx, &models.Table{ID: 5, RestaurantID: 1, SeatCount: 4, IsAvailable: true}))
	require.NoError(t, db.UpsertTable(ctx, &models.Table{ID: 6, RestaurantID: 1, SeatCount: 2, IsAvailable: true}))
	return db
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()
	svc := service.NewReservationService(newTestDB(t), repository.NewMemorySnapshotCache(time.Minute), nil, engine.Default(), time.UTC, &logger)

	srv := NewHTTPServer(testAPIConfig(), svc, &logger)
	srv.now = func() time.Time { return fixedNow }
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, key string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("x-api-key", key)
		req.Header.Set("x-api-extra", key+"-extra")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func booking(start, end string, guests int) models.BookingRequest {
	return models.BookingRequest{
		TableID:      5,
		Date:         "2024-06-01",
		StartTime:    start,
		EndTime:      end,
		GuestCount:   guests,
		ContactPhone: "+1 555 0100",
		ContactEmail: "diner@example.com",
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, ts, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get(requestIDHeader))
}

func TestSlotsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, ts, http.MethodGet, "/api/v1/tables/5/slots?date=2024-06-01", "web", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		TableID int64 `json:"tableId"`
		Slots   []struct {
			Start     string `json:"start"`
			Available bool   `json:"available"`
		} `json:"slots"`
	}
	decode(t, resp, &body)
	assert.Equal(t, int64(5), body.TableID)
	require.Len(t, body.Slots, 26)
	assert.Equal(t, "09:00", body.Slots[0].Start)
	assert.Equal(t, "21:30", body.Slots[25].Start)

	t.Run("Unauthenticated", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/api/v1/tables/5/slots?date=2024-06-01", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
	t.Run("MissingDate", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/api/v1/tables/5/slots", "web", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
	t.Run("BadDate", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/api/v1/tables/5/slots?date=June", "web", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
	t.Run("BadID", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/api/v1/tables/abc/slots?date=2024-06-01", "web", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
	t.Run("UnknownTable", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/api/v1/tables/77/slots?date=2024-06-01", "web", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
	t.Run("WrongMethod", func(t *testing.T) {
		resp := do(t, ts, http.MethodPost, "/api/v1/tables/5/slots?date=2024-06-01", "web", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestEndTimesAndFeeEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, ts, http.MethodGet, "/api/v1/tables/5/end-times?date=2024-06-01&start=20:30", "web", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ends struct {
		EndTimes []struct {
			End     string `json:"end"`
			Minutes int    `json:"minutes"`
		} `json:"endTimes"`
	}
	decode(t, resp, &ends)
	require.Len(t, ends.EndTimes, 2)
	assert.Equal(t, "21:30", ends.EndTimes[0].End)
	assert.Equal(t, "22:00", ends.EndTimes[1].End)

	resp = do(t, ts, http.MethodGet, "/api/v1/tables/6/fee", "web", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var quote struct {
		SeatCount int     `json:"seatCount"`
		Fee       float64 `json:"fee"`
		Total     float64 `json:"total"`
	}
	decode(t, resp, &quote)
	assert.Equal(t, 2, quote.SeatCount)
	assert.InDelta(t, 4.0, quote.Fee, 0.001)
	assert.InDelta(t, 4.0, quote.Total, 0.001)

	resp = do(t, ts, http.MethodGet, "/api/v1/tables/6/fee?promo=NOPE", "web", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAvailableTablesEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, ts, http.MethodGet, "/api/v1/restaurants/1/available-tables?date=2024-06-01&start=19:00&end=21:00&guests=2", "web", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Tables []models.Table `json:"tables"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Tables, 2)
	assert.Equal(t, int64(6), body.Tables[0].ID)

	resp = do(t, ts, http.MethodGet, "/api/v1/restaurants/1/available-tables?date=2024-06-01&start=19:00&end=21:00&guests=many", "web", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, ts, http.MethodGet, "/api/v1/restaurants/1/available-tables?date=2024-06-01&start=19:00&guests=2", "web", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, ts, http.MethodPost, "/api/v1/reservations/validate", "web", booking("19:00", "21:00", 4))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, ts, http.MethodPost, "/api/v1/reservations/validate", "web", booking("19:00", "19:30", 6))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body struct {
		Violations []engine.Violation `json:"violations"`
	}
	decode(t, resp, &body)
	codes := make([]engine.ViolationCode, 0, len(body.Violations))
	for _, v := range body.Violations {
		codes = append(codes, v.Code)
	}
	assert.Contains(t, codes, engine.CodeCapacityExceeded)
	assert.Contains(t, codes, engine.CodeDurationOutOfBounds)

	noTable := booking("19:00", "21:00", 2)
	noTable.TableID = 0
	resp = do(t, ts, http.MethodPost, "/api/v1/reservations/validate", "web", noTable)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body.Violations = nil
	decode(t, resp, &body)
	require.Len(t, body.Violations, 1)
	assert.Equal(t, engine.CodeMissingField, body.Violations[0].Code)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/reservations/validate", strings.NewReader(`{"tableId": 5, "bogus": true}`))
	require.NoError(t, err)
	req.Header.Set("x-api-key", "web")
	req.Header.Set("x-api-extra", "web-extra")
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestReservationLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, ts, http.MethodPost, "/api/v1/reservations", "web", booking("19:00", "21:00", 4))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Reservation
	decode(t, resp, &created)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.NotEmpty(t, created.ConfirmationToken)
	assert.Equal(t, int64(600), created.FeeCents)

	statusPath := fmt.Sprintf("/api/v1/reservations/%d/status", created.ID)

	t.Run("WebKeyCannotConfirm", func(t *testing.T) {
		resp := do(t, ts, http.MethodPost, statusPath, "web", map[string]string{"status": "confirmed"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	resp = do(t, ts, http.MethodPost, statusPath, "admin", map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var confirmed models.Reservation
	decode(t, resp, &confirmed)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)

	t.Run("SlotNowTaken", func(t *testing.T) {
		resp := do(t, ts, http.MethodPost, "/api/v1/reservations", "web", booking("20:00", "21:00", 2))
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("CompleteBeforeEnd", func(t *testing.T) {
		resp := do(t, ts, http.MethodPost, statusPath, "admin", map[string]string{"status": "completed"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		resp := do(t, ts, http.MethodPost, statusPath, "admin", map[string]string{"status": "archived"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("UnknownReservation", func(t *testing.T) {
		resp := do(t, ts, http.MethodPost, "/api/v1/reservations/9999/status", "admin", map[string]string{"status": "cancelled"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	resp = do(t, ts, http.MethodPost, statusPath, "admin", map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, ts, http.MethodPost, statusPath, "admin", map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestConfirmByTokenEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, ts, http.MethodPost, "/api/v1/reservations", "web", booking("12:00", "13:00", 2))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Reservation
	decode(t, resp, &created)

	resp = do(t, ts, http.MethodPost, "/api/v1/reservations/confirm", "web", map[string]string{"token": created.ConfirmationToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var confirmed models.Reservation
	decode(t, resp, &confirmed)
	assert.Equal(t, created.ID, confirmed.ID)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)

	resp = do(t, ts, http.MethodPost, "/api/v1/reservations/confirm", "web", map[string]string{"token": "bogus"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, ts, http.MethodPost, "/api/v1/reservations/confirm", "web", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestExportEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, ts, http.MethodPost, "/api/v1/reservations", "web", booking("12:00", "13:00", 2))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, ts, http.MethodGet, "/api/v1/admin/reservations/export?from=2024-06-01&to=2024-06-07", "admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "reservations_2024-06-01_to_2024-06-07.xlsx")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Reservations")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	resp = do(t, ts, http.MethodGet, "/api/v1/admin/reservations/export?from=2024-06-07&to=2024-06-01", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, ts, http.MethodGet, "/api/v1/admin/reservations/export", "web", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{engine.ValidationErrors{{Code: engine.CodeMissingField}}, http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", database.ErrNotFound), http.StatusNotFound},
		{&engine.LifecycleError{From: models.StatusCompleted, To: models.StatusPending}, http.StatusConflict},
		{database.ErrSlotTaken, http.StatusConflict},
		{database.ErrVersionConflict, http.StatusConflict},
		{engine.ErrPromoInvalid, http.StatusUnprocessableEntity},
		{database.ErrPromoExhausted, http.StatusUnprocessableEntity},
		{engine.ErrMalformedTime, http.StatusBadRequest},
		{service.ErrInvalidRange, http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
