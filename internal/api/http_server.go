// Package api exposes the reservation service over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookbite/internal/config"
	"bookbite/internal/database"
	"bookbite/internal/domain"
	"bookbite/internal/engine"
	"bookbite/internal/models"
	"bookbite/internal/service"

	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type HTTPServer struct {
	cfg    config.APIConfig
	svc    domain.ReservationService
	server *http.Server
	auth   *HTTPAuth
	logger zerolog.Logger
	now    func() time.Time
}

func NewHTTPServer(cfg config.APIConfig, svc domain.ReservationService, logger *zerolog.Logger) *HTTPServer {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{cfg: cfg, svc: svc, auth: NewHTTPAuth(cfg), logger: base, now: time.Now}

	read := func(h http.HandlerFunc) http.Handler { return srv.auth.Require(PermReadAvailability, h) }
	write := func(h http.HandlerFunc) http.Handler { return srv.auth.Require(PermWriteReservations, h) }
	admin := func(h http.HandlerFunc) http.Handler { return srv.auth.Require(PermAdminReservations, h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealthz)
	mux.Handle("GET /api/v1/tables/{id}/slots", read(srv.handleSlots))
	mux.Handle("GET /api/v1/tables/{id}/end-times", read(srv.handleEndTimes))
	mux.Handle("GET /api/v1/tables/{id}/fee", read(srv.handleFee))
	mux.Handle("GET /api/v1/restaurants/{id}/available-tables", read(srv.handleAvailableTables))
	mux.Handle("POST /api/v1/reservations/validate", write(srv.handleValidate))
	mux.Handle("POST /api/v1/reservations", write(srv.handleCreate))
	mux.Handle("POST /api/v1/reservations/confirm", write(srv.handleConfirm))
	mux.Handle("POST /api/v1/reservations/{id}/status", admin(srv.handleStatus))
	mux.Handle("GET /api/v1/admin/reservations/export", admin(srv.handleExport))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           loggingMiddleware(base, mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r)
	if !ok {
		return
	}
	date, ok := requiredQuery(w, r, "date")
	if !ok {
		return
	}

	view, err := s.svc.Slots(r.Context(), tableID, date, s.now())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleEndTimes(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r)
	if !ok {
		return
	}
	date, ok := requiredQuery(w, r, "date")
	if !ok {
		return
	}
	start, ok := requiredQuery(w, r, "start")
	if !ok {
		return
	}

	view, err := s.svc.EndTimes(r.Context(), tableID, date, start, s.now())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleFee(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(w, r)
	if !ok {
		return
	}

	view, err := s.svc.Quote(r.Context(), tableID, r.URL.Query().Get("promo"), s.now())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleAvailableTables(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := pathID(w, r)
	if !ok {
		return
	}
	var params [3]string
	for i, name := range []string{"date", "start", "end"} {
		if params[i], ok = requiredQuery(w, r, name); !ok {
			return
		}
	}
	rawGuests, ok := requiredQuery(w, r, "guests")
	if !ok {
		return
	}
	guests, err := strconv.Atoi(rawGuests)
	if err != nil {
		writeError(w, http.StatusBadRequest, "guests must be a number")
		return
	}

	view, err := s.svc.AvailableTables(r.Context(), restaurantID, params[0], params[1], params[2], guests, s.now())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := s.svc.Validate(r.Context(), req, s.now())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reservation, err := s.svc.Create(r.Context(), req, s.now())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservation)
}

func (s *HTTPServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	reservation, err := s.svc.ConfirmByToken(r.Context(), body.Token, s.now())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	to, err := engine.ParseStatus(body.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reservation, err := s.svc.Transition(r.Context(), id, to, s.now())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))

	// buffered so a failure can still be reported as JSON
	var buf bytes.Buffer
	if err := s.svc.Export(r.Context(), from, to, &buf); err != nil {
		s.writeServiceError(w, err)
		return
	}

	name := "reservations.xlsx"
	if from != "" && to != "" {
		name = fmt.Sprintf("reservations_%s_to_%s.xlsx", from, to)
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// statusFor maps service and engine errors onto HTTP status codes.
func statusFor(err error) int {
	var violations engine.ValidationErrors
	switch {
	case errors.As(err, &violations):
		return http.StatusUnprocessableEntity
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrIllegalTransition),
		errors.Is(err, database.ErrSlotTaken),
		errors.Is(err, database.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, engine.ErrPromoInvalid),
		errors.Is(err, database.ErrPromoExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrMalformedDate),
		errors.Is(err, engine.ErrMalformedTime),
		errors.Is(err, engine.ErrInvalidCapacity),
		errors.Is(err, engine.ErrUnknownStatus),
		errors.Is(err, service.ErrInvalidRange):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}

	var violations engine.ValidationErrors
	if errors.As(err, &violations) {
		writeJSON(w, code, map[string]any{"error": "booking rejected", "violations": violations})
		return
	}
	writeError(w, code, err.Error())
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func requiredQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		writeError(w, http.StatusBadRequest, name+" is required")
		return "", false
	}
	return v, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
