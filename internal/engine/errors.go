package engine

import (
	"errors"
	"fmt"
	"strings"

	"bookbite/internal/models"
)

var (
	ErrMalformedTime     = errors.New("malformed time")
	ErrMalformedDate     = errors.New("malformed date")
	ErrInvalidCapacity   = errors.New("invalid capacity")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrUnknownStatus     = errors.New("unknown reservation status")
	ErrPromoInvalid      = errors.New("promo code not applicable")
)

// ViolationCode identifies which booking rule a request broke.
type ViolationCode string

const (
	CodeMissingField        ViolationCode = "MissingField"
	CodeInvalidDateRange    ViolationCode = "InvalidDateRange"
	CodeDurationOutOfBounds ViolationCode = "DurationOutOfBounds"
	CodeCapacityExceeded    ViolationCode = "CapacityExceeded"
	CodeSlotUnavailable     ViolationCode = "SlotUnavailable"
	CodeInvalidContactInfo  ViolationCode = "InvalidContactInfo"
)

type Violation struct {
	Code    ViolationCode `json:"code"`
	Field   string        `json:"field"`
	Message string        `json:"message"`
}

// ValidationErrors carries every rule a booking request violated, in check order.
type ValidationErrors []Violation

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "no violations"
	}
	msgs := make([]string, len(v))
	for i, violation := range v {
		msgs[i] = fmt.Sprintf("%s: %s", violation.Field, violation.Message)
	}
	return "booking rejected: " + strings.Join(msgs, "; ")
}

// Has reports whether any violation carries the given code.
func (v ValidationErrors) Has(code ViolationCode) bool {
	for _, violation := range v {
		if violation.Code == code {
			return true
		}
	}
	return false
}

// Codes returns the distinct violation codes in first-seen order.
func (v ValidationErrors) Codes() []ViolationCode {
	seen := make(map[ViolationCode]bool, len(v))
	codes := make([]ViolationCode, 0, len(v))
	for _, violation := range v {
		if !seen[violation.Code] {
			seen[violation.Code] = true
			codes = append(codes, violation.Code)
		}
	}
	return codes
}

func (v *ValidationErrors) add(code ViolationCode, field, format string, args ...any) {
	*v = append(*v, Violation{Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
}

// LifecycleError explains why a status change was refused.
type LifecycleError struct {
	From   models.ReservationStatus
	To     models.ReservationStatus
	Reason string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s: %s", e.From, e.To, e.Reason)
}

func (e *LifecycleError) Unwrap() error {
	return ErrIllegalTransition
}
