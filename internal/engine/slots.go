package engine

// Hours is a restaurant's operating window, [Opening, Closing).
type Hours struct {
	Opening TimeOfDay `json:"opening"`
	Closing TimeOfDay `json:"closing"`
}

// DefaultHours is substituted whenever a restaurant's own hours cannot be trusted.
var DefaultHours = Hours{Opening: 9 * 60, Closing: 22 * 60}

func (h Hours) Valid() bool {
	return h.Opening.Valid() && h.Closing.Valid() && h.Opening < h.Closing
}

// ResolveHours parses the external opening/closing strings. Unparseable values
// yield an invalid window, which slot generation replaces with the fallback.
func ResolveHours(openingTime, closingTime string) Hours {
	opening, err := ParseTime(openingTime)
	if err != nil {
		return Hours{}
	}
	closing, err := ParseTime(closingTime)
	if err != nil {
		return Hours{}
	}
	return Hours{Opening: opening, Closing: closing}
}

// SlotPlan is the outcome of slot generation.
type SlotPlan struct {
	Slots        []TimeOfDay `json:"slots"`
	Hours        Hours       `json:"hours"`
	FallbackUsed bool        `json:"fallbackUsed"`
}

// GenerateSlots returns start times from opening (inclusive) to closing
// (exclusive) spaced stepMinutes apart. A step <= 0 means the default 30.
// Minimum stay is not applied here: it depends on the end time the caller picks.
func GenerateSlots(hours Hours, stepMinutes int) SlotPlan {
	return generateSlots(hours, stepMinutes, DefaultHours)
}

func generateSlots(hours Hours, stepMinutes int, fallback Hours) SlotPlan {
	plan := SlotPlan{Hours: hours}
	if !hours.Valid() {
		plan.Hours = fallback
		plan.FallbackUsed = true
	}
	if stepMinutes <= 0 {
		stepMinutes = DefaultSlotStepMinutes
	}

	window := int(plan.Hours.Closing - plan.Hours.Opening)
	plan.Slots = make([]TimeOfDay, 0, (window+stepMinutes-1)/stepMinutes)
	for t := plan.Hours.Opening; t < plan.Hours.Closing; t = AddMinutes(t, stepMinutes) {
		plan.Slots = append(plan.Slots, t)
	}
	return plan
}

// EndTimeOptions lists end times for a reservation starting at start, from the
// minimum to the maximum stay in stepMinutes increments, stopping at closing.
// A start outside opening hours has no options.
func EndTimeOptions(hours Hours, start TimeOfDay, minDuration, maxDuration, stepMinutes int) []TimeOfDay {
	if start < hours.Opening || start >= hours.Closing {
		return nil
	}
	if stepMinutes <= 0 {
		stepMinutes = DefaultSlotStepMinutes
	}
	var ends []TimeOfDay
	for d := minDuration; d <= maxDuration; d += stepMinutes {
		end := AddMinutes(start, d)
		if end > hours.Closing {
			break
		}
		ends = append(ends, end)
	}
	return ends
}
