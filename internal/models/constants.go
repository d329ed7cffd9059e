package models

import "time"

const (
	// DefaultSnapshotTTL is how long a cached table/date reservation list stays valid.
	DefaultSnapshotTTL = 5 * time.Minute

	// Export window around today when the admin gives no dates.
	DefaultExportRangeDaysBefore = 7
	DefaultExportRangeDaysAfter  = 30

	// MaxExportRangeDays caps a single spreadsheet export.
	MaxExportRangeDays = 366
)
