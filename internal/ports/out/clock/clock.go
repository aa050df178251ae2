package clock

import "time"

// Clock provides time to the application.
// Location is the business timezone that calendar days (ledger days, report periods) are cut in.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}
