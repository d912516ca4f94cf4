// Package change diffs profile snapshots into classified change events.
package change

import (
	"strconv"
	"time"

	"github.com/sells-group/roster-cli/internal/model"
)

// ConnectionNoiseThreshold is the connection-count delta below which drift is
// ignored. Small fluctuations would otherwise flood the change log.
const ConnectionNoiseThreshold = 100

// Tracked field names as they appear in change events.
const (
	FieldEmployer    = "employer"
	FieldTitle       = "title"
	FieldActive      = "active"
	FieldEmail       = "email"
	FieldConnections = "connections"
)

// Diff compares the tracked fields of two snapshots. Employer, title and
// active-employment differences are always critical regardless of magnitude;
// email changes are recorded but never critical; connection drift is recorded
// only past the noise threshold and is never critical.
//
// Diff is pure: the same snapshot pair always yields the same event list,
// with no side effects, so the webhook and scheduled-refresh paths can share
// it safely. Event IDs are assigned by the store on append, not here.
func Diff(personID string, prev, curr model.Snapshot, source model.ChangeSource, at time.Time) []model.ChangeEvent {
	var events []model.ChangeEvent

	add := func(field, oldVal, newVal string, critical bool) {
		events = append(events, model.ChangeEvent{
			PersonID:   personID,
			Field:      field,
			OldValue:   oldVal,
			NewValue:   newVal,
			Critical:   critical,
			Source:     source,
			DetectedAt: at,
		})
	}

	if prev.Employer != curr.Employer {
		add(FieldEmployer, prev.Employer, curr.Employer, true)
	}
	if prev.Title != curr.Title {
		add(FieldTitle, prev.Title, curr.Title, true)
	}
	if prev.Active != curr.Active {
		add(FieldActive, strconv.FormatBool(prev.Active), strconv.FormatBool(curr.Active), true)
	}
	if prev.Email != curr.Email {
		add(FieldEmail, prev.Email, curr.Email, false)
	}
	if delta := curr.Connections - prev.Connections; delta > ConnectionNoiseThreshold || delta < -ConnectionNoiseThreshold {
		add(FieldConnections, strconv.Itoa(prev.Connections), strconv.Itoa(curr.Connections), false)
	}

	return events
}

// IsCriticalField reports whether a field is employment-affecting. Critical
// classification is a pure function of the field name: company, title and
// active-status changes invalidate buyer-group membership.
func IsCriticalField(field string) bool {
	switch field {
	case FieldEmployer, FieldTitle, FieldActive:
		return true
	default:
		return false
	}
}
