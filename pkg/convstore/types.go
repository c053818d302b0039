// Package convstore persists conversation sessions, their message history,
// and the narrowing constraints accumulated during a booking flow. It
// exposes a single ConversationStore interface with an in-memory
// implementation for tests and a PostgreSQL-backed implementation for
// production, plus a read-through caching decorator.
package convstore

import (
	"time"

	"github.com/healthconcierge/wa-concierge/pkg/convstate"
)

// Role identifies who authored a stored message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageMetadata carries the small set of structured facts worth keeping
// alongside a stored message, without promoting them to first-class columns.
type MessageMetadata struct {
	Language           string
	IntentTag          string
	CorrelationID      string
	Mem0SummaryRef     string
	FastPath           bool
	PendingHumanReview bool
}

// Message is a single turn in a conversation's history.
type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	Metadata  MessageMetadata
	CreatedAt time.Time
}

// Constraints is the set of booking preferences narrowed out of the
// conversation so far. desired_X and excluded_X are kept mutually
// exclusive: adding an entity to one side removes it from the other.
type Constraints struct {
	ExcludedDoctors  []string
	ExcludedServices []string

	DesiredService   string
	DesiredServiceID string
	DesiredDoctor    string
	DesiredDoctorID  string

	TimeWindowStart *time.Time
	TimeWindowEnd   *time.Time
	TimeWindowLabel string

	UpdatedAt time.Time
}

// Reset clears all narrowed preferences, used when the patient explicitly
// asks to start over (a meta-reset command).
func (c *Constraints) Reset() {
	*c = Constraints{UpdatedAt: c.UpdatedAt}
}

// ExcludeDoctor moves a doctor identifier into the excluded set, removing
// it from desired if it was there, preserving the desired_X ∉ excluded_X
// invariant.
func (c *Constraints) ExcludeDoctor(doctor string) {
	if c.DesiredDoctor == doctor || c.DesiredDoctorID == doctor {
		c.DesiredDoctor = ""
		c.DesiredDoctorID = ""
	}
	if !contains(c.ExcludedDoctors, doctor) {
		c.ExcludedDoctors = append(c.ExcludedDoctors, doctor)
	}
}

// ExcludeService moves a service identifier into the excluded set,
// removing it from desired if it was there.
func (c *Constraints) ExcludeService(service string) {
	if c.DesiredService == service || c.DesiredServiceID == service {
		c.DesiredService = ""
		c.DesiredServiceID = ""
	}
	if !contains(c.ExcludedServices, service) {
		c.ExcludedServices = append(c.ExcludedServices, service)
	}
}

// SwitchDoctor atomically moves the current desired doctor to excluded and
// sets a new desired doctor, so the new desire is never re-excluded by the
// stale exclusion that produced it.
func (c *Constraints) SwitchDoctor(from, to string) {
	newExcluded := c.ExcludedDoctors
	if from != "" && from != to && !contains(newExcluded, from) {
		newExcluded = append(newExcluded, from)
	}
	c.ExcludedDoctors = removeAll(newExcluded, to)
	c.DesiredDoctor = to
	c.DesiredDoctorID = ""
}

// SwitchService atomically moves the current desired service to excluded
// and sets a new desired service.
func (c *Constraints) SwitchService(from, to string) {
	newExcluded := c.ExcludedServices
	if from != "" && from != to && !contains(newExcluded, from) {
		newExcluded = append(newExcluded, from)
	}
	c.ExcludedServices = removeAll(newExcluded, to)
	c.DesiredService = to
	c.DesiredServiceID = ""
}

// IsEmpty reports whether no constraint has been narrowed yet.
func (c Constraints) IsEmpty() bool {
	return len(c.ExcludedDoctors) == 0 && len(c.ExcludedServices) == 0 &&
		c.DesiredService == "" && c.DesiredDoctor == "" && c.TimeWindowLabel == ""
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func removeAll(list []string, v string) []string {
	out := list[:0:0]
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}

// Channel identifies the messaging transport a session is conducted over.
type Channel string

const ChannelWhatsApp Channel = "whatsapp"

// Session is a single patient's ongoing conversation with a clinic.
type Session struct {
	ID              string
	UserIdentifier  string // cleaned phone number
	ClinicID        string
	Channel         Channel
	PatientID       string

	State       convstate.State
	Constraints Constraints

	// Language inertia: the last detected language, persisted so that a
	// short follow-up message ("ok", "sí") does not flip the conversation
	// language.
	Language string

	UnreadForHumanCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the session, safe for a caller to mutate
// without affecting the store's internal state.
func (s Session) Clone() Session {
	clone := s
	clone.Constraints.ExcludedDoctors = append([]string(nil), s.Constraints.ExcludedDoctors...)
	clone.Constraints.ExcludedServices = append([]string(nil), s.Constraints.ExcludedServices...)
	if s.State.PendingSince != nil {
		t := *s.State.PendingSince
		clone.State.PendingSince = &t
	}
	if s.Constraints.TimeWindowStart != nil {
		t := *s.Constraints.TimeWindowStart
		clone.Constraints.TimeWindowStart = &t
	}
	if s.Constraints.TimeWindowEnd != nil {
		t := *s.Constraints.TimeWindowEnd
		clone.Constraints.TimeWindowEnd = &t
	}
	return clone
}
