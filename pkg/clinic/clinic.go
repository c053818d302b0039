// Package clinic defines the domain types the concierge reasons about —
// clinics, doctors, services, patients, and FAQs — and the read-only
// directory interfaces used to resolve them. The clinic's own relational
// store is an external collaborator; this package only declares the shapes
// and lookups the pipeline depends on.
package clinic

import "context"

// Clinic is a single tenant of the concierge.
type Clinic struct {
	ID       string
	Name     string
	Timezone string
	Language string
}

// Doctor is a practitioner who can be booked at a clinic.
type Doctor struct {
	ID       string
	ClinicID string
	Name     string
	NameRu   string
	NameEn   string
	NameEs   string
}

// Service is a bookable offering at a clinic (e.g. "teeth cleaning").
type Service struct {
	ID       string
	ClinicID string
	Name     string
	NameRu   string
	NameEn   string
	NameEs   string
}

// Patient is the person on the other end of a WhatsApp conversation.
type Patient struct {
	ID       string
	ClinicID string
	Phone    string
	Name     string
}

// FAQ is a single frequently-asked-question entry available to the
// prompt composer and the fast-path FAQ router.
type FAQ struct {
	ID       string
	ClinicID string
	Question string
	Answer   string
	Language string
}

// ClinicDirectory resolves a clinic's own tenant record by ID.
type ClinicDirectory interface {
	Get(ctx context.Context, clinicID string) (Clinic, error)
}

// ServiceDirectory resolves service names to IDs and enumerates eligible
// doctors for a service, mirroring the clinic's own service catalogue.
type ServiceDirectory interface {
	// ResolveServiceID looks up a service by a free-text name, matching
	// against localized name columns. Returns "" with no error when no
	// service matches.
	ResolveServiceID(ctx context.Context, clinicID, serviceName string) (string, error)

	// DoctorsByService returns all doctors at the clinic who provide the
	// given service, excluding any doctor IDs in exclude.
	DoctorsByService(ctx context.Context, clinicID, serviceID string, exclude []string) ([]Doctor, error)
}

// FAQDirectory resolves frequently-asked-question lookups for a clinic.
type FAQDirectory interface {
	Lookup(ctx context.Context, clinicID, language, query string) (*FAQ, error)
}

// PatientDirectory resolves a WhatsApp phone number to a known patient.
type PatientDirectory interface {
	FindByPhone(ctx context.Context, clinicID, phone string) (*Patient, error)
}
