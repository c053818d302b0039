package clinic

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresDirectory implements ClinicDirectory, ServiceDirectory,
// FAQDirectory, and PatientDirectory against the clinic's own
// relational tables (clinics, services, doctors, doctor_services,
// patients, faqs), hand-written against database/sql the same way
// pkg/convstore.PostgresStore is — the clinic schema is small and
// stable enough that an ORM would add ceremony without paying for
// itself.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory wraps an already-migrated *sql.DB holding the
// clinic's own tables.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// Get implements ClinicDirectory.
func (d *PostgresDirectory) Get(ctx context.Context, clinicID string) (Clinic, error) {
	var c Clinic
	err := d.db.QueryRowContext(ctx,
		`SELECT id, name, timezone, language FROM clinics WHERE id = $1`, clinicID,
	).Scan(&c.ID, &c.Name, &c.Timezone, &c.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return Clinic{}, fmt.Errorf("clinic: no clinic %q: %w", clinicID, err)
	}
	if err != nil {
		return Clinic{}, fmt.Errorf("clinic: get %q: %w", clinicID, err)
	}
	return c, nil
}

// ResolveServiceID implements ServiceDirectory, matching serviceName
// case-insensitively against any of the localized name columns.
func (d *PostgresDirectory) ResolveServiceID(ctx context.Context, clinicID, serviceName string) (string, error) {
	var id string
	err := d.db.QueryRowContext(ctx, `
		SELECT id FROM services
		WHERE clinic_id = $1
		  AND ($2 ILIKE name OR $2 ILIKE name_en OR $2 ILIKE name_es OR $2 ILIKE name_ru OR name ILIKE '%'||$2||'%')
		LIMIT 1`, clinicID, serviceName,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("clinic: resolve service %q: %w", serviceName, err)
	}
	return id, nil
}

// DoctorsByService implements ServiceDirectory.
func (d *PostgresDirectory) DoctorsByService(ctx context.Context, clinicID, serviceID string, exclude []string) ([]Doctor, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT d.id, d.clinic_id, d.name, d.name_ru, d.name_en, d.name_es
		FROM doctors d
		JOIN doctor_services ds ON ds.doctor_id = d.id
		WHERE ds.service_id = $1 AND d.clinic_id = $2 AND NOT (d.id = ANY($3))
		ORDER BY d.name`, serviceID, clinicID, pq.Array(exclude))
	if err != nil {
		return nil, fmt.Errorf("clinic: doctors by service %q: %w", serviceID, err)
	}
	defer rows.Close()

	var doctors []Doctor
	for rows.Next() {
		var doc Doctor
		if err := rows.Scan(&doc.ID, &doc.ClinicID, &doc.Name, &doc.NameRu, &doc.NameEn, &doc.NameEs); err != nil {
			return nil, fmt.Errorf("clinic: scan doctor: %w", err)
		}
		doctors = append(doctors, doc)
	}
	return doctors, rows.Err()
}

// Lookup implements FAQDirectory with a case-insensitive substring match
// (ILIKE, in either direction) between the query and the question text,
// preferring the longest matching question; the clinic's own FAQ table is assumed small
// enough per-clinic that a full-text index is unnecessary.
func (d *PostgresDirectory) Lookup(ctx context.Context, clinicID, language, query string) (*FAQ, error) {
	var f FAQ
	err := d.db.QueryRowContext(ctx, `
		SELECT id, clinic_id, question, answer, language
		FROM faqs
		WHERE clinic_id = $1 AND language = $2 AND ($3 ILIKE '%'||question||'%' OR question ILIKE '%'||$3||'%')
		ORDER BY length(question) DESC
		LIMIT 1`, clinicID, language, query,
	).Scan(&f.ID, &f.ClinicID, &f.Question, &f.Answer, &f.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: faq lookup: %w", err)
	}
	return &f, nil
}

// ClinicIDForOrganization resolves a raw tenant/organization identifier
// from the inbound webhook to this system's own clinic ID, satisfying
// pkg/pipeline/steps.OrganizationResolver.
func (d *PostgresDirectory) ClinicIDForOrganization(ctx context.Context, organizationID string) (string, error) {
	var id string
	err := d.db.QueryRowContext(ctx,
		`SELECT id FROM clinics WHERE organization_id = $1`, organizationID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("clinic: no clinic for organization %q: %w", organizationID, err)
	}
	if err != nil {
		return "", fmt.Errorf("clinic: resolve organization %q: %w", organizationID, err)
	}
	return id, nil
}

// InstanceForClinic resolves the clinic's WhatsApp instance name,
// satisfying pkg/pipeline/steps.InstanceResolver.
func (d *PostgresDirectory) InstanceForClinic(ctx context.Context, clinicID string) (string, error) {
	var instance string
	err := d.db.QueryRowContext(ctx,
		`SELECT instance_name FROM clinics WHERE id = $1`, clinicID,
	).Scan(&instance)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("clinic: no instance for clinic %q: %w", clinicID, err)
	}
	if err != nil {
		return "", fmt.Errorf("clinic: resolve instance for clinic %q: %w", clinicID, err)
	}
	return instance, nil
}

// FindByPhone implements PatientDirectory.
func (d *PostgresDirectory) FindByPhone(ctx context.Context, clinicID, phone string) (*Patient, error) {
	var p Patient
	err := d.db.QueryRowContext(ctx,
		`SELECT id, clinic_id, phone, name FROM patients WHERE clinic_id = $1 AND phone = $2`,
		clinicID, phone,
	).Scan(&p.ID, &p.ClinicID, &p.Phone, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: find patient by phone: %w", err)
	}
	return &p, nil
}
