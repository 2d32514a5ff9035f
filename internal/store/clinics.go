package store

import (
	"context"
	"fmt"

	"mia/apps/backend/internal/clinic"
)

const clinicColumns = `id, name, address, city, province, postal_code, phone, email, website,
	is_emergency, notes, is_active`

func (s *Postgres) FindByPostalCode(ctx context.Context, postalCode string) ([]clinic.Clinic, error) {
	return s.findClinics(ctx, `postal_code = $1`, postalCode, 0)
}

func (s *Postgres) FindByPostalPrefix(ctx context.Context, prefix string, limit int) ([]clinic.Clinic, error) {
	return s.findClinics(ctx, `postal_code LIKE $1::text || '%'`, escapeLike(prefix), limit)
}

func (s *Postgres) findClinics(ctx context.Context, condition, value string, limit int) ([]clinic.Clinic, error) {
	b := &queryBuilder{args: []any{value}}
	sql := `SELECT ` + clinicColumns + `
		FROM vet_clinics
		WHERE is_active AND ` + condition + `
		ORDER BY is_emergency DESC, name ASC` + limitClause(b, limit)
	rows, err := s.pool.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, fmt.Errorf("find clinics: %w", err)
	}
	defer rows.Close()
	clinics := make([]clinic.Clinic, 0)
	for rows.Next() {
		var c clinic.Clinic
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Address, &c.City, &c.Province, &c.PostalCode, &c.Phone, &c.Email,
			&c.Website, &c.IsEmergency, &c.Notes, &c.Active,
		); err != nil {
			return nil, fmt.Errorf("scan clinic: %w", err)
		}
		clinics = append(clinics, c)
	}
	return clinics, rows.Err()
}

func (s *Postgres) SaveClinic(ctx context.Context, c clinic.Clinic) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO vet_clinics (
			name, address, city, province, postal_code, phone, email, website, is_emergency, notes, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		c.Name, c.Address, c.City, c.Province, c.PostalCode, c.Phone, c.Email, c.Website,
		c.IsEmergency, c.Notes, c.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save clinic %q: %w", c.Name, err)
	}
	return id, nil
}
