package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Hasnainmunshi/diagnostic-management/internal/db"
)

type PgRepository struct {
	db db.DB
}

func NewPgRepository(d db.DB) *PgRepository {
	return &PgRepository{db: d}
}

const personColumns = `p.id, p.name, p.email, p.password_hash, p.role, p.phone, p.address, p.center_id, p.created_at, p.updated_at`

const doctorColumns = personColumns + `, d.specialty, d.degree, d.experience_years, d.fee, d.max_slots`

const testColumns = `id, center_id, name, category, price, description, status, created_at, updated_at`

const centerColumns = `id, name, address, contact, email, created_at, updated_at`

// Helpers

func scanPerson(row pgx.Row) (*Person, error) {
	var p Person
	err := row.Scan(
		&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.Role,
		&p.Phone, &p.Address, &p.CenterID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID, &d.Name, &d.Email, &d.PasswordHash, &d.Role,
		&d.Phone, &d.Address, &d.CenterID, &d.CreatedAt, &d.UpdatedAt,
		&d.Specialty, &d.Degree, &d.ExperienceYears, &d.Fee, &d.MaxSlots,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanCenter(row pgx.Row) (*Center, error) {
	var c Center
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Contact, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCenterNotFound
		}
		return nil, err
	}
	return &c, nil
}

func scanTest(row pgx.Row) (*TestOffering, error) {
	var t TestOffering
	err := row.Scan(
		&t.ID, &t.CenterID, &t.Name, &t.Category, &t.Price,
		&t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}
	return &t, nil
}

func insertPerson(ctx context.Context, q db.Querier, p *Person) error {
	err := q.QueryRow(ctx, `
		INSERT INTO persons (id, name, email, password_hash, role, phone, address, center_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Email, p.PasswordHash, p.Role, p.Phone, p.Address, p.CenterID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

// Persons

func (r *PgRepository) CreatePerson(ctx context.Context, p *Person) error {
	return insertPerson(ctx, r.db, p)
}

func (r *PgRepository) GetPerson(ctx context.Context, id uuid.UUID) (*Person, error) {
	row := r.db.QueryRow(ctx, `SELECT `+personColumns+` FROM persons p WHERE p.id = $1`, id)
	return scanPerson(row)
}

func (r *PgRepository) GetPersonByEmail(ctx context.Context, email string) (*Person, error) {
	row := r.db.QueryRow(ctx, `SELECT `+personColumns+` FROM persons p WHERE lower(p.email) = lower($1)`, email)
	return scanPerson(row)
}

func (r *PgRepository) UpdatePerson(ctx context.Context, p *Person) error {
	err := r.db.QueryRow(ctx, `
		UPDATE persons
		SET name = $2, phone = $3, address = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.Name, p.Phone, p.Address).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPersonNotFound
		}
		return fmt.Errorf("update person: %w", err)
	}
	return nil
}

// Doctors

func (r *PgRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := insertPerson(ctx, tx, &d.Person); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO doctor_profiles (person_id, specialty, degree, experience_years, fee, max_slots)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, d.ID, d.Specialty, d.Degree, d.ExperienceYears, d.Fee, d.MaxSlots)
		if err != nil {
			return fmt.Errorf("insert doctor profile: %w", err)
		}
		return nil
	})
}

func (r *PgRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM persons p
		JOIN doctor_profiles d ON d.person_id = p.id
		WHERE p.id = $1 AND d.deleted_at IS NULL
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) UpdateDoctor(ctx context.Context, d *Doctor) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE persons
			SET name = $2, phone = $3, address = $4, updated_at = now()
			WHERE id = $1 AND role = 'doctor'
		`, d.ID, d.Name, d.Phone, d.Address)
		if err != nil {
			return fmt.Errorf("update doctor person: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrDoctorNotFound
		}
		_, err = tx.Exec(ctx, `
			UPDATE doctor_profiles
			SET specialty = $2, degree = $3, experience_years = $4, fee = $5, max_slots = $6
			WHERE person_id = $1
		`, d.ID, d.Specialty, d.Degree, d.ExperienceYears, d.Fee, d.MaxSlots)
		if err != nil {
			return fmt.Errorf("update doctor profile: %w", err)
		}
		return nil
	})
}

func (r *PgRepository) ListDoctors(ctx context.Context, f DoctorFilter) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+doctorColumns+`
		FROM persons p
		JOIN doctor_profiles d ON d.person_id = p.id
		WHERE d.deleted_at IS NULL
		  AND ($1::uuid IS NULL OR EXISTS (
		        SELECT 1 FROM center_doctors cd WHERE cd.doctor_id = p.id AND cd.center_id = $1))
		  AND ($2 = '' OR d.specialty ILIKE $2)
		ORDER BY p.name
		LIMIT $3 OFFSET $4
	`, f.CenterID, f.Specialty, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE doctor_profiles SET deleted_at = now() WHERE person_id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("delete doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

// Centers

func (r *PgRepository) CreateCenter(ctx context.Context, c *Center) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO centers (id, name, address, contact, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING created_at, updated_at
	`, c.ID, c.Name, c.Address, c.Contact, c.Email).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert center: %w", err)
	}
	return nil
}

func (r *PgRepository) GetCenter(ctx context.Context, id uuid.UUID) (*Center, error) {
	row := r.db.QueryRow(ctx, `SELECT `+centerColumns+` FROM centers WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanCenter(row)
}

func (r *PgRepository) UpdateCenter(ctx context.Context, c *Center) error {
	row := r.db.QueryRow(ctx, `
		UPDATE centers
		SET name = $2, address = $3, contact = $4, email = $5, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+centerColumns, c.ID, c.Name, c.Address, c.Contact, c.Email)
	updated, err := scanCenter(row)
	if err != nil {
		return err
	}
	*c = *updated
	return nil
}

func (r *PgRepository) ListCenters(ctx context.Context, limit, offset int) ([]Center, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+centerColumns+` FROM centers WHERE deleted_at IS NULL ORDER BY name LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list centers: %w", err)
	}
	defer rows.Close()

	var result []Center
	for rows.Next() {
		c, err := scanCenter(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (r *PgRepository) DeleteCenter(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE centers SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete center: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCenterNotFound
	}
	return nil
}

func (r *PgRepository) LinkDoctor(ctx context.Context, centerID, doctorID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO center_doctors (center_id, doctor_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, centerID, doctorID)
	if err != nil {
		return fmt.Errorf("link doctor: %w", err)
	}
	return nil
}

// Tests

func (r *PgRepository) CreateTest(ctx context.Context, t *TestOffering) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO tests (id, center_id, name, category, price, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING created_at, updated_at
	`, t.ID, t.CenterID, t.Name, t.Category, t.Price, t.Description, t.Status,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}
	return nil
}

func (r *PgRepository) GetTest(ctx context.Context, id uuid.UUID) (*TestOffering, error) {
	row := r.db.QueryRow(ctx, `SELECT `+testColumns+` FROM tests WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanTest(row)
}

func (r *PgRepository) UpdateTest(ctx context.Context, t *TestOffering) error {
	row := r.db.QueryRow(ctx, `
		UPDATE tests
		SET name = $2, category = $3, price = $4, description = $5, status = $6, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+testColumns, t.ID, t.Name, t.Category, t.Price, t.Description, t.Status)
	updated, err := scanTest(row)
	if err != nil {
		return err
	}
	*t = *updated
	return nil
}

func (r *PgRepository) ListTests(ctx context.Context, centerID uuid.UUID) ([]TestOffering, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+testColumns+` FROM tests WHERE center_id = $1 AND deleted_at IS NULL ORDER BY name
	`, centerID)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	defer rows.Close()

	var result []TestOffering
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (r *PgRepository) DeleteTest(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE tests SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTestNotFound
	}
	return nil
}
