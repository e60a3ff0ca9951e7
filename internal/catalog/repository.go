package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPersonNotFound = errors.New("person not found")
	ErrDoctorNotFound = errors.New("doctor not found")
	ErrCenterNotFound = errors.New("center not found")
	ErrTestNotFound   = errors.New("test not found")
	ErrEmailTaken     = errors.New("email already registered")
)

type DoctorFilter struct {
	CenterID  *uuid.UUID
	Specialty string
	Limit     int
	Offset    int
}

// Repository contains all DB interactions needed by the catalog service.
// Deleted doctors, centers and tests are invisible to every read.
type Repository interface {
	CreatePerson(ctx context.Context, p *Person) error
	GetPerson(ctx context.Context, id uuid.UUID) (*Person, error)
	GetPersonByEmail(ctx context.Context, email string) (*Person, error)
	UpdatePerson(ctx context.Context, p *Person) error

	CreateDoctor(ctx context.Context, d *Doctor) error
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	UpdateDoctor(ctx context.Context, d *Doctor) error
	ListDoctors(ctx context.Context, f DoctorFilter) ([]Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error

	CreateCenter(ctx context.Context, c *Center) error
	GetCenter(ctx context.Context, id uuid.UUID) (*Center, error)
	UpdateCenter(ctx context.Context, c *Center) error
	ListCenters(ctx context.Context, limit, offset int) ([]Center, error)
	LinkDoctor(ctx context.Context, centerID, doctorID uuid.UUID) error
	DeleteCenter(ctx context.Context, id uuid.UUID) error

	CreateTest(ctx context.Context, t *TestOffering) error
	GetTest(ctx context.Context, id uuid.UUID) (*TestOffering, error)
	UpdateTest(ctx context.Context, t *TestOffering) error
	ListTests(ctx context.Context, centerID uuid.UUID) ([]TestOffering, error)
	DeleteTest(ctx context.Context, id uuid.UUID) error
}
