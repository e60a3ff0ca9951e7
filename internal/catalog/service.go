package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type Service struct {
	repo       Repository
	logger     zerolog.Logger
	defaultCap int
	hashCost   int
}

func NewService(repo Repository, defaultCap int, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		logger:     logger,
		defaultCap: defaultCap,
		hashCost:   bcrypt.DefaultCost,
	}
}

type PersonInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Address  string
}

type DoctorInput struct {
	PersonInput
	Specialty       string
	Degree          string
	ExperienceYears int
	Fee             int64
	MaxSlots        int
}

type CenterInput struct {
	Name    string
	Address string
	Contact string
	Email   string
}

type TestInput struct {
	CenterID    uuid.UUID
	Name        string
	Category    string
	Price       int64
	Description string
}

func (s *Service) newPerson(in PersonInput, role auth.Role) (*Person, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name", "name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return nil, apperr.Validation("email", "email is invalid")
	}
	if len(in.Password) < 6 {
		return nil, apperr.Validation("password", "password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return &Person{
		ID:           uuid.New(),
		Name:         name,
		Email:        strings.ToLower(addr.Address),
		PasswordHash: string(hash),
		Role:         role,
		Phone:        in.Phone,
		Address:      in.Address,
	}, nil
}

func mapEmailTaken(err error) error {
	if errors.Is(err, ErrEmailTaken) {
		return apperr.Validation("email", "email already registered")
	}
	return err
}

// RegisterPatient creates a user-role person. No caller is required.
func (s *Service) RegisterPatient(ctx context.Context, in PersonInput) (*Person, error) {
	p, err := s.newPerson(in, auth.RoleUser)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreatePerson(ctx, p); err != nil {
		return nil, mapEmailTaken(err)
	}
	s.logger.Info().Str("person_id", p.ID.String()).Msg("patient registered")
	return p, nil
}

// CreateStaff creates a diagnostic or employee account bound to a center.
func (s *Service) CreateStaff(ctx context.Context, caller auth.Caller, centerID uuid.UUID, role auth.Role, in PersonInput) (*Person, error) {
	if role != auth.RoleDiagnostic && role != auth.RoleEmployee {
		return nil, apperr.Validation("role", "staff role must be diagnostic or employee")
	}
	if err := s.requireCenterAdmin(caller, centerID); err != nil {
		return nil, err
	}
	if _, err := s.GetCenter(ctx, centerID); err != nil {
		return nil, err
	}

	p, err := s.newPerson(in, role)
	if err != nil {
		return nil, err
	}
	p.CenterID = &centerID
	if err := s.repo.CreatePerson(ctx, p); err != nil {
		return nil, mapEmailTaken(err)
	}
	return p, nil
}

// Authenticate checks an email/password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Person, error) {
	p, err := s.repo.GetPersonByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrPersonNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load person: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

func (s *Service) GetPerson(ctx context.Context, id uuid.UUID) (*Person, error) {
	p, err := s.repo.GetPerson(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPersonNotFound) {
			return nil, apperr.NotFound("person", id.String())
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// GetPatient loads a person and requires the user role.
func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Person, error) {
	p, err := s.repo.GetPerson(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPersonNotFound) {
			return nil, apperr.NotFound("patient", id.String())
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	if p.Role != auth.RoleUser {
		return nil, apperr.NotFound("patient", id.String())
	}
	return p, nil
}

type ProfileUpdate struct {
	Name    *string
	Phone   *string
	Address *string
}

// UpdateProfile changes a person's contact details. Only the person or an admin may do it.
func (s *Service) UpdateProfile(ctx context.Context, caller auth.Caller, id uuid.UUID, up ProfileUpdate) (*Person, error) {
	if caller.Role != auth.RoleAdmin && caller.ID != id {
		return nil, apperr.Ownership(id.String())
	}
	p, err := s.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}

	if up.Name != nil {
		if strings.TrimSpace(*up.Name) == "" {
			return nil, apperr.Validation("name", "name is required")
		}
		p.Name = strings.TrimSpace(*up.Name)
	}
	if up.Phone != nil {
		p.Phone = strings.TrimSpace(*up.Phone)
	}
	if up.Address != nil {
		p.Address = strings.TrimSpace(*up.Address)
	}

	if err := s.repo.UpdatePerson(ctx, p); err != nil {
		if errors.Is(err, ErrPersonNotFound) {
			return nil, apperr.NotFound("person", id.String())
		}
		return nil, fmt.Errorf("update person: %w", err)
	}
	s.logger.Info().Str("person_id", id.String()).Str("by", caller.ID.String()).Msg("profile updated")
	return p, nil
}

// Doctors

func (s *Service) CreateDoctor(ctx context.Context, caller auth.Caller, in DoctorInput) (*Doctor, error) {
	if err := auth.Require(caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if in.Fee < 0 {
		return nil, apperr.Validation("fee", "fee must not be negative")
	}
	if in.MaxSlots < 0 {
		return nil, apperr.Validation("maxSlots", "maxSlots must not be negative")
	}

	p, err := s.newPerson(in.PersonInput, auth.RoleDoctor)
	if err != nil {
		return nil, err
	}
	d := &Doctor{
		Person:          *p,
		Specialty:       strings.TrimSpace(in.Specialty),
		Degree:          strings.TrimSpace(in.Degree),
		ExperienceYears: in.ExperienceYears,
		Fee:             in.Fee,
		MaxSlots:        in.MaxSlots,
	}
	if d.MaxSlots == 0 {
		d.MaxSlots = s.defaultCap
	}

	if err := s.repo.CreateDoctor(ctx, d); err != nil {
		return nil, mapEmailTaken(err)
	}
	s.logger.Info().Str("doctor_id", d.ID.String()).Msg("doctor created")
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetDoctor(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, apperr.NotFound("doctor", id.String())
		}
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return d, nil
}

// LedgerCap returns how many slot entries the doctor's ledger may hold.
func (s *Service) LedgerCap(ctx context.Context, doctorID uuid.UUID) (int, error) {
	d, err := s.GetDoctor(ctx, doctorID)
	if err != nil {
		return 0, err
	}
	if d.MaxSlots <= 0 {
		return s.defaultCap, nil
	}
	return d.MaxSlots, nil
}

type DoctorUpdate struct {
	Name            *string
	Phone           *string
	Address         *string
	Specialty       *string
	Degree          *string
	ExperienceYears *int
	Fee             *int64
	MaxSlots        *int
}

// UpdateDoctor applies a partial update. Fee changes never touch existing appointments.
func (s *Service) UpdateDoctor(ctx context.Context, caller auth.Caller, id uuid.UUID, up DoctorUpdate) (*Doctor, error) {
	if caller.Role != auth.RoleAdmin && caller.ID != id {
		return nil, apperr.Ownership(id.String())
	}
	d, err := s.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}

	if up.Name != nil {
		if strings.TrimSpace(*up.Name) == "" {
			return nil, apperr.Validation("name", "name is required")
		}
		d.Name = strings.TrimSpace(*up.Name)
	}
	if up.Phone != nil {
		d.Phone = *up.Phone
	}
	if up.Address != nil {
		d.Address = *up.Address
	}
	if up.Specialty != nil {
		d.Specialty = *up.Specialty
	}
	if up.Degree != nil {
		d.Degree = *up.Degree
	}
	if up.ExperienceYears != nil {
		d.ExperienceYears = *up.ExperienceYears
	}
	if up.Fee != nil {
		if *up.Fee < 0 {
			return nil, apperr.Validation("fee", "fee must not be negative")
		}
		d.Fee = *up.Fee
	}
	if up.MaxSlots != nil {
		if *up.MaxSlots <= 0 {
			return nil, apperr.Validation("maxSlots", "maxSlots must be positive")
		}
		d.MaxSlots = *up.MaxSlots
	}

	if err := s.repo.UpdateDoctor(ctx, d); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, apperr.NotFound("doctor", id.String())
		}
		return nil, fmt.Errorf("update doctor: %w", err)
	}
	return d, nil
}

// DeleteDoctor removes a doctor from the catalog. Existing appointments keep
// their snapshot and can still be cancelled or completed; new bookings and
// slots are refused.
func (s *Service) DeleteDoctor(ctx context.Context, caller auth.Caller, id uuid.UUID) error {
	if err := auth.Require(caller, auth.RoleAdmin); err != nil {
		return err
	}
	if err := s.repo.DeleteDoctor(ctx, id); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return apperr.NotFound("doctor", id.String())
		}
		return fmt.Errorf("delete doctor: %w", err)
	}
	s.logger.Info().Str("doctor_id", id.String()).Msg("doctor deleted")
	return nil
}

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter) ([]Doctor, error) {
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	doctors, err := s.repo.ListDoctors(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

// Centers

func (s *Service) CreateCenter(ctx context.Context, caller auth.Caller, in CenterInput) (*Center, error) {
	if err := auth.Require(caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("name", "name is required")
	}
	c := &Center{
		ID:      uuid.New(),
		Name:    strings.TrimSpace(in.Name),
		Address: in.Address,
		Contact: in.Contact,
		Email:   in.Email,
	}
	if err := s.repo.CreateCenter(ctx, c); err != nil {
		return nil, fmt.Errorf("create center: %w", err)
	}
	s.logger.Info().Str("center_id", c.ID.String()).Msg("center created")
	return c, nil
}

func (s *Service) GetCenter(ctx context.Context, id uuid.UUID) (*Center, error) {
	c, err := s.repo.GetCenter(ctx, id)
	if err != nil {
		if errors.Is(err, ErrCenterNotFound) {
			return nil, apperr.NotFound("center", id.String())
		}
		return nil, fmt.Errorf("get center: %w", err)
	}
	return c, nil
}

func (s *Service) UpdateCenter(ctx context.Context, caller auth.Caller, id uuid.UUID, in CenterInput) (*Center, error) {
	if err := s.requireCenterAdmin(caller, id); err != nil {
		return nil, err
	}
	c, err := s.GetCenter(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		c.Name = strings.TrimSpace(in.Name)
	}
	if in.Address != "" {
		c.Address = in.Address
	}
	if in.Contact != "" {
		c.Contact = in.Contact
	}
	if in.Email != "" {
		c.Email = in.Email
	}
	if err := s.repo.UpdateCenter(ctx, c); err != nil {
		return nil, fmt.Errorf("update center: %w", err)
	}
	return c, nil
}

func (s *Service) ListCenters(ctx context.Context, limit, offset int) ([]Center, error) {
	limit, offset = clampPage(limit, offset)
	centers, err := s.repo.ListCenters(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list centers: %w", err)
	}
	return centers, nil
}

// DeleteCenter removes a center from the catalog. Its tests can no longer be
// listed or booked.
func (s *Service) DeleteCenter(ctx context.Context, caller auth.Caller, id uuid.UUID) error {
	if err := auth.Require(caller, auth.RoleAdmin); err != nil {
		return err
	}
	if err := s.repo.DeleteCenter(ctx, id); err != nil {
		if errors.Is(err, ErrCenterNotFound) {
			return apperr.NotFound("center", id.String())
		}
		return fmt.Errorf("delete center: %w", err)
	}
	s.logger.Info().Str("center_id", id.String()).Msg("center deleted")
	return nil
}

// AddDoctorToCenter links a doctor to a center. Linking twice is a no-op.
func (s *Service) AddDoctorToCenter(ctx context.Context, caller auth.Caller, centerID, doctorID uuid.UUID) error {
	if err := s.requireCenterAdmin(caller, centerID); err != nil {
		return err
	}
	if _, err := s.GetCenter(ctx, centerID); err != nil {
		return err
	}
	if _, err := s.GetDoctor(ctx, doctorID); err != nil {
		return err
	}
	if err := s.repo.LinkDoctor(ctx, centerID, doctorID); err != nil {
		return fmt.Errorf("add doctor to center: %w", err)
	}
	return nil
}

// Tests

// CreateTest adds a test offering to the center's catalog.
func (s *Service) CreateTest(ctx context.Context, caller auth.Caller, in TestInput) (*TestOffering, error) {
	if err := s.requireCenterStaff(caller, in.CenterID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("name", "name is required")
	}
	if in.Price <= 0 {
		return nil, apperr.Validation("price", "price must be greater than zero")
	}
	if _, err := s.GetCenter(ctx, in.CenterID); err != nil {
		return nil, err
	}

	t := &TestOffering{
		ID:          uuid.New(),
		CenterID:    in.CenterID,
		Name:        strings.TrimSpace(in.Name),
		Category:    in.Category,
		Price:       in.Price,
		Description: in.Description,
		Status:      TestAvailable,
	}
	if err := s.repo.CreateTest(ctx, t); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	return t, nil
}

func (s *Service) GetTest(ctx context.Context, id uuid.UUID) (*TestOffering, error) {
	t, err := s.repo.GetTest(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTestNotFound) {
			return nil, apperr.NotFound("test", id.String())
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	return t, nil
}

type TestUpdate struct {
	Name        *string
	Category    *string
	Price       *int64
	Description *string
	Status      *TestStatus
}

func (s *Service) UpdateTest(ctx context.Context, caller auth.Caller, id uuid.UUID, up TestUpdate) (*TestOffering, error) {
	t, err := s.GetTest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireCenterStaff(caller, t.CenterID); err != nil {
		return nil, err
	}

	if up.Name != nil {
		t.Name = strings.TrimSpace(*up.Name)
	}
	if up.Category != nil {
		t.Category = *up.Category
	}
	if up.Price != nil {
		if *up.Price <= 0 {
			return nil, apperr.Validation("price", "price must be greater than zero")
		}
		t.Price = *up.Price
	}
	if up.Description != nil {
		t.Description = *up.Description
	}
	if up.Status != nil {
		switch *up.Status {
		case TestAvailable, TestBooked, TestCancelled:
			t.Status = *up.Status
		default:
			return nil, apperr.Validation("status", "unknown test status")
		}
	}

	if err := s.repo.UpdateTest(ctx, t); err != nil {
		return nil, fmt.Errorf("update test: %w", err)
	}
	return t, nil
}

func (s *Service) DeleteTest(ctx context.Context, caller auth.Caller, id uuid.UUID) error {
	t, err := s.GetTest(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireCenterStaff(caller, t.CenterID); err != nil {
		return err
	}
	if err := s.repo.DeleteTest(ctx, id); err != nil {
		if errors.Is(err, ErrTestNotFound) {
			return apperr.NotFound("test", id.String())
		}
		return fmt.Errorf("delete test: %w", err)
	}
	return nil
}

func (s *Service) ListTests(ctx context.Context, centerID uuid.UUID) ([]TestOffering, error) {
	if _, err := s.GetCenter(ctx, centerID); err != nil {
		return nil, err
	}
	tests, err := s.repo.ListTests(ctx, centerID)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	return tests, nil
}

func (s *Service) requireCenterAdmin(caller auth.Caller, centerID uuid.UUID) error {
	if caller.Role == auth.RoleAdmin {
		return nil
	}
	if caller.Role == auth.RoleDiagnostic && caller.CenterID == centerID {
		return nil
	}
	return apperr.Forbidden("only an admin or the center's diagnostic account may do this")
}

func (s *Service) requireCenterStaff(caller auth.Caller, centerID uuid.UUID) error {
	if caller.Role == auth.RoleAdmin {
		return nil
	}
	if caller.IsCenterStaff() && caller.CenterID == centerID {
		return nil
	}
	return apperr.Forbidden("only an admin or the center's staff may do this")
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
