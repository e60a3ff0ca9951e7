package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
)

type Person struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         auth.Role
	Phone        string
	Address      string
	CenterID     *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Doctor is a doctor-role Person plus its practice profile.
type Doctor struct {
	Person
	Specialty       string
	Degree          string
	ExperienceYears int
	Fee             int64 // minor units
	MaxSlots        int
}

type Center struct {
	ID        uuid.UUID
	Name      string
	Address   string
	Contact   string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TestStatus string

const (
	TestAvailable TestStatus = "available"
	TestBooked    TestStatus = "booked"
	TestCancelled TestStatus = "cancelled"
)

type TestOffering struct {
	ID          uuid.UUID
	CenterID    uuid.UUID
	Name        string
	Category    string
	Price       int64 // minor units
	Description string
	Status      TestStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
