package appointment

import (
	"errors"

	"github.com/google/uuid"

	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
	"github.com/Hasnainmunshi/diagnostic-management/internal/auth"
)

// errHoldSettled reports an expiry candidate that was paid or moved on after it was selected.
var errHoldSettled = errors.New("hold is no longer an unpaid pending appointment")

// canAccess reports whether c may act on a as one of its parties.
func canAccess(c auth.Caller, a *Appointment) bool {
	switch c.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleUser:
		return a.PatientID == c.ID
	case auth.RoleDoctor:
		return a.Kind == KindDoctor && a.SubjectID == c.ID
	case auth.RoleDiagnostic, auth.RoleEmployee:
		return c.CenterID != uuid.Nil && a.CenterID == c.CenterID
	}
	return false
}

func authorizeView(c auth.Caller, a *Appointment) error {
	if !canAccess(c, a) {
		return apperr.Ownership(a.ID.String())
	}
	return nil
}

// checkCancel applies state, ownership and payment rules in that order.
func checkCancel(c auth.Caller, a *Appointment) error {
	if _, ok := Next(a.Status, ActionCancel); !ok {
		return apperr.AlreadyTerminal(a.ID.String(), string(a.Status))
	}
	if !canAccess(c, a) {
		return apperr.Ownership(a.ID.String())
	}
	if a.Paid() && !cancelAllowedAfterPayment(c, a) {
		return apperr.AlreadyPaid(a.ID.String())
	}
	return nil
}

// Paid test appointments are never cancelled. Paid doctor appointments may be
// cancelled by staff, the doctor or an admin but not by the patient.
func cancelAllowedAfterPayment(c auth.Caller, a *Appointment) bool {
	return a.Kind == KindDoctor && c.Role != auth.RoleUser
}

// checkExpire admits only unpaid pending doctor holds. Anything else is skipped, not failed.
func checkExpire(a *Appointment) error {
	if a.Kind != KindDoctor || a.Status != StatusPending || a.Paid() {
		return errHoldSettled
	}
	return nil
}

func checkCompleteDoctor(c auth.Caller, a *Appointment) error {
	if a.Kind != KindDoctor {
		return apperr.Validation("id", "not a doctor appointment")
	}
	if err := auth.Require(c, auth.RoleDoctor); err != nil {
		return err
	}
	if _, ok := Next(a.Status, ActionComplete); !ok {
		return apperr.AlreadyTerminal(a.ID.String(), string(a.Status))
	}
	if a.SubjectID != c.ID {
		return apperr.Ownership(a.ID.String())
	}
	return nil
}

func checkCompleteTest(c auth.Caller, a *Appointment) error {
	if a.Kind != KindTest {
		return apperr.Validation("id", "not a test appointment")
	}
	if c.Role != auth.RoleAdmin && !c.IsCenterStaff() {
		return apperr.Forbidden("only center staff can complete test appointments")
	}
	if _, ok := Next(a.Status, ActionComplete); !ok {
		return apperr.AlreadyTerminal(a.ID.String(), string(a.Status))
	}
	if !canAccess(c, a) {
		return apperr.Ownership(a.ID.String())
	}
	return nil
}
