package services

import "errors"

var (
	ErrNotFound               = errors.New("member record not found")
	ErrUserNotFound           = errors.New("account not found")
	ErrEntryNotFound          = errors.New("payment entry not found")
	ErrPlanNotFound           = errors.New("plan not found")
	ErrNoActiveMembership     = errors.New("no active membership")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrInvalidInput           = errors.New("invalid input")
	ErrForbidden              = errors.New("operation requires admin privileges")
	ErrLinkedRecord           = errors.New("record is linked to a live account and cannot be deleted")
	ErrDuplicateEmail         = errors.New("email already in use")
	ErrDuplicatePhone         = errors.New("phone already in use")
	ErrIdentityConflict       = errors.New("account matches two different member records")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrConcurrentModification = errors.New("member record was modified concurrently")
)
