package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrPlanNotFound      = errors.New("plan not found")
	ErrPreferencesNotSet = errors.New("preferences not set")
	ErrInvalidUserID     = errors.New("invalid user id")
)
