package user

import "github.com/geocoder89/usershub/internal/apperr"

var (
	ErrNotFound  = apperr.NotFound("User not found")
	ErrConflict  = apperr.Conflict("User with this email or phone already exists")
	ErrInvalidID = apperr.Validation("id", "integer", "Invalid user ID")
	ErrNoFields  = apperr.Validation("", "min_fields", "No valid fields provided for update")
)
