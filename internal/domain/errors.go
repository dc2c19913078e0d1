package domain

import "errors"

// Errors
var (
	ErrValidation         = errors.New("validation failed")
	ErrIllegalTransition  = errors.New("illegal transition")
	ErrInspectionRequired = errors.New("inspection required")
	ErrAlreadyFinished    = errors.New("item already finished")
	ErrAlreadyCompleted   = errors.New("request already completed")
	ErrConflict           = errors.New("state changed, please refresh")
	ErrNotFound           = errors.New("not found")
)
