package manager

import "errors"

// Sentinel errors for manager operations.
var (
	ErrUnknownModule = errors.New("manager: unknown module")
	ErrDuplicateKey  = errors.New("manager: module key already registered")
	ErrInvalidConfig = errors.New("manager: invalid configuration")
	ErrNotSnapshot   = errors.New("manager: value cannot be exported")
)
