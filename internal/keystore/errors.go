package keystore

import "errors"

var (
	ErrValidation         = errors.New("validation error")
	ErrNotConnected       = errors.New("keystore not connected")
	ErrNotOpened          = errors.New("keystore not opened")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidPassphrase  = errors.New("invalid passphrase")
	ErrIntegrity          = errors.New("kek state integrity error")
	ErrDuplicateKeyPath   = errors.New("duplicate key path")
	ErrNotImplemented     = errors.New("not implemented")
	ErrVerificationFailed = errors.New("verification failed")
	ErrTooManyAttempts    = errors.New("too many failed unlock attempts")
)
