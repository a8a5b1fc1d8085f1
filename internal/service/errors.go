package service

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrIssueNotFound      = errors.New("issue not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrVersionConflict    = errors.New("issue was modified by another request")
)
