package domain

import "errors"

var (
	ErrAdminNotFound       = errors.New("admin not found")
	ErrAdminExists         = errors.New("admin already exists")
	ErrDepartmentNotFound  = errors.New("department not found")
	ErrDepartmentExists    = errors.New("department already exists")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantExists   = errors.New("participant with this email already exists")
	ErrTemplateNotFound    = errors.New("template not found")
	ErrTemplateInUse       = errors.New("template is referenced by blasts")
	ErrBlastNotFound       = errors.New("blast not found")
	ErrBlastNotSendable    = errors.New("blast can only be sent from draft or failed")
	ErrBlastInProgress     = errors.New("blast is already being sent")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrTokenRevoked        = errors.New("token has been revoked")
	ErrEmptyAudience       = errors.New("audience matches no participants")
)
