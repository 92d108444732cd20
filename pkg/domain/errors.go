package domain

import "errors"

// QR handoff session errors
var (
	ErrSessionNotFound         = errors.New("qr session not found")
	ErrSessionExpired          = errors.New("qr session expired")
	ErrSessionPending          = errors.New("qr session not fulfilled yet")
	ErrSessionAlreadyFulfilled = errors.New("qr session already fulfilled")
	ErrSessionConsumed         = errors.New("qr session already consumed")
	ErrSessionExists           = errors.New("qr session already exists")
)

// Token and credential errors
var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Trusted device and secondary challenge errors
var (
	ErrDeviceUntrusted = errors.New("device not trusted")
	ErrTOTPNotEnabled  = errors.New("TOTP is not enabled for this account")
	ErrInvalidTOTPCode = errors.New("invalid TOTP code")
)
