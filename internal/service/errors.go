package service

import (
	"errors"

	"github.com/sandeepkv93/omada-captive-portal/internal/repository"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrControllerToken      = errors.New("failed to authenticate with omada controller")
	ErrControllerAuthFailed = errors.New("controller authentication failed")

	ErrDeviceNotFound  = repository.ErrDeviceNotFound
	ErrSessionNotFound = repository.ErrPortalSessionNotFound
)
