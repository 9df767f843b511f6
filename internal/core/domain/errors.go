package domain

import "errors"

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrClientNotFound = errors.New("client not connected")
	ErrRecordNotFound = errors.New("connection record not found")
)
