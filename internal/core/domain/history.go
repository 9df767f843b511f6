package domain

import "time"

// ConnectionRecord tracks one connection attempt against a device. EndTime
// and Successful stay unset until the attempt concludes.
type ConnectionRecord struct {
	ID           int        `json:"id"`
	DeviceID     DeviceID   `json:"deviceId"`
	ClientID     ClientID   `json:"clientId"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Successful   *bool      `json:"successful,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}
