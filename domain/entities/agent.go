package entities

import (
	"errors"
	"time"
)

// Agent represents a field agent account allowed to open report sessions
type Agent struct {
	ID           string    `json:"id"`
	SerialNumber string    `json:"serial_number"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate validates the agent data
func (a *Agent) Validate() error {
	if a.SerialNumber == "" {
		return errors.New("serial number is required")
	}
	if a.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
