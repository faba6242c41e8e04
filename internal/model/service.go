package model

import "github.com/google/uuid"

// Service is a billable treatment offered by the clinic.
type Service struct {
	Base
	Code        string `db:"code" json:"code"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	// Price in minor currency units.
	Price int64 `db:"price" json:"price"`
	// RequiredDeviceIDs lists devices the service cannot be performed
	// without. Loaded separately from the service_devices join table.
	RequiredDeviceIDs []uuid.UUID `db:"-" json:"required_device_ids"`
}
