package model

import (
	"time"

	"github.com/google/uuid"
)

// Device is a piece of equipment installed in a room.
type Device struct {
	Base
	RoomID       uuid.UUID `db:"room_id" json:"room_id"`
	Name         string    `db:"name" json:"name"`
	Value        int64     `db:"value" json:"value"`
	Description  string    `db:"description" json:"description"`
	PurchaseDate time.Time `db:"purchase_date" json:"purchase_date"`
	Active       bool      `db:"active" json:"active"`
}
