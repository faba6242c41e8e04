package model

type RoomType string

const (
	RoomTypeGeneral     RoomType = "general"
	RoomTypeSurgery     RoomType = "surgery"
	RoomTypeXRay        RoomType = "xray"
	RoomTypeOrthodontic RoomType = "orthodontic"
)

func (t RoomType) Valid() bool {
	switch t {
	case RoomTypeGeneral, RoomTypeSurgery, RoomTypeXRay, RoomTypeOrthodontic:
		return true
	}
	return false
}

// Room is a treatment room. Appointments are booked against a room slot.
type Room struct {
	Base
	Code        string   `db:"code" json:"code"`
	Description string   `db:"description" json:"description"`
	Type        RoomType `db:"type" json:"type"`
}
