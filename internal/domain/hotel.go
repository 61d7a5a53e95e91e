package domain

type Coords struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// RoomType maps a display name to the room-type identifier used for base prices.
type RoomType struct {
	Name   string `json:"name" yaml:"name"`
	TypeID string `json:"type_id" yaml:"type_id"`
}

// Hotel is one of our own properties. Rooms keeps catalog order: it is the
// outer ordering of every recommendation run.
type Hotel struct {
	ID     string     `json:"id" yaml:"id"`
	Name   string     `json:"name" yaml:"name"`
	Coords Coords     `json:"coords" yaml:"coords"`
	Rooms  []RoomType `json:"rooms" yaml:"rooms"`
}
