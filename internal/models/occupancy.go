package models

// SpotState is the last known occupancy of one spot. A spot with no
// SpotState entry is unknown.
type SpotState struct {
	SpotID      string `json:"spot_id" msgpack:"spot_id"`
	Occupied    bool   `json:"occupied" msgpack:"occupied"`
	LastUpdated string `json:"last_updated,omitempty" msgpack:"last_updated,omitempty"`
}

// SpotOccupancy is one entry of an occupancy snapshot or REST occupancy list.
type SpotOccupancy struct {
	SpotID   string `json:"spot_id" msgpack:"spot_id"`
	Occupied bool   `json:"occupied" msgpack:"occupied"`
}

// ConnectionState is the status of the live push connection.
type ConnectionState string

const (
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionReconnecting ConnectionState = "reconnecting"
)
