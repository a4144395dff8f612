package models

// ParkingSettings holds the externally configured backend endpoints. Both
// values are opaque to the core and handed to the REST and push clients.
type ParkingSettings struct {
	RestBaseURL string `json:"restBaseUrl"`
	WSURL       string `json:"wsUrl"`
}
