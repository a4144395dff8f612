package models

import "time"

// FileInfo represents metadata about a stored lot definition file.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "stored", "applied", "rejected"
	LotID      string    `json:"lotId,omitempty"`
}
