package models

import "time"

// RemoteStatus is the last known reachability of one fragment remote.
type RemoteStatus struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Reachable bool      `json:"reachable"`
	CheckedAt time.Time `json:"checkedAt,omitempty"`
	LastError string    `json:"lastError,omitempty"`
}
