// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// WHY PasswordHash `json:"-"`?
// The dash tag tells encoding/json to NEVER serialize this field. Handlers
// return model.User directly in responses, so without the dash a login reply
// would ship the bcrypt hash to the browser. The hash only travels between
// the repository and the password service.
//
// AvatarPath is a server-local file path (e.g. "uploads/av-cv37rs3p.png"),
// empty until the user uploads an avatar.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"` // unique, stored case-sensitive
	PasswordHash string    `json:"-"`
	AvatarPath   string    `json:"avatarPath,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
