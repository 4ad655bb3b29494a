package domain

import "time"

type User struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	Email        string     `json:"email" gorm:"uniqueIndex;not null"`
	Name         string     `json:"name"`
	AccessToken  string     `json:"-"` // Never return tokens in JSON
	RefreshToken string     `json:"-"`
	TokenExpiry  time.Time  `json:"-"`
	LastSyncAt   *time.Time `json:"last_sync_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasCredentials reports whether the user has a usable Gmail credential pair.
func (u *User) HasCredentials() bool {
	return u.AccessToken != "" || u.RefreshToken != ""
}
