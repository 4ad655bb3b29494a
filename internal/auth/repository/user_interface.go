package repository

import (
	"time"

	authdomain "mailmirror-backend/internal/auth/domain"
)

// UserRepository defines the interface for user operations
type UserRepository interface {
	Create(user *authdomain.User) error
	FindByID(id string) (*authdomain.User, error)
	FindByEmail(email string) (*authdomain.User, error)
	Update(user *authdomain.User) error
	// Persist a refreshed Gmail token pair
	UpdateTokens(userID, accessToken, refreshToken string, expiry time.Time) error
	// Record the completion time of a sync cycle
	TouchLastSync(userID string, at time.Time) error
	// Users whose last sync is older than the cutoff (or never synced)
	FindUsersDueForSync(olderThan time.Time) ([]authdomain.User, error)
}
