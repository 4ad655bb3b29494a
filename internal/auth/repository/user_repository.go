package repository

import (
	"errors"
	"time"

	authdomain "mailmirror-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) Create(user *authdomain.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	return r.db.Create(user).Error
}

func (r *userRepository) FindByID(id string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(email string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(user *authdomain.User) error {
	user.UpdatedAt = time.Now()
	return r.db.Save(user).Error
}

func (r *userRepository) UpdateTokens(userID, accessToken, refreshToken string, expiry time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"token_expiry": expiry,
		"updated_at":   time.Now(),
	}
	// Google only returns a refresh token on the first consent, keep the old one otherwise
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return r.db.Model(&authdomain.User{}).Where("id = ?", userID).Updates(updates).Error
}

func (r *userRepository) TouchLastSync(userID string, at time.Time) error {
	return r.db.Model(&authdomain.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"last_sync_at": at, "updated_at": time.Now()}).Error
}

func (r *userRepository) FindUsersDueForSync(olderThan time.Time) ([]authdomain.User, error) {
	var users []authdomain.User
	err := r.db.Where("last_sync_at IS NULL OR last_sync_at < ?", olderThan).Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
