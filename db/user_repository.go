package db

import (
	"context"

	"github.com/pkg/errors"
	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	// FindUsersByIDs returns the users that exist among ids, in no particular order.
	FindUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	UpdateProfile(ctx context.Context, id string, fields map[string]interface{}) (*models.User, error)
}

type userRepo struct {
	DB *gorm.DB
}

func NewUserRepo(db *GormDB) UserRepository {
	return &userRepo{db.DB}
}

func (u *userRepo) CreateUser(ctx context.Context, user *models.User) error {
	result := u.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(user)
	if result.Error != nil {
		return errors.Wrap(result.Error, "create user")
	}
	if result.RowsAffected == 0 {
		return errs.Wrap(errs.ErrProfileExists, "user %s", user.ID)
	}
	return nil
}

func (u *userRepo) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := u.DB.WithContext(ctx).Where("id = ?", id).First(user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Wrap(errs.ErrNotFound, "user %s", id)
		}
		return nil, errors.Wrap(err, "find user")
	}
	return user, nil
}

func (u *userRepo) FindUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := u.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "find users")
	}
	return users, nil
}

// UpdateProfile applies fields to the user's profile columns. Rating columns are
// filtered out; they only move through SocialRepository.SaveRating.
func (u *userRepo) UpdateProfile(ctx context.Context, id string, fields map[string]interface{}) (*models.User, error) {
	clean := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if models.IsProfileColumn(k) {
			clean[k] = v
		}
	}
	if len(clean) > 0 {
		result := u.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(clean)
		if result.Error != nil {
			return nil, errors.Wrap(result.Error, "update profile")
		}
		if result.RowsAffected == 0 {
			return nil, errs.Wrap(errs.ErrNotFound, "user %s", id)
		}
	}
	return u.FindUserByID(ctx, id)
}
