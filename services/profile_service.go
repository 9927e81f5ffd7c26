package services

import (
	"context"
	"strings"

	"github.com/techagentng/collabhub/config"
	"github.com/techagentng/collabhub/db"
	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/models"
)

// ProfileService owns profile creation and edits. Rating fields are not its to write.
type ProfileService interface {
	Signup(ctx context.Context, uid string, req *models.SignupRequest) (*models.User, error)
	GetUser(ctx context.Context, uid string) (*models.User, error)
	GetProfile(ctx context.Context, uid string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, uid string, req *models.EditProfileRequest) (*models.User, error)
}

type profileService struct {
	Config   *config.Config
	userRepo db.UserRepository
}

func NewProfileService(userRepo db.UserRepository, conf *config.Config) ProfileService {
	return &profileService{
		Config:   conf,
		userRepo: userRepo,
	}
}

func (p *profileService) Signup(ctx context.Context, uid string, req *models.SignupRequest) (*models.User, error) {
	if uid == "" {
		return nil, errs.ErrUnauthorized
	}
	user := &models.User{
		ID:          uid,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        req.UserType,
		Category:    req.Category,
		Location:    req.Location,
		Bio:         req.Bio,
	}
	switch user.Role {
	case models.RoleBusiness:
		if user.Category == "" {
			user.Category = models.DefaultBusinessCategory
		}
	case models.RoleInfluencer:
	default:
		return nil, errs.Wrap(errs.ErrBadRequest, "user_type must be %s or %s", models.RoleBusiness, models.RoleInfluencer)
	}

	if err := p.userRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (p *profileService) GetUser(ctx context.Context, uid string) (*models.User, error) {
	return p.userRepo.FindUserByID(ctx, uid)
}

func (p *profileService) GetProfile(ctx context.Context, uid string) (*models.Profile, error) {
	user, err := p.userRepo.FindUserByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

func (p *profileService) UpdateProfile(ctx context.Context, uid string, req *models.EditProfileRequest) (*models.User, error) {
	fields := req.Fields()
	for k, v := range fields {
		fields[k] = strings.TrimSpace(v.(string))
	}
	if name, ok := fields["display_name"]; ok && name == "" {
		return nil, errs.Wrap(errs.ErrBadRequest, "display_name cannot be blank")
	}
	return p.userRepo.UpdateProfile(ctx, uid, fields)
}
