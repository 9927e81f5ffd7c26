package models

import (
	"time"
)

// Model carries the bookkeeping timestamps shared by mutable tables
type Model struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	RoleBusiness   = "business"
	RoleInfluencer = "influencer"

	// DefaultBusinessCategory is stored when a business signs up without a type.
	DefaultBusinessCategory = "Not specified"
)

// User is a business or influencer profile. ID is the identity provider uid.
// The rating fields are owned by the social graph and never written by profile edits.
type User struct {
	Model
	ID            string  `json:"id" gorm:"primaryKey;type:varchar(128)"`
	Email         string  `json:"email"`
	DisplayName   string  `json:"display_name"`
	Role          string  `json:"role" gorm:"type:varchar(16);index"`
	Category      string  `json:"category"`
	Location      string  `json:"location"`
	Bio           string  `json:"bio" gorm:"type:text"`
	RatingSum     int64   `json:"-" gorm:"not null;default:0"`
	RatingCount   int64   `json:"rating_count" gorm:"not null;default:0"`
	RatingAverage float64 `json:"rating_average" gorm:"not null;default:0"`
}

// Aggregate returns the user's rating aggregate.
func (u *User) Aggregate() RatingAggregate {
	return RatingAggregate{Sum: u.RatingSum, Count: u.RatingCount}
}

// Profile is what the identity/profile collaborator exposes for rendering
type Profile struct {
	ID            string  `json:"id"`
	DisplayName   string  `json:"display_name"`
	UserType      string  `json:"user_type"`
	Category      string  `json:"category"`
	Location      string  `json:"location"`
	Bio           string  `json:"bio"`
	RatingAverage float64 `json:"rating_average"`
	RatingCount   int64   `json:"rating_count"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:            u.ID,
		DisplayName:   u.DisplayName,
		UserType:      u.Role,
		Category:      u.Category,
		Location:      u.Location,
		Bio:           u.Bio,
		RatingAverage: u.RatingAverage,
		RatingCount:   u.RatingCount,
	}
}

// SignupRequest is the body of the profile creation call
type SignupRequest struct {
	Email       string `json:"email" conform:"trim,lower" validate:"omitempty,email"`
	DisplayName string `json:"display_name" conform:"trim" validate:"required,min=2,max=80"`
	UserType    string `json:"user_type" conform:"trim,lower" validate:"required,oneof=business influencer"`
	Category    string `json:"category" conform:"trim" validate:"max=80"`
	Location    string `json:"location" conform:"trim" validate:"required,max=120"`
	Bio         string `json:"bio" conform:"trim" validate:"max=2000"`
}

// EditProfileRequest carries a partial profile update; nil fields are left untouched.
type EditProfileRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=2,max=80"`
	Category    *string `json:"category" validate:"omitempty,max=80"`
	Location    *string `json:"location" validate:"omitempty,max=120"`
	Bio         *string `json:"bio" validate:"omitempty,max=2000"`
}

var profileColumns = map[string]bool{
	"display_name": true,
	"category":     true,
	"location":     true,
	"bio":          true,
}

// IsProfileColumn tells whether a users column may be changed by a profile edit.
func IsProfileColumn(column string) bool {
	return profileColumns[column]
}

// Fields returns the column updates carried by the request.
func (r *EditProfileRequest) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if r.DisplayName != nil {
		fields["display_name"] = *r.DisplayName
	}
	if r.Category != nil {
		fields["category"] = *r.Category
	}
	if r.Location != nil {
		fields["location"] = *r.Location
	}
	if r.Bio != nil {
		fields["bio"] = *r.Bio
	}
	return fields
}
