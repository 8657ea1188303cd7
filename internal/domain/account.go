package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Account struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name" json:"name"`
	Email        string               `bson:"email" json:"email"`
	PasswordHash string               `bson:"passwordHash" json:"-"`
	Role         string               `bson:"role" json:"role"`
	Phone        string               `bson:"phone,omitempty" json:"phone,omitempty"`
	City         string               `bson:"city,omitempty" json:"city,omitempty"`
	ProfilePic   string               `bson:"profilePic,omitempty" json:"profilePic,omitempty"`
	IsVerified   bool                 `bson:"isVerified" json:"isVerified"`
	VerifyCode   string               `bson:"verificationCode,omitempty" json:"-"`
	SavedIDs     []primitive.ObjectID `bson:"savedListings,omitempty" json:"savedListings,omitempty"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Account roles. Advisory only: access control compares ownership, not
// role.
const (
	RoleMember = "member"
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
)

var validRoles = map[string]bool{
	RoleMember: true,
	RoleOwner:  true,
	RoleAdmin:  true,
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
}

func (r *RegisterRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if r.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if !isValidEmail(r.Email) {
		return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	if r.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if len(r.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	// Admin cannot be self-assigned.
	if r.Role != "" && (!IsValidRole(r.Role) || r.Role == RoleAdmin) {
		return fmt.Errorf("%w: role must be 'member' or 'owner'", ErrInvalidInput)
	}
	return nil
}

type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (r *VerifyRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.Code = strings.TrimSpace(r.Code)
}

func (r *VerifyRequest) Validate() error {
	if r.Email == "" || r.Code == "" {
		return fmt.Errorf("%w: email and code are required", ErrInvalidInput)
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	return nil
}

// UpdateProfileRequest is a partial update; nil fields are untouched.
type UpdateProfileRequest struct {
	Name       *string `json:"name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	City       *string `json:"city,omitempty"`
	ProfilePic *string `json:"profilePic,omitempty"`
}

func (r *UpdateProfileRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}
	return nil
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r *ChangePasswordRequest) Validate() error {
	if r.CurrentPassword == "" || r.NewPassword == "" {
		return fmt.Errorf("%w: currentPassword and newPassword are required", ErrInvalidInput)
	}
	if len(r.NewPassword) < 8 {
		return fmt.Errorf("%w: new password must be at least 8 characters", ErrInvalidInput)
	}
	return nil
}

// AccountInfo is the public projection returned by the API.
type AccountInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Phone      string `json:"phone,omitempty"`
	City       string `json:"city,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
	IsVerified bool   `json:"isVerified"`
}

func (a *Account) ToInfo() *AccountInfo {
	return &AccountInfo{
		ID:         a.ID.Hex(),
		Name:       a.Name,
		Email:      a.Email,
		Role:       a.Role,
		Phone:      a.Phone,
		City:       a.City,
		ProfilePic: a.ProfilePic,
		IsVerified: a.IsVerified,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
