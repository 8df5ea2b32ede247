// Package identity manages staff accounts, their permissions and the
// professional details printed in report signature blocks.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lims/lims/internal/platform/auth"
)

const (
	Namespace         = "users"
	MinPasswordLength = 6
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalid            = errors.New("invalid user")
	ErrAlreadyExists      = errors.New("user already exists")
	ErrNotDeletable       = errors.New("user cannot be deleted")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is a staff account. ID is the person's document number and doubles
// as the login name.
type User struct {
	ID                       string            `json:"id"`
	Name                     string            `json:"name"`
	Permissions              []auth.Permission `json:"permissions"`
	Deletable                bool              `json:"deletable"`
	Professional             bool              `json:"professional"`
	ProfessionalTitle        string            `json:"professional_title,omitempty"`
	ProfessionalRegistration string            `json:"professional_registration,omitempty"`
	// Signature is an image data URL.
	Signature string    `json:"signature,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Account is the stored form of a user. Handlers only ever return the
// embedded User.
type Account struct {
	User
	PasswordHash []byte `json:"password_hash"`
}

func (u *User) normalize() {
	u.ID = strings.TrimSpace(u.ID)
	u.Name = strings.TrimSpace(u.Name)
	seen := make(map[auth.Permission]bool, len(u.Permissions))
	perms := make([]auth.Permission, 0, len(u.Permissions))
	for _, p := range u.Permissions {
		if !seen[p] {
			seen[p] = true
			perms = append(perms, p)
		}
	}
	u.Permissions = perms
}

func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if u.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	for _, p := range u.Permissions {
		if !auth.ValidPermission(p) {
			return fmt.Errorf("%w: unknown permission %q", ErrInvalid, p)
		}
	}
	return nil
}

func validatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalid, MinPasswordLength)
	}
	return nil
}

// SignatureBlock is what a report prints under a completed result.
type SignatureBlock struct {
	Name         string `json:"name"`
	Title        string `json:"title,omitempty"`
	Registration string `json:"registration,omitempty"`
	Signature    string `json:"signature,omitempty"`
}
