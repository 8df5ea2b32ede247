// Package settings keeps lab-wide configuration edited at runtime: the
// company block printed on documents and the password guarding bulk
// record deletion.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Namespace           = "settings"
	companyKey          = "company"
	deletionPasswordKey = "deletion_password"
)

var (
	ErrInvalid          = errors.New("invalid settings")
	ErrWrongPassword    = errors.New("wrong deletion password")
	ErrPasswordNotSet   = errors.New("deletion password not set")
	ErrPasswordTooShort = errors.New("deletion password must be at least 6 characters")
)

// CompanyInfo is the letterhead of invoices and reports.
type CompanyInfo struct {
	Name      string    `json:"name"`
	TaxID     string    `json:"tax_id"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Footer    string    `json:"footer"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// DefaultCompany is shown until the lab saves its own details.
func DefaultCompany() CompanyInfo {
	return CompanyInfo{
		Name:   "Clinical Laboratory",
		Footer: "Thank you for trusting us with your health.",
	}
}

func (c *CompanyInfo) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: company name is required", ErrInvalid)
	}
	return nil
}

type passwordHash struct {
	Hash      []byte    `json:"hash"`
	UpdatedAt time.Time `json:"updated_at"`
}
