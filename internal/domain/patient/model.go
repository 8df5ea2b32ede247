// Package patient is the patient registry.
package patient

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

var (
	ErrNotFound          = errors.New("patient not found")
	ErrInvalid           = errors.New("invalid patient")
	ErrDuplicateDocument = errors.New("document id already registered")
)

// Patient is a registered person. DocumentID is the national id number and
// is unique across the registry.
type Patient struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	DocumentID string    `json:"document_id"`
	BirthDate  string    `json:"birth_date,omitempty"`
	Gender     Gender    `json:"gender,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	Address    string    `json:"address,omitempty"`
	Dependency string    `json:"dependency,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewPatientID() string { return "PAT-" + strings.ToUpper(uuid.New().String()[:8]) }

func (p *Patient) normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.DocumentID = strings.TrimSpace(p.DocumentID)
	p.Email = strings.TrimSpace(p.Email)
	p.Gender = Gender(strings.ToLower(string(p.Gender)))
}

func (p *Patient) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if p.DocumentID == "" {
		return fmt.Errorf("%w: document_id is required", ErrInvalid)
	}
	switch p.Gender {
	case "", GenderMale, GenderFemale, GenderOther:
	default:
		return fmt.Errorf("%w: gender must be male, female or other", ErrInvalid)
	}
	if p.BirthDate != "" {
		if _, err := time.Parse("2006-01-02", p.BirthDate); err != nil {
			return fmt.Errorf("%w: birth_date must be YYYY-MM-DD", ErrInvalid)
		}
	}
	return nil
}
