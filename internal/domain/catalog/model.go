// Package catalog holds the billable lab services and their optional
// binding to a result template.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("service not found")
	ErrInvalid       = errors.New("invalid service")
	ErrAlreadyExists = errors.New("service already exists")
)

// LabService is a billable test. TemplateID is optional and is not checked
// against the template store; a dangling id means free-text results.
type LabService struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Price       float64   `json:"price" yaml:"price"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	TemplateID  string    `json:"template_id,omitempty" yaml:"template_id,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

func NewServiceID() string { return "SRV-" + strings.ToUpper(uuid.New().String()[:8]) }

func (s *LabService) normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.TemplateID = strings.TrimSpace(s.TemplateID)
}

func (s *LabService) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if s.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalid)
	}
	return nil
}
