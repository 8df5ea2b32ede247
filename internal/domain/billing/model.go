// Package billing issues invoices for lab services. Creating an invoice also
// creates one pending result per billed service.
package billing

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const Namespace = "invoices"

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type BillingType string

const (
	BillingParticular BillingType = "particular"
	BillingDependency BillingType = "dependency"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// PurgeScope selects which records a purge removes.
type PurgeScope string

const (
	PurgeCompleted PurgeScope = "completed"
	PurgeAll       PurgeScope = "all"
)

var (
	ErrNotFound        = errors.New("invoice not found")
	ErrInvalid         = errors.New("invalid invoice")
	ErrNoServices      = errors.New("invoice has no billable services")
	ErrPatientNotFound = errors.New("patient not found")
	ErrInvalidScope    = errors.New("purge scope must be completed or all")
)

// Line is a billed service. Name and price are copied at billing time so
// later catalog edits do not change issued invoices.
type Line struct {
	ServiceID   string  `json:"service_id"`
	ServiceName string  `json:"service_name"`
	Price       float64 `json:"price"`
}

type Invoice struct {
	ID            string       `json:"id"`
	PatientID     string       `json:"patient_id"`
	Lines         []Line       `json:"services"`
	Subtotal      float64      `json:"subtotal"`
	DiscountValue float64      `json:"discount_value"`
	DiscountType  DiscountType `json:"discount_type"`
	Total         float64      `json:"total"`
	BillingType   BillingType  `json:"billing_type"`
	// ShowPrices is nil on invoices that never chose; printing then decides.
	ShowPrices *bool      `json:"show_prices,omitempty"`
	Status     Status     `json:"status"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DiscountAmount is what the discount took off the subtotal.
func (inv *Invoice) DiscountAmount() float64 {
	return inv.Subtotal - inv.Total
}

func NewInvoiceID() string { return "INV-" + strings.ToUpper(uuid.New().String()[:8]) }

// ApplyDiscount returns the total after discount. Percentages scale the
// subtotal; fixed amounts are subtracted and the total never goes below 0.
func ApplyDiscount(subtotal, value float64, typ DiscountType) float64 {
	if value <= 0 {
		return subtotal
	}
	if typ == DiscountPercentage {
		return subtotal * (1 - value/100)
	}
	return math.Max(0, subtotal-value)
}

// CreateRequest is the input of CreateInvoice.
type CreateRequest struct {
	PatientID     string       `json:"patient_id"`
	ServiceIDs    []string     `json:"service_ids"`
	DiscountValue float64      `json:"discount_value"`
	DiscountType  DiscountType `json:"discount_type"`
	BillingType   BillingType  `json:"billing_type"`
	ShowPrices    *bool        `json:"show_prices"`
}

func (r *CreateRequest) normalize() {
	r.PatientID = strings.TrimSpace(r.PatientID)
	if r.DiscountType == "" {
		r.DiscountType = DiscountPercentage
	}
	if r.BillingType == "" {
		r.BillingType = BillingParticular
	}
}

func (r *CreateRequest) Validate() error {
	switch {
	case r.PatientID == "":
		return fmt.Errorf("%w: patient_id is required", ErrInvalid)
	case len(r.ServiceIDs) == 0:
		return ErrNoServices
	case r.DiscountType != DiscountPercentage && r.DiscountType != DiscountFixed:
		return fmt.Errorf("%w: discount_type must be percentage or fixed", ErrInvalid)
	case r.BillingType != BillingParticular && r.BillingType != BillingDependency:
		return fmt.Errorf("%w: billing_type must be particular or dependency", ErrInvalid)
	case r.DiscountValue < 0:
		return fmt.Errorf("%w: discount_value must not be negative", ErrInvalid)
	case r.DiscountType == DiscountPercentage && r.DiscountValue > 100:
		return fmt.Errorf("%w: percentage discount cannot exceed 100", ErrInvalid)
	}
	return nil
}
