package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const Namespace = "inventory"

var (
	ErrNotFound = errors.New("inventory item not found")
	ErrInvalid  = errors.New("invalid inventory item")
)

// Item is a consumable tracked by count. It is low on stock once Quantity
// drops to ReorderLevel or below.
type Item struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Quantity     int       `json:"quantity"`
	ReorderLevel int       `json:"reorder_level"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewItemID() string { return "ITM-" + strings.ToUpper(uuid.New().String()[:8]) }

func (i *Item) LowStock() bool { return i.Quantity <= i.ReorderLevel }

func (i *Item) Validate() error {
	i.Name = strings.TrimSpace(i.Name)
	switch {
	case i.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case i.Quantity < 0:
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalid)
	case i.ReorderLevel < 0:
		return fmt.Errorf("%w: reorder_level must not be negative", ErrInvalid)
	}
	return nil
}
