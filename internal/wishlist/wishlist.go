// Package wishlist stores gift requests attached to a child profile.
// Items accumulate per child; parents read the list back from the
// dashboard, so ownership checks happen at the HTTP layer against the
// child profile before any wishlist operation runs.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalid wraps every validation failure so callers can map it to a
// client error with errors.Is.
var ErrInvalid = errors.New("invalid wishlist item")

// Item is one requested gift on a child's list.
type Item struct {
	ID        string    `json:"id"`
	ChildID   string    `json:"-"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the fields an item needs before it can be stored.
// A zero quantity is allowed; Add treats it as one.
func (it *Item) Validate() error {
	if strings.TrimSpace(it.Name) == "" {
		return fmt.Errorf("%w: gift name must not be empty", ErrInvalid)
	}
	if it.Quantity < 0 {
		return fmt.Errorf("%w: quantity %d must not be negative", ErrInvalid, it.Quantity)
	}
	return nil
}

// Store is the wishlist persistence interface. Operations are keyed by
// child ID only; the caller verifies the child belongs to the parent.
type Store interface {
	// Add appends items to the child's list and returns them with IDs
	// and timestamps assigned. Nothing is written when any item fails
	// validation.
	Add(ctx context.Context, childID string, items []Item) ([]Item, error)
	// List returns the child's items, oldest first. An empty list is
	// not an error.
	List(ctx context.Context, childID string) ([]Item, error)
}
