// Package children stores child profiles owned by a parent account.
// The speech pipeline resolves profiles read-only; the HTTP surface
// exposes parent-scoped CRUD.
package children

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a profile does not exist or does not belong
// to the requesting parent. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("child profile not found")

// ErrInvalid wraps every validation failure so callers can map it to a
// client error with errors.Is without re-validating.
var ErrInvalid = errors.New("invalid child profile")

// Profile is one child known to a parent account.
type Profile struct {
	ID               string    `json:"id"`
	ParentID         string    `json:"-"`
	Name             string    `json:"name"`
	Age              int       `json:"age"`
	Gender           string    `json:"gender,omitempty"`
	PhoneticSpelling string    `json:"phoneticSpelling,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// SpokenName returns the name Santa should say aloud: the phonetic spelling
// when present, otherwise the display name.
func (p *Profile) SpokenName() string {
	if p.PhoneticSpelling != "" {
		return p.PhoneticSpelling
	}
	return p.Name
}

// Validate checks the fields a profile needs before it can be stored.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalid)
	}
	if p.Age < 0 || p.Age > 18 {
		return fmt.Errorf("%w: age %d out of range", ErrInvalid, p.Age)
	}
	return nil
}

// Store is the profile persistence interface. All operations are scoped to
// a parent: a profile owned by another parent behaves as if it did not exist.
type Store interface {
	Create(ctx context.Context, p *Profile) error
	Get(ctx context.Context, parentID, id string) (*Profile, error)
	List(ctx context.Context, parentID string) ([]Profile, error)
	Update(ctx context.Context, p *Profile) error
	Delete(ctx context.Context, parentID, id string) error
}
