// Package store persists completed ad creatives.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/harsh7800/adofly/internal/creative"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("store: creative not found")

// Record is a creative saved for the user whose run produced it.
type Record struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	Request   creative.AdRequest  `json:"request"`
	Creative  creative.AdCreative `json:"creative"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Store saves and lists creatives.
type Store interface {
	// Save inserts rec, replacing any record with the same id.
	Save(ctx context.Context, rec Record) error

	// Get returns the record with the given id.
	Get(ctx context.Context, id string) (*Record, error)

	// ListByUser returns the user's records, newest first. limit <= 0
	// returns all of them.
	ListByUser(ctx context.Context, userID string, limit int) ([]Record, error)
}

func cloneRecord(r Record) Record {
	r.Request = r.Request.Clone()
	c := r.Creative
	c.USPs = append([]string(nil), c.USPs...)
	c.AdCopy.CallToActions = append([]string(nil), c.AdCopy.CallToActions...)
	c.TargetAudience.Genders = append([]string(nil), c.TargetAudience.Genders...)
	c.TargetAudience.Locations = append([]string(nil), c.TargetAudience.Locations...)
	c.TargetAudience.Interests = append([]string(nil), c.TargetAudience.Interests...)
	r.Creative = c
	return r
}
