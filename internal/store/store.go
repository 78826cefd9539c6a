// Package store persists job and project records as JSON documents grouped
// in collections.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Record is one JSON document.
type Record struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Store is the record-store collaborator.
type Store interface {
	Create(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	Delete(ctx context.Context, collection, id string) error
	GetOne(ctx context.Context, collection, id string) (Record, error)
	// GetFullList returns every record of a collection, oldest first.
	GetFullList(ctx context.Context, collection string) ([]Record, error)
}
