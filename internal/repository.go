// Package internal holds the interfaces shared across the tap's packages.
package internal

import (
	"context"
	"io"
)

// Repository stores archive objects under a key relative to its own root.
type Repository interface {
	Write(ctx context.Context, key string, reader io.Reader) error
}
