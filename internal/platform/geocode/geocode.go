package geocode

import (
	"context"

	"github.com/khojghar/khojghar-api/internal/domain"
)

// Suggestion is one labeled candidate for address autocomplete.
type Suggestion struct {
	ID    int64   `json:"id"`
	Label string  `json:"label"`
	City  string  `json:"city,omitempty"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// Geocoder resolves free-text addresses against an external provider.
// Forward is best-effort: any failure yields nil and must never block
// the caller's own operation.
type Geocoder interface {
	Forward(ctx context.Context, address, city string) *domain.Location
	Search(ctx context.Context, q, city string) ([]Suggestion, error)
}
