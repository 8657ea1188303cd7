package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Listing struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID      primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	Title        string             `bson:"title" json:"title"`
	Description  string             `bson:"description" json:"description"`
	Price        float64            `bson:"price" json:"price"`
	PriceHistory []PricePoint       `bson:"priceHistory" json:"priceHistory"`
	Beds         int                `bson:"beds" json:"beds"`
	Baths        int                `bson:"baths" json:"baths"`
	Sqft         float64            `bson:"sqft,omitempty" json:"sqft,omitempty"`
	Address      string             `bson:"address" json:"address"`
	City         string             `bson:"city" json:"city"`
	Location     *Location          `bson:"location,omitempty" json:"location,omitempty"`
	Furnished    bool               `bson:"furnished" json:"furnished"`
	Internet     bool               `bson:"internet" json:"internet"`
	Parking      bool               `bson:"parking" json:"parking"`
	PetsAllowed  bool               `bson:"petsAllowed" json:"petsAllowed"`
	Images       []string           `bson:"images" json:"images"`
	Video        string             `bson:"video,omitempty" json:"video,omitempty"`
	Status       string             `bson:"status" json:"status"`
	Views        int64              `bson:"views" json:"views"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PricePoint is one entry of the append-only price-change log.
type PricePoint struct {
	Price     float64   `bson:"price" json:"price"`
	ChangedAt time.Time `bson:"changedAt" json:"changedAt"`
}

type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

const (
	StatusActive      = "active"
	StatusUnavailable = "unavailable"

	DefaultTitle = "Untitled listing"
)

func IsValidStatus(status string) bool {
	return status == StatusActive || status == StatusUnavailable
}

// CreateListingRequest is built from the multipart form; the stable
// required minimum is description, address, city and price. Image URLs
// are filled in by the handler after the media adapter ran.
type CreateListingRequest struct {
	Title       string
	Description string
	Price       float64
	Beds        int
	Baths       int
	Sqft        float64
	Address     string
	City        string
	Furnished   bool
	Internet    bool
	Parking     bool
	PetsAllowed bool
	Images      []string
	Video       string
}

func (r *CreateListingRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		r.Title = DefaultTitle
	}
	r.Description = strings.TrimSpace(r.Description)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.Video = strings.TrimSpace(r.Video)
}

func (r *CreateListingRequest) Validate() error {
	if r.Description == "" || r.Address == "" || r.City == "" {
		return fmt.Errorf("%w: description, address, city and price are required", ErrInvalidInput)
	}
	if !math.IsInf(r.Price, 0) && !math.IsNaN(r.Price) && r.Price > 0 {
		return nil
	}
	return fmt.Errorf("%w: price must be a positive number", ErrInvalidInput)
}

// UpdateListingRequest is a partial update; nil fields are untouched.
// NewImages are appended to the existing image list, never replacing it.
type UpdateListingRequest struct {
	Title       *string
	Description *string
	Price       *float64
	Beds        *int
	Baths       *int
	Sqft        *float64
	Address     *string
	City        *string
	Furnished   *bool
	Internet    *bool
	Parking     *bool
	PetsAllowed *bool
	Video       *string
	NewImages   []string
}

func (r *UpdateListingRequest) Validate() error {
	if r.Price != nil && (math.IsInf(*r.Price, 0) || math.IsNaN(*r.Price) || *r.Price <= 0) {
		return fmt.Errorf("%w: price must be a positive number", ErrInvalidInput)
	}
	return nil
}

// ListQuery captures the public search filters. Nil pointers mean the
// filter is absent.
type ListQuery struct {
	City        string
	MinPrice    *float64
	MaxPrice    *float64
	MinBeds     *int
	MinBaths    *int
	Furnished   bool
	Internet    bool
	Parking     bool
	PetsAllowed bool
	Status      string
	Limit       int
}

const (
	DefaultListLimit = 30
	MaxListLimit     = 100
)

func (q *ListQuery) Normalize() {
	q.City = strings.TrimSpace(q.City)
	if q.Status == "" {
		q.Status = StatusActive
	}
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
}

// ParseNumber parses a form/query value, reporting whether it held a
// finite number.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

// NumberOr parses a form value, falling back when empty or malformed.
func NumberOr(s string, fallback float64) float64 {
	if n, ok := ParseNumber(s); ok {
		return n
	}
	return fallback
}

// ParseFlag coerces the form encodings of true accepted by the API.
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}
