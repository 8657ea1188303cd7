package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/khojghar/khojghar-api/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn}, nil
}

func (n *NATSPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "publishing event", "subject", subject)

	return n.conn.Publish(subject, payload)
}

func (n *NATSPublisher) Close() error {
	n.conn.Close()
	return nil
}

// NopPublisher is used when NATS_URL is unset; event publishing is
// best-effort everywhere.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                       { return nil }

// Event subjects
const (
	AccountRegistered = "account.registered"
	AccountVerified   = "account.verified"

	ListingCreated      = "listing.created"
	ListingUpdated      = "listing.updated"
	ListingDeleted      = "listing.deleted"
	ListingPriceChanged = "listing.price.changed"
	ListingStatusSet    = "listing.status.set"
)

// Event payloads
type AccountRegisteredEvent struct {
	AccountID    string    `json:"account_id"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

type AccountVerifiedEvent struct {
	AccountID  string    `json:"account_id"`
	Email      string    `json:"email"`
	VerifiedAt time.Time `json:"verified_at"`
}

type ListingCreatedEvent struct {
	ListingID string    `json:"listing_id"`
	OwnerID   string    `json:"owner_id"`
	City      string    `json:"city"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

type ListingUpdatedEvent struct {
	ListingID string    `json:"listing_id"`
	OwnerID   string    `json:"owner_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListingDeletedEvent struct {
	ListingID string    `json:"listing_id"`
	OwnerID   string    `json:"owner_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

type ListingPriceChangedEvent struct {
	ListingID string    `json:"listing_id"`
	OwnerID   string    `json:"owner_id"`
	Price     float64   `json:"price"`
	ChangedAt time.Time `json:"changed_at"`
}

type ListingStatusSetEvent struct {
	ListingID string    `json:"listing_id"`
	OwnerID   string    `json:"owner_id"`
	Status    string    `json:"status"`
	SetAt     time.Time `json:"set_at"`
}
