// Package notifications persists the in-app notices providers receive on new bookings.
package notifications

import (
	"context"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

// ListLimit caps how many notices the read API returns.
const ListLimit = 20

// Store is append-only from the scheduling side; reads serve the notifications endpoint.
type Store interface {
	Create(ctx context.Context, n model.Notification) (model.Notification, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.Notification, error)
}
