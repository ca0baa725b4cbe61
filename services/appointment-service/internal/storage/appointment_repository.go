package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

// ActiveSlotIndex is the partial unique index that keeps one active appointment per provider slot.
const ActiveSlotIndex = "appointments_provider_slot_active"

var pg = goqu.Dialect("postgres")

type AppointmentRepository struct {
	q querier
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{q: pool}
}

func newAppointmentRepositoryWithQuerier(q querier) *AppointmentRepository {
	return &AppointmentRepository{q: q}
}

func (r *AppointmentRepository) Create(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	err := r.q.QueryRow(ctx, `
		INSERT INTO appointments (client_id, provider_id, scheduled_at, slot_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, a.ClientID, a.ProviderID, a.ScheduledAt, a.Slot()).Scan(&a.ID, &a.CreatedAt)
	if db.IsUniqueViolation(err, ActiveSlotIndex) {
		return model.Appointment{}, model.ErrSlotTaken
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	return a, nil
}

func (r *AppointmentRepository) ExistsActiveInSlot(ctx context.Context, providerID int64, slot time.Time) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider_id = $1 AND slot_at = $2 AND canceled_at IS NULL
		)
	`, providerID, slot).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return exists, nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (model.Appointment, error) {
	var (
		a        model.Appointment
		provider model.UserSummary
		client   model.UserSummary
	)
	err := r.q.QueryRow(ctx, `
		SELECT a.id, a.client_id, a.provider_id, a.scheduled_at, a.canceled_at, a.created_at,
			p.name, p.email, c.name, c.email
		FROM appointments a
		JOIN users p ON p.id = a.provider_id
		JOIN users c ON c.id = a.client_id
		WHERE a.id = $1
	`, id).Scan(
		&a.ID,
		&a.ClientID,
		&a.ProviderID,
		&a.ScheduledAt,
		&a.CanceledAt,
		&a.CreatedAt,
		&provider.Name,
		&provider.Email,
		&client.Name,
		&client.Email,
	)
	if db.IsNotFound(err) {
		return model.Appointment{}, model.ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("get appointment %d: %w", id, err)
	}
	provider.ID = a.ProviderID
	client.ID = a.ClientID
	a.Provider = &provider
	a.Client = &client
	return a, nil
}

func (r *AppointmentRepository) Cancel(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE appointments
		SET canceled_at = $2
		WHERE id = $1 AND canceled_at IS NULL
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("cancel appointment %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByClient returns active appointments of the client with the provider and avatar loaded.
func (r *AppointmentRepository) ListByClient(ctx context.Context, clientID int64, limit, offset int) ([]model.Appointment, error) {
	query, args, err := pg.From(goqu.T("appointments").As("a")).
		Join(goqu.T("users").As("p"), goqu.On(goqu.I("p.id").Eq(goqu.I("a.provider_id")))).
		LeftJoin(goqu.T("files").As("f"), goqu.On(goqu.I("f.id").Eq(goqu.I("p.avatar_id")))).
		Select(
			"a.id", "a.client_id", "a.provider_id", "a.scheduled_at", "a.canceled_at", "a.created_at",
			"p.name", "p.email", "f.id", "f.name", "f.path",
		).
		Where(goqu.Ex{"a.client_id": clientID, "a.canceled_at": nil}).
		Order(goqu.I("a.scheduled_at").Asc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var (
			a        model.Appointment
			provider model.UserSummary
			fileID   *int64
			fileName *string
			filePath *string
		)
		if err := rows.Scan(
			&a.ID, &a.ClientID, &a.ProviderID, &a.ScheduledAt, &a.CanceledAt, &a.CreatedAt,
			&provider.Name, &provider.Email, &fileID, &fileName, &filePath,
		); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		provider.ID = a.ProviderID
		provider.Avatar = fileFromColumns(fileID, fileName, filePath)
		a.Provider = &provider
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListByProviderBetween returns the provider's active appointments with slot_at in [from, to),
// with the client summary loaded.
func (r *AppointmentRepository) ListByProviderBetween(ctx context.Context, providerID int64, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT a.id, a.client_id, a.provider_id, a.scheduled_at, a.canceled_at, a.created_at,
			c.name, c.email
		FROM appointments a
		JOIN users c ON c.id = a.client_id
		WHERE a.provider_id = $1
			AND a.canceled_at IS NULL
			AND a.slot_at >= $2
			AND a.slot_at < $3
		ORDER BY a.scheduled_at ASC
	`, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list provider appointments: %w", err)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var (
			a      model.Appointment
			client model.UserSummary
		)
		if err := rows.Scan(
			&a.ID, &a.ClientID, &a.ProviderID, &a.ScheduledAt, &a.CanceledAt, &a.CreatedAt,
			&client.Name, &client.Email,
		); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		client.ID = a.ClientID
		a.Client = &client
		out = append(out, a)
	}
	return out, rows.Err()
}

func fileFromColumns(id *int64, name, path *string) *model.File {
	if id == nil {
		return nil
	}
	f := &model.File{ID: *id}
	if name != nil {
		f.Name = *name
	}
	if path != nil {
		f.Path = *path
	}
	return f
}
