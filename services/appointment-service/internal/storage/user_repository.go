package storage

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

type UserRepository struct {
	q querier
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{q: pool}
}

func newUserRepositoryWithQuerier(q querier) *UserRepository {
	return &UserRepository{q: q}
}

// Create returns model.ErrDuplicate when the email is already registered.
func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	err := r.q.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, provider)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, u.Name, u.Email, u.PasswordHash, u.Provider).Scan(&u.ID, &u.CreatedAt)
	if db.IsUniqueViolation(err, "") {
		return model.User{}, model.ErrDuplicate
	}
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (model.User, error) {
	return r.getOne(ctx, `
		SELECT id, name, email, password_hash, provider, avatar_id, created_at
		FROM users
		WHERE id = $1
	`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, `
		SELECT id, name, email, password_hash, provider, avatar_id, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (model.User, error) {
	var u model.User
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Provider, &u.AvatarID, &u.CreatedAt,
	)
	if db.IsNotFound(err) {
		return model.User{}, model.ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListProviders returns every provider with its avatar, ordered by name.
func (r *UserRepository) ListProviders(ctx context.Context) ([]model.UserSummary, error) {
	rows, err := r.q.Query(ctx, `
		SELECT u.id, u.name, u.email, f.id, f.name, f.path
		FROM users u
		LEFT JOIN files f ON f.id = u.avatar_id
		WHERE u.provider = true
		ORDER BY u.name ASC, u.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var out []model.UserSummary
	for rows.Next() {
		var (
			s        model.UserSummary
			fileID   *int64
			fileName *string
			filePath *string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &fileID, &fileName, &filePath); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		s.Avatar = fileFromColumns(fileID, fileName, filePath)
		out = append(out, s)
	}
	return out, rows.Err()
}
