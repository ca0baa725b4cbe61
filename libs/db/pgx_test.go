package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert appointment: %w", &pgconn.PgError{Code: "23505", ConstraintName: "appointments_provider_slot_active"})

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "appointments_provider_slot_active"))
	assert.False(t, IsUniqueViolation(err, "users_email_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23P01"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("get user: %w", pgx.ErrNoRows)))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestReadyCheckWithoutPool(t *testing.T) {
	err := ReadyCheck(nil)(t.Context())
	assert.EqualError(t, err, "db not configured")
}
