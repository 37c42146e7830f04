package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/verilink/commerce-auth/internal/domain"
	"github.com/verilink/commerce-auth/internal/ports"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newRepoWithMock(t *testing.T) (*accountRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	return &accountRepository{db: db}, mock
}

func TestAccountRepositoryGetByEmailNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE \(?email = \$1 AND deleted_at IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}))

	_, err := repo.GetByEmail(context.Background(), "missing@example.com")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryGetByEmailMapsRow(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	id := uuid.New()
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"account_id", "email", "password_hash", "first_name", "last_name", "roles", "status",
		"email_verified", "verification_code", "verification_expires_at", "reset_code",
		"failed_attempt_count", "password_changed_at", "created_at", "updated_at",
	}).AddRow(
		id.String(), "alice@example.com", "hash", "Alice", "Smith", `["customer","vendor"]`, "pending_verification",
		false, "4821", now.Add(10*time.Minute), nil,
		2, now, now, now,
	)
	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE \(?email = \$1 AND deleted_at IS NULL`).
		WillReturnRows(rows)

	got, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, id, got.ID)
	require.Equal(t, []domain.Role{domain.RoleCustomer, domain.RoleVendor}, got.Roles)
	require.Equal(t, domain.StatusPendingVerification, got.Status)
	require.NotNil(t, got.EmailVerification)
	require.Equal(t, "4821", got.EmailVerification.Code)
	require.Nil(t, got.PasswordReset)
	require.Equal(t, 2, got.FailedAttemptCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryCreateDuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "accounts"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	now := time.Now().UTC()
	err := repo.Create(context.Background(), domain.Account{
		ID:                uuid.New(),
		Email:             "alice@example.com",
		PasswordHash:      "hash",
		Roles:             []domain.Role{domain.RoleCustomer},
		Status:            domain.StatusPendingVerification,
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	require.ErrorIs(t, err, domain.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryUpdateLocksRow(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT \* FROM "accounts" WHERE \(?account_id = \$1 AND deleted_at IS NULL.*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}))
	mock.ExpectRollback()

	called := false
	_, err := repo.Update(context.Background(), uuid.New(), func(*domain.Account) ([]ports.OutboxEvent, error) {
		called = true
		return nil, nil
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.False(t, called, "mutation must not run for a missing account")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOneTimeCodeColumnsRoundTrip(t *testing.T) {
	t.Parallel()

	expires := time.Date(2026, 2, 1, 9, 10, 0, 0, time.UTC)
	code, at := fromOneTimeCode(&domain.OneTimeCode{Code: "1234", ExpiresAt: expires})
	require.Equal(t, &domain.OneTimeCode{Code: "1234", ExpiresAt: expires}, toOneTimeCode(code, at))

	code, at = fromOneTimeCode(nil)
	require.Nil(t, code)
	require.Nil(t, at)
	require.Nil(t, toOneTimeCode(code, &expires), "half a pair never yields a code")
}
