package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/verilink/commerce-auth/internal/domain"
	"github.com/verilink/commerce-auth/internal/ports"
	"gorm.io/gorm"
)

func toDomainAccount(row accountModel) (domain.Account, error) {
	var roleNames []string
	if row.Roles != "" {
		if err := json.Unmarshal([]byte(row.Roles), &roleNames); err != nil {
			return domain.Account{}, fmt.Errorf("decode roles for %s: %w", row.AccountID, err)
		}
	}
	roles := make([]domain.Role, 0, len(roleNames))
	for _, name := range roleNames {
		roles = append(roles, domain.Role(name))
	}

	return domain.Account{
		ID:                     row.AccountID,
		Email:                  row.Email,
		PasswordHash:           row.PasswordHash,
		FirstName:              row.FirstName,
		LastName:               row.LastName,
		Phone:                  derefString(row.Phone),
		Roles:                  roles,
		Status:                 domain.AccountStatus(row.Status),
		VendorID:               row.VendorID,
		EmailVerified:          row.EmailVerified,
		EmailVerification:      toOneTimeCode(row.VerificationCode, row.VerificationExpiresAt),
		LastVerificationSentAt: row.LastVerificationSentAt,
		PasswordReset:          toOneTimeCode(row.ResetCode, row.ResetExpiresAt),
		FailedAttemptCount:     row.FailedAttemptCount,
		LockedUntil:            row.LockedUntil,
		PasswordChangedAt:      row.PasswordChangedAt,
		LastLoginAt:            row.LastLoginAt,
		LastLoginIP:            derefString(row.LastLoginIP),
		CreatedAt:              row.CreatedAt,
		UpdatedAt:              row.UpdatedAt,
		DeletedAt:              row.DeletedAt,
	}, nil
}

func toAccountModel(a domain.Account) (accountModel, error) {
	roles, err := json.Marshal(a.RoleNames())
	if err != nil {
		return accountModel{}, fmt.Errorf("encode roles: %w", err)
	}
	row := accountModel{
		AccountID:              a.ID,
		Email:                  a.Email,
		PasswordHash:           a.PasswordHash,
		FirstName:              a.FirstName,
		LastName:               a.LastName,
		Phone:                  nullableString(a.Phone),
		Roles:                  string(roles),
		Status:                 string(a.Status),
		VendorID:               a.VendorID,
		EmailVerified:          a.EmailVerified,
		LastVerificationSentAt: a.LastVerificationSentAt,
		FailedAttemptCount:     a.FailedAttemptCount,
		LockedUntil:            a.LockedUntil,
		PasswordChangedAt:      a.PasswordChangedAt,
		LastLoginAt:            a.LastLoginAt,
		LastLoginIP:            nullableString(a.LastLoginIP),
		CreatedAt:              a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
		DeletedAt:              a.DeletedAt,
	}
	row.VerificationCode, row.VerificationExpiresAt = fromOneTimeCode(a.EmailVerification)
	row.ResetCode, row.ResetExpiresAt = fromOneTimeCode(a.PasswordReset)
	return row, nil
}

// toOneTimeCode only yields a code when both columns are present.
func toOneTimeCode(code *string, expiresAt *time.Time) *domain.OneTimeCode {
	if code == nil || expiresAt == nil || *code == "" {
		return nil
	}
	return &domain.OneTimeCode{Code: *code, ExpiresAt: *expiresAt}
}

func fromOneTimeCode(c *domain.OneTimeCode) (*string, *time.Time) {
	if c == nil {
		return nil, nil
	}
	code := c.Code
	expiresAt := c.ExpiresAt
	return &code, &expiresAt
}

func toOutboxModel(event ports.OutboxEvent) outboxModel {
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	return outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(payload),
		CreatedAt:    event.OccurredAt,
	}
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
