package postgres

import (
	"time"

	"github.com/google/uuid"
)

type accountModel struct {
	AccountID              uuid.UUID  `gorm:"column:account_id;type:uuid;primaryKey"`
	Email                  string     `gorm:"column:email"`
	PasswordHash           string     `gorm:"column:password_hash"`
	FirstName              string     `gorm:"column:first_name"`
	LastName               string     `gorm:"column:last_name"`
	Phone                  *string    `gorm:"column:phone"`
	Roles                  string     `gorm:"column:roles;type:jsonb"`
	Status                 string     `gorm:"column:status"`
	VendorID               *uuid.UUID `gorm:"column:vendor_id;type:uuid"`
	EmailVerified          bool       `gorm:"column:email_verified"`
	VerificationCode       *string    `gorm:"column:verification_code"`
	VerificationExpiresAt  *time.Time `gorm:"column:verification_expires_at"`
	LastVerificationSentAt *time.Time `gorm:"column:last_verification_sent_at"`
	ResetCode              *string    `gorm:"column:reset_code"`
	ResetExpiresAt         *time.Time `gorm:"column:reset_expires_at"`
	FailedAttemptCount     int        `gorm:"column:failed_attempt_count"`
	LockedUntil            *time.Time `gorm:"column:locked_until"`
	PasswordChangedAt      time.Time  `gorm:"column:password_changed_at"`
	LastLoginAt            *time.Time `gorm:"column:last_login_at"`
	LastLoginIP            *string    `gorm:"column:last_login_ip"`
	CreatedAt              time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt              time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
	DeletedAt              *time.Time `gorm:"column:deleted_at"`
}

func (accountModel) TableName() string { return "accounts" }

type outboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "notification_outbox" }
