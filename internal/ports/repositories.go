package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/verilink/commerce-auth/internal/domain"
)

// AccountMutation edits an account loaded under a row lock. Returned events are
// written to the outbox in the same transaction; a returned error rolls back.
type AccountMutation func(account *domain.Account) ([]OutboxEvent, error)

// AccountRepository is the credential store.
// Reads exclude soft-deleted accounts and report domain.ErrNotFound on a miss.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account, events ...OutboxEvent) error
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByID(ctx context.Context, accountID uuid.UUID) (domain.Account, error)
	Update(ctx context.Context, accountID uuid.UUID, mutate AccountMutation) (domain.Account, error)
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for queued events.
type OutboxRepository interface {
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
