package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/verilink/commerce-auth/internal/domain"
	"github.com/verilink/commerce-auth/internal/ports"
)

const (
	// eventTypeEmailRequested asks the notification service to send a templated email.
	eventTypeEmailRequested = "notification.email.requested"
	// eventTypeVendorRegistered asks the vendor service to open a business record.
	eventTypeVendorRegistered = "vendor.registered"

	vendorStatusPending = "pending"
)

type codePurpose string

const (
	purposeEmailVerification codePurpose = "email_verification"
	purposePasswordReset     codePurpose = "password_reset"
)

type emailRequestedPayload struct {
	EventID    uuid.UUID `json:"event_id"`
	AccountID  uuid.UUID `json:"account_id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name,omitempty"`
	Template   string    `json:"template"`
	Code       string    `json:"code"`
	ExpiresAt  time.Time `json:"expires_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// codeDelivery hands a one-time code to its recipient. With LogCodes on the
// code is logged and nothing is queued; otherwise an email request is
// returned for the caller to store in the outbox with the account change.
func (s *Service) codeDelivery(ctx context.Context, account domain.Account, purpose codePurpose, code domain.OneTimeCode, now time.Time) ([]ports.OutboxEvent, error) {
	if s.cfg.LogCodes {
		s.logger.InfoContext(ctx, "one-time code issued",
			"operation", string(purpose),
			"outcome", "success",
			"account_id", account.ID,
			"email", account.Email,
			"code", code.Code,
			"expires_at", code.ExpiresAt,
		)
		return nil, nil
	}

	eventID := uuid.New()
	payload, err := json.Marshal(emailRequestedPayload{
		EventID:    eventID,
		AccountID:  account.ID,
		Email:      account.Email,
		FirstName:  account.FirstName,
		Template:   string(purpose),
		Code:       code.Code,
		ExpiresAt:  code.ExpiresAt,
		OccurredAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s email: %w", purpose, err)
	}
	return []ports.OutboxEvent{{
		EventID:      eventID,
		EventType:    eventTypeEmailRequested,
		PartitionKey: account.ID.String(),
		Payload:      payload,
		OccurredAt:   now,
	}}, nil
}

type vendorRegisteredPayload struct {
	EventID      uuid.UUID `json:"event_id"`
	VendorID     uuid.UUID `json:"vendor_id"`
	AccountID    uuid.UUID `json:"account_id"`
	Email        string    `json:"email"`
	ContactName  string    `json:"contact_name,omitempty"`
	BusinessName string    `json:"business_name"`
	BusinessType string    `json:"business_type,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// vendorRegisteredEvent is queued whatever LogCodes says: the vendor record
// is created downstream, not here.
func vendorRegisteredEvent(account domain.Account, vendor VendorSummary, now time.Time) (ports.OutboxEvent, error) {
	eventID := uuid.New()
	payload, err := json.Marshal(vendorRegisteredPayload{
		EventID:      eventID,
		VendorID:     vendor.ID,
		AccountID:    account.ID,
		Email:        account.Email,
		ContactName:  trimName(account.FirstName + " " + account.LastName),
		BusinessName: vendor.BusinessName,
		BusinessType: vendor.BusinessType,
		OccurredAt:   now,
	})
	if err != nil {
		return ports.OutboxEvent{}, fmt.Errorf("encode vendor registration: %w", err)
	}
	return ports.OutboxEvent{
		EventID:      eventID,
		EventType:    eventTypeVendorRegistered,
		PartitionKey: account.ID.String(),
		Payload:      payload,
		OccurredAt:   now,
	}, nil
}
