package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/verilink/commerce-auth/internal/domain"
	"github.com/verilink/commerce-auth/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type accountRepository struct {
	db *gorm.DB
}

func (r *accountRepository) Create(ctx context.Context, account domain.Account, events ...ports.OutboxEvent) error {
	rec, err := toAccountModel(account)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		return insertOutbox(tx, events)
	})
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	var rec accountModel
	if err := r.db.WithContext(ctx).
		Where("email = ? AND deleted_at IS NULL", email).
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, err
	}
	return toDomainAccount(rec)
}

func (r *accountRepository) GetByID(ctx context.Context, accountID uuid.UUID) (domain.Account, error) {
	var rec accountModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND deleted_at IS NULL", accountID).
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, err
	}
	return toDomainAccount(rec)
}

// Update runs mutate against a row locked with SELECT ... FOR UPDATE, so concurrent
// writers to the same account serialize instead of losing increments.
func (r *accountRepository) Update(ctx context.Context, accountID uuid.UUID, mutate ports.AccountMutation) (domain.Account, error) {
	var result domain.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec accountModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ? AND deleted_at IS NULL", accountID).
			Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		account, err := toDomainAccount(rec)
		if err != nil {
			return err
		}
		events, err := mutate(&account)
		if err != nil {
			return err
		}

		updated, err := toAccountModel(account)
		if err != nil {
			return err
		}
		updated.AccountID = rec.AccountID
		if err := tx.Save(&updated).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		if err := insertOutbox(tx, events); err != nil {
			return err
		}
		result = account
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return result, nil
}

func insertOutbox(tx *gorm.DB, events []ports.OutboxEvent) error {
	for _, event := range events {
		rec := toOutboxModel(event)
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
	}
	return nil
}
