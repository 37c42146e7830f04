package postgres

import (
	"github.com/verilink/commerce-auth/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Accounts ports.AccountRepository
	Outbox   ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Accounts: &accountRepository{db: db},
		Outbox:   &outboxRepository{db: db},
	}
}
