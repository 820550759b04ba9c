package entities

import (
	"github.com/google/uuid"
	"time"
)

// CreditEntry is one recorded debit. The (user_id, reason, ref_id) triple is
// the idempotency key: a retried spend for the same render inserts nothing.
type CreditEntry struct {
	Id        uuid.UUID `json:"id" gorm:"column:id;primaryKey"`
	UserId    string    `json:"user_id" gorm:"column:user_id;uniqueIndex:idx_credit_entries_key"`
	Reason    string    `json:"reason" gorm:"column:reason;uniqueIndex:idx_credit_entries_key"`
	RefId     string    `json:"ref_id" gorm:"column:ref_id;uniqueIndex:idx_credit_entries_key"`
	Amount    int64     `json:"amount" gorm:"column:amount"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (CreditEntry) TableName() string {
	return "credit_entries"
}

type CreditBalance struct {
	UserId  string `json:"user_id" gorm:"column:user_id;primaryKey"`
	Balance int64  `json:"balance" gorm:"column:balance"`
}

func (CreditBalance) TableName() string {
	return "credit_balances"
}
