package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"worker-render/entities"
)

type postgresLedger struct {
	db *gorm.DB
}

func NewPostgresLedger(db *sql.DB) (CreditLedger, error) {
	gormDB, err := openGorm(db)
	if err != nil {
		return nil, err
	}
	return &postgresLedger{db: gormDB}, nil
}

// Spend debits amount from the user's balance inside one transaction. An
// existing entry for (userId, reason, refId) short-circuits the debit and
// returns the balance unchanged, which is what makes render retries safe.
func (l *postgresLedger) Spend(ctx context.Context, userId string, amount int64, reason, refId string) (int64, error) {
	var balance int64
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing := &entities.CreditEntry{}
		err := tx.First(existing, "user_id = ? AND reason = ? AND ref_id = ?", userId, reason, refId).Error
		if err == nil {
			row := &entities.CreditBalance{}
			if err := tx.First(row, "user_id = ?", userId).Error; err != nil {
				return err
			}
			balance = row.Balance
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		row := &entities.CreditBalance{}
		if err := tx.First(row, "user_id = ?", userId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInsufficientBalance
			}
			return err
		}
		if row.Balance < amount {
			return ErrInsufficientBalance
		}

		entry := &entities.CreditEntry{
			Id:        uuid.New(),
			UserId:    userId,
			Reason:    reason,
			RefId:     refId,
			Amount:    amount,
			CreatedAt: time.Now(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		row.Balance -= amount
		if err := tx.Save(row).Error; err != nil {
			return err
		}
		balance = row.Balance
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return balance, nil
}

func (l *postgresLedger) Balance(ctx context.Context, userId string) (int64, error) {
	row := &entities.CreditBalance{}
	err := l.db.WithContext(ctx).First(row, "user_id = ?", userId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return row.Balance, nil
}

// memoryLedger mirrors the postgres ledger semantics for tests and for the
// in-process fallback deployment.
type memoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	entries  map[string]int64
}

func NewMemoryLedger(balances map[string]int64) CreditLedger {
	if balances == nil {
		balances = make(map[string]int64)
	}
	return &memoryLedger{balances: balances, entries: make(map[string]int64)}
}

func (l *memoryLedger) Spend(ctx context.Context, userId string, amount int64, reason, refId string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := userId + "|" + reason + "|" + refId
	if _, ok := l.entries[key]; ok {
		return l.balances[userId], nil
	}
	if l.balances[userId] < amount {
		return 0, ErrInsufficientBalance
	}
	l.entries[key] = amount
	l.balances[userId] -= amount
	return l.balances[userId], nil
}

func (l *memoryLedger) Balance(ctx context.Context, userId string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userId], nil
}
