package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"worker-render/entities"
)

type postgresProjects struct {
	db *gorm.DB
}

func NewPostgresProjects(db *sql.DB) (ProjectStore, error) {
	gormDB, err := openGorm(db)
	if err != nil {
		return nil, err
	}
	return &postgresProjects{db: gormDB}, nil
}

func (p *postgresProjects) Exists(ctx context.Context, userId, projectId string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&entities.Project{}).
		Where("user_id = ? AND id = ?", userId, projectId).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

func NewMemoryProjects() *MemoryProjects {
	return &MemoryProjects{ids: make(map[string]bool)}
}

// MemoryProjects backs tests and the in-process fallback.
type MemoryProjects struct {
	mu  sync.RWMutex
	ids map[string]bool
}

func (p *MemoryProjects) Add(userId, projectId string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[userId+"|"+projectId] = true
}

func (p *MemoryProjects) Remove(userId, projectId string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.ids, userId+"|"+projectId)
}

func (p *MemoryProjects) Exists(ctx context.Context, userId, projectId string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ids[userId+"|"+projectId], nil
}
