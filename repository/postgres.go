package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"worker-render/constant"
	"worker-render/entities"
)

// postgresStore is the durable backend. Writes are per-job upserts so
// concurrent updates to different jobs of the same user never race through a
// read-modify-write of the whole list.
type postgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *sql.DB) (JobStore, error) {
	gormDB, err := openGorm(db)
	if err != nil {
		return nil, err
	}
	return &postgresStore{db: gormDB}, nil
}

func openGorm(conn *sql.DB) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: conn}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return gormDB, nil
}

func (s *postgresStore) LoadJobs(ctx context.Context, userId string) ([]*entities.RenderJob, error) {
	var jobs []*entities.RenderJob
	err := s.db.WithContext(ctx).Where("user_id = ?", userId).Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return jobs, nil
}

func (s *postgresStore) GetJob(ctx context.Context, userId, renderId string) (*entities.RenderJob, error) {
	job := &entities.RenderJob{}
	err := s.db.WithContext(ctx).First(job, "user_id = ? AND render_id = ?", userId, renderId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return job, nil
}

func (s *postgresStore) SaveJobs(ctx context.Context, userId string, jobs []*entities.RenderJob) error {
	for _, job := range jobs {
		if err := s.UpsertJob(ctx, userId, job); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) UpsertJob(ctx context.Context, userId string, job *entities.RenderJob) error {
	job.UserId = userId
	// The conflict guard keeps terminal rows immutable even if a stale
	// in-flight update reaches the database after completion.
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "render_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "progress", "output_url", "error", "log_tail", "claimed_by", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "render_jobs.status NOT IN ('complete','failed')"},
		}},
	}).Create(job).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *postgresStore) DeleteJob(ctx context.Context, userId, renderId string) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ? AND render_id = ?", userId, renderId).Delete(&entities.RenderJob{})
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *postgresStore) NextPending(ctx context.Context) (*entities.RenderJob, error) {
	job := &entities.RenderJob{}
	err := s.db.WithContext(ctx).
		Where("status = ?", constant.RenderStatusPending).
		Order("created_at ASC").
		First(job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return job, nil
}

func (s *postgresStore) ClaimJob(ctx context.Context, renderId, workerId string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&entities.RenderJob{}).
		Where("render_id = ? AND status = ?", renderId, constant.RenderStatusPending).
		Updates(map[string]interface{}{
			"status":     constant.RenderStatusProcessing,
			"claimed_by": workerId,
			"updated_at": time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *postgresStore) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	res := s.db.WithContext(ctx).Model(&entities.RenderJob{}).
		Where("status = ? AND updated_at < ?", constant.RenderStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":     constant.RenderStatusFailed,
			"error":      "render timed out",
			"updated_at": time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Error)
	}
	return int(res.RowsAffected), nil
}
