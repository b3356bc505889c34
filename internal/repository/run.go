package repository

import (
	"fmt"
	"reposync/internal/model"
	"time"

	"gorm.io/gorm"
)

// RunRepository stores sync runs and their per-repository events.
type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Begin(dryRun bool, startedAt time.Time) (uint, error) {
	run := model.Run{
		Status:    model.RunRunning,
		DryRun:    dryRun,
		StartedAt: startedAt,
	}

	if err := r.db.Create(&run).Error; err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}
	return run.ID, nil
}

func (r *RunRepository) Record(runID uint, report model.RepoReport) error {
	ev := model.NewRepoEvent(runID, report)
	return r.db.Create(&ev).Error
}

func (r *RunRepository) Finish(runID uint, counters model.SyncCounters, runErr error) error {
	now := time.Now()
	updates := map[string]any{
		"status":             model.RunCompleted,
		"finished_at":        &now,
		"pulled":             counters.Pulled,
		"pushed":             counters.Pushed,
		"cloned":             counters.Cloned,
		"empty_deleted":      counters.EmptyDeleted,
		"up_to_date":         counters.UpToDate,
		"failed":             counters.Failed,
		"conflicts_resolved": counters.ConflictsResolved,
	}
	if runErr != nil {
		updates["status"] = model.RunFailed
		updates["err_msg"] = runErr.Error()
	}

	return r.db.Model(&model.Run{}).
		Where("id = ?", runID).
		Updates(updates).Error
}

func (r *RunRepository) GetByID(id uint) (model.Run, error) {
	var run model.Run
	return run, r.db.Preload("Events").First(&run, id).Error
}

func (r *RunRepository) GetRecent(limit int) ([]model.Run, error) {
	var runs []model.Run
	result := r.db.
		Order("started_at desc").
		Limit(limit).
		Find(&runs)

	return runs, result.Error
}

func (r *RunRepository) GetFailedEvents(limit int) ([]model.RepoEvent, error) {
	var events []model.RepoEvent
	result := r.db.
		Where("status = ?", model.RepoFailed).
		Order("created_at desc").
		Limit(limit).
		Find(&events)

	return events, result.Error
}

type Stats struct {
	Runs   int64
	Events int64
	Failed int64
}

func (r *RunRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := r.db.Model(&model.Run{}).Count(&stats.Runs).Error; err != nil {
		return stats, err
	}

	if err := r.db.Model(&model.RepoEvent{}).Count(&stats.Events).Error; err != nil {
		return stats, err
	}

	if err := r.db.Model(&model.RepoEvent{}).
		Where("status = ?", model.RepoFailed).
		Count(&stats.Failed).Error; err != nil {
		return stats, err
	}

	return stats, nil
}
