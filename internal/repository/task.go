package repository

import (
	"errors"
	"fmt"
	"reposync/internal/model"
	"time"

	"gorm.io/gorm"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskRepository backs the dashboard endpoints that reporters post to.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(uuid, name string) (model.Task, error) {
	task := model.Task{
		UUID:   uuid,
		Name:   name,
		Status: model.TaskRunning,
	}

	return task, r.db.Create(&task).Error
}

func (r *TaskRepository) Get(uuid string) (model.Task, error) {
	var task model.Task
	err := r.db.
		Preload("Logs", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Where("uuid = ?", uuid).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return task, ErrTaskNotFound
	}

	return task, err
}

func (r *TaskRepository) GetRecent(limit int) ([]model.Task, error) {
	var tasks []model.Task
	result := r.db.
		Order("created_at desc").
		Limit(limit).
		Find(&tasks)

	return tasks, result.Error
}

func (r *TaskRepository) AddLog(uuid, level, message string) error {
	task, err := r.find(uuid)
	if err != nil {
		return err
	}

	entry := model.TaskLog{
		TaskID:   task.ID,
		Level:    level,
		Message:  message,
		LoggedAt: time.Now(),
	}
	return r.db.Create(&entry).Error
}

// UpdateProgress never moves progress backwards.
func (r *TaskRepository) UpdateProgress(uuid string, done, total int) error {
	return r.update(uuid, map[string]any{"done": done, "total": total}, "done <= ?", done)
}

func (r *TaskRepository) Complete(uuid, summary string) error {
	return r.update(uuid, map[string]any{"status": model.TaskCompleted, "summary": summary}, "")
}

func (r *TaskRepository) Fail(uuid, errMsg string) error {
	return r.update(uuid, map[string]any{"status": model.TaskFailed, "err_msg": errMsg}, "")
}

func (r *TaskRepository) find(uuid string) (model.Task, error) {
	var task model.Task
	err := r.db.Where("uuid = ?", uuid).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return task, ErrTaskNotFound
	}
	if err != nil {
		return task, fmt.Errorf("failed to find task: %w", err)
	}

	return task, nil
}

func (r *TaskRepository) update(uuid string, updates map[string]any, cond string, args ...any) error {
	if _, err := r.find(uuid); err != nil {
		return err
	}

	q := r.db.Model(&model.Task{}).Where("uuid = ?", uuid)
	if cond != "" {
		q = q.Where(cond, args...)
	}

	return q.Updates(updates).Error
}
