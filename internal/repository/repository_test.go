package repository

import (
	"errors"
	"reposync/internal/db"
	"reposync/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	return conn
}

func TestRunRepository_Lifecycle(t *testing.T) {
	repo := NewRunRepository(openDB(t))

	id, err := repo.Begin(false, time.Now())
	require.NoError(t, err)
	require.NotZero(t, id)

	require.NoError(t, repo.Record(id, model.RepoReport{Name: "alpha", Action: model.ActionPull, Status: model.RepoSuccess}))
	require.NoError(t, repo.Record(id, model.RepoReport{Name: "beta", Action: model.ActionPush, Status: model.RepoFailed, Err: errors.New("rejected")}))
	require.NoError(t, repo.Finish(id, model.SyncCounters{Pulled: 1, Failed: 1}, nil))

	run, err := repo.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.NotNil(t, run.FinishedAt)
	assert.Equal(t, 1, run.Pulled)
	assert.Equal(t, 1, run.Failed)
	require.Len(t, run.Events, 2)

	failed, err := repo.GetFailedEvents(10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "beta", failed[0].Repo)
	assert.Equal(t, "rejected", failed[0].ErrMsg)

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Runs: 1, Events: 2, Failed: 1}, stats)
}

func TestRunRepository_FinishWithError(t *testing.T) {
	repo := NewRunRepository(openDB(t))

	id, err := repo.Begin(true, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Finish(id, model.SyncCounters{}, errors.New("bad credentials")))

	run, err := repo.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, run.Status)
	assert.Equal(t, "bad credentials", run.ErrMsg)
	assert.True(t, run.DryRun)
}

func TestRunRepository_GetRecentNewestFirst(t *testing.T) {
	repo := NewRunRepository(openDB(t))
	base := time.Now()

	for i := range 3 {
		_, err := repo.Begin(false, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	runs, err := repo.GetRecent(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
}

func TestTaskRepository_Flow(t *testing.T) {
	repo := NewTaskRepository(openDB(t))

	_, err := repo.Create("t-1", "repository sync")
	require.NoError(t, err)

	require.NoError(t, repo.AddLog("t-1", "info", "PULL alpha: SUCCESS"))
	require.NoError(t, repo.AddLog("t-1", "error", "PUSH beta: FAILED"))
	require.NoError(t, repo.UpdateProgress("t-1", 2, 3))
	require.NoError(t, repo.UpdateProgress("t-1", 1, 3))
	require.NoError(t, repo.Complete("t-1", "pulled 1"))

	task, err := repo.Get("t-1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskCompleted, task.Status)
	assert.Equal(t, 2, task.Done)
	assert.Equal(t, 3, task.Total)
	assert.Equal(t, "pulled 1", task.Summary)
	require.Len(t, task.Logs, 2)
	assert.Equal(t, "PULL alpha: SUCCESS", task.Logs[0].Message)
}

func TestTaskRepository_UnknownTask(t *testing.T) {
	repo := NewTaskRepository(openDB(t))

	_, err := repo.Get("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.ErrorIs(t, repo.AddLog("missing", "info", "x"), ErrTaskNotFound)
	assert.ErrorIs(t, repo.Fail("missing", "x"), ErrTaskNotFound)
}
