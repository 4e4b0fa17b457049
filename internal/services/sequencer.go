package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/repos"
	"github.com/hamlaty/contest-backend/internal/types"
)

// TaskSequencer resolves the deterministic ordered task list a Thread's
// cursor indexes into. The ordering is owned by the repo query; this layer
// exists so flow code never reaches for tasks in any other order.
type TaskSequencer interface {
	OrderedTasks(ctx context.Context, tx *gorm.DB, contestID uuid.UUID) ([]*types.Task, error)
}

type taskSequencer struct {
	log      *logger.Logger
	taskRepo repos.TaskRepo
}

func NewTaskSequencer(log *logger.Logger, taskRepo repos.TaskRepo) TaskSequencer {
	serviceLog := log.With("service", "TaskSequencer")
	return &taskSequencer{log: serviceLog, taskRepo: taskRepo}
}

func (ts *taskSequencer) OrderedTasks(ctx context.Context, tx *gorm.DB, contestID uuid.UUID) ([]*types.Task, error) {
	return ts.taskRepo.ListOrderedByContest(ctx, tx, contestID)
}
