// Package scheduler starts deadline watch workflows on Temporal.
package scheduler

import (
	"context"
	"fmt"

	"github.com/wms-platform/production-tracking/internal/workflows"
	"github.com/wms-platform/production-tracking/pkg/logging"
	"github.com/wms-platform/production-tracking/pkg/metrics"
	pkgtemporal "github.com/wms-platform/production-tracking/pkg/temporal"
)

// WorkflowStarter starts a workflow id at most once. pkg/temporal.Client implements it.
type WorkflowStarter interface {
	StartUniqueWorkflow(ctx context.Context, workflowID, taskQueue, workflowName string, args ...interface{}) (bool, error)
}

// DeadlineScheduler implements application.DeadlineScheduler
type DeadlineScheduler struct {
	starter WorkflowStarter
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewDeadlineScheduler creates a scheduler. metrics may be nil.
func NewDeadlineScheduler(starter WorkflowStarter, m *metrics.Metrics, logger *logging.Logger) *DeadlineScheduler {
	return &DeadlineScheduler{
		starter: starter,
		metrics: m,
		logger:  logger.WithComponent("deadline-scheduler"),
	}
}

// WorkflowID is the watch id for an item in a stage. An item enters each
// stage once, so the id never needs to run twice.
func WorkflowID(itemID, stage string) string {
	return fmt.Sprintf("deadline-%s-%s", itemID, stage)
}

// ScheduleDeadlineWatch starts the watch unless one already exists
func (s *DeadlineScheduler) ScheduleDeadlineWatch(ctx context.Context, itemID, stage string) error {
	id := WorkflowID(itemID, stage)
	started, err := s.starter.StartUniqueWorkflow(ctx, id,
		pkgtemporal.TaskQueues.ProductionTracking,
		pkgtemporal.WorkflowNames.DeadlineWatch,
		workflows.DeadlineWatchInput{ItemID: itemID, Stage: stage},
	)
	if err != nil {
		return fmt.Errorf("failed to schedule deadline watch: %w", err)
	}
	if !started {
		s.logger.Debug("Deadline watch already exists", "workflowId", id)
		return nil
	}

	if s.metrics != nil {
		s.metrics.RecordWorkflowStarted(pkgtemporal.WorkflowNames.DeadlineWatch)
	}
	s.logger.WorkflowStart(ctx, pkgtemporal.WorkflowNames.DeadlineWatch, id)
	return nil
}
