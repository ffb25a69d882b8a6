// Package jobs contains the scheduled jobs of the CyberQuest worker.
package jobs

import (
	"context"

	"github.com/cyberquest/cyberquest-api/internal/application/command"
	"github.com/cyberquest/cyberquest-api/internal/domain/progression"
)

// ResetPointsJob zeroes one periodic points window.
type ResetPointsJob struct {
	handler *command.ResetPointsHandler
	period  progression.Period
}

// NewResetPointsJob creates a job for period.
func NewResetPointsJob(handler *command.ResetPointsHandler, period progression.Period) *ResetPointsJob {
	return &ResetPointsJob{handler: handler, period: period}
}

// Name returns the job name.
func (j *ResetPointsJob) Name() string {
	return "reset_" + string(j.period) + "_points"
}

// Description returns a human-readable description.
func (j *ResetPointsJob) Description() string {
	return "Zeroes every user's " + string(j.period) + " points"
}

// Run executes the reset.
func (j *ResetPointsJob) Run(ctx context.Context) error {
	_, err := j.handler.Handle(ctx, command.ResetPointsCommand{Period: string(j.period)})
	return err
}
