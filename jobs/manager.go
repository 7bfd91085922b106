// Package jobs runs the scheduled maintenance of the referral program.
package jobs

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/HSouheill/referral_backend/logger"
)

// Job is a unit of scheduled work.
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager owns the scheduler. All schedules are evaluated in UTC.
type Manager struct {
	scheduler gocron.Scheduler
}

func NewManager() (*Manager, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Manager{scheduler: s}, nil
}

// Register schedules job. A run that is still going when the next one is due
// pushes the next one back instead of overlapping.
func (m *Manager) Register(job Job) error {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", job.GetName(), err)
	}
	logger.Info("Registered job %s", job.GetName())
	return nil
}

func (m *Manager) Start() {
	m.scheduler.Start()
	logger.Info("Job scheduler started")
}

// Stop waits for running jobs to return.
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Job scheduler stopped")
}
