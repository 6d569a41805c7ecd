// Package sched owns the engine's background loops: the periodic fleet
// backup sweep and the golden-image push queue. Each loop is started
// once, runs until Stop, and never overlaps with itself.
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/faro-networks/faro/pkg/fleet"
	"github.com/faro-networks/faro/pkg/store"
	"github.com/faro-networks/faro/pkg/util"
)

const (
	// DefaultBackupInterval is how often the whole fleet is captured.
	DefaultBackupInterval = 12 * time.Hour
	// DefaultJobPoll is how often the push queue is checked for due jobs.
	DefaultJobPoll = time.Minute
)

// Scheduler drives the backup sweep and the push-job queue.
type Scheduler struct {
	Engine *fleet.Engine

	BackupInterval time.Duration
	JobPoll        time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a scheduler with the default intervals.
func New(e *fleet.Engine) *Scheduler {
	return &Scheduler{
		Engine:         e,
		BackupInterval: DefaultBackupInterval,
		JobPoll:        DefaultJobPoll,
	}
}

// Start launches both loops. Call Stop to shut them down; Start must not
// be called twice.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.runEvery(ctx, s.BackupInterval, s.BackupSweep)
	}()
	go func() {
		defer s.wg.Done()
		s.runEvery(ctx, s.JobPoll, s.RunDueJobs)
	}()
}

// Stop cancels the loops and waits for any pass in flight to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) runEvery(ctx context.Context, every time.Duration, pass func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pass(ctx)
		}
	}
}

// BackupSweep captures every device in turn. Devices are taken one at a
// time on purpose: a sweep is background work and must not saturate the
// management network. A failing device is logged and skipped; one broken
// box cannot starve the rest of the fleet.
func (s *Scheduler) BackupSweep(ctx context.Context) {
	devices, err := s.Engine.Store.ListDevices()
	if err != nil {
		util.Errorf("Backup sweep could not list devices: %v", err)
		return
	}
	util.WithOperation("backup-sweep").Infof("Sweeping %d devices", len(devices))

	for i := range devices {
		if ctx.Err() != nil {
			return
		}
		dev := &devices[i]
		if _, err := s.Engine.RunBackup(ctx, dev.ID); err != nil {
			util.WithDevice(dev.IP).Warnf("Scheduled backup failed: %v", err)
		}
	}
}

// RunDueJobs claims every pending push job whose time has come and runs
// it. A job ends in exactly one of completed or failed; failed jobs are
// not retried automatically.
func (s *Scheduler) RunDueJobs(ctx context.Context) {
	jobs, err := s.Engine.Store.DueJobs(time.Now())
	if err != nil {
		util.Errorf("Job poll failed: %v", err)
		return
	}

	for i := range jobs {
		if ctx.Err() != nil {
			return
		}
		job := &jobs[i]
		if job.Device == nil || job.GoldenImage == nil {
			util.Errorf("Job %d has a dangling device or image reference", job.ID)
			s.markJob(job.ID, store.JobFailed)
			continue
		}

		err := s.Engine.PushImage(ctx, job.DeviceID, job.GoldenImage)
		if err != nil {
			util.WithDevice(job.Device.IP).Warnf("Image push failed: %v", err)
			s.markJob(job.ID, store.JobFailed)
			continue
		}
		util.WithDevice(job.Device.IP).Infof("Pushed image %s", job.GoldenImage.Filename)
		s.markJob(job.ID, store.JobCompleted)
	}
}

func (s *Scheduler) markJob(id uint, status string) {
	if err := s.Engine.Store.UpdateJobStatus(id, status); err != nil {
		util.Errorf("Could not mark job %d %s: %v", id, status, err)
	}
}
