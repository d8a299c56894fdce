package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/slack-go/slack"

	"github.com/artifactory/invoice-reminders/internal/service"
	"github.com/artifactory/invoice-reminders/pkg/logger"
)

var (
	ErrInvalidSchedule = errors.New("invalid cron expression")
	ErrScanInProgress  = errors.New("a scan is already running")
)

// scanRunner is the slice of ScanService the scheduler drives; tests use a fake.
type scanRunner interface {
	Run(ctx context.Context) (*service.ScanReport, error)
}

type alertPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Scheduler runs Scan-and-Post on a cron schedule inside the listener process and
// alerts the admin channel after repeated failures.
type Scheduler struct {
	scanService    scanRunner
	alerts         alertPoster
	alertChannel   string
	schedule       string
	alertThreshold int
	now            func() time.Time

	// Internal state
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
	mu       sync.RWMutex
	scanMu   sync.Mutex

	// Statistics
	lastRunAt       time.Time
	nextRunAt       time.Time
	runsCount       int64
	summariesPosted int64
	lastError       string
	lastAlertSentAt time.Time

	consecutiveFailCount int
}

func NewScheduler(scanService scanRunner, alerts alertPoster, alertChannel string) *Scheduler {
	return &Scheduler{
		scanService:  scanService,
		alerts:       alerts,
		alertChannel: alertChannel,
		now:          time.Now,
	}
}

// ValidateSchedule reports whether expr is a cron expression gronx understands.
func ValidateSchedule(expr string) error {
	gx := gronx.New()
	if expr == "" || !gx.IsValid(expr) {
		return fmt.Errorf("%w: %q", ErrInvalidSchedule, expr)
	}
	return nil
}

func (s *Scheduler) StartWithParams(ctx context.Context, schedule string, alertThreshold int) error {
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Warnf("Scheduler is already running")
		return nil
	}
	s.schedule = schedule
	s.alertThreshold = alertThreshold
	s.consecutiveFailCount = 0
	s.mu.Unlock()

	return s.Start(ctx)
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.running {
		s.mu.Unlock()
		logger.Warnf("Scheduler is already running")
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		s.mu.Unlock()
		return err
	}

	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	schedule := s.schedule
	stopChan, doneChan := s.stopChan, s.doneChan
	s.mu.Unlock()

	logger.Infof("Starting scan scheduler with schedule %q", schedule)

	go s.run(ctx, schedule, stopChan, doneChan)

	return nil
}

func (s *Scheduler) run(ctx context.Context, schedule string, stopChan, doneChan chan struct{}) {
	defer close(doneChan)

	for {
		next, err := gronx.NextTickAfter(schedule, s.now(), false)
		if err != nil {
			logger.Errorf("Scheduler cannot compute next run for %q: %v", schedule, err)
			s.markStopped(stopChan)
			return
		}

		s.mu.Lock()
		s.nextRunAt = next
		s.mu.Unlock()

		logger.Debugf("Next scan at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			if _, err := s.TriggerScan(ctx); err != nil && !errors.Is(err, ErrScanInProgress) {
				logger.Debugf("Scheduled scan ended with error: %v", err)
			}

		case <-stopChan:
			timer.Stop()
			logger.Warnf("Scheduler received stop signal")
			return

		case <-ctx.Done():
			timer.Stop()
			logger.Warnf("Scheduler context cancelled")
			s.markStopped(stopChan)
			return
		}
	}
}

// markStopped clears the running flag when the loop exits on its own.
func (s *Scheduler) markStopped(stopChan chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopChan == stopChan {
		s.running = false
		s.nextRunAt = time.Time{}
	}
}

// TriggerScan runs one scan now, on behalf of the cron loop or the API. Only one scan runs at a time.
func (s *Scheduler) TriggerScan(ctx context.Context) (*service.ScanReport, error) {
	if !s.scanMu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.scanMu.Unlock()

	s.mu.Lock()
	s.lastRunAt = s.now()
	s.runsCount++
	runNumber := s.runsCount
	s.mu.Unlock()

	logger.Infof("[Run #%d] Starting scan", runNumber)

	report, err := s.scanService.Run(ctx)

	failed := err != nil || (report != nil && report.Posted == 0 && report.Failed > 0)

	s.mu.Lock()
	if report != nil {
		s.summariesPosted += int64(report.Posted)
	}

	if !failed {
		if s.consecutiveFailCount > 0 {
			logger.Debugf("[Run #%d] Resetting consecutive failure count (was: %d)", runNumber, s.consecutiveFailCount)
		}
		s.consecutiveFailCount = 0
		s.lastError = ""
		s.mu.Unlock()
		return report, nil
	}

	if err == nil {
		err = fmt.Errorf("all %d summaries failed to post", report.Failed)
	}

	s.consecutiveFailCount++
	s.lastError = err.Error()
	count := s.consecutiveFailCount
	threshold := s.alertThreshold
	s.mu.Unlock()

	logger.Errorf("[Run #%d] Scan failed (consecutive count: %d/%d): %v", runNumber, count, threshold, err)

	if threshold > 0 && count >= threshold {
		s.sendAlert(ctx, runNumber, count, err)
	}

	return report, err
}

func (s *Scheduler) Stop() error {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		logger.Warnf("Scheduler is not running")
		return nil
	}

	s.running = false
	s.nextRunAt = time.Time{}
	stopChan := s.stopChan
	doneChan := s.doneChan
	s.mu.Unlock()

	// Send stop signal
	close(stopChan)

	// Wait for goroutine to finish
	<-doneChan

	logger.Infof("Scheduler stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) GetStatus() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SchedulerStatus{
		Running:              s.running,
		Schedule:             s.schedule,
		LastRunAt:            s.lastRunAt,
		NextRunAt:            s.nextRunAt,
		RunsCount:            s.runsCount,
		SummariesPosted:      s.summariesPosted,
		ConsecutiveFailCount: s.consecutiveFailCount,
		LastError:            s.lastError,
		LastAlertSentAt:      s.lastAlertSentAt,
	}
}

func (s *Scheduler) sendAlert(ctx context.Context, runNumber int64, consecutiveFailures int, cause error) {
	if s.alerts == nil || s.alertChannel == "" {
		return
	}

	text := fmt.Sprintf(":rotating_light: Invoice scan run #%d failed %d time(s) in a row. Last error: %v",
		runNumber, consecutiveFailures, cause)

	if _, _, err := s.alerts.PostMessageContext(ctx, s.alertChannel, slack.MsgOptionText(text, false)); err != nil {
		logger.Errorf("Failed to send scan alert: %v", err)
		return
	}

	s.mu.Lock()
	s.lastAlertSentAt = s.now()
	s.mu.Unlock()

	logger.Infof("Alert sent to %s (consecutive failures: %d)", s.alertChannel, consecutiveFailures)
}

type SchedulerStatus struct {
	Running              bool      `json:"running"`
	Schedule             string    `json:"schedule"`
	LastRunAt            time.Time `json:"lastRunAt,omitempty"`
	NextRunAt            time.Time `json:"nextRunAt,omitempty"`
	RunsCount            int64     `json:"runsCount"`
	SummariesPosted      int64     `json:"summariesPosted"`
	ConsecutiveFailCount int       `json:"consecutiveFailCount"`
	LastError            string    `json:"lastError,omitempty"`
	LastAlertSentAt      time.Time `json:"lastAlertSentAt,omitempty"`
}
