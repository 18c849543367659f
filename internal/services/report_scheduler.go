package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultReportSchedule runs at 09:00 on the first day of every month.
const DefaultReportSchedule = "0 9 1 * *"

type ReportSchedulerConfig struct {
	// Schedule is a standard 5-field cron expression.
	Schedule string
	Location *time.Location
}

func DefaultReportSchedulerConfig() ReportSchedulerConfig {
	return ReportSchedulerConfig{
		Schedule: DefaultReportSchedule,
		Location: time.Local,
	}
}

type reportSender interface {
	SendAll(ctx context.Context, year, month int) (int, error)
}

// ReportScheduler sends every user the report of the previous month on a
// cron schedule.
type ReportScheduler struct {
	reports reportSender
	config  ReportSchedulerConfig
	now     func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cron    *cron.Cron
}

func NewReportScheduler(reports reportSender, config ReportSchedulerConfig) *ReportScheduler {
	if config.Schedule == "" {
		config.Schedule = DefaultReportSchedule
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	return &ReportScheduler{reports: reports, config: config, now: time.Now}
}

// Start registers the cron job. Returns an error if already running or if
// the schedule does not parse.
func (p *ReportScheduler) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("report scheduler is already running")
	}

	c := cron.New(cron.WithLocation(p.config.Location))
	if _, err := c.AddFunc(p.config.Schedule, func() { p.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid report schedule %q: %w", p.config.Schedule, err)
	}
	c.Start()
	p.cron = c
	p.running = true

	slog.InfoContext(ctx, "Report scheduler started", "schedule", p.config.Schedule)
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (p *ReportScheduler) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	c := p.cron
	p.running = false
	p.cron = nil
	p.mu.Unlock()

	select {
	case <-c.Stop().Done():
		slog.InfoContext(ctx, "Report scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Report scheduler stop timed out")
		return ctx.Err()
	}
}

// Run starts the schedule, blocks until ctx is done and then stops it,
// giving a running job stopTimeout to finish.
func (p *ReportScheduler) Run(ctx context.Context, stopTimeout time.Duration) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	return p.Stop(stopCtx)
}

func (p *ReportScheduler) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RunOnce sends the reports for the month before now.
func (p *ReportScheduler) RunOnce(ctx context.Context) int {
	year, month := previousMonth(p.now().In(p.config.Location))
	sent, err := p.reports.SendAll(ctx, year, month)
	if err != nil {
		slog.ErrorContext(ctx, "Monthly reports incomplete", "year", year, "month", month, "sent", sent, "error", err)
	} else {
		slog.InfoContext(ctx, "Monthly reports sent", "year", year, "month", month, "sent", sent)
	}
	return sent
}

func previousMonth(t time.Time) (int, int) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, -1, 0)
	return first.Year(), int(first.Month())
}
