// Package scheduler runs a job on a cron schedule, never overlapping itself.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSpec runs every six hours on the hour.
const DefaultSpec = "0 */6 * * *"

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Config configures a Scheduler.
type Config struct {
	// Spec is a cron expression with an optional leading seconds field, or a
	// descriptor such as @hourly or @every 30m.
	Spec string
	// Timeout bounds a single run. Zero means no bound.
	Timeout    time.Duration
	RunOnStart bool
	Logger     *zap.Logger
}

// Scheduler triggers a Job on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	job     Job
	cfg     Config
	logger  *zap.Logger
	baseCtx context.Context

	mu      sync.Mutex
	started bool
}

// ParseSpec validates a schedule expression.
func ParseSpec(spec string) (cron.Schedule, error) {
	return parser().Parse(spec)
}

func parser() cron.Parser {
	return cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// New builds a scheduler for job.
func New(cfg Config, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}

	cronLogger := &zapCronLogger{sugar: cfg.Logger.Sugar()}
	c := cron.New(
		cron.WithParser(parser()),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	s := &Scheduler{
		cron:    c,
		job:     job,
		cfg:     cfg,
		logger:  cfg.Logger,
		baseCtx: context.Background(),
	}

	id, err := c.AddFunc(cfg.Spec, s.runJob)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Spec, err)
	}
	s.entry = id

	return s, nil
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for
// an in-flight run to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	s.started = true
	// In-flight runs are not cancelled on shutdown; Timeout bounds them.
	s.baseCtx = context.WithoutCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler-started",
		zap.String("spec", s.cfg.Spec),
		zap.Time("next-run", s.Next()))

	if s.cfg.RunOnStart {
		s.trigger()
	}

	<-ctx.Done()

	s.logger.Info("scheduler-stopping")
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler-stopped")

	return nil
}

// Next returns the next scheduled run time.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// trigger runs the job through the same chain as scheduled runs.
func (s *Scheduler) trigger() {
	s.cron.Entry(s.entry).WrappedJob.Run()
}

func (s *Scheduler) runJob() {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	RunningJobs.Inc()
	defer RunningJobs.Dec()

	err := s.job(ctx)

	JobDuration.Observe(time.Since(start).Seconds())
	LastRunTimestamp.Set(float64(start.Unix()))

	if err != nil {
		JobRunsTotal.WithLabelValues("error").Inc()
		s.logger.Error("scheduled-run-failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}

	JobRunsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("scheduled-run-complete", zap.Duration("took", time.Since(start)))
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	sugar *zap.SugaredLogger
}

func (l *zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw("cron-"+msg, keysAndValues...)
}

func (l *zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw("cron-"+msg, append(keysAndValues, "error", err)...)
}
