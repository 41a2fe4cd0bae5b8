// Package scheduler runs the pending upload processor in the background: a
// periodic job on a fixed interval and a one-shot job, kicked after offline
// saves, that retries with exponential backoff.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	syncErrors "github.com/c0deZ3R0/productsync/errors"
	"github.com/c0deZ3R0/productsync/logging"
	"github.com/c0deZ3R0/productsync/synckit"
)

// Job names, tag and bus topic shared with collaborators.
const (
	TagPendingUpload = "pending_upload"
	JobPeriodic      = "pending_uploader_periodic"
	JobOnce          = "pending_uploader_once"
	TopicJobStatus   = "job:status"
)

// Config holds the scheduler's timing.
type Config struct {
	// Interval of the periodic job. Default 15m.
	Interval time.Duration

	// InitialBackoff is the first retry delay of a one-shot job. Default 10s.
	InitialBackoff time.Duration
	// Multiplier grows the delay between retries. Default 2.
	Multiplier float64
	// MaxBackoff caps a single delay. Default 5h.
	MaxBackoff time.Duration
	// MaxAttempts stops retrying after this many runs. 0 means no limit.
	MaxAttempts int

	// Retention is how long finished statuses are kept. Default 7 days.
	Retention time.Duration

	Constraints synckit.Constraints
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		Interval:       15 * time.Minute,
		InitialBackoff: 10 * time.Second,
		Multiplier:     2,
		MaxBackoff:     5 * time.Hour,
		Retention:      7 * 24 * time.Hour,
		Constraints:    synckit.DefaultConstraints,
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithConfig(cfg Config) Option {
	return func(s *Scheduler) { s.cfg = cfg }
}

func WithNetworkChecker(n NetworkChecker) Option {
	return func(s *Scheduler) { s.network = n }
}

// WithStatusStore persists job statuses.
func WithStatusStore(st *StatusStore) Option {
	return func(s *Scheduler) { s.statusStore = st }
}

// WithBus publishes status changes on an existing bus.
func WithBus(bus EventBus.Bus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// oneShot is a queued or running one-shot job. running is guarded by
// Scheduler.mu.
type oneShot struct {
	name        string
	runID       string
	constraints synckit.Constraints
	cancel      context.CancelFunc
	done        chan struct{}
	running     bool
}

// Scheduler implements synckit.SyncScheduler.
type Scheduler struct {
	processor   synckit.PendingProcessor
	network     NetworkChecker
	statusStore *StatusStore
	bus         EventBus.Bus
	logger      *slog.Logger
	cfg         Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// persistMu orders writes to statusStore. It is never held while
	// subscribers run.
	persistMu sync.Mutex

	mu          sync.Mutex
	cron        *cron.Cron
	periodicID  cron.EntryID
	periodicSet bool
	once        map[string]*oneShot
	statuses    map[string]JobStatus
	started     bool
	stopped     bool
}

var _ synckit.SyncScheduler = (*Scheduler)(nil)

// New creates a scheduler driving processor. Nothing runs until Start or a
// Schedule call.
func New(processor synckit.PendingProcessor, opts ...Option) *Scheduler {
	s := &Scheduler{
		processor: processor,
		logger:    logging.WithComponent(logging.Component("scheduler")).Logger,
		cfg:       DefaultConfig(),
		once:      make(map[string]*oneShot),
		statuses:  make(map[string]JobStatus),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.setDefaults()
	if s.bus == nil {
		s.bus = EventBus.New()
	}

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Bus returns the bus status changes are published on.
func (s *Scheduler) Bus() EventBus.Bus {
	return s.bus
}

// Start loads persisted statuses, prunes old ones, marks jobs left unfinished
// by a previous process as cancelled, and arms the periodic job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return syncErrors.New(syncErrors.OpSchedule, fmt.Errorf("scheduler is stopped"))
	}
	if s.started {
		s.mu.Unlock()
		return syncErrors.New(syncErrors.OpSchedule, fmt.Errorf("scheduler already started"))
	}
	s.started = true
	s.mu.Unlock()

	if s.statusStore != nil {
		if n, err := s.statusStore.Prune(time.Now().Add(-s.cfg.Retention)); err != nil {
			s.logger.Warn("Failed to prune job statuses", "error", err)
		} else if n > 0 {
			s.logger.Info("Pruned job statuses", "count", n)
		}
		s.cancelLeftovers()
	}

	if err := s.ScheduleRecurring(s.cfg.Interval, s.cfg.Constraints); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", "interval", s.cfg.Interval)
	return nil
}

func (s *Scheduler) cancelLeftovers() {
	previous, err := s.statusStore.ByTag(TagPendingUpload)
	if err != nil {
		s.logger.Warn("Failed to read persisted job statuses", "error", err)
		return
	}
	for _, st := range previous {
		if !st.State.Finished() {
			st.State = StateCancelled
			st.Err = "process restarted"
			st.UpdatedAt = time.Now().UTC()
		}
		s.mu.Lock()
		if _, ok := s.statuses[st.Name]; !ok {
			s.statuses[st.Name] = st
		}
		s.mu.Unlock()
		if err := s.statusStore.Put(st); err != nil {
			s.logger.Warn("Failed to persist job status", "job", st.Name, "error", err)
		}
	}
}

// Stop cancels queued and retrying one-shot jobs, stops the periodic job and
// waits for passes already uploading to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for _, job := range s.once {
		job.cancel()
	}
	s.mu.Unlock()

	s.cancel()
	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScheduleRecurring arms the periodic uploader, replacing an existing one.
func (s *Scheduler) ScheduleRecurring(interval time.Duration, c synckit.Constraints) error {
	if interval <= 0 {
		return syncErrors.NewValidationError(syncErrors.OpSchedule, fmt.Errorf("interval must be positive"))
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return syncErrors.New(syncErrors.OpSchedule, fmt.Errorf("scheduler is stopped"))
	}

	if s.periodicSet {
		s.cron.Remove(s.periodicID)
		s.periodicSet = false
	}

	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.runPeriodic(c)
	})
	if err != nil {
		s.mu.Unlock()
		return syncErrors.New(syncErrors.OpSchedule, fmt.Errorf("arm periodic job: %w", err))
	}
	s.periodicID = id
	s.periodicSet = true

	st := s.recordLocked(JobStatus{
		Name:  JobPeriodic,
		Tag:   TagPendingUpload,
		State: StateScheduled,
	})
	s.mu.Unlock()
	s.emit(st)

	s.logger.Debug("Periodic job armed", "interval", interval, "require_network", c.RequireNetwork)
	return nil
}

// RequestImmediateSync queues the one-shot uploader.
func (s *Scheduler) RequestImmediateSync() error {
	return s.ScheduleOnceReplacing(JobOnce, s.cfg.Constraints)
}

// ScheduleOnceReplacing starts a one-shot run under name. A queued or
// retrying job with the same name is cancelled. A job that is in the middle
// of a pass is left to finish it, then stops, and the new job runs after it.
func (s *Scheduler) ScheduleOnceReplacing(name string, c synckit.Constraints) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return syncErrors.New(syncErrors.OpSchedule, fmt.Errorf("scheduler is stopped"))
	}

	prev := s.once[name]
	if prev != nil && !prev.running {
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(s.ctx)
	job := &oneShot{
		name:        name,
		runID:       uuid.NewString(),
		constraints: c,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	s.once[name] = job
	st := s.recordLocked(JobStatus{
		Name:  name,
		Tag:   TagPendingUpload,
		RunID: job.runID,
		State: StateScheduled,
	})
	s.wg.Add(1)
	s.mu.Unlock()
	s.emit(st)

	if prev != nil {
		s.logger.Debug("Replacing one-shot job", "job", name, "previous_run", prev.runID)
	}

	go func() {
		defer s.wg.Done()
		defer close(job.done)
		if prev != nil {
			<-prev.done
		}
		s.runOnce(ctx, job)
	}()
	return nil
}

func (s *Scheduler) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.InitialBackoff
	eb.Multiplier = s.cfg.Multiplier
	eb.MaxInterval = s.cfg.MaxBackoff
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()

	var b backoff.BackOff = eb
	if s.cfg.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(s.cfg.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

func (s *Scheduler) runOnce(ctx context.Context, job *oneShot) {
	log := s.logger.With("job", job.name, "run_id", job.runID)
	attempt := 0
	var synced int

	operation := func() error {
		if !s.beginPass(ctx, job, attempt+1) {
			return backoff.Permanent(context.Canceled)
		}
		attempt++
		res, err := s.runPass(ctx, job.constraints)
		s.endPass(job)
		synced += res.Synced
		return err
	}
	notify := func(err error, wait time.Duration) {
		if IsNetworkError(err) {
			log.Info("Network unavailable, one-shot sync waiting", "attempt", attempt, "retry_in", wait)
		} else {
			log.Info("One-shot sync failed, retrying", "attempt", attempt, "retry_in", wait, "error", err)
		}
		s.setJobStatus(job, JobStatus{
			Name:        job.name,
			Tag:         TagPendingUpload,
			RunID:       job.runID,
			State:       StateRetrying,
			SyncedCount: synced,
			Attempt:     attempt,
			Err:         err.Error(),
		})
	}

	err := backoff.RetryNotify(operation, s.newBackOff(ctx), notify)

	final := JobStatus{Name: job.name, Tag: TagPendingUpload, RunID: job.runID, SyncedCount: synced, Attempt: attempt}
	switch {
	case err == nil:
		final.State = StateSucceeded
		log.Info("One-shot sync succeeded", "synced", synced, "attempts", attempt)
	case ctx.Err() != nil:
		final.State = StateCancelled
		final.Err = ctx.Err().Error()
		log.Debug("One-shot sync cancelled", "attempts", attempt)
	default:
		final.State = StateFailed
		final.Err = err.Error()
		log.Warn("One-shot sync gave up", "attempts", attempt, "error", err)
	}

	s.mu.Lock()
	current := s.once[job.name] == job
	if current {
		delete(s.once, job.name)
		final = s.recordLocked(final)
	}
	s.mu.Unlock()
	if current {
		s.emit(final)
	}
}

// beginPass marks job as mid-pass so a replacing request waits for it
// instead of cancelling it. It reports false once job was replaced or
// cancelled.
func (s *Scheduler) beginPass(ctx context.Context, job *oneShot, attempt int) bool {
	s.mu.Lock()
	if ctx.Err() != nil || s.once[job.name] != job {
		s.mu.Unlock()
		return false
	}
	job.running = true
	st := s.recordLocked(JobStatus{
		Name:    job.name,
		Tag:     TagPendingUpload,
		RunID:   job.runID,
		State:   StateRunning,
		Attempt: attempt,
	})
	s.mu.Unlock()
	s.emit(st)
	return true
}

// endPass clears the mid-pass mark. A job replaced during its pass is
// cancelled here so it does not retry.
func (s *Scheduler) endPass(job *oneShot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.running = false
	if s.once[job.name] != job {
		job.cancel()
	}
}

func (s *Scheduler) runPeriodic(c synckit.Constraints) {
	runID := uuid.NewString()
	s.setStatus(JobStatus{Name: JobPeriodic, Tag: TagPendingUpload, RunID: runID, State: StateRunning, Attempt: 1})

	res, err := s.runPass(s.ctx, c)

	st := JobStatus{Name: JobPeriodic, Tag: TagPendingUpload, RunID: runID, SyncedCount: res.Synced, Attempt: 1}
	switch {
	case err == nil:
		st.State = StateSucceeded
	case s.ctx.Err() != nil:
		st.State = StateCancelled
	case IsNetworkError(err):
		st.State = StateFailed
		st.Err = err.Error()
		s.logger.Info("Network unavailable, periodic sync skipped")
	default:
		st.State = StateFailed
		st.Err = err.Error()
		s.logger.Info("Periodic sync failed, waiting for next run", "error", err)
	}
	s.setStatus(st)
}

// runPass checks constraints and runs one pass. Items left in the queue make
// the pass a failure so that it is retried. Once uploading starts the pass is
// not cancelled; request timeouts belong to the remote client.
func (s *Scheduler) runPass(ctx context.Context, c synckit.Constraints) (synckit.ProcessResult, error) {
	if err := ctx.Err(); err != nil {
		return synckit.ProcessResult{}, err
	}

	if c.RequireNetwork && s.network != nil {
		if err := s.network.Check(ctx); err != nil {
			return synckit.ProcessResult{}, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
		}
	}

	res, err := s.processor.ProcessPending(context.WithoutCancel(ctx))
	if err != nil {
		return res, err
	}
	if res.Failed > 0 {
		return res, fmt.Errorf("%d of %d uploads failed", res.Failed, res.Before)
	}
	return res, nil
}

func (s *Scheduler) setStatus(st JobStatus) {
	s.mu.Lock()
	st = s.recordLocked(st)
	s.mu.Unlock()
	s.emit(st)
}

// setJobStatus drops updates from a one-shot run that has been replaced.
func (s *Scheduler) setJobStatus(job *oneShot, st JobStatus) {
	s.mu.Lock()
	if s.once[job.name] != job {
		s.mu.Unlock()
		return
	}
	st = s.recordLocked(st)
	s.mu.Unlock()
	s.emit(st)
}

func (s *Scheduler) recordLocked(st JobStatus) JobStatus {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	s.statuses[st.Name] = st
	return st
}

// emit persists the job's latest status and publishes st. Callers must not
// hold s.mu: subscribers may call back into the scheduler.
func (s *Scheduler) emit(st JobStatus) {
	if s.statusStore != nil {
		s.persistMu.Lock()
		s.mu.Lock()
		latest := s.statuses[st.Name]
		s.mu.Unlock()
		if err := s.statusStore.Put(latest); err != nil {
			s.logger.Warn("Failed to persist job status", "job", st.Name, "error", err)
		}
		s.persistMu.Unlock()
	}
	s.bus.Publish(TopicJobStatus, st)
}

// Status returns the last status of the named job.
func (s *Scheduler) Status(name string) (JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[name]
	return st, ok
}

// StatusByTag returns the last status of every job carrying tag, by name.
// Statuses persisted by an earlier process are included.
func (s *Scheduler) StatusByTag(tag string) ([]JobStatus, error) {
	merged := make(map[string]JobStatus)
	if s.statusStore != nil {
		persisted, err := s.statusStore.ByTag(tag)
		if err != nil {
			return nil, err
		}
		for _, st := range persisted {
			merged[st.Name] = st
		}
	}

	s.mu.Lock()
	for name, st := range s.statuses {
		if st.Tag == tag {
			merged[name] = st
		}
	}
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(merged))
	for _, st := range merged {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// IsNetworkError reports whether a job failed on its network constraint.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable)
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
