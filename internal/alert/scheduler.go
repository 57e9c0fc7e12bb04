package alert

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsewatch/internal/logger"
	"github.com/pulsewatch/internal/metrics"
	"github.com/pulsewatch/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultTickInterval = time.Minute
	DefaultStaleness    = 10 * time.Minute
	DefaultMaxParallel  = 8
)

// RuleSource lists the rules to evaluate each tick.
type RuleSource interface {
	ListActive() ([]models.Alert, error)
}

// MetricSource yields the most recent sample for a rule's metric, or
// (nil, nil) when none has been recorded.
type MetricSource interface {
	Latest(projectID uint, metricType string) (*models.MetricSample, error)
}

// SchedulerConfig tunes the evaluation loop.
type SchedulerConfig struct {
	Interval    time.Duration
	Staleness   time.Duration
	MaxParallel int64
}

// Scheduler drives the repeating evaluation tick. Rules within one tick
// are evaluated concurrently under bounded parallelism; a rule still in
// flight from a previous tick is skipped rather than raced.
type Scheduler struct {
	rules     RuleSource
	samples   MetricSource
	machine   *StateMachine
	lifecycle *LifecyclePublisher
	cfg       SchedulerConfig

	sem        *semaphore.Weighted
	inflight   map[uint]struct{}
	inflightMu sync.Mutex

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	ticking  atomic.Bool

	log   zerolog.Logger
	nowFn func() time.Time
}

func NewScheduler(rules RuleSource, samples MetricSource, machine *StateMachine, lifecycle *LifecyclePublisher, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickInterval
	}
	if cfg.Staleness <= 0 {
		cfg.Staleness = DefaultStaleness
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		rules:     rules,
		samples:   samples,
		machine:   machine,
		lifecycle: lifecycle,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(cfg.MaxParallel),
		inflight:  make(map[uint]struct{}),
		ctx:       ctx,
		cancel:    cancel,
		log:       logger.WithComponent("scheduler"),
		nowFn:     time.Now,
	}
}

// Start launches the evaluation loop. The first tick runs immediately.
func (s *Scheduler) Start() {
	s.log.Info().
		Dur("interval", s.cfg.Interval).
		Dur("staleness", s.cfg.Staleness).
		Int64("max_parallel", s.cfg.MaxParallel).
		Msg("starting evaluation scheduler")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.tick(s.ctx)
		for {
			select {
			case <-ticker.C:
				s.tick(s.ctx)
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop. It is idempotent; an in-flight tick is allowed to
// finish and no new tick is scheduled afterwards.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.log.Info().Msg("stopping evaluation scheduler")
		s.cancel()
	})
	s.wg.Wait()
}

// tick evaluates every active rule once. No single rule's failure aborts
// the tick or the loop.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.log.Warn().Msg("previous tick still running, skipping")
		metrics.TicksSkipped.Inc()
		return
	}
	defer s.ticking.Store(false)

	start := s.nowFn()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	rules, err := s.rules.ListActive()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list active rules")
		metrics.EvaluationErrorsTotal.WithLabelValues("list").Inc()
		return
	}

	var wg sync.WaitGroup
	for _, rule := range rules {
		if !s.tryAcquireRule(rule.ID) {
			s.log.Warn().Uint("rule_id", rule.ID).Msg("rule still being evaluated, skipping")
			continue
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.releaseRule(rule.ID)
			return
		}

		wg.Add(1)
		go func(rule models.Alert) {
			defer wg.Done()
			defer s.sem.Release(1)
			defer s.releaseRule(rule.ID)
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Interface("panic", r).
						Uint("rule_id", rule.ID).
						Bytes("stack", debug.Stack()).
						Msg("panic recovered during rule evaluation")
					metrics.PanicsRecovered.WithLabelValues("scheduler").Inc()
				}
			}()
			s.evaluateRule(ctx, rule)
		}(rule)
	}
	wg.Wait()
}

func (s *Scheduler) evaluateRule(ctx context.Context, rule models.Alert) {
	now := s.nowFn()

	sample, err := s.samples.Latest(rule.ProjectID, rule.MetricType)
	if err != nil {
		s.log.Error().
			Err(err).
			Uint("rule_id", rule.ID).
			Str("metric_type", rule.MetricType).
			Msg("failed to fetch latest sample")
		metrics.EvaluationErrorsTotal.WithLabelValues("fetch").Inc()
		return
	}
	if sample == nil || sample.Age(now) > s.cfg.Staleness {
		// Missing or stale data is not an error; the rule simply sits
		// this tick out with no state change.
		metrics.StaleSamplesSkipped.Inc()
		return
	}

	decision := s.machine.Observe(&rule, sample.Value, now)
	metrics.RuleEvaluationsTotal.WithLabelValues(decision.String()).Inc()

	switch decision {
	case DecisionTrigger:
		if err := s.lifecycle.HandleTrigger(ctx, &rule, sample.Value, now); err != nil {
			s.log.Error().Err(err).Uint("rule_id", rule.ID).Msg("trigger handling failed")
			metrics.EvaluationErrorsTotal.WithLabelValues("persist").Inc()
		}
	case DecisionResolve:
		if err := s.lifecycle.HandleResolve(ctx, &rule, sample.Value, now); err != nil {
			s.log.Error().Err(err).Uint("rule_id", rule.ID).Msg("resolve handling failed")
			metrics.EvaluationErrorsTotal.WithLabelValues("persist").Inc()
		}
	}
}

func (s *Scheduler) tryAcquireRule(id uint) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) releaseRule(id uint) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, id)
}
