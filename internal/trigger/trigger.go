// Package trigger decides when a judgement runs: shortly after a page load,
// on a fixed interval, or only on demand.
package trigger

import (
	"context"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/hpungsan/objective/internal/errors"
	"github.com/hpungsan/objective/internal/settings"
)

// Judge runs one judgement cycle.
type Judge func(ctx context.Context) error

// Settings is the slice of the settings store the trigger reads.
type Settings interface {
	Get() settings.Settings
	IsPaused(ctx context.Context) bool
	Subscribe(fn func(settings.Change)) func()
}

// Trigger owns the active trigger mechanism. Exactly one of the page-load
// timer or the interval entry is installed at a time.
type Trigger struct {
	settings Settings
	judge    Judge
	delay    time.Duration
	schedule func(time.Duration) cronlib.Schedule

	mu          sync.Mutex
	started     bool
	stopped     bool
	policy      string
	interval    time.Duration
	scheduler   *cronlib.Cron
	entry       cronlib.EntryID
	pending     *time.Timer
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	running     sync.WaitGroup
}

// New creates a Trigger that waits delay after a page load before judging.
func New(s Settings, judge Judge, delay time.Duration) *Trigger {
	return &Trigger{
		settings: s,
		judge:    judge,
		delay:    delay,
		schedule: func(d time.Duration) cronlib.Schedule { return cronlib.Every(d) },
	}
}

// Start installs the configured policy and follows later policy changes.
// Judgements run under a context derived from ctx.
func (t *Trigger) Start(ctx context.Context) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.scheduler = cronlib.New()
	t.scheduler.Start()
	t.mu.Unlock()

	t.apply()
	unsubscribe := t.settings.Subscribe(func(c settings.Change) {
		if c.Key == settings.KeyJudgementPolicy || c.Key == settings.KeyJudgementIntervalMs {
			t.apply()
		}
	})

	t.mu.Lock()
	t.unsubscribe = unsubscribe
	t.mu.Unlock()
}

// Stop tears down the active mechanism and waits for running judgements.
func (t *Trigger) Stop() {
	t.mu.Lock()
	if !t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.teardown()
	unsubscribe := t.unsubscribe
	scheduler := t.scheduler
	t.cancel()
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	<-scheduler.Stop().Done()
	t.running.Wait()
}

// Policy returns the installed policy.
func (t *Trigger) Policy() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.policy
}

// PageLoaded reports a load or navigation event. Under the pageLoad policy
// it schedules one judgement after the delay, replacing any pending one,
// unless judgements are paused or disabled on load.
func (t *Trigger) PageLoaded() bool {
	s := t.settings.Get()
	if s.JudgementPolicy != settings.PolicyPageLoad || s.DisableOnLoad {
		return false
	}
	if t.settings.IsPaused(t.baseContext()) {
		log.Debug().Str("component", "trigger").Msg("paused, skipping page-load judgement")
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started || t.stopped || t.policy != settings.PolicyPageLoad {
		return false
	}
	if t.pending != nil {
		t.pending.Stop()
	}
	t.pending = time.AfterFunc(t.delay, func() { t.fire(settings.PolicyPageLoad) })
	return true
}

// Manual runs a judgement now unless judgements are paused.
func (t *Trigger) Manual(ctx context.Context) error {
	if t.settings.IsPaused(ctx) {
		return errors.NewPaused(t.settings.Get().PauseState.String())
	}
	return t.judge(ctx)
}

// apply re-reads the policy and swaps mechanisms when it changed.
func (t *Trigger) apply() {
	s := t.settings.Get()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if s.JudgementPolicy == t.policy && (s.JudgementPolicy != settings.PolicyInterval || s.JudgementInterval() == t.interval) {
		return
	}

	t.teardown()
	t.policy = s.JudgementPolicy

	if t.policy == settings.PolicyInterval {
		t.interval = s.JudgementInterval()
		t.entry = t.scheduler.Schedule(t.schedule(t.interval), cronlib.FuncJob(func() {
			t.fire(settings.PolicyInterval)
		}))
	}

	log.Info().Str("component", "trigger").Str("policy", t.policy).Dur("interval", t.interval).Msg("judgement policy applied")
}

// teardown removes the installed mechanism. Callers hold t.mu.
func (t *Trigger) teardown() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	if t.entry != 0 {
		t.scheduler.Remove(t.entry)
		t.entry = 0
	}
	t.interval = 0
}

// fire runs one judgement. Interval fires do not consult the pause state.
func (t *Trigger) fire(source string) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.running.Add(1)
	ctx := t.ctx
	t.mu.Unlock()
	defer t.running.Done()

	if err := t.judge(ctx); err != nil {
		log.Warn().Err(err).Str("component", "trigger").Str("source", source).Msg("judgement aborted")
	}
}

func (t *Trigger) baseContext() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx != nil {
		return t.ctx
	}
	return context.Background()
}
