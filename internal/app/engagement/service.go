package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ritim-app/ritim/internal/domain"
	"github.com/ritim-app/ritim/internal/infra/breaker"
	"github.com/ritim-app/ritim/internal/infra/metrics"
	"github.com/ritim-app/ritim/internal/infra/retry"
)

// XPRules are the fixed XP amounts granted per tracked activity.
type XPRules struct {
	Task     int64 `toml:"task"`
	Habit    int64 `toml:"habit"`
	Pomodoro int64 `toml:"pomodoro"`
}

// DefaultXPRules returns the standard XP table.
func DefaultXPRules() XPRules {
	return XPRules{Task: 10, Habit: 15, Pomodoro: 25}
}

// XP sources, used as metric labels and in level-up events.
const (
	SourceTask        = "task"
	SourceHabit       = "habit"
	SourcePomodoro    = "pomodoro"
	SourceAchievement = "achievement"
	SourceManual      = "manual"
	SourceStreak      = "streak"
	SourceBonus       = "bonus"
)

var knownSources = map[string]bool{
	SourceTask: true, SourceHabit: true, SourcePomodoro: true,
	SourceAchievement: true, SourceManual: true, SourceStreak: true, SourceBonus: true,
}

// Options configures a Service. Zero fields take defaults.
type Options struct {
	Clock Clock
	Now   func() time.Time
	Rules XPRules
	Retry retry.Config
	Bus   *Bus

	// Breaker fails commits fast while the store is down. Share one
	// across all users of a store; nil disables it.
	Breaker *breaker.Breaker
}

func (o Options) withDefaults() Options {
	if o.Clock.Location == nil {
		o.Clock = NewClock(time.Local)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Rules == (XPRules{}) {
		o.Rules = DefaultXPRules()
	}
	if o.Retry == (retry.Config{}) {
		o.Retry = retry.Default()
	}
	if o.Bus == nil {
		o.Bus = NewBus()
	}
	return o
}

// Service owns one user's progression aggregate. Every mutator runs under
// a single mutex and follows the same commit protocol:
//
//	clone → mutate → settle (level, rank, achievements to a fixed point)
//	→ validate → persist → swap → emit
//
// The in-memory state is only replaced after the store accepted the write,
// so a failed persist leaves state untouched and emits nothing.
type Service struct {
	mu      sync.Mutex
	userID  string
	store   domain.DocumentStore
	clock   Clock
	now     func() time.Time
	rules   XPRules
	retry   retry.Config
	breaker *breaker.Breaker
	bus     *Bus
	log     *log.Entry

	state  *domain.UserProgression
	loaded bool
}

// NewService creates the aggregate for userID. State is loaded lazily on
// first use, or explicitly with Load.
func NewService(userID string, store domain.DocumentStore, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		userID:  userID,
		store:   store,
		clock:   opts.Clock,
		now:     opts.Now,
		rules:   opts.Rules,
		retry:   opts.Retry,
		breaker: opts.Breaker,
		bus:     opts.Bus,
		log:     log.WithFields(log.Fields{"component": "engagement", "user": userID}),
		state:   freshProgression(),
	}
}

// UserID returns the user this aggregate belongs to.
func (s *Service) UserID() string { return s.userID }

// Bus returns the event bus commits are published on.
func (s *Service) Bus() *Bus { return s.bus }

// Clock returns the day-cutoff clock.
func (s *Service) Clock() Clock { return s.clock }

// ─── Load ───────────────────────────────────────────────────────────────────

// Load reads the aggregate from the store. A missing document yields the
// zero defaults. Level and rank are always re-derived from XP.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Service) load(ctx context.Context) error {
	doc, err := s.store.ReadDocument(ctx, s.userID, domain.StatsPath)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.state = freshProgression()
		s.loaded = true
		s.log.Debug("no stored progression, starting fresh")
		return nil
	case err != nil:
		return fmt.Errorf("load %s: %w", domain.StatsPath, err)
	}

	p, err := decodeProgression(doc)
	if err != nil {
		return fmt.Errorf("decode %s: %w", domain.StatsPath, err)
	}
	derive(p)
	if err := p.Validate(); err != nil {
		return err
	}
	s.state = p
	s.loaded = true
	return nil
}

func (s *Service) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	return s.load(ctx)
}

// Snapshot returns a deep copy of the current aggregate.
func (s *Service) Snapshot(ctx context.Context) (*domain.UserProgression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.state.Clone(), nil
}

// View is the read model the UI renders: the aggregate plus derived values.
type View struct {
	Progression   *domain.UserProgression `json:"progression"`
	Rank          domain.Rank             `json:"rank"`
	NextRank      *domain.Rank            `json:"next_rank,omitempty"`
	XPToNextLevel int64                   `json:"xp_to_next_level"`
	ProgressPct   float64                 `json:"progress_pct"`
	Today         string                  `json:"today"`
	WeekKey       string                  `json:"week_key"`
	LiveDaily     int                     `json:"live_daily"`
	LiveTasks     int                     `json:"live_tasks"`
	LiveHabits    map[string]int          `json:"live_habits"`
}

// View returns the current progression with derived display values.
func (s *Service) View(ctx context.Context) (View, error) {
	p, err := s.Snapshot(ctx)
	if err != nil {
		return View{}, err
	}
	now := s.now()
	today, yesterday := s.clock.DayKey(now), s.clock.PreviousDayKey(now)

	v := View{
		Progression:   p,
		Rank:          RankForLevel(p.Level),
		XPToNextLevel: XPToNextLevel(p.XP),
		ProgressPct:   ProgressPct(p.XP),
		Today:         today,
		WeekKey:       s.clock.WeekKey(now),
		LiveDaily:     LiveCurrent(p.Streaks.Daily, today, yesterday),
		LiveTasks:     LiveCurrent(p.Streaks.Tasks, today, yesterday),
		LiveHabits:    make(map[string]int, len(p.Streaks.Habits)),
	}
	if next, ok := NextRank(p.Level); ok {
		v.NextRank = &next
	}
	for id, rec := range p.Streaks.Habits {
		v.LiveHabits[id] = LiveCurrent(rec, today, yesterday)
	}
	return v, nil
}

// Facts returns the achievement facts for the current state, without any
// per-call tallies.
func (s *Service) Facts(ctx context.Context) (domain.Facts, error) {
	p, err := s.Snapshot(ctx)
	if err != nil {
		return domain.Facts{}, err
	}
	now := s.now()
	return stateFacts(p, s.clock.DayKey(now), s.clock.PreviousDayKey(now)), nil
}

// ─── Mutators ───────────────────────────────────────────────────────────────

// TrackTaskCompletion records a completed task: +1 total, task XP, the
// time-of-day achievements, and the tasks and daily streaks. tally is what
// the caller knows about today's task list. completed=false is a no-op.
func (s *Service) TrackTaskCompletion(ctx context.Context, completed bool, tally domain.DayTally) (domain.Outcome, error) {
	return s.mutate(ctx, func(tx *txn) error {
		if !completed {
			return nil
		}
		tx.next.TotalTasksCompleted++
		tx.addXP(s.rules.Task, SourceTask)
		tx.facts.TaskJustCompleted = true
		tx.facts.HourOfDay = s.clock.HourOf(tx.now)
		tx.facts.HasHour = true
		tx.facts.TasksDoneToday = tally.Done
		tx.facts.TasksTotalToday = tally.Total
		tx.applyStreak(domain.StreakTasks, "")
		tx.applyStreak(domain.StreakDaily, "")
		tx.completion = SourceTask
		return nil
	})
}

// TrackHabitCompletion records a completed habit: +1 total, habit XP, and
// the habit's own streak plus the daily streak. completed=false is a no-op.
func (s *Service) TrackHabitCompletion(ctx context.Context, habitID string, completed bool, tally domain.DayTally) (domain.Outcome, error) {
	if habitID == "" {
		return domain.Outcome{}, domain.ErrInvalidHabitID
	}
	return s.mutate(ctx, func(tx *txn) error {
		if !completed {
			return nil
		}
		tx.next.TotalHabitsCompleted++
		tx.addXP(s.rules.Habit, SourceHabit)
		tx.facts.HabitsDoneToday = tally.Done
		tx.facts.HabitsTotalToday = tally.Total
		tx.applyStreak(domain.StreakHabit, habitID)
		tx.applyStreak(domain.StreakDaily, "")
		tx.habitID = habitID
		tx.completion = SourceHabit
		return nil
	})
}

// TrackPomodoroSession records a finished focus session: +1 session,
// pomodoro XP and the daily streak.
func (s *Service) TrackPomodoroSession(ctx context.Context) (domain.Outcome, error) {
	return s.mutate(ctx, func(tx *txn) error {
		tx.next.PomodoroSessions++
		tx.addXP(s.rules.Pomodoro, SourcePomodoro)
		tx.applyStreak(domain.StreakDaily, "")
		tx.completion = SourcePomodoro
		return nil
	})
}

// AwardXP grants amount XP from source. Level and rank changes and any
// level-gated achievements settle in the same commit.
func (s *Service) AwardXP(ctx context.Context, amount int64, source string) (domain.Outcome, error) {
	if amount <= 0 {
		return domain.Outcome{}, fmt.Errorf("%w: got %d", domain.ErrInvalidAmount, amount)
	}
	if !knownSources[source] {
		source = SourceManual
	}
	return s.mutate(ctx, func(tx *txn) error {
		tx.addXP(amount, source)
		return nil
	})
}

// SpendXP debits amount XP. Spending more than the balance is rejected
// with ReasonInsufficientXP and leaves state untouched. Level and rank may
// drop; no event is emitted for that.
func (s *Service) SpendXP(ctx context.Context, amount int64) (domain.Outcome, error) {
	if amount <= 0 {
		return domain.Outcome{}, fmt.Errorf("%w: got %d", domain.ErrInvalidAmount, amount)
	}
	return s.mutate(ctx, func(tx *txn) error {
		if amount > tx.next.XP {
			return domain.ReasonInsufficientXP
		}
		tx.next.XP -= amount
		tx.spent = amount
		tx.changed = true
		return nil
	})
}

// TrackWeeklySummary reports the user's completion percentage for the
// week; productive_week unlocks at 80% or more.
func (s *Service) TrackWeeklySummary(ctx context.Context, completionPct float64) (domain.Outcome, error) {
	if completionPct < 0 || completionPct > 100 {
		return domain.Outcome{}, fmt.Errorf("%w: got %v", domain.ErrInvalidPercent, completionPct)
	}
	return s.mutate(ctx, func(tx *txn) error {
		tx.facts.WeeklyCompletionPct = completionPct
		return nil
	})
}

// CanUseWeeklyPass reports whether the weekly pass can be used now.
func (s *Service) CanUseWeeklyPass(ctx context.Context) (domain.Eligibility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return domain.Eligibility{}, err
	}
	return CanUsePass(s.state, s.clock, s.now()), nil
}

// CanUndoWeeklyPass reports whether today's weekly pass can be undone.
func (s *Service) CanUndoWeeklyPass(ctx context.Context) (domain.Eligibility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return domain.Eligibility{}, err
	}
	return CanUndoPass(s.state, s.clock, s.now())
}

// UseWeeklyPass protects every streak for today without a real completion.
// The day document is flagged first; if the aggregate write then fails the
// flag is reverted. No XP is granted.
func (s *Service) UseWeeklyPass(ctx context.Context) (domain.Outcome, error) {
	out, err := s.mutate(ctx, func(tx *txn) error {
		tx.noUnlocks = true
		if elig := CanUsePass(tx.next, s.clock, tx.now); !elig.OK {
			return elig.Reason
		}
		for _, u := range applyPass(tx.next, s.clock, tx.now) {
			tx.recordStreak(u)
		}
		day := tx.next.WeeklyPass.LastUsedDay
		ev := newEvent(domain.EventPassUsed, s.userID, tx.now)
		ev.Day, ev.WeekKey = day, tx.next.WeeklyPass.WeekKey
		tx.events = append(tx.events, ev)
		tx.dayDoc = &dayFlag{day: day, passUsed: true}
		tx.changed = true
		return nil
	})
	metrics.PassActions.WithLabelValues("use", resultLabel(err)).Inc()
	return out, err
}

// UndoWeeklyPass restores the streaks captured when today's pass was used
// and clears the day document flag.
func (s *Service) UndoWeeklyPass(ctx context.Context) (domain.Outcome, error) {
	out, err := s.mutate(ctx, func(tx *txn) error {
		tx.noUnlocks = true
		elig, err := CanUndoPass(tx.next, s.clock, tx.now)
		if err != nil {
			return err
		}
		if !elig.OK {
			return elig.Reason
		}
		week := tx.next.WeeklyPass.WeekKey
		day := revertPass(tx.next)
		ev := newEvent(domain.EventPassUndone, s.userID, tx.now)
		ev.Day, ev.WeekKey = day, week
		tx.events = append(tx.events, ev)
		tx.dayDoc = &dayFlag{day: day, passUsed: false}
		tx.changed = true
		return nil
	})
	metrics.PassActions.WithLabelValues("undo", resultLabel(err)).Inc()
	return out, err
}

// Rollover expires a weekly pass left over from an earlier ISO week.
// It reports whether anything was written.
func (s *Service) Rollover(ctx context.Context) (bool, error) {
	var rolled bool
	_, err := s.mutate(ctx, func(tx *txn) error {
		if rolloverPass(tx.next, s.clock, tx.now) {
			rolled = true
			tx.changed = true
		}
		return nil
	})
	return rolled, err
}

func resultLabel(err error) string {
	var reason domain.Reason
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &reason):
		return string(reason)
	default:
		return "error"
	}
}

// ─── Commit Protocol ────────────────────────────────────────────────────────

// dayFlag is the pass annotation written to the per-day document.
type dayFlag struct {
	day      string
	passUsed bool
}

// txn is one in-flight mutation over a clone of the aggregate.
type txn struct {
	userID           string
	now              time.Time
	today, yesterday string
	before, next     *domain.UserProgression
	facts            domain.Facts
	events           []domain.Event
	streaks          []streakUpdate
	xpBySource       map[string]int64
	spent            int64
	unlocked         []string
	dayDoc           *dayFlag
	habitID          string
	completion       string
	changed          bool
	noUnlocks        bool // pass transitions protect streaks, they never earn
}

func (tx *txn) addXP(amount int64, source string) {
	tx.next.XP += amount
	tx.xpBySource[source] += amount
	tx.changed = true
}

// applyStreak runs the day-transition rule on one streak of the clone.
func (tx *txn) applyStreak(typ domain.StreakType, habitID string) {
	var change domain.StreakChange
	switch typ {
	case domain.StreakDaily:
		tx.next.Streaks.Daily, change = ApplyDay(tx.next.Streaks.Daily, tx.today, tx.yesterday)
	case domain.StreakTasks:
		tx.next.Streaks.Tasks, change = ApplyDay(tx.next.Streaks.Tasks, tx.today, tx.yesterday)
	case domain.StreakHabit:
		// Records are created lazily on first completion.
		tx.next.Streaks.Habits[habitID], change = ApplyDay(tx.next.Streaks.Habits[habitID], tx.today, tx.yesterday)
	}
	tx.recordStreak(streakUpdate{Type: typ, HabitID: habitID, Change: change})
	tx.changed = true
}

// recordStreak turns a transition into its event. Same-day re-triggers
// produce none; a gap over a live streak is reported as a reset.
func (tx *txn) recordStreak(u streakUpdate) {
	tx.streaks = append(tx.streaks, u)
	var ev domain.Event
	switch u.Change.Kind {
	case domain.TransitionUnchanged:
		return
	case domain.TransitionReset:
		ev = newEvent(domain.EventStreakReset, tx.userID, tx.now)
		ev.Previous = u.Change.Previous
	default:
		ev = newEvent(domain.EventStreakUpdated, tx.userID, tx.now)
	}
	ev.StreakType = u.Type
	ev.HabitID = u.HabitID
	ev.Transition = u.Change.Kind
	ev.Current = u.Change.Current
	ev.Longest = u.Change.Longest
	tx.events = append(tx.events, ev)
}

// mutate runs fn against a clone of the state and commits the result.
// fn returns a domain.Reason to reject without side effects. Events are
// published after the lock is released, so listeners never hold up the
// next mutation.
func (s *Service) mutate(ctx context.Context, fn func(tx *txn) error) (domain.Outcome, error) {
	out, events, err := s.apply(ctx, fn)
	if err != nil {
		return out, err
	}
	s.bus.Publish(events...)
	return out, nil
}

// apply is the locked half of mutate.
func (s *Service) apply(ctx context.Context, fn func(tx *txn) error) (domain.Outcome, []domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return domain.Outcome{}, nil, err
	}

	now := s.now()
	tx := &txn{
		userID:     s.userID,
		now:        now,
		today:      s.clock.DayKey(now),
		yesterday:  s.clock.PreviousDayKey(now),
		before:     s.state,
		next:       s.state.Clone(),
		xpBySource: make(map[string]int64),
	}

	if err := fn(tx); err != nil {
		var reason domain.Reason
		if errors.As(err, &reason) {
			metrics.Rejections.WithLabelValues(string(reason)).Inc()
		}
		return domain.Outcome{}, nil, err
	}

	s.settle(tx)
	if !tx.changed {
		return s.outcome(tx), nil, nil
	}

	if err := tx.next.Validate(); err != nil {
		s.log.WithError(err).Error("mutation would corrupt state, discarded")
		return domain.Outcome{}, nil, err
	}
	if err := s.commit(ctx, tx); err != nil {
		return domain.Outcome{}, nil, err
	}

	s.state = tx.next
	s.record(tx)
	return s.outcome(tx), tx.events, nil
}

// settle re-derives level and rank and evaluates the achievement catalog
// until no new achievement unlocks. Achievement XP is applied here, in the
// same transition as the unlock, so the two are never persisted apart.
func (s *Service) settle(tx *txn) {
	for {
		derive(tx.next)
		if tx.noUnlocks {
			break
		}
		facts := tx.mergedFacts()
		newly := Evaluate(facts, tx.next.Achievements)
		if len(newly) == 0 {
			break
		}
		for _, def := range newly {
			tx.next.Achievements = append(tx.next.Achievements, def.ID)
			tx.unlocked = append(tx.unlocked, def.ID)
			if def.RewardXP > 0 {
				tx.next.XP += def.RewardXP
				tx.xpBySource[SourceAchievement] += def.RewardXP
			}
		}
		tx.changed = true
	}

	if len(tx.unlocked) > 0 {
		ev := newEvent(domain.EventAchievementsUnlocked, s.userID, tx.now)
		ev.AchievementIDs = append([]string(nil), tx.unlocked...)
		tx.events = append(tx.events, ev)
	}

	if tx.next.Level > tx.before.Level {
		ev := newEvent(domain.EventLevelUp, s.userID, tx.now)
		ev.FromLevel, ev.ToLevel, ev.XP = tx.before.Level, tx.next.Level, tx.next.XP
		ev.Milestone = tx.next.Level/5 > tx.before.Level/5
		tx.events = append(tx.events, ev)

		// Ranks come from the levels, never from the cached field.
		from, to := RankForLevel(tx.before.Level), RankForLevel(tx.next.Level)
		if to.Name != from.Name {
			ev := newEvent(domain.EventRankUp, s.userID, tx.now)
			ev.FromRank, ev.ToRank, ev.ToLevel = from.Name, to.Name, tx.next.Level
			tx.events = append(tx.events, ev)
		}
	}
}

// mergedFacts combines the per-call facts with facts derived from the clone.
func (tx *txn) mergedFacts() domain.Facts {
	f := stateFacts(tx.next, tx.today, tx.yesterday)
	f.TasksDoneToday = tx.facts.TasksDoneToday
	f.TasksTotalToday = tx.facts.TasksTotalToday
	f.HabitsDoneToday = tx.facts.HabitsDoneToday
	f.HabitsTotalToday = tx.facts.HabitsTotalToday
	f.TaskJustCompleted = tx.facts.TaskJustCompleted
	f.HourOfDay = tx.facts.HourOfDay
	f.HasHour = tx.facts.HasHour
	f.WeeklyCompletionPct = tx.facts.WeeklyCompletionPct
	return f
}

// stateFacts derives the facts that follow from stored state alone. Streaks
// use their live value so a broken streak never counts.
func stateFacts(p *domain.UserProgression, today, yesterday string) domain.Facts {
	best := 0
	for _, h := range p.Streaks.Habits {
		best = max(best, LiveCurrent(h, today, yesterday))
	}
	return domain.Facts{
		DailyStreak:         LiveCurrent(p.Streaks.Daily, today, yesterday),
		TaskStreak:          LiveCurrent(p.Streaks.Tasks, today, yesterday),
		BestHabitStreak:     best,
		TotalTasksCompleted: p.TotalTasksCompleted,
		PomodoroSessions:    p.PomodoroSessions,
		Level:               LevelForXP(p.XP),
	}
}

// commit persists tx through the store breaker, when there is one.
func (s *Service) commit(ctx context.Context, tx *txn) error {
	if s.breaker == nil {
		return s.persist(ctx, tx)
	}
	err := s.breaker.Do(ctx, func(ctx context.Context) error { return s.persist(ctx, tx) })
	if errors.Is(err, breaker.ErrOpen) {
		metrics.PersistFailures.Inc()
		return fmt.Errorf("%w: %w", domain.ErrPersist, err)
	}
	return err
}

// persist writes the day document (if any) and the aggregate, each with
// retry. A failed aggregate write reverts the day document flag.
func (s *Service) persist(ctx context.Context, tx *txn) error {
	start := time.Now()
	defer func() { metrics.PersistLatency.Observe(time.Since(start).Seconds()) }()

	doc, err := encodeProgression(tx.next)
	if err != nil {
		return fmt.Errorf("encode progression: %w", err)
	}

	if tx.dayDoc != nil {
		if err := s.write(ctx, domain.DayPath(tx.dayDoc.day), map[string]any{"passUsed": tx.dayDoc.passUsed}); err != nil {
			return err
		}
	}

	if err := s.write(ctx, domain.StatsPath, doc); err != nil {
		if tx.dayDoc != nil {
			revert := map[string]any{"passUsed": !tx.dayDoc.passUsed}
			if rerr := s.write(ctx, domain.DayPath(tx.dayDoc.day), revert); rerr != nil {
				s.log.WithError(rerr).WithField("day", tx.dayDoc.day).Error("could not revert day document")
			}
		}
		return err
	}
	return nil
}

// write merges doc into path, retrying transient failures. The returned
// error wraps domain.ErrPersist.
func (s *Service) write(ctx context.Context, path string, doc map[string]any) error {
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.store.WriteDocument(ctx, s.userID, path, doc, true)
	}, func(attempt int, err error) {
		metrics.PersistRetries.Inc()
		s.log.WithError(err).WithFields(log.Fields{"path": path, "attempt": attempt}).Warn("write failed, retrying")
	})
	if err != nil {
		metrics.PersistFailures.Inc()
		s.log.WithError(err).WithField("path", path).Error("write failed")
		return fmt.Errorf("%w: write %s: %v", domain.ErrPersist, path, err)
	}
	return nil
}

// record updates metrics for a committed transition.
func (s *Service) record(tx *txn) {
	for source, amount := range tx.xpBySource {
		metrics.XPAwarded.WithLabelValues(source).Add(float64(amount))
	}
	if tx.spent > 0 {
		metrics.XPSpent.Add(float64(tx.spent))
	}
	if tx.completion != "" {
		metrics.Completions.WithLabelValues(tx.completion).Inc()
	}
	for _, u := range tx.streaks {
		metrics.StreakTransitions.WithLabelValues(string(u.Type), string(u.Change.Kind)).Inc()
	}
	for _, id := range tx.unlocked {
		metrics.AchievementsUnlocked.WithLabelValues(id).Inc()
	}
	for _, ev := range tx.events {
		switch ev.Type {
		case domain.EventLevelUp:
			metrics.LevelUps.Inc()
			s.log.WithFields(log.Fields{"from": ev.FromLevel, "to": ev.ToLevel}).Info("level up")
		case domain.EventRankUp:
			metrics.RankUps.WithLabelValues(ev.ToRank).Inc()
		}
	}
	if len(tx.unlocked) > 0 {
		s.log.WithField("achievements", tx.unlocked).Info("achievements unlocked")
	}
}

func (s *Service) outcome(tx *txn) domain.Outcome {
	p := tx.next
	if !tx.changed {
		p = tx.before
	}
	out := domain.Outcome{
		XP:          p.XP,
		Level:       p.Level,
		Rank:        RankForLevel(p.Level),
		LeveledUp:   p.Level > tx.before.Level,
		Unlocked:    tx.unlocked,
		Events:      tx.events,
		DailyStreak: p.Streaks.Daily.Current,
		TaskStreak:  p.Streaks.Tasks.Current,
	}
	if tx.habitID != "" {
		out.HabitStreak = p.Streaks.Habits[tx.habitID].Current
	}
	return out
}

// ─── Encoding ───────────────────────────────────────────────────────────────

// freshProgression is the zero aggregate with level and rank derived.
func freshProgression() *domain.UserProgression {
	p := domain.NewUserProgression()
	derive(p)
	return p
}

// derive recomputes the cached level and rank from XP.
func derive(p *domain.UserProgression) {
	p.Normalize()
	p.Level = LevelForXP(p.XP)
	p.Rank = RankForLevel(p.Level).Name
}

func encodeProgression(p *domain.UserProgression) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeProgression(doc map[string]any) (*domain.UserProgression, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	p := domain.NewUserProgression()
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, err
	}
	p.Normalize()
	return p, nil
}
