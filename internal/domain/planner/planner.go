// Package planner schedules future caffeine doses around focus sessions
// and bedtime. It is a constraint-satisfaction heuristic: greedy,
// importance-ordered insertion under a daily cap, a focus floor, and a
// bedtime ceiling. It always returns a best-effort plan, never an error.
package planner

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kdawg1232/jitter/internal/domain/kinetics"
	"github.com/kdawg1232/jitter/internal/domain/level"
	"github.com/kdawg1232/jitter/internal/domain/model"
	"github.com/kdawg1232/jitter/internal/domain/personalization"
)

// Default planning constants. Used when the caller's preferences leave a
// field zero.
const (
	defaultMaxDailyMg      = 400.0
	defaultMinDoseGap      = time.Hour
	defaultEarliestHour    = 6
	defaultLatestHour      = 20
	defaultCeilingMg       = 50.0
	defaultFloorMg         = 30.0
	defaultMinDoseMg       = 40.0
	defaultMaxDoseMg       = 200.0
	defaultSippingMinutes  = 15
	defaultBedtimeHour     = 22
	defaultReferenceDoseMg = 100.0

	evalStepMinutes = 5
	doseRounding    = 5.0

	fullConfidence   = 0.95
	cappedConfidence = 0.6
	pushedPenalty    = 0.8

	// Below this per-mg contribution a dose timed for the session cannot
	// meaningfully raise its low point.
	minUnitContribution = 0.05
)

// phase tracks the state machine of one planning run.
type phase int

const (
	phaseNoSessions phase = iota
	phaseCurveEvaluated
	phaseRecommending
	phaseResolved
)

// Option applies a configuration option to the Planner.
type Option func(*Planner)

// WithPersonalization sets the half-life model.
func WithPersonalization(m *personalization.Model) Option {
	return func(p *Planner) {
		if m != nil {
			p.pers = m
		}
	}
}

// WithAggregator sets the level aggregator used for projections.
func WithAggregator(a *level.Aggregator) Option {
	return func(p *Planner) {
		if a != nil {
			p.agg = a
		}
	}
}

// WithDoseBounds sets the smallest and largest single dose the planner
// will recommend.
func WithDoseBounds(minMg, maxMg float64) Option {
	return func(p *Planner) {
		if minMg > 0 && maxMg > minMg {
			p.minDoseMg = minMg
			p.maxDoseMg = maxMg
		}
	}
}

// WithSippingWindow sets the recommended consumption window in minutes.
func WithSippingWindow(minutes int) Option {
	return func(p *Planner) {
		if minutes > 0 {
			p.sippingMinutes = minutes
		}
	}
}

// WithDefaults sets the fallback preferences applied when the caller's
// PlanningPreferences leave fields zero.
func WithDefaults(prefs model.PlanningPreferences) Option {
	return func(p *Planner) {
		if prefs.MaxDailyCaffeineMg > 0 {
			p.defaultMaxDailyMg = prefs.MaxDailyCaffeineMg
		}
		if prefs.MinDoseGap > 0 {
			p.defaultMinDoseGap = prefs.MinDoseGap
		}
		if prefs.EarliestDoseHour > 0 {
			p.defaultEarliestHour = prefs.EarliestDoseHour
		}
		if prefs.LatestDoseHour > 0 {
			p.defaultLatestHour = prefs.LatestDoseHour
		}
		if prefs.BedtimeCeilingMg > 0 {
			p.defaultCeilingMg = prefs.BedtimeCeilingMg
		}
		if prefs.FocusFloorMg > 0 {
			p.defaultFloorMg = prefs.FocusFloorMg
		}
	}
}

// WithIDGenerator replaces the recommendation ID source. Tests use this
// for deterministic output.
func WithIDGenerator(gen func() string) Option {
	return func(p *Planner) {
		if gen != nil {
			p.newID = gen
		}
	}
}

// Planner proposes dose schedules. Stateless between runs.
type Planner struct {
	pers *personalization.Model
	agg  *level.Aggregator

	minDoseMg      float64
	maxDoseMg      float64
	sippingMinutes int

	defaultMaxDailyMg   float64
	defaultMinDoseGap   time.Duration
	defaultEarliestHour int
	defaultLatestHour   int
	defaultCeilingMg    float64
	defaultFloorMg      float64

	newID func() string
}

// New creates a Planner with default configuration.
func New(opts ...Option) *Planner {
	p := &Planner{
		pers:                personalization.New(),
		agg:                 level.New(),
		minDoseMg:           defaultMinDoseMg,
		maxDoseMg:           defaultMaxDoseMg,
		sippingMinutes:      defaultSippingMinutes,
		defaultMaxDailyMg:   defaultMaxDailyMg,
		defaultMinDoseGap:   defaultMinDoseGap,
		defaultEarliestHour: defaultEarliestHour,
		defaultLatestHour:   defaultLatestHour,
		defaultCeilingMg:    defaultCeilingMg,
		defaultFloorMg:      defaultFloorMg,
		newID:               uuid.NewString,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// run carries the mutable state of a single planning pass.
type run struct {
	phase    phase
	halfLife float64
	now      time.Time
	dayStart time.Time
	prefs    model.PlanningPreferences

	logged   []model.DoseEvent
	accepted []model.DoseEvent // recommendations already placed this run

	plan model.CaffeinePlan
}

// Propose builds a CaffeinePlan for the day containing now. It never
// fails: infeasible constraints degrade confidence and attach warnings
// instead of erroring.
func (p *Planner) Propose(profile model.UserProfile, doses []model.DoseEvent, sessions []model.FocusSession, prefs model.PlanningPreferences, now time.Time) model.CaffeinePlan {
	r := &run{
		phase:    phaseNoSessions,
		halfLife: p.pers.HalfLife(profile),
		now:      now,
		dayStart: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		logged:   doses,
	}
	r.prefs = p.resolvePrefs(prefs, r.dayStart)
	r.plan = model.CaffeinePlan{
		PlanDate: r.dayStart,
		Bedtime:  r.prefs.Bedtime,
	}
	r.plan.LatestSafeCaffeineTime = p.latestSafeTime(r)

	today := sessionsOn(sessions, r.dayStart)
	if len(today) == 0 {
		// Nothing to plan; an empty plan is a valid result.
		return r.plan
	}

	// Baseline curve from already-logged doses.
	r.phase = phaseCurveEvaluated

	// Higher importance first; earlier start wins ties.
	sort.SliceStable(today, func(i, j int) bool {
		if today[i].Importance != today[j].Importance {
			return today[i].Importance > today[j].Importance
		}
		return today[i].Start.Before(today[j].Start)
	})

	r.phase = phaseRecommending
	for _, session := range today {
		p.recommendFor(r, session)
	}

	p.enforceBedtime(r)
	p.resolve(r)
	return r.plan
}

// resolvePrefs fills zero preference fields from the planner defaults.
func (p *Planner) resolvePrefs(prefs model.PlanningPreferences, dayStart time.Time) model.PlanningPreferences {
	if prefs.MaxDailyCaffeineMg <= 0 {
		prefs.MaxDailyCaffeineMg = p.defaultMaxDailyMg
	}
	if prefs.MinDoseGap <= 0 {
		prefs.MinDoseGap = p.defaultMinDoseGap
	}
	if prefs.EarliestDoseHour <= 0 {
		prefs.EarliestDoseHour = p.defaultEarliestHour
	}
	if prefs.LatestDoseHour <= 0 || prefs.LatestDoseHour > 23 {
		prefs.LatestDoseHour = p.defaultLatestHour
	}
	if prefs.BedtimeCeilingMg <= 0 {
		prefs.BedtimeCeilingMg = p.defaultCeilingMg
	}
	if prefs.FocusFloorMg <= 0 {
		prefs.FocusFloorMg = p.defaultFloorMg
	}
	if prefs.Bedtime.IsZero() {
		prefs.Bedtime = dayStart.Add(defaultBedtimeHour * time.Hour)
	}
	return prefs
}

// sessionsOn filters sessions starting on the planning date, dropping
// blocks that have already ended.
func sessionsOn(sessions []model.FocusSession, dayStart time.Time) []model.FocusSession {
	dayEnd := dayStart.Add(24 * time.Hour)
	var out []model.FocusSession
	for _, s := range sessions {
		if s.Start.Before(dayStart) || !s.Start.Before(dayEnd) {
			continue
		}
		if !s.End.After(s.Start) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// recommendFor checks one session's coverage and, if short, inserts a dose
// timed so its modeled peak lands near the session start.
func (p *Planner) recommendFor(r *run, session model.FocusSession) {
	if !session.End.After(r.now) {
		return // already over, nothing to dose for
	}

	combined := append(append([]model.DoseEvent{}, r.logged...), r.accepted...)
	lowMg, lowAt := p.lowPoint(combined, r.halfLife, session)
	if lowMg >= r.prefs.FocusFloorMg {
		return // baseline already covers the span
	}
	shortfall := r.prefs.FocusFloorMg - lowMg

	sipping := time.Duration(p.sippingMinutes) * time.Minute
	when := p.placeDose(r, session, sipping)
	if when.IsZero() {
		r.plan.Warnings = append(r.plan.Warnings,
			fmt.Sprintf("no allowed dosing slot before %q; session left uncovered", session.Name))
		return
	}

	doseMg, confidence := p.sizeDose(r, shortfall, when, lowAt, sipping, session)
	if doseMg <= 0 {
		return
	}

	rec := model.DoseRecommendation{
		ID:                   p.newID(),
		RecommendedTime:      when,
		DoseMg:               doseMg,
		SippingWindowMinutes: p.sippingMinutes,
		Confidence:           confidence,
		Status:               model.StatusPending,
		Reasoning: fmt.Sprintf("to cover your %q focus block (%s-%s) while respecting your %.0fmg daily cap",
			session.Name,
			session.Start.Format("15:04"),
			session.End.Format("15:04"),
			r.prefs.MaxDailyCaffeineMg),
	}
	r.plan.Recommendations = append(r.plan.Recommendations, rec)
	r.accepted = append(r.accepted, model.DoseEvent{
		ID:         rec.ID,
		CaffeineMg: rec.DoseMg,
		ConsumedAt: rec.RecommendedTime,
		Duration:   sipping,
	})
}

// lowPoint scans the session span at a fixed resolution and returns the
// minimum projected level and where it occurs.
func (p *Planner) lowPoint(doses []model.DoseEvent, halfLife float64, session model.FocusSession) (float64, time.Time) {
	step := evalStepMinutes * time.Minute
	lowMg := math.Inf(1)
	lowAt := session.Start
	for at := session.Start; !at.After(session.End); at = at.Add(step) {
		if lvl := p.agg.LevelAt(doses, halfLife, at); lvl < lowMg {
			lowMg = lvl
			lowAt = at
		}
	}
	if math.IsInf(lowMg, 1) {
		lowMg = 0
	}
	return lowMg, lowAt
}

// placeDose picks a consumption time whose modeled peak lands near the
// session start, clamped into the allowed dosing window and respecting the
// minimum gap to every other dose. Returns zero time when no slot exists.
func (p *Planner) placeDose(r *run, session model.FocusSession, sipping time.Duration) time.Time {
	when := session.Start.Add(-p.kinetics().PeakOffset(sipping))

	earliest := r.dayStart.Add(time.Duration(r.prefs.EarliestDoseHour) * time.Hour)
	latest := r.dayStart.Add(time.Duration(r.prefs.LatestDoseHour) * time.Hour)
	if when.Before(earliest) {
		when = earliest
	}
	if when.Before(r.now) {
		when = r.now
	}
	if when.After(latest) {
		when = latest
	}

	// Respect the minimum gap; shift later until clear of every dose.
	for shifted := true; shifted; {
		shifted = false
		for _, d := range append(append([]model.DoseEvent{}, r.logged...), r.accepted...) {
			gap := when.Sub(d.ConsumedAt)
			if gap < 0 {
				gap = -gap
			}
			if gap < r.prefs.MinDoseGap {
				when = d.ConsumedAt.Add(r.prefs.MinDoseGap)
				shifted = true
			}
		}
	}

	if when.After(latest) || when.After(session.End) {
		return time.Time{}
	}
	return when
}

// sizeDose converts the shortfall into a dose in mg, limited by the
// remaining daily-cap headroom. Exhausted headroom degrades confidence
// instead of dropping the recommendation.
func (p *Planner) sizeDose(r *run, shortfall float64, when, lowAt time.Time, sipping time.Duration, session model.FocusSession) (float64, float64) {
	unit := p.kinetics().Contribution(model.DoseEvent{
		CaffeineMg: 1,
		ConsumedAt: when,
		Duration:   sipping,
	}, r.halfLife, lowAt)
	if unit < minUnitContribution {
		// The slot is too far from the low point for sizing to be exact;
		// fall back to targeting the session start with a unit there.
		unit = math.Max(p.kinetics().Contribution(model.DoseEvent{
			CaffeineMg: 1,
			ConsumedAt: when,
			Duration:   sipping,
		}, r.halfLife, session.Start), minUnitContribution)
	}

	needed := shortfall / unit
	needed = math.Max(needed, p.minDoseMg)
	needed = math.Min(needed, p.maxDoseMg)
	needed = math.Round(needed/doseRounding) * doseRounding

	headroom := r.prefs.MaxDailyCaffeineMg - p.consumedToday(r)
	if needed > headroom {
		// Cap-limited: keep the recommendation at the largest fundable
		// size, never below the minimum dose, clearly degraded.
		grant := math.Floor(headroom/doseRounding) * doseRounding
		if grant < p.minDoseMg {
			grant = p.minDoseMg
		}
		r.plan.Suggestion = fmt.Sprintf("your %.0fmg daily cap cannot cover every focus session; consider raising the cap or dropping a low-priority block", r.prefs.MaxDailyCaffeineMg)
		return grant, cappedConfidence
	}
	return needed, fullConfidence
}

// consumedToday sums today's logged doses and the doses planned so far.
func (p *Planner) consumedToday(r *run) float64 {
	var total float64
	dayEnd := r.dayStart.Add(24 * time.Hour)
	for _, d := range r.logged {
		if !d.ConsumedAt.Before(r.dayStart) && d.ConsumedAt.Before(dayEnd) {
			total += d.CaffeineMg
		}
	}
	for _, d := range r.accepted {
		total += d.CaffeineMg
	}
	return total
}

// latestSafeTime computes the last moment a reference dose could be taken
// while keeping the projected level at bedtime under the safety ceiling,
// given the personalized half-life and the already-logged baseline.
func (p *Planner) latestSafeTime(r *run) time.Time {
	ceiling := r.prefs.BedtimeCeilingMg
	baseline := p.agg.LevelAt(r.logged, r.halfLife, r.prefs.Bedtime)

	allowed := ceiling - baseline
	if allowed <= 0 {
		// Already projected above the ceiling at bedtime; nothing later
		// than the start of the day is safe.
		return r.dayStart
	}

	// Solve refDose * 2^(-(bedtime-t)/halfLife) <= allowed for t.
	hoursBefore := r.halfLife * math.Log2(defaultReferenceDoseMg/allowed)
	if hoursBefore < 0 {
		hoursBefore = 0
	}
	safe := r.prefs.Bedtime.Add(-time.Duration(hoursBefore * float64(time.Hour)))
	if !safe.Before(r.prefs.Bedtime) {
		safe = r.prefs.Bedtime.Add(-time.Minute)
	}
	return safe
}

// enforceBedtime pushes recommendations past the safe cutoff earlier, or
// drops them when pushing cannot help, attaching a warning either way.
func (p *Planner) enforceBedtime(r *run) {
	cutoff := r.plan.LatestSafeCaffeineTime
	earliest := r.dayStart.Add(time.Duration(r.prefs.EarliestDoseHour) * time.Hour)

	kept := r.plan.Recommendations[:0]
	for _, rec := range r.plan.Recommendations {
		if !rec.RecommendedTime.After(cutoff) {
			kept = append(kept, rec)
			continue
		}

		// Pushing earlier preserves some coverage as long as the cutoff is
		// still a usable slot; otherwise dropping is the safer loss.
		if cutoff.After(earliest) && cutoff.After(r.now) {
			rec.RecommendedTime = cutoff
			rec.Confidence = round2(rec.Confidence * pushedPenalty)
			rec.Reasoning += "; moved earlier to protect your bedtime"
			r.plan.Warnings = append(r.plan.Warnings,
				fmt.Sprintf("moved a dose to %s so your level stays under %.0fmg at bedtime",
					cutoff.Format("15:04"), r.prefs.BedtimeCeilingMg))
			kept = append(kept, rec)
			continue
		}

		r.plan.Warnings = append(r.plan.Warnings,
			fmt.Sprintf("dropped a %.0fmg dose: no slot keeps your level under %.0fmg at bedtime",
				rec.DoseMg, r.prefs.BedtimeCeilingMg))
	}
	r.plan.Recommendations = kept
}

// resolve finalizes the plan: chronological order and totals.
func (p *Planner) resolve(r *run) {
	r.phase = phaseResolved
	sort.SliceStable(r.plan.Recommendations, func(i, j int) bool {
		return r.plan.Recommendations[i].RecommendedTime.Before(r.plan.Recommendations[j].RecommendedTime)
	})

	var total float64
	for _, rec := range r.plan.Recommendations {
		total += rec.DoseMg
	}
	r.plan.TotalPlannedCaffeineMg = total
}

func (p *Planner) kinetics() *kinetics.Model {
	return p.agg.Kinetics()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
