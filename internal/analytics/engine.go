package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/ILLUVRSE/abm-engine/internal/models"
)

// Weights carries the static scoring tables for the analytics engine,
// injected at construction for testing and tuning.
type Weights struct {
	// EventWeights are per-event-type base quality weights (range 5-50).
	EventWeights map[models.EventType]float64

	// Hierarchy ranks event types by buying intent (1 = lowest).
	Hierarchy map[models.EventType]int

	// HighValueTypes amplify the diversity score by 10% each when present.
	HighValueTypes map[models.EventType]bool

	// TrendThreshold is the relative change between event-window halves that
	// flips the trend to increasing or decreasing.
	TrendThreshold float64
}

// DefaultWeights returns the production scoring tables.
func DefaultWeights() Weights {
	return Weights{
		EventWeights: map[models.EventType]float64{
			models.EventEmailOpen:         5,
			models.EventEmailClick:        10,
			models.EventWebsiteVisit:      15,
			models.EventContentDownload:   25,
			models.EventSocialShare:       20,
			models.EventWebinarAttendance: 30,
			models.EventDemoRequest:       50,
			models.EventPricingInquiry:    45,
		},
		Hierarchy: map[models.EventType]int{
			models.EventEmailOpen:         1,
			models.EventEmailClick:        2,
			models.EventWebsiteVisit:      3,
			models.EventContentDownload:   4,
			models.EventSocialShare:       4,
			models.EventWebinarAttendance: 5,
			models.EventDemoRequest:       6,
			models.EventPricingInquiry:    7,
		},
		HighValueTypes: map[models.EventType]bool{
			models.EventDemoRequest:     true,
			models.EventPricingInquiry:  true,
			models.EventContentDownload: true,
		},
		TrendThreshold: 0.15,
	}
}

// Composite weights of the five sub-scores.
const (
	recencyWeight     = 0.20
	frequencyWeight   = 0.25
	qualityWeight     = 0.25
	diversityWeight   = 0.15
	progressionWeight = 0.15
)

// Engine converts a contact's event history into a composite score, trend,
// and velocity. It is stateless apart from its injected tables; every call
// operates on the events passed in.
type Engine struct {
	weights Weights
	nowFn   func() time.Time
}

func New(weights Weights) *Engine {
	return &Engine{weights: weights, nowFn: time.Now}
}

// WithClock overrides the engine clock for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.nowFn = now
	return e
}

// ScoreContact computes the composite engagement score over the trailing
// windowDays. Events outside the window are ignored; with no events left
// the score is zero with a stable trend and an empty breakdown.
func (e *Engine) ScoreContact(contactID string, events []models.EngagementEvent, windowDays int) models.EngagementScore {
	now := e.nowFn()
	cutoff := now.AddDate(0, 0, -windowDays)
	var recent []models.EngagementEvent
	for _, ev := range events {
		if !ev.Timestamp.Before(cutoff) {
			recent = append(recent, ev)
		}
	}

	if len(recent) == 0 {
		return models.EngagementScore{
			ContactID:   contactID,
			Score:       0.0,
			Trend:       models.TrendStable,
			Velocity:    0.0,
			LastUpdated: now,
			Breakdown:   map[string]float64{},
		}
	}

	recency := e.recencyScore(recent, now)
	frequency := e.frequencyScore(recent, windowDays)
	quality := e.qualityScore(recent)
	diversity := e.diversityScore(recent)
	progression := e.progressionScore(recent)

	composite := recency*recencyWeight +
		frequency*frequencyWeight +
		quality*qualityWeight +
		diversity*diversityWeight +
		progression*progressionWeight
	if composite > 100 {
		composite = 100
	}

	return models.EngagementScore{
		ContactID:   contactID,
		Score:       composite,
		Trend:       e.trend(recent),
		Velocity:    e.velocity(recent),
		LastUpdated: now,
		Breakdown: map[string]float64{
			"recency":     recency,
			"frequency":   frequency,
			"quality":     quality,
			"diversity":   diversity,
			"progression": progression,
		},
	}
}

func (e *Engine) recencyScore(events []models.EngagementEvent, now time.Time) float64 {
	mostRecent := events[0].Timestamp
	for _, ev := range events[1:] {
		if ev.Timestamp.After(mostRecent) {
			mostRecent = ev.Timestamp
		}
	}
	hoursSince := now.Sub(mostRecent).Hours()
	switch {
	case hoursSince <= 24:
		return 100.0
	case hoursSince <= 48:
		return 80.0
	case hoursSince <= 72:
		return 60.0
	case hoursSince <= 168:
		return 40.0
	case hoursSince <= 336:
		return 20.0
	default:
		return 10.0
	}
}

// frequencyScore compresses events-per-day logarithmically so event spam
// cannot run the score away.
func (e *Engine) frequencyScore(events []models.EngagementEvent, windowDays int) float64 {
	days := windowDays
	if days < 1 {
		days = 1
	}
	perDay := float64(len(events)) / float64(days)
	score := math.Log(1+perDay*10) / math.Log(11) * 100
	if score > 100 {
		return 100
	}
	return score
}

func (e *Engine) qualityScore(events []models.EngagementEvent) float64 {
	sum := 0.0
	for _, ev := range events {
		base, ok := e.weights.EventWeights[ev.EventType]
		if !ok {
			base = 10
		}
		score := base
		if ev.DurationSeconds > 0 {
			factor := float64(ev.DurationSeconds) / 300.0
			if factor > 2.0 {
				factor = 2.0
			}
			score = base * factor
		}
		if metaFloat(ev.Metadata, "completion_rate") > 0.8 {
			score *= 1.3
		}
		if metaFloat(ev.Metadata, "scroll_depth") > 0.7 {
			score *= 1.2
		}
		if metaBool(ev.Metadata, "return_visit") {
			score *= 1.1
		}
		sum += score
	}
	mean := sum / float64(len(events))
	if mean > 100 {
		return 100
	}
	return mean
}

func (e *Engine) diversityScore(events []models.EngagementEvent) float64 {
	unique := map[models.EventType]bool{}
	for _, ev := range events {
		unique[ev.EventType] = true
	}
	score := float64(len(unique)) / float64(len(models.AllEventTypes)) * 100

	highValue := 0
	for t := range unique {
		if e.weights.HighValueTypes[t] {
			highValue++
		}
	}
	if highValue > 0 {
		score *= 1 + float64(highValue)*0.1
	}
	if score > 100 {
		return 100
	}
	return score
}

// progressionScore walks events in timestamp order and sums the positive
// level increases through the engagement hierarchy.
func (e *Engine) progressionScore(events []models.EngagementEvent) float64 {
	sorted := sortedByTime(events)

	maxLevel := 0
	for _, lvl := range e.weights.Hierarchy {
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}
	if maxLevel == 0 {
		return 0.0
	}

	total := 0
	previous := 0
	for _, ev := range sorted {
		level := e.weights.Hierarchy[ev.EventType]
		if level > previous {
			total += level - previous
			previous = level
		}
	}
	if total == 0 {
		return 0.0
	}
	score := float64(total) / float64(maxLevel) * 100
	if score > 100 {
		return 100
	}
	return score
}

// trend splits the time-ordered events into halves and compares mean
// event-type weight. Fewer than three events is always stable.
func (e *Engine) trend(events []models.EngagementEvent) models.TrendDirection {
	if len(events) < 3 {
		return models.TrendStable
	}
	sorted := sortedByTime(events)
	mid := len(sorted) / 2

	meanWeight := func(evs []models.EngagementEvent) float64 {
		if len(evs) == 0 {
			return 0
		}
		sum := 0.0
		for _, ev := range evs {
			w, ok := e.weights.EventWeights[ev.EventType]
			if !ok {
				w = 10
			}
			sum += w
		}
		return sum / float64(len(evs))
	}

	firstHalf := meanWeight(sorted[:mid])
	secondHalf := meanWeight(sorted[mid:])

	denom := firstHalf
	if denom < 1 {
		denom = 1
	}
	change := (secondHalf - firstHalf) / denom

	switch {
	case change > e.weights.TrendThreshold:
		return models.TrendIncreasing
	case change < -e.weights.TrendThreshold:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

// velocity is the least-squares slope of daily event counts against date
// ordinal. Zero with fewer than two distinct days.
func (e *Engine) velocity(events []models.EngagementEvent) float64 {
	if len(events) < 2 {
		return 0.0
	}
	dailyCounts := map[int]float64{}
	for _, ev := range events {
		day := int(ev.Timestamp.Unix() / 86400)
		dailyCounts[day]++
	}
	if len(dailyCounts) < 2 {
		return 0.0
	}

	var n, sumX, sumY, sumXY, sumX2 float64
	for day, count := range dailyCounts {
		x := float64(day)
		n++
		sumX += x
		sumY += count
		sumXY += x * count
		sumX2 += x * x
	}
	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0.0
	}
	return (n*sumXY - sumX*sumY) / denominator
}

func sortedByTime(events []models.EngagementEvent) []models.EngagementEvent {
	sorted := make([]models.EngagementEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

func metaFloat(meta map[string]interface{}, key string) float64 {
	if meta == nil {
		return 0
	}
	switch v := meta[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func metaBool(meta map[string]interface{}, key string) bool {
	if meta == nil {
		return false
	}
	b, _ := meta[key].(bool)
	return b
}
