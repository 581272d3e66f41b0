package content

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ILLUVRSE/abm-engine/internal/models"
)

// relevanceFloor: items scoring at or below this are never recommended.
const relevanceFloor = 0.3

// Engine ranks a fixed content catalog for a contact profile. It is pure and
// safe for concurrent use: the catalog and tables are never mutated.
type Engine struct {
	catalog []models.ContentItem
	tables  Tables
	nowFn   func() time.Time
}

// New builds an engine over the given catalog. Recommendation ties are broken
// by catalog order (the order of the slice passed here), which the sort
// preserves.
func New(catalog []models.ContentItem, tables Tables) *Engine {
	return &Engine{
		catalog: catalog,
		tables:  tables,
		nowFn:   time.Now,
	}
}

// WithClock overrides the engine clock. Tests use this to pin freshness and
// timing calculations.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.nowFn = now
	return e
}

// Recommend returns up to count recommendations for the profile, highest
// relevance first. Items the contact engaged with inside excludeRecentDays
// are excluded; items scoring <= 0.3 are discarded.
func (e *Engine) Recommend(profile models.ContactProfile, count int, excludeRecentDays int) []models.ContentRecommendation {
	available := e.filterRecent(profile, excludeRecentDays)

	type scored struct {
		item  models.ContentItem
		score float64
	}
	var candidates []scored
	for _, item := range available {
		score := e.relevance(item, profile)
		if score > relevanceFloor {
			candidates = append(candidates, scored{item: item, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var recs []models.ContentRecommendation
	for i, c := range candidates {
		if i >= count {
			break
		}
		recs = append(recs, e.buildRecommendation(c.item, profile, c.score, i+1))
	}
	return recs
}

func (e *Engine) filterRecent(profile models.ContactProfile, excludeDays int) []models.ContentItem {
	cutoff := e.nowFn().AddDate(0, 0, -excludeDays)
	recent := map[string]bool{}
	for _, rec := range profile.EngagementHistory {
		if rec.Timestamp.After(cutoff) && rec.ContentID != "" {
			recent[rec.ContentID] = true
		}
	}
	var out []models.ContentItem
	for _, item := range e.catalog {
		if !recent[item.ContentID] {
			out = append(out, item)
		}
	}
	return out
}

func (e *Engine) relevance(item models.ContentItem, profile models.ContactProfile) float64 {
	w := e.tables.Weights
	total := e.industryAlignment(item.TargetIndustries, profile.Industry)*w.Industry +
		e.personaAlignment(item.TargetPersonas, profile.PersonaType)*w.Persona +
		e.stageAlignment(item.TargetJourneyStages, profile.JourneyStage)*w.Stage +
		e.engagementMatch(item, profile.EngagementHistory)*w.Engagement +
		e.freshness(item.PublishDate)*w.Freshness +
		e.performance(item.PerformanceMetrics)*w.Performance
	return clamp(total, 0.0, 1.0)
}

func (e *Engine) industryAlignment(targets []models.Industry, industry models.Industry) float64 {
	for _, t := range targets {
		if t == industry {
			return 1.0
		}
	}
	adjacency := e.tables.IndustryAdjacency[industry]
	best := 0.0
	for _, t := range targets {
		if s := adjacency[t]; s > best {
			best = s
		}
	}
	return best
}

func (e *Engine) personaAlignment(targets []models.PersonaType, persona models.PersonaType) float64 {
	for _, t := range targets {
		if t == persona {
			return 1.0
		}
	}
	similar := e.tables.PersonaProfiles[persona].SimilarPersonas
	best := 0.0
	for _, t := range targets {
		if s := similar[t]; s > best {
			best = s
		}
	}
	return best
}

func (e *Engine) stageAlignment(targets []models.JourneyStage, stage models.JourneyStage) float64 {
	for _, t := range targets {
		if t == stage {
			return 1.0
		}
	}
	adjacent := e.tables.StageAdjacency[stage]
	best := 0.0
	for _, t := range targets {
		if s := adjacent[t]; s > best {
			best = s
		}
	}
	return best
}

// engagementMatch derives per-type and per-tag preference weights from the
// quality-weighted history, blends type match (60%) with the best tag match
// (40%), then dampens by history length. Sparse histories deliberately earn
// less than the 0.5 neutral a brand-new contact gets.
func (e *Engine) engagementMatch(item models.ContentItem, history []models.EngagementRecord) float64 {
	if len(history) == 0 {
		return 0.5
	}

	typePrefs := map[models.ContentType]float64{}
	tagPrefs := map[string]float64{}
	for _, rec := range history {
		if rec.ContentType != "" {
			typePrefs[rec.ContentType] += rec.QualityScore
		}
		for _, topic := range rec.Topics {
			tagPrefs[topic] += rec.QualityScore
		}
	}

	typeMatch := 0.5
	if v, ok := typePrefs[item.ContentType]; ok {
		typeMatch = v
	}

	tagMatch := 0.0
	if len(item.Tags) > 0 {
		for _, tag := range item.Tags {
			score := 0.3
			if v, ok := tagPrefs[tag]; ok {
				score = v
			}
			if score > tagMatch {
				tagMatch = score
			}
		}
	}

	dampen := float64(len(history)) * 0.1
	if dampen < 1.0 {
		dampen = 1.0
	}
	return (typeMatch*0.6 + tagMatch*0.4) / dampen
}

func (e *Engine) freshness(publishDate time.Time) float64 {
	daysOld := int(e.nowFn().Sub(publishDate).Hours() / 24)
	switch {
	case daysOld <= 30:
		return 1.0
	case daysOld <= 90:
		return 0.8
	case daysOld <= 180:
		return 0.6
	case daysOld <= 365:
		return 0.4
	default:
		return 0.2
	}
}

func (e *Engine) performance(metrics map[string]float64) float64 {
	engagement := metricOr(metrics, "engagement_rate", 0.5)
	conversion := metricOr(metrics, "conversion_rate", 0.1)
	completion := metricOr(metrics, "completion_rate", 0.7)
	score := engagement*0.4 + conversion*0.4 + completion*0.2
	if score > 1.0 {
		return 1.0
	}
	return score
}

func (e *Engine) buildRecommendation(item models.ContentItem, profile models.ContactProfile, score float64, rank int) models.ContentRecommendation {
	return models.ContentRecommendation{
		ContentID:          item.ContentID,
		Title:              item.Title,
		RelevanceScore:     score,
		Rationale:          e.rationale(item, profile, score),
		OptimalTiming:      e.optimalTiming(item, profile, rank),
		DeliveryChannel:    e.deliveryChannel(item, profile),
		ExpectedEngagement: e.predictEngagement(item, profile, score),
		NextLogicalContent: e.nextLogicalContent(item, profile),
	}
}

func (e *Engine) optimalTiming(item models.ContentItem, profile models.ContactProfile, rank int) time.Time {
	delayHours := float64(rank * 24)
	if e.tables.HighIntentTypes[item.ContentType] && delayHours > 4 {
		delayHours = 4
	}
	urgency, ok := e.tables.StageUrgency[profile.JourneyStage]
	if !ok {
		urgency = 1.0
	}
	return e.nowFn().Add(time.Duration(delayHours * urgency * float64(time.Hour)))
}

func (e *Engine) deliveryChannel(item models.ContentItem, profile models.ContactProfile) string {
	if ch, ok := e.tables.ContentChannels[item.ContentType]; ok {
		return ch
	}
	if ch, ok := e.tables.PersonaChannels[profile.PersonaType]; ok {
		return ch
	}
	return "email"
}

func (e *Engine) predictEngagement(item models.ContentItem, profile models.ContactProfile, score float64) float64 {
	base := metricOr(item.PerformanceMetrics, "engagement_rate", 0.15)

	history := profile.EngagementHistory
	if len(history) > 5 {
		history = history[len(history)-5:]
	}
	historical := 0.0
	if len(history) > 0 {
		sum := 0.0
		for _, rec := range history {
			sum += rec.QualityScore
		}
		historical = sum / float64(len(history))
	}

	return clamp(base+score*0.3+historical*0.2, 0.05, 0.95)
}

// nextLogicalContent returns the first catalog item (in catalog order) whose
// type follows the current item's type and which targets the profile's
// industry and journey stage. First match, not best match.
func (e *Engine) nextLogicalContent(item models.ContentItem, profile models.ContactProfile) string {
	nextTypes := e.tables.Progression[item.ContentType]
	if len(nextTypes) == 0 {
		return ""
	}
	for _, candidate := range e.catalog {
		if !containsType(nextTypes, candidate.ContentType) {
			continue
		}
		if !containsIndustry(candidate.TargetIndustries, profile.Industry) {
			continue
		}
		if !containsStage(candidate.TargetJourneyStages, profile.JourneyStage) {
			continue
		}
		return candidate.ContentID
	}
	return ""
}

func (e *Engine) rationale(item models.ContentItem, profile models.ContactProfile, score float64) string {
	var notes []string
	if containsIndustry(item.TargetIndustries, profile.Industry) {
		notes = append(notes, fmt.Sprintf("Industry-specific content for %s", profile.Industry))
	}
	if containsPersona(item.TargetPersonas, profile.PersonaType) {
		notes = append(notes, fmt.Sprintf("Tailored for %s role", profile.PersonaType))
	}
	if containsStage(item.TargetJourneyStages, profile.JourneyStage) {
		notes = append(notes, fmt.Sprintf("Matches %s stage", profile.JourneyStage))
	}
	if score > 0.8 {
		notes = append(notes, "High relevance match")
	} else if score > 0.6 {
		notes = append(notes, "Good relevance match")
	}
	return strings.Join(notes, "; ")
}

func metricOr(metrics map[string]float64, key string, fallback float64) float64 {
	if v, ok := metrics[key]; ok {
		return v
	}
	return fallback
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func containsType(list []models.ContentType, v models.ContentType) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsIndustry(list []models.Industry, v models.Industry) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsPersona(list []models.PersonaType, v models.PersonaType) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsStage(list []models.JourneyStage, v models.JourneyStage) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
