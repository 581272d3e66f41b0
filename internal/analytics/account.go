package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/ILLUVRSE/abm-engine/internal/models"
)

// engagedFloor: contacts scoring above this count toward account breadth.
const engagedFloor = 20.0

// AnalyzeAccount rolls per-contact scores up to the account level and
// produces rule-based insights.
func (e *Engine) AnalyzeAccount(companyID string, scores []models.EngagementScore, events []models.EngagementEvent) models.AccountAnalysis {
	if len(scores) == 0 {
		return models.AccountAnalysis{
			CompanyID:   companyID,
			KeyInsights: []string{"No engagement data available"},
		}
	}

	overall := 0.0
	for _, s := range scores {
		overall += s.Score
	}
	overall /= float64(len(scores))

	var engaged []models.EngagementScore
	for _, s := range scores {
		if s.Score > engagedFloor {
			engaged = append(engaged, s)
		}
	}
	breadth := float64(len(engaged)) / float64(len(scores)) * 100

	depth := 0.0
	if len(engaged) > 0 {
		for _, s := range engaged {
			depth += s.Score
		}
		depth /= float64(len(engaged))
	}

	progression := 0.0
	for _, s := range scores {
		progression += s.Breakdown["progression"]
	}
	progression /= float64(len(scores))

	return models.AccountAnalysis{
		CompanyID:        companyID,
		OverallScore:     overall,
		StakeholderCount: len(scores),
		Breadth:          breadth,
		Depth:            depth,
		ProgressionRate:  progression,
		KeyInsights:      e.accountInsights(scores, events, overall, breadth, depth),
	}
}

func (e *Engine) accountInsights(scores []models.EngagementScore, events []models.EngagementEvent, overall, breadth, depth float64) []string {
	var insights []string

	switch {
	case overall > 70:
		insights = append(insights, "High overall engagement - strong sales opportunity")
	case overall > 40:
		insights = append(insights, "Moderate engagement - nurture with targeted content")
	default:
		insights = append(insights, "Low engagement - requires re-engagement strategy")
	}

	if breadth < 30 {
		insights = append(insights, "Limited stakeholder engagement - expand reach within account")
	} else if breadth > 70 {
		insights = append(insights, "Broad stakeholder engagement - good account penetration")
	}

	if depth > 60 && breadth < 50 {
		insights = append(insights, "Deep but narrow engagement - identify and engage additional stakeholders")
	}

	increasing := 0
	decreasing := 0
	for _, s := range scores {
		switch s.Trend {
		case models.TrendIncreasing:
			increasing++
		case models.TrendDecreasing:
			decreasing++
		}
	}
	if float64(increasing) > float64(len(scores))*0.6 {
		insights = append(insights, "Positive engagement momentum across multiple contacts")
	}
	if float64(decreasing) > float64(len(scores))*0.4 {
		insights = append(insights, "Declining engagement detected - immediate intervention needed")
	}

	weekAgo := e.nowFn().AddDate(0, 0, -7)
	highValue := 0
	for _, ev := range events {
		if !ev.Timestamp.After(weekAgo) {
			continue
		}
		if ev.EventType == models.EventDemoRequest || ev.EventType == models.EventPricingInquiry {
			highValue++
		}
	}
	if highValue > 0 {
		insights = append(insights, fmt.Sprintf("High-intent signals detected: %d high-value interactions", highValue))
	}

	return insights
}

// Report is the periodic engagement analytics summary: score and trend
// distributions, top performers, and recommended follow-ups.
type Report struct {
	GeneratedAt       time.Time         `json:"reportGenerated"`
	TimePeriod        string            `json:"timePeriod"`
	TotalContacts     int               `json:"totalContacts"`
	AverageScore      float64           `json:"averageScore"`
	BreadthPercent    float64           `json:"engagementBreadthPercent"`
	DepthScore        float64           `json:"engagementDepthScore"`
	ScoreDistribution map[string]int    `json:"scoreDistribution"`
	TrendDistribution map[string]int    `json:"trendAnalysis"`
	TopPerformers     []ReportPerformer `json:"topPerformers"`
	KeyInsights       []string          `json:"keyInsights"`
	Recommendations   []string          `json:"recommendations"`
}

type ReportPerformer struct {
	ContactID string                `json:"contactId"`
	Score     float64               `json:"score"`
	Trend     models.TrendDirection `json:"trend"`
}

// GenerateReport builds the summary report for a set of contact scores and
// their account rollup.
func (e *Engine) GenerateReport(scores []models.EngagementScore, account models.AccountAnalysis, timePeriod string) Report {
	distribution := map[string]int{
		"high (70-100)":  0,
		"medium (40-69)": 0,
		"low (0-39)":     0,
	}
	trends := map[string]int{
		"increasing": 0,
		"stable":     0,
		"decreasing": 0,
	}
	for _, s := range scores {
		switch {
		case s.Score >= 70:
			distribution["high (70-100)"]++
		case s.Score >= 40:
			distribution["medium (40-69)"]++
		default:
			distribution["low (0-39)"]++
		}
		trends[string(s.Trend)]++
	}

	ranked := make([]models.EngagementScore, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	performers := make([]ReportPerformer, 0, len(ranked))
	for _, s := range ranked {
		performers = append(performers, ReportPerformer{
			ContactID: s.ContactID,
			Score:     s.Score,
			Trend:     s.Trend,
		})
	}

	return Report{
		GeneratedAt:       e.nowFn(),
		TimePeriod:        timePeriod,
		TotalContacts:     len(scores),
		AverageScore:      account.OverallScore,
		BreadthPercent:    account.Breadth,
		DepthScore:        account.Depth,
		ScoreDistribution: distribution,
		TrendDistribution: trends,
		TopPerformers:     performers,
		KeyInsights:       account.KeyInsights,
		Recommendations:   e.recommendations(account, scores),
	}
}

func (e *Engine) recommendations(account models.AccountAnalysis, scores []models.EngagementScore) []string {
	var recs []string

	if account.Breadth < 40 {
		recs = append(recs, "Expand stakeholder mapping and engage additional decision makers")
	}
	if account.OverallScore < 50 {
		recs = append(recs, "Implement re-engagement campaign with high-value content")
	}

	accelerating := 0
	stalled := 0
	for _, s := range scores {
		if s.Velocity > 0.5 {
			accelerating++
		}
		if s.Velocity < -0.2 {
			stalled++
		}
	}
	if accelerating > 0 {
		recs = append(recs, fmt.Sprintf("Prioritize %d contacts showing increased engagement", accelerating))
	}
	if stalled > 0 {
		recs = append(recs, fmt.Sprintf("Address %d contacts with declining engagement", stalled))
	}

	if account.ProgressionRate > 60 {
		recs = append(recs, "Strong progression signals - consider scheduling demos or sales calls")
	}
	return recs
}
