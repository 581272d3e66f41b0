package content

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ILLUVRSE/abm-engine/internal/models"
)

// ParseCatalog decodes a JSON catalog document (an array of content items)
// as exported by the content management system.
func ParseCatalog(data []byte) ([]models.ContentItem, error) {
	var items []models.ContentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i, item := range items {
		if item.ContentID == "" {
			return nil, fmt.Errorf("parse catalog: item %d missing contentId", i)
		}
	}
	return items, nil
}

// SampleCatalog returns the illustrative one-item library used when no
// external catalog source is configured.
func SampleCatalog(now time.Time) []models.ContentItem {
	return []models.ContentItem{
		{
			ContentID:   "wp_001",
			Title:       "The Future of Staffing: AI-Powered Recruitment",
			ContentType: models.ContentWhitepaper,
			TargetIndustries: []models.Industry{
				models.IndustryStaffingRecruitment,
			},
			TargetPersonas: []models.PersonaType{
				models.PersonaCSuiteExecutive,
				models.PersonaOperationsManager,
			},
			TargetJourneyStages: []models.JourneyStage{
				models.StageProblemAwareness,
				models.StageSolutionExploration,
			},
			LengthMinutes:   15,
			ComplexityLevel: "intermediate",
			PublishDate:     now.AddDate(0, 0, -30),
			PerformanceMetrics: map[string]float64{
				"engagement_rate": 0.25,
				"conversion_rate": 0.08,
			},
			Tags:     []string{"automation", "efficiency", "AI"},
			FilePath: "/content/whitepapers/ai_staffing.pdf",
		},
	}
}
