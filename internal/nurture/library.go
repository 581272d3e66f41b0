package nurture

import "github.com/ILLUVRSE/abm-engine/internal/models"

// BuiltinSequences returns the sequence library loaded at startup. Sequences
// are immutable during execution; targeting fields accept the "all"
// wildcard.
func BuiltinSequences() []models.NurtureSequence {
	return []models.NurtureSequence{
		{
			SequenceID:         "awareness_tech_001",
			Name:               "Technical Director Awareness Nurture",
			Description:        "Educational content sequence for technical decision makers in awareness stage",
			TargetIndustry:     models.TargetAll,
			TargetPersona:      string(models.PersonaTechnicalDirector),
			TargetJourneyStage: string(models.StageProblemAwareness),
			Triggers: []models.TriggerCondition{
				{
					TriggerType:  models.TriggerJourneyStageChange,
					PropertyName: "abm_journey_stage",
					Operator:     "equals",
					Value:        string(models.StageProblemAwareness),
				},
				{
					TriggerType:  models.TriggerEngagementThreshold,
					PropertyName: "abm_content_engagement_score",
					Operator:     "greater_than",
					Value:        20,
				},
			},
			Actions: []models.SequenceAction{
				{
					ActionID:   "awareness_tech_001_action_001",
					ActionType: models.ActionDeliverContent,
					DelayHours: 2,
					Parameters: map[string]interface{}{
						"content_type": "whitepaper",
						"topic":        "technical_overview",
					},
					SuccessCriteria: map[string]float64{"engagement_rate": 0.3},
				},
				{
					ActionID:   "awareness_tech_001_action_002",
					ActionType: models.ActionSendEmail,
					DelayHours: 72,
					Parameters: map[string]interface{}{
						"template_id":     "tech_follow_up_email",
						"personalization": map[string]interface{}{"content_focus": "implementation"},
					},
					SuccessCriteria: map[string]float64{"open_rate": 0.25},
				},
				{
					ActionID:   "awareness_tech_001_action_003",
					ActionType: models.ActionDeliverContent,
					DelayHours: 120,
					Parameters: map[string]interface{}{
						"content_type": "implementation_guide",
						"topic":        "getting_started",
					},
					SuccessCriteria: map[string]float64{"download_rate": 0.15},
				},
			},
			DurationDays: 14,
			SuccessMetrics: map[string]float64{
				"progression_rate":    0.4,
				"engagement_increase": 0.3,
			},
			Status: models.StatusActive,
		},
		{
			SequenceID:         "high_engagement_001",
			Name:               "High Engagement Acceleration",
			Description:        "Fast-track sequence for highly engaged contacts",
			TargetIndustry:     models.TargetAll,
			TargetPersona:      models.TargetAll,
			TargetJourneyStage: models.TargetAll,
			Triggers: []models.TriggerCondition{
				{
					TriggerType:  models.TriggerEngagementThreshold,
					PropertyName: "abm_content_engagement_score",
					Operator:     "greater_than",
					Value:        75,
				},
			},
			Actions: []models.SequenceAction{
				{
					ActionID:   "high_engagement_001_action_001",
					ActionType: models.ActionNotifySales,
					DelayHours: 1,
					Parameters: map[string]interface{}{
						"subject": "High engagement contact ready for outreach",
						"message": "Contact showing strong engagement signals - immediate follow-up recommended",
						"urgency": "high",
					},
					SuccessCriteria: map[string]float64{"task_completion": 0.8},
				},
				{
					ActionID:   "high_engagement_001_action_002",
					ActionType: models.ActionDeliverContent,
					DelayHours: 24,
					Parameters: map[string]interface{}{
						"content_type": "demo_video",
						"priority":     "high_intent",
					},
					SuccessCriteria: map[string]float64{"engagement_rate": 0.6},
				},
			},
			DurationDays: 7,
			SuccessMetrics: map[string]float64{
				"demo_request_rate":  0.3,
				"sales_contact_rate": 0.8,
			},
			Status: models.StatusActive,
		},
	}
}
