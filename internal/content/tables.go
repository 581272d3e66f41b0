package content

import "github.com/ILLUVRSE/abm-engine/internal/models"

// ScoreWeights are the fixed weights of the six relevance sub-scores.
type ScoreWeights struct {
	Industry    float64
	Persona     float64
	Stage       float64
	Engagement  float64
	Freshness   float64
	Performance float64
}

// PersonaProfile carries the tuning knobs for one persona. SimilarPersonas
// gives directional partial credit when the exact persona does not match.
type PersonaProfile struct {
	PreferredContentTypes []models.ContentType
	LengthPreference      string
	SimilarPersonas       map[models.PersonaType]float64
}

// Tables holds every static lookup the engine consults. They are injected at
// construction so tests and tuning never require code changes.
type Tables struct {
	Weights ScoreWeights

	// IndustryAdjacency maps a contact's industry to partial-credit scores
	// for related industries. Lookups are directional: adjacency from A to B
	// does not imply adjacency from B to A.
	IndustryAdjacency map[models.Industry]map[models.Industry]float64

	// PersonaProfiles keys persona tuning (including directional persona
	// adjacency) by the contact's persona.
	PersonaProfiles map[models.PersonaType]PersonaProfile

	// StageAdjacency gives partial credit for neighboring funnel stages.
	StageAdjacency map[models.JourneyStage]map[models.JourneyStage]float64

	// StageUrgency multiplies the rank-staggered delivery delay.
	StageUrgency map[models.JourneyStage]float64

	// HighIntentTypes have their delivery delay capped at four hours.
	HighIntentTypes map[models.ContentType]bool

	// ContentChannels maps content type to delivery channel; when absent the
	// PersonaChannels map is consulted, and "email" is the final default.
	ContentChannels map[models.ContentType]string
	PersonaChannels map[models.PersonaType]string

	// Progression maps a content type to the types that logically follow it.
	Progression map[models.ContentType][]models.ContentType
}

// DefaultTables returns the production lookup tables.
func DefaultTables() Tables {
	return Tables{
		Weights: ScoreWeights{
			Industry:    0.25,
			Persona:     0.20,
			Stage:       0.20,
			Engagement:  0.15,
			Freshness:   0.10,
			Performance: 0.10,
		},
		IndustryAdjacency: map[models.Industry]map[models.Industry]float64{
			models.IndustryB2BBanking: {
				models.IndustryDueDiligence:        0.6,
				models.IndustryStaffingRecruitment: 0.3,
			},
			models.IndustryStaffingRecruitment: {
				models.IndustryB2BTravel:    0.4,
				models.IndustryDueDiligence: 0.3,
			},
		},
		PersonaProfiles: map[models.PersonaType]PersonaProfile{
			models.PersonaCSuiteExecutive: {
				PreferredContentTypes: []models.ContentType{models.ContentWhitepaper, models.ContentCaseStudy},
				LengthPreference:      "short",
				SimilarPersonas: map[models.PersonaType]float64{
					models.PersonaOperationsManager: 0.6,
				},
			},
			models.PersonaTechnicalDirector: {
				PreferredContentTypes: []models.ContentType{models.ContentImplementationGuide, models.ContentDemoVideo},
				LengthPreference:      "detailed",
				SimilarPersonas: map[models.PersonaType]float64{
					models.PersonaOperationsManager: 0.7,
				},
			},
		},
		StageAdjacency: map[models.JourneyStage]map[models.JourneyStage]float64{
			models.StageProblemAwareness: {
				models.StageSolutionExploration: 0.6,
			},
			models.StageSolutionExploration: {
				models.StageProblemAwareness: 0.4,
				models.StageVendorEvaluation: 0.6,
			},
			models.StageVendorEvaluation: {
				models.StageSolutionExploration:  0.4,
				models.StageDecisionFinalization: 0.6,
			},
			models.StageDecisionFinalization: {
				models.StageVendorEvaluation: 0.4,
			},
			models.StagePostPurchaseExpansion: {
				models.StageDecisionFinalization: 0.3,
			},
		},
		StageUrgency: map[models.JourneyStage]float64{
			models.StageVendorEvaluation:      0.5,
			models.StageDecisionFinalization:  0.3,
			models.StageProblemAwareness:      2.0,
			models.StageSolutionExploration:   1.0,
			models.StagePostPurchaseExpansion: 1.5,
		},
		HighIntentTypes: map[models.ContentType]bool{
			models.ContentROICalculator: true,
			models.ContentDemoVideo:     true,
		},
		ContentChannels: map[models.ContentType]string{
			models.ContentROICalculator: "website",
			models.ContentDemoVideo:     "email",
			models.ContentWhitepaper:    "email",
			models.ContentCaseStudy:     "sales_enablement",
		},
		PersonaChannels: map[models.PersonaType]string{
			models.PersonaCSuiteExecutive:        "email",
			models.PersonaTechnicalDirector:      "website",
			models.PersonaOperationsManager:      "email",
			models.PersonaFinancialDecisionMaker: "sales_enablement",
		},
		Progression: map[models.ContentType][]models.ContentType{
			models.ContentWhitepaper:    {models.ContentCaseStudy, models.ContentWebinar},
			models.ContentCaseStudy:     {models.ContentDemoVideo, models.ContentROICalculator},
			models.ContentROICalculator: {models.ContentDemoVideo, models.ContentImplementationGuide},
			models.ContentDemoVideo:     {models.ContentImplementationGuide, models.ContentComparisonChart},
			models.ContentWebinar:       {models.ContentCaseStudy, models.ContentDemoVideo},
		},
	}
}
