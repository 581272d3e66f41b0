package models

import (
	"encoding/json"
	"time"
)

// ContentType enumerates the formats a catalog item can take.
type ContentType string

const (
	ContentWhitepaper          ContentType = "whitepaper"
	ContentCaseStudy           ContentType = "case_study"
	ContentROICalculator       ContentType = "roi_calculator"
	ContentDemoVideo           ContentType = "demo_video"
	ContentWebinar             ContentType = "webinar"
	ContentImplementationGuide ContentType = "implementation_guide"
	ContentComparisonChart     ContentType = "comparison_chart"
)

// Industry enumerates the verticals the platform targets.
type Industry string

const (
	IndustryStaffingRecruitment Industry = "staffing_recruitment"
	IndustryB2BBanking          Industry = "b2b_banking"
	IndustryBiotechCDMO         Industry = "biotech_cdmo"
	IndustryB2BTravel           Industry = "b2b_travel"
	IndustryDueDiligence        Industry = "due_diligence"
)

// JourneyStage is a position in the five-stage buying funnel.
type JourneyStage string

const (
	StageProblemAwareness      JourneyStage = "problem_awareness"
	StageSolutionExploration   JourneyStage = "solution_exploration"
	StageVendorEvaluation      JourneyStage = "vendor_evaluation"
	StageDecisionFinalization  JourneyStage = "decision_finalization"
	StagePostPurchaseExpansion JourneyStage = "post_purchase_expansion"
)

// PersonaType is a role-based buyer archetype.
type PersonaType string

const (
	PersonaCSuiteExecutive        PersonaType = "c_suite_executive"
	PersonaTechnicalDirector      PersonaType = "technical_director"
	PersonaOperationsManager      PersonaType = "operations_manager"
	PersonaFinancialDecisionMaker PersonaType = "financial_decision_maker"
)

// ContentItem is one entry in the content catalog. Items are immutable once
// loaded; the content engine never mutates them.
type ContentItem struct {
	ContentID           string             `json:"contentId"`
	Title               string             `json:"title"`
	ContentType         ContentType        `json:"contentType"`
	TargetIndustries    []Industry         `json:"targetIndustries"`
	TargetPersonas      []PersonaType      `json:"targetPersonas"`
	TargetJourneyStages []JourneyStage     `json:"targetJourneyStages"`
	LengthMinutes       int                `json:"lengthMinutes"`
	ComplexityLevel     string             `json:"complexityLevel"`
	PublishDate         time.Time          `json:"publishDate"`
	PerformanceMetrics  map[string]float64 `json:"performanceMetrics"`
	Tags                []string           `json:"tags"`
	FilePath            string             `json:"filePath,omitempty"`
}

// EngagementRecord is one past interaction on a contact profile, supplied by
// the caller as input to recommendation scoring.
type EngagementRecord struct {
	ContentID    string      `json:"contentId,omitempty"`
	ContentType  ContentType `json:"contentType,omitempty"`
	Topics       []string    `json:"topics,omitempty"`
	QualityScore float64     `json:"qualityScore"`
	Timestamp    time.Time   `json:"timestamp"`
}

// ContactProfile describes a single contact for recommendation purposes.
// Profiles are built per call and never persisted by the engines.
type ContactProfile struct {
	ContactID          string             `json:"contactId"`
	CompanyID          string             `json:"companyId"`
	Industry           Industry           `json:"industry"`
	PersonaType        PersonaType        `json:"personaType"`
	JourneyStage       JourneyStage       `json:"journeyStage"`
	CompanySize        string             `json:"companySize"`
	EngagementHistory  []EngagementRecord `json:"engagementHistory"`
	ContentPreferences map[string]float64 `json:"contentPreferences,omitempty"`
	LastInteraction    time.Time          `json:"lastInteraction"`
}

// ContentRecommendation is the output of the content engine.
type ContentRecommendation struct {
	ContentID          string    `json:"contentId"`
	Title              string    `json:"title"`
	RelevanceScore     float64   `json:"relevanceScore"`
	Rationale          string    `json:"rationale"`
	OptimalTiming      time.Time `json:"optimalTiming"`
	DeliveryChannel    string    `json:"deliveryChannel"`
	ExpectedEngagement float64   `json:"expectedEngagementRate"`
	NextLogicalContent string    `json:"nextLogicalContent,omitempty"`
}

// EventType enumerates trackable engagement events.
type EventType string

const (
	EventEmailOpen         EventType = "email_open"
	EventEmailClick        EventType = "email_click"
	EventContentDownload   EventType = "content_download"
	EventWebsiteVisit      EventType = "website_visit"
	EventDemoRequest       EventType = "demo_request"
	EventPricingInquiry    EventType = "pricing_inquiry"
	EventSocialShare       EventType = "social_share"
	EventWebinarAttendance EventType = "webinar_attendance"
)

// AllEventTypes lists every defined event type; diversity scoring divides by
// its length.
var AllEventTypes = []EventType{
	EventEmailOpen,
	EventEmailClick,
	EventContentDownload,
	EventWebsiteVisit,
	EventDemoRequest,
	EventPricingInquiry,
	EventSocialShare,
	EventWebinarAttendance,
}

// EngagementEvent is a single tracked interaction.
type EngagementEvent struct {
	EventID         string                 `json:"eventId"`
	ContactID       string                 `json:"contactId"`
	CompanyID       string                 `json:"companyId"`
	EventType       EventType              `json:"eventType"`
	Timestamp       time.Time              `json:"timestamp"`
	ContentID       string                 `json:"contentId,omitempty"`
	DurationSeconds int                    `json:"durationSeconds,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// TrendDirection labels the short-term engagement trajectory of a contact.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// EngagementScore is the composite output of the analytics engine for one
// contact. Score is in [0,100]; Velocity is an events-per-day slope.
type EngagementScore struct {
	ContactID   string             `json:"contactId"`
	Score       float64            `json:"score"`
	Trend       TrendDirection     `json:"trend"`
	Velocity    float64            `json:"velocity"`
	LastUpdated time.Time          `json:"lastUpdated"`
	Breakdown   map[string]float64 `json:"breakdown"`
}

// AccountAnalysis is the account-level engagement rollup.
type AccountAnalysis struct {
	CompanyID        string   `json:"companyId"`
	OverallScore     float64  `json:"overallScore"`
	StakeholderCount int      `json:"stakeholderCount"`
	Breadth          float64  `json:"engagementBreadth"`
	Depth            float64  `json:"engagementDepth"`
	ProgressionRate  float64  `json:"journeyProgressionRate"`
	KeyInsights      []string `json:"keyInsights"`
}

// TriggerType categorizes what kind of signal a trigger condition reacts to.
type TriggerType string

const (
	TriggerJourneyStageChange  TriggerType = "journey_stage_change"
	TriggerEngagementThreshold TriggerType = "engagement_threshold"
	TriggerContentInteraction  TriggerType = "content_interaction"
	TriggerTimeBased           TriggerType = "time_based"
	TriggerBehavioralSignal    TriggerType = "behavioral_signal"
	TriggerSalesActivity       TriggerType = "sales_activity"
)

// TriggerCondition is a single predicate over trigger data or contact
// properties. Operator is one of equals, greater_than, less_than, contains,
// changed; anything else evaluates false.
type TriggerCondition struct {
	TriggerType  TriggerType            `json:"triggerType"`
	PropertyName string                 `json:"propertyName"`
	Operator     string                 `json:"operator"`
	Value        interface{}            `json:"value"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ActionType enumerates the nurture action handlers.
type ActionType string

const (
	ActionSendEmail        ActionType = "send_email"
	ActionDeliverContent   ActionType = "deliver_content"
	ActionCreateTask       ActionType = "create_task"
	ActionUpdateProperties ActionType = "update_properties"
	ActionNotifySales      ActionType = "notify_sales"
	ActionAddToList        ActionType = "add_to_list"
	ActionScheduleCall     ActionType = "schedule_call"
)

// SequenceAction is one step of a nurture sequence.
type SequenceAction struct {
	ActionID        string                 `json:"actionId"`
	ActionType      ActionType             `json:"actionType"`
	DelayHours      int                    `json:"delayHours"`
	Conditions      []TriggerCondition     `json:"conditions,omitempty"`
	Parameters      map[string]interface{} `json:"parameters,omitempty"`
	SuccessCriteria map[string]float64     `json:"successCriteria,omitempty"`
}

// SequenceStatus applies to both sequences and enrollments.
type SequenceStatus string

const (
	StatusActive    SequenceStatus = "active"
	StatusPaused    SequenceStatus = "paused"
	StatusCompleted SequenceStatus = "completed"
	StatusCancelled SequenceStatus = "cancelled"
)

// TargetAll is the wildcard value for sequence targeting fields.
const TargetAll = "all"

// NurtureSequence is a statically defined multi-step nurture program. All
// triggers must hold for the sequence to fire. Immutable during execution.
type NurtureSequence struct {
	SequenceID         string             `json:"sequenceId"`
	Name               string             `json:"name"`
	Description        string             `json:"description,omitempty"`
	TargetIndustry     string             `json:"targetIndustry"`
	TargetPersona      string             `json:"targetPersona"`
	TargetJourneyStage string             `json:"targetJourneyStage"`
	Triggers           []TriggerCondition `json:"triggers"`
	Actions            []SequenceAction   `json:"actions"`
	DurationDays       int                `json:"sequenceDurationDays"`
	SuccessMetrics     map[string]float64 `json:"successMetrics,omitempty"`
	Status             SequenceStatus     `json:"status"`
}

// ContactSequenceEnrollment tracks one contact's progress through one
// sequence. CurrentActionIndex only increases; once it reaches the action
// count the enrollment is completed and terminal.
type ContactSequenceEnrollment struct {
	EnrollmentID       string          `json:"enrollmentId"`
	ContactID          string          `json:"contactId"`
	SequenceID         string          `json:"sequenceId"`
	EnrolledAt         time.Time       `json:"enrolledAt"`
	CurrentActionIndex int             `json:"currentActionIndex"`
	NextActionDue      time.Time       `json:"nextActionDue"`
	Status             SequenceStatus  `json:"status"`
	CompletionData     json.RawMessage `json:"completionData,omitempty"`
}
