package nurture

import (
	"context"
	"fmt"
	"time"

	"github.com/ILLUVRSE/abm-engine/internal/crm"
	"github.com/ILLUVRSE/abm-engine/internal/models"
)

// perform dispatches one sequence action. It returns the handler's detail
// payload, an error kind when the handler failed, and the failure itself.
// Failures never block the sequence; the caller advances the cursor either
// way.
func (e *Engine) perform(ctx context.Context, action models.SequenceAction, enrollment models.ContactSequenceEnrollment) (map[string]interface{}, ErrorKind, error) {
	switch action.ActionType {
	case models.ActionSendEmail:
		return e.performSendEmail(ctx, action, enrollment)
	case models.ActionDeliverContent:
		return e.performDeliverContent(ctx, action, enrollment)
	case models.ActionCreateTask:
		return e.performCreateTask(ctx, action, enrollment, paramString(action, "priority", "medium"), paramString(action, "due_offset", "+24_hours"), "")
	case models.ActionUpdateProperties:
		return e.performUpdateProperties(ctx, action, enrollment)
	case models.ActionNotifySales:
		// Sales notifications are always urgent regardless of parameters.
		return e.performCreateTask(ctx, action, enrollment, "high", "+4_hours", "[ABM] ")
	case models.ActionAddToList:
		return e.performAddToList(ctx, action, enrollment)
	case models.ActionScheduleCall:
		return e.performCreateTask(ctx, action, enrollment, "high", "+24_hours", "")
	default:
		return nil, ErrorInvalidConfig, fmt.Errorf("unknown action type %q", action.ActionType)
	}
}

// performSendEmail records the send intent. Actual mail delivery rides on
// the CRM's own email tooling; the engine marks the touch on the contact so
// downstream workflows can pick it up.
func (e *Engine) performSendEmail(ctx context.Context, action models.SequenceAction, enrollment models.ContactSequenceEnrollment) (map[string]interface{}, ErrorKind, error) {
	template := paramString(action, "template_id", "")
	props := map[string]string{
		"abm_last_nurture_email":    template,
		"abm_last_nurture_email_at": e.nowFn().UTC().Format(time.RFC3339),
	}
	if _, err := e.crm.UpdateContactProperties(ctx, enrollment.ContactID, props); err != nil {
		return nil, ErrorRemoteUnavailable, fmt.Errorf("record email send: %w", err)
	}
	return map[string]interface{}{
		"template": template,
		"subject":  paramString(action, "subject", ""),
	}, "", nil
}

// performDeliverContent asks the content engine for the contact's top
// recommendation and stages it on the contact record.
func (e *Engine) performDeliverContent(ctx context.Context, action models.SequenceAction, enrollment models.ContactSequenceEnrollment) (map[string]interface{}, ErrorKind, error) {
	if e.content == nil {
		return nil, ErrorInvalidConfig, fmt.Errorf("no content engine configured")
	}
	profile, err := e.buildContactProfile(ctx, enrollment.ContactID)
	if err != nil {
		return nil, ErrorRemoteUnavailable, fmt.Errorf("load contact profile: %w", err)
	}
	recs := e.content.Recommend(profile, 1, 30)
	if len(recs) == 0 {
		return nil, ErrorPreconditionFailed, fmt.Errorf("no eligible content for contact %s", enrollment.ContactID)
	}
	rec := recs[0]
	props := map[string]string{
		"abm_next_content_id":    rec.ContentID,
		"abm_next_content_title": rec.Title,
	}
	if _, err := e.crm.UpdateContactProperties(ctx, enrollment.ContactID, props); err != nil {
		return nil, ErrorRemoteUnavailable, fmt.Errorf("stage content delivery: %w", err)
	}
	return map[string]interface{}{
		"contentId":      rec.ContentID,
		"title":          rec.Title,
		"channel":        rec.DeliveryChannel,
		"relevanceScore": rec.RelevanceScore,
	}, "", nil
}

func (e *Engine) performCreateTask(ctx context.Context, action models.SequenceAction, enrollment models.ContactSequenceEnrollment, priority, dueOffset, subjectPrefix string) (map[string]interface{}, ErrorKind, error) {
	subject := paramString(action, "subject", string(action.ActionType)+" for contact "+enrollment.ContactID)
	task, err := e.crm.CreateSalesTask(ctx, enrollment.ContactID, crm.TaskConfig{
		Subject:   subjectPrefix + subject,
		Notes:     paramString(action, "notes", "Created by nurture sequence "+enrollment.SequenceID),
		Priority:  priority,
		TaskType:  paramString(action, "task_type", "TODO"),
		DueOffset: dueOffset,
	})
	if err != nil {
		return nil, ErrorRemoteUnavailable, fmt.Errorf("create sales task: %w", err)
	}
	return map[string]interface{}{
		"taskId":   task.ID,
		"priority": priority,
	}, "", nil
}

// performUpdateProperties writes the configured properties plus the
// last-action breadcrumb pair.
func (e *Engine) performUpdateProperties(ctx context.Context, action models.SequenceAction, enrollment models.ContactSequenceEnrollment) (map[string]interface{}, ErrorKind, error) {
	props := map[string]string{}
	if raw, ok := action.Parameters["properties"].(map[string]interface{}); ok {
		for k, v := range raw {
			props[k] = fmt.Sprint(v)
		}
	}
	props["last_sequence_action"] = action.ActionID
	props["last_sequence_action_date"] = e.nowFn().UTC().Format(time.RFC3339)
	if _, err := e.crm.UpdateContactProperties(ctx, enrollment.ContactID, props); err != nil {
		return nil, ErrorRemoteUnavailable, fmt.Errorf("update properties: %w", err)
	}
	updated := make([]string, 0, len(props))
	for k := range props {
		updated = append(updated, k)
	}
	return map[string]interface{}{"updatedProperties": updated}, "", nil
}

// performAddToList tags the contact with a list membership property. A
// missing list_id is a sequence configuration bug, not a transient failure.
func (e *Engine) performAddToList(ctx context.Context, action models.SequenceAction, enrollment models.ContactSequenceEnrollment) (map[string]interface{}, ErrorKind, error) {
	listID := paramString(action, "list_id", "")
	if listID == "" {
		return nil, ErrorInvalidConfig, fmt.Errorf("add_to_list action %s has no list_id", action.ActionID)
	}
	props := map[string]string{"abm_nurture_list": listID}
	if _, err := e.crm.UpdateContactProperties(ctx, enrollment.ContactID, props); err != nil {
		return nil, ErrorRemoteUnavailable, fmt.Errorf("add to list: %w", err)
	}
	return map[string]interface{}{"listId": listID}, "", nil
}

// buildContactProfile assembles a recommendation profile from the
// contact's CRM properties, falling back to neutral defaults for anything
// unset.
func (e *Engine) buildContactProfile(ctx context.Context, contactID string) (models.ContactProfile, error) {
	contact, err := e.crm.GetContact(ctx, contactID,
		"company", "industry", "jobtitle",
		"abm_journey_stage", "abm_persona_classification", "abm_content_engagement_score")
	if err != nil {
		return models.ContactProfile{}, err
	}
	p := contact.Properties
	profile := models.ContactProfile{
		ContactID:    contactID,
		CompanyID:    p["company"],
		Industry:     models.Industry(p["industry"]),
		PersonaType:  models.PersonaType(p["abm_persona_classification"]),
		JourneyStage: models.JourneyStage(p["abm_journey_stage"]),
	}
	if profile.Industry == "" {
		profile.Industry = models.IndustryStaffingRecruitment
	}
	if profile.PersonaType == "" {
		profile.PersonaType = models.PersonaOperationsManager
	}
	if profile.JourneyStage == "" {
		profile.JourneyStage = models.StageProblemAwareness
	}
	return profile, nil
}

func paramString(action models.SequenceAction, key, fallback string) string {
	if v, ok := action.Parameters[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
