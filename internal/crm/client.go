package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ILLUVRSE/abm-engine/internal/models"
)

// maxBackoff caps the rate-limit retry delay.
const maxBackoff = 300 * time.Second

// batchSize is the HubSpot batch-read page size.
const batchSize = 100

// ClientConfig configures the HubSpot client.
type ClientConfig struct {
	// BaseURL defaults to https://api.hubapi.com.
	BaseURL string

	// Token is the private-app bearer token.
	Token string

	// MinRequestDelay is the self-throttle between outbound calls.
	// Defaults to 100ms.
	MinRequestDelay time.Duration

	// Timeout is the per-attempt request timeout. Defaults to 10s.
	Timeout time.Duration

	// MaxRetries bounds rate-limit retries. Defaults to 5.
	MaxRetries int

	HTTPClient *http.Client
}

// Client is the CRM adapter. It owns authentication, a fixed minimum
// inter-request delay, and exponential backoff on rate-limit responses.
// Callers treat it as a remote, possibly-failing capability and do not
// retry on top of it.
type Client struct {
	baseURL    string
	token      string
	client     *http.Client
	minDelay   time.Duration
	timeout    time.Duration
	maxRetries int

	mu       sync.Mutex
	lastCall time.Time
}

// NewClient builds a Client. Token is required.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("hubspot token required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.hubapi.com"
	}
	minDelay := cfg.MinRequestDelay
	if minDelay <= 0 {
		minDelay = 100 * time.Millisecond
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      cfg.Token,
		client:     client,
		minDelay:   minDelay,
		timeout:    timeout,
		maxRetries: maxRetries,
	}, nil
}

// throttle enforces the minimum inter-request delay.
func (c *Client) throttle() {
	c.mu.Lock()
	wait := c.minDelay - time.Since(c.lastCall)
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()
	if wait > 0 {
		time.Sleep(wait)
	}
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, query url.Values, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("hubspot marshal request: %w", err)
		}
	}

	backoff := c.minDelay * 2
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		c.throttle()

		reqURL := c.baseURL + endpoint
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		var reader *bytes.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		} else {
			reader = bytes.NewReader(nil)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, reqURL, reader)
		if err != nil {
			cancel()
			return fmt.Errorf("hubspot build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		cancel()
		if err != nil {
			return fmt.Errorf("hubspot %s %s: %w", method, endpoint, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("hubspot rate limited: %s", resp.Status)
			if attempt < c.maxRetries {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				time.Sleep(backoff)
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return fmt.Errorf("hubspot %s %s: %s", method, endpoint, resp.Status)
		}

		if out != nil {
			err = json.NewDecoder(resp.Body).Decode(out)
		}
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("hubspot decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

// Contact is a CRM contact record: an opaque id plus a property bag.
type Contact struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// GetContact fetches a single contact, optionally restricted to the named
// properties.
func (c *Client) GetContact(ctx context.Context, contactID string, properties ...string) (Contact, error) {
	query := url.Values{}
	if len(properties) > 0 {
		query.Set("properties", strings.Join(properties, ","))
	}
	var contact Contact
	err := c.doJSON(ctx, http.MethodGet, "/crm/v3/objects/contacts/"+contactID, query, nil, &contact)
	if err != nil {
		return Contact{}, err
	}
	return contact, nil
}

// UpdateContactProperties PATCHes the given properties onto a contact.
func (c *Client) UpdateContactProperties(ctx context.Context, contactID string, properties map[string]string) (Contact, error) {
	body := map[string]interface{}{"properties": properties}
	var contact Contact
	err := c.doJSON(ctx, http.MethodPatch, "/crm/v3/objects/contacts/"+contactID, nil, body, &contact)
	if err != nil {
		return Contact{}, err
	}
	return contact, nil
}

// ABMInsights are the custom fields the platform maintains on a contact.
type ABMInsights struct {
	JourneyStage           models.JourneyStage
	PersonaType            models.PersonaType
	EngagementScore        int
	LastInteraction        time.Time
	PreferredContentFormat string
}

// UpdateABMInsights writes the abm_* custom properties for a contact.
func (c *Client) UpdateABMInsights(ctx context.Context, contactID string, insights ABMInsights) (Contact, error) {
	return c.UpdateContactProperties(ctx, contactID, map[string]string{
		"abm_journey_stage":            string(insights.JourneyStage),
		"abm_persona_classification":   string(insights.PersonaType),
		"abm_content_engagement_score": strconv.Itoa(insights.EngagementScore),
		"abm_last_content_interaction": insights.LastInteraction.Format(time.RFC3339),
		"abm_preferred_content_format": insights.PreferredContentFormat,
	})
}

// abmProperties is the property set requested on batch reads.
var abmProperties = []string{
	"email", "firstname", "lastname", "jobtitle", "company",
	"abm_journey_stage", "abm_persona_classification",
	"abm_content_engagement_score", "abm_last_content_interaction",
}

// BatchGetContacts reads contacts in chunks of 100 with the ABM property
// set.
func (c *Client) BatchGetContacts(ctx context.Context, contactIDs []string) ([]Contact, error) {
	if len(contactIDs) == 0 {
		return nil, nil
	}
	var all []Contact
	for start := 0; start < len(contactIDs); start += batchSize {
		end := start + batchSize
		if end > len(contactIDs) {
			end = len(contactIDs)
		}
		inputs := make([]map[string]string, 0, end-start)
		for _, id := range contactIDs[start:end] {
			inputs = append(inputs, map[string]string{"id": id})
		}
		body := map[string]interface{}{
			"inputs":     inputs,
			"properties": abmProperties,
		}
		var page struct {
			Results []Contact `json:"results"`
		}
		if err := c.doJSON(ctx, http.MethodPost, "/crm/v3/objects/contacts/batch/read", nil, body, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
	}
	return all, nil
}

// GetAccountContacts resolves a company's contact associations and batch
// reads them.
func (c *Client) GetAccountContacts(ctx context.Context, companyID string) ([]Contact, error) {
	var assoc struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	endpoint := "/crm/v3/objects/companies/" + companyID + "/associations/contacts"
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, nil, &assoc); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(assoc.Results))
	for _, r := range assoc.Results {
		ids = append(ids, r.ID)
	}
	return c.BatchGetContacts(ctx, ids)
}

// TaskConfig describes a sales task to create.
type TaskConfig struct {
	Subject  string
	Notes    string
	Priority string // LOW, MEDIUM, HIGH (lowercase accepted)
	TaskType string
	// DueOffset is either a relative offset like "+24_hours" / "+2_days" or
	// an RFC3339 timestamp. Defaults to +24 hours.
	DueOffset string
}

// Task is a created CRM task.
type Task struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// CreateSalesTask creates a task associated to the contact and assigned to
// its owner. Fails when the contact has no owner.
func (c *Client) CreateSalesTask(ctx context.Context, contactID string, cfg TaskConfig) (Task, error) {
	contact, err := c.GetContact(ctx, contactID, "hubspot_owner_id")
	if err != nil {
		return Task{}, err
	}
	ownerID := contact.Properties["hubspot_owner_id"]
	if ownerID == "" {
		return Task{}, fmt.Errorf("no owner assigned to contact %s", contactID)
	}

	priority := strings.ToUpper(cfg.Priority)
	if priority == "" {
		priority = "MEDIUM"
	}
	taskType := cfg.TaskType
	if taskType == "" {
		taskType = "TODO"
	}

	body := map[string]interface{}{
		"properties": map[string]string{
			"hs_task_subject":  cfg.Subject,
			"hs_task_body":     cfg.Notes,
			"hs_task_status":   "NOT_STARTED",
			"hs_task_priority": priority,
			"hs_task_type":     taskType,
			"hs_timestamp":     dueTimestamp(cfg.DueOffset, time.Now()),
			"hubspot_owner_id": ownerID,
		},
		"associations": []map[string]interface{}{
			{
				"to": map[string]string{"id": contactID},
				"types": []map[string]interface{}{
					{"associationCategory": "HUBSPOT_DEFINED", "associationTypeId": 204},
				},
			},
		},
	}
	var task Task
	if err := c.doJSON(ctx, http.MethodPost, "/crm/v3/objects/tasks", nil, body, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// UpdateLeadScore adjusts the contact's lead score by delta, clamped to
// [0,100].
func (c *Client) UpdateLeadScore(ctx context.Context, contactID string, delta int) (Contact, error) {
	contact, err := c.GetContact(ctx, contactID, "hubspotscore")
	if err != nil {
		return Contact{}, err
	}
	current, _ := strconv.Atoi(contact.Properties["hubspotscore"])
	next := current + delta
	if next < 0 {
		next = 0
	}
	if next > 100 {
		next = 100
	}
	return c.UpdateContactProperties(ctx, contactID, map[string]string{
		"hubspotscore":           strconv.Itoa(next),
		"abm_score_contribution": strconv.Itoa(delta),
	})
}

// TrackContentEngagement writes a behavioral engagement event for the
// contact.
func (c *Client) TrackContentEngagement(ctx context.Context, contactID string, event models.EngagementEvent) error {
	body := map[string]interface{}{
		"eventName":  "abm_content_engagement",
		"objectType": "contact",
		"objectId":   contactID,
		"properties": map[string]string{
			"content_id":          event.ContentID,
			"event_type":          string(event.EventType),
			"engagement_duration": strconv.Itoa(event.DurationSeconds),
		},
	}
	return c.doJSON(ctx, http.MethodPost, "/events/v3/send", nil, body, nil)
}

// dueTimestamp converts a relative offset like "+24_hours" or "+2_days"
// (or an RFC3339 timestamp) into the millisecond epoch string the task API
// expects.
func dueTimestamp(offset string, now time.Time) string {
	due := now.Add(24 * time.Hour)
	if strings.HasPrefix(offset, "+") {
		parts := strings.SplitN(offset[1:], "_", 2)
		if len(parts) == 2 {
			if amount, err := strconv.Atoi(parts[0]); err == nil {
				switch {
				case strings.HasPrefix(parts[1], "hour"):
					due = now.Add(time.Duration(amount) * time.Hour)
				case strings.HasPrefix(parts[1], "day"):
					due = now.AddDate(0, 0, amount)
				}
			}
		}
	} else if offset != "" {
		if parsed, err := time.Parse(time.RFC3339, offset); err == nil {
			due = parsed
		}
	}
	return strconv.FormatInt(due.UnixMilli(), 10)
}
