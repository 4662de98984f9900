package jobqueue

import (
	"encoding/json"
	"time"

	"github.com/jackmine/storefront/internal/pkg/billing"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeGrantEntitlement JobType = "grant_entitlement"
	JobTypeSendReceipt      JobType = "send_receipt"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// GrantJobPayload is the stored form of a billing.Grant. Grant and receipt
// jobs share it.
type GrantJobPayload struct {
	EventID   string            `json:"event_id"`
	Kind      billing.GrantKind `json:"kind"`
	Username  string            `json:"username"`
	Email     string            `json:"email"`
	ProductID string            `json:"product_id"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
}

func GrantJobPayloadFrom(g billing.Grant) GrantJobPayload {
	return GrantJobPayload{
		EventID:   g.EventID,
		Kind:      g.Kind,
		Username:  g.Username,
		Email:     g.Email,
		ProductID: g.ProductID,
		Amount:    g.Amount,
		Currency:  g.Currency,
	}
}

// ToMap converts the payload to a map for storage
func (p GrantJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"event_id":   p.EventID,
		"kind":       string(p.Kind),
		"username":   p.Username,
		"email":      p.Email,
		"product_id": p.ProductID,
		"amount":     p.Amount,
		"currency":   p.Currency,
	}
}

// GrantJobPayloadFromMap creates a payload from a stored map
func GrantJobPayloadFromMap(data map[string]interface{}) (*GrantJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload GrantJobPayload
	if err := json.Unmarshal(jsonData, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// IsRetryable checks if a job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing marks the job as processing
func (j *Job) MarkAsProcessing() {
	j.Status = JobStatusProcessing
	now := time.Now()
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// MarkAsCompleted marks the job as completed
func (j *Job) MarkAsCompleted() {
	j.Status = JobStatusCompleted
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.ErrorMsg = ""
}

// MarkAsFailed marks the job as failed with an error message
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMsg = errorMsg
	j.RetryCount++
	j.UpdatedAt = time.Now()
}

// MarkAsRetrying marks the job as retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
