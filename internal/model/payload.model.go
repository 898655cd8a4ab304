package model

// MessagePayload is everything the messaging collaborator receives for one
// reminder. The engine knows nothing about how it is delivered.
type MessagePayload struct {
	To                string            `json:"to"`
	Message           string            `json:"message"`
	TemplateVariables map[string]string `json:"templateVariables"`
	Metadata          PayloadMetadata   `json:"metadata"`
}

type PayloadMetadata struct {
	ReminderID   string      `json:"reminder_id"`
	ReminderType TriggerType `json:"reminder_type"`
	TriggerDate  string      `json:"trigger_date"`
	LeaseID      string      `json:"lease_id"`
	TenantID     string      `json:"tenant_id"`
}

// DeliveryResult is what the collaborator reports back after a send.
type DeliveryResult struct {
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}
