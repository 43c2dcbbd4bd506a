package model

// SendRequest is the channel-agnostic input to a dispatcher.
type SendRequest struct {
	JobID              string
	TenantID           string
	UserID             string
	Destination        string
	RecipientName      string
	Subject            string
	Body               string
	BodyRich           string
	ProviderTemplateID string
	Metadata           map[string]any

	// Variables is the merged substitution set, recipient fields included.
	Variables TemplateVariables

	// DeclaredVariables holds only the job's own template variables, in declaration order.
	DeclaredVariables TemplateVariables
}

// DeliveryOutcome is what a dispatcher reports back. Dispatchers never
// return Go errors; every failure is carried in Error.
type DeliveryOutcome struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Delivered builds a successful outcome.
func Delivered(messageID string) DeliveryOutcome {
	return DeliveryOutcome{Success: true, MessageID: messageID}
}

// DeliveryFailed builds a failed outcome from an error.
func DeliveryFailed(err error) DeliveryOutcome {
	if err == nil {
		return DeliveryOutcome{Error: "unknown delivery failure"}
	}
	return DeliveryOutcome{Error: err.Error()}
}
