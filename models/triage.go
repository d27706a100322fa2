package models

// TriageRole tags who authored a message in the intake conversation
type TriageRole string

const (
	TriageRoleUser      TriageRole = "user"
	TriageRoleAssistant TriageRole = "assistant"
)

// TriageState is the state of the intake conversation
type TriageState string

const (
	TriageCollecting TriageState = "collecting"
	TriageReady      TriageState = "ready"
)

// TriageMessage is one turn of the client-held conversation
type TriageMessage struct {
	Role    TriageRole `json:"role"`
	Content string     `json:"content"`
}

// TriageExtraction holds the four fields required before a draft can be produced
type TriageExtraction struct {
	Company        string `json:"company"`
	UserName       string `json:"user_name"`
	DisputedAmount string `json:"disputed_amount"`
	ReferenceID    string `json:"reference_id"`
}

// ContactDetails are optional contact fields a client can attach to a triage turn
type ContactDetails struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}
