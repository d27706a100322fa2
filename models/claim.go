package models

// ClaimInput is the raw claim payload as received from a client
type ClaimInput struct {
	UserName         string `json:"user_name"`
	UserEmail        string `json:"user_email"`
	UserPhone        string `json:"user_phone"`
	CompanyName      string `json:"company_name"`
	OrderID          string `json:"order_id"`
	DisputedAmount   string `json:"disputed_amount"`
	ComplaintDetails string `json:"complaint_details"`
}

// DisputeClaim is a validated claim. It is never persisted.
type DisputeClaim struct {
	UserName         string  `json:"user_name"`
	UserEmail        string  `json:"user_email"`
	UserPhone        string  `json:"user_phone"`
	CompanyName      string  `json:"company_name"`
	OrderID          string  `json:"order_id"`
	DisputedAmount   string  `json:"disputed_amount"` // canonical numeric string
	Amount           float64 `json:"-"`
	ComplaintDetails string  `json:"complaint_details"`
}

// DraftResult is the assembled grievance notice
type DraftResult struct {
	TargetEmail string `json:"target_email"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}
