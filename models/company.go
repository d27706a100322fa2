package models

import "karmaclaims-backend/policy"

// CompanyProfile is a company's grievance contact and regulatory routing
type CompanyProfile struct {
	Name         string           `json:"name"`
	Email        string           `json:"email"`
	Industry     policy.Industry  `json:"industry"`
	Regulator    policy.Regulator `json:"regulator"`
	SocialHandle *string          `json:"social_handle,omitempty"`
	PortalURL    *string          `json:"portal_url,omitempty"`
}
