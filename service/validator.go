package service

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"karmaclaims-backend/models"
)

// DefaultMaxComplaintLength caps the complaint narrative, in characters
const DefaultMaxComplaintLength = 1000

// injectionMarkers are matched case-insensitively anywhere in free text
var injectionMarkers = []string{
	"ignore previous",
	"ignore above",
	"ignore all previous",
	"disregard previous",
	"forget previous",
	"system:",
	"assistant:",
	"<|",
	"[inst]",
	"```",
	"###",
}

// Validator checks and canonicalises raw client input. It has no side effects.
type Validator struct {
	maxLength int
}

// NewValidator creates a validator. A non-positive maxLength uses the default.
func NewValidator(maxLength int) *Validator {
	if maxLength <= 0 {
		maxLength = DefaultMaxComplaintLength
	}
	return &Validator{maxLength: maxLength}
}

// MaxLength returns the narrative cap
func (v *Validator) MaxLength() int {
	return v.maxLength
}

// ValidateClaim returns a validated claim or a *ValidationError naming the offending field
func (v *Validator) ValidateClaim(in models.ClaimInput) (*models.DisputeClaim, error) {
	required := []struct {
		field string
		value string
	}{
		{"user_name", in.UserName},
		{"user_email", in.UserEmail},
		{"user_phone", in.UserPhone},
		{"company_name", in.CompanyName},
		{"order_id", in.OrderID},
		{"disputed_amount", in.DisputedAmount},
		{"complaint_details", in.ComplaintDetails},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, &ValidationError{Field: r.field, Message: "must not be empty"}
		}
	}

	// Fields interpolated into the prompt are screened before anything is cut
	for _, f := range []struct {
		field string
		value string
	}{
		{"user_name", in.UserName},
		{"company_name", in.CompanyName},
		{"order_id", in.OrderID},
		{"complaint_details", in.ComplaintDetails},
	} {
		if err := v.CheckInjection(f.field, f.value); err != nil {
			return nil, err
		}
	}

	amount, value, err := SanitizeAmount(in.DisputedAmount)
	if err != nil {
		return nil, err
	}

	return &models.DisputeClaim{
		UserName:         strings.TrimSpace(in.UserName),
		UserEmail:        strings.TrimSpace(in.UserEmail),
		UserPhone:        strings.TrimSpace(in.UserPhone),
		CompanyName:      strings.TrimSpace(in.CompanyName),
		OrderID:          strings.TrimSpace(in.OrderID),
		DisputedAmount:   amount,
		Amount:           value,
		ComplaintDetails: v.Truncate(strings.TrimSpace(in.ComplaintDetails)),
	}, nil
}

// CheckInjection rejects text containing any denylisted marker. It never strips.
func (v *Validator) CheckInjection(field, text string) error {
	if containsInjection(text) {
		return &ValidationError{
			Field:    field,
			Message:  "contains disallowed instructions or formatting",
			Security: true,
		}
	}
	return nil
}

func containsInjection(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range injectionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Truncate cuts text to the configured maximum number of characters
func (v *Validator) Truncate(text string) string {
	if utf8.RuneCountInString(text) <= v.maxLength {
		return text
	}
	return string([]rune(text)[:v.maxLength])
}

// SanitizeAmount strips everything but digits and the decimal point and
// returns the canonical numeric string. A dot only counts as a decimal point
// between two digits, so the "Rs." prefix never shifts the value. The value
// must be greater than zero.
func SanitizeAmount(raw string) (string, float64, error) {
	kept := []rune(strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw))

	var cleaned strings.Builder
	for i, r := range kept {
		if r == '.' && (i == 0 || i == len(kept)-1 || !isDigit(kept[i-1]) || !isDigit(kept[i+1])) {
			continue
		}
		cleaned.WriteRune(r)
	}

	value, err := strconv.ParseFloat(cleaned.String(), 64)
	if err != nil || value <= 0 {
		return "", 0, &ValidationError{Field: "disputed_amount", Message: "must be a number greater than zero"}
	}
	return strconv.FormatFloat(value, 'f', -1, 64), value, nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
