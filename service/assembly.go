package service

import (
	"fmt"
	"strings"
	"unicode"

	"karmaclaims-backend/models"
)

var signOffMarkers = []string{"sincerely", "regards"}

// StripSignOff cuts the text at the first complimentary close and drops
// everything after it. A marker counts as a close when at most two words
// follow it on its line and it either opens the line after a short lead-in
// ("Yours sincerely", "Warm regards") or trails a comma. Prose such as
// "with regards to order SW123" is left alone.
func StripSignOff(text string) string {
	lower := asciiLower(text)

	for off := 0; ; {
		idx, marker := nextSignOffMarker(lower, off)
		if idx < 0 {
			return strings.TrimRightFunc(text, unicode.IsSpace)
		}
		off = idx + len(marker)

		if idx > 0 && isWordByte(lower[idx-1]) {
			continue
		}
		lineStart := strings.LastIndexByte(text[:idx], '\n') + 1
		lineEnd := len(text)
		if j := strings.IndexByte(text[off:], '\n'); j >= 0 {
			lineEnd = off + j
		}
		lead := strings.TrimSpace(text[lineStart:idx])
		shortLead := wordCount(lead) <= 2
		if wordCount(text[off:lineEnd]) > 2 || (!shortLead && !strings.HasSuffix(lead, ",")) {
			continue
		}

		cut := idx
		if shortLead {
			cut = lineStart
		}
		return strings.TrimRightFunc(text[:cut], unicode.IsSpace)
	}
}

func nextSignOffMarker(lower string, off int) (int, string) {
	idx, found := -1, ""
	for _, marker := range signOffMarkers {
		if i := strings.Index(lower[off:], marker); i >= 0 && (idx < 0 || off+i < idx) {
			idx, found = off+i, marker
		}
	}
	return idx, found
}

func isWordByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func wordCount(s string) int {
	return len(strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}

// SignatureBlock renders the deterministic sign-off. Empty contact lines are omitted.
func SignatureBlock(name, phone, email string) string {
	lines := []string{"Sincerely,", strings.TrimSpace(name)}
	if p := strings.TrimSpace(phone); p != "" {
		lines = append(lines, "Phone: "+p)
	}
	if e := strings.TrimSpace(email); e != "" {
		lines = append(lines, "Email: "+e)
	}
	return strings.Join(lines, "\n")
}

// ShortCompanyName drops any parenthetical legal entity name
func ShortCompanyName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexByte(name, '('); i > 0 {
		if short := strings.TrimSpace(name[:i]); short != "" {
			return short
		}
	}
	return name
}

// BuildSubject renders the notice subject line
func BuildSubject(company, referenceID, amount string) string {
	return fmt.Sprintf("Formal Grievance Notice | %s | Ref %s | Amount Rs. %s",
		ShortCompanyName(company), strings.TrimSpace(referenceID), strings.TrimSpace(amount))
}

// AssembleDraft combines generated text with the deterministic subject and signature.
// Assembling an already assembled body yields the same body.
func AssembleDraft(raw string, claim *models.DisputeClaim, profile models.CompanyProfile) models.DraftResult {
	body := StripSignOff(strings.TrimSpace(raw))
	signature := SignatureBlock(claim.UserName, claim.UserPhone, claim.UserEmail)
	if body != "" {
		body += "\n\n"
	}

	return models.DraftResult{
		TargetEmail: profile.Email,
		Subject:     BuildSubject(profile.Name, claim.OrderID, claim.DisputedAmount),
		Body:        body + signature,
	}
}

// asciiLower lowercases ASCII letters only so byte offsets match the input
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
