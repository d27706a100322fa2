// Package ingest turns statutory PDFs into tagged, embedded chunks for the
// legal document store.
package ingest

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"karmaclaims-backend/policy"
)

// Tag is the metadata attached to every chunk of a source document
type Tag struct {
	Industry policy.Industry
	Act      string
	Penalty  string
}

type tagRule struct {
	match string
	tag   Tag
}

// tagRules is checked in order and the first substring match wins, so the
// 2026 ombudsman scheme must come before the generic ombudsman entry.
var tagRules = []tagRule{
	{"ombudsman_2026", Tag{policy.IndustryBanking, "RBI Integrated Ombudsman Scheme 2026", "₹30 Lakhs for financial loss + ₹3 Lakhs for mental agony (Effective July 2026)"}},
	{"rbi_tat_framework", Tag{policy.IndustryBanking, "RBI TAT Framework 2019", "₹100 per day for delay beyond T+1"}},
	{"rbi_compensation_policy", Tag{policy.IndustryBanking, "RBI Compensation Policy", "Mandatory compensation for failed banking services"}},
	{"rbi_zero_customer_liability", Tag{policy.IndustryBanking, "RBI Zero Customer Liability", "Full refund for unauthorized transactions if reported within 3 days"}},
	{"rbi_digital_payment_security", Tag{policy.IndustryBanking, "RBI Digital Payment Security Controls", "Bank liability for security compliance failures"}},
	{"rbi_ombudsman_scheme", Tag{policy.IndustryBanking, "RBI Integrated Ombudsman Scheme 2021", "Binding resolution and compensation up to ₹20 Lakhs"}},

	{"dgca_car_refund", Tag{policy.IndustryAviation, "DGCA CAR Refund Rules", "Immediate full refund for cancelled tickets"}},
	{"dgca_car_section_3", Tag{policy.IndustryAviation, "DGCA CAR Section 3", "Up to ₹10,000 compensation for cancellation or denied boarding"}},
	{"morth", Tag{policy.IndustryTransport, "MoRTH Cab Aggregator Guidelines", "Cap on surge pricing and maximum cancellation fee limits"}},

	{"trai_telecom_redressal", Tag{policy.IndustryTelecom, "TRAI Consumer Complaint Redressal", "Mandatory grievance resolution and billing corrections"}},
	{"trai_telecom_regulatory", Tag{policy.IndustryTelecom, "TRAI Regulatory Rules 2006", "Financial disincentives for network operators"}},
	{"trai_quality_of_service", Tag{policy.IndustryTelecom, "TRAI Quality of Service 2019", "Compensation for service disruption or dropping calls"}},

	{"ecommerce_rules_2020", Tag{policy.IndustryECommerce, "Consumer Protection (E-Commerce) Rules 2020", "Mandatory refund for defective/counterfeit goods"}},
	{"ccpa_dark_patterns", Tag{policy.IndustryConsumerRights, "CCPA Dark Patterns Guidelines 2023", "Strict penalty for misleading UI/UX (e.g., forced subscriptions)"}},
	{"ccpa_misleading_ads", Tag{policy.IndustryConsumerRights, "CCPA Misleading Ads Guidelines", "Fines up to ₹10 Lakhs for false advertising"}},
	{"consumer_protection_act_2019", Tag{policy.IndustryGeneralLegal, "Consumer Protection Act 2019", "Compensation for Deficiency in Service and Unfair Trade Practices"}},

	{"it_act_intermediary", Tag{policy.IndustryCyberCrime, "IT Act Intermediary Guidelines 2021", "Loss of safe harbour & mandatory account reinstatement"}},
	{"it_act_2000", Tag{policy.IndustryCyberCrime, "Information Technology Act 2000", "Compensation for data breach and cyber fraud"}},
	{"railway", Tag{policy.IndustryRailways, "Railway Passengers (Cancellation/Refund) Rules", "Mandatory refund of ticket fare"}},
}

const fallbackPenalty = "Deficiency in Service compensation (CPA 2019)"

var titleCaser = cases.Title(language.English)

// TagForFile maps a source filename to its act and penalty. Unknown files are
// tagged General Legal with an act name derived from the filename.
func TagForFile(filename string) Tag {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name := strings.ToLower(base)
	for _, rule := range tagRules {
		if strings.Contains(name, rule.match) {
			return rule.tag
		}
	}

	act := strings.TrimSuffix(base, path.Ext(base))
	act = titleCaser.String(strings.ReplaceAll(act, "_", " "))
	return Tag{Industry: policy.IndustryGeneralLegal, Act: act, Penalty: fallbackPenalty}
}
