package policy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Industry is the closed set of industry tags a company or legal document can carry
type Industry string

const (
	IndustryBanking        Industry = "Banking"
	IndustryAviation       Industry = "Aviation"
	IndustryTelecom        Industry = "Telecom"
	IndustryECommerce      Industry = "E-Commerce"
	IndustryFoodDelivery   Industry = "Food Delivery"
	IndustryQuickCommerce  Industry = "Quick Commerce"
	IndustryTransport      Industry = "Transport"
	IndustryRailways       Industry = "Railways"
	IndustryTravel         Industry = "Travel"
	IndustryCyberCrime     Industry = "Cyber Crime"
	IndustryConsumerRights Industry = "Consumer Rights"
	IndustryGeneralLegal   Industry = "General Legal"
	IndustryGeneralRetail  Industry = "General Retail"
)

var industries = []Industry{
	IndustryBanking,
	IndustryAviation,
	IndustryTelecom,
	IndustryECommerce,
	IndustryFoodDelivery,
	IndustryQuickCommerce,
	IndustryTransport,
	IndustryRailways,
	IndustryTravel,
	IndustryCyberCrime,
	IndustryConsumerRights,
	IndustryGeneralLegal,
	IndustryGeneralRetail,
}

// Regulator is the closed set of regulators a grievance can be escalated to
type Regulator string

const (
	RegulatorRBI   Regulator = "RBI"
	RegulatorDGCA  Regulator = "DGCA"
	RegulatorTRAI  Regulator = "TRAI"
	RegulatorCCPA  Regulator = "CCPA"
	RegulatorMeitY Regulator = "MeitY"
	RegulatorMoRTH Regulator = "MoRTH"
)

var regulators = []Regulator{
	RegulatorRBI,
	RegulatorDGCA,
	RegulatorTRAI,
	RegulatorCCPA,
	RegulatorMeitY,
	RegulatorMoRTH,
}

// Track is an escalation path. Every regulator maps to exactly one track.
type Track string

const (
	TrackBankingOmbudsman  Track = "banking_ombudsman"
	TrackAviationAuthority Track = "aviation_authority"
	TrackTelecomRegulator  Track = "telecom_regulator"
	TrackConsumerCourt     Track = "consumer_court"
)

// Tracks lists every escalation track
var Tracks = []Track{
	TrackBankingOmbudsman,
	TrackAviationAuthority,
	TrackTelecomRegulator,
	TrackConsumerCourt,
}

var (
	ErrUnknownIndustry  = errors.New("unknown industry")
	ErrUnknownRegulator = errors.New("unknown regulator")
)

// Industries returns every known industry tag
func Industries() []Industry {
	return append([]Industry(nil), industries...)
}

// Regulators returns every known regulator tag
func Regulators() []Regulator {
	return append([]Regulator(nil), regulators...)
}

// ParseIndustry resolves a tag case-insensitively. Unknown tags are an error.
func ParseIndustry(s string) (Industry, error) {
	s = strings.TrimSpace(s)
	for _, ind := range industries {
		if strings.EqualFold(string(ind), s) {
			return ind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownIndustry, s)
}

// ParseRegulator resolves a tag case-insensitively. Unknown tags are an error.
func ParseRegulator(s string) (Regulator, error) {
	s = strings.TrimSpace(s)
	for _, reg := range regulators {
		if strings.EqualFold(string(reg), s) {
			return reg, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegulator, s)
}

// TrackFor returns the single escalation track for a regulator.
// Anything that is not a sector ombudsman or sector regulator goes to consumer court.
func TrackFor(reg Regulator) Track {
	switch reg {
	case RegulatorRBI:
		return TrackBankingOmbudsman
	case RegulatorDGCA:
		return TrackAviationAuthority
	case RegulatorTRAI:
		return TrackTelecomRegulator
	default:
		return TrackConsumerCourt
	}
}

// Record is the citation and framing block for one industry
type Record struct {
	Citations string `yaml:"citations"`
	Framing   string `yaml:"framing"`
}

// ThresholdRule activates a no-fault compensation clause for small claims
// raised against a single regulator
type ThresholdRule struct {
	Regulator Regulator
	MaxAmount float64
	Clause    string
}

// Set is the loaded, validated policy data
type Set struct {
	Generic    Record
	Industries map[Industry]Record
	Tracks     map[Track]string
	Threshold  ThresholdRule
}

//go:embed policies.yaml
var defaultPolicies []byte

type rawSet struct {
	Generic    Record            `yaml:"generic"`
	Industries map[string]Record `yaml:"industries"`
	Tracks     map[string]string `yaml:"tracks"`
	Threshold  struct {
		Regulator string  `yaml:"regulator"`
		MaxAmount float64 `yaml:"max_amount"`
		Clause    string  `yaml:"clause"`
	} `yaml:"threshold"`
}

// Default loads the embedded policy data
func Default() (*Set, error) {
	return Parse(defaultPolicies)
}

// Load reads policy data from path, or the embedded default when path is empty
func Load(path string) (*Set, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates policy YAML
func Parse(data []byte) (*Set, error) {
	var raw rawSet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode policy data: %w", err)
	}

	if strings.TrimSpace(raw.Generic.Citations) == "" {
		return nil, errors.New("policy data is missing generic citations")
	}

	set := &Set{
		Generic:    trimRecord(raw.Generic),
		Industries: make(map[Industry]Record, len(raw.Industries)),
		Tracks:     make(map[Track]string, len(Tracks)),
	}

	for tag, rec := range raw.Industries {
		ind, err := ParseIndustry(tag)
		if err != nil {
			return nil, fmt.Errorf("policy industries: %w", err)
		}
		set.Industries[ind] = trimRecord(rec)
	}

	for tag, text := range raw.Tracks {
		track := Track(strings.TrimSpace(tag))
		if !knownTrack(track) {
			return nil, fmt.Errorf("policy tracks: unknown track %q", tag)
		}
		set.Tracks[track] = strings.TrimSpace(text)
	}
	for _, track := range Tracks {
		if set.Tracks[track] == "" {
			return nil, fmt.Errorf("policy tracks: missing text for %s", track)
		}
	}

	reg, err := ParseRegulator(raw.Threshold.Regulator)
	if err != nil {
		return nil, fmt.Errorf("policy threshold: %w", err)
	}
	if raw.Threshold.MaxAmount <= 0 {
		return nil, errors.New("policy threshold: max_amount must be positive")
	}
	set.Threshold = ThresholdRule{
		Regulator: reg,
		MaxAmount: raw.Threshold.MaxAmount,
		Clause:    strings.TrimSpace(raw.Threshold.Clause),
	}

	return set, nil
}

// ForIndustry returns the industry record, or the generic record for unlisted industries
func (s *Set) ForIndustry(ind Industry) (Record, bool) {
	if rec, ok := s.Industries[ind]; ok {
		return rec, true
	}
	return s.Generic, false
}

// Escalation returns the track and its text for a regulator
func (s *Set) Escalation(reg Regulator) (Track, string) {
	track := TrackFor(reg)
	return track, s.Tracks[track]
}

// ThresholdApplies reports whether the no-fault compensation clause is in play
func (s *Set) ThresholdApplies(reg Regulator, amount float64) bool {
	return reg == s.Threshold.Regulator && amount > 0 && amount <= s.Threshold.MaxAmount
}

func knownTrack(t Track) bool {
	for _, track := range Tracks {
		if track == t {
			return true
		}
	}
	return false
}

func trimRecord(r Record) Record {
	return Record{
		Citations: strings.TrimSpace(r.Citations),
		Framing:   strings.TrimSpace(r.Framing),
	}
}
