package repository

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"karmaclaims-backend/models"
	"karmaclaims-backend/policy"

	"gopkg.in/yaml.v3"
)

// FallbackEmail is the placeholder contact used for companies missing from the directory
const FallbackEmail = "[GRIEVANCE_OFFICER_EMAIL]"

//go:embed data/companies.yaml
var defaultCompanies []byte

// CompanyDirectory resolves canonical company names to grievance contacts.
// It is read-only after construction.
type CompanyDirectory struct {
	byName map[string]models.CompanyProfile
}

type companyRecord struct {
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	Industry     string `yaml:"industry"`
	Regulator    string `yaml:"regulator"`
	SocialHandle string `yaml:"social_handle"`
	PortalURL    string `yaml:"portal_url"`
}

// NewCompanyDirectory loads the embedded directory
func NewCompanyDirectory() (*CompanyDirectory, error) {
	return ParseCompanyDirectory(defaultCompanies)
}

// LoadCompanyDirectory loads the directory from path, or the embedded copy when path is empty
func LoadCompanyDirectory(path string) (*CompanyDirectory, error) {
	if path == "" {
		return NewCompanyDirectory()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read company directory: %w", err)
	}
	return ParseCompanyDirectory(data)
}

// ParseCompanyDirectory decodes directory YAML. Every industry and regulator
// tag must be known, otherwise loading fails.
func ParseCompanyDirectory(data []byte) (*CompanyDirectory, error) {
	var doc struct {
		Companies []companyRecord `yaml:"companies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode company directory: %w", err)
	}

	dir := &CompanyDirectory{byName: make(map[string]models.CompanyProfile, len(doc.Companies))}
	for i, rec := range doc.Companies {
		name := strings.TrimSpace(rec.Name)
		if name == "" {
			return nil, fmt.Errorf("company directory entry %d: missing name", i)
		}
		if strings.TrimSpace(rec.Email) == "" {
			return nil, fmt.Errorf("company %q: missing email", name)
		}
		industry, err := policy.ParseIndustry(rec.Industry)
		if err != nil {
			return nil, fmt.Errorf("company %q: %w", name, err)
		}
		regulator, err := policy.ParseRegulator(rec.Regulator)
		if err != nil {
			return nil, fmt.Errorf("company %q: %w", name, err)
		}
		if _, dup := dir.byName[name]; dup {
			return nil, fmt.Errorf("company %q listed twice", name)
		}

		profile := models.CompanyProfile{
			Name:      name,
			Email:     strings.TrimSpace(rec.Email),
			Industry:  industry,
			Regulator: regulator,
		}
		if h := strings.TrimSpace(rec.SocialHandle); h != "" {
			profile.SocialHandle = &h
		}
		if u := strings.TrimSpace(rec.PortalURL); u != "" {
			profile.PortalURL = &u
		}
		dir.byName[name] = profile
	}

	if len(dir.byName) == 0 {
		return nil, errors.New("company directory is empty")
	}
	return dir, nil
}

// Lookup returns the profile registered under the exact canonical name.
// On a miss it returns the fallback profile and false; a miss is never an error.
func (d *CompanyDirectory) Lookup(name string) (models.CompanyProfile, bool) {
	name = strings.TrimSpace(name)
	if profile, ok := d.byName[name]; ok {
		return profile, true
	}
	return FallbackProfile(name), false
}

// List returns every profile sorted by name
func (d *CompanyDirectory) List() []models.CompanyProfile {
	out := make([]models.CompanyProfile, 0, len(d.byName))
	for _, p := range d.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FallbackProfile is the generic retail profile used for unlisted companies
func FallbackProfile(name string) models.CompanyProfile {
	return models.CompanyProfile{
		Name:      strings.TrimSpace(name),
		Email:     FallbackEmail,
		Industry:  policy.IndustryGeneralRetail,
		Regulator: policy.RegulatorCCPA,
	}
}
