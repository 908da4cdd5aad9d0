package schemas

import (
	"strings"
)

// Edition is the product tier selected on the signup form.
type Edition string

const (
	EditionStandard         Edition = "Standard"
	EditionEnterprise       Edition = "Enterprise"
	EditionBusinessCritical Edition = "BusinessCritical"
)

// DefaultEdition is used when no source supplies an edition.
const DefaultEdition = EditionBusinessCritical

// ParseEdition normalizes user supplied edition names. "Business Critical",
// "business-critical" and "BusinessCritical" all map to EditionBusinessCritical.
// Unknown values are returned verbatim so the workflow can decide how to treat them.
func ParseEdition(s string) Edition {
	trimmed := strings.TrimSpace(s)
	switch normalizeKey(trimmed) {
	case "":
		return ""
	case "standard":
		return EditionStandard
	case "enterprise":
		return EditionEnterprise
	case "businesscritical":
		return EditionBusinessCritical
	default:
		return Edition(trimmed)
	}
}

// Known reports whether e is one of the three supported editions.
func (e Edition) Known() bool {
	switch e {
	case EditionStandard, EditionEnterprise, EditionBusinessCritical:
		return true
	}
	return false
}

// CloudProvider identifies the hosting cloud chosen for the account.
type CloudProvider string

const (
	CloudAWS   CloudProvider = "AWS"
	CloudAzure CloudProvider = "Azure"
	CloudGCP   CloudProvider = "GCP"
)

// DefaultCloudProvider is used when no source supplies a cloud provider.
const DefaultCloudProvider = CloudAWS

var cloudDisplayNames = map[CloudProvider]string{
	CloudAWS:   "Amazon Web Services",
	CloudAzure: "Microsoft Azure",
	CloudGCP:   "Google Cloud Platform",
}

// ParseCloudProvider accepts either the short code ("GCP") or the label shown
// on the form ("Google Cloud Platform"), case-insensitively. Anything else is
// kept as-is and used literally as the control label.
func ParseCloudProvider(s string) CloudProvider {
	trimmed := strings.TrimSpace(s)
	key := normalizeKey(trimmed)
	if key == "" {
		return ""
	}
	for code, display := range cloudDisplayNames {
		if key == normalizeKey(string(code)) || key == normalizeKey(display) {
			return code
		}
	}
	return CloudProvider(trimmed)
}

// DisplayName is the label of the provider's button on the signup form.
func (c CloudProvider) DisplayName() string {
	if name, ok := cloudDisplayNames[c]; ok {
		return name
	}
	return string(c)
}

// Known reports whether c is one of the supported providers.
func (c CloudProvider) Known() bool {
	_, ok := cloudDisplayNames[c]
	return ok
}

func normalizeKey(s string) string {
	r := strings.NewReplacer(" ", "", "-", "", "_", "")
	return strings.ToLower(r.Replace(s))
}

// SignupRecord is the data typed into the signup form for one account.
type SignupRecord struct {
	FirstName     string        `json:"first_name" mapstructure:"first_name" validate:"required"`
	LastName      string        `json:"last_name" mapstructure:"last_name" validate:"required"`
	Email         string        `json:"email" mapstructure:"email" validate:"required"`
	Company       string        `json:"company" mapstructure:"company" validate:"required"`
	JobTitle      string        `json:"job_title" mapstructure:"job_title" validate:"required"`
	CloudProvider CloudProvider `json:"cloud_provider,omitempty" mapstructure:"cloud_provider"`
	Edition       Edition       `json:"edition,omitempty" mapstructure:"edition"`
}

// RequiredFields lists the JSON names of the fields that must be non-empty
// before a run can start, in form order.
var RequiredFields = []string{"first_name", "last_name", "email", "company", "job_title"}

// WithDefaults returns a copy of r with the optional enums normalised
// ("Business Critical" becomes BusinessCritical, "Microsoft Azure" becomes
// Azure) and defaulted when empty.
func (r SignupRecord) WithDefaults() SignupRecord {
	r.CloudProvider = ParseCloudProvider(string(r.CloudProvider))
	r.Edition = ParseEdition(string(r.Edition))
	if r.CloudProvider == "" {
		r.CloudProvider = DefaultCloudProvider
	}
	if r.Edition == "" {
		r.Edition = DefaultEdition
	}
	return r
}

// DisplayName is "First Last", used in progress logs.
func (r SignupRecord) DisplayName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}
