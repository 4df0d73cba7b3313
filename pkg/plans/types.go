package plans

import "fmt"

// Tier identifies a subscription plan
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether the tier is a known plan
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

// FeatureID identifies a plan-gated capability. These are semantic
// identifiers, not UI labels.
type FeatureID string

const (
	FeatureAdvancedReporting FeatureID = "advanced_reporting"
	FeatureCustomBranding    FeatureID = "custom_branding"
	FeatureAPIAccess         FeatureID = "api_access"
	FeatureBulkImport        FeatureID = "bulk_import"
	FeatureLiveScoring       FeatureID = "live_scoring"
	FeatureExportPDF         FeatureID = "export_pdf"
	FeatureCustomRoleNames   FeatureID = "custom_role_names"
)

// Unlimited marks a numeric limit with no cap
const Unlimited = -1

// Plan couples a tier with its feature set and numeric limits
type Plan struct {
	Tier     Tier                  `json:"tier"`
	Name     string                `json:"name"`
	Features map[FeatureID]struct{} `json:"-"`

	MaxUsers                  int `json:"max_users"`
	MaxTournaments            int `json:"max_tournaments"`
	MaxQuestionsPerTournament int `json:"max_questions_per_tournament"`
}

// HasFeature reports whether the plan includes the feature
func (p *Plan) HasFeature(feature FeatureID) bool {
	_, ok := p.Features[feature]
	return ok
}

// WithinLimit reports whether current usage leaves room under the limit.
// A limit of Unlimited always passes.
func WithinLimit(current, limit int) bool {
	return limit == Unlimited || current < limit
}

// LimitExceededError reports a plan limit violation
type LimitExceededError struct {
	Resource string
	Current  int
	Limit    int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("plan limit exceeded for %s (%d/%d)", e.Resource, e.Current, e.Limit)
}

// IsLimitExceeded checks if an error is a plan limit violation
func IsLimitExceeded(err error) bool {
	_, ok := err.(*LimitExceededError)
	return ok
}

func featureSet(features ...FeatureID) map[FeatureID]struct{} {
	set := make(map[FeatureID]struct{}, len(features))
	for _, f := range features {
		set[f] = struct{}{}
	}
	return set
}

// DefaultPlans returns the built-in plan catalog
func DefaultPlans() map[Tier]*Plan {
	return map[Tier]*Plan{
		TierFree: {
			Tier:                      TierFree,
			Name:                      "Free",
			Features:                  featureSet(),
			MaxUsers:                  5,
			MaxTournaments:            3,
			MaxQuestionsPerTournament: 50,
		},
		TierPro: {
			Tier: TierPro,
			Name: "Pro",
			Features: featureSet(
				FeatureAdvancedReporting,
				FeatureBulkImport,
				FeatureLiveScoring,
				FeatureExportPDF,
			),
			MaxUsers:                  50,
			MaxTournaments:            100,
			MaxQuestionsPerTournament: 1000,
		},
		TierEnterprise: {
			Tier: TierEnterprise,
			Name: "Enterprise",
			Features: featureSet(
				FeatureAdvancedReporting,
				FeatureCustomBranding,
				FeatureAPIAccess,
				FeatureBulkImport,
				FeatureLiveScoring,
				FeatureExportPDF,
				FeatureCustomRoleNames,
			),
			MaxUsers:                  Unlimited,
			MaxTournaments:            Unlimited,
			MaxQuestionsPerTournament: Unlimited,
		},
	}
}
