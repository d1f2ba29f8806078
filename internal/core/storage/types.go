package storage

import "time"

// IgnoreTypeIMPHash is the ignore-list type for import hashes.
const IgnoreTypeIMPHash = "IMPHash"

// IgnoreSourceAutomation marks decisions written by this job rather than an analyst.
const IgnoreSourceAutomation = "automation"

// SignerCertExpired is the signer verification code for an expired subject certificate.
const SignerCertExpired = 256

// Resource is one row of the resource log.
type Resource struct {
	ResourceID            int64
	IMPHash               string
	SHA1                  string
	CreateDate            time.Time
	DeterminationPositive bool
	DeterminationName     string
	IsSafe                bool
	ProbablySafe          bool
	Whitelisted           bool
	WFPProtected          bool
	InstallerType         string
	SignerVerification    int
	SignerName            string
}

// IgnoreDecision is a verdict that a key should be excluded from future aggregation and alerting.
type IgnoreDecision struct {
	Type     string
	Value    string
	Category string
	Source   string
	Notes    string
}

// NewIMPHashIgnore builds the automation decision for an import hash.
// Notes carry the category, which is what analysts filter on.
func NewIMPHashIgnore(key, category string) IgnoreDecision {
	return IgnoreDecision{
		Type:     IgnoreTypeIMPHash,
		Value:    key,
		Category: category,
		Source:   IgnoreSourceAutomation,
		Notes:    category,
	}
}
