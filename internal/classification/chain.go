package classification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashcurator/hashcurator/internal/core/storage"
	"github.com/hashcurator/hashcurator/internal/reputation"
)

// ChainParams tunes the heuristic thresholds.
type ChainParams struct {
	ResourceLimit       int   // newest resources fetched per key
	MaxAgeYears         int   // resources older than this mark a key as old
	PopularityThreshold int64 // summed popularity above this marks a key as common
	MaxSignerChecks     int   // reputation lookups per key
}

// DefaultChainParams returns the production thresholds.
func DefaultChainParams() ChainParams {
	return ChainParams{
		ResourceLimit:       1000,
		MaxAgeYears:         2,
		PopularityThreshold: 5000,
		MaxSignerChecks:     10,
	}
}

func (p ChainParams) normalized() ChainParams {
	d := DefaultChainParams()
	if p.ResourceLimit <= 0 {
		p.ResourceLimit = d.ResourceLimit
	}
	if p.MaxAgeYears <= 0 {
		p.MaxAgeYears = d.MaxAgeYears
	}
	if p.PopularityThreshold <= 0 {
		p.PopularityThreshold = d.PopularityThreshold
	}
	if p.MaxSignerChecks <= 0 {
		p.MaxSignerChecks = d.MaxSignerChecks
	}
	return p
}

// Decider decides the ignore category of a single key.
type Decider interface {
	Decide(ctx context.Context, key string) (Category, error)
}

type rule struct {
	category Category
	match    func(ctx context.Context, key string, resources []storage.Resource) (bool, error)
}

// Chain evaluates the ordered heuristics against the newest resources of a key.
// The first rule that matches decides the category.
type Chain struct {
	resources  storage.ResourceStore
	popularity storage.PopularityStore
	reputation reputation.Client
	signers    *SignerList
	params     ChainParams
	logger     *slog.Logger
	nowFn      func() time.Time
	rules      []rule
}

// NewChain wires the rule chain to its collaborators.
func NewChain(
	resources storage.ResourceStore,
	popularity storage.PopularityStore,
	rep reputation.Client,
	signers *SignerList,
	params ChainParams,
	logger *slog.Logger,
) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{
		resources:  resources,
		popularity: popularity,
		reputation: rep,
		signers:    signers,
		params:     params.normalized(),
		logger:     logger,
		nowFn:      time.Now,
	}
	c.rules = []rule{
		{CategoryVirus, matchDominant("Virus")},
		{CategoryWorm, matchDominant("Worm")},
		{CategorySafe, matchAny(isSafe)},
		{CategoryOld, c.matchOld},
		{CategoryInstaller, matchAny(func(r storage.Resource) bool { return r.InstallerType != "" })},
		{CategoryCount, c.matchPopular},
		{CategorySignfix, c.matchSignfix},
	}
	return c
}

// Decide returns the category for key, or NoDecision when no rule matches or
// fewer than two resources share the key.
func (c *Chain) Decide(ctx context.Context, key string) (Category, error) {
	resources, err := c.resources.RecentByKey(ctx, key, c.params.ResourceLimit)
	if err != nil {
		return NoDecision, fmt.Errorf("load resources for %s: %w", key, err)
	}

	if len(resources) <= 1 {
		return NoDecision, nil
	}

	for _, r := range c.rules {
		ok, err := r.match(ctx, key, resources)
		if err != nil {
			return NoDecision, fmt.Errorf("rule %s for %s: %w", r.category, key, err)
		}
		if ok {
			return r.category, nil
		}
	}
	return NoDecision, nil
}

// majorityDetection returns the most frequent non-empty detection name among
// positively determined resources. Ties go to the name seen first.
func majorityDetection(resources []storage.Resource) string {
	counts := make(map[string]int)
	var order []string
	for _, r := range resources {
		if !r.DeterminationPositive || r.DeterminationName == "" {
			continue
		}
		if _, seen := counts[r.DeterminationName]; !seen {
			order = append(order, r.DeterminationName)
		}
		counts[r.DeterminationName]++
	}

	best, bestCount := "", 0
	for _, name := range order {
		if counts[name] > bestCount {
			best, bestCount = name, counts[name]
		}
	}
	return best
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func matchDominant(prefix string) func(context.Context, string, []storage.Resource) (bool, error) {
	return func(_ context.Context, _ string, resources []storage.Resource) (bool, error) {
		if !hasPrefixFold(majorityDetection(resources), prefix) {
			return false, nil
		}
		for _, r := range resources {
			if hasPrefixFold(r.DeterminationName, prefix) {
				return true, nil
			}
		}
		return false, nil
	}
}

func matchAny(pred func(storage.Resource) bool) func(context.Context, string, []storage.Resource) (bool, error) {
	return func(_ context.Context, _ string, resources []storage.Resource) (bool, error) {
		for _, r := range resources {
			if pred(r) {
				return true, nil
			}
		}
		return false, nil
	}
}

func isSafe(r storage.Resource) bool {
	return r.IsSafe || r.ProbablySafe || r.Whitelisted || r.WFPProtected
}

func (c *Chain) matchOld(_ context.Context, _ string, resources []storage.Resource) (bool, error) {
	cutoff := c.nowFn().AddDate(-c.params.MaxAgeYears, 0, 0)
	for _, r := range resources {
		if r.CreateDate.Before(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Chain) matchPopular(ctx context.Context, _ string, resources []storage.Resource) (bool, error) {
	seen := make(map[string]struct{}, len(resources))
	sha1s := make([]string, 0, len(resources))
	for _, r := range resources {
		if r.SHA1 == "" {
			continue
		}
		if _, dup := seen[r.SHA1]; dup {
			continue
		}
		seen[r.SHA1] = struct{}{}
		sha1s = append(sha1s, r.SHA1)
	}

	total, err := c.popularity.SumPopularity(ctx, sha1s)
	if err != nil {
		return false, err
	}
	return total > c.params.PopularityThreshold, nil
}

// matchSignfix asks the reputation service about resources whose local signer
// check failed for a publisher on the signer list. Lookups run one at a time and
// stop at the first trusted signature.
func (c *Chain) matchSignfix(ctx context.Context, key string, resources []storage.Resource) (bool, error) {
	if c.reputation == nil {
		return false, nil
	}

	checked := 0
	for _, r := range resources {
		if checked >= c.params.MaxSignerChecks {
			break
		}
		if r.SignerVerification == 0 || r.SignerVerification == storage.SignerCertExpired {
			continue
		}
		if !c.signers.Contains(r.SignerName) {
			continue
		}
		checked++

		verdict, err := c.reputation.Lookup(ctx, r.SHA1)
		if err != nil {
			c.logger.Warn("[Chain] Reputation lookup failed",
				"imphash", key,
				"resource_id", r.ResourceID,
				"error", err)
			continue
		}
		if verdict.Status == reputation.StatusSuccess && verdict.Signed {
			c.logger.Info("[Chain] Signature confirmed by reputation service",
				"imphash", key,
				"resource_id", r.ResourceID,
				"signer_name", r.SignerName,
				"signer_verification", r.SignerVerification,
				"verified", verdict.Verified)
			return true, nil
		}
	}
	return false, nil
}
