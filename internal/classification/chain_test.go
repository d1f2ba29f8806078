package classification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashcurator/hashcurator/internal/core/storage"
	"github.com/hashcurator/hashcurator/internal/reputation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chainNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// plain returns n unremarkable resources: recent, unsigned, no markers.
func plain(n int) []storage.Resource {
	rs := make([]storage.Resource, n)
	for i := range rs {
		rs[i] = storage.Resource{
			ResourceID: int64(100 - i),
			IMPHash:    "k",
			SHA1:       "sha-" + string(rune('a'+i)),
			CreateDate: chainNow.AddDate(0, -1, 0),
		}
	}
	return rs
}

func newTestChain(rs []storage.Resource, pop *fakePopularity, rep *fakeReputation) *Chain {
	if pop == nil {
		pop = &fakePopularity{}
	}
	if rep == nil {
		rep = &fakeReputation{}
	}
	c := NewChain(
		&fakeResources{byKey: map[string][]storage.Resource{"k": rs}},
		pop,
		rep,
		NewSignerList(DefaultSigners),
		DefaultChainParams(),
		discardLogger(),
	)
	c.nowFn = func() time.Time { return chainNow }
	return c
}

func TestChain_VirusMajority(t *testing.T) {
	rs := plain(5)
	for i := 0; i < 3; i++ {
		rs[i].DeterminationPositive = true
		rs[i].DeterminationName = "Virus.Win32.X"
	}

	got, err := newTestChain(rs, nil, nil).Decide(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, CategoryVirus, got)
}

func TestChain_WormMajority(t *testing.T) {
	rs := plain(4)
	rs[0].DeterminationPositive, rs[0].DeterminationName = true, "worm.autorun"
	rs[1].DeterminationPositive, rs[1].DeterminationName = true, "Worm.Autorun"
	rs[2].DeterminationPositive, rs[2].DeterminationName = true, "Worm.Autorun"

	got, err := newTestChain(rs, nil, nil).Decide(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, CategoryWorm, got)
}

func TestChain_MajorityIgnoresNegativeDeterminations(t *testing.T) {
	rs := plain(5)
	// Three virus names without a positive determination do not count.
	for i := 0; i < 3; i++ {
		rs[i].DeterminationName = "Virus.Win32.X"
	}
	rs[3].DeterminationPositive, rs[3].DeterminationName = true, "Trojan.Agent"

	got, err := newTestChain(rs, nil, nil).Decide(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, NoDecision, got)
}

func TestMajorityDetection_TieGoesToFirstSeen(t *testing.T) {
	rs := plain(4)
	rs[0].DeterminationPositive, rs[0].DeterminationName = true, "Trojan.A"
	rs[1].DeterminationPositive, rs[1].DeterminationName = true, "Virus.B"
	rs[2].DeterminationPositive, rs[2].DeterminationName = true, "Virus.B"
	rs[3].DeterminationPositive, rs[3].DeterminationName = true, "Trojan.A"

	assert.Equal(t, "Trojan.A", majorityDetection(rs))
	assert.Equal(t, "", majorityDetection(plain(3)))
}

func TestChain_SingleRule(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rs []storage.Resource)
		pop    int64
		want   Category
	}{
		{"safe", func(rs []storage.Resource) { rs[1].IsSafe = true }, 0, CategorySafe},
		{"probably safe", func(rs []storage.Resource) { rs[1].ProbablySafe = true }, 0, CategorySafe},
		{"whitelisted", func(rs []storage.Resource) { rs[0].Whitelisted = true }, 0, CategorySafe},
		{"wfp protected", func(rs []storage.Resource) { rs[2].WFPProtected = true }, 0, CategorySafe},
		{"old", func(rs []storage.Resource) { rs[2].CreateDate = chainNow.AddDate(-2, 0, -1) }, 0, CategoryOld},
		{"installer", func(rs []storage.Resource) { rs[0].InstallerType = "inno" }, 0, CategoryInstaller},
		{"popular", func([]storage.Resource) {}, 5001, CategoryCount},
		{"popularity at threshold", func([]storage.Resource) {}, 5000, NoDecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := plain(3)
			tt.mutate(rs)
			got, err := newTestChain(rs, &fakePopularity{total: tt.pop}, nil).Decide(context.Background(), "k")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChain_FirstMatchWins(t *testing.T) {
	rs := plain(3)
	rs[0].IsSafe = true
	rs[1].InstallerType = "nsis"
	rs[2].CreateDate = chainNow.AddDate(-5, 0, 0)
	pop := &fakePopularity{total: 99999}

	got, err := newTestChain(rs, pop, nil).Decide(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, CategorySafe, got)
	assert.Empty(t, pop.calls, "later rules must not run")
}

func TestChain_PopularityDeduplicatesHashes(t *testing.T) {
	rs := plain(3)
	rs[2].SHA1 = rs[0].SHA1
	pop := &fakePopularity{}

	_, err := newTestChain(rs, pop, nil).Decide(context.Background(), "k")
	require.NoError(t, err)
	require.Len(t, pop.calls, 1)
	assert.ElementsMatch(t, []string{rs[0].SHA1, rs[1].SHA1}, pop.calls[0])
}

func TestChain_NoDecision(t *testing.T) {
	rep := &fakeReputation{}
	got, err := newTestChain(plain(6), &fakePopularity{total: 12}, rep).Decide(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, NoDecision, got)
	assert.Empty(t, rep.calls)
}

func TestChain_SingletonIsNeverDecided(t *testing.T) {
	rs := plain(1)
	rs[0].IsSafe = true

	got, err := newTestChain(rs, nil, nil).Decide(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, NoDecision, got)
}

func TestChain_Signfix(t *testing.T) {
	signedBy := func(rs []storage.Resource, i, verification int, name string) {
		rs[i].SignerVerification = verification
		rs[i].SignerName = name
	}

	t.Run("first signed verdict wins", func(t *testing.T) {
		rs := plain(4)
		signedBy(rs, 0, 1, "microsoft corporation")
		signedBy(rs, 1, 1, "Microsoft Corporation")
		signedBy(rs, 2, 1, "Microsoft Corporation")
		rep := &fakeReputation{
			verdicts: map[string]reputation.Verdict{
				rs[0].SHA1: {Status: reputation.StatusSuccess, Verified: "Unsigned"},
				rs[1].SHA1: {Status: reputation.StatusSuccess, Verified: "Signed", Signed: true},
				rs[2].SHA1: {Status: reputation.StatusSuccess, Verified: "Signed", Signed: true},
			},
		}

		got, err := newTestChain(rs, nil, rep).Decide(context.Background(), "k")
		require.NoError(t, err)
		assert.Equal(t, CategorySignfix, got)
		assert.Equal(t, []string{rs[0].SHA1, rs[1].SHA1}, rep.calls)
	})

	t.Run("skips expired certs and unknown signers", func(t *testing.T) {
		rs := plain(4)
		signedBy(rs, 0, storage.SignerCertExpired, "Microsoft Corporation")
		signedBy(rs, 1, 1, "Shady Software Ltd")
		signedBy(rs, 2, 0, "Microsoft Corporation")
		rep := &fakeReputation{verdicts: map[string]reputation.Verdict{
			rs[0].SHA1: {Status: reputation.StatusSuccess, Signed: true},
			rs[1].SHA1: {Status: reputation.StatusSuccess, Signed: true},
			rs[2].SHA1: {Status: reputation.StatusSuccess, Signed: true},
		}}

		got, err := newTestChain(rs, nil, rep).Decide(context.Background(), "k")
		require.NoError(t, err)
		assert.Equal(t, NoDecision, got)
		assert.Empty(t, rep.calls)
	})

	t.Run("lookup errors are treated as unsigned", func(t *testing.T) {
		rs := plain(3)
		signedBy(rs, 0, 1, "Google LLC")
		signedBy(rs, 1, 1, "Google LLC")
		rep := &fakeReputation{
			errs:     map[string]error{rs[0].SHA1: reputation.ErrMalformedResponse},
			verdicts: map[string]reputation.Verdict{rs[1].SHA1: {Status: reputation.StatusSuccess, Signed: true}},
		}

		got, err := newTestChain(rs, nil, rep).Decide(context.Background(), "k")
		require.NoError(t, err)
		assert.Equal(t, CategorySignfix, got)
	})

	t.Run("at most ten lookups", func(t *testing.T) {
		rs := plain(15)
		for i := range rs {
			signedBy(rs, i, 1, "Intel Corporation")
		}
		rep := &fakeReputation{}

		got, err := newTestChain(rs, nil, rep).Decide(context.Background(), "k")
		require.NoError(t, err)
		assert.Equal(t, NoDecision, got)
		assert.Len(t, rep.calls, 10)
	})
}

func TestChain_StoreErrors(t *testing.T) {
	t.Run("resource query", func(t *testing.T) {
		c := newTestChain(nil, nil, nil)
		c.resources = &fakeResources{err: errors.New("db down")}
		_, err := c.Decide(context.Background(), "k")
		require.ErrorContains(t, err, "db down")
	})

	t.Run("popularity", func(t *testing.T) {
		_, err := newTestChain(plain(3), &fakePopularity{err: errors.New("timeout")}, nil).Decide(context.Background(), "k")
		require.ErrorContains(t, err, "rule count")
	})
}
