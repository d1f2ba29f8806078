package classification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hashcurator/hashcurator/internal/core/aggregation"
	"github.com/hashcurator/hashcurator/internal/core/storage"
	"github.com/hashcurator/hashcurator/internal/reputation"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeResources struct {
	byKey map[string][]storage.Resource
	err   error
}

func (f *fakeResources) MaxCursor(context.Context, int) (int64, bool, error) {
	return 0, false, errors.New("not used")
}

func (f *fakeResources) RecordAt(context.Context, int64) (*storage.Resource, error) {
	return nil, errors.New("not used")
}

func (f *fakeResources) GroupedCounts(context.Context, int64, int64, bool) ([]aggregation.KeyCount, error) {
	return nil, errors.New("not used")
}

func (f *fakeResources) RecentByKey(_ context.Context, key string, limit int) ([]storage.Resource, error) {
	if f.err != nil {
		return nil, f.err
	}
	rs := f.byKey[key]
	if len(rs) > limit {
		rs = rs[:limit]
	}
	return rs, nil
}

func (f *fakeResources) QueryRaw(context.Context, string, ...any) ([]storage.Resource, error) {
	return nil, errors.New("not used")
}

type fakePopularity struct {
	total int64
	err   error
	calls [][]string
}

func (f *fakePopularity) SumPopularity(_ context.Context, sha1s []string) (int64, error) {
	f.calls = append(f.calls, sha1s)
	return f.total, f.err
}

type fakeReputation struct {
	mu       sync.Mutex
	verdicts map[string]reputation.Verdict
	errs     map[string]error
	calls    []string
}

func (f *fakeReputation) Lookup(_ context.Context, hash string) (reputation.Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, hash)
	if err := f.errs[hash]; err != nil {
		return reputation.Verdict{}, err
	}
	if v, ok := f.verdicts[hash]; ok {
		return v, nil
	}
	return reputation.Verdict{Status: reputation.StatusNotFound}, nil
}

type fakeSignatures struct {
	signed map[string]bool
	errs   map[string]error
}

func (f *fakeSignatures) HasSignature(_ context.Context, key string) (bool, error) {
	if err := f.errs[key]; err != nil {
		return false, err
	}
	return f.signed[key], nil
}

type fakeIgnores struct {
	mu        sync.Mutex
	existing  map[string]bool
	inserted  []storage.IgnoreDecision
	insertErr error
}

func (f *fakeIgnores) HasIgnoreEntry(_ context.Context, typ, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return typ == storage.IgnoreTypeIMPHash && f.existing[value], nil
}

func (f *fakeIgnores) InsertIgnore(_ context.Context, d storage.IgnoreDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, d)
	return nil
}

func (f *fakeIgnores) values() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.inserted))
	for _, d := range f.inserted {
		out[d.Value] = d.Category
	}
	return out
}

type fakeCounters struct {
	rows     []aggregation.Counter
	err      error
	from, to time.Time
	limit    int
}

func (f *fakeCounters) UpsertBatch(context.Context, []aggregation.Counter) error {
	return errors.New("not used")
}

func (f *fakeCounters) SelectByDateRange(_ context.Context, from, to time.Time, limit int) ([]aggregation.Counter, error) {
	f.from, f.to, f.limit = from, to, limit
	if f.err != nil {
		return nil, f.err
	}
	return append([]aggregation.Counter(nil), f.rows...), nil
}
