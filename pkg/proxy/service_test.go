package proxy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openskulk/skulk/pkg/store"
	"github.com/openskulk/skulk/pkg/types"
)

type fakeStore struct {
	store.Store

	inserted   []types.Candidate
	verdicts   []types.Verdict
	verdictErr map[int64]error
}

func (f *fakeStore) InsertBatch(_ context.Context, candidates []types.Candidate) error {
	f.inserted = append(f.inserted, candidates...)
	return nil
}

func (f *fakeStore) RecordVerdict(_ context.Context, v types.Verdict) error {
	if err := f.verdictErr[v.ProxyID]; err != nil {
		return err
	}
	f.verdicts = append(f.verdicts, v)
	return nil
}

func (f *fakeStore) CleanupFailed(_ context.Context, maxFail int) (int64, error) {
	return int64(maxFail), nil
}

func TestAddBatchDropsMalformed(t *testing.T) {
	fs := &fakeStore{}
	svc := NewService(fs, 3)

	accepted, err := svc.AddBatch(context.Background(), []types.Candidate{
		{IP: "10.0.0.1", Port: 8080, Protocol: types.ProtocolHTTP, Source: "a"},
		{IP: "not-an-ip", Port: 8080, Protocol: types.ProtocolHTTP, Source: "a"},
		{IP: "10.0.0.2", Port: 0, Protocol: types.ProtocolHTTP, Source: "a"},
		{IP: "10.0.0.3", Port: 1080, Protocol: types.ProtocolSOCKS5, Country: "us", Source: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
	require.Len(t, fs.inserted, 2)
	assert.Equal(t, "10.0.0.1", fs.inserted[0].IP)
	assert.Equal(t, "US", fs.inserted[1].Country, "country code must be normalized")
}

func TestAddBatchAllMalformed(t *testing.T) {
	fs := &fakeStore{}
	svc := NewService(fs, 3)

	accepted, err := svc.AddBatch(context.Background(), []types.Candidate{
		{IP: "bad", Port: 8080, Protocol: types.ProtocolHTTP, Source: "a"},
	})
	require.NoError(t, err)
	assert.Zero(t, accepted)
	assert.Empty(t, fs.inserted, "no insert round-trip for an empty batch")
}

func TestApplyVerdictsIsolatesFailures(t *testing.T) {
	fs := &fakeStore{verdictErr: map[int64]error{2: errors.New("boom")}}
	svc := NewService(fs, 3)

	applied := svc.ApplyVerdicts(context.Background(), []types.Verdict{
		{ProxyID: 1, Success: true},
		{ProxyID: 2, Success: false},
		{ProxyID: 3, Success: false},
	})
	assert.Equal(t, 2, applied)
	require.Len(t, fs.verdicts, 2)
	assert.Equal(t, int64(3), fs.verdicts[1].ProxyID)
}

func TestCleanupFailedUsesThreshold(t *testing.T) {
	fs := &fakeStore{}
	svc := NewService(fs, 5)

	n, err := svc.CleanupFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n, "threshold from construction must be passed through")
}
