package endpoint

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voservices/vospace/pkg/store/memory"
	"github.com/voservices/vospace/pkg/vos"
)

func newRegistry(ttl time.Duration) *Registry {
	return NewRegistry(memory.New("vos://example.org!vospace", "/data"), ttl)
}

func TestAllocateAndValidate(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(time.Hour)

	ep, err := r.Allocate(ctx, "job1", "vos://example.org!vospace/c/f", "/data/c/f")
	require.NoError(t, err)
	assert.Len(t, ep.Token, 32)
	assert.Nil(t, ep.Completed)

	got, err := r.Validate(ctx, ep.Token)
	require.NoError(t, err)
	assert.Equal(t, "/data/c/f", got.Location)
	assert.Equal(t, "job1", got.JobID)
}

func TestValidateUnknownTokenIsNotFound(t *testing.T) {
	r := newRegistry(time.Hour)
	_, err := r.Validate(context.Background(), "bogus")
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultNotFound))
}

func TestConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(time.Hour)

	ep, err := r.Allocate(ctx, "job1", "vos://example.org!vospace/c/f", "/data/c/f")
	require.NoError(t, err)

	got, err := r.Consume(ctx, ep.Token)
	require.NoError(t, err)
	assert.Equal(t, ep.Location, got.Location)

	_, err = r.Consume(ctx, ep.Token)
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultAlreadyUsed))

	_, err = r.Validate(ctx, ep.Token)
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultAlreadyUsed))
}

func TestConcurrentConsumersExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(time.Hour)

	ep, err := r.Allocate(ctx, "job1", "vos://example.org!vospace/c/f", "/data/c/f")
	require.NoError(t, err)

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Consume(ctx, ep.Token)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.True(t, vos.IsFault(err, vos.FaultAlreadyUsed))
		}
	}
	assert.Equal(t, 1, wins)
}

func TestExpiryIsComputedPerCall(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(time.Hour)

	clock := time.Now()
	r.now = func() time.Time { return clock }

	ep, err := r.Allocate(ctx, "job1", "vos://example.org!vospace/c/f", "/data/c/f")
	require.NoError(t, err)

	// Still valid just inside the TTL.
	clock = clock.Add(59 * time.Minute)
	_, err = r.Validate(ctx, ep.Token)
	require.NoError(t, err)

	// Invalid once past it, even though it was never consumed.
	clock = clock.Add(2 * time.Minute)
	_, err = r.Validate(ctx, ep.Token)
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultExpired))

	_, err = r.Consume(ctx, ep.Token)
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultExpired))

	assert.True(t, r.Expired(ep))
}

func TestForJob(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(time.Hour)

	ep, err := r.Allocate(ctx, "job1", "vos://example.org!vospace/c/f", "/data/c/f")
	require.NoError(t, err)

	got, err := r.ForJob(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, ep.Token, got.Token)

	_, err = r.ForJob(ctx, "other")
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultNotFound))
}
