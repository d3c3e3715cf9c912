package capacity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-engine/capacity"
	"github.com/warp/capacity-engine/capacity/store"
)

// blockingProfiles holds profile reads until released or cancelled.
type blockingProfiles struct {
	*store.Memory
	entered chan struct{}
	release chan struct{}
}

func (b *blockingProfiles) GetProfile(ctx context.Context, userID capacity.UserID) (*capacity.Profile, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return b.Memory.GetProfile(ctx, userID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestProfileLookupSurvivesFirstCallerCancel(t *testing.T) {
	// GIVEN: A profile read in flight for a caller that then gives up
	// WHEN: A second caller asks for the same user
	// THEN: Only the first caller sees the cancellation; the second gets the profile

	blocking := &blockingProfiles{
		Memory:  store.NewMemory(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	provider := capacity.NewProfileProvider(blocking, nil, time.Minute)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := provider.Profile(ctxA, "alice")
		errA <- err
	}()
	<-blocking.entered

	type lookup struct {
		profile capacity.Profile
		err     error
	}
	resB := make(chan lookup, 1)
	go func() {
		p, err := provider.Profile(context.Background(), "alice")
		resB <- lookup{p, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(blocking.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, capacity.UserID("alice"), b.profile.UserID)
}
