package capacity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/metrics"
)

// =============================================================================
// PROFILE PROVIDER - Cached, self-healing profile lookup
// =============================================================================

// ProfileProvider returns a usable profile for any user. Fresh cache entries
// are served without touching the store; misses read the store and create a
// default profile when none exists.
type ProfileProvider struct {
	store   ProfileStore
	cache   ProfileCache
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Recorder

	// Collapses concurrent misses for the same user into one store round trip.
	misses singleflight.Group
}

func NewProfileProvider(store ProfileStore, cache ProfileCache, ttl time.Duration) *ProfileProvider {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ProfileProvider{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
		logger: zap.NewNop(),
	}
}

// Profile returns the user's capacity profile, creating a default one on first access.
func (p *ProfileProvider) Profile(ctx context.Context, userID UserID) (Profile, error) {
	if userID == "" {
		return Profile{}, newValidationError("user_id", ErrMissingUser)
	}

	if entry, ok := p.cache.Get(userID); ok {
		if entry.Fresh(p.now(), p.ttl) {
			p.metrics.CacheHit()
			return entry.Profile.Clone(), nil
		}
		p.metrics.CacheStale()
	} else {
		p.metrics.CacheMiss()
	}

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := p.misses.DoChan(string(userID), func() (any, error) {
		return p.fetch(context.WithoutCancel(ctx), userID)
	})
	select {
	case <-ctx.Done():
		return Profile{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Profile{}, res.Err
		}
		return res.Val.(Profile).Clone(), nil
	}
}

func (p *ProfileProvider) fetch(ctx context.Context, userID UserID) (Profile, error) {
	stored, err := p.store.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load profile for %s: %w", userID, err)
	}

	var profile Profile
	if stored != nil {
		profile = *stored
	} else {
		profile, err = p.store.CreateProfile(ctx, DefaultProfile(userID))
		if err != nil {
			return Profile{}, fmt.Errorf("failed to create profile for %s: %w", userID, err)
		}
		p.metrics.ProfileCreated()
		p.logger.Info("created default capacity profile",
			zap.String("user_id", string(userID)),
			zap.String("daily_hours", profile.DailyCapacityHours.String()),
			zap.Strings("working_weekdays", profile.WorkingWeekdays.Names()),
		)
	}

	p.cache.Set(userID, CacheEntry{Profile: profile.Clone(), FetchedAt: p.now()})
	p.logger.Debug("profile cache refreshed", zap.String("user_id", string(userID)))
	return profile, nil
}

// WorkingDaysBetween counts the user's working weekdays in [start, end].
// Work exceptions are not subtracted.
func (p *ProfileProvider) WorkingDaysBetween(ctx context.Context, userID UserID, start, end calendar.Date) (int, error) {
	profile, err := p.Profile(ctx, userID)
	if err != nil {
		return 0, err
	}
	return calendar.WorkingDaysBetween(start, end, profile.WorkingWeekdays), nil
}

// Invalidate drops the cached profile of one user.
func (p *ProfileProvider) Invalidate(userID UserID) { p.cache.Delete(userID) }

// InvalidateAll drops every cached profile.
func (p *ProfileProvider) InvalidateAll() { p.cache.Clear() }
