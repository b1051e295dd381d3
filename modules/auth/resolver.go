package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/strautils/strava/common/model"
)

// Resolver turns an athlete id into auth info that is guaranteed valid for at
// least the expiry margin, consulting the in-process cache, then the store,
// and refreshing through the token endpoint when needed. Refreshed
// credentials are written through to both cache and store.
//
// Resolution for one athlete is collapsed through a singleflight group:
// Strava rotates refresh tokens, so two racing refreshes with the same
// refresh token could invalidate each other's result. Forced and normal
// resolves share the same per-athlete flight; different athletes proceed in
// parallel. A forced resolve records the access token its caller saw
// rejected, so a flight that already rotated past it does not refresh again.
type Resolver struct {
	cache     *credentialCache
	store     CredentialStore
	exchanger TokenExchanger
	group     singleflight.Group
	now       func() time.Time
}

// NewResolver builds a Resolver. store may be nil, in which case only
// credentials saved through Save (e.g. from the authorization flow) can be
// resolved.
func NewResolver(exchanger TokenExchanger, store CredentialStore) *Resolver {
	return &Resolver{
		cache:     newCredentialCache(),
		store:     store,
		exchanger: exchanger,
		now:       time.Now,
	}
}

// Resolve returns valid auth info for the athlete, refreshing if needed.
func (r *Resolver) Resolve(ctx context.Context, athleteID int64) (model.AthleteAuthInfo, error) {
	return r.resolve(ctx, athleteID, false)
}

// ForceRefresh refreshes regardless of the token's apparent validity. Used
// when Strava rejects a token the client still believed in.
func (r *Resolver) ForceRefresh(ctx context.Context, athleteID int64) (model.AthleteAuthInfo, error) {
	return r.resolve(ctx, athleteID, true)
}

func (r *Resolver) resolve(ctx context.Context, athleteID int64, force bool) (model.AthleteAuthInfo, error) {
	key := strconv.FormatInt(athleteID, 10)

	// The access token the force caller saw rejected. If the credential has
	// moved past it by the time the flight runs, the refresh already happened
	// elsewhere and is not repeated.
	var observed string
	if force {
		if cached, ok := r.cache.get(athleteID); ok {
			observed = cached.Token.AccessToken
		}
	}

	for attempt := 0; ; attempt++ {
		v, err, shared := r.group.Do(key, func() (interface{}, error) {
			return r.resolveOne(ctx, athleteID, force, observed)
		})
		if err != nil {
			return model.AthleteAuthInfo{}, err
		}
		info := v.(model.AthleteAuthInfo)

		// A force caller coalesced into a plain resolve can come back with the
		// very token it saw rejected, without any exchange having run. Run one
		// flight of its own in that case.
		if force && shared && attempt == 0 && info.Token.AccessToken == observed {
			continue
		}
		return info, nil
	}
}

func (r *Resolver) resolveOne(ctx context.Context, athleteID int64, force bool, observed string) (model.AthleteAuthInfo, error) {
	const op = "resolve credential"

	info, cached := r.cache.get(athleteID)
	if !cached {
		if r.store == nil {
			return model.AthleteAuthInfo{}, &Error{Op: op, AthleteID: athleteID, Err: ErrNotConfigured}
		}
		fromStore, err := r.store.Get(ctx, athleteID)
		if err != nil {
			return model.AthleteAuthInfo{}, &Error{Op: op, AthleteID: athleteID, Err: fmt.Errorf("store read failed: %w", err)}
		}
		if fromStore == nil {
			return model.AthleteAuthInfo{}, &Error{Op: op, AthleteID: athleteID, Err: fmt.Errorf("%w: store has no credential", ErrNotConfigured)}
		}
		info = *fromStore
	}

	if info.Token.AccessToken == "" {
		return model.AthleteAuthInfo{}, &Error{Op: op, AthleteID: athleteID, Err: fmt.Errorf("%w: access token is empty", ErrInvalidCredential)}
	}

	if force && observed != "" && info.Token.AccessToken != observed {
		// Another caller already replaced the token this one saw rejected.
		r.cache.put(info)
		return info, nil
	}

	if !force && !info.Token.Expired(r.now()) {
		r.cache.put(info)
		return info, nil
	}

	if info.Token.RefreshToken == "" {
		return model.AthleteAuthInfo{}, &Error{Op: op, AthleteID: athleteID, Err: ErrUnrefreshable}
	}

	newToken, err := r.exchanger.Refresh(ctx, info.Token.RefreshToken)
	if err != nil {
		return model.AthleteAuthInfo{}, err
	}

	// Strava returns the same token info when the current access token is
	// still good for a while; only a materially different result is written
	// through.
	if !newToken.Equal(info.Token) {
		info.Token = newToken
		if err := r.Save(ctx, info); err != nil {
			return model.AthleteAuthInfo{}, err
		}
	} else {
		r.cache.put(info)
	}

	return info, nil
}

// Save writes auth info through to the cache and, when one is configured,
// the store. A store failure is surfaced: silently losing a refreshed
// credential would trigger a redundant refresh on every later call.
func (r *Resolver) Save(ctx context.Context, info model.AthleteAuthInfo) error {
	r.cache.put(info)
	if r.store == nil {
		return nil
	}
	if err := r.store.Put(ctx, &info); err != nil {
		return &Error{Op: "persist credential", AthleteID: info.AthleteID, Err: fmt.Errorf("%w: %v", ErrStoreWrite, err)}
	}
	return nil
}

// Invalidate drops the athlete's cached credential. The next resolve reloads
// from the store.
func (r *Resolver) Invalidate(athleteID int64) {
	r.cache.delete(athleteID)
}

// SetNowForTest overrides the resolver's clock.
func (r *Resolver) SetNowForTest(now func() time.Time) {
	r.now = now
}
