package auth

import (
	"sync"

	"github.com/strautils/strava/common/model"
)

// credentialCache holds the most recently validated auth info per athlete so
// the store is not read on every call. Entries are replaced as whole values
// under the lock; a reader never sees a half-updated credential.
type credentialCache struct {
	mu    sync.RWMutex
	infos map[int64]model.AthleteAuthInfo
}

func newCredentialCache() *credentialCache {
	return &credentialCache{infos: make(map[int64]model.AthleteAuthInfo)}
}

func (c *credentialCache) get(athleteID int64) (model.AthleteAuthInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.infos[athleteID]
	return info, ok
}

func (c *credentialCache) put(info model.AthleteAuthInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.infos[info.AthleteID] = info
}

func (c *credentialCache) delete(athleteID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.infos, athleteID)
}
