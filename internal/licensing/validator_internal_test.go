package licensing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCachePurgesExpiredEntriesOnLookup(t *testing.T) {
	v := &Validator{
		memCache: make(map[string]memoryEntry),
		memTTL:   time.Minute,
		now:      time.Now,
	}
	v.memCache["tok"] = memoryEntry{
		result:    Result{Valid: true},
		expiresAt: time.Now().Add(-time.Second),
	}

	_, ok := v.memLookup("tok")
	assert.False(t, ok)

	v.mu.RLock()
	_, resident := v.memCache["tok"]
	v.mu.RUnlock()
	assert.False(t, resident, "expired entry should not stay resident after a lookup")
}
