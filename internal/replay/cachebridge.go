package replay

import (
	"encoding/json"
	"fmt"

	"github.com/joptimus/fox-replay-system/internal/cache"
	"github.com/joptimus/fox-replay-system/internal/frame"
	"github.com/joptimus/fox-replay-system/internal/pipeline"
	"github.com/joptimus/fox-replay-system/internal/telemetry"
)

// cacheStore adapts internal/cache.Store to the (telemetry.Session) ->
// (pipeline.Result)-shaped calls Session.Load makes, so that package stays
// ignorant of the pipeline/telemetry metadata shape and this package stays
// ignorant of SQL.
type cacheStore struct {
	store *cache.Store
	key   func(telemetry.Session) cache.Key
}

// newCacheStore wraps store with the key-derivation function used to turn a
// telemetry.Session into the (year, round, kind) cache key.
func newCacheStore(store *cache.Store, key func(telemetry.Session) cache.Key) *cacheStore {
	return &cacheStore{store: store, key: key}
}

type cachedArtifact struct {
	Frames   []*frame.Frame
	Metadata pipeline.Metadata
}

func (c *cacheStore) get(session telemetry.Session) (*cachedArtifact, error) {
	artifact, err := c.store.Get(c.key(session))
	if err != nil {
		return nil, err
	}
	var meta pipeline.Metadata
	if err := json.Unmarshal(artifact.MetadataRaw, &meta); err != nil {
		return nil, fmt.Errorf("decode cached metadata: %w", err)
	}
	return &cachedArtifact{Frames: artifact.Frames, Metadata: meta}, nil
}

func (c *cacheStore) put(session telemetry.Session, result *pipeline.Result) error {
	metaRaw, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return c.store.Put(c.key(session), &cache.Artifact{
		Frames:      result.Frames,
		MetadataRaw: metaRaw,
	})
}
