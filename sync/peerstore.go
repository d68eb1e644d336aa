package sync

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// cachedPeer is one entry in the on-disk peer address cache.
type cachedPeer struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type cacheFile struct {
	Peers []cachedPeer `json:"peers"`
}

// PeerAddressCache persists the name->address mapping so a restarted node
// doesn't need to be re-seeded from the environment before it can dial
// peers it already knew about.
type PeerAddressCache struct {
	path   string
	logger zerolog.Logger
}

// DefaultPeerAddressCachePath is the fixed on-disk location of the cache.
func DefaultPeerAddressCachePath() string {
	return filepath.Join(".cache", "SyncHandler", "p2p-cache.json")
}

// NewPeerAddressCache returns a cache rooted at path.
func NewPeerAddressCache(path string, logger zerolog.Logger) *PeerAddressCache {
	return &PeerAddressCache{path: path, logger: logger}
}

// Load reads the cache file. A missing file is not an error: it returns an
// empty result, as a node's first run.
func (c *PeerAddressCache) Load() ([]cachedPeer, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, diskErr("read peer cache", err)
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		c.logger.Warn().Err(err).Str("path", c.path).Msg("peer cache corrupt, ignoring")
		return nil, nil
	}
	return cf.Peers, nil
}

// Upsert adds or updates name's address in the cache and writes it back to
// disk atomically (write to a temp file, then rename over the target).
// Disk errors are logged and swallowed: the cache is an optimization, not a
// source of truth the mesh depends on to make progress.
func (c *PeerAddressCache) Upsert(name, address string) {
	if err := c.upsert(name, address); err != nil {
		c.logger.Warn().Err(err).Str("peer", name).Msg("failed to persist peer address cache")
	}
}

func (c *PeerAddressCache) upsert(name, address string) error {
	existing, err := c.Load()
	if err != nil {
		return err
	}

	found := false
	for i := range existing {
		if existing[i].Name == name {
			existing[i].Address = address
			found = true
			break
		}
	}
	if !found {
		existing = append(existing, cachedPeer{Name: name, Address: address})
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return diskErr("mkdir peer cache dir", err)
	}

	data, err := json.MarshalIndent(cacheFile{Peers: existing}, "", "  ")
	if err != nil {
		return diskErr("marshal peer cache", err)
	}

	tmp, err := os.CreateTemp(dir, "p2p-cache-*.tmp")
	if err != nil {
		return diskErr("create peer cache temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return diskErr("write peer cache temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return diskErr("close peer cache temp file", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return diskErr("rename peer cache into place", err)
	}
	return nil
}
