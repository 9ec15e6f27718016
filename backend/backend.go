// Package backend opens coverage stores from their JSON description, so that the command line
// tool and the REST API can replicate between any two supported backends.
package backend

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/aws_s3"
	"github.com/sharedcode/coverage/cassandra"
	"github.com/sharedcode/coverage/fs"
	"github.com/sharedcode/coverage/inmemory"
	"github.com/sharedcode/coverage/redis"
	"github.com/sharedcode/coverage/tilestore"
	"github.com/sharedcode/coverage/worldfile"
)

// Backend types.
const (
	Memory    = "memory"
	FS        = "fs"
	FSWithEC  = "fs_ec"
	Redis     = "redis"
	S3        = "s3"
	Cassandra = "cassandra"
	WorldFile = "worldfile"
)

// Config describes a store. Path is the base folder of "fs" and "worldfile" stores and the
// registry key of "memory" stores.
type Config struct {
	Type        string `json:"type"`
	Path        string `json:"path,omitempty"`
	TablePrefix string `json:"table_prefix,omitempty"`
	// DirectIO makes "fs" stores bypass the OS page cache.
	DirectIO      bool                              `json:"direct_io,omitempty"`
	ErasureCoding map[string]fs.ErasureCodingConfig `json:"erasure_coding,omitempty"`
	Redis         *redis.Options                    `json:"redis,omitempty"`
	S3            *aws_s3.Config                    `json:"s3,omitempty"`
	Cassandra     *cassandra.Config                 `json:"cassandra,omitempty"`
}

// Closer releases the resources of an opened store.
type Closer func() error

func nopCloser() error { return nil }

var pingRedis = redis.Ping

var (
	memoryMux    sync.Mutex
	memoryStores = map[string]*tilestore.Store{}
)

// MemoryStore returns the in-process pyramidal store registered under key, creating it when
// needed. All "memory" configs with the same Path share it.
func MemoryStore(key string) *tilestore.Store {
	memoryMux.Lock()
	defer memoryMux.Unlock()
	s, ok := memoryStores[key]
	if !ok {
		s = tilestore.NewStore(inmemory.NewBlobStore(), tilestore.Options{})
		memoryStores[key] = s
	}
	return s
}

// Open opens the store described by cfg. The returned Closer must be called once the store is
// no longer used.
func Open(ctx context.Context, cfg Config) (coverage.Store, Closer, error) {
	opts := tilestore.Options{TablePrefix: cfg.TablePrefix}
	switch cfg.Type {
	case Memory:
		return MemoryStore(cfg.Path), nopCloser, nil

	case FS:
		if cfg.Path == "" {
			return nil, nil, fmt.Errorf("backend %q requires a path", cfg.Type)
		}
		fileIO := fs.NewFileIO()
		if cfg.DirectIO {
			fileIO = fs.NewDirectFileIO(fs.NewDirectIO())
		}
		return tilestore.NewStore(fs.NewBlobStore(cfg.Path, fs.DefaultToFilePath, fileIO), opts), nopCloser, nil

	case FSWithEC:
		bs, err := fs.NewBlobStoreWithEC(fs.DefaultToFilePath, fs.NewFileIO(), cfg.ErasureCoding)
		if err != nil {
			return nil, nil, err
		}
		return tilestore.NewStore(bs, opts), nopCloser, nil

	case Redis:
		ro := redis.DefaultOptions()
		if cfg.Redis != nil {
			ro = *cfg.Redis
		}
		// Each store owns its connection: two stores may point at different servers.
		conn := redis.NewConnection(ro)
		if err := pingRedis(ctx, conn.Client); err != nil {
			log.Warn("redis ping failed", "address", ro.Address, "error", err)
			conn.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", ro.Address, err)
		}
		return tilestore.NewStore(redis.NewClientBlobStore(conn.Client, 0), opts), conn.Close, nil

	case S3:
		if cfg.S3 == nil || cfg.S3.Bucket == "" {
			return nil, nil, fmt.Errorf("backend %q requires s3.bucket", cfg.Type)
		}
		client := aws_s3.Connect(*cfg.S3)
		mb, err := aws_s3.NewManageBucket(client, cfg.S3.Region)
		if err != nil {
			return nil, nil, err
		}
		if err := mb.EnsureBucket(ctx, cfg.S3.Bucket); err != nil {
			return nil, nil, err
		}
		bs, err := aws_s3.NewBlobStore(client, cfg.S3.Bucket)
		if err != nil {
			return nil, nil, err
		}
		return tilestore.NewStore(bs, opts), nopCloser, nil

	case Cassandra:
		if cfg.Cassandra == nil || len(cfg.Cassandra.ClusterHosts) == 0 {
			return nil, nil, fmt.Errorf("backend %q requires cassandra.cluster_hosts", cfg.Type)
		}
		conn, err := cassandra.NewConnection(*cfg.Cassandra)
		if err != nil {
			return nil, nil, err
		}
		return tilestore.NewStore(cassandra.NewConnectionBlobStore(conn), opts), func() error {
			conn.Close()
			return nil
		}, nil

	case WorldFile:
		if cfg.Path == "" {
			return nil, nil, fmt.Errorf("backend %q requires a path", cfg.Type)
		}
		return worldfile.NewStore(cfg.Path, nil), nopCloser, nil
	}
	return nil, nil, fmt.Errorf("unsupported backend type %q", cfg.Type)
}
