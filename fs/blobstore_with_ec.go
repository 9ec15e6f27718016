package fs

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/fs/erasure"
)

const maxThreadCount = 7

// BlobStoreWithEC spreads every blob across several drives as Reed-Solomon data and parity
// shards. Reads succeed as long as no more than ParityShardsCount shards are lost.
type BlobStoreWithEC struct {
	fileIO                      FileIO
	toFilePath                  ToFilePathFunc
	erasure                     map[string]*erasure.Erasure
	baseFolderPathsAcrossDrives map[string][]string
	repairCorruptedShards       map[string]bool
}

// errBox captures an error from worker goroutines through an atomic.Pointer.
type errBox struct{ err error }

// NewBlobStoreWithEC instantiates an erasure coded blob store. erasureConfig is keyed by blob
// table; the "" entry is the fallback for tables without their own entry. Each entry must list
// exactly data + parity base folders.
func NewBlobStoreWithEC(toFilePath ToFilePathFunc, fileIO FileIO, erasureConfig map[string]ErasureCodingConfig) (*BlobStoreWithEC, error) {
	if len(erasureConfig) == 0 {
		return nil, fmt.Errorf("erasure coding config can't be empty")
	}
	if toFilePath == nil {
		toFilePath = DefaultToFilePath
	}
	if fileIO == nil {
		fileIO = NewFileIO()
	}
	b := &BlobStoreWithEC{
		fileIO:                      fileIO,
		toFilePath:                  toFilePath,
		erasure:                     make(map[string]*erasure.Erasure, len(erasureConfig)),
		baseFolderPathsAcrossDrives: make(map[string][]string, len(erasureConfig)),
		repairCorruptedShards:       make(map[string]bool, len(erasureConfig)),
	}
	for k, v := range erasureConfig {
		ec, err := erasure.NewErasure(v.DataShardsCount, v.ParityShardsCount)
		if err != nil {
			return nil, err
		}
		if ec.ShardsCount() != len(v.BaseFolderPathsAcrossDrives) {
			return nil, fmt.Errorf("baseFolderPaths array elements count should match the sum of dataShardsCount & parityShardsCount")
		}
		b.erasure[k] = ec
		b.baseFolderPathsAcrossDrives[k] = v.BaseFolderPathsAcrossDrives
		b.repairCorruptedShards[k] = v.RepairCorruptedShards
	}
	return b, nil
}

func (b *BlobStoreWithEC) shardFileName(baseFolder, blobTable string, blobID coverage.UUID, shardIndex int) (string, string) {
	fp := b.toFilePath(fmt.Sprintf("%s%c%s", baseFolder, os.PathSeparator, blobTable), blobID)
	return fp, fmt.Sprintf("%s%c%s_%d", fp, os.PathSeparator, blobID.String(), shardIndex)
}

// GetOne reads the shards in parallel and decodes them. Missing or corrupted shards are
// reconstructed and, when repair is enabled for the table, rewritten.
func (b *BlobStoreWithEC) GetOne(ctx context.Context, blobTable string, blobID coverage.UUID) ([]byte, error) {
	paths, ec, repair := b.getBaseFolderPathsAndErasureConfig(blobTable)
	if paths == nil {
		return nil, fmt.Errorf("can't find erasure config setting for table %s", blobTable)
	}

	tr := coverage.NewTaskRunner(ctx, maxThreadCount)
	shards := make([][]byte, len(paths))
	shardsMetaData := make([][]byte, len(paths))
	var readErr atomic.Pointer[errBox]
	var missing atomic.Int32

	for i := range paths {
		_, fn := b.shardFileName(paths[i], blobTable, blobID, i)
		tr.Go(func() error {
			ba, err := b.fileIO.ReadFile(ctx, fn)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					missing.Add(1)
				} else {
					log.Warn(fmt.Sprintf("failed reading shard file %s, error: %v", fn, err))
				}
				readErr.Store(&errBox{err: err})
				return nil
			}
			if len(ba) < erasure.MetaDataSize {
				log.Warn(fmt.Sprintf("shard file %s is truncated", fn))
				return nil
			}
			shardsMetaData[i] = ba[:erasure.MetaDataSize]
			shards[i] = ba[erasure.MetaDataSize:]
			return nil
		})
	}
	if err := tr.Wait(); err != nil {
		return nil, err
	}

	if int(missing.Load()) == len(paths) {
		return nil, fmt.Errorf("%w: %s/%s", coverage.ErrBlobNotFound, blobTable, blobID)
	}
	if isShardsEmpty(shards) {
		if eb := readErr.Load(); eb != nil && eb.err != nil {
			return nil, eb.err
		}
		return nil, fmt.Errorf("failed to read shards of blob %s; no data and no error captured", blobID)
	}
	dr := ec.Decode(shards, shardsMetaData)
	if dr.Error != nil {
		return nil, dr.Error
	}

	if repair && len(dr.ReconstructedShards) > 0 {
		// Damaged shards are typically few, on a failed drive; repair sequentially.
		if encodedShards, err := ec.Encode(dr.DecodedData); err == nil {
			for _, i := range dr.ReconstructedShards {
				fp, fn := b.shardFileName(paths[i], blobTable, blobID, i)
				log.Debug(fmt.Sprintf("repairing file %s", fn))
				if err := b.writeShard(ctx, fp, fn, ec.ComputeShardMetadata(len(dr.DecodedData), encodedShards, i), encodedShards[i]); err != nil {
					log.Warn(fmt.Sprintf("error encountered repairing a damaged shard (%s): %v", fn, err))
				}
			}
		}
	}
	return dr.DecodedData, nil
}

func (b *BlobStoreWithEC) writeShard(ctx context.Context, folder, fn string, md, shard []byte) error {
	if !b.fileIO.Exists(ctx, folder) {
		if err := b.fileIO.MkdirAll(ctx, folder, permission); err != nil {
			return err
		}
	}
	buf := make([]byte, len(md)+len(shard))
	copy(buf, md)
	copy(buf[len(md):], shard)
	return b.fileIO.WriteFile(ctx, fn, buf, permission)
}

// Add encodes every blob and writes its shards in parallel. Up to ParityShardsCount shard write
// failures per blob are tolerated and logged; beyond that the last error is returned.
func (b *BlobStoreWithEC) Add(ctx context.Context, storesblobs []coverage.BlobsPayload[coverage.KeyValuePair[coverage.UUID, []byte]]) error {
	if len(storesblobs) == 0 {
		return nil
	}
	trBlobs := coverage.NewTaskRunner(ctx, maxThreadCount)

	for i := range storesblobs {
		payload := storesblobs[i]
		trBlobs.Go(func() error {
			paths, ec, _ := b.getBaseFolderPathsAndErasureConfig(payload.BlobTable)
			if paths == nil {
				err := fmt.Errorf("can't find erasure config setting for table %s", payload.BlobTable)
				log.Error(err.Error())
				return err
			}
			for _, blob := range payload.Blobs {
				shards, err := ec.Encode(blob.Value)
				if err != nil {
					return err
				}

				trShards := coverage.NewTaskRunner(trBlobs.GetContext(), -1)
				var mu sync.Mutex
				var failed int
				var lastErr error
				for si := range shards {
					fp, fn := b.shardFileName(paths[si], payload.BlobTable, blob.Key, si)
					md := ec.ComputeShardMetadata(len(blob.Value), shards, si)
					trShards.Go(func() error {
						log.Debug(fmt.Sprintf("writing to file %s", fn))
						if err := b.writeShard(ctx, fp, fn, md, shards[si]); err != nil {
							mu.Lock()
							failed++
							lastErr = err
							mu.Unlock()
						}
						return nil
					})
				}
				if err := trShards.Wait(); err != nil {
					return err
				}
				if failed > ec.ParityShardsCount {
					return lastErr
				}
				if lastErr != nil {
					log.Warn(fmt.Sprintf("error writing to a drive but EC tolerates it, details: %v", lastErr))
				}
			}
			return nil
		})
	}
	return trBlobs.Wait()
}

// Remove deletes shard files across all drives. Removal errors are logged and tolerated.
func (b *BlobStoreWithEC) Remove(ctx context.Context, storesBlobsIDs []coverage.BlobsPayload[coverage.UUID]) error {
	tr := coverage.NewTaskRunner(ctx, maxThreadCount)
	for _, storeBlobIDs := range storesBlobsIDs {
		paths, _, _ := b.getBaseFolderPathsAndErasureConfig(storeBlobIDs.BlobTable)
		if paths == nil {
			return fmt.Errorf("can't find erasure config setting for table %s", storeBlobIDs.BlobTable)
		}
		for _, blobID := range storeBlobIDs.Blobs {
			for i := range paths {
				_, fn := b.shardFileName(paths[i], storeBlobIDs.BlobTable, blobID, i)
				if !b.fileIO.Exists(ctx, fn) {
					continue
				}
				tr.Go(func() error {
					if err := b.fileIO.Remove(ctx, fn); err != nil {
						log.Warn(fmt.Sprintf("error deleting from drive but ignoring it to tolerate, part of EC feature, details: %v", err))
					}
					return nil
				})
			}
		}
	}
	return tr.Wait()
}

func isShardsEmpty(shards [][]byte) bool {
	for i := range shards {
		if shards[i] != nil {
			return false
		}
	}
	return true
}

func (b *BlobStoreWithEC) getBaseFolderPathsAndErasureConfig(blobTable string) ([]string, *erasure.Erasure, bool) {
	if paths, ok := b.baseFolderPathsAcrossDrives[blobTable]; ok {
		return paths, b.erasure[blobTable], b.repairCorruptedShards[blobTable]
	}
	return b.baseFolderPathsAcrossDrives[""], b.erasure[""], b.repairCorruptedShards[""]
}
