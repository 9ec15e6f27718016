package erasure

import (
	"bytes"
	"crypto/md5"
	"fmt"
	log "log/slog"
)

// DecodeResult is the outcome of Decode.
type DecodeResult struct {
	DecodedData []byte
	// ReconstructedShards lists the indices of shards that were missing or corrupted and got
	// rebuilt; callers may rewrite them to repair the drive.
	ReconstructedShards []int
	Error               error
}

// Decode reverses Encode. Missing shards are nil entries in shards, and their metadata entries
// may be nil as well. Corrupted shards are detected through the metadata checksums.
func (e *Erasure) Decode(shards [][]byte, shardsMetaData [][]byte) *DecodeResult {
	if len(shards) == 0 {
		return &DecodeResult{Error: fmt.Errorf("shards can't be nil or empty")}
	}
	padding, ok := paddingOf(shardsMetaData)
	if !ok {
		return &DecodeResult{Error: fmt.Errorf("no shard metadata available")}
	}

	r := &DecodeResult{}
	if ok, _ := e.encoder.Verify(shards); !ok {
		log.Debug("erasure verification failed, reconstructing data")
		r = e.reconstructMissingShards(shards)
		if r.Error != nil {
			return r
		}
		if ok, _ = e.encoder.Verify(shards); !ok {
			dr := e.detectBadShardsThenReconstruct(shards, shardsMetaData)
			if dr.Error != nil {
				return &DecodeResult{Error: fmt.Errorf("final attempt to reconstruct failed: %w", dr.Error)}
			}
			dr.ReconstructedShards = append(r.ReconstructedShards, dr.ReconstructedShards...)
			r = dr
		}
	}

	var b bytes.Buffer
	size := len(shards[0]) * e.DataShardsCount
	if err := e.encoder.Join(&b, shards, size); err != nil {
		return &DecodeResult{Error: fmt.Errorf("joining shards failed: %w", err)}
	}
	if padding > b.Len() {
		return &DecodeResult{Error: fmt.Errorf("shard metadata padding %d exceeds data size %d", padding, b.Len())}
	}
	r.DecodedData = b.Bytes()[:b.Len()-padding]
	return r
}

// paddingOf reads the padding count from the first available metadata entry.
func paddingOf(shardsMetaData [][]byte) (int, bool) {
	for _, md := range shardsMetaData {
		if len(md) == MetaDataSize {
			return int(md[0]), true
		}
	}
	return 0, false
}

func (e *Erasure) detectBadShardsThenReconstruct(shards [][]byte, shardsMetaData [][]byte) *DecodeResult {
	corrupted := make([]int, 0, 2)
	for i := range shards {
		if shards[i] == nil || len(shardsMetaData[i]) != MetaDataSize {
			continue
		}
		got := md5.Sum(shards[i])
		if !bytes.Equal(shardsMetaData[i][1:], got[:]) {
			corrupted = append(corrupted, i)
			shards[i] = nil
		}
	}
	if len(corrupted) == 0 {
		return &DecodeResult{Error: fmt.Errorf("shards passed checksum check but failed verification")}
	}
	if err := e.encoder.Reconstruct(shards); err != nil {
		return &DecodeResult{Error: err}
	}
	if ok, err := e.encoder.Verify(shards); !ok {
		if err == nil {
			err = fmt.Errorf("reconstructed shards failed verification")
		}
		return &DecodeResult{Error: err}
	}
	return &DecodeResult{ReconstructedShards: corrupted}
}

func (e *Erasure) reconstructMissingShards(shards [][]byte) *DecodeResult {
	r := DecodeResult{}
	for i := range shards {
		if shards[i] == nil {
			r.ReconstructedShards = append(r.ReconstructedShards, i)
		}
	}
	if err := e.encoder.Reconstruct(shards); err != nil {
		r.Error = err
	}
	return &r
}
