// Package erasure wraps Reed-Solomon erasure coding for blobs spread across several drives.
// Each shard is stored with a small metadata prefix: the count of zero bytes padding the
// last data shard followed by the MD5 checksum of the shard.
package erasure

import (
	"bytes"
	"crypto/md5"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// MetaDataSize is the size of the shard prefix: 1 padding byte + 16 checksum bytes.
const MetaDataSize = 17

// Erasure encodes blobs into data + parity shards and decodes them back.
type Erasure struct {
	DataShardsCount   int
	ParityShardsCount int
	encoder           reedsolomon.Encoder
}

// NewErasure instantiates an erasure coder.
func NewErasure(dataShards int, parityShards int) (*Erasure, error) {
	if dataShards+parityShards > 256 {
		return nil, fmt.Errorf("sum of data and parity shards cannot exceed 256")
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, err
	}
	return &Erasure{
		DataShardsCount:   dataShards,
		ParityShardsCount: parityShards,
		encoder:           enc,
	}, nil
}

// ShardsCount returns data + parity shards count.
func (e *Erasure) ShardsCount() int {
	return e.DataShardsCount + e.ParityShardsCount
}

// Encode splits data into equally sized data shards and computes the parity shards.
// The shards never share memory with data.
func (e *Erasure) Encode(data []byte) ([][]byte, error) {
	// Split reuses the spare capacity of its input.
	shards, err := e.encoder.Split(bytes.Clone(data))
	if err != nil {
		return nil, err
	}
	if err := e.encoder.Encode(shards); err != nil {
		return nil, err
	}
	return shards, nil
}

// ComputeShardMetadata returns the metadata prefix of shards[shardIndex] for a blob of dataSize bytes.
func (e *Erasure) ComputeShardMetadata(dataSize int, shards [][]byte, shardIndex int) []byte {
	checksum := md5.Sum(shards[shardIndex])
	r := make([]byte, MetaDataSize)
	if dataSize%e.DataShardsCount != 0 {
		r[0] = byte(e.DataShardsCount - dataSize%e.DataShardsCount)
	}
	copy(r[1:], checksum[:])
	return r
}
