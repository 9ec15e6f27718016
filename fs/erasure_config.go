package fs

// ErasureCodingConfig configures the erasure coded blob store of one blob table.
type ErasureCodingConfig struct {
	// Count of data shards.
	DataShardsCount int `json:"data_shards_count"`
	// Count of parity shards.
	ParityShardsCount int `json:"parity_shards_count"`
	// Base folder paths, one per drive, receiving the data and parity shard files.
	BaseFolderPathsAcrossDrives []string `json:"base_folder_paths_across_drives"`
	// RepairCorruptedShards rewrites missing or corrupted shards detected while reading.
	RepairCorruptedShards bool `json:"repair_corrupted_shards"`
}
