package dynamo

// Config holds configuration for the DynamoDB backend.
type Config struct {
	// ItemTable is the name of the item table.
	// Default: "graft_items"
	ItemTable string

	// LinkTable is the name of the adjacency link table.
	// Default: "graft_links"
	LinkTable string

	// GrantTable is the name of the permission grant table.
	// Default: "graft_grants"
	GrantTable string

	// NumShards is the number of shards for the link table.
	// Higher values increase write throughput but require more parallel
	// queries per adjacency read.
	// Default: 1 (no sharding, single query)
	// Max: 256
	NumShards int
}

// DefaultConfig returns sensible defaults for small datasets.
func DefaultConfig() Config {
	return Config{
		ItemTable:  "graft_items",
		LinkTable:  "graft_links",
		GrantTable: "graft_grants",
		NumShards:  1,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.ItemTable == "" {
		c.ItemTable = "graft_items"
	}
	if c.LinkTable == "" {
		c.LinkTable = "graft_links"
	}
	if c.GrantTable == "" {
		c.GrantTable = "graft_grants"
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > 256 {
		c.NumShards = 256
	}
}
