package types

// Rewrite is a single replacement applied to a chunk.
type Rewrite struct {
	ChunkID     ChunkID  `json:"chunk_id"`
	RuleID      string   `json:"rule_id"`
	Location    Location `json:"location"`
	Original    string   `json:"original"`
	Replacement string   `json:"replacement"`
}
