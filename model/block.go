package model

// BlockHeader identifies a finalized block. The same height must never be
// observed with two different hashes within the retained window; callers
// that detect otherwise must treat it as a fatal invariant violation.
type BlockHeader struct {
	Height    uint64 `json:"height"`
	Hash      Hash   `json:"hash"`
	Timestamp uint64 `json:"timestamp"`
}
