package model

import "time"

// AttestationEntry is one record of the write-once attestation log.
// Entries are hash-chained: RecordHash covers the entry with PrevHash set,
// so any edit or deletion breaks the chain.
type AttestationEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id"`
	RecipeID      string    `json:"recipe_id"`
	FilesModified []string  `json:"files_modified"`
	BeforeHash    HashValue `json:"before_hash"`
	AfterHash     HashValue `json:"after_hash"`
	Improved      bool      `json:"improved"`
	PrevHash      HashValue `json:"prev_hash,omitempty"`
	RecordHash    HashValue `json:"record_hash,omitempty"`
}
