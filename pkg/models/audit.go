package models

// Audit operation kinds.
const (
	OpCreate = "CREATE"
	OpUpdate = "UPDATE"
)

// AuditEntry is one appended row in the audit trail. Entries are
// append-only in insertion order; nothing deletes them.
type AuditEntry struct {
	Identifier  string `json:"identifier"`
	Op          string `json:"op"`
	Description string `json:"description"`
	// TS is the entry timestamp in milliseconds.
	TS          int64  `json:"ts"`
	Actor       string `json:"actor"`
	DetailsJSON string `json:"details_json,omitempty"`
}
