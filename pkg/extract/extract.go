// Package extract defines the field-extraction collaborator: given the
// resolved thread text and the current reply text, produce the work
// identifier and candidate field values the reconciliation core acts
// on. The core treats implementations as opaque functions.
package extract

import "context"

// Result is the collaborator's verdict for one reply.
type Result struct {
	// IdentifierFound reports whether a work identifier could be
	// recovered from the thread or reply.
	IdentifierFound bool           `json:"identifier_found"`
	Identifier      string         `json:"identifier,omitempty"`
	ChangedFields   []string       `json:"changed_fields,omitempty"`
	NewValues       map[string]any `json:"new_values,omitempty"`
	// NewRecord marks a message that describes a brand-new record
	// rather than a change to an existing one.
	NewRecord bool `json:"new_record,omitempty"`
}

// Extractor turns free text into candidate field values. Extraction is
// best-effort: an error degrades the message to "ignored", it never
// fails the pipeline.
type Extractor interface {
	Extract(ctx context.Context, threadText, replyText string) (Result, error)
}
