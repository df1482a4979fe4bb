// Package thread reconstructs the conversational lineage of a reply:
// the ordered ancestor chain from an originating root message down to
// the reply itself, scoped to a single channel.
package thread

import (
	"errors"

	"github.com/opsdesk/sheetbridge/pkg/logger"
	"github.com/opsdesk/sheetbridge/pkg/models"
	"github.com/opsdesk/sheetbridge/pkg/store"
)

// maxDepth bounds ancestor traversal independently of the visited-set
// cycle guard.
const maxDepth = 512

// Resolve loads the message with the given id and resolves its thread.
// Thread context is advisory: any store failure yields an empty history
// and a log line, never an error to the caller.
func Resolve(messageID, channelID string) models.ThreadHistory {
	if !store.Ready() {
		logger.Warn("thread_store_unavailable", "id", messageID)
		return models.ThreadHistory{}
	}
	m, err := store.GetMessage(messageID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("thread_leaf_load_failed", "id", messageID, "error", err)
		}
		return models.ThreadHistory{}
	}
	if m.Channel != channelID {
		logger.Warn("thread_channel_mismatch", "id", messageID, "channel", m.Channel, "want", channelID)
		return models.ThreadHistory{}
	}
	return ResolveFrom(m)
}

// ResolveFrom resolves the thread for an in-hand message. The walk
// follows parent references backward until a message with no parent,
// keeping a visited set: the first repeated id stops the walk and marks
// the history truncated instead of looping. When no chain can be
// recovered from the log, the quoted body embedded in the reply (if
// any) becomes a single-entry degraded history.
func ResolveFrom(m models.Message) models.ThreadHistory {
	chain := walkAncestors(m)
	if chain.len() == 0 {
		return quotedFallback(m)
	}
	if m.IsReply() && chain.len() == 1 && !chain.truncated {
		// reply whose parent chain could not be recovered: degrade to
		// the quoted body, or report no context at all
		return quotedFallback(m)
	}

	// forward order root->leaf
	for i, j := 0, len(chain.msgs)-1; i < j; i, j = i+1, j-1 {
		chain.msgs[i], chain.msgs[j] = chain.msgs[j], chain.msgs[i]
	}

	// a root with no textual content must not anchor a thread
	if len(chain.msgs) > 1 && chain.msgs[0].Body.DisplayText() == "" && !chain.truncated {
		chain.msgs = chain.msgs[1:]
	}
	if len(chain.msgs) == 1 && chain.msgs[0].Body.DisplayText() == "" {
		return quotedFallback(m)
	}

	h := models.ThreadHistory{Truncated: chain.truncated}
	for i, msg := range chain.msgs {
		h.Entries = append(h.Entries, models.ThreadEntry{Msg: msg, Depth: i})
	}
	return h
}

type ancestorChain struct {
	msgs      []models.Message
	truncated bool
}

func (c ancestorChain) len() int { return len(c.msgs) }

func walkAncestors(m models.Message) ancestorChain {
	if !store.Ready() {
		return ancestorChain{}
	}
	visited := map[string]struct{}{m.ID: {}}
	chain := ancestorChain{msgs: []models.Message{m}}
	cur := m
	for cur.ParentID != "" && len(chain.msgs) < maxDepth {
		if _, seen := visited[cur.ParentID]; seen {
			logger.Warn("thread_cycle_detected", "id", m.ID, "repeat", cur.ParentID)
			chain.truncated = true
			break
		}
		parent, err := store.GetMessage(cur.ParentID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				logger.Warn("thread_parent_load_failed", "parent", cur.ParentID, "error", err)
			}
			break
		}
		// never cross channels mid-walk, whatever the log contains
		if parent.Channel != m.Channel {
			logger.Warn("thread_cross_channel_parent_skipped",
				"parent", parent.ID, "channel", parent.Channel, "want", m.Channel)
			break
		}
		visited[parent.ID] = struct{}{}
		chain.msgs = append(chain.msgs, parent)
		cur = parent
	}
	return chain
}

// quotedFallback synthesizes a depth-0 single-entry history from the
// quoted body the provider embedded in the reply. Sender is unknown by
// construction.
func quotedFallback(m models.Message) models.ThreadHistory {
	if m.Quoted == "" {
		return models.ThreadHistory{}
	}
	q := models.Message{
		Channel: m.Channel,
		Sender:  "unknown",
		Body:    models.TextBody(m.Quoted),
		TS:      m.TS,
	}
	return models.ThreadHistory{Entries: []models.ThreadEntry{{Msg: q, Depth: 0}}}
}
