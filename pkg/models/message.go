package models

// InboundMessage is the normalized shape handed over by the transport
// layer. Richer provider envelope metadata never crosses this boundary.
type InboundMessage struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Channel  string `json:"channel"`
	Sender   string `json:"sender,omitempty"`
	Body     Body   `json:"body"`
	// Quoted carries the text of the message being replied to when the
	// provider embedded it in the reply envelope. Used as a degraded
	// single-entry thread when the message log has no parent chain.
	Quoted string `json:"quoted,omitempty"`
	TS     int64  `json:"ts"`
}

// Message is an inbound chat message as persisted in the message log.
// Created once per inbound event; immutable after creation.
type Message struct {
	ID string `json:"id"`
	// ParentID references the message this one replies to. Must point at
	// a message in the same channel; cross-channel parents are dropped
	// at save time.
	ParentID string `json:"parent_id,omitempty"`
	Channel  string `json:"channel"`
	Sender   string `json:"sender,omitempty"`
	Body     Body   `json:"body"`
	Quoted   string `json:"quoted,omitempty"`
	// TS is the message timestamp in milliseconds.
	TS int64 `json:"ts"`
}

// Msg converts the transport shape into the persisted shape.
func (in InboundMessage) Msg() Message {
	return Message{
		ID:       in.ID,
		ParentID: in.ParentID,
		Channel:  in.Channel,
		Sender:   in.Sender,
		Body:     in.Body,
		Quoted:   in.Quoted,
		TS:       in.TS,
	}
}

// IsReply reports whether the message claims a conversational parent,
// either via an explicit parent reference or an embedded quoted body.
func (m Message) IsReply() bool {
	return m.ParentID != "" || m.Quoted != ""
}

// ThreadEntry is a single message in a resolved thread, annotated with
// its distance from the root (0 = root).
type ThreadEntry struct {
	Msg   Message `json:"msg"`
	Depth int     `json:"depth"`
}

// ThreadHistory is the ordered root-to-leaf chain of messages a reply
// hangs off. Truncated is set when traversal stopped at a repeated
// parent pointer instead of reaching a root.
type ThreadHistory struct {
	Entries   []ThreadEntry `json:"entries"`
	Truncated bool          `json:"truncated,omitempty"`
}

// Empty reports whether no conversational context could be recovered.
func (h ThreadHistory) Empty() bool { return len(h.Entries) == 0 }

// FullHistory renders the chain as one "sender : text" segment per
// message, root first, joined by newlines.
func (h ThreadHistory) FullHistory() string {
	if len(h.Entries) == 0 {
		return ""
	}
	out := make([]byte, 0, 64*len(h.Entries))
	for i, e := range h.Entries {
		if i > 0 {
			out = append(out, '\n')
		}
		sender := e.Msg.Sender
		if sender == "" {
			sender = "unknown"
		}
		out = append(out, sender...)
		out = append(out, " : "...)
		out = append(out, e.Msg.Body.DisplayText()...)
	}
	return string(out)
}
