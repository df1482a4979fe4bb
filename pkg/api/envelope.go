package api

import (
	"strings"
	"time"

	"github.com/opsdesk/sheetbridge/pkg/models"
	"github.com/opsdesk/sheetbridge/pkg/utils"
)

// webhookEnvelope mirrors the messaging provider's delivery payload.
// Only the fields the core needs are decoded; the rest of the envelope
// stays opaque.
type webhookEnvelope struct {
	Event    string `json:"event"`
	Instance string `json:"instance"`
	Data     struct {
		Key struct {
			ID        string `json:"id"`
			RemoteJid string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
		} `json:"key"`
		PushName string `json:"pushName"`
		Message  struct {
			Conversation string `json:"conversation"`
			ExtendedText *struct {
				Text        string       `json:"text"`
				ContextInfo *contextInfo `json:"contextInfo"`
			} `json:"extendedTextMessage"`
			Image *struct {
				Caption     string       `json:"caption"`
				ContextInfo *contextInfo `json:"contextInfo"`
			} `json:"imageMessage"`
		} `json:"message"`
		ContextInfo      *contextInfo `json:"contextInfo"`
		MessageTimestamp int64        `json:"messageTimestamp"`
	} `json:"data"`
}

// contextInfo is the provider's reply linkage: the id of the message
// being replied to plus its embedded body.
type contextInfo struct {
	StanzaID      string `json:"stanzaId"`
	QuotedMessage *struct {
		Conversation string `json:"conversation"`
		ExtendedText *struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage"`
	} `json:"quotedMessage"`
}

func (c *contextInfo) quotedText() string {
	if c == nil || c.QuotedMessage == nil {
		return ""
	}
	if c.QuotedMessage.Conversation != "" {
		return c.QuotedMessage.Conversation
	}
	if c.QuotedMessage.ExtendedText != nil {
		return c.QuotedMessage.ExtendedText.Text
	}
	return ""
}

// normalize flattens the envelope into the transport shape the pipeline
// accepts. The body variant is chosen by which payload shape the
// provider populated.
func (e webhookEnvelope) normalize() models.InboundMessage {
	d := e.Data
	var body models.Body
	ctx := d.ContextInfo
	switch {
	case d.Message.ExtendedText != nil:
		body = models.ExtendedTextBody(d.Message.ExtendedText.Text)
		if ctx == nil {
			ctx = d.Message.ExtendedText.ContextInfo
		}
	case d.Message.Image != nil:
		body = models.CaptionedMediaBody(d.Message.Image.Caption)
		if ctx == nil {
			ctx = d.Message.Image.ContextInfo
		}
	default:
		body = models.TextBody(d.Message.Conversation)
	}

	id := strings.TrimSpace(d.Key.ID)
	if id == "" {
		id = utils.GenID()
	}
	ts := d.MessageTimestamp
	if ts == 0 {
		ts = time.Now().UTC().Unix()
	}

	in := models.InboundMessage{
		ID:      id,
		Channel: d.Key.RemoteJid,
		Sender:  d.PushName,
		Body:    body,
		// provider timestamps are unix seconds
		TS: ts * 1000,
	}
	if ctx != nil {
		in.ParentID = ctx.StanzaID
		in.Quoted = ctx.quotedText()
	}
	return in
}
