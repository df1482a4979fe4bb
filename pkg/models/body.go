package models

// BodyKind discriminates the supported message body variants. The
// provider delivers several alternative payload shapes; everything the
// reconciliation core needs is the display text, so the variants stay
// minimal.
type BodyKind string

const (
	// BodyText is a plain conversation message.
	BodyText BodyKind = "text"
	// BodyExtendedText is the provider's rich-text variant (links,
	// previews). Display-wise it behaves like plain text.
	BodyExtendedText BodyKind = "extended_text"
	// BodyCaptionedMedia is an image/video message whose caption is the
	// only textual content.
	BodyCaptionedMedia BodyKind = "captioned_media"
)

// Body is the tagged union of inbound payload shapes.
type Body struct {
	Kind    BodyKind `json:"kind"`
	Text    string   `json:"text,omitempty"`
	Caption string   `json:"caption,omitempty"`
}

// TextBody builds a plain-text body.
func TextBody(s string) Body { return Body{Kind: BodyText, Text: s} }

// ExtendedTextBody builds an extended-text body.
func ExtendedTextBody(s string) Body { return Body{Kind: BodyExtendedText, Text: s} }

// CaptionedMediaBody builds a captioned-media body.
func CaptionedMediaBody(caption string) Body {
	return Body{Kind: BodyCaptionedMedia, Caption: caption}
}

// DisplayText extracts the human-readable text for the variant. An
// unknown kind yields the empty string, which downstream treats as "no
// content".
func (b Body) DisplayText() string {
	switch b.Kind {
	case BodyText, BodyExtendedText:
		return b.Text
	case BodyCaptionedMedia:
		return b.Caption
	}
	return ""
}
