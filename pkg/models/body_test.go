package models

import "testing"

func TestDisplayTextVariants(t *testing.T) {
	cases := []struct {
		b    Body
		want string
	}{
		{TextBody("hello"), "hello"},
		{ExtendedTextBody("rich"), "rich"},
		{CaptionedMediaBody("see photo"), "see photo"},
		{Body{Kind: "sticker"}, ""},
		{Body{}, ""},
	}
	for _, c := range cases {
		if got := c.b.DisplayText(); got != c.want {
			t.Fatalf("DisplayText(%+v) = %q; want %q", c.b, got, c.want)
		}
	}
}

func TestIsReply(t *testing.T) {
	if (Message{ID: "m"}).IsReply() {
		t.Fatalf("plain message is not a reply")
	}
	if !(Message{ID: "m", ParentID: "p"}).IsReply() {
		t.Fatalf("parented message is a reply")
	}
	if !(Message{ID: "m", Quoted: "quoted text"}).IsReply() {
		t.Fatalf("quoted message is a reply")
	}
}
