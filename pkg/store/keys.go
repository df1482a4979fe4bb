package store

import "fmt"

// Key layout:
//
//	chan:<channelID>:msg:<unix_millis_padded>-<seq>  channel-ordered log entry
//	msg:<messageID>                                  id index for parent lookups
//
// The padded millisecond prefix keeps channel iteration in insertion
// order; seq disambiguates same-millisecond arrivals.

// ChanKey builds the channel-ordered log key for a message.
func ChanKey(channel string, tsMillis int64, seq uint64) string {
	return fmt.Sprintf("chan:%s:msg:%020d-%06d", channel, tsMillis, seq)
}

// MsgKey builds the id-index key for a message.
func MsgKey(id string) string {
	return "msg:" + id
}

func chanPrefix(channel string) string {
	return "chan:" + channel + ":msg:"
}
