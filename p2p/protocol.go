// Package p2p implements the node's wire protocol: one TCP connection per
// message, no length framing, a short ASCII tag identifying the payload
// that follows, delimited only by the sender closing the connection.
package p2p

import (
	"io"
	"net"
	"strings"

	"go.uber.org/zap"
)

// Tag is a wire message's type prefix.
type Tag string

// The full set of message tags the protocol understands. Order here has no
// wire meaning; it follows the order in which the node's dispatch switch
// handles them.
const (
	TagData             Tag = "@DATA"
	TagHello            Tag = "@HELLO"
	TagJoin             Tag = "@JOIN"
	TagIntroduce        Tag = "#INTRO"
	TagOneBlock         Tag = "@ONEBLOCK"
	TagBlockchainReq    Tag = "@BLOCKCHAIN"
	TagBlockchainReply  Tag = "#BLOCKCHAIN"
	TagTransaction      Tag = "@TRANSACTION"
)

// orderedTags lists every tag longest-prefix-first so a message beginning
// with "#INTRO" is never mistaken for one beginning with "#" alone, and a
// message beginning with "@BLOCKCHAIN" is never mistaken for "@DATA" (none
// of the current tags collide, but matching longest first keeps that true
// if a future tag's prefix overlaps another).
var orderedTags = []Tag{
	TagTransaction,
	TagBlockchainReply,
	TagBlockchainReq,
	TagOneBlock,
	TagIntroduce,
	TagHello,
	TagJoin,
	TagData,
}

// Split separates a raw received message into its tag and payload. ok is
// false if no known tag prefixes the message.
func Split(raw string) (tag Tag, payload string, ok bool) {
	for _, t := range orderedTags {
		if strings.HasPrefix(raw, string(t)) {
			return t, raw[len(t):], true
		}
	}
	return "", "", false
}

// Dial opens one TCP connection to addr, writes tag followed by payload in
// full, and closes
// the connection — the entire send. There is no acknowledgement; delivery
// is best-effort.
func Dial(addr string, tag Tag, payload string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = io.WriteString(conn, string(tag)+payload)
	return err
}

// Handler processes one fully-received message.
type Handler func(tag Tag, payload string, from net.Addr)

// Serve accepts connections on ln until it is closed, reading each
// connection to EOF and invoking handle with the decoded tag and payload.
// Messages with an unrecognized tag are logged and dropped. Serve returns
// when ln.Accept fails, which happens when the listener is closed during
// shutdown.
func Serve(ln net.Listener, logger *zap.Logger, handle Handler) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go func(c net.Conn) {
			defer c.Close()
			data, err := io.ReadAll(c)
			if err != nil {
				logger.Debug("connection read failed", zap.Error(err))
				return
			}
			tag, payload, ok := Split(string(data))
			if !ok {
				logger.Debug("dropped message with unknown tag", zap.Int("len", len(data)))
				return
			}
			handle(tag, payload, c.RemoteAddr())
		}(conn)
	}
}
