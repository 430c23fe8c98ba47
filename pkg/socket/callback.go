package socket

import "github.com/joelguittet/go-axon/pkg/amp"

// BindFunc is invoked once a Bind call's listener is actually bound and
// listening, with the real bound port (useful when Bind(0) was used to
// pick an ephemeral port).
type BindFunc func(port int)

// MessageFunc is the generic message callback for SUB, PULL, REQ and REP
// endpoints. Its return value is only meaningful for REP: a non-nil
// *amp.Message is sent back as the reply; any other role's return value
// is ignored.
type MessageFunc func(msg *amp.Message) *amp.Message

// SubFunc is invoked once per subscription pattern matching an inbound
// topic, with the topic already stripped from msg.
type SubFunc func(topic string, msg *amp.Message)

// ErrorFunc reports a non-fatal failure: a listening socket that could
// not be set up, a failed accept, a failed outbound connection attempt,
// or a REP request that could not be answered. Decode failures are not
// reported here; they are only logged.
type ErrorFunc func(err string)
