// Package transport implements the hub's request/reply fabric: named
// endpoints served over TCP with length-prefixed CBOR frames. One request is
// in flight per connection at a time, mirroring a REQ/REP socket pair, and
// every client call is bounded by a configured timeout so a dead peer can
// never stall the caller past its deadline.
package transport
