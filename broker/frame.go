/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package broker

import "encoding/json"

// Op is the verb of a broker frame.
type Op string

const (
	// client -> broker
	OpRegister Op = "register"
	OpConnect  Op = "connect"
	OpLeave    Op = "leave"

	// broker -> client
	OpRegistered Op = "registered"
	OpIncoming   Op = "incoming"
	OpPaired     Op = "paired"
	OpPeerLeft   Op = "peer_left"
	OpError      Op = "error"

	// both directions; relayed verbatim to the partner
	OpData Op = "data"
)

// label names op in metrics. Ops a client made up share one label.
func (op Op) label() string {
	switch op {
	case OpRegister, OpConnect, OpLeave, OpRegistered, OpIncoming, OpPaired, OpPeerLeft, OpError, OpData:
		return string(op)
	default:
		return "unknown"
	}
}

// Error codes carried in an OpError frame.
const (
	CodeIDTaken         = "id_taken"
	CodePeerUnavailable = "peer_unavailable"
	CodePeerBusy        = "peer_busy"
	CodeNotRegistered   = "not_registered"
	CodeNotPaired       = "not_paired"
	CodeBadFrame        = "bad_frame"
)

// Frame is the only message shape on the broker websocket. The broker never
// looks inside Data.
type Frame struct {
	Op   Op              `json:"op"`
	ID   string          `json:"id,omitempty"`
	Code string          `json:"code,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func errorFrame(code, id string) Frame {
	return Frame{Op: OpError, Code: code, ID: id}
}
