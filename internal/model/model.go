// Package model holds the wire types shared across the gateway,
// dispatcher and store processes.
package model

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MinTimestamp and MaxTimestamp bound an unrestricted summary query,
// per the gateway's documented defaults for missing from/to.
const (
	MinTimestamp = "0000-01-01T00:00:00Z"
	MaxTimestamp = "9999-12-31T23:59:59Z"
)

// PaymentRequest is what the gateway receives on POST /payments and
// forwards, unchanged, to a dispatcher instance.
type PaymentRequest struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
}

// Encode serializes the request as a single line (no trailing
// newline) for the G->A socket.
func (p PaymentRequest) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodePaymentRequest parses one line of A's ingress socket.
func DecodePaymentRequest(line []byte) (PaymentRequest, error) {
	var p PaymentRequest
	if err := json.Unmarshal(line, &p); err != nil {
		return PaymentRequest{}, err
	}
	return p, nil
}

// PaymentSubmission is built by a dispatcher worker at first dispatch
// attempt; requested_at is fixed then and reused across retries, the
// fallback attempt, and as the store key.
type PaymentSubmission struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
	RequestedAt   string  `json:"requestedAt"`
}

func NewPaymentSubmission(req PaymentRequest, requestedAt time.Time) PaymentSubmission {
	return PaymentSubmission{
		CorrelationID: req.CorrelationID,
		Amount:        req.Amount,
		RequestedAt:   requestedAt.UTC().Format(time.RFC3339),
	}
}

func (p PaymentSubmission) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Partition names one of the store's two logical key spaces.
type Partition string

const (
	PartitionDefault  Partition = "Default"
	PartitionFallback Partition = "Fallback"
)

// StoreRecord is what the store persists per successful payment: a
// key-ordered RFC 3339 timestamp mapped to the amount.
type StoreRecord struct {
	Key    string
	Amount float64
}

// PartitionSummary is the fold of every StoreRecord in a partition
// over a queried key range.
type PartitionSummary struct {
	TotalRequests uint64  `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

// GlobalSummary is the JSON body of GET /payments-summary and the
// single response line the store sends back for a Read command.
type GlobalSummary struct {
	Default  PartitionSummary `json:"default"`
	Fallback PartitionSummary `json:"fallback"`
}

// StoreCommand is the tagged union framed one-per-line on the A<->S
// and G<->S sockets. Exactly one of the embedded pointers is set.
type StoreCommand struct {
	Write *WriteCommand `json:"Write,omitempty"`
	Read  *ReadCommand  `json:"Read,omitempty"`
	Purge *struct{}     `json:"Purge,omitempty"`
}

type WriteCommand struct {
	Key       string    `json:"key"`
	Value     float64   `json:"value"`
	Partition Partition `json:"tree"`
}

type ReadCommand struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func NewWriteCommand(key string, amount float64, partition Partition) StoreCommand {
	return StoreCommand{Write: &WriteCommand{Key: key, Value: amount, Partition: partition}}
}

func NewReadCommand(from, to string) StoreCommand {
	return StoreCommand{Read: &ReadCommand{From: from, To: to}}
}

func NewPurgeCommand() StoreCommand {
	return StoreCommand{Purge: &struct{}{}}
}

func (c StoreCommand) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// DecodeStoreCommand parses one IPC frame. A line with none or more
// than one variant set is rejected — the envelope must be exhaustive
// and unambiguous.
func DecodeStoreCommand(line []byte) (StoreCommand, error) {
	var c StoreCommand
	if err := json.Unmarshal(line, &c); err != nil {
		return StoreCommand{}, err
	}
	set := 0
	if c.Write != nil {
		set++
	}
	if c.Read != nil {
		set++
	}
	if c.Purge != nil {
		set++
	}
	if set != 1 {
		return StoreCommand{}, fmt.Errorf("model: store command must set exactly one variant, got %d", set)
	}
	return c, nil
}

func DecodeGlobalSummary(line []byte) (GlobalSummary, error) {
	var g GlobalSummary
	if err := json.Unmarshal(line, &g); err != nil {
		return GlobalSummary{}, err
	}
	return g, nil
}

func (g GlobalSummary) Encode() ([]byte, error) {
	return json.Marshal(g)
}
