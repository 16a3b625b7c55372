// Package wire implements the canonical binary encoding transactions are
// signed over, and the JSON encoding they are submitted in.
//
// The canonical form is deterministic: a byte-for-byte identical
// transaction always produces the same bytes, which is what makes
// signature determinism (spec Testable Property 3) possible. Every
// numeric field is written as a fixed-width big-endian integer — no
// floating point or string formatting ever enters the buffer, per the
// "floating-point discipline" design note in SPEC_FULL.md §9.
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/lighter-client/lighterclient/pkg/types"
)

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

// CanonicalCreateOrder returns the deterministic byte encoding of a
// CreateOrder transaction, excluding its Signature field (the signature
// covers everything else).
func CanonicalCreateOrder(tx types.CreateOrder) []byte {
	var buf bytes.Buffer
	writeInt64(&buf, int64(types.TxTypeCreateOrder))
	writeInt64(&buf, int64(tx.MarketId))
	writeInt64(&buf, tx.ClientOrderIndex)
	writeInt64(&buf, int64(tx.BaseAmount))
	writeInt64(&buf, int64(tx.Price))
	writeBool(&buf, tx.IsAsk)
	writeInt32(&buf, int32(tx.OrderType))
	writeInt32(&buf, int32(tx.TimeInForce))
	writeBool(&buf, tx.ReduceOnly)
	writeInt64(&buf, int64(tx.TriggerPrice))
	writeInt64(&buf, tx.OrderExpiry)
	writeInt64(&buf, int64(tx.Nonce))
	writeInt32(&buf, int32(tx.ApiKeyIndex))
	return buf.Bytes()
}

// CanonicalCancelOrder returns the deterministic byte encoding of a
// CancelOrder transaction, excluding its Signature field.
func CanonicalCancelOrder(tx types.CancelOrder) []byte {
	var buf bytes.Buffer
	writeInt64(&buf, int64(types.TxTypeCancelOrder))
	writeInt64(&buf, int64(tx.MarketId))
	writeInt64(&buf, tx.OrderIndex)
	writeInt64(&buf, int64(tx.Nonce))
	writeInt32(&buf, int32(tx.ApiKeyIndex))
	return buf.Bytes()
}

// CanonicalCancelAllOrders returns the deterministic byte encoding of a
// CancelAllOrders transaction, excluding its Signature field.
func CanonicalCancelAllOrders(tx types.CancelAllOrders) []byte {
	var buf bytes.Buffer
	writeInt64(&buf, int64(types.TxTypeCancelAllOrders))
	writeInt32(&buf, int32(tx.TimeInForceCutoff))
	writeInt64(&buf, tx.CutoffMs)
	writeInt64(&buf, int64(tx.Nonce))
	writeInt32(&buf, int32(tx.ApiKeyIndex))
	return buf.Bytes()
}

// CanonicalAuthToken returns the deterministic byte encoding of an
// AuthToken credential, excluding its Signature field.
func CanonicalAuthToken(tx types.AuthToken) []byte {
	var buf bytes.Buffer
	writeInt64(&buf, int64(tx.AccountId))
	writeInt32(&buf, int32(tx.ApiKeyIndex))
	writeInt64(&buf, tx.Expiry)
	return buf.Bytes()
}

// MarshalSigned encodes a signed transaction to the JSON string the
// exchange expects as tx_info in a sendtx / sendtxbatch envelope.
func MarshalSigned[T any](tx T) (string, error) {
	b, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("wire: marshal signed payload: %w", err)
	}
	return string(b), nil
}
