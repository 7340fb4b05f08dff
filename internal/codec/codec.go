// Package codec provides the deterministic encoding and content hashing used
// for audit records and rationale shares.
package codec

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// encMode uses Core Deterministic Encoding: sorted map keys, smallest
// integer encoding, no indefinite-length items. Equal values always encode
// to equal bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	opts.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = opts.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Domain separates hashes of different object kinds. The same bytes hash
// differently in different domains.
type Domain [32]byte

var (
	DomainRationale = Domain{
		'a', 'g', 'e', 'n', 't', 'f', 'l', 'o', 'o', 'r', '.', 'r', 'a', 't', 'i', 'o',
		'n', 'a', 'l', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	DomainShare = Domain{
		'a', 'g', 'e', 'n', 't', 'f', 'l', 'o', 'o', 'r', '.', 's', 'h', 'a', 'r', 'e',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	DomainAudit = Domain{
		'a', 'g', 'e', 'n', 't', 'f', 'l', 'o', 'o', 'r', '.', 'a', 'u', 'd', 'i', 't',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// Sum returns the hex encoded BLAKE3 keyed hash of the concatenated parts.
func Sum(domain Domain, parts ...[]byte) string {
	h, err := blake3.NewKeyed(domain[:])
	if err != nil {
		panic("codec: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Hash encodes v deterministically and hashes the encoding together with
// any extra parts.
func Hash(domain Domain, v any, extra ...[]byte) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode for hashing: %w", err)
	}
	return Sum(domain, append([][]byte{data}, extra...)...), nil
}
