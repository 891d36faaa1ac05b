package codec

import (
	"github.com/kvtap/kvtap/memd"
)

// ResponseFrame is a response parsed off the wire but not yet classified
// by request variant, per §3's "Response (raw)" entity.
type ResponseFrame struct {
	Header memd.Header
	Extras []byte
	Key    []byte
	Value  []byte
}

// ParseResponseFrame splits a complete response frame (header + body,
// exactly memd.HeaderLen + header.TotalBodyLen bytes) into its header and
// extras/key/value sections.
func ParseResponseFrame(raw []byte) (ResponseFrame, error) {
	header, err := memd.DecodeHeader(raw)
	if err != nil {
		return ResponseFrame{}, err
	}
	body := raw[memd.HeaderLen:]
	wantLen := int(header.TotalBodyLen)
	if len(body) != wantLen {
		return ResponseFrame{}, protocolErrorf("parse frame", "body length %d does not match header total-body-length %d", len(body), wantLen)
	}

	extrasLen := int(header.ExtrasLen)
	keyLen := int(header.KeyLen)
	if extrasLen+keyLen > wantLen {
		return ResponseFrame{}, protocolErrorf("parse frame", "extras+key length %d exceeds body length %d", extrasLen+keyLen, wantLen)
	}

	return ResponseFrame{
		Header: header,
		Extras: body[:extrasLen],
		Key:    body[extrasLen : extrasLen+keyLen],
		Value:  body[extrasLen+keyLen:],
	}, nil
}
