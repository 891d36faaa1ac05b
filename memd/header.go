package memd

import (
	"encoding/binary"
	"fmt"
)

// HeaderLen is the fixed size of the binary protocol header, in bytes.
const HeaderLen = 24

// Header is the 24-byte frame header shared by every request and response.
//
//	byte/0: magic
//	byte/1: opcode
//	byte/2-3: key length
//	byte/4: extras length
//	byte/5: data type
//	byte/6-7: status (response) or vbucket id (request)
//	byte/8-11: total body length (extras + key + value)
//	byte/12-15: opaque
//	byte/16-23: CAS
type Header struct {
	Magic        Magic
	Opcode       Opcode
	KeyLen       uint16
	ExtrasLen    uint8
	DataType     uint8
	StatusOrVB   uint16
	TotalBodyLen uint32
	Opaque       uint32
	CAS          uint64
}

// Status interprets StatusOrVB as a response status code.
func (h Header) Status() Status {
	return Status(h.StatusOrVB)
}

// VBucket interprets StatusOrVB as a request's target partition id.
func (h Header) VBucket() uint16 {
	return h.StatusOrVB
}

// ValueLen returns the length of the value section, given the key and
// extras lengths already present in the header.
func (h Header) ValueLen() int {
	return int(h.TotalBodyLen) - int(h.KeyLen) - int(h.ExtrasLen)
}

// EncodeHeader writes h into the first HeaderLen bytes of dst, which must
// be at least HeaderLen bytes long.
func EncodeHeader(dst []byte, h Header) {
	dst[0] = byte(h.Magic)
	dst[1] = byte(h.Opcode)
	binary.BigEndian.PutUint16(dst[2:4], h.KeyLen)
	dst[4] = h.ExtrasLen
	dst[5] = h.DataType
	binary.BigEndian.PutUint16(dst[6:8], h.StatusOrVB)
	binary.BigEndian.PutUint32(dst[8:12], h.TotalBodyLen)
	binary.BigEndian.PutUint32(dst[12:16], h.Opaque)
	binary.BigEndian.PutUint64(dst[16:24], h.CAS)
}

// DecodeHeader parses the first HeaderLen bytes of src into a Header. It
// returns an error if src is too short or the magic byte is neither a
// request nor a response marker.
func DecodeHeader(src []byte) (Header, error) {
	if len(src) < HeaderLen {
		return Header{}, fmt.Errorf("memd: decode header: short read: got %d bytes, need %d", len(src), HeaderLen)
	}
	magic := Magic(src[0])
	if magic != MagicReq && magic != MagicRes {
		return Header{}, fmt.Errorf("memd: decode header: unknown magic byte 0x%02x", src[0])
	}
	return Header{
		Magic:        magic,
		Opcode:       Opcode(src[1]),
		KeyLen:       binary.BigEndian.Uint16(src[2:4]),
		ExtrasLen:    src[4],
		DataType:     src[5],
		StatusOrVB:   binary.BigEndian.Uint16(src[6:8]),
		TotalBodyLen: binary.BigEndian.Uint32(src[8:12]),
		Opaque:       binary.BigEndian.Uint32(src[12:16]),
		CAS:          binary.BigEndian.Uint64(src[16:24]),
	}, nil
}
