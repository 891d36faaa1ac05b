package codec

import (
	"encoding/binary"

	"github.com/kvtap/kvtap/memd"
)

// decodeSubdocMultiLookup parses a SUBDOC_MULTI_LOOKUP response body per
// §4.3: on SUCCESS or SUBDOC_MULTI_PATH_FAILURE, the body is a
// concatenation of status(u16) ‖ length(u32) ‖ value, one per command in
// order. Any other status yields an empty result list.
func decodeSubdocMultiLookup(status memd.Status, commands []memd.SubdocCommand, body []byte) ([]memd.SubdocResult, error) {
	if status != memd.StatusSuccess && status != memd.StatusSubdocMultiPathFailure {
		return nil, nil
	}

	results := make([]memd.SubdocResult, 0, len(commands))
	off := 0
	for range commands {
		if len(body)-off < 6 {
			return nil, protocolErrorf("subdoc multi-lookup decode", "truncated result at offset %d (need 6 bytes, have %d)", off, len(body)-off)
		}
		cmdStatus := memd.Status(binary.BigEndian.Uint16(body[off : off+2]))
		valueLen := int(binary.BigEndian.Uint32(body[off+2 : off+6]))
		off += 6
		if len(body)-off < valueLen {
			return nil, protocolErrorf("subdoc multi-lookup decode", "truncated value at offset %d (need %d bytes, have %d)", off, valueLen, len(body)-off)
		}
		value := make([]byte, valueLen)
		copy(value, body[off:off+valueLen])
		off += valueLen
		results = append(results, memd.SubdocResult{Status: cmdStatus, Value: value})
	}
	return results, nil
}

// decodeSubdocMultiMutation parses a SUBDOC_MULTI_MUTATION response body
// per §4.3.
//
// On SUCCESS: the body holds one explicit entry per value-producing
// command: index(u8) ‖ status(u16) ‖ length(u32) ‖ value. Commands with
// no explicit entry are synthesized as SUCCESS with an empty value. The
// decoder walks commands and the body in lock-step, and requires the
// final result list to have exactly one entry per command.
//
// On SUBDOC_MULTI_PATH_FAILURE: the body is just
// first-error-index(u8) ‖ first-error-status(u16); no per-command results.
func decodeSubdocMultiMutation(status memd.Status, commands []memd.SubdocCommand, body []byte) (results []memd.SubdocResult, firstErrIdx uint8, firstErrStatus memd.Status, err error) {
	switch status {
	case memd.StatusSuccess, memd.StatusSubdocSuccessDeleted:
		results, err = decodeMultiMutationSuccess(commands, body)
		return results, 0, 0, err

	case memd.StatusSubdocMultiPathFailure:
		if len(body) < 3 {
			return nil, 0, 0, protocolErrorf("subdoc multi-mutation decode", "truncated failure body: need 3 bytes, have %d", len(body))
		}
		idx := body[0]
		st := memd.Status(binary.BigEndian.Uint16(body[1:3]))
		return nil, idx, st, nil

	default:
		return nil, 0, 0, nil
	}
}

func decodeMultiMutationSuccess(commands []memd.SubdocCommand, body []byte) ([]memd.SubdocResult, error) {
	results := make([]memd.SubdocResult, 0, len(commands))
	off := 0
	nextCommand := 0

	for off < len(body) {
		if len(body)-off < 3 {
			return nil, protocolErrorf("subdoc multi-mutation decode", "truncated entry header at offset %d", off)
		}
		responseIndex := int(body[off])
		entryStatus := memd.Status(binary.BigEndian.Uint16(body[off+1 : off+3]))
		off += 3

		if responseIndex < nextCommand {
			return nil, protocolErrorf("subdoc multi-mutation decode", "response index %d is not greater than last consumed command %d", responseIndex, nextCommand-1)
		}
		if responseIndex >= len(commands) {
			return nil, protocolErrorf("subdoc multi-mutation decode", "response index %d out of range for %d commands", responseIndex, len(commands))
		}

		for nextCommand < responseIndex {
			results = append(results, memd.SubdocResult{Status: memd.StatusSuccess})
			nextCommand++
		}

		var value []byte
		if entryStatus == memd.StatusSuccess {
			if len(body)-off < 4 {
				return nil, protocolErrorf("subdoc multi-mutation decode", "truncated value length at offset %d", off)
			}
			valueLen := int(binary.BigEndian.Uint32(body[off : off+4]))
			off += 4
			if len(body)-off < valueLen {
				return nil, protocolErrorf("subdoc multi-mutation decode", "truncated value at offset %d (need %d, have %d)", off, valueLen, len(body)-off)
			}
			value = make([]byte, valueLen)
			copy(value, body[off:off+valueLen])
			off += valueLen
		}

		results = append(results, memd.SubdocResult{Status: entryStatus, Value: value})
		nextCommand++
	}

	for nextCommand < len(commands) {
		results = append(results, memd.SubdocResult{Status: memd.StatusSuccess})
		nextCommand++
	}

	if len(results) != len(commands) {
		return nil, protocolErrorf("subdoc multi-mutation decode", "result count %d does not match command count %d", len(results), len(commands))
	}
	return results, nil
}
