package codec

import (
	"encoding/binary"
	"testing"

	"github.com/kvtap/kvtap/memd"
)

func TestSubdocMultiLookupDecode(t *testing.T) {
	cmds := []memd.SubdocCommand{
		{Op: memd.OpSubdocGet, Path: []byte("a")},
		{Op: memd.OpSubdocExists, Path: []byte("b")},
	}
	body := []byte{}
	body = append(body, 0, 0)
	body = append(body, u32be(2)...)
	body = append(body, []byte("42")...)
	body = append(body, 0, 1)
	body = append(body, u32be(0)...)

	results, err := decodeSubdocMultiLookup(memd.StatusSuccess, cmds, body)
	if err != nil {
		t.Fatalf("decodeSubdocMultiLookup: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Status != memd.StatusSuccess || string(results[0].Value) != "42" {
		t.Fatalf("result[0] = %+v", results[0])
	}
	if results[1].Status != memd.StatusKeyNotFound || len(results[1].Value) != 0 {
		t.Fatalf("result[1] = %+v", results[1])
	}
}

func TestSubdocMultiLookupTruncatedIsProtocolError(t *testing.T) {
	cmds := []memd.SubdocCommand{{Op: memd.OpSubdocGet, Path: []byte("a")}}
	_, err := decodeSubdocMultiLookup(memd.StatusSuccess, cmds, []byte{0, 0})
	if err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestSubdocMultiLookupNonSuccessStatusYieldsNilResults(t *testing.T) {
	cmds := []memd.SubdocCommand{{Op: memd.OpSubdocGet, Path: []byte("a")}}
	results, err := decodeSubdocMultiLookup(memd.StatusKeyNotFound, cmds, nil)
	if err != nil {
		t.Fatalf("decodeSubdocMultiLookup: %v", err)
	}
	if results != nil {
		t.Fatalf("got %+v, want nil", results)
	}
}

func TestSubdocMultiMutationFailureBody(t *testing.T) {
	cmds := []memd.SubdocCommand{
		{Op: memd.OpSubdocDictSet, Path: []byte("a")},
		{Op: memd.OpSubdocDictSet, Path: []byte("b")},
	}
	body := []byte{1, 0, 0xc0} // index 1, StatusSubdocPathNotFound
	results, idx, st, err := decodeSubdocMultiMutation(memd.StatusSubdocMultiPathFailure, cmds, body)
	if err != nil {
		t.Fatalf("decodeSubdocMultiMutation: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil per-command results on multi-path failure, got %+v", results)
	}
	if idx != 1 || st != memd.StatusSubdocPathNotFound {
		t.Fatalf("firstErrIdx=%d firstErrStatus=%v, want 1/PathNotFound", idx, st)
	}
}

func TestSubdocMultiMutationFailureBodyTruncated(t *testing.T) {
	cmds := []memd.SubdocCommand{{Op: memd.OpSubdocDictSet, Path: []byte("a")}}
	_, _, _, err := decodeSubdocMultiMutation(memd.StatusSubdocMultiPathFailure, cmds, []byte{1, 0})
	if err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestSubdocMultiMutationSuccessDeletedIsTreatedAsSuccess(t *testing.T) {
	cmds := []memd.SubdocCommand{{Op: memd.OpSubdocDictSet, Path: []byte("a")}}
	results, _, _, err := decodeSubdocMultiMutation(memd.StatusSubdocSuccessDeleted, cmds, nil)
	if err != nil {
		t.Fatalf("decodeSubdocMultiMutation: %v", err)
	}
	if len(results) != 1 || results[0].Status != memd.StatusSuccess {
		t.Fatalf("expected synthesized success result for SUCCESS_DELETED, got %+v", results)
	}
}

func TestSubdocMultiMutationSuccessAllSynthesized(t *testing.T) {
	cmds := []memd.SubdocCommand{
		{Op: memd.OpSubdocDictSet, Path: []byte("a")},
		{Op: memd.OpSubdocDictSet, Path: []byte("b")},
	}
	results, err := decodeMultiMutationSuccess(cmds, nil)
	if err != nil {
		t.Fatalf("decodeMultiMutationSuccess: %v", err)
	}
	if len(results) != 2 || results[0].Status != memd.StatusSuccess || results[1].Status != memd.StatusSuccess {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSubdocMultiMutationSuccessOutOfRangeIndexIsProtocolError(t *testing.T) {
	cmds := []memd.SubdocCommand{{Op: memd.OpSubdocDictSet, Path: []byte("a")}}
	body := make([]byte, 0)
	body = append(body, 5, 0, 0)
	body = append(body, u32be(0)...)
	_, err := decodeMultiMutationSuccess(cmds, body)
	if err == nil {
		t.Fatal("expected out-of-range index to be a protocol error")
	}
}

func TestSubdocMultiMutationSuccessNonMonotonicIndexIsProtocolError(t *testing.T) {
	cmds := []memd.SubdocCommand{
		{Op: memd.OpSubdocDictSet, Path: []byte("a")},
		{Op: memd.OpSubdocDictSet, Path: []byte("b")},
	}
	body := make([]byte, 0)
	body = append(body, 1, 0, 0)
	body = append(body, u32be(0)...)
	body = append(body, 0, 0, 0)
	body = append(body, u32be(0)...)
	_, err := decodeMultiMutationSuccess(cmds, body)
	if err == nil {
		t.Fatal("expected non-monotonic index to be a protocol error")
	}
}

func TestSubdocMultiMutationSuccessValueOnlyWhenEntryStatusSuccess(t *testing.T) {
	cmds := []memd.SubdocCommand{{Op: memd.OpSubdocCounter, Path: []byte("n")}}
	body := make([]byte, 0)
	body = append(body, 0, 0, 0)
	body = append(body, u32be(1)...)
	body = append(body, '5')
	results, err := decodeMultiMutationSuccess(cmds, body)
	if err != nil {
		t.Fatalf("decodeMultiMutationSuccess: %v", err)
	}
	if string(results[0].Value) != "5" {
		t.Fatalf("result = %+v, want value 5", results[0])
	}
}

func TestEncodeLookupAndMutationSpecsRoundTripLengths(t *testing.T) {
	cmds := []memd.SubdocCommand{
		{Op: memd.OpSubdocGet, Path: []byte("x.y")},
	}
	lookup := encodeLookupSpecs(cmds)
	if len(lookup) != 1+1+2+3 {
		t.Fatalf("lookup spec length = %d, want %d", len(lookup), 7)
	}
	if binary.BigEndian.Uint16(lookup[2:4]) != 3 {
		t.Fatalf("encoded path length = %d, want 3", binary.BigEndian.Uint16(lookup[2:4]))
	}

	mutCmds := []memd.SubdocCommand{
		{Op: memd.OpSubdocDictSet, Path: []byte("x"), Value: []byte("1")},
	}
	mut := encodeMutationSpecs(mutCmds)
	if len(mut) != 1+1+2+4+1+1 {
		t.Fatalf("mutation spec length = %d, want %d", len(mut), 10)
	}
}
