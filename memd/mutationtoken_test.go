package memd

import (
	"encoding/binary"
	"testing"
)

func TestExtractMutationToken(t *testing.T) {
	extras := make([]byte, 16)
	binary.BigEndian.PutUint64(extras[0:8], 0xAAAAAAAAAAAAAAAA)
	binary.BigEndian.PutUint64(extras[8:16], 0xBBBBBBBBBBBBBBBB)

	tok, ok := ExtractMutationToken(0, "widgets", extras)
	if !ok {
		t.Fatal("expected ok=true for 16-byte extras")
	}
	if tok.VbUUID != VbUuid(0xAAAAAAAAAAAAAAAA) || tok.SeqNo != SeqNo(0xBBBBBBBBBBBBBBBB) {
		t.Fatalf("unexpected token: %+v", tok)
	}
	if tok.Bucket != "widgets" {
		t.Fatalf("got bucket %q, want %q", tok.Bucket, "widgets")
	}
}

func TestExtractMutationTokenWrongLength(t *testing.T) {
	if _, ok := ExtractMutationToken(0, "widgets", []byte{1, 2, 3}); ok {
		t.Fatal("expected ok=false for short extras")
	}
	if _, ok := ExtractMutationToken(0, "widgets", nil); ok {
		t.Fatal("expected ok=false for nil extras")
	}
}
