package agent

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/kvtap/kvtap/codec"
	"github.com/kvtap/kvtap/memd"
)

func TestHelloHandshake(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		raw := readRawFrame(t, server)
		h, _ := memd.DecodeHeader(raw)
		body := make([]byte, 2)
		binary.BigEndian.PutUint16(body, uint16(memd.FeatureSeqNo))
		writeResponse(t, server, memd.OpHello, memd.StatusSuccess, h.Opaque, 0, nil, nil, body)
	}()

	a := New(client, codec.Config{MutationTokensEnabled: true}, nil)
	accepted, err := a.Hello([]memd.HelloFeature{memd.FeatureSeqNo})
	if err != nil {
		t.Fatalf("Hello: %v", err)
	}
	if !accepted.Has(memd.FeatureSeqNo) {
		t.Fatalf("expected FeatureSeqNo accepted, got %+v", accepted)
	}
}

func TestSelectBucketRequiresNegotiatedFeature(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	defer client.Close()

	a := New(client, codec.Config{}, nil)
	if err := a.SelectBucket("widgets"); err == nil {
		t.Fatal("expected error selecting bucket before hello negotiates FeatureSelectBucket")
	}
}

func TestSelectBucketStampsSubsequentDispatches(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		raw := readRawFrame(t, server)
		h, _ := memd.DecodeHeader(raw)
		body := make([]byte, 2)
		binary.BigEndian.PutUint16(body, uint16(memd.FeatureSelectBucket))
		writeResponse(t, server, memd.OpHello, memd.StatusSuccess, h.Opaque, 0, nil, nil, body)
	}()

	a := New(client, codec.Config{}, nil)
	if _, err := a.Hello([]memd.HelloFeature{memd.FeatureSelectBucket}); err != nil {
		t.Fatalf("Hello: %v", err)
	}

	go func() {
		raw := readRawFrame(t, server)
		h, _ := memd.DecodeHeader(raw)
		writeResponse(t, server, memd.OpSelectBucket, memd.StatusSuccess, h.Opaque, 0, nil, nil, nil)
	}()
	if err := a.SelectBucket("widgets"); err != nil {
		t.Fatalf("SelectBucket: %v", err)
	}

	events := make(chan Event, 1)
	a.events = events
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		raw := readRawFrame(t, server)
		h, _ := memd.DecodeHeader(raw)
		writeResponse(t, server, memd.OpGet, memd.StatusSuccess, h.Opaque, 0, u32be(0), nil, []byte("v"))
	}()

	req := &memd.GetRequest{
		RequestMeta: memd.RequestMeta{Opaque: a.NextOpaque(), Partition: -1, Key: []byte("k1")},
		Op:          memd.OpGet,
	}
	if err := a.Dispatch(req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if req.Bucket != "widgets" {
		t.Fatalf("got bucket %q on dispatched request, want %q", req.Bucket, "widgets")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	select {
	case ev := <-events:
		if ev.Bucket != "widgets" {
			t.Fatalf("event bucket = %q, want %q", ev.Bucket, "widgets")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	<-serverDone
	_ = a.Close()
	<-runErr
}

func u32be(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func TestDispatchAndRunPublishesEvent(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	events := make(chan Event, 1)
	a := New(client, codec.Config{}, events)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		raw := readRawFrame(t, server)
		h, _ := memd.DecodeHeader(raw)
		writeResponse(t, server, memd.OpGet, memd.StatusSuccess, h.Opaque, 0x42, nil, nil, []byte("hello"))
	}()

	req := &memd.GetRequest{
		RequestMeta: memd.RequestMeta{Opaque: a.NextOpaque(), Partition: -1, Key: []byte("k1")},
		Op:          memd.OpGet,
	}
	if err := a.Dispatch(req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	select {
	case ev := <-events:
		if ev.Key != "k1" || ev.Op != "GET" || ev.Status != memd.StatusSuccess || ev.ValuePreview != "hello" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	<-serverDone
	_ = a.Close()
	<-runErr
}

func readRawFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	raw, err := readFrame(conn)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	return raw
}

func writeResponse(t *testing.T, conn net.Conn, op memd.Opcode, status memd.Status, opaque uint32, cas uint64, extras, key, value []byte) {
	t.Helper()
	bodyLen := len(extras) + len(key) + len(value)
	frame := make([]byte, memd.HeaderLen+bodyLen)
	memd.EncodeHeader(frame, memd.Header{
		Magic:        memd.MagicRes,
		Opcode:       op,
		KeyLen:       uint16(len(key)),
		ExtrasLen:    uint8(len(extras)),
		StatusOrVB:   uint16(status),
		TotalBodyLen: uint32(bodyLen),
		Opaque:       opaque,
		CAS:          cas,
	})
	off := memd.HeaderLen
	off += copy(frame[off:], extras)
	off += copy(frame[off:], key)
	copy(frame[off:], value)
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write response: %v", err)
	}
}
