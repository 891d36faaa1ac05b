package agent

import (
	"fmt"
	"io"

	"github.com/kvtap/kvtap/memd"
)

// readFrame reads exactly one response frame (header plus the body
// TotalBodyLen names) from r. It mirrors the teacher's readPacket
// (proxy/mysql/conn.go), which reads a fixed header to learn the
// variable body length before reading the body.
func readFrame(r io.Reader) ([]byte, error) {
	head := make([]byte, memd.HeaderLen)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("agent: read header: %w", err)
	}
	h, err := memd.DecodeHeader(head)
	if err != nil {
		return nil, fmt.Errorf("agent: decode header: %w", err)
	}

	frame := make([]byte, memd.HeaderLen+int(h.TotalBodyLen))
	copy(frame, head)
	if h.TotalBodyLen > 0 {
		if _, err := io.ReadFull(r, frame[memd.HeaderLen:]); err != nil {
			return nil, fmt.Errorf("agent: read body: %w", err)
		}
	}
	return frame, nil
}
