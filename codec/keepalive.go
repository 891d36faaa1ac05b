package codec

import (
	"sync/atomic"
	"time"

	"github.com/kvtap/kvtap/memd"
)

// KeepAlive emits synthetic NOOP requests on idle, per §4.4. It holds no
// connection state of its own; the surrounding framework decides when a
// connection is idle and calls Generate to obtain the next keep-alive
// request to encode.
type KeepAlive struct {
	interval time.Duration
	opaque   *uint32
}

// NewKeepAlive constructs a generator configured with interval as its idle
// timeout. It runs no timer: interval is only stored and reported by
// Interval, and nothing is emitted until the caller invokes Generate.
// opaque is a shared counter with the rest of the connection
// so keep-alive opaques never collide with application request opaques.
func NewKeepAlive(interval time.Duration, opaque *uint32) *KeepAlive {
	return &KeepAlive{interval: interval, opaque: opaque}
}

// Interval reports the configured idle timeout.
func (k *KeepAlive) Interval() time.Duration {
	return k.interval
}

// Generate builds the next keep-alive request: an all-zero partition NOOP
// with no payload.
func (k *KeepAlive) Generate() *memd.NoopRequest {
	return &memd.NoopRequest{
		RequestMeta: memd.RequestMeta{
			Opaque:    atomic.AddUint32(k.opaque, 1),
			Partition: -1,
		},
	}
}
