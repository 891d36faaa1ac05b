// Package detect finds hot-key bursts: a document key (or normalized
// sub-document path) accessed at least a threshold number of times within
// a short window. Each key is counted on its own; it is not compared with
// other keys. Adapted from the teacher's N+1 query detector — same
// sliding-window-plus-cooldown algorithm, re-keyed from SQL query text
// to document keys.
//
// Unlike SQL query text, a document key is only unique within the bucket
// it lives in: "user:1" in one bucket and "user:1" in another are
// unrelated documents, so every access is scoped by bucket as well as
// key. A connection that never selects a bucket works the same as
// before — bucket is just "" for every access.
package detect

import (
	"sync"
	"time"
)

// Alert represents a detected hot-key burst.
type Alert struct {
	Bucket string
	Key    string
	Count  int
}

// scope identifies one bucket-qualified key whose access history is
// tracked independently of every other bucket's.
type scope struct {
	bucket string
	key    string
}

// Detector tracks per-bucket-key access frequency and detects hot-key
// bursts.
type Detector struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	cooldown  time.Duration
	accesses  map[scope][]time.Time
	lastAlert map[scope]time.Time
}

// New creates a Detector.
// threshold: number of accesses to trigger (e.g., 20).
// window: time window to count within (e.g., 1s).
// cooldown: minimum time between alerts for the same key (e.g., 10s).
func New(threshold int, window, cooldown time.Duration) *Detector {
	return &Detector{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		accesses:  make(map[scope][]time.Time),
		lastAlert: make(map[scope]time.Time),
	}
}

// Result holds the outcome of a Record call.
type Result struct {
	// Matched is true when the key's access count is at or above the
	// threshold within the time window. Use this to mark every event in
	// the burst as a hot key.
	Matched bool
	// Alert is non-nil only when the threshold is first crossed
	// (respecting cooldown). Use this to trigger a one-time notification.
	Alert *Alert
}

// Record registers an access to key within bucket and returns a Result.
// bucket is "" for connections that never selected one; a key is only
// ever compared against accesses sharing the same bucket.
func (d *Detector) Record(bucket, key string, t time.Time) Result {
	if key == "" {
		return Result{}
	}
	sc := scope{bucket: bucket, key: key}

	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := t.Add(-d.window)

	// Evict old entries and append the new timestamp.
	times := d.accesses[sc]
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	times = append(times[start:], t)
	d.accesses[sc] = times

	if len(times) < d.threshold {
		return Result{}
	}

	res := Result{Matched: true}

	// Only fire an alert notification respecting cooldown.
	if last, ok := d.lastAlert[sc]; !ok || t.Sub(last) >= d.cooldown {
		d.lastAlert[sc] = t
		res.Alert = &Alert{Bucket: bucket, Key: key, Count: len(times)}
	}

	return res
}
