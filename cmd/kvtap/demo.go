package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kvtap/kvtap/agent"
	"github.com/kvtap/kvtap/memd"
)

// runDemo issues a rotating sequence of GET/UPSERT/SUBDOC_GET/COUNTER/
// OBSERVE requests so there is protocol traffic to watch without a
// separate client process in front of kvtap. One key is hit far more
// often than the others, so the hot-key detector has something to catch.
func runDemo(ctx context.Context, ag *agent.Agent) {
	keys := []string{"user:1", "user:2", "user:3"}
	hotKey := "session:hot"

	tick := time.NewTicker(150 * time.Millisecond)
	defer tick.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		key := hotKey
		if i%3 == 0 {
			key = keys[(i/3)%len(keys)]
		}

		switch i % 5 {
		case 0:
			demoUpsert(ag, key, i)
		case 1:
			demoGet(ag, key)
		case 2:
			demoSubdocGet(ag, key, "profile.name")
		case 3:
			demoCounter(ag, "counter:visits", 1)
		case 4:
			demoObserve(ag, key)
		}
	}
}

func demoUpsert(ag *agent.Agent, key string, seq int) {
	payload := memd.NewBuffer([]byte(fmt.Sprintf(`{"seq":%d}`, seq)))
	req := &memd.StoreRequest{
		RequestMeta: memd.RequestMeta{Opaque: ag.NextOpaque(), Partition: -1, Key: []byte(key)},
		Op:          memd.OpUpsert,
		Payload:     payload,
	}
	if err := ag.Dispatch(req); err != nil {
		log.Printf("demo: upsert %s: %v", key, err)
	}
	payload.Release()
}

func demoGet(ag *agent.Agent, key string) {
	req := &memd.GetRequest{
		RequestMeta: memd.RequestMeta{Opaque: ag.NextOpaque(), Partition: -1, Key: []byte(key)},
		Op:          memd.OpGet,
	}
	if err := ag.Dispatch(req); err != nil {
		log.Printf("demo: get %s: %v", key, err)
	}
}

func demoSubdocGet(ag *agent.Agent, key, path string) {
	req := &memd.SubdocRequest{
		RequestMeta: memd.RequestMeta{Opaque: ag.NextOpaque(), Partition: -1, Key: []byte(key)},
		Op:          memd.OpSubdocGet,
		Path:        []byte(path),
	}
	if err := ag.Dispatch(req); err != nil {
		log.Printf("demo: subdoc get %s %s: %v", key, path, err)
	}
}

func demoCounter(ag *agent.Agent, key string, delta int64) {
	req := &memd.CounterRequest{
		RequestMeta: memd.RequestMeta{Opaque: ag.NextOpaque(), Partition: -1, Key: []byte(key)},
		Delta:       delta,
	}
	if err := ag.Dispatch(req); err != nil {
		log.Printf("demo: counter %s: %v", key, err)
	}
}

func demoObserve(ag *agent.Agent, key string) {
	req := &memd.ObserveRequest{
		RequestMeta: memd.RequestMeta{Opaque: ag.NextOpaque(), Partition: -1, Key: []byte(key)},
	}
	if err := ag.Dispatch(req); err != nil {
		log.Printf("demo: observe %s: %v", key, err)
	}
}
