// Command kvtap dials a memcached-compatible server, negotiates features,
// and watches the resulting traffic in a terminal UI (or headlessly), the
// way the teacher's sql-tapd watches SQL traffic — except kvtap is both
// the tap and the client generating the traffic, since there is no
// separate application process to sit in front of for this protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kvtap/kvtap/agent"
	"github.com/kvtap/kvtap/broker"
	"github.com/kvtap/kvtap/codec"
	"github.com/kvtap/kvtap/detect"
	"github.com/kvtap/kvtap/memd"
	"github.com/kvtap/kvtap/pathnorm"
	"github.com/kvtap/kvtap/tui"
	"github.com/kvtap/kvtap/web"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("kvtap", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "kvtap — watch a memcached-compatible binary protocol in real-time\n\nUsage:\n  kvtap [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	addr := fs.String("addr", "", "memcached-compatible server address (required)")
	httpAddr := fs.String("http", "", "HTTP server address for the web UI (e.g. :8080)")
	noTUI := fs.Bool("no-tui", false, "run headless, logging events instead of launching the terminal UI")
	hotThreshold := fs.Int("hot-threshold", 20, "hot-key detection threshold (0 to disable)")
	hotWindow := fs.Duration("hot-window", time.Second, "hot-key detection time window")
	hotCooldown := fs.Duration("hot-cooldown", 10*time.Second, "hot-key alert cooldown per key")
	mutationTokens := fs.Bool("mutation-tokens", true, "request mutation-token telemetry via HELLO")
	demo := fs.Bool("demo", true, "issue a scripted sequence of operations against the server to generate traffic")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("kvtap %s\n", version)
		return
	}

	if *addr == "" {
		fs.Usage()
		os.Exit(1)
	}

	if err := run(
		*addr, *httpAddr, *noTUI,
		*hotThreshold, *hotWindow, *hotCooldown,
		*mutationTokens, *demo,
	); err != nil {
		log.Fatal(err)
	}
}

func run(
	addr, httpAddr string, noTUI bool,
	hotThreshold int, hotWindow, hotCooldown time.Duration,
	mutationTokens, demo bool,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := broker.New(256)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("kvtap: dial %s: %w", addr, err)
	}

	rawEvents := make(chan agent.Event, 256)
	ag := agent.New(conn, codec.Config{MutationTokensEnabled: mutationTokens}, rawEvents)

	var features []memd.HelloFeature
	if mutationTokens {
		features = append(features, memd.FeatureSeqNo)
	}
	accepted, err := ag.Hello(features)
	if err != nil {
		return fmt.Errorf("kvtap: hello: %w", err)
	}
	log.Printf("connected to %s (session=%s, mutation-tokens=%v)",
		addr, ag.SessionID(), accepted.Has(memd.FeatureSeqNo))

	go func() {
		if err := ag.Run(ctx); err != nil {
			log.Printf("agent: %v", err)
		}
	}()

	var det *detect.Detector
	if hotThreshold > 0 {
		det = detect.New(hotThreshold, hotWindow, hotCooldown)
		log.Printf("hot-key detection enabled (threshold=%d, window=%s, cooldown=%s)",
			hotThreshold, hotWindow, hotCooldown)
	}

	go publishLoop(rawEvents, b, det, hotWindow)

	if httpAddr != "" {
		var lc net.ListenConfig
		httpLis, err := lc.Listen(ctx, "tcp", httpAddr)
		if err != nil {
			return fmt.Errorf("kvtap: listen http %s: %w", httpAddr, err)
		}
		webSrv := web.New(b)
		go func() {
			log.Printf("web UI listening on %s", httpAddr)
			if err := webSrv.Serve(httpLis); err != nil {
				log.Printf("web: serve: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = webSrv.Shutdown(shutdownCtx)
		}()
	}

	if demo {
		go runDemo(ctx, ag)
	}

	if noTUI {
		return watchHeadless(ctx, b)
	}

	sub, cancel := b.Subscribe()
	defer cancel()

	m := tui.New(addr, sub)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("kvtap: tui: %w", err)
	}

	return ag.Close()
}

// publishLoop applies hot-key detection to every captured event before
// fanning it out, so every subscriber (TUI, web) sees the same HotKey
// flag instead of each recomputing it independently.
func publishLoop(rawEvents <-chan agent.Event, b *broker.Broker, det *detect.Detector, window time.Duration) {
	for ev := range rawEvents {
		if det != nil && ev.Key != "" {
			label := ev.Key
			if ev.Path != "" {
				label = ev.Key + " " + pathnorm.Normalize(ev.Path)
			}
			r := det.Record(ev.Bucket, label, ev.StartTime)
			ev.HotKey = r.Matched
			if r.Alert != nil {
				log.Printf("hot key detected: bucket=%q key=%q (%d times in %s)", r.Alert.Bucket, r.Alert.Key, r.Alert.Count, window)
			}
		}
		b.Publish(ev)
	}
}

func watchHeadless(ctx context.Context, b *broker.Broker) error {
	sub, cancel := b.Subscribe()
	defer cancel()

	log.Printf("watching traffic headlessly (ctrl-c to stop)")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-sub:
			marker := ""
			if ev.HotKey {
				marker = " [hot]"
			}
			if ev.Error != "" {
				log.Printf("%-18s %-20s %-10s error=%s%s", ev.Op, ev.Key, ev.Duration, ev.Error, marker)
			} else {
				log.Printf("%-18s %-20s %-10s %s%s", ev.Op, ev.Key, ev.Duration, ev.Status, marker)
			}
		}
	}
}
