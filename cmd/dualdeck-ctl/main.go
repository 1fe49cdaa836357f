// ABOUTME: Command-line remote control for a running Dualdeck player
// ABOUTME: Finds the player via mDNS or -addr and sends one command
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dualdeck/dualdeck-go/internal/client"
	"github.com/dualdeck/dualdeck-go/internal/discovery"
	"github.com/dualdeck/dualdeck-go/internal/protocol"
	"github.com/dualdeck/dualdeck-go/internal/version"
	log "github.com/sirupsen/logrus"
)

var (
	addr    = flag.String("addr", "", "Player address host:port (default: discover via mDNS)")
	timeout = flag.Duration("timeout", 5*time.Second, "Discovery and command timeout")
	debug   = flag.Bool("debug", false, "Enable debug logging")
)

const usage = `usage: dualdeck-ctl [flags] <command> [args]

commands:
  status                    print player state
  watch                     stream state and completions
  pause|resume|toggle <slot>
  pause-all | resume-all
  seek <slot> <ms|+ms|-ms>
  volume <slot> <gain|+d|-d>
  mode [split|same]         toggle when omitted
  swap [true|false]         toggle when omitted
  primary [slot]            toggle when omitted
  next|prev <slot>
  source <slot> <path>      file, directory, .m3u or tone:<hz>[:<sec>]
  clear <slot>
`

var errUsage = errors.New("bad usage")

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(args); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\n\n", err)
			flag.Usage()
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	verb := args[0]
	var cmd protocol.Command
	if verb != "status" && verb != "watch" {
		var err error
		if cmd, err = parseCommand(args); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	target := *addr
	if target == "" {
		p, err := discovery.Lookup(ctx)
		if err != nil {
			return err
		}
		target = p.Addr()
		log.Debugf("Discovered %s at %s", p.Name, target)
	}

	c := client.NewClient(client.Config{
		ServerAddr: target,
		Name:       "dualdeck-ctl " + version.Version,
	})
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	switch verb {
	case "status":
		return printStatus(ctx, c)
	case "watch":
		return watch(c)
	}

	if err := c.Send(ctx, cmd); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

// parseCommand maps CLI words onto a protocol command
func parseCommand(args []string) (protocol.Command, error) {
	verb, rest := args[0], args[1:]

	need := func(n int) error {
		if len(rest) != n {
			return fmt.Errorf("%w: %s takes %d argument(s)", errUsage, verb, n)
		}
		return nil
	}
	optional := func() (string, error) {
		if len(rest) > 1 {
			return "", fmt.Errorf("%w: %s takes at most one argument", errUsage, verb)
		}
		if len(rest) == 1 {
			return rest[0], nil
		}
		return "", nil
	}

	switch verb {
	case "pause", "resume", "toggle", "next", "prev", "clear":
		if err := need(1); err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{Action: verb, Slot: strings.ToUpper(rest[0])}, nil
	case "pause-all", "resume-all":
		if err := need(0); err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{Action: strings.ReplaceAll(verb, "-", "_")}, nil
	case "seek", "volume":
		if err := need(2); err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{Action: verb, Slot: strings.ToUpper(rest[0]), Value: rest[1]}, nil
	case "source":
		if err := need(2); err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{Action: protocol.ActionLoad, Slot: strings.ToUpper(rest[0]), Value: rest[1]}, nil
	case "mode", "swap":
		v, err := optional()
		if err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{Action: verb, Value: v}, nil
	case "primary":
		v, err := optional()
		if err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{Action: protocol.ActionPrimary, Slot: strings.ToUpper(v)}, nil
	}

	return protocol.Command{}, fmt.Errorf("%w: unknown command %q", errUsage, verb)
}

func printStatus(ctx context.Context, c *client.Client) error {
	if err := c.RequestStatus(); err != nil {
		return err
	}
	select {
	case st := <-c.Status:
		fmt.Print(formatStatus(st))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("no status received: %w", ctx.Err())
	}
}

func watch(c *client.Client) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case st := <-c.Status:
			fmt.Print(formatStatus(st))
			fmt.Println()
		case done := <-c.Completions:
			fmt.Printf("slot %s finished %s\n", done.Slot, done.Source)
		case <-ticker.C:
			if !c.IsConnected() {
				return client.ErrNotConnected
			}
		case <-sigChan:
			return nil
		}
	}
}

func formatStatus(st protocol.Status) string {
	var b strings.Builder

	state := "stopped"
	if st.Running {
		state = fmt.Sprintf("running at %d Hz", st.SampleRate)
	}
	fmt.Fprintf(&b, "engine %s, mode %s, swap %v, primary %s\n", state, st.Mode, st.Swapped, st.Primary)

	for _, s := range st.Slots {
		if !s.Loaded {
			fmt.Fprintf(&b, "  %s: empty\n", s.Slot)
			continue
		}
		label := "paused"
		switch {
		case s.EndOfStream:
			label = "ended"
		case s.Playing:
			label = "playing"
		}
		title := s.Title
		if s.Tracks > 1 {
			title = fmt.Sprintf("%s [%d/%d]", title, s.Track, s.Tracks)
		}
		fmt.Fprintf(&b, "  %s: %-7s %s  %d/%d ms  vol %.2f\n",
			s.Slot, label, title, s.ProgressMs, s.DurationMs, s.Volume)
	}
	return b.String()
}
