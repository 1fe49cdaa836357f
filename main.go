// ABOUTME: Entry point for the Dualdeck player
// ABOUTME: Parses CLI flags over DUALDECK_* settings and runs the player
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dualdeck/dualdeck-go/internal/app"
	"github.com/dualdeck/dualdeck-go/internal/config"
	"github.com/dualdeck/dualdeck-go/internal/discovery"
	"github.com/dualdeck/dualdeck-go/internal/metrics"
	"github.com/dualdeck/dualdeck-go/internal/remote"
	"github.com/dualdeck/dualdeck-go/internal/ui"
	"github.com/dualdeck/dualdeck-go/internal/version"
	"github.com/dualdeck/dualdeck-go/pkg/audio/output"
	"github.com/dualdeck/dualdeck-go/pkg/dualdeck"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.SourceA, "a", cfg.SourceA, "Source for slot A (file, directory, .m3u or tone:<hz>[:<sec>])")
	flag.StringVar(&cfg.SourceB, "b", cfg.SourceB, "Source for slot B")
	flag.BoolVar(&cfg.Shuffle, "shuffle", cfg.Shuffle, "Shuffle directory and playlist sources")
	flag.StringVar(&cfg.Mode, "mode", cfg.Mode, "Routing mode: split or same")
	flag.BoolVar(&cfg.Swap, "swap", cfg.Swap, "Swap left and right in split mode")
	flag.StringVar(&cfg.Primary, "primary", cfg.Primary, "Slot played in same mode")
	flag.Float64Var(&cfg.VolumeA, "volume-a", cfg.VolumeA, "Gain for slot A")
	flag.Float64Var(&cfg.VolumeB, "volume-b", cfg.VolumeB, "Gain for slot B")
	flag.StringVar(&cfg.Output, "output", cfg.Output, "Audio output: oto, malgo or wav")
	flag.StringVar(&cfg.OutputFile, "output-file", cfg.OutputFile, "File for wav output")
	flag.IntVar(&cfg.SampleRate, "rate", cfg.SampleRate, "Output rate when slot A is empty")
	flag.StringVar(&cfg.Listen, "listen", cfg.Listen, "Remote control listen address")
	flag.BoolVar(&cfg.Remote, "remote", cfg.Remote, "Enable the remote control server")
	flag.BoolVar(&cfg.MDNS, "mdns", cfg.MDNS, "Advertise the remote control server via mDNS")
	flag.StringVar(&cfg.Name, "name", cfg.Name, "Player friendly name (default: hostname-dualdeck)")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	noTUI := flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(2)
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)
	log.SetFormatter(cfg.Formatter())

	if cfg.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		cfg.Name = fmt.Sprintf("%s-dualdeck", hostname)
	}

	log.Infof("Starting %s: %s", version.String(), cfg.Name)

	sink, err := output.New(cfg.Output, cfg.OutputFile)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}
	m := metrics.New(log.StandardLogger())

	mode, _ := dualdeck.ParseMode(cfg.Mode)
	primary, _ := dualdeck.ParseSlot(cfg.Primary)

	player, err := app.New(app.Config{
		SourceA: cfg.SourceA,
		SourceB: cfg.SourceB,
		Shuffle: cfg.Shuffle,
		Seed:    time.Now().UnixNano(),
		Mode:    mode,
		Swap:    cfg.Swap,
		Primary: primary,
		VolumeA: cfg.VolumeA,
		VolumeB: cfg.VolumeB,
		Name:    cfg.Name,
		Engine: dualdeck.Config{
			Sink:              sink,
			DefaultSampleRate: cfg.SampleRate,
			ChunkFrames:       cfg.ChunkFrames,
			StopTimeout:       cfg.StopTimeout,
			Observer:          m,
		},
		Logger: log.StandardLogger(),
	})
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}

	// Remote control
	var srv *remote.Server
	var disc *discovery.Manager
	if cfg.Remote {
		srv = remote.New(remote.Config{
			Addr:    cfg.Listen,
			Name:    cfg.Name,
			Metrics: m.Handler(),
			Logger:  log.StandardLogger(),
		}, player)
		player.SetBroadcaster(srv.Broadcast)

		go func() {
			if err := srv.Start(); err != nil {
				log.Errorf("Remote control server failed: %v", err)
			}
		}()

		if cfg.MDNS {
			disc = advertise(cfg)
		}
	}

	if err := player.Start(); err != nil {
		log.Fatalf("Failed to start player: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if srv != nil {
		go player.PublishStatus(ctx, time.Second)
	}

	// TUI setup
	var ctrls *ui.Controls
	if useTUI {
		ctrls = ui.NewControls()
		tuiProg, err := ui.Run(ctrls, player.UIStatus)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
		}()
		go player.RunCommands(ctx, ctrls.Commands)
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for quit signal from TUI or OS
	if ctrls != nil {
		select {
		case <-ctrls.Quit:
			log.Info("Received quit signal from TUI")
		case <-sigChan:
			log.Info("Shutdown signal received")
		}
	} else {
		<-sigChan
		log.Info("Shutdown signal received")
	}

	cancel()
	if disc != nil {
		disc.Stop()
	}
	if srv != nil {
		srv.Stop()
	}
	if err := player.Close(); err != nil {
		log.Errorf("Error closing player: %v", err)
	}

	log.Info("Player stopped")
}

// advertise announces the remote control port via mDNS
func advertise(cfg config.Config) *discovery.Manager {
	_, portStr, err := net.SplitHostPort(cfg.Listen)
	if err != nil {
		log.Warnf("mDNS disabled, bad listen address %q: %v", cfg.Listen, err)
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Warnf("mDNS disabled, bad listen port %q", portStr)
		return nil
	}

	disc := discovery.NewManager(discovery.Config{
		ServiceName: cfg.Name,
		Port:        port,
		Logger:      log.StandardLogger(),
	})
	if err := disc.Advertise(); err != nil {
		log.Warnf("mDNS advertisement failed: %v", err)
		return nil
	}
	return disc
}
