package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Duplex/internal/adapters/capture"
	"github.com/dkeye/Duplex/internal/adapters/rtc"
	"github.com/dkeye/Duplex/internal/adapters/store/remote"
	"github.com/dkeye/Duplex/internal/app/media"
	"github.com/dkeye/Duplex/internal/app/negotiation"
	"github.com/dkeye/Duplex/internal/app/session"
	"github.com/dkeye/Duplex/internal/config"
	"github.com/dkeye/Duplex/internal/domain"
)

const usage = `usage: peer [flags] create
       peer [flags] join <room-id>`

func main() {
	fs := pflag.NewFlagSet("peer", pflag.ExitOnError)
	config.PeerFlags(fs)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	config.SetupLogging("info")
	cfg, err := config.LoadPeer(fs)
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		os.Exit(2)
	}
	config.SetupLogging(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, fs.Args()); err != nil {
		log.Error().Err(err).Msg("peer failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.PeerConfig, args []string) error {
	if len(args) == 0 || (args[0] == "join" && len(args) != 2) || (args[0] != "create" && args[0] != "join") {
		return errors.New(usage)
	}

	factory, err := rtc.NewFactory(rtc.Options{
		ICEServers:        cfg.ICEServers,
		CandidatePoolSize: cfg.ICECandidatePoolSize,
		ReserveMedia:      cfg.ReserveMedia,
	})
	if err != nil {
		return err
	}
	store, err := remote.New(cfg.SignalURL, remote.WithClientToken(uuid.NewString()))
	if err != nil {
		return err
	}
	devices := capture.NewProvider(capture.Devices{
		Audio:  cfg.Capture.Audio,
		Video:  cfg.Capture.Video,
		Screen: cfg.Capture.Screen,
	})

	connected := make(chan struct{})
	var once sync.Once
	ctrl := session.NewController(devices, func() session.Negotiator {
		return negotiation.New(store, factory,
			negotiation.WithTrackHandler(func(t media.TrackInfo) {
				log.Info().Str("module", "peer").Str("kind", t.Kind.String()).Str("track_id", t.ID).Msg("remote track")
			}),
			negotiation.WithStateHandler(func(s negotiation.State) {
				if s == negotiation.StateConnected {
					once.Do(func() { close(connected) })
				}
			}),
		)
	})
	// Always hang up, even when create or join fails half way.
	defer ctrl.EndSession(context.WithoutCancel(ctx))

	if _, err := ctrl.StartLocalCapture(ctx); err != nil {
		return err
	}

	var (
		id   domain.SessionID
		role domain.Role
	)
	switch args[0] {
	case "create":
		if id, err = ctrl.CreateSession(ctx); err != nil {
			return err
		}
		role = domain.RoleCaller
	case "join":
		id = domain.SessionID(args[1])
		if err := ctrl.JoinSession(ctx, id); err != nil {
			return err
		}
		role = domain.RoleCallee
	}
	fmt.Printf("Current room is %s - You are the %s!\n", id, role)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-connected:
		case <-gctx.Done():
			return nil
		}
		log.Info().Str("module", "peer").Str("room", string(id)).Msg("connected")
		if cfg.Screen {
			if err := ctrl.AddScreenShare(gctx); err != nil {
				log.Warn().Err(err).Str("module", "peer").Msg("screen share failed")
			}
		}
		return nil
	})
	g.Go(func() error {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				remote := ctrl.Remote()
				if remote == nil {
					continue
				}
				for _, tr := range remote.Tracks() {
					log.Info().Str("module", "peer").Str("track_id", tr.ID).Str("state", tr.State.String()).
						Uint64("packets", tr.Packets).Msg("remote track stats")
				}
			}
		}
	})
	err = g.Wait()
	fmt.Println("Hanging up")
	return err
}
