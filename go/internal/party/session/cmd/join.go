package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mcdev12/partyspin/go/internal/config"
	"github.com/mcdev12/partyspin/go/internal/party/draw"
	"github.com/mcdev12/partyspin/go/internal/party/relay"
	"github.com/mcdev12/partyspin/go/internal/party/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	joinCode      string
	joinNick      string
	joinCreator   bool
	joinConfig    string
	joinTransport string
	joinJSON      bool
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a party room and accept commands on stdin",
	Long: `Join a party room. Commands are read from stdin, one per line:
  spin [category ...]   draw a new spin (host only), keeping locked slots
  keep N | reroll N     vote on slot N (0 main, 1 side, 2 dessert)
  sync                  ask the host to re-send its state
  nick NAME             change nickname
  say TEXT              send a chat message
  status                show the room and session counters
  quit                  leave the room`,
	RunE: runJoin,
}

func init() {
	joinCmd.Flags().StringVar(&joinCode, "code", "", "room code")
	joinCmd.Flags().StringVar(&joinNick, "nick", "", "nickname shown to other peers")
	joinCmd.Flags().BoolVar(&joinCreator, "creator", false, "join as the room creator")
	joinCmd.Flags().StringVar(&joinConfig, "config", "", "path to YAML config file")
	joinCmd.Flags().StringVar(&joinTransport, "transport", "gateway", "relay transport: gateway or nats")
	joinCmd.Flags().BoolVar(&joinJSON, "json", false, "print snapshots as JSON")
	_ = joinCmd.MarkFlagRequired("code")
	rootCmd.AddCommand(joinCmd)
}

func runJoin(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(joinConfig)
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	channel, closeTransport, err := openChannel(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeTransport()

	drawer := draw.NewClient(cfg.Draw.BaseURL, cfg.Draw.Timeout)
	if cfg.Draw.APIKey != "" {
		drawer.SetAPIKey(cfg.Draw.APIKey)
	}

	scfg := session.DefaultConfig(joinCode)
	scfg.Nickname = joinNick
	scfg.Creator = joinCreator
	scfg.TTL = cfg.Party.PresenceTTL
	scfg.HeartbeatInterval = cfg.Party.HeartbeatInterval
	scfg.HistorySize = cfg.Party.HistorySize
	scfg.DrawTimeout = cfg.Draw.Timeout

	stats := &session.Counters{}
	s, err := session.New(scfg, channel, drawer, session.WithMetrics(stats))
	if err != nil {
		return err
	}
	if err := s.Join(ctx); err != nil {
		return fmt.Errorf("join room %s: %w", joinCode, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	con := newConsole(s, stats, cmd.OutOrStdout(), joinJSON)
	go con.watch(ctx)
	go func() {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			quit, err := con.exec(ctx, scanner.Text())
			if err != nil {
				con.printf("error: %v\n", err)
			}
			if quit {
				break
			}
		}
		cancel()
	}()

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openChannel(ctx context.Context, cfg config.Config) (relay.Channel, func(), error) {
	switch joinTransport {
	case "nats":
		bus, err := relay.ConnectNATS(cfg.NATS, "partyspin-"+joinCode)
		if err != nil {
			return nil, nil, err
		}
		ch, err := relay.NewBusChannel(bus, cfg.NATS.SubjectPrefix, joinCode)
		if err != nil {
			bus.Close()
			return nil, nil, err
		}
		return ch, func() { _ = bus.Close() }, nil
	case "gateway":
		ch, err := relay.DialWebSocket(ctx, cfg.Party.GatewayURL, joinCode)
		if err != nil {
			return nil, nil, err
		}
		return ch, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", joinTransport)
	}
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
