package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mcastellin/omnode/internal/config"
	"github.com/mcastellin/omnode/internal/consensus"
	"github.com/mcastellin/omnode/internal/console"
	"github.com/mcastellin/omnode/internal/faultinjector"
	"github.com/mcastellin/omnode/internal/gossip"
	"github.com/mcastellin/omnode/internal/loop"
	"github.com/mcastellin/omnode/internal/membership"

	"github.com/mcastellin/omnode/internal/api"
)

func runServe(cmd *cobra.Command, args []string) error {
	log, err := newLogger(flagDevLog)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck
	sugar := log.Sugar()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.BindAddress())
	if err != nil {
		return fmt.Errorf("failed to resolve bind address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket: %w", err)
	}

	consoleLn, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Host, cfg.ConsolePort))
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to bind console socket: %w", err)
	}

	selfPort := conn.LocalAddr().(*net.UDPAddr).Port
	selfKey := membership.Key(fmt.Sprintf("%s:%d", announceHost(cfg.Host), selfPort))

	members := membership.New(membership.NewDefaultResolver())
	members.SetStaleAfter(cfg.PeerTTL)
	transport := loop.NewUDPTransport(conn)

	identity := gossip.Identity{
		Host:    announceHost(cfg.Host),
		Port:    selfPort,
		Name:    cfg.NodeID,
		CliPort: consoleLn.Addr().(*net.TCPAddr).Port,
	}
	gossipEngine := gossip.NewEngine(selfKey, identity, members, transport, sugar)
	gossipEngine.SetGossipTTL(cfg.GossipTTL)

	faults := faultinjector.New(faultinjector.SentinelValue)
	faults.SetLying(cfg.LieMode, cfg.LieRate)

	store := consensus.NewStore()
	words := consensus.NewWordArray()
	engine := consensus.NewEngine(selfKey, store, words, members, faults, transport, consensus.NewUUIDGenerator(), sugar)

	consoleHandler := &console.Handler{Members: members, Engine: engine, Faults: faults}
	consoleListener := console.NewListener(consoleLn)

	admin := api.NewServer(cfg.AdminAddress, members, engine, sugar)
	go func() {
		if err := admin.Start(); err != nil && err != http.ErrServerClosed {
			sugar.Errorw("admin HTTP server stopped", "err", err)
		}
	}()

	ev := loop.New(cfg, conn, consoleListener, members, gossipEngine, engine, consoleHandler, sugar)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		sugar.Info("shutting down")
		cancel()
	}()

	seeds := loop.SeedKeys(config.WellKnownSeeds, cfg.SeedNodes)
	for _, extra := range cfg.SeedNodes {
		sugar.Infow("operator-supplied seed", "addr", extra)
	}

	sugar.Infow("node ready", "id", selfKey, "udp", conn.LocalAddr(), "console", consoleLn.Addr(), "admin", cfg.AdminAddress)
	ev.Run(ctx, seeds)

	ev.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := admin.Stop(shutdownCtx); err != nil {
		sugar.Warnw("admin server shutdown error", "err", err)
	}
	sugar.Info("shutdown complete")
	return nil
}

// loadConfig reads a config file if one was given, else starts from
// defaults.
func loadConfig() (*config.Config, error) {
	if flagConfigFile != "" {
		return config.LoadFromFile(flagConfigFile)
	}
	return config.DefaultConfig(), nil
}

// applyFlagOverrides layers CLI flags on top of the loaded configuration,
// matching the teacher main's "load config, then override with flags"
// ordering.
func applyFlagOverrides(cfg *config.Config) {
	if flagHost != "" {
		cfg.Host = flagHost
	}
	if flagPort >= 0 {
		cfg.Port = flagPort
	}
	if flagConsolePort >= 0 {
		cfg.ConsolePort = flagConsolePort
	}
	if flagAdminAddr != "" {
		cfg.AdminAddress = flagAdminAddr
	}
	if len(flagSeeds) > 0 {
		cfg.SeedNodes = append(cfg.SeedNodes, flagSeeds...)
	}
	if flagLieMode {
		cfg.LieMode = true
		cfg.LieRate = flagLieRate
	}
}

// announceHost returns the host this node advertises to peers: a
// wildcard bind address isn't a reachable peer address, so fall back to
// loopback for local testing rather than gossiping "0.0.0.0".
func announceHost(bindHost string) string {
	if bindHost == "" || bindHost == "0.0.0.0" {
		return "127.0.0.1"
	}
	return bindHost
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
