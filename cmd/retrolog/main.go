package main

import (
	"context"
	"net"
	"strconv"

	"github.com/joho/godotenv"

	"retrolog/internal/app"
	"retrolog/pkg/config"
	"retrolog/pkg/logger"
	"retrolog/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var version = "dev"

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, modeVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, _, err := config.LoadEffective(cfgPath)
	if err != nil {
		logger.InitWithLevel("")
		shutdown.Abort("failed to load config", err)
	}

	// flags win over env/config when explicitly provided
	if setFlags["addr"] {
		if err := applyAddr(cfg, addrVal); err != nil {
			logger.InitWithLevel("")
			shutdown.Abort("invalid -addr", err)
		}
	}
	if setFlags["db"] {
		cfg.Remote.DBPath = dbVal
	}
	if setFlags["mode"] && modeVal != "" {
		cfg.Remote.Mode = modeVal
	}

	logger.InitWithLevel(cfg.Logging.Level)

	a, err := app.New(cfg, version)
	if err != nil {
		shutdown.Abort("startup failed", err)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	runErr := a.Run(ctx)

	grace, cancel := shutdown.GraceContext(0)
	defer cancel()
	a.Shutdown(grace)

	if runErr != nil {
		shutdown.Abort("server failed", runErr)
	}
}

func applyAddr(cfg *config.Config, addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return err
	}
	cfg.Server.Address = host
	cfg.Server.Port = p
	return nil
}
