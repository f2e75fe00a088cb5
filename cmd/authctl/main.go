package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mkrupp/localauth/internal/infra/config"
	"github.com/mkrupp/localauth/internal/infra/logging"
	"github.com/mkrupp/localauth/internal/repo/credential"
	"github.com/mkrupp/localauth/internal/repo/mirror"
	"github.com/mkrupp/localauth/internal/svc/authsvc"
)

const (
	appName = "localauth"
	svcName = "authctl"
)

type Config struct {
	config.EnvConfig

	Log    logging.LoggerConfig   `envPrefix:"LOG_"`
	Auth   authsvc.AuthConfig     `envPrefix:"AUTH_"`
	Store  credential.StoreConfig `envPrefix:"STORE_"`
	Mirror mirror.MirrorConfig    `envPrefix:"MIRROR_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.LoadDotEnv(); err != nil {
		fatal(err)
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		fatal(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg, os.Args[1:]); err != nil {
		fatal(err)
	}
}

func run(ctx context.Context, cfg Config, args []string) error {
	replica, err := mirror.NewMirror(ctx, cfg.Mirror)
	if err != nil {
		return fmt.Errorf("new mirror: %w", err)
	}

	authMgr, err := authsvc.NewAuthManager(ctx, credential.StoreFactoryFromConfig(cfg.Store), replica, cfg.Auth)
	if err != nil {
		return fmt.Errorf("new auth manager: %w", err)
	}
	defer authMgr.Close()

	return newCLI(authMgr, os.Stdin, os.Stdout).Run(ctx, args)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "authctl:", err)
	os.Exit(1)
}
