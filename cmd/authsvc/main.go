package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/localauth/internal/infra/config"
	"github.com/mkrupp/localauth/internal/infra/logging"
	"github.com/mkrupp/localauth/internal/infra/transport/http"
	"github.com/mkrupp/localauth/internal/repo/credential"
	"github.com/mkrupp/localauth/internal/repo/mirror"
	"github.com/mkrupp/localauth/internal/svc/authsvc"
)

const (
	appName = "localauth"
	svcName = "authsvc"
)

type Config struct {
	config.EnvConfig

	Log    logging.LoggerConfig        `envPrefix:"LOG_"`
	Auth   authsvc.AuthConfig          `envPrefix:"AUTH_"`
	HTTP   authsvc.HTTPTransportConfig `envPrefix:"HTTP_"`
	Store  credential.StoreConfig      `envPrefix:"STORE_"`
	Mirror mirror.MirrorConfig         `envPrefix:"MIRROR_"`
}

func main() {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	defer func() {
		log := logging.GetLogger("cmd.authsvc")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
		} else {
			log.InfoContext(ctx, "shutdown")
		}
	}()

	replica, err := mirror.NewMirror(ctx, cfg.Mirror)
	if err != nil {
		return fmt.Errorf("new mirror: %w", err)
	}

	authMgr, err := authsvc.NewAuthManager(
		ctx,
		credential.StoreFactoryFromConfig(cfg.Store),
		replica,
		cfg.Auth,
	)
	if err != nil {
		return fmt.Errorf("new auth manager: %w", err)
	}
	defer authMgr.Close()

	if err := authMgr.Init(ctx); err != nil {
		return fmt.Errorf("init auth manager: %w", err)
	}

	httpTransport := authsvc.NewHTTPTransport(authMgr, cfg.HTTP)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
