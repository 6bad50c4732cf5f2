package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/campusboard/sessionkit/gateway"
	"github.com/campusboard/sessionkit/internal/config"
	"github.com/campusboard/sessionkit/provider/oidcclient"
	"github.com/campusboard/sessionkit/session"
	"github.com/campusboard/sessionkit/tokencache"
	"github.com/campusboard/sessionkit/tokencache/memoryrepo"
	"github.com/campusboard/sessionkit/tokencache/redisrepo"
	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running gateway")
	}
	log.Info().Msg("gateway stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if c.GetEnv() == "DEV" {
		logger = logger.Level(zerolog.DebugLevel)
	}

	cache := newTokenCache(c)

	ctx := context.Background()
	providerClient, err := oidcclient.New(ctx, oidcclient.Config{
		IssuerURL:    c.GetIssuerURL(),
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		RedirectURL:  c.GetBaseURL() + "/callback",
		Scopes:       c.GetScopes(),
	}, cache)
	if err != nil {
		return fmt.Errorf("provider client: %w", err)
	}

	redirects := gateway.NewRedirectSink()
	sessionManager, err := session.New(providerClient, cache,
		session.WithLogger(logger),
		session.WithNavigate(redirects.Navigate),
		session.WithRootURL(c.GetBaseURL()),
		session.WithRefreshIntervals(c.GetTickInterval(), c.GetScheduledMargin()),
		session.WithReactiveMargin(c.GetReactiveMargin()),
	)
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}
	defer sessionManager.Close()

	gatewayServer, err := gateway.New(sessionManager, providerClient, c.GetUpstreamURL(), redirects, logger)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	if sessionManager.Init(ctx) {
		logger.Info().Msg("session restored silently")
	} else {
		logger.Info().Msg("no session restored; interactive login required")
	}

	server := &http.Server{Addr: c.GetPort(), Handler: gatewayServer}
	go listenAndServe(server, logger)
	waitForStopSignal()
	return shutdown(server)
}

func newTokenCache(c config.Config) tokencache.Repo {
	if addr := c.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		return redisrepo.New(client)
	}
	return memoryrepo.New()
}

func listenAndServe(server *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", server.Addr).Msg("gateway listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
