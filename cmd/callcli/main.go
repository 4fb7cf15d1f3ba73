package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cicare/callsdk/internal/config"
	"github.com/cicare/callsdk/internal/devserver"
	"github.com/cicare/callsdk/pkg/callsdk"
)

func main() {
	demo := flag.Bool("demo", false, "run a local loopback call against the built-in dev server")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if *demo {
		runDemo(ctx, cfg)
		return
	}

	sdk := callsdk.New(cfg)
	sess, err := sdk.Outgoing(ctx, callsdk.Participants{
		CallerID:   "callcli",
		CallerName: "callcli",
		CalleeID:   flag.Arg(0),
		CalleeName: flag.Arg(0),
	}, "", nil)
	if err != nil {
		log.Fatal().Err(err).Msg("start call")
	}
	waitForCall(ctx, sess)
}

// runDemo stands up the dev relay server and drives both legs of a
// call through it in one process.
func runDemo(ctx context.Context, cfg *config.Config) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.DevServerPort),
		Handler: devserver.New().Router(),
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("dev server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("dev server error")
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("dev server forced to shutdown")
		}
	}()

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.DevServerPort)
	cfg.APIBaseURL = base

	participants := callsdk.Participants{
		CallerID:   "alice",
		CallerName: "Alice",
		CalleeID:   "bob",
		CalleeName: "Bob",
	}

	// Callee leg: reported as an incoming call, answers after a beat.
	calleeSDK := callsdk.New(cfg)
	callee, err := calleeSDK.Incoming(ctx, participants, callsdk.SessionGrant{
		Server: base + "/ws/signal",
		Token:  "callee-demo",
	}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("incoming leg")
	}
	go func() {
		time.Sleep(time.Second)
		if err := callee.Answer(); err != nil {
			log.Error().Err(err).Msg("answer")
		}
	}()

	// Caller leg: bootstraps against the dev server; status changes go
	// straight to the console.
	callerSDK := callsdk.NewWithDeps(cfg, callsdk.Deps{
		Notifier: callsdk.NotifierFuncs{
			OnStatus: func(id uuid.UUID, status callsdk.CallStatus) {
				log.Info().Str("call_id", id.String()).Str("status", string(status)).Msg("caller leg")
			},
		},
	})
	caller, err := callerSDK.Outgoing(ctx, participants, "demo-checksum", map[string]string{
		"calling": "Dialing Bob...",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("outgoing leg")
	}

	waitForCall(ctx, caller)
	_ = callee.End()
}

func waitForCall(ctx context.Context, sess *callsdk.Session) {
	select {
	case <-sess.Done():
		if err := sess.Err(); err != nil {
			log.Error().Err(err).Str("status", string(sess.Status())).Msg("call finished")
			return
		}
		log.Info().Str("status", string(sess.Status())).Msg("call finished")
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		if err := sess.End(); err != nil {
			log.Warn().Err(err).Msg("end call")
		}
		<-sess.Done()
	}
}
