package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"voxrelay/internal/client"
	"voxrelay/internal/codec"
	"voxrelay/internal/device"
	"voxrelay/pkg/config"
	"voxrelay/pkg/logger"
)

// app owns the client's long-lived pieces and serializes the control
// surface's start/stop against the session lifecycle.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	codec   *codec.Codec
	devices *device.Registry

	mu      sync.Mutex
	session *client.Session
}

func (a *app) Devices(direction device.Direction) []device.Device {
	return a.devices.List(direction)
}

func (a *app) SetActiveDevice(direction device.Direction, name string) error {
	return a.devices.SetActive(direction, name)
}

// Start connects to the relay and spins up the session tasks.
func (a *app) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil && a.session.IsRunning() {
		return errors.New("session already running")
	}

	session, err := client.Connect(a.cfg.ServerAddr, a.codec, a.devices, a.log)
	if err != nil {
		return err
	}
	a.session = session

	go func() {
		_ = session.Run(context.Background())
	}()
	return nil
}

// Stop arms the session's stop signal. The session tears itself down.
func (a *app) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		a.session.Stop()
	}
}

func (a *app) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil && a.session.IsRunning()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.Named("client")

	devices, err := device.NewRegistry(log)
	if err != nil {
		log.Error("initializing audio devices", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	defer devices.Close()

	a := &app{
		cfg:     cfg,
		log:     log,
		codec:   codec.New(log),
		devices: devices,
	}

	router := newRouter(a, cfg, log)
	httpServer := &http.Server{Addr: cfg.ControlAddr, Handler: router}

	go func() {
		log.Info("control API listening", zap.String("addr", cfg.ControlAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("control API failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	a.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}
