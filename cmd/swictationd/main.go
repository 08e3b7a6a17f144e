// Command swictationd is the Swictation dictation daemon's entrypoint,
// replacing the teacher's HTTP-server main.go (it wired an api.Server over
// session/model/voiceprint managers) with the wiring SPEC_FULL.md's
// always-on dictation daemon needs instead: capture->VAD->ASR->rewrite
// ->inject driven by internal/session.Manager, fed by internal/hotkey and
// internal/ipc, observed through internal/metrics and internal/broadcast.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"swictation/internal/accel"
	"swictation/internal/asr"
	"swictation/internal/audio"
	"swictation/internal/broadcast"
	"swictation/internal/config"
	"swictation/internal/daemonlog"
	"swictation/internal/features"
	"swictation/internal/hotkey"
	"swictation/internal/inject"
	"swictation/internal/ipc"
	"swictation/internal/metrics"
	"swictation/internal/rewrite"
	"swictation/internal/session"
	"swictation/internal/vad"

	charmlog "github.com/charmbracelet/log"
)

const version = "0.1.0"

func main() {
	flags := config.ParseFlags()
	if flags.Version {
		fmt.Println("swictationd", version)
		return
	}

	log := daemonlog.Default("swictationd")
	if flags.Debug {
		log = daemonlog.New(daemonlog.Options{
			Writer:          os.Stderr,
			Level:           charmlog.DebugLevel,
			ReportTimestamp: true,
			ReportCaller:    true,
			Prefix:          "swictationd",
		})
	}

	if err := run(flags, log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(flags config.Flags, log *daemonlog.Logger) error {
	configPath := flags.ConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("resolve default config path: %w", err)
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Info("loaded config", "path", cfg.ConfigPath)

	corrections := rewrite.NewCorrectionStore(filepath.Dir(cfg.CorrectionsPath), cfg.PhoneticThreshold, log)
	if err := corrections.StartWatching(); err != nil {
		log.Warn("corrections file watch disabled", "err", err)
	}
	defer corrections.Close()

	info := accel.Detect()
	variant := asr.SelectVariant(cfg.STTModelOverride, info)
	nMels := asr.NMelsForVariant(variant)
	log.Info("selected ASR variant", "variant", variant, "accel_provider", info.Provider, "free_mb", info.FreeMB)

	modelDir := cfg.STT06BModelPath
	if variant == asr.Variant11BAccel {
		modelDir = cfg.STT11BModelPath
	}
	artifacts := asr.ArtifactPaths{
		Encoder: filepath.Join(modelDir, "encoder.onnx"),
		Decoder: filepath.Join(modelDir, "decoder.onnx"),
		Joiner:  filepath.Join(modelDir, "joiner.onnx"),
		Tokens:  filepath.Join(modelDir, "tokens.txt"),
	}
	engine, err := asr.NewEngine(variant, artifacts, nMels, cfg.NumThreads)
	if err != nil {
		return fmt.Errorf("load ASR engine: %w", err)
	}
	defer engine.Close()

	extractor := features.New(nMels)

	detector := vad.New(vad.Config{
		ModelPath:  cfg.VADModelPath,
		Threshold:  float32(cfg.VADThreshold),
		MinSilence: cfg.VADMinSilence,
		MinSpeech:  cfg.VADMinSpeech,
		MaxSpeech:  cfg.VADMaxSpeech,
		NumThreads: cfg.NumThreads,
	})

	capture, err := audio.NewCapture()
	if err != nil {
		return fmt.Errorf("init audio capture: %w", err)
	}
	defer capture.Close()

	injector, err := inject.Select()
	if err != nil {
		return fmt.Errorf("select text injector: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.MetricsDBPath), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	metricsStore, err := metrics.Open(cfg.MetricsDBPath, log)
	if err != nil {
		return fmt.Errorf("open metrics store: %w", err)
	}
	defer metricsStore.Close()

	hub, err := broadcast.Listen(cfg.BroadcastSocketPath, log)
	if err != nil {
		return fmt.Errorf("listen broadcast socket: %w", err)
	}
	defer hub.Close()

	mgr := session.New(session.Config{
		BufferDurationSeconds: cfg.BufferDurationSeconds,
		CorrectionMode:        cfg.CorrectionMode,
		DeviceIndex:           cfg.AudioDeviceIndex,
	}, capture, extractor, detector, engine, injector, corrections, metricsStore, hub, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ipcServer, err := ipc.Listen(cfg.SocketPath, mgr.Commands(), corrections, log)
	if err != nil {
		return fmt.Errorf("listen control socket: %w", err)
	}
	ipcServer.Quit = cancel
	defer ipcServer.Close()

	hkDispatcher, err := hotkey.New(hotkey.Config{
		Provider:        hotkey.Resolve(cfg.HotkeyProvider),
		ToggleChord:     cfg.Hotkeys.Toggle,
		PushToTalkChord: cfg.Hotkeys.PushToTalk,
	}, mgr.Commands(), log)
	if err != nil {
		return fmt.Errorf("init hotkey dispatcher: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- hkDispatcher.Run(ctx)
	}()

	log.Info("swictationd ready",
		"control_socket", cfg.SocketPath,
		"broadcast_socket", cfg.BroadcastSocketPath,
		"hotkey_provider", hotkey.Resolve(cfg.HotkeyProvider),
	)

	mgr.Run(ctx)

	if err := <-errCh; err != nil {
		log.Warn("hotkey dispatcher exited with error", "err", err)
	}
	return nil
}
