package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatclient/internal/auth"
	"github.com/npezzotti/go-chatclient/internal/config"
	"github.com/npezzotti/go-chatclient/internal/debug"
	"github.com/npezzotti/go-chatclient/internal/session"
	"github.com/npezzotti/go-chatclient/internal/stats"
	"github.com/npezzotti/go-chatclient/internal/transport"
	"github.com/npezzotti/go-chatclient/internal/tui"
	"github.com/npezzotti/go-chatclient/internal/types"
)

func run(ctx context.Context, cfg *config.Config) error {
	logOut, closeLog, err := logWriter(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	logger := log.New(logOut, "[go-chat] ", log.LstdFlags)

	cred, err := auth.Load(cfg.Token, cfg.TokenFile)
	if err != nil {
		return fmt.Errorf("credential: %w", err)
	}
	if err := cred.Check(time.Now()); err != nil {
		return fmt.Errorf("credential: %w", err)
	}

	identity, err := localIdentity(cfg, cred)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
	}
	conn := transport.NewConnection(cfg.ServerURL, dialer, logger, statsUpdater)
	defer conn.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var notifier session.Notifier
	screenNotifier := tui.NewNotifier()
	if cfg.Headless {
		notifier = tui.NewLineNotifier(os.Stdout)
	} else {
		notifier = screenNotifier
	}

	sess := session.NewSession(session.Options{
		Identity:          identity,
		Credential:        cred.Token,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatGrace:    cfg.HeartbeatGrace,
		Verbose:           cfg.Verbose,
		ClaimedId:         cred.UserId,
	}, conn, notifier, logger, statsUpdater)

	// the program must be attached before the session emits anything
	var program *tea.Program
	if !cfg.Headless {
		program = tea.NewProgram(tui.NewModel(sess, sess.State()), tea.WithAltScreen(), tea.WithContext(ctx))
		screenNotifier.SetProgram(program)
	}

	var debugSrv *debug.Server
	if cfg.DebugAddr != "" {
		debugSrv = debug.NewServer(mux, logger, sess.State(), conn, cfg)
		go func() {
			if err := debugSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Println("debug server:", err)
			}
		}()
	}

	sessDone := make(chan error, 1)
	go func() {
		sessDone <- sess.Run(ctx)
	}()

	var uiErr error
	if program != nil {
		_, uiErr = program.Run()
		if errors.Is(uiErr, tea.ErrProgramKilled) {
			uiErr = nil
		}
	} else {
		uiErr = tui.RunLines(ctx, os.Stdin, os.Stdout, sess)
	}

	cancel()
	if err := <-sessDone; err != nil {
		logger.Println("session:", err)
	}

	if debugSrv != nil {
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := debugSrv.Shutdown(shutDownCtx); err != nil {
			logger.Println(err)
		}
	}

	logger.Println("shutdown complete")
	return uiErr
}

// logWriter keeps logs off the terminal while the full screen interface
// owns it.
func logWriter(cfg *config.Config) (io.Writer, func(), error) {
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, func() { f.Close() }, nil
	}
	if cfg.Headless {
		return os.Stderr, func() {}, nil
	}
	return io.Discard, func() {}, nil
}

// localIdentity takes the configured names, falling back to the username
// carried in the session token.
func localIdentity(cfg *config.Config, cred *auth.Credential) (types.Identity, error) {
	id := types.Identity{
		Username:    cfg.Username,
		DisplayName: cfg.DisplayName,
		AvatarURL:   cfg.AvatarURL,
	}
	if id.Username == "" {
		id.Username = cred.Username
	}
	if id.Username == "" {
		return id, errors.New("username unknown: set --username or use a token that carries one")
	}
	if id.DisplayName == "" {
		id.DisplayName = id.Username
	}
	return id, nil
}
