// Command tcmud is the TCMU userspace backstore daemon: it watches the
// kernel control plane for device add/remove events and services SCSI
// commands against whatever subtype handlers are found in -handler-dir.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"sync"
	"syscall"
	"time"

	"github.com/behrlich/tcmud"
	"github.com/behrlich/tcmud/internal/logging"
)

func main() {
	var (
		handlerDir = flag.String("handler-dir", "/usr/lib/tcmud/handlers", "directory scanned for handler_*.so plugins")
		verbose    = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	daemon, err := tcmud.New(tcmud.Options{HandlerDir: *handlerDir, Logger: logger})
	if err != nil {
		logger.Errorf("failed to start: %v", err)
		os.Exit(1)
	}

	logger.Infof("tcmud started, handler-dir=%s", *handlerDir)
	fmt.Printf("tcmud started (pid %d). Press Ctrl+C to stop.\n", os.Getpid())
	fmt.Printf("Send SIGUSR1 to dump goroutine stacks.\n")

	ctx, cancel := context.WithCancel(context.Background())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE STACK DUMP ===\n%s\n", buf[:n])
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- daemon.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var shutdownOnce sync.Once
	shutdown := func() {
		shutdownOnce.Do(func() {
			logger.Infof("shutting down, %d device(s) live", daemon.DeviceCount())
			cancel()
		})
	}

	select {
	case <-sigCh:
		shutdown()
		// A second signal during shutdown should exit immediately rather
		// than wait for a drain that may be stuck.
		go func() {
			<-sigCh
			logger.Warnf("second signal received, forcing exit")
			os.Exit(1)
		}()
		select {
		case err := <-runErr:
			if err != nil {
				logger.Errorf("daemon exited with error: %v", err)
			}
		case <-time.After(tcmud.ShutdownDrainTimeout + time.Second):
			logger.Warnf("shutdown timed out, forcing exit")
		}
		// Signal-driven termination always exits non-zero, even when every
		// worker drained and joined cleanly — it is still an interruption,
		// not a normal return.
		os.Exit(1)
	case err := <-runErr:
		shutdown()
		if err != nil {
			logger.Errorf("daemon exited with error: %v", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
}
