package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/coordflow"
	"github.com/BaSui01/coordflow/command"
	"github.com/BaSui01/coordflow/notify"
	"github.com/BaSui01/coordflow/state"
)

// contextFlags collects repeatable --context k=v entries.
type contextFlags map[string]any

func (c contextFlags) String() string { return fmt.Sprint(map[string]any(c)) }

func (c contextFlags) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || key == "" {
		return fmt.Errorf("context entry must be key=value, got %q", value)
	}
	c[key] = val
	return nil
}

// runRun executes one coordination run with mock workers, streaming progress
// to stdout until the run reaches a terminal stage.
func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	pause := fs.Bool("pause", false, "Start the run paused")
	initial := contextFlags{}
	fs.Var(initial, "context", "Initial execution context entry (k=v, repeatable)")
	fs.Parse(args)

	sys, err := coordflow.New(
		coordflow.WithConfigFile(*configPath),
		coordflow.WithMockWorkers(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build system: %v\n", err)
		os.Exit(1)
	}
	defer sys.Close()

	logger := sys.Logger
	logger.Info("Starting CoordFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// 指标端点
	if sys.Config.Metrics.Enabled {
		go serveMetrics(sys.Config.Metrics.Addr, logger)
	}

	// 进度事件打印
	for _, event := range []notify.Event{
		notify.EventRunStarted, notify.EventStageStarted, notify.EventStageFinished,
		notify.EventStageRetried, notify.EventRunPaused, notify.EventRunResumed,
		notify.EventRunCompleted, notify.EventRunFailed,
	} {
		sys.Bus.Subscribe(event, printProgress)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *pause {
		initial[state.CtxKeyPaused] = true
	}

	runID, err := sys.Controller.StartRun(ctx, initial)
	if err != nil {
		logger.Fatal("Failed to start run", zap.Error(err))
	}
	logger.Info("Run started", zap.String("run_id", runID))

	if *pause {
		// 暂停演示: 等片刻后通过控制命令恢复
		time.Sleep(2 * time.Second)
		result, err := sys.Controller.SubmitCommand(ctx, runID, command.Spec{
			Kind:   command.KindWorkflowControl,
			Action: command.ActionResume,
		})
		if err != nil {
			logger.Fatal("Failed to resume run", zap.Error(err))
		}
		logger.Info("Run resumed", zap.Any("result", map[string]any(result)))
	}

	if err := sys.Controller.Wait(ctx, runID); err != nil {
		logger.Error("Run did not complete cleanly", zap.Error(err))
	}

	final, err := sys.Controller.GetFinalState(runID)
	if err != nil {
		logger.Fatal("Failed to read final state", zap.Error(err))
	}

	fmt.Printf("\nRun %s finished at stage %q\n", runID, final.Stage)
	if output, ok := final.ExecutionContext["final_output"]; ok {
		pretty, _ := json.MarshalIndent(output, "", "  ")
		fmt.Printf("Final output:\n%s\n", pretty)
	}
	if final.HasErrors() {
		for role, errs := range final.ErrorsByRole {
			for _, msg := range errs {
				fmt.Printf("Error [%s]: %s\n", role, msg)
			}
		}
		os.Exit(1)
	}
}

// serveMetrics exposes Prometheus metrics and a liveness probe.
func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	logger.Info("Metrics endpoint listening", zap.String("addr", addr))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("Metrics endpoint stopped", zap.Error(err))
	}
}

func printProgress(p notify.Progress) {
	fmt.Printf("[%s] %-15s stage=%-12s role=%-12s\n",
		p.Timestamp.Format("15:04:05.000"), p.Event, p.Stage, p.Role)
}
