package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"codevolt/internal/admin"
	"codevolt/internal/config"
	"codevolt/internal/engine"
	"codevolt/internal/logging"
	"codevolt/internal/metrics"
	"codevolt/internal/scenario"
	"codevolt/internal/sensor"
	"codevolt/internal/sim"
	"codevolt/internal/sos"
)

var (
	simPrintOnly  bool
	simConfigPath string
	simSchemaPath string
	simTick       time.Duration
	simLogFile    string
	simTUI        bool
	simAddr       string
	simAutoStart  bool
	simScenario   string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the real-time sensor demo",
	Long:  "simulate runs one demo session: the sensor engine, crash detection, the SOS flow and the admin server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, closeLog, err := newLogger(simTUI)
		if err != nil {
			return err
		}
		defer closeLog()

		cfg, err := config.Load(simConfigPath, simSchemaPath)
		if err != nil {
			return err
		}
		if err := applySimulateOverrides(cmd, cfg); err != nil {
			return err
		}
		specs, err := cfg.Specs()
		if err != nil {
			return err
		}
		sc, err := scenario.Resolve(cfg.ScenarioFile, cfg.Scenario)
		if err != nil {
			return err
		}

		writers, err := newWriters(cmd.Context(), writerOptions{
			printOnly: simPrintOnly,
			tui:       simTUI,
			colorize:  term.IsTerminal(int(os.Stdout.Fd())),
			logFile:   simLogFile,
			specs:     specs,
			log:       log,
		})
		if err != nil {
			return err
		}
		mw := sim.NewMultiWriter(writers...)
		defer mw.Close()

		sessionID := os.Getenv("SESSION_ID")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		session, collector, err := newSession(cfg, specs, sc, mw, sessionID, log)
		if err != nil {
			return err
		}
		defer session.Close()
		eng := session.Engine()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, log)

		if cfg.AdminAddr != "" {
			srv := admin.NewServer(session,
				admin.WithMetrics(collector.Handler()),
				admin.WithLogger(log),
				admin.WithStatusListener(mw.SetAdminStatus),
			)
			go func() {
				if err := srv.Start(ctx, cfg.AdminAddr); err != nil {
					log.Error("admin server failed", "err", err)
				}
			}()
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			session.Run(ctx)
		}()

		log.Info("session ready", "session", sessionID, "seed", cfg.Seed, "scenario", sc.Name,
			"ticks_to_breach", eng.TicksToBreach())
		if simAutoStart {
			session.StartDemo()
		}

		<-ctx.Done()
		<-done
		log.Info("session stopped", "session", sessionID)
		return nil
	},
}

// newSession builds the engine, the SOS machine and the metrics collector for
// one run and binds them to mw. A zero seed is replaced with a time-based one
// and written back to cfg.
func newSession(cfg *config.Config, specs map[sensor.Kind]sensor.Spec, sc *scenario.Scenario,
	mw *sim.MultiWriter, sessionID string, log *slog.Logger) (*sim.Session, *metrics.Collector, error) {
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	eng, err := engine.New(specs,
		engine.WithInterval(cfg.TickInterval),
		engine.WithRand(rand.New(rand.NewSource(cfg.Seed))),
		engine.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}
	machine, err := sos.New(sc, sos.WithLogger(log))
	if err != nil {
		eng.Close()
		return nil, nil, err
	}
	collector := metrics.New()
	session := sim.NewSession(eng, machine,
		sim.WithSessionID(sessionID),
		sim.WithWriter(mw),
		sim.WithMetrics(collector),
		sim.WithAutoSOS(cfg.AutoSOS, cfg.SOSMinCritical),
	)
	return session, collector, nil
}

// applySimulateOverrides layers explicitly set flags and env vars over the
// loaded config.
func applySimulateOverrides(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("tick") {
		cfg.TickInterval = simTick
	}
	if envTick := os.Getenv("TICK_INTERVAL"); envTick != "" {
		d, err := time.ParseDuration(envTick)
		if err != nil {
			return fmt.Errorf("invalid TICK_INTERVAL: %w", err)
		}
		cfg.TickInterval = d
	}
	if cmd.Flags().Changed("addr") {
		cfg.AdminAddr = simAddr
	}
	if cmd.Flags().Changed("scenario") {
		cfg.Scenario = simScenario
		cfg.ScenarioFile = ""
	}
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", cfg.TickInterval)
	}
	return nil
}

func init() {
	simulateCmd.Flags().BoolVar(&simPrintOnly, "print-only", false, "Print telemetry to STDOUT instead of exporting to GreptimeDB, Redis or Postgres")
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "config/sensors.yaml", "Path to sensor configuration YAML (empty for built-in defaults)")
	simulateCmd.Flags().StringVar(&simSchemaPath, "schema", "schemas/sensors.cue", "Path to CUE schema file")
	simulateCmd.Flags().DurationVar(&simTick, "tick", engine.DefaultInterval, "Sensor tick interval (e.g. 100ms, 1s)")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Path to export events (JSONL); incidents go to <path>.incidents")
	simulateCmd.Flags().BoolVar(&simTUI, "tui", false, "Render the live dashboard in the terminal")
	simulateCmd.Flags().StringVar(&simAddr, "addr", ":8080", "Admin server address (empty disables it)")
	simulateCmd.Flags().BoolVar(&simAutoStart, "auto-start", false, "Start the demo immediately")
	simulateCmd.Flags().StringVar(&simScenario, "scenario", scenario.DefaultName, "Built-in SOS scenario name")
}
