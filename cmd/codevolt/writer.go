package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"

	"codevolt/internal/sensor"
	"codevolt/internal/sim"
)

const (
	defaultGreptimePort     = 4001
	defaultGreptimeDatabase = "public"
)

type writerOptions struct {
	printOnly bool
	tui       bool
	colorize  bool
	logFile   string
	specs     map[sensor.Kind]sensor.Spec
	log       *slog.Logger
}

// newWriters sets up the session sinks based on flags and env vars: one live
// renderer (TUI or STDOUT), the optional JSONL export and, unless printOnly,
// the GreptimeDB, Redis and Postgres exporters whose env vars are set.
// On error every sink opened so far is closed.
func newWriters(ctx context.Context, opts writerOptions) (ws []any, err error) {
	defer func() {
		if err != nil {
			closeAll(ws)
			ws = nil
		}
	}()

	if opts.tui {
		ws = append(ws, sim.NewTUIWriter(opts.specs))
	} else {
		ws = append(ws, sim.NewStdoutWriter(opts.specs, opts.colorize))
	}

	if opts.logFile != "" {
		fw, err := sim.NewFileWriter(opts.logFile, opts.logFile+".incidents")
		if err != nil {
			return ws, err
		}
		ws = append(ws, fw)
	}

	if opts.printOnly {
		return ws, nil
	}

	if endpoint := os.Getenv("GREPTIMEDB_ENDPOINT"); endpoint != "" {
		host, port, err := splitEndpoint(endpoint, defaultGreptimePort)
		if err != nil {
			return ws, err
		}
		db := os.Getenv("GREPTIMEDB_DATABASE")
		if db == "" {
			db = defaultGreptimeDatabase
		}
		gw, err := sim.NewGreptimeDBWriter(host, port, db, opts.log)
		if err != nil {
			return ws, err
		}
		ws = append(ws, gw)
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rw, err := sim.NewRedisWriter(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
		if err != nil {
			return ws, err
		}
		ws = append(ws, rw)
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pw, err := sim.NewPostgresWriter(ctx, dsn)
		if err != nil {
			return ws, err
		}
		ws = append(ws, pw)
	}
	return ws, nil
}

// splitEndpoint accepts "host" or "host:port".
func splitEndpoint(endpoint string, defaultPort int) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint, defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", endpoint, err)
	}
	return host, port, nil
}

func closeAll(ws []any) {
	for _, w := range ws {
		if c, ok := w.(io.Closer); ok {
			c.Close()
		}
	}
}
