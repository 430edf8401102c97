package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammPool/internal/config"
	"ammPool/internal/host"
	"ammPool/internal/model"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := host.NewMetrics(registry)

	sess, err := openSession(ctx, cfg.Config, metrics)
	if err != nil {
		return err
	}
	defer sess.Close()
	logger := sess.logger

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, registry, logger)
		defer shutdown()
	}

	inputFile, err := os.Open(cfg.Input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	errWriter, err := newJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("replay start",
		zap.String("in", cfg.Input),
		zap.String("store", cfg.Store),
		zap.String("errors", cfg.Errors),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	scanner := bufio.NewScanner(inputFile)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var lineNo, total, applied, rejected, invalid, unjournaled int
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		total++

		var op model.Operation
		if err := json.Unmarshal(line, &op); err != nil {
			invalid++
			writeReplayError(errWriter, model.ReplayError{Line: lineNo, Error: err.Error()})
			continue
		}

		record, err := sess.host.Execute(ctx, op)
		if err != nil && committed(record, err) {
			unjournaled++
			logger.Warn("operation committed but not journaled",
				zap.Int("line", lineNo),
				zap.String("pool", op.PoolID),
				zap.Uint64("seq", record.Seq),
				zap.Error(err),
			)
			applied++
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rejected++
			writeReplayError(errWriter, model.ReplayError{
				Line:   lineNo,
				PoolID: op.PoolID,
				Op:     string(op.Op),
				Error:  err.Error(),
			})
			continue
		}
		applied++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	logger.Info("replay complete",
		zap.Int("total", total),
		zap.Int("applied", applied),
		zap.Int("rejected", rejected),
		zap.Int("invalid", invalid),
		zap.Int("unjournaled", unjournaled),
	)
	return nil
}

// committed reports whether Execute stored the operation even though it
// returned an error.
func committed(record model.OperationRecord, err error) bool {
	return errors.Is(err, host.ErrJournalWrite) && !record.Failed() && record.Seq > 0
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

func newJSONLWriter(path string, appendMode bool) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return w.writer.WriteByte('\n')
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func writeReplayError(writer *jsonlWriter, record model.ReplayError) {
	if writer == nil {
		return
	}
	_ = writer.Write(record)
}
