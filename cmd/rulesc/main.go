// Command rulesc compiles a YAML security-rules document into the
// canonical realtime-database JSON rules format (and, when any node
// carries an .encrypt annotation, a parallel firecrypt JSON document).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dbrules/rulesc/internal/compile"
	"github.com/dbrules/rulesc/internal/config"
	"github.com/dbrules/rulesc/internal/docnode"
	"github.com/dbrules/rulesc/internal/history"
	"github.com/dbrules/rulesc/internal/observability"
)

var version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("rulesc", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: rulesc [flags] <input.yaml>\n\n")
		fs.PrintDefaults()
	}

	var (
		output     = fs.String("o", "", "output base path (default: input filename without extension)")
		check      = fs.Bool("check", false, "compile and report warnings/errors without writing output files")
		pretty     = fs.Bool("pretty", true, "pretty-print output JSON")
		indent     = fs.Int("indent", 2, "indent width used when --pretty is set")
		logLevel   = fs.String("log-level", "info", "log level: debug, info, warn, error")
		logFormat  = fs.String("log-format", "text", "log format: text, json")
		configPath = fs.String("config", "", "optional YAML config file for logging/history/metrics settings")
		historyDB  = fs.String("history-db", "", "record this compile in a SQLite audit trail at this path")
		metricsOut = fs.String("metrics-out", "", "dump Prometheus text-format metrics to this path")
		showVer    = fs.Bool("version", false, "print version and exit")
	)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVer {
		fmt.Println("rulesc " + version)
		return 0
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	sourcePath := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if explicit["log-level"] {
		cfg.Logging.Level = *logLevel
	}
	if explicit["log-format"] {
		cfg.Logging.Format = *logFormat
	}
	if *historyDB != "" {
		cfg.History.Enabled = true
		cfg.History.DBPath = *historyDB
	}
	if *metricsOut != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.OutPath = *metricsOut
	}
	initLogger(cfg.Logging)

	if *output == "" {
		base := filepath.Base(sourcePath)
		*output = strings.TrimSuffix(base, filepath.Ext(base))
	}

	start := time.Now()
	metrics := observability.NewMetrics("")
	result, compileErr := compileSource(sourcePath, metrics)
	duration := time.Since(start)

	if cfg.Metrics.Enabled {
		if err := metrics.WriteTo(cfg.Metrics.OutPath); err != nil {
			log.Warn().Err(err).Msg("failed to write metrics output")
		}
	}
	if cfg.History.Enabled {
		recordHistory(cfg.History.DBPath, sourcePath, result, compileErr, duration)
	}

	if compileErr != nil {
		fmt.Fprintln(os.Stderr, compileErr)
		return 1
	}

	for _, w := range result.Warnings {
		log.Warn().Str("path", w.Path).Msg(w.Message)
	}

	log.Info().
		Str("run_id", result.RunID).
		Int("warnings", len(result.Warnings)).
		Dur("duration", duration).
		Msg("compile finished")

	if *check {
		fmt.Printf("ok: %s compiled with %d warning(s)\n", sourcePath, len(result.Warnings))
		return 0
	}

	if err := writeOutputs(*output, result, *pretty, *indent); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func compileSource(path string, metrics *observability.Metrics) (*compile.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := docnode.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	result, err := compile.Compile(doc, metrics)
	if err != nil {
		metrics.CompilesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.CompilesTotal.WithLabelValues("ok").Inc()
	metrics.WarningsTotal.Add(float64(len(result.Warnings)))
	return result, nil
}

func writeOutputs(base string, result *compile.Result, pretty bool, indent int) error {
	if err := writeJSON(base+".json", map[string]interface{}{"rules": result.Rules}, pretty, indent); err != nil {
		return err
	}
	if result.Firecrypt != nil {
		if err := writeJSON(base+"_firecrypt.json", map[string]interface{}{"rules": result.Firecrypt}, pretty, indent); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v interface{}, pretty bool, indent int) error {
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(v, "", strings.Repeat(" ", indent))
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func recordHistory(dbPath, sourcePath string, result *compile.Result, compileErr error, duration time.Duration) {
	store, err := history.Open(dbPath)
	if err != nil {
		log.Warn().Err(err).Msg("failed to open compile history database")
		return
	}
	defer store.Close()

	rec := &history.Record{
		Timestamp:  time.Now(),
		SourcePath: sourcePath,
		Success:    compileErr == nil,
		DurationMs: float64(duration.Microseconds()) / 1000.0,
	}
	if compileErr != nil {
		rec.Error = compileErr.Error()
	} else {
		rec.RunID = result.RunID
		rec.WarningCount = len(result.Warnings)
		rec.HasFirecrypt = result.Firecrypt != nil
	}

	if err := store.Insert(context.Background(), rec); err != nil {
		log.Warn().Err(err).Msg("failed to record compile history")
	}
}

// initLogger configures zerolog's global logger: text via
// zerolog.ConsoleWriter, JSON via the raw writer with RFC3339Nano
// timestamps.
func initLogger(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stderr
	if cfg.Output == "stdout" {
		output = os.Stdout
	}

	if cfg.Format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339})
	} else {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		log.Logger = log.Output(output)
	}
}
