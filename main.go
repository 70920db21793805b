package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/norsegaud/go-daemon"
	flag "github.com/spf13/pflag"
	"github.com/veertuinc/glimpse/internal/config"
	"github.com/veertuinc/glimpse/internal/database"
	"github.com/veertuinc/glimpse/internal/logging"
	"github.com/veertuinc/glimpse/internal/metrics"
	"github.com/veertuinc/glimpse/internal/run"
	_ "github.com/veertuinc/glimpse/plugins/core"
)

var (
	version     = "dev"
	versionFlag = flag.Bool("version", false, "Print the version")
	configFlag  = flag.StringP("config", "c", "", "Path to the config file (defaults to ~/.config/glimpse/config.yml)")
	onceFlag    = flag.Bool("once", false, "Collect a single time, print the stats as JSON and exit")
	attachFlag  = flag.Bool("attach", false, "Attach to glimpse and don't background it (useful for containers)")
)

func main() {

	parentLogger := logging.New()
	parentCtx := context.Background()

	if version == "" {
		version = "dev" // Default version if not set by go build
	}

	flag.Parse()
	if *versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	var configPath string
	if *configFlag != "" {
		configPath = *configFlag
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			parentLogger.ErrorContext(parentCtx, "unable to get user home directory", "error", err)
			os.Exit(1)
		}
		configFileName := os.Getenv("GLIMPSE_CONFIG_FILE_NAME")
		if configFileName == "" {
			configFileName = "config.yml"
		}
		configPath = filepath.Join(homeDir, ".config", "glimpse", configFileName)
	}

	// obtain config
	loadedConfig, err := config.LoadConfig(configPath)
	if err != nil {
		parentLogger.ErrorContext(parentCtx, "unable to load config.yml (is it in the work_dir, or are you using an absolute path?)", "error", err)
		os.Exit(1)
	}
	loadedConfig, err = config.LoadInEnvs(loadedConfig)
	if err != nil {
		parentLogger.ErrorContext(parentCtx, "unable to load config.yml from environment variables", "error", err)
		os.Exit(1)
	}

	parentCtx = logging.AppendCtx(parentCtx, slog.String("version", version))
	parentCtx = logging.AppendCtx(parentCtx, slog.String("collectorID", loadedConfig.CollectorID))

	var suffix string
	if loadedConfig.Metrics.Aggregator {
		suffix = "-aggregator"
	}

	if loadedConfig.Log.FileDir != "" {
		if !strings.HasSuffix(loadedConfig.Log.FileDir, "/") {
			loadedConfig.Log.FileDir += "/"
		}
		if _, err := os.Stat(loadedConfig.Log.FileDir); os.IsNotExist(err) {
			parentLogger.ErrorContext(parentCtx, "log directory does not exist", "directory", loadedConfig.Log.FileDir)
			os.Exit(1)
		}
	}
	if !strings.HasSuffix(loadedConfig.PidFileDir, "/") {
		loadedConfig.PidFileDir += "/"
	}

	parentCtx = context.WithValue(parentCtx, config.ContextKey("logger"), parentLogger)
	parentLogger.DebugContext(parentCtx, "loaded config", slog.Any("config", loadedConfig))

	if !*attachFlag && !*onceFlag {
		daemonContext := &daemon.Context{
			PidFileName: loadedConfig.PidFileDir + "glimpse" + suffix + ".pid",
			PidFilePerm: 0644,
			LogFileName: loadedConfig.Log.FileDir + "glimpse" + suffix + ".log",
			LogFilePerm: 0640,
			WorkDir:     loadedConfig.WorkDir,
			Umask:       027,
			Args:        append([]string{"glimpse"}, os.Args[1:]...),
		}
		d, err := daemonContext.Reborn()
		if err != nil {
			log.Fatalln(err)
		}
		if d != nil {
			return
		}
		defer daemonContext.Release()
	}

	// Capture ctrl+c and handle sending cancellation
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	worker(parentCtx, parentLogger, loadedConfig, sigChan)
}

func worker(
	parentCtx context.Context,
	parentLogger *slog.Logger,
	loadedConfig config.Config,
	sigChan chan os.Signal,
) {
	workerCtx, workerCancel := context.WithCancel(parentCtx)
	defer workerCancel()
	suffix := ""
	if loadedConfig.Metrics.Aggregator {
		suffix = "-aggregator"
	}
	parentLogger.InfoContext(workerCtx, "starting glimpse"+suffix, "inputMethod", loadedConfig.InputMethod.String())
	go func() {
		defer signal.Stop(sigChan)
		var sigCount int
		for range sigChan {
			sigCount++
			if sigCount >= 2 {
				parentLogger.WarnContext(workerCtx, "forceful shutdown after second interrupt...")
				os.Exit(1)
			}
			parentLogger.WarnContext(workerCtx, "graceful shutdown, finishing the current collection...")
			workerCancel()
		}
	}()

	var db *database.Database
	if loadedConfig.Database.Enabled || loadedConfig.Metrics.Aggregator {
		var err error
		db, err = database.New(workerCtx, loadedConfig.Database)
		if err != nil {
			parentLogger.ErrorContext(workerCtx, "unable to access database", "error", err)
			os.Exit(1)
		}
		workerCtx = context.WithValue(workerCtx, config.ContextKey("database"), db)
		parentLogger.DebugContext(workerCtx, "connected to database")
	}

	metricsService := metrics.NewServer(loadedConfig.Metrics.Port)
	metricsService.Disabled = loadedConfig.PluginDisabled
	if loadedConfig.Metrics.Aggregator {
		metricsService.Aggregator = true
		parentLogger.InfoContext(workerCtx, "metrics aggregator started on port "+loadedConfig.Metrics.Port)
		err := metricsService.Start(workerCtx, parentLogger, metrics.AggregatorSource(db, parentLogger))
		if err != nil {
			parentLogger.ErrorContext(workerCtx, "metrics aggregator stopped", "error", err)
			os.Exit(1)
		}
		parentLogger.WarnContext(parentCtx, "glimpse"+suffix+" shut down")
		return
	}

	if err := run.ConfigurePlugins(workerCtx, &loadedConfig); err != nil {
		parentLogger.ErrorContext(workerCtx, "unable to configure plugins", "error", err)
		os.Exit(1)
	}

	metricsData := metrics.NewMetricsDataLock(loadedConfig.CollectorID, loadedConfig.InputMethod)

	if *onceFlag {
		run.Collect(workerCtx, parentLogger, &loadedConfig, metricsData)
		run.CleanupDatabase(workerCtx, parentLogger, &loadedConfig)
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(metricsData.Copy()); err != nil {
			parentLogger.ErrorContext(workerCtx, "error encoding stats", "error", err)
			os.Exit(1)
		}
		return
	}

	go func() {
		err := metricsService.Start(workerCtx, parentLogger, metrics.LocalSource(metricsData))
		if err != nil {
			parentLogger.ErrorContext(workerCtx, "metrics server stopped", "error", err)
			workerCancel()
		}
	}()
	parentLogger.InfoContext(workerCtx, "metrics server started on port "+loadedConfig.Metrics.Port)

	run.Loop(workerCtx, parentLogger, &loadedConfig, metricsData, false)

	run.CleanupDatabase(workerCtx, parentLogger, &loadedConfig)
	time.Sleep(time.Second) // lets the logger write the final entries
	parentLogger.WarnContext(parentCtx, "glimpse shut down")
}
