package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sadopc/diskly/internal/cache"
	"github.com/sadopc/diskly/internal/config"
	"github.com/sadopc/diskly/internal/coordinator"
	"github.com/sadopc/diskly/internal/logging"
	"github.com/sadopc/diskly/internal/metrics"
	"github.com/sadopc/diskly/internal/model"
	"github.com/sadopc/diskly/internal/ops"
	"github.com/sadopc/diskly/internal/remote"
	"github.com/sadopc/diskly/internal/scanner"
	"github.com/sadopc/diskly/internal/ui"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	version = "dev"
)

const defaultExportFile = "diskly-export.json"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(fs *flag.FlagSet, w io.Writer) func() {
	return func() {
		fmt.Fprintf(w, "diskly - Interactive disk usage analyzer\n\n")
		fmt.Fprintf(w, "Usage: diskly [options] [path|user@host [remote-path]]\n\n")
		fmt.Fprintf(w, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(w, "\nEvery option can also be set as %s<NAME>, e.g. %sACCOUNTING=disk.\n", config.EnvPrefix, config.EnvPrefix)
		fmt.Fprintf(w, "\nExamples:\n")
		fmt.Fprintf(w, "  diskly .                          Scan current directory\n")
		fmt.Fprintf(w, "  diskly -accounting disk /home     Count allocated blocks\n")
		fmt.Fprintf(w, "  diskly -export scan.json .        Export scan to JSON\n")
		fmt.Fprintf(w, "  diskly . | gzip > scan.json.gz    Export to a pipe\n")
		fmt.Fprintf(w, "  diskly -import scan.json          View exported scan\n")
		fmt.Fprintf(w, "  diskly user@192.168.1.10          Scan remote home directory over SSH\n")
		fmt.Fprintf(w, "  diskly -ssh-port 2222 user@host /var/log\n")
		fmt.Fprintf(w, "  diskly -metrics-addr :9090 /srv   Expose Prometheus metrics\n")
	}
}

// run is main without the process exit, so tests can drive it.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("diskly", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.BindFlags(fs)
	fs.Usage = usage(fs, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if cfg.ShowVersion {
		fmt.Fprintf(stdout, "diskly %s\n", version)
		return 0
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// Without a terminal the result goes to stdout as an export.
	interactive := cfg.ExportPath == "" && isTerminal(stdout)
	if !interactive && cfg.ExportPath == "" {
		cfg.ExportPath = "-"
	}

	// The TUI owns the terminal, so logs only go to a file there.
	var logOut io.Writer = stderr
	if interactive {
		logOut = nil
	}
	log, closeLog, err := logging.New(cfg.Logging(), logOut)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, reg, log)
		defer stop()
	}

	if cfg.ImportPath != "" {
		if fs.NArg() > 0 {
			fmt.Fprintf(stderr, "Error: -import cannot be used with scan targets\n")
			return 1
		}
		return runImport(cfg, interactive, stdout, stderr)
	}

	target, err := resolveScanTarget(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stopSignals()

	var fsys scanner.FileSystem = scanner.OSFileSystem{}
	if target.Remote {
		sftpFS, err := remote.Dial(ctx, remote.Config{
			Target:    target.Destination,
			Port:      cfg.SSHPort,
			BatchMode: cfg.SSHBatch,
			Timeout:   cfg.SSHTimeout,
			Logger:    log.Named("remote"),
		})
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer sftpFS.Close()
		fsys = sftpFS
	}

	scanCache, err := cache.New(cfg.CacheSize,
		cache.WithLogger(log.Named("cache")),
		cache.WithEvictHook(func(string) { m.CacheEvicted() }),
	)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	opts := []coordinator.Option{
		coordinator.WithFileSystem(fsys),
		coordinator.WithWorkerFraction(cfg.WorkerFraction),
		coordinator.WithCache(scanCache),
		coordinator.WithLogger(log.Named("coordinator")),
		coordinator.WithMetrics(m),
		coordinator.WithEngineOptions(cfg.EngineOptions(log.Named("scanner"))),
	}

	if !interactive {
		if err := runHeadless(ctx, opts, target.Path, cfg.ExportPath, stdout, stderr); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if info, err := fsys.Stat(target.Path); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	} else if !info.IsDir() {
		fmt.Fprintf(stderr, "Error: %s is not a directory\n", target.Path)
		return 1
	}

	app := ui.NewApp(target.Path)
	app.ExportPath = defaultExportFile
	app.Version = version
	coord := coordinator.New(append(opts, coordinator.WithListener(app))...)
	app.UseScanner(coord)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()
	coord.CancelScan()
	coord.Wait()
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
		return 1
	}
	if err := app.FatalError(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runImport(cfg config.Config, interactive bool, stdout, stderr io.Writer) int {
	root, total, err := ops.ImportJSON(cfg.ImportPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error importing: %v\n", err)
		return 1
	}

	if !interactive {
		if err := export(root, total, cfg.ExportPath, stdout); err != nil {
			fmt.Fprintf(stderr, "Error exporting: %v\n", err)
			return 1
		}
		return 0
	}

	app := ui.NewImportedApp(cfg.ImportPath, root, total)
	app.ExportPath = defaultExportFile
	app.Version = version
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// export writes to stdout for "-" and confirms file exports there.
func export(root model.Node, total uint64, path string, stdout io.Writer) error {
	if path == "-" {
		return ops.ExportTo(stdout, root, total, version)
	}
	if err := ops.ExportJSON(root, total, path, version); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Exported to %s\n", path)
	return nil
}

func serveMetrics(addr string, g prometheus.Gatherer, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics endpoint failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
