// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// vwlearners creates learners from VW command lines, feeds them examples in VW text format, and reports
// their predictions and the open native handles.
//
// Example:
//
//	vwlearners -command="--quiet" -command="--cb 4 --quiet" -data=train.vw
//	vwlearners -config=vwlearners.toml -learn=false -data=test.vw
//
// The engine is selected with -engine (or the VWLEARNERS_ENGINE environment variable): "simplego" is always
// available, "vw" requires the binary to be built with `-tags vw_native`.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gomlx/vwlearners/engines"
	_ "github.com/gomlx/vwlearners/engines/simplego"
	_ "github.com/gomlx/vwlearners/engines/vw"
	"github.com/gomlx/vwlearners/internal/config"
	"github.com/gomlx/vwlearners/pkg/core/handles"
	"github.com/gomlx/vwlearners/pkg/learners"
	"github.com/gomlx/vwlearners/pkg/support/xslices"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

var (
	flagConfig = flag.String("config", "", "TOML configuration file. Flags explicitly set override its values.")
	flagEngine = flag.String("engine", "",
		fmt.Sprintf("Engine configuration, \"<engine>[:<config>]\". Defaults to $%s or the first engine registered.",
			engines.VWLEARNERS_ENGINE))
	flagLibraryPath = flag.String("library_path", "", "Path to the native VW library, for the \"vw\" engine.")
	flagCommands    = xslices.RepeatedFlag(nil, "command",
		"VW command line of a learner to create. It can be given multiple times.")
	flagData        = flag.String("data", "", "File with examples in VW text format, one per line. Use \"-\" for stdin.")
	flagLearn       = flag.Bool("learn", true, "Learn from the examples. If false, only predict.")
	flagParallelism = flag.Int("parallelism", 4, "Maximum number of learners created or fed concurrently.")
	flagMetricsAddr = flag.String("metrics_addr", "", "Address where to serve prometheus metrics (\"/metrics\"). "+
		"Empty disables it.")
	flagHandles = flag.Bool("handles", true, "Print the table of open handles after the learners are created.")
	flagLinger  = flag.Duration("linger", 0, "Time to wait before closing the learners, e.g. to scrape metrics.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if err := run(); err != nil {
		klog.Errorf("vwlearners failed: %+v", err)
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

// loadConfig reads -config, if given, and overlays the flags explicitly set.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *flagConfig != "" {
		var err error
		cfg, err = config.Load(*flagConfig)
		if err != nil {
			return cfg, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "engine":
			cfg.Engine = *flagEngine
		case "library_path":
			cfg.LibraryPath = *flagLibraryPath
		case "learn":
			cfg.Learn = *flagLearn
		case "parallelism":
			cfg.Parallelism = *flagParallelism
		case "metrics_addr":
			cfg.MetricsAddr = *flagMetricsAddr
		}
	})
	for _, command := range *flagCommands {
		cfg.Learners = append(cfg.Learners, config.Learner{Command: command})
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if len(cfg.Learners) == 0 {
		return cfg, errors.New("no learners configured: use -command or -config")
	}
	return cfg, nil
}

func newEngine(cfg config.Config) (engines.Engine, error) {
	if engineConfig := cfg.EngineConfig(); engineConfig != "" {
		return engines.NewWithConfig(engineConfig)
	}
	return engines.New()
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	klog.V(1).Infof("Using engine %q (available: %q)", engine.Name(), engines.List())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	registry := handles.New(
		handles.WithName(engine.Name()),
		handles.WithMetrics(handles.NewMetrics(reg, "vwlearners")))
	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr, reg)
	}

	factory := learners.NewFactory(engine, learners.WithRegistry(registry))
	stop := learners.ReapOnSignal(factory)
	defer stop()
	defer func() {
		if n := factory.Shutdown(); n > 0 {
			klog.Warningf("Released %d learners left open", n)
		}
	}()

	named, err := createLearners(factory, cfg)
	if err != nil {
		return err
	}
	if *flagHandles {
		printHandles(factory, named)
	}

	if *flagData != "" {
		examples, err := readExamples(*flagData)
		if err != nil {
			return err
		}
		results, err := feed(named, examples, cfg.Learn, cfg.Parallelism)
		if err != nil {
			return err
		}
		printResults(results, cfg.Learn)
	}

	if *flagLinger > 0 {
		klog.Infof("Lingering for %s", *flagLinger)
		time.Sleep(*flagLinger)
	}
	return closeLearners(named)
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		klog.Infof("Serving metrics on http://%s/metrics", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.Errorf("Metrics server failed: %v", err)
		}
	}()
}
