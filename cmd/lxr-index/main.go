// Command lxr-index runs the update pipeline (C5) over one project's
// repository and kv store, driving the vcsadapter/parseadapter/pipeline
// stack end to end. It mirrors the teacher's go.mod choice of
// github.com/urfave/cli as the indexing tool's CLI framework, kept
// distinct from lxr-query's cobra surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"

	"github.com/bootlin/elixir/internal/bookkeep"
	"github.com/bootlin/elixir/internal/kvstore"
	"github.com/bootlin/elixir/internal/logx"
	"github.com/bootlin/elixir/internal/parseadapter"
	"github.com/bootlin/elixir/internal/pipeline"
	"github.com/bootlin/elixir/internal/vcsadapter"
)

func main() {
	app := cli.NewApp()
	app.Name = "lxr-index"
	app.Usage = "index a project's repository into an elixir kv store"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "datadir", Usage: "kv store directory", Required: true},
		cli.StringFlag{Name: "vcs-script", Usage: "path to the get-* line-protocol script", Required: true},
		cli.StringFlag{Name: "parse-script", Usage: "path to the tokenize/parse-* line-protocol script", Required: true},
		cli.IntFlag{Name: "workers", Usage: "per-stage worker count", Value: 4},
		cli.IntFlag{Name: "max-subprocess", Usage: "burst of the vcs/parse subprocess limiter (its rate is unlimited, so concurrency is not bounded)", Value: 8},
		cli.StringFlag{Name: "tag", Usage: "index a single tag instead of every new tag"},
		cli.BoolFlag{Name: "metrics", Usage: "expose prometheus metrics on :2112"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logx.Error("lxr-index failed", "err", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx := context.Background()
	datadir := c.String("datadir")
	if datadir == "" {
		return cli.NewExitError("missing --datadir", 2)
	}

	kv, err := kvstore.Open(ctx, datadir, kvstore.CreateOrOpen)
	if err != nil {
		return fmt.Errorf("open kv store: %w", err)
	}
	defer kv.Close()

	vcs := vcsadapter.New(c.String("vcs-script"), c.Int("max-subprocess"))
	parse := parseadapter.New(c.String("parse-script"), c.Int("max-subprocess"))

	var metrics *bookkeep.Metrics
	if c.Bool("metrics") {
		reg := prometheus.NewRegistry()
		metrics = bookkeep.NewMetrics(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(":2112", mux); err != nil {
				logx.Error("metrics server exited", "err", err)
			}
		}()
	}

	dtsEnabled, err := vcs.DTCompEnabled(ctx)
	if err != nil {
		return fmt.Errorf("dts-comp toggle: %w", err)
	}

	p, err := pipeline.New(ctx, pipeline.Config{
		KV:         kv,
		VCS:        vcs,
		Parse:      parse,
		Metrics:    metrics,
		NumWorkers: c.Int("workers"),
		DTSComp:    dtsEnabled,
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	if tag := c.String("tag"); tag != "" {
		logx.Info("indexing single tag", "tag", tag)
		return p.UpdateTag(ctx, tag)
	}

	// Tags are processed in VCS order (spec §4.4), matching
	// original_source/elixir/update.py's unsorted `for tag in
	// scriptLines('list-tags')`. Sorting lexicographically would break
	// version ordering (e.g. "v2.6.12" sorts before "v2.6.2").
	tags, err := vcs.ListTags(ctx)
	if err != nil {
		return fmt.Errorf("list-tags: %w", err)
	}

	for _, tag := range tags {
		logx.Info("indexing tag", "tag", tag)
		if err := p.UpdateTag(ctx, tag); err != nil {
			return fmt.Errorf("update tag %s: %w", tag, err)
		}
	}
	return kv.Sync()
}
