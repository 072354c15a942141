// Package main is the operator workstation CLI for the robot fleet.
//
// Usage:
//
//	workstation [-config file] [-json] <command> [args]
//
// Commands:
//
//	status                 probe the backend once
//	overview               list every robot with its state
//	robot <uuid>           show one robot's detail and interfaces
//	rename <uuid> <name>   rename a robot
//	watch                  follow backend liveness until interrupted
//
// Configuration comes from the optional YAML file and the FLEETDASH_*
// environment variables (see internal/config). When metrics.listen is set,
// Prometheus metrics are served on it for the lifetime of the command.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dreamware/fleetdash/internal/api"
	"github.com/dreamware/fleetdash/internal/config"
	"github.com/dreamware/fleetdash/internal/dashboard"
	"github.com/dreamware/fleetdash/internal/logger"
	"github.com/dreamware/fleetdash/internal/metrics"
	"github.com/dreamware/fleetdash/internal/roster"
	"github.com/dreamware/fleetdash/internal/status"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// logFatal is a variable to allow intercepting fatal errors in tests.
var logFatal = func(format string, v ...any) {
	l := logger.GetLogger()
	l.Fatal().Msgf(format, v...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli carries what every command needs.
type cli struct {
	dash   *dashboard.Dashboard
	stdout io.Writer
	stderr io.Writer
	json   bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("workstation", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	asJSON := fs.Bool("json", false, "print results as JSON")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: workstation [-config file] [-json] <status|overview|robot|rename|watch> [args]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitError
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return exitError
	}

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		shutdown := serveMetrics(cfg.Metrics.Listen, m)
		defer shutdown()
	}

	dash, err := dashboard.New(cfg, dashboard.WithMetrics(m))
	if err != nil {
		fmt.Fprintf(stderr, "dashboard: %v\n", err)
		return exitError
	}

	c := &cli{dash: dash, stdout: stdout, stderr: stderr, json: *asJSON}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "status":
		return c.status(ctx)
	case "overview":
		return c.overview(ctx)
	case "robot":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "usage: workstation robot <uuid>")
			return exitUsage
		}
		return c.robot(ctx, rest[0])
	case "rename":
		if len(rest) != 2 {
			fmt.Fprintln(stderr, "usage: workstation rename <uuid> <name>")
			return exitUsage
		}
		return c.rename(ctx, rest[0], rest[1])
	case "watch":
		return c.watch(ctx)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return exitUsage
	}
}

func (c *cli) status(ctx context.Context) int {
	updates, cancel := c.dash.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for state := range updates {
			if state.Checking {
				fmt.Fprintln(c.stderr, "Checking backend status...")
			}
		}
	}()

	c.dash.Probe(ctx)
	cancel()
	<-done

	health := c.dash.Health()
	if c.json {
		c.printJSON(health)
	} else {
		fmt.Fprintf(c.stdout, "backend %s: %s (checked %s)\n",
			c.dash.Client().Endpoints().BaseURL(),
			describeState(status.BackendState{Online: health.Online, Checking: health.Checking}),
			health.LastChecked.Format(time.TimeOnly))
	}
	if !health.Online {
		return exitError
	}
	return exitOK
}

func (c *cli) overview(ctx context.Context) int {
	ov, err := c.dash.Overview(ctx)
	if err != nil {
		c.printError(err)
		return exitError
	}
	if c.json {
		c.printJSON(ov)
		return exitOK
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tUUID\tSTATE\tMAC\tADDRESSES")
	for _, e := range ov.Entries {
		switch v := e.View.(type) {
		case roster.Online:
			fmt.Fprintf(tw, "%s\t%s\tonline\t%s\t%s\n", v.Detail.Name, e.ID, v.Detail.MAC, strings.Join(addresses(v.Network), ","))
		case roster.Offline:
			fmt.Fprintf(tw, "%s\t%s\toffline\t-\t-\n", v.Name, e.ID)
		}
	}
	_ = tw.Flush()
	fmt.Fprintf(c.stdout, "%d online, %d offline\n", ov.Online, ov.Offline)
	return exitOK
}

func (c *cli) robot(ctx context.Context, robotUUID string) int {
	entry, err := c.dash.Robot(ctx, robotUUID)
	if err != nil {
		c.printError(err)
		return exitError
	}
	if c.json {
		c.printJSON(entry)
		return exitOK
	}

	online, ok := entry.View.(roster.Online)
	if !ok {
		fmt.Fprintf(c.stdout, "%s is offline\n", entry.ID)
		return exitOK
	}

	fmt.Fprintf(c.stdout, "name: %s\nuuid: %s\nmac:  %s\nupdated: %s\n\n",
		online.Detail.Name, online.Detail.UUID, online.Detail.MAC,
		online.Network.LastUpdated.Format(time.RFC3339))

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IDX\tNAME\tMTU\tHWADDR\tFLAGS\tADDRESSES")
	for _, iface := range online.Network.Interfaces {
		addrs := make([]string, 0, len(iface.Addrs))
		for _, a := range iface.Addrs {
			addrs = append(addrs, a.Addr)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
			iface.Index, iface.Name, iface.MTU, orDash(iface.HardwareAddr),
			strings.Join(iface.Flags, ","), strings.Join(addrs, ","))
	}
	_ = tw.Flush()
	return exitOK
}

func (c *cli) rename(ctx context.Context, robotUUID, name string) int {
	if err := c.dash.Rename(ctx, robotUUID, name); err != nil {
		c.printError(err)
		return exitError
	}
	fmt.Fprintf(c.stdout, "renamed %s to %q\n", robotUUID, name)
	return exitOK
}

// watch prints every backend state change until ctx is cancelled.
func (c *cli) watch(ctx context.Context) int {
	updates, cancel := c.dash.Subscribe()
	defer cancel()

	go c.dash.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return exitOK
		case state, ok := <-updates:
			if !ok {
				return exitOK
			}
			if c.json {
				c.printJSON(state)
				continue
			}
			fmt.Fprintf(c.stdout, "%s %s\n", time.Now().Format(time.TimeOnly), describeState(state))
		}
	}
}

func (c *cli) printJSON(v any) {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// printError explains err by its kind.
func (c *cli) printError(err error) {
	var (
		validationErr  *api.ValidationError
		transportErr   *api.TransportError
		schemaErr      *api.SchemaError
		aggregationErr *roster.AggregationError
	)

	switch {
	case errors.As(err, &validationErr):
		fmt.Fprintf(c.stderr, "invalid input: %s\n", strings.Join(validationErr.Violations, "; "))
	case errors.As(err, &transportErr) && transportErr.Timeout():
		fmt.Fprintf(c.stderr, "backend timed out: %v\n", err)
	case errors.As(err, &transportErr):
		fmt.Fprintf(c.stderr, "backend request failed: %v\n", err)
	case errors.As(err, &schemaErr):
		fmt.Fprintf(c.stderr, "backend sent an unexpected response: %v\n", err)
	default:
		fmt.Fprintf(c.stderr, "error: %v\n", err)
	}
	if errors.As(err, &aggregationErr) {
		fmt.Fprintln(c.stderr, "the fleet view could not be built")
	}
}

func serveMetrics(addr string, m *metrics.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("metrics listen: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func describeState(s status.BackendState) string {
	switch {
	case s.Checking:
		return "checking"
	case s.Online:
		return "online"
	default:
		return "offline"
	}
}

func addresses(n api.NetworkSnapshot) []string {
	var out []string
	for _, iface := range n.Interfaces {
		if iface.Name == "lo" {
			continue
		}
		for _, a := range iface.Addrs {
			out = append(out, a.Addr)
		}
	}
	if len(out) == 0 {
		return []string{"-"}
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
