package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"time"

	"github.com/shopdesk/shopdesk/internal/client"
	"github.com/shopdesk/shopdesk/internal/procmgr"
	"github.com/shopdesk/shopdesk/internal/scenario"
	"github.com/shopdesk/shopdesk/internal/shoptwin"
	"github.com/shopdesk/shopdesk/internal/storage"
)

// healthWait bounds how long `twin up` polls a fresh twin.
const healthWait = 5 * time.Second

func (a *app) procs() *procmgr.Manager {
	return procmgr.New(filepath.Dir(a.cfg.File()))
}

// ---------------------------------------------------------------------------
// twin up | down | status
// ---------------------------------------------------------------------------

func (a *app) cmdTwinUp(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("twin up", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	var opts procmgr.Options
	fs.StringVar(&opts.Binary, "binary", procmgr.DefaultBinary, "twin-shop binary name or path")
	fs.IntVar(&opts.Port, "port", shoptwin.DefaultPort, "listen port")
	fs.StringVar(&opts.SeedFile, "seed", "", "JSON fixture loaded at startup")
	fs.StringVar(&opts.RoleClaim, "role-claim", "", "where tokens carry roles")
	fs.BoolVar(&opts.DemoPayments, "demo-payments", false, "settle payments without a gateway order")
	fs.BoolVar(&opts.Verbose, "verbose", false, "log every request")
	use := fs.Bool("use", false, "point the console at the twin")
	if _, err := parseFlags(fs, args); err != nil {
		return err
	}

	e, err := a.procs().Start(opts)
	if err != nil {
		return err
	}
	a.logger.Debug("twin process", "pid", e.PID, "log", e.LogFile)

	ac := client.NewAdmin(e.URL())
	deadline := time.Now().Add(healthWait)
	for {
		if ok, _ := ac.Health(); ok {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("twin-shop (pid %d) did not become healthy at %s; see %s", e.PID, e.URL(), e.LogFile)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	fmt.Fprintf(a.out, "twin-shop running at %s (pid %d, log %s)\n", e.URL(), e.PID, e.LogFile)
	if *use {
		if err := a.store.Set(ctx, storage.KeyBaseURL, e.URL()); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Requests now go to %s\n", e.URL())
	}
	return nil
}

func (a *app) cmdTwinDown(ctx context.Context) error {
	e, stopped, err := a.procs().Stop()
	if err != nil {
		return err
	}
	if e.PID == 0 {
		fmt.Fprintln(a.out, "No twin-shop is tracked")
		return nil
	}
	if stopped {
		fmt.Fprintf(a.out, "Stopped twin-shop (pid %d)\n", e.PID)
	} else {
		fmt.Fprintf(a.out, "twin-shop (pid %d) was not running\n", e.PID)
	}

	// Drop an override that still points at the stopped twin.
	if override, err := a.store.Get(ctx, storage.KeyBaseURL); err == nil && override == e.URL() {
		if err := a.store.Delete(ctx, storage.KeyBaseURL); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Requests now go to %s\n", a.cfg.Origin)
	}
	return nil
}

func (a *app) cmdTwinStatus() error {
	e, ok, err := a.procs().Load()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "No twin-shop is tracked")
		return nil
	}
	state := "stopped"
	if procmgr.IsRunning(e.PID) {
		state = "running"
		if healthy, _ := client.NewAdmin(e.URL()).Health(); !healthy {
			state = "running (unhealthy)"
		}
	}
	fmt.Fprintf(a.out, "  %-8s %s\n", "STATE", state)
	fmt.Fprintf(a.out, "  %-8s %d\n", "PID", e.PID)
	fmt.Fprintf(a.out, "  %-8s %s\n", "URL", e.URL())
	fmt.Fprintf(a.out, "  %-8s %s\n", "BINARY", e.Binary)
	fmt.Fprintf(a.out, "  %-8s %s\n", "LOG", e.LogFile)
	fmt.Fprintf(a.out, "  %-8s %s\n", "STARTED", e.Started.Format(time.RFC3339))
	return nil
}

// ---------------------------------------------------------------------------
// test
// ---------------------------------------------------------------------------

func (a *app) cmdTest(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usagef("test requires a scenario file or directory")
	}
	scenarios, err := scenario.Load(args[0])
	if err != nil {
		return err
	}
	base, err := a.client.BaseURL(ctx)
	if err != nil {
		return err
	}

	runner := scenario.NewRunner(base)
	var passed, failed int
	for _, s := range scenarios {
		fmt.Fprintf(a.out, "--- %s ---\n", s.Name)
		result, err := runner.Run(ctx, s)
		if err != nil {
			fmt.Fprintf(a.out, "  ERROR: %v\n\n", err)
			failed++
			continue
		}
		for _, sr := range result.Steps {
			if sr.Passed {
				fmt.Fprintf(a.out, "  PASS  %s (%s)\n", sr.Name, sr.Duration.Round(time.Millisecond))
			} else {
				fmt.Fprintf(a.out, "  FAIL  %s: %s\n", sr.Name, sr.Error)
			}
		}
		fmt.Fprintln(a.out)
		if result.Passed {
			passed++
		} else {
			failed++
		}
	}

	fmt.Fprintf(a.out, "Results: %d passed, %d failed, %d total\n", passed, failed, passed+failed)
	if failed > 0 {
		return errors.New("scenarios failed")
	}
	return nil
}
