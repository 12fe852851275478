package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shopdesk/shopdesk/internal/client"
	"github.com/shopdesk/shopdesk/internal/config"
	"github.com/shopdesk/shopdesk/internal/console"
	"github.com/shopdesk/shopdesk/internal/guard"
	"github.com/shopdesk/shopdesk/internal/session"
	"github.com/shopdesk/shopdesk/internal/storage"
)

// usageError marks bad invocations; main prints usage after it.
type usageError string

func (e usageError) Error() string { return string(e) }

func usagef(format string, args ...any) error {
	return usageError(fmt.Sprintf(format, args...))
}

// app is one console session: config, persisted state, the API client,
// the session manager and the page controllers built on them.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      storage.Store
	closeStore func() error
	client     *client.Client
	session    *session.Manager
	console    *console.Console

	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

func newApp(ctx context.Context, opts globalOptions, in io.Reader, out, errOut io.Writer) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFrom(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	level := cfg.Level()
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	st, closeStore, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("opening %s state: %w", cfg.Storage, err)
	}

	cl := client.New(st, cfg.Origin,
		client.WithTimeout(cfg.RequestTimeout()),
		client.WithLogger(logger),
	)
	sess := session.NewManager(st, cl, logger)
	if err := sess.Init(ctx); err != nil && !errors.Is(err, session.ErrMalformedToken) {
		_ = closeStore()
		return nil, fmt.Errorf("restoring session: %w", err)
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		closeStore: closeStore,
		client:     cl,
		session:    sess,
		console:    console.New(cl, sess, logger),
		in:         bufio.NewReader(in),
		out:        out,
		errOut:     errOut,
	}, nil
}

func (a *app) close() {
	a.console.Unmount()
	a.session.Close()
	if err := a.closeStore(); err != nil {
		a.logger.Warn("closing state store", "err", err)
	}
}

// run dispatches one command.
func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.cmdLogin(ctx, args)
	case "register":
		return a.cmdRegister(ctx, args)
	case "logout":
		return a.cmdLogout(ctx)
	case "whoami":
		return a.cmdWhoAmI(ctx)
	case "config":
		return a.cmdConfig(ctx, args)
	case "products":
		return a.cmdProducts(ctx, args)
	case "categories":
		return a.cmdCategories(ctx, args)
	case "cart":
		return a.cmdCart(ctx, args)
	case "checkout":
		return a.cmdCheckout(ctx)
	case "orders":
		return a.cmdOrders(ctx, args)
	case "pay":
		return a.cmdPay(ctx, args)
	case "reviews":
		return a.cmdReviews(ctx, args)
	case "health":
		return a.cmdHealth(ctx)
	case "request":
		return a.cmdRequest(ctx, args)
	case "history":
		return a.cmdHistory()
	case "twin":
		return a.cmdTwin(ctx, args)
	case "test":
		return a.cmdTest(ctx, args)
	case "shell":
		return a.cmdShell(ctx)
	case "mcp":
		return a.cmdMcp(ctx)
	case "version":
		fmt.Fprintf(a.out, "shopctl version %s\n", version)
		return nil
	default:
		return usagef("unknown command %q", cmd)
	}
}

// require checks the command's guards, waiting out a pending admin probe.
func (a *app) require(ctx context.Context, guards ...guard.Guard) error {
	d, err := guard.Await(ctx, a.session, func() { fmt.Fprintln(a.errOut, guard.PendingMessage) }, guards...)
	if err != nil {
		return err
	}
	return d.Err()
}

// notice prints an outcome's message and where the browser console would
// go next.
func (a *app) notice(out console.Outcome) {
	if out.Notice != "" {
		fmt.Fprintln(a.out, out.Notice)
	}
	a.logger.Debug("outcome", "next", out.Next, "delay", out.Delay)
}

// viewErr turns a failed view into an error.
func viewErr[T any](v console.View[T]) error {
	if v.State == console.Failed {
		return errors.New(v.Err)
	}
	return nil
}

// readLine reads one trimmed line from stdin, prompting on errOut.
func (a *app) readLine(prompt string) (string, error) {
	fmt.Fprint(a.errOut, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
