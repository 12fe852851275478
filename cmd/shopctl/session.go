package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/shopdesk/shopdesk/internal/client"
	"github.com/shopdesk/shopdesk/internal/config"
	"github.com/shopdesk/shopdesk/internal/console"
	"github.com/shopdesk/shopdesk/internal/storage"
)

// ---------------------------------------------------------------------------
// login / register / logout / whoami
// ---------------------------------------------------------------------------

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usagef("login requires an email")
	}
	password := ""
	if len(args) > 1 {
		password = args[1]
	} else {
		var err error
		if password, err = a.readLine("Password: "); err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
	}

	out, err := a.console.Auth.Login(ctx, args[0], password)
	if err != nil {
		return err
	}
	a.notice(out)

	snap, err := a.session.WaitResolved(ctx)
	if err != nil {
		return err
	}
	if snap.IsAdmin {
		fmt.Fprintln(a.out, "Administrator access granted")
	}
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	phone := fs.String("phone", "", "contact phone")
	address := fs.String("address", "", "postal address")
	role := fs.String("role", "", "role to grant (admins only)")
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(pos) < 2 {
		return usagef("register requires an email and a password")
	}

	out, err := a.console.Auth.Register(ctx, console.RegisterForm{
		Email:    pos[0],
		Password: pos[1],
		Phone:    *phone,
		Address:  *address,
		Role:     *role,
	})
	if err != nil {
		return err
	}
	a.notice(out)
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	out, err := a.console.Auth.Logout(ctx)
	if err != nil {
		return err
	}
	a.notice(out)
	return nil
}

func (a *app) cmdWhoAmI(ctx context.Context) error {
	snap, err := a.session.WaitResolved(ctx)
	if err != nil {
		return err
	}
	if !snap.HasToken() {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	roles := "-"
	if len(snap.Roles) > 0 {
		roles = strings.Join(snap.Roles, ",")
	}
	fmt.Fprintf(a.out, "  %-10s %s\n", "EMAIL", snap.Email)
	fmt.Fprintf(a.out, "  %-10s %s\n", "ROLES", roles)
	fmt.Fprintf(a.out, "  %-10s %t\n", "ADMIN", snap.IsAdmin)
	fmt.Fprintf(a.out, "  %-10s %s\n", "STATUS", snap.Status())
	return nil
}

// ---------------------------------------------------------------------------
// config
// ---------------------------------------------------------------------------

func (a *app) cmdConfig(ctx context.Context, args []string) error {
	sub := "show"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "show":
		override, err := a.store.Get(ctx, storage.KeyBaseURL)
		if err != nil {
			return err
		}
		base, err := a.client.BaseURL(ctx)
		if err != nil {
			return err
		}
		if override == "" {
			override = "-"
		}
		fmt.Fprintf(a.out, "  %-14s %s\n", "FILE", a.cfg.File())
		fmt.Fprintf(a.out, "  %-14s %s\n", "ORIGIN", a.cfg.Origin)
		fmt.Fprintf(a.out, "  %-14s %s\n", "OVERRIDE", override)
		fmt.Fprintf(a.out, "  %-14s %s\n", "BASE URL", base)
		fmt.Fprintf(a.out, "  %-14s %s\n", "STORAGE", a.cfg.Storage)
		fmt.Fprintf(a.out, "  %-14s %s\n", "TIMEOUT", a.cfg.RequestTimeout())
		return nil

	case "set-url":
		if len(args) < 2 {
			return usagef("config set-url requires a URL")
		}
		url := strings.TrimRight(strings.TrimSpace(args[1]), "/")
		if err := a.store.Set(ctx, storage.KeyBaseURL, url); err != nil {
			return err
		}
		if url == client.DefaultBaseURL {
			fmt.Fprintf(a.out, "Stored %s (the compiled-in default; requests still go to %s)\n", url, a.cfg.Origin)
			return nil
		}
		fmt.Fprintf(a.out, "Requests now go to %s\n", url)
		return nil

	case "clear-url":
		if err := a.store.Delete(ctx, storage.KeyBaseURL); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Requests now go to %s\n", a.cfg.Origin)
		return nil

	case "set":
		if len(args) < 3 {
			return usagef("config set requires a key and a value")
		}
		if err := a.cfg.Set(args[1], args[2]); err != nil {
			return err
		}
		if err := config.Save(a.cfg); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Set %s in %s\n", args[1], a.cfg.File())
		return nil

	default:
		return usagef("unknown config subcommand %q", sub)
	}
}

// parseFlags parses fs and returns the positional arguments. Flags may come
// before or after positionals.
func parseFlags(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, usagef("%s: see usage", fs.Name())
			}
			return nil, usagef("%s: %v", fs.Name(), err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}
