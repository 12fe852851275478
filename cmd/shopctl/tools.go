package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"flag"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopdesk/shopdesk/internal/client"
	"github.com/shopdesk/shopdesk/internal/mcp"
)

// ---------------------------------------------------------------------------
// history
// ---------------------------------------------------------------------------

func (a *app) cmdHistory() error {
	calls := a.client.History()
	if len(calls) == 0 {
		fmt.Fprintln(a.out, "No API calls yet")
		return nil
	}
	fmt.Fprintf(a.out, "  %-9s %-7s %-36s %-7s %-9s %s\n", "TIME", "METHOD", "PATH", "STATUS", "DURATION", "REQUEST ID")
	fmt.Fprintf(a.out, "  %-9s %-7s %-36s %-7s %-9s %s\n", "----", "------", "----", "------", "--------", "----------")
	for _, c := range calls {
		status := strconv.Itoa(c.Status)
		if c.Status == 0 {
			status = "-"
		}
		fmt.Fprintf(a.out, "  %-9s %-7s %-36s %-7s %-9s %s\n",
			c.Time.Format(time.TimeOnly), c.Method, c.Path, status, c.Duration.Round(time.Millisecond), c.RequestID)
		if c.Err != "" {
			fmt.Fprintf(a.out, "  %9s %s\n", "", c.Err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// health, request
// ---------------------------------------------------------------------------

// healthPath is the backend's health endpoint.
const healthPath = "/actuator/health"

func (a *app) cmdHealth(ctx context.Context) error {
	base, err := a.client.BaseURL(ctx)
	if err != nil {
		return err
	}
	var body string
	if err := a.client.Do(ctx, http.MethodGet, healthPath, nil, &body); err != nil {
		return fmt.Errorf("backend at %s is unhealthy: %w", base, err)
	}
	fmt.Fprintf(a.out, "Backend %s is healthy\n%s\n", base, prettyJSON(body))
	return nil
}

// cmdRequest sends an arbitrary request with the stored token and prints
// the status and body, whatever the status.
func (a *app) cmdRequest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("request", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	queryJSON := fs.String("query", "", "query parameters as a JSON object")
	bodyJSON := fs.String("body", "", "request body as JSON")
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return usagef("request requires a method and a path")
	}
	method := strings.ToUpper(pos[0])
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
	default:
		return usagef("request: unsupported method %q", pos[0])
	}
	path := pos[1]
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if *queryJSON != "" {
		q, err := queryValues(*queryJSON)
		if err != nil {
			return usagef("request --query: %v", err)
		}
		if enc := q.Encode(); enc != "" {
			sep := "?"
			if strings.Contains(path, "?") {
				sep = "&"
			}
			path += sep + enc
		}
	}

	var body any
	if *bodyJSON != "" {
		if !json.Valid([]byte(*bodyJSON)) {
			return usagef("request --body: invalid JSON")
		}
		body = json.RawMessage(*bodyJSON)
	}

	var text string
	err = a.client.Do(ctx, method, path, body, &text)
	var apiErr *client.APIError
	switch {
	case err == nil:
		fmt.Fprintf(a.out, "Status: %d\n", lastStatus(a.client.History()))
	case errors.As(err, &apiErr):
		fmt.Fprintf(a.out, "Status: %d\n", apiErr.StatusCode)
		text = strings.TrimSpace(string(apiErr.Body))
	default:
		return err
	}
	if text != "" {
		fmt.Fprintln(a.out, prettyJSON(text))
	}
	return nil
}

// queryValues turns a JSON object into query parameters. Arrays repeat the
// key; other values are written as their JSON text, strings unquoted.
func queryValues(raw string) (url.Values, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("expected a JSON object: %w", err)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := url.Values{}
	for _, k := range keys {
		switch v := obj[k].(type) {
		case nil:
		case []any:
			for _, item := range v {
				q.Add(k, queryText(item))
			}
		default:
			q.Add(k, queryText(v))
		}
	}
	return q, nil
}

func queryText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func lastStatus(calls []client.Call) int {
	if len(calls) == 0 {
		return 0
	}
	return calls[0].Status
}

// ---------------------------------------------------------------------------
// twin
// ---------------------------------------------------------------------------

func (a *app) cmdTwin(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usagef("twin requires a subcommand: up, down, status, health, reset, seed, fault, complete")
	}
	switch args[0] {
	case "up":
		return a.cmdTwinUp(ctx, args[1:])
	case "down":
		return a.cmdTwinDown(ctx)
	case "status":
		return a.cmdTwinStatus()
	}

	base, err := a.client.BaseURL(ctx)
	if err != nil {
		return err
	}
	ac := client.NewAdmin(base)

	var out string
	switch args[0] {
	case "health":
		ok, msg := ac.Health()
		if !ok {
			return fmt.Errorf("twin at %s is unhealthy: %s", base, msg)
		}
		out = msg

	case "reset":
		if out, err = ac.Reset(); err != nil {
			return err
		}

	case "seed":
		if len(args) < 2 {
			return usagef("twin seed requires a JSON file")
		}
		if out, err = ac.Seed(args[1]); err != nil {
			return err
		}

	case "fault":
		if len(args) < 3 {
			return usagef("twin fault requires a path pattern and a status code")
		}
		status, convErr := strconv.Atoi(args[2])
		if convErr != nil {
			return usagef("twin fault: invalid status %q", args[2])
		}
		if out, err = ac.InjectFault(args[1], status); err != nil {
			return err
		}

	case "complete":
		if len(args) < 2 {
			return usagef("twin complete requires a gateway order id")
		}
		if out, err = ac.CompleteGateway(args[1]); err != nil {
			return err
		}

	default:
		return usagef("unknown twin subcommand %q", args[0])
	}

	fmt.Fprintln(a.out, prettyJSON(out))
	return nil
}

// prettyJSON indents raw when it is JSON and returns it unchanged otherwise.
func prettyJSON(raw string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return buf.String()
}

// ---------------------------------------------------------------------------
// shell
// ---------------------------------------------------------------------------

// cmdShell runs commands on one long-lived session until EOF or "exit".
// The admin probe started at login keeps running between commands.
func (a *app) cmdShell(ctx context.Context) error {
	fmt.Fprintf(a.errOut, "shopctl %s shell. Type \"help\" for commands, \"exit\" to quit.\n", version)
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := a.readLine(a.prompt())
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(a.errOut)
			return nil
		}
		if err != nil {
			return err
		}

		fields, err := splitLine(line)
		if err != nil {
			fmt.Fprintf(a.errOut, "error: %v\n", err)
			continue
		}
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "exit", "quit":
			return nil
		case "help":
			printUsage()
			continue
		case "shell", "mcp":
			fmt.Fprintf(a.errOut, "error: %s is not available inside the shell\n", fields[0])
			continue
		}

		if err := a.run(ctx, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(a.errOut, "error: %v\n", err)
		}
	}
}

func (a *app) prompt() string {
	snap := a.session.Snapshot()
	switch {
	case !snap.HasToken():
		return "shop> "
	case snap.IsAdmin:
		return snap.Email + " (admin)> "
	default:
		return snap.Email + "> "
	}
}

// splitLine splits a shell line into fields, honoring single and double
// quotes and backslash escapes outside single quotes.
func splitLine(line string) ([]string, error) {
	var (
		fields  []string
		cur     strings.Builder
		inField bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped, inField = true, true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote, inField = r, true
		case r == ' ' || r == '\t':
			if inField {
				fields = append(fields, cur.String())
				cur.Reset()
				inField = false
			}
		default:
			cur.WriteRune(r)
			inField = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inField {
		fields = append(fields, cur.String())
	}
	return fields, nil
}

// ---------------------------------------------------------------------------
// mcp
// ---------------------------------------------------------------------------

func (a *app) cmdMcp(ctx context.Context) error {
	return mcp.NewServer(a.console, a.session, a.logger, a.in, a.out).Serve(ctx)
}
