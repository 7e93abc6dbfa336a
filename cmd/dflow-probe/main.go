// ABOUTME: Operator CLI that exercises a running dflow-mcp gateway over HTTP
// ABOUTME: Lists and calls tools, reads the SSE bootstrap, and speaks either envelope dialect

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

const banner = `
     _  __ _                                   _
  __| |/ _| | _____      __     _ __  _ __ ___ | |__   ___
 / _' | |_| |/ _ \ \ /\ / /____| '_ \| '__/ _ \| '_ \ / _ \
| (_| |  _| | (_) \ V  V /_____| |_) | | | (_) | |_) |  __/
 \__,_|_| |_|\___/ \_/\_/      | .__/|_|  \___/|_.__/ \___|
                               |_|
`

// errRPC marks a command whose gateway reply carried a JSON-RPC error.
var errRPC = errors.New("gateway returned an error")

func usage(w io.Writer) {
	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "Usage: dflow-probe [-config PATH] [-timeout D] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  tools                      List tools")
	fmt.Fprintln(w, "  call <tool> [key=value...] Invoke a tool")
	fmt.Fprintln(w, "  describe <tool>            Show one tool's schema")
	fmt.Fprintln(w, "  health                     RPC health check")
	fmt.Fprintln(w, "  info                       Server info and uptime")
	fmt.Fprintln(w, "  events                     Read the SSE bootstrap stream")
	fmt.Fprintln(w, "  connect [server_url]       Claude Desktop connectMCPServer handshake")
	fmt.Fprintln(w, "  models                     Claude Desktop getModels")
}

func main() {
	configPath := flag.String("config", getConfigPath(), "probe config file (TOML)")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Usage = func() { usage(os.Stderr) }
	flag.Parse()

	if flag.NArg() < 1 {
		usage(os.Stderr)
		os.Exit(1)
	}

	cfg, err := LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := newProbeClient(cfg, *timeout)
	if err := run(ctx, client, flag.Arg(0), flag.Args()[1:], os.Stdout); err != nil {
		if !errors.Is(err, errRPC) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, c *probeClient, command string, args []string, out io.Writer) error {
	switch command {
	case "tools":
		return runTools(ctx, c, out)
	case "call":
		if len(args) < 1 {
			return errors.New("usage: call <tool> [key=value...]")
		}
		arguments, err := parseArguments(args[1:])
		if err != nil {
			return err
		}
		return runCall(ctx, c, args[0], arguments, out)
	case "describe":
		if len(args) != 1 {
			return errors.New("usage: describe <tool>")
		}
		return runSimple(ctx, c, out, c.envelope(DialectStandard, "tools/describe", map[string]any{"name": args[0]}, nil))
	case "health":
		return runSimple(ctx, c, out, c.envelope(c.cfg.Probe.Dialect, "health", map[string]any{}, nil))
	case "info":
		return runSimple(ctx, c, out, c.envelope(DialectStandard, "server/info", map[string]any{}, nil))
	case "events":
		return runEvents(ctx, c, out)
	case "connect":
		var connectArgs []any
		if len(args) > 0 {
			connectArgs = []any{args[0]}
		}
		return runSimple(ctx, c, out, c.envelope(DialectClaude, "connectMCPServer", nil, connectArgs))
	case "models":
		return runSimple(ctx, c, out, c.envelope(DialectClaude, "getModels", nil, nil))
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// parseArguments turns key=value pairs into tool arguments.
// Values that parse as JSON keep their type; anything else is a string.
func parseArguments(pairs []string) (map[string]any, error) {
	arguments := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		arguments[key] = value
	}
	return arguments, nil
}

// exchange performs one RPC and prints any error it carries.
func exchange(ctx context.Context, c *probeClient, out io.Writer, body map[string]any) (*rpcReply, error) {
	reply, status, err := c.call(ctx, body)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		color.New(color.FgHiBlack).Fprintf(out, "HTTP %d, empty body\n", status)
		return nil, nil
	}
	if reply.Error != nil {
		printRPCError(out, status, reply.Error.Code, reply.Error.Message, reply.Error.Data)
		return nil, errRPC
	}
	return reply, nil
}

func printRPCError(out io.Writer, status, code int, message string, data any) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(out, "error %d", code)
	fmt.Fprintf(out, ": %s ", message)
	color.New(color.FgHiBlack).Fprintf(out, "(HTTP %d)\n", status)
	if data != nil {
		if pretty, err := json.MarshalIndent(data, "", "  "); err == nil {
			fmt.Fprintln(out, string(pretty))
		}
	}
}

func printJSON(out io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("formatting result: %w", err)
	}
	fmt.Fprintln(out, buf.String())
	return nil
}

func runSimple(ctx context.Context, c *probeClient, out io.Writer, body map[string]any) error {
	reply, err := exchange(ctx, c, out, body)
	if err != nil || reply == nil {
		return err
	}
	return printJSON(out, reply.Result)
}

type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func runTools(ctx context.Context, c *probeClient, out io.Writer) error {
	var body map[string]any
	if c.cfg.Probe.Dialect == DialectClaude {
		body = c.envelope(DialectClaude, "connectMCPServer", nil, nil)
	} else {
		body = c.envelope(DialectStandard, "tools/list", map[string]any{}, nil)
	}

	reply, err := exchange(ctx, c, out, body)
	if err != nil || reply == nil {
		return err
	}

	var result struct {
		Tools []toolSummary `json:"tools"`
	}
	if err := json.Unmarshal(reply.Result, &result); err != nil {
		return fmt.Errorf("decoding tools: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, t := range result.Tools {
		fmt.Fprintf(tw, "%s\t%s\n", color.CyanString(t.Name), t.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	color.New(color.FgHiBlack).Fprintf(out, "%d tools\n", len(result.Tools))
	return nil
}

func runCall(ctx context.Context, c *probeClient, tool string, arguments map[string]any, out io.Writer) error {
	body := c.envelope(DialectStandard, "tools/call", map[string]any{"name": tool, "arguments": arguments}, nil)
	start := time.Now()
	reply, err := exchange(ctx, c, out, body)
	if err != nil || reply == nil {
		return err
	}

	result, err := mcpgo.ParseCallToolResult(&reply.Result)
	if err != nil {
		return fmt.Errorf("decoding tool result: %w", err)
	}

	for _, content := range result.Content {
		if text, ok := mcpgo.AsTextContent(content); ok {
			fmt.Fprintln(out, text.Text)
		}
	}
	if result.IsError {
		color.New(color.FgRed).Fprintln(out, "tool reported an error")
		return errRPC
	}
	color.New(color.FgHiBlack).Fprintf(out, "%s in %s\n", tool, time.Since(start).Round(time.Millisecond))
	return nil
}

func runEvents(ctx context.Context, c *probeClient, out io.Writer) error {
	frames, err := c.events(ctx)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen, color.Bold)
	gray := color.New(color.FgHiBlack)
	for _, f := range frames {
		green.Fprint(out, f.Event)
		if f.ID != "" {
			gray.Fprintf(out, " #%s", f.ID)
		}
		fmt.Fprintln(out)

		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(f.Data), "  ", "  "); err != nil {
			fmt.Fprintf(out, "  %s\n", f.Data)
			continue
		}
		fmt.Fprintf(out, "  %s\n", buf.String())
	}
	return nil
}
