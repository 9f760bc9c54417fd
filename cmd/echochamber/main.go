// EchoChamber CLI - terminal chat client for an EchoChamber server
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kenmaaa05/EchoChamber/clients/go/echochamber"
	"github.com/Kenmaaa05/EchoChamber/internal/session"
	"github.com/Kenmaaa05/EchoChamber/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	baseURL := os.Getenv("ECHOCHAMBER_URL")
	if baseURL == "" {
		baseURL = echochamber.DefaultURL
	}

	logger, closeLog := newLogger(os.Getenv("ECHOCHAMBER_LOG"))
	defer closeLog()

	client := echochamber.NewClient(baseURL, echochamber.WithLogger(logger))

	cmd, args := "chat", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "chat":
		fs := flag.NewFlagSet("chat", flag.ExitOnError)
		name := fs.String("name", "", "display name")
		_ = fs.Parse(args)

		err := tui.Run(ctx, resolveName(*name, os.Stdin, os.Stdout), client, logger)
		exitOnError(err)

	case "read":
		msgs, err := client.Messages(ctx)
		exitOnError(err)
		for _, msg := range msgs {
			ts := time.UnixMilli(msg.Timestamp).Format("2006-01-02 15:04:05")
			fmt.Printf("[%s] %s: %s\n", ts, msg.Author, msg.Text)
		}

	case "post":
		fs := flag.NewFlagSet("post", flag.ExitOnError)
		name := fs.String("name", "", "display name")
		_ = fs.Parse(args)
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "Usage: echochamber post [--name <name>] <message>")
			os.Exit(1)
		}
		author := resolveName(*name, os.Stdin, os.Stdout)
		msg, err := client.Insert(ctx, author, strings.Join(fs.Args(), " "))
		exitOnError(err)
		fmt.Printf("Posted: %s\n", msg.ID)

	case "clear":
		deleted, err := client.DeleteAll(ctx)
		exitOnError(err)
		fmt.Printf("Wiped %d messages\n", deleted)

	case "health":
		resp, err := client.Health(ctx)
		exitOnError(err)
		printJSON(resp)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

// resolveName picks the display name from the flag, then the environment,
// then one prompt on stdin. session.New turns a blank answer into the default.
func resolveName(flagName string, in io.Reader, out io.Writer) string {
	if name := strings.TrimSpace(flagName); name != "" {
		return name
	}
	if name := strings.TrimSpace(os.Getenv("ECHOCHAMBER_NAME")); name != "" {
		return name
	}

	fmt.Fprintf(out, "Your name (blank for %s): ", session.DefaultName)
	line, _ := bufio.NewReader(in).ReadString('\n')
	if name := strings.TrimSpace(line); name != "" {
		return name
	}
	return session.DefaultName
}

// newLogger writes to path, or nowhere. The chat screen owns the terminal.
func newLogger(path string) (zerolog.Logger, func()) {
	if path == "" {
		return zerolog.Nop(), func() {}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: cannot open log file:", err)
		os.Exit(1)
	}
	logger := zerolog.New(f).With().Timestamp().Str("app", "echochamber").Logger()
	return logger, func() { f.Close() }
}

func usage() {
	fmt.Println(`EchoChamber CLI - realtime terminal chat

Usage: echochamber [command] [options]

Commands:
  chat [--name <name>]            Open the chat screen (default)
  read                            Print every message
  post [--name <name>] <message>  Post a message
  clear                           Wipe every message for everyone
  health                          Check server health

In chat, try: hi, magic, the hell?

Environment:
  ECHOCHAMBER_URL    Server URL (default: http://localhost:8080)
  ECHOCHAMBER_NAME   Display name
  ECHOCHAMBER_LOG    Log file (default: no logging)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
