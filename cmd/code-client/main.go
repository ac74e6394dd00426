// code-client joins a room from the terminal. Lines read from stdin are
// collected into a document; a line holding a single "." replaces the shared
// buffer with that document.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"codesync-backend/internal/client"
	"codesync-backend/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("code-client", pflag.ContinueOnError)
	server := flagSet.String("server", "ws://localhost:83/api/ws/v1/session", "session endpoint")
	room := flagSet.String("room", "", "room to join")
	name := flagSet.String("name", "", "display name")
	file := flagSet.String("file", "", "file whose contents seed the buffer")
	logLevel := flagSet.String("log-level", "warn", "debug, info, warn or error")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if *room == "" {
		return fmt.Errorf("--room is required")
	}
	logger.Setup(*logLevel, "text")

	var initial string
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			return fmt.Errorf("read %s: %w", *file, err)
		}
		initial = string(data)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := client.Dial(ctx, client.Config{
		ServerURL:      *server,
		RoomID:         *room,
		DisplayName:    *name,
		InitialContent: initial,
		OnEvent:        printEvent,
	})
	if err != nil {
		return err
	}
	fmt.Printf("connected as %s\n", session.ID())

	go readEdits(ctx, session)

	return session.Run(ctx)
}

func readEdits(ctx context.Context, session *client.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var doc strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if line != "." {
			doc.WriteString(line)
			doc.WriteByte('\n')
			continue
		}
		if err := session.Edit(doc.String()); err != nil {
			return
		}
		doc.Reset()
		if ctx.Err() != nil {
			return
		}
	}
}

func printEvent(ev client.Event) {
	switch ev.Kind {
	case client.EventRoster:
		names := make([]string, 0, len(ev.Roster))
		for _, p := range ev.Roster {
			names = append(names, displayName(p.DisplayName, p.ConnectionID))
		}
		fmt.Printf("* in room: %s\n", strings.Join(names, ", "))
	case client.EventJoined:
		fmt.Printf("* %s joined\n", displayName(ev.Participant.DisplayName, ev.Participant.ConnectionID))
	case client.EventLeft:
		fmt.Printf("* %s left\n", displayName(ev.Participant.DisplayName, ev.Participant.ConnectionID))
	case client.EventContent:
		fmt.Printf("--- buffer ---\n%s\n--------------\n", ev.Content)
	case client.EventExecution:
		run := ev.Execution.Run
		fmt.Printf("--- %s %s ---\n%s", ev.Execution.Language, ev.Execution.Version, run.Output)
		if run.Code != nil {
			fmt.Printf("(exit %d)\n", *run.Code)
		} else if run.Signal != nil {
			fmt.Printf("(signal %s)\n", *run.Signal)
		}
	case client.EventError:
		fmt.Fprintf(os.Stderr, "! %s\n", ev.Message)
	}
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
