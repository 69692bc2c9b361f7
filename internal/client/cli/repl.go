package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Add(ctx context.Context, paths []string) error
	List(ctx context.Context) error
	Pending(ctx context.Context) error
	Delete(ctx context.Context, ids []string) error
	Clear(ctx context.Context) error
	Sync(ctx context.Context) error
	Progress(ctx context.Context, args []string) error
	Stats(ctx context.Context) error
	Quota(ctx context.Context) error
	Status(ctx context.Context) error
}

const helpText = `Available commands:
  add <path>...     stage files for upload
  list              list all staged files
  pending           list files not uploaded yet
  delete <id>...    remove staged files
  clear             remove every uploaded file
  sync              upload pending files now
  progress [clear]  show or reset upload progress
  stats             storage and upload counters
  quota             local storage usage
  status            connection state
  exit | quit       leave the program`

// runREPL reads one command per line from reader and dispatches it to a. It
// returns on EOF, on "exit"/"quit" or when ctx is done.
//
// Handler errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}

		fmt.Fprintf(w, "offsync %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			fmt.Fprintln(w)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help", "?":
			fmt.Fprintln(w, helpText)
		case "add":
			cmdErr = a.Add(ctx, args)
		case "l", "list":
			cmdErr = a.List(ctx)
		case "pending":
			cmdErr = a.Pending(ctx)
		case "delete", "rm":
			cmdErr = a.Delete(ctx, args)
		case "clear":
			cmdErr = a.Clear(ctx)
		case "sync":
			cmdErr = a.Sync(ctx)
		case "progress":
			cmdErr = a.Progress(ctx, args)
		case "stats":
			cmdErr = a.Stats(ctx)
		case "quota":
			cmdErr = a.Quota(ctx)
		case "status":
			cmdErr = a.Status(ctx)
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			fmt.Fprintln(w, "error:", cmdErr)
		}
	}
}
