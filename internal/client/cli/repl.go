package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives.
type execIface interface {
	hasKey() bool
	Unlock(ctx context.Context) error
	Hash(ctx context.Context, args []string) error
	Upload(ctx context.Context, args []string) error
	Fetch(ctx context.Context, args []string) error
	Publish(ctx context.Context, args []string) error
	Sign(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Check(ctx context.Context, args []string) error
	Finalize(ctx context.Context, args []string) error
	Ping(ctx context.Context) error
}

const helpText = `Available commands:
  key                     load a wallet private key
  hash <file>             print the content hash of a local file
  upload <file>           store a file on the server
  fetch <hash>            download a stored document
  publish [hash]          publish a document for signing
  sign [id|hash]          approve a document
  status <id>             show a document
  check <hash>            look a document up by content hash
  finalize <id>           anchor a complete document on chain
  ping                    check the server
  exit | quit`

// runREPL reads commands from reader until EOF or exit. Commands prompt
// through the same reader, so no input is buffered away from them. Command
// errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("docattest %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		err = nil
		switch cmd {
		case "help", "?":
			printlnFn(helpText)
			if !a.hasKey() {
				printlnFn("No key loaded: run key before publishing or signing wallet documents.")
			}

		case "key":
			err = a.Unlock(ctx)

		case "hash":
			err = a.Hash(ctx, args)

		case "upload":
			err = a.Upload(ctx, args)

		case "fetch":
			err = a.Fetch(ctx, args)

		case "publish":
			err = a.Publish(ctx, args)

		case "sign":
			err = a.Sign(ctx, args)

		case "status":
			err = a.Status(ctx, args)

		case "check":
			err = a.Check(ctx, args)

		case "finalize":
			err = a.Finalize(ctx, args)

		case "ping":
			err = a.Ping(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("error:", err)
		}
	}
}
