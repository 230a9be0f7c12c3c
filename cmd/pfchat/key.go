package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/folioscope/portfolio-chat/internal/vault"
)

var stdin io.Reader = os.Stdin

type keyCmd struct{}

func (*keyCmd) Name() string     { return "key" }
func (*keyCmd) Synopsis() string { return "manage the stored model API key" }
func (*keyCmd) Usage() string {
	return `pfchat key status | set [<key>] | clear

  status  shows whether a key is stored and when it expires.
  set     validates and stores a key, read from stdin when omitted.
  clear   removes the stored key.
`
}
func (*keyCmd) SetFlags(*flag.FlagSet) {}

func (*keyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "key requires an action: status, set or clear")
		return subcommands.ExitUsageError
	}
	action := f.Arg(0)
	switch action {
	case "status", "set", "clear":
	default:
		fmt.Fprintf(os.Stderr, "unknown key action %q\n", action)
		return subcommands.ExitUsageError
	}
	return withSession(ctx, func(s *session) error {
		switch action {
		case "set":
			raw := f.Arg(1)
			if raw == "" {
				line, err := bufio.NewReader(stdin).ReadString('\n')
				if err != nil && err != io.EOF {
					return err
				}
				raw = line
			}
			raw = strings.TrimSpace(raw)
			if err := vault.ValidateFormat(raw); err != nil {
				return err
			}
			if err := s.vault.Save(ctx, raw); err != nil {
				return err
			}
		case "clear":
			if err := s.vault.Invalidate(ctx); err != nil {
				return err
			}
		}
		printStatus(s.vault.Status(ctx))
		return nil
	})
}

func printStatus(status vault.Status) {
	if !status.Present {
		fmt.Fprintln(stdout, "No API key stored.")
		return
	}
	fmt.Fprintf(stdout, "API key %s stored, expires %s\n", status.Hint, status.ExpiresAt)
}
