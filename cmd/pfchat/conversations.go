package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type newCmd struct{}

func (*newCmd) Name() string             { return "new" }
func (*newCmd) Synopsis() string         { return "start a new conversation" }
func (*newCmd) Usage() string            { return "pfchat new\n" }
func (*newCmd) SetFlags(*flag.FlagSet) {}

func (*newCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withSession(ctx, func(s *session) error {
		fmt.Fprintln(stdout, s.engine.Create(ctx))
		return nil
	})
}

type listCmd struct{}

func (*listCmd) Name() string             { return "list" }
func (*listCmd) Synopsis() string         { return "list conversations, newest first" }
func (*listCmd) Usage() string            { return "pfchat list\n" }
func (*listCmd) SetFlags(*flag.FlagSet) {}

func (*listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withSession(ctx, func(s *session) error {
		active := s.engine.Active()
		for _, summary := range s.engine.Conversations() {
			marker := " "
			if summary.ID == active {
				marker = "*"
			}
			fmt.Fprintf(stdout, "%s %s  %s\n", marker, summary.ID, summary.Title)
		}
		return nil
	})
}

type switchCmd struct{}

func (*switchCmd) Name() string             { return "switch" }
func (*switchCmd) Synopsis() string         { return "make a conversation the active one" }
func (*switchCmd) Usage() string            { return "pfchat switch <conversation-id>\n" }
func (*switchCmd) SetFlags(*flag.FlagSet) {}

func (*switchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "switch requires exactly one conversation id")
		return subcommands.ExitUsageError
	}
	return withSession(ctx, func(s *session) error {
		return s.engine.Switch(ctx, f.Arg(0))
	})
}

type deleteCmd struct{}

func (*deleteCmd) Name() string             { return "delete" }
func (*deleteCmd) Synopsis() string         { return "delete a conversation" }
func (*deleteCmd) Usage() string            { return "pfchat delete <conversation-id>\n" }
func (*deleteCmd) SetFlags(*flag.FlagSet) {}

func (*deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "delete requires exactly one conversation id")
		return subcommands.ExitUsageError
	}
	return withSession(ctx, func(s *session) error {
		active, err := s.engine.Delete(ctx, f.Arg(0))
		if err != nil {
			return err
		}
		if active != "" {
			fmt.Fprintf(stdout, "Active conversation: %s\n", active)
		}
		return nil
	})
}
