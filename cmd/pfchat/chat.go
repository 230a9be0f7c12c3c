package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/folioscope/portfolio-chat/internal/chat"
)

type sendCmd struct {
	submit bool
}

func (*sendCmd) Name() string     { return "send" }
func (*sendCmd) Synopsis() string { return "send a message to the active conversation" }
func (*sendCmd) Usage() string {
	return `pfchat send [-submit] <message...>

  Appends the message to the active conversation (creating one if needed),
  asks the model and prints its answer. When the answer carries a portfolio
  it becomes the draft; -submit sends that draft to the portfolio API.
`
}

func (c *sendCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.submit, "submit", false, "Submit the extracted portfolio right away.")
}

func (c *sendCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	text := strings.Join(f.Args(), " ")
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(os.Stderr, chat.ErrEmptyMessage)
		return subcommands.ExitUsageError
	}
	return withSession(ctx, func(s *session) error {
		result, err := s.engine.Send(ctx, text)
		if err != nil {
			return err
		}
		if result.Reply != "" {
			display(result.Reply)
		}
		if result.Notice != "" {
			fmt.Fprintln(stdout, result.Notice)
		}
		if result.Draft == nil {
			return nil
		}
		display(portfolioMarkdown(*result.Draft))
		if !c.submit {
			fmt.Fprintln(stdout, "Run `pfchat submit` to create this portfolio.")
			return nil
		}
		record, err := s.engine.SubmitDraft(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Created portfolio %s\n", record.ID)
		return nil
	})
}

type historyCmd struct{}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "print the messages of a conversation" }
func (*historyCmd) Usage() string {
	return `pfchat history [<conversation-id>]

  Prints every message of the given conversation, or of the active one.
`
}
func (*historyCmd) SetFlags(*flag.FlagSet) {}

func (*historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withSession(ctx, func(s *session) error {
		id := s.engine.Active()
		if f.NArg() > 0 {
			id = f.Arg(0)
		}
		if id == "" {
			fmt.Fprintln(stdout, "No active conversation.")
			return nil
		}
		conv, err := s.engine.Conversation(id)
		if err != nil {
			return err
		}
		for _, msg := range conv.Messages {
			switch msg.Role {
			case chat.RoleAssistant:
				fmt.Fprintln(stdout, "assistant:")
				display(msg.Content)
			default:
				fmt.Fprintf(stdout, "%s: %s\n", msg.Role, msg.Content)
			}
		}
		return nil
	})
}
