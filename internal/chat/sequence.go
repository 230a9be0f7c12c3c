package chat

// BuildSequence turns stored history plus the pending input into what a
// chat-completion call accepts: one system message, then user and assistant
// turns alternating and starting with user. Stored system messages are
// local notices and never sent. In a run of same-role turns the latest one
// replaces the earlier ones rather than being dropped, so the pending input
// always survives a failed earlier exchange.
func BuildSequence(history []Message, input string, system string) []Message {
	turns := make([]Message, 0, len(history)+1)
	for _, msg := range history {
		if msg.Role == RoleSystem {
			continue
		}
		turns = append(turns, msg)
	}
	if input != "" {
		if n := len(turns); n == 0 || turns[n-1].Role != RoleUser || turns[n-1].Content != input {
			turns = append(turns, Message{Role: RoleUser, Content: input})
		}
	}

	kept := make([]Message, 0, len(turns))
	for _, msg := range turns {
		if n := len(kept); n > 0 && kept[n-1].Role == msg.Role {
			// Later duplicates overwrite, they are not discarded.
			kept[n-1] = msg
			continue
		}
		kept = append(kept, msg)
	}
	for len(kept) > 0 && kept[0].Role != RoleUser {
		kept = kept[1:]
	}

	out := make([]Message, 0, len(kept)+1)
	if system != "" {
		out = append(out, Message{Role: RoleSystem, Content: system})
	}
	return append(out, kept...)
}
