package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
	"github.com/zhouzirui/mentor-relay/backend/internal/service/ai"
)

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [transcript.json]",
		Short: "Show the request a transcript turns into",
		Long: `Reads a JSON array of {"id","text","sender"} messages from the file, or
stdin when no file is given, and prints the repaired turn sequence or the
single-shot prompt that would be sent upstream.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			var messages []chat.Message
			if err := json.NewDecoder(in).Decode(&messages); err != nil {
				return fmt.Errorf("decode transcript: %w", err)
			}

			plan, err := ai.Normalize(messages)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if plan.SingleShot {
				fmt.Fprintf(out, "single-shot prompt: %q\n", plan.Prompt)
				return nil
			}
			fmt.Fprintf(out, "%d of %d turns kept\n", len(plan.Contents), len(messages))
			for i, c := range plan.Contents {
				fmt.Fprintf(out, "%2d %-5s %s\n", i, c.Role, c.Text())
			}
			return nil
		},
	}
}
