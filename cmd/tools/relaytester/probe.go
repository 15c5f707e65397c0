package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/persona"
	"github.com/zhouzirui/mentor-relay/backend/internal/service/ai"
)

func newProbeCmd() *cobra.Command {
	var (
		prompt    string
		personaID string
		stream    bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the configured AI provider and optionally ask it something",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			gen, err := ai.NewGenerator(ctx, cfg.AI)
			if err != nil {
				return err
			}
			svc := ai.NewService(gen, ai.Options{Streaming: stream, Timeout: timeout})

			out := cmd.OutOrStdout()
			status := svc.Status(ctx)
			fmt.Fprintf(out, "provider: %s ready: %t\n", status.Provider, status.Ready)
			if !status.Ready {
				return fmt.Errorf("provider not ready: %s", status.Error)
			}
			if prompt == "" {
				return nil
			}

			p, ok := persona.NewMemoryStore(persona.Seed()).Resolve(personaID)
			if !ok {
				return fmt.Errorf("unknown persona %q", personaID)
			}
			transcript := []chat.Message{chat.NewMessage(chat.SenderUser, prompt)}

			start := time.Now()
			reply, err := svc.StreamReply(ctx, transcript, p.Instruction, func(chunk string) error {
				_, err := fmt.Fprint(out, chunk)
				return err
			})
			fmt.Fprintln(out)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "(%d chars in %s)\n", len(reply), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "prompt to send after the readiness check")
	cmd.Flags().StringVar(&personaID, "persona", "", "persona whose instruction is used")
	cmd.Flags().BoolVar(&stream, "stream", true, "stream the reply")
	cmd.Flags().DurationVar(&timeout, "timeout", 45*time.Second, "overall request timeout")
	return cmd
}
