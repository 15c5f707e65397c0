package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	speechmodel "github.com/zhouzirui/mentor-relay/backend/internal/model/speech"
	"github.com/zhouzirui/mentor-relay/backend/internal/service/speech"
)

func newSpeakCmd() *cobra.Command {
	var (
		outPath  string
		voice    string
		language string
		format   string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Synthesize text with the configured TTS service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			capability := speech.Detect(cfg.Speech)
			synth, ok := capability.Synthesizer()
			if !ok {
				if u, isUnavailable := capability.(speech.Unavailable); isUnavailable {
					return fmt.Errorf("speech unavailable: %s", u.Reason)
				}
				return fmt.Errorf("speech unavailable")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			resp, err := synth.Synthesize(ctx, speechmodel.TTSRequest{
				SessionID: fmt.Sprintf("manual-%d", start.UnixNano()),
				Text:      args[0],
				Voice:     voice,
				Language:  language,
				Format:    format,
			})
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = fmt.Sprintf("tts-%d.%s", start.Unix(), resp.Format)
			}
			if err := os.WriteFile(outPath, resp.AudioData, 0o644); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes of %s to %s in %s\n",
				len(resp.AudioData), resp.Format, outPath, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default tts-<unix>.<format>)")
	cmd.Flags().StringVar(&voice, "voice", "", "voice id, defaults to SPEECH_VOICE")
	cmd.Flags().StringVar(&language, "lang", "", "language code, defaults to SPEECH_LANGUAGE")
	cmd.Flags().StringVar(&format, "format", "mp3", "audio encoding")
	cmd.Flags().DurationVar(&timeout, "timeout", 45*time.Second, "request timeout")
	return cmd
}
