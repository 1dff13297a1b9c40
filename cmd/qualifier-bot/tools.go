package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/config"
	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/session"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/stt"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/tts"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/ai/vad"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/audio/wav"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/job"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/rtc"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Talk to the bot in the terminal (text only)",
	Long: `console runs the selected bot against the configured language model.
Type one answer per line; end input with Ctrl-D.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner := cur.runner()
		q, defaults, err := runner.Qualify()
		if err != nil {
			return err
		}
		l, err := runner.Assembler.BuildLLM(q.Config.ResolveLLM(defaults))
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		j, err := job.New(ctx, job.Config{RoomName: "console"})
		if err != nil {
			return err
		}
		defer j.Shutdown("console closed")

		s := session.New(q, &session.Components{LLM: l, LLMConfig: q.Config.ResolveLLM(defaults)}, cur.logger)
		return s.Converse(ctx, j, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the environment and bot configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ValidateEnvironment(); err != nil {
			return err
		}
		types, err := cur.store.BotTypes()
		if err != nil {
			return err
		}
		if _, err := cur.dispatcher.Dispatch(cur.settings.BotType); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config: %s\n", cur.store.Path())
		for _, t := range types {
			marker := " "
			if t == cur.settings.BotType {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, t)
		}
		return nil
	},
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the rendered instructions for the selected bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := cur.dispatcher.Dispatch(cur.settings.BotType)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), q.Instructions)
		return nil
	},
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe a WAV file with the configured speech-to-text provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		frames, info, err := wav.ReadFile(path)
		if err != nil {
			return err
		}
		cur.logger.Info("audio loaded",
			slog.String("file", path),
			slog.Int("sample_rate", info.SampleRate),
			slog.Int("channels", info.NumChannels),
			slog.Duration("duration", info.Duration),
			slog.Int("frames", len(frames)))
		if len(frames) == 0 {
			return fmt.Errorf("%s has no audio", path)
		}

		runner := cur.runner()
		q, defaults, err := runner.Qualify()
		if err != nil {
			return err
		}
		sttCfg := q.Config.ResolveSTT(defaults)
		recognizer, err := runner.Assembler.BuildSTT(sttCfg)
		if err != nil {
			return err
		}
		detector, err := runner.Assembler.BuildVAD(q.Config.ResolveVAD(defaults))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		go logSpeech(ctx, detector, frames)

		stream, err := recognizer.NewStream(ctx, stt.StreamConfig{
			Encoding:      stt.EncodingLinear16,
			SampleRate:    frames[0].SampleRate,
			NumChannels:   frames[0].NumChannels,
			Language:      sttCfg.Language,
			Model:         sttCfg.Model,
			EndpointingMS: sttCfg.EndpointingMS,
			SmartFormat:   true,
			FillerWords:   true,
		})
		if err != nil {
			return fmt.Errorf("open stt stream: %w", err)
		}

		go func() {
			for _, f := range frames {
				if err := stream.Push(f); err != nil {
					cur.logger.Error("push audio", slog.Any("error", err))
					break
				}
			}
			stream.CloseSend()
		}()

		out := cmd.OutOrStdout()
		for ev := range stream.Events() {
			switch ev.Type {
			case stt.SpeechEventFinal:
				fmt.Fprintln(out, ev.Text)
			case stt.SpeechEventError:
				return ev.Error
			}
		}
		return ctx.Err()
	},
}

// logSpeech reports where the detector hears speech in frames.
func logSpeech(ctx context.Context, detector vad.VAD, frames []rtc.AudioFrame) {
	in := make(chan rtc.AudioFrame, len(frames))
	for _, f := range frames {
		in <- f
	}
	close(in)

	events, err := detector.Detect(ctx, in)
	if err != nil {
		cur.logger.Warn("vad unavailable", slog.Any("error", err))
		return
	}
	for ev := range events {
		cur.logger.Info("vad", slog.String("event", ev.Type.String()), slog.Time("at", ev.Timestamp))
	}
}

var speakCmd = &cobra.Command{
	Use:   "speak",
	Short: "Synthesize the greeting, or --text, into a WAV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		out, _ := cmd.Flags().GetString("out")
		rate, _ := cmd.Flags().GetInt("sample-rate")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		runner := cur.runner()
		q, defaults, err := runner.Qualify()
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			text = q.Config.Greeting
		}
		ttsCfg := q.Config.ResolveTTS(defaults)
		voice, err := runner.Assembler.BuildTTS(ttsCfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		frames, err := voice.Synthesize(ctx, tts.SynthesizeRequest{Text: text, Voice: ttsCfg.VoiceID, Model: ttsCfg.Model, SampleRate: rate})
		if err != nil {
			return err
		}

		w, err := wav.Create(out, rate, 1)
		if err != nil {
			return err
		}
		for f := range frames {
			if err := w.WriteFrame(f); err != nil {
				w.Close()
				return err
			}
		}
		if err := w.Close(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("synthesis incomplete: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d frames to %s\n", w.Frames(), out)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a LiveKit join token for a test caller",
	RunE: func(cmd *cobra.Command, args []string) error {
		room, _ := cmd.Flags().GetString("room")
		identity, _ := cmd.Flags().GetString("identity")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if identity == "" {
			identity = "caller-" + uuid.NewString()[:8]
		}

		token, err := job.NewToken(os.Getenv("LIVEKIT_API_KEY"), os.Getenv("LIVEKIT_API_SECRET"), room, identity, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	transcribeCmd.Flags().String("file", "", "WAV file to transcribe")
	transcribeCmd.Flags().Duration("timeout", 2*time.Minute, "give up after this long")
	transcribeCmd.MarkFlagRequired("file")

	speakCmd.Flags().String("text", "", "text to speak, defaults to the bot greeting")
	speakCmd.Flags().String("out", "speech.wav", "output WAV file")
	speakCmd.Flags().Int("sample-rate", 16000, "output sample rate")
	speakCmd.Flags().Duration("timeout", time.Minute, "give up after this long")

	tokenCmd.Flags().String("room", "", "room to join")
	tokenCmd.Flags().String("identity", "", "participant identity, random when empty")
	tokenCmd.Flags().Duration("ttl", job.DefaultTokenTTL, "token lifetime")
	tokenCmd.MarkFlagRequired("room")
}
