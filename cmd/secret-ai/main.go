// Command secret-ai is a small operator CLI for the Secret AI SDK.
//
// Usage:
//
//	secret-ai [--config <file>] [--profile secret|claive] [--debug] [--json] <command>
//
// Commands:
//
//	models                                   – list registered models
//	urls [--model <m>]                       – list worker URLs
//	chat --prompt <p> [--model <m>] [--stream] – send one prompt
//	keygen                                   – derive a hex key from a mnemonic on stdin
//	voice health                             – check the STT and TTS services
//	version                                  – print CLI version
//
// Settings come from the YAML file given by --config, overlaid by the
// profile's environment variables (SECRET_AI_* or CLAIVE_AI_*).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/scrtlabs/secret-ai-sdk-go/pkg/chat"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/config"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/sdk"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/secret"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// version is set via -ldflags at build time.
var version = "0.1.0"

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	profile    string
	debug      bool
	json       bool

	// lookup resolves environment variables; tests replace it.
	lookup config.LookupFunc
	// opts are passed to sdk.New; tests inject a static registry.
	opts []sdk.Option
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := buildRoot(&globals{lookup: os.LookupEnv}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func buildRoot(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:          "secret-ai",
		Short:        "Secret AI SDK command line",
		Long:         "Discover confidential AI workers on Secret Network and talk to them.",
		SilenceUsage: true,
	}

	g.bindFlags(root.PersistentFlags())
	root.AddCommand(
		buildModelsCmd(g),
		buildURLsCmd(g),
		buildChatCmd(g),
		buildKeygenCmd(),
		buildVoiceCmd(g),
		buildVersionCmd(g),
	)
	return root
}

func (g *globals) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&g.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&g.profile, "profile", "", "Environment profile: secret or claive (default: file setting, then secret)")
	fs.BoolVar(&g.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&g.json, "json", false, "Output in JSON format")
}

// loadConfig reads --config (if any) and overlays the environment.
func (g *globals) loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if g.configPath != "" {
		var err error
		if cfg, err = config.Load(g.configPath); err != nil {
			return nil, err
		}
	}

	profile := config.Profile(g.profile)
	if profile == "" {
		profile = cfg.Profile
	}
	env, err := config.FromEnv(profile, g.lookup)
	if err != nil {
		return nil, err
	}
	cfg.Merge(env)
	if g.debug {
		cfg.Debug = config.Bool(true)
	}
	return cfg, nil
}

func (g *globals) newSDK() (*sdk.Core, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return sdk.New(cfg, g.opts...)
}

// ── models / urls ─────────────────────────────────────────────────────────────

func buildModelsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models registered on the network",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.newSDK()
			if err != nil {
				return err
			}
			defer s.Close()

			models, err := s.Models(cmd.Context())
			if err != nil {
				return err
			}
			return g.printList(cmd.OutOrStdout(), "MODEL", models)
		},
	}
}

func buildURLsCmd(g *globals) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "urls",
		Short: "List worker URLs, optionally for one model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.newSDK()
			if err != nil {
				return err
			}
			defer s.Close()

			urls, err := s.URLs(cmd.Context(), model)
			if err != nil {
				return err
			}
			return g.printList(cmd.OutOrStdout(), "URL", urls)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Only list workers serving this model")
	return cmd
}

func (g *globals) printList(w io.Writer, header string, items []string) error {
	if g.json {
		if items == nil {
			items = []string{}
		}
		return printJSON(w, items)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, it := range items {
		fmt.Fprintln(tw, it)
	}
	return tw.Flush()
}

// ── chat ──────────────────────────────────────────────────────────────────────

func buildChatCmd(g *globals) *cobra.Command {
	var (
		model  string
		prompt string
		system string
		stream bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send a prompt to a worker and print the answer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.newSDK()
			if err != nil {
				return err
			}
			defer s.Close()

			c, err := s.NewChatClient(cmd.Context(), model)
			if err != nil {
				return err
			}

			var msgs []chat.Message
			if system != "" {
				msgs = append(msgs, chat.System(system))
			}
			msgs = append(msgs, chat.User(prompt))

			out := cmd.OutOrStdout()
			if stream {
				_, err := c.Stream(cmd.Context(), model, msgs, nil, func(delta string) error {
					_, err := io.WriteString(out, delta)
					return err
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out)
				return err
			}

			resp, err := c.Chat(cmd.Context(), model, msgs, nil)
			if err != nil {
				return err
			}
			if g.json {
				return printJSON(out, resp)
			}
			_, err = fmt.Fprintln(out, resp.Content)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&model, "model", "", "Model name (default: configured model)")
	f.StringVar(&prompt, "prompt", "", "User prompt")
	f.StringVar(&system, "system", "", "Optional system prompt")
	f.BoolVar(&stream, "stream", false, "Print the answer as it is generated")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

// ── keygen ────────────────────────────────────────────────────────────────────

func buildKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Derive the hex private key of a mnemonic read from stdin",
		Long: "Reads a BIP39 mnemonic from stdin and prints the secp256k1 key at " +
			secret.HDPath + ".",
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("read mnemonic: %w", err)
			}
			key, err := secret.PrivateKeyFromMnemonic(strings.TrimSpace(line))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
			return err
		},
	}
}

// ── voice ─────────────────────────────────────────────────────────────────────

func buildVoiceCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Speech service commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check the STT and TTS services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.newSDK()
			if err != nil {
				return err
			}
			defer s.Close()

			v, err := s.NewVoiceClient()
			if err != nil {
				return err
			}
			stt, err := v.STTHealth(cmd.Context())
			if err != nil {
				return fmt.Errorf("stt: %w", err)
			}
			tts, err := v.TTSHealth(cmd.Context())
			if err != nil {
				return fmt.Errorf("tts: %w", err)
			}
			if g.json {
				return printJSON(cmd.OutOrStdout(), map[string]any{"stt": stt, "tts": tts})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stt: %v\ntts: %v\n", stt["status"], tts["status"])
			return nil
		},
	})
	return cmd
}

// ── version ───────────────────────────────────────────────────────────────────

func buildVersionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.json {
				return printJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "secret-ai %s\n", version)
			return err
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
