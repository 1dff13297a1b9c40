package main

import (
	"fmt"
	"log/slog"
	"sort"
	"text/tabwriter"

	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin"
	"github.com/spf13/cobra"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Inspect providers and fetch their model files",
}

var pluginListCmd = &cobra.Command{
	Use:   "list [kind]",
	Short: "List registered providers",
	Long: `List every registered provider, or only those of one kind.
Kinds: stt, tts, llm, vad`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := ""
		if len(args) > 0 {
			kind = args[0]
		}

		plugins := plugin.List(kind)
		if len(plugins) == 0 {
			return fmt.Errorf("no providers registered for kind %q", kind)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tNAME\tVERSION\tDESCRIPTION")
		for _, p := range plugins {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Kind, p.Name, or(p.Version, "-"), p.Description)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			for _, p := range plugins {
				printOptions(cmd, p)
			}
		}
		return nil
	},
}

func printOptions(cmd *cobra.Command, p *plugin.Plugin) {
	if len(p.Config) == 0 {
		return
	}
	keys := make([]string, 0, len(p.Config))
	for k := range p.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s/%s options:\n", p.Kind, p.Name)
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-18s %v\n", k, p.Config[k])
	}
}

var pluginDownloadCmd = &cobra.Command{
	Use:   "download [kind name]",
	Short: "Download model files for one provider, or for all that need them",
	Args:  kindAndName,
	RunE: func(cmd *cobra.Command, args []string) error {
		var targets []*plugin.Plugin
		if len(args) == 2 {
			p, ok := plugin.Lookup(args[0], args[1])
			if !ok {
				return &plugin.NotFoundError{Kind: args[0], Name: args[1]}
			}
			if p.Downloader == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s has no model files\n", p.Kind, p.Name)
				return nil
			}
			targets = append(targets, p)
		} else {
			for _, p := range plugin.List("") {
				if p.Downloader != nil {
					targets = append(targets, p)
				}
			}
		}

		var failed int
		for _, p := range targets {
			log := cur.logger.With(slog.String("kind", p.Kind), slog.String("name", p.Name))
			log.Info("downloading model files")
			if err := p.Downloader.Download(); err != nil {
				log.Error("download failed", slog.Any("error", err))
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s ready\n", p.Kind, p.Name)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d downloads failed", failed, len(targets))
		}
		return nil
	},
}

func kindAndName(_ *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 2 {
		return fmt.Errorf("give both kind and name, or neither")
	}
	return nil
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func init() {
	pluginListCmd.Flags().BoolP("verbose", "v", false, "also print each provider's options")
	pluginCmd.AddCommand(pluginListCmd, pluginDownloadCmd)
}
