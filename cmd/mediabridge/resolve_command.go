package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slipstream/mediabridge/internal/metadata"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve one title and print the result",
	}

	var output string
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "Output format: json or table")

	cmd.AddCommand(&cobra.Command{
		Use:   "movie <tmdb-id>",
		Short: "Resolve a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, ctx, output, metadata.Request{MediaID: args[0], Kind: metadata.KindMovie})
		},
	})

	var season, episode int
	tvCmd := &cobra.Command{
		Use:   "tv <tmdb-id>",
		Short: "Resolve a series, or one episode with --season and --episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, ctx, output, metadata.Request{
				MediaID: args[0],
				Kind:    metadata.KindTV,
				Season:  season,
				Episode: episode,
			})
		},
	}
	tvCmd.Flags().IntVarP(&season, "season", "s", 0, "Season number")
	tvCmd.Flags().IntVarP(&episode, "episode", "e", 0, "Episode number")
	cmd.AddCommand(tvCmd)

	return cmd
}

func runResolve(cmd *cobra.Command, ctx *commandContext, output string, req metadata.Request) error {
	if output != "json" && output != "table" {
		return fmt.Errorf("unknown output format %q", output)
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg, cmd.ErrOrStderr())
	defer log.Close()

	svc := metadata.NewService(cfg, newExecutor(cfg, log), log.Logger)
	result, err := svc.Resolve(cmd.Context(), req)
	if err != nil {
		return err
	}
	if output == "table" {
		fmt.Fprintln(cmd.OutOrStdout(), renderResult(result))
		return nil
	}
	return writeJSON(cmd, result)
}
