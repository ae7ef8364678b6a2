package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quillctx/quill/internal/profile"
	"github.com/quillctx/quill/rag"
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Retrieval and question answering over a local document corpus.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Load .env from the current directory if present.
		_ = godotenv.Load()
		return nil
	},
	SilenceUsage: true,
}

func newProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:   viper.GetString("mode"),
		Driver: viper.GetString("driver"),
		DSN:    viper.GetString("dsn"),
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func newLogger(p *profile.Profile) *slog.Logger {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// withEngine assembles the engine and hands it to the command body.
func withEngine(fn func(ctx context.Context, e *engine) error) error {
	p, err := newProfile()
	if err != nil {
		return err
	}
	logger := newLogger(p)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEngine(ctx, p, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	return fn(ctx, e)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Retrieve the chunks most similar to the query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, e *engine) error {
			k, _ := cmd.Flags().GetInt("k")
			strategy, _ := cmd.Flags().GetString("strategy")
			useRerank, _ := cmd.Flags().GetBool("rerank")
			documentIDs, _ := cmd.Flags().GetInt64Slice("documents")
			fileTypes, _ := cmd.Flags().GetStringSlice("file-types")
			opts := &rag.SearchOptions{DocumentIDs: documentIDs, FileTypes: fileTypes}

			var out any
			if useRerank {
				results, err := e.rerank.Search(ctx, args[0], k, opts)
				if err != nil {
					return err
				}
				out = results
			} else {
				searcher, err := e.searcher(strategy)
				if err != nil {
					return err
				}
				results, err := searcher.Search(ctx, args[0], k, opts)
				if err != nil {
					return err
				}
				out = results
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		})
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question grounded in the corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, e *engine) error {
			k, _ := cmd.Flags().GetInt("k")
			strategy, _ := cmd.Flags().GetString("strategy")
			stream, _ := cmd.Flags().GetBool("stream")

			orch, err := e.orchestrator(strategy)
			if err != nil {
				return err
			}

			if stream {
				contentCh, errCh, sources, err := orch.AnswerStream(ctx, args[0], k, nil)
				if err != nil {
					return err
				}
				for _, s := range sources {
					fmt.Fprintf(os.Stderr, "source: %s (chunk %d)\n", s.Filename, s.ChunkID)
				}
				for token := range contentCh {
					fmt.Print(token)
				}
				fmt.Println()
				return <-errCh
			}

			answer, err := orch.Answer(ctx, args[0], k, nil)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(answer)
		})
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the engine caches",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-cache size, capacity, and TTL",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withEngine(func(_ context.Context, e *engine) error {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(e.caches.Stats())
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all caches and report how many entries were removed",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withEngine(func(_ context.Context, e *engine) error {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(e.caches.Clear())
		})
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("dsn", "quill.db")

	rootCmd.PersistentFlags().String("mode", "dev", `mode, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite)")
	rootCmd.PersistentFlags().String("dsn", "quill.db", "database source name (aka DSN)")
	for _, flag := range []string{"mode", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("quill")
	viper.AutomaticEnv()

	searchCmd.Flags().Int("k", rag.DefaultTopK, "number of results")
	searchCmd.Flags().String("strategy", "vector", "retrieval strategy (vector, hyde, multi-query, rewrite)")
	searchCmd.Flags().Bool("rerank", false, "apply lexical reranking")
	searchCmd.Flags().Int64Slice("documents", nil, "restrict to document ids")
	searchCmd.Flags().StringSlice("file-types", nil, "restrict to file types")

	askCmd.Flags().Int("k", rag.DefaultTopK, "number of context chunks")
	askCmd.Flags().String("strategy", "vector", "retrieval strategy (vector, hyde, multi-query, rewrite)")
	askCmd.Flags().Bool("stream", false, "stream answer tokens")

	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(searchCmd, askCmd, ingestCmd, cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
