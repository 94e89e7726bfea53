package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tutor/internal/pkg/cache"
	"tutor/internal/pkg/mathtools"
)

var (
	seedTopic      string
	seedDifficulty string
	seedCount      int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fetch and preview the seed exercise dataset",
	Long: `Fetch the seed dataset from the configured GitHub repository, filter it by
topic and difficulty, and print a random sample as JSON.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	flags := seedCmd.Flags()
	flags.StringVar(&seedTopic, "topic", "", "filter by topic (e.g. ecuaciones_lineales)")
	flags.StringVar(&seedDifficulty, "difficulty", "", "filter by difficulty (baja/media/alta)")
	flags.IntVarP(&seedCount, "count", "n", 3, "number of examples to sample (0 = all)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Seed.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Seed.Timeout+cfg.Seed.Timeout/2)
	defer cancel()

	var opts []mathtools.SeedOption
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, fetching without cache")
		} else {
			defer rc.Close()
			opts = append(opts, mathtools.WithDatasetCache(rc))
		}
	}

	fetcher, err := mathtools.NewSeedFetcher(&cfg.Seed, opts...)
	if err != nil {
		return err
	}

	result, err := fetcher.Fetch(ctx, &mathtools.SeedQuery{
		Topic:      seedTopic,
		Difficulty: seedDifficulty,
		SampleSize: seedCount,
	})
	if err != nil {
		return fmt.Errorf("fetch seed examples: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}
