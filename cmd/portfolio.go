package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spigell/cold-mailer/internal/logger"
	"github.com/spigell/cold-mailer/internal/portfolio"
	"github.com/spigell/cold-mailer/internal/vectorindex"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Manage the portfolio index",
}

var portfolioLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Index the portfolio table unless the index is already populated",
	Run: func(cmd *cobra.Command, _ []string) {
		withPortfolio(func(ctx context.Context, store *portfolio.Store, config *Config, logger *zap.Logger) error {
			file := config.Portfolio.File
			if flag := cmd.Flag("file"); flag != nil && flag.Changed {
				file = flag.Value.String()
			}

			if cmd.Flag("reload").Value.String() == "true" {
				if err := store.Clear(ctx); err != nil {
					return err
				}
			}

			entries, err := portfolio.ReadCSVFile(file)
			if err != nil {
				return err
			}

			added, err := store.Load(ctx, entries)
			if err != nil {
				return err
			}

			if added == 0 {
				logger.Info("portfolio index is already populated, nothing added", zap.String("hint", "use --reload to rebuild it"))
				return nil
			}

			logger.Info("portfolio loaded", zap.String("file", file), zap.Int("entries", added))
			return nil
		})
	},
}

var portfolioCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of indexed portfolio entries",
	Run: func(cmd *cobra.Command, _ []string) {
		withPortfolio(func(ctx context.Context, store *portfolio.Store, _ *Config, _ *zap.Logger) error {
			count, err := store.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		})
	},
}

var portfolioClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every entry from the portfolio index",
	Run: func(_ *cobra.Command, _ []string) {
		withPortfolio(func(ctx context.Context, store *portfolio.Store, _ *Config, _ *zap.Logger) error {
			return store.Clear(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(portfolioCmd)
	portfolioCmd.AddCommand(portfolioLoadCmd, portfolioCountCmd, portfolioClearCmd)

	portfolioLoadCmd.Flags().StringP("file", "f", "", "portfolio table (default is portfolio.file from the config)")
	portfolioLoadCmd.Flags().Bool("reload", false, "clear the index before loading")
}

func withPortfolio(fn func(ctx context.Context, store *portfolio.Store, config *Config, logger *zap.Logger) error) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	c := &clients{config: config, logger: logger}

	store, index, err := c.portfolioStore(ctx)
	if err != nil {
		logger.Fatal("opening the portfolio index", zap.Error(err))
	}

	err = fn(ctx, store, config, logger.With(zap.String("collection", config.Index.Collection)))
	closeIndex(index, logger)
	if err != nil {
		logger.Fatal("portfolio command failed", zap.Error(err))
	}
}

func closeIndex(index vectorindex.Index, logger *zap.Logger) {
	if err := index.Close(); err != nil {
		logger.Warn("closing the portfolio index", zap.Error(err))
	}
}
