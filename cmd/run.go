package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spigell/cold-mailer/internal/extraction"
	"github.com/spigell/cold-mailer/internal/generation"
	"github.com/spigell/cold-mailer/internal/jobs"
	"github.com/spigell/cold-mailer/internal/logger"
	"github.com/spigell/cold-mailer/internal/page"
	"github.com/spigell/cold-mailer/internal/pipeline"
	"github.com/spigell/cold-mailer/internal/portfolio"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptPrint = "Print drafts"
	PromptSave  = "Save drafts to directory"
	PromptExit  = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What to do with the drafts?",
	Items: []string{PromptPrint, PromptSave, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Draft cold emails for every job posting on a careers page",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("url", "u", "", "careers page URL")
	runCmd.Flags().BoolP("yes", "y", false, "do not ask what to do with the drafts, just print them")
	runCmd.Flags().StringP("out", "o", ".", "directory for saved drafts")
	runCmd.Flags().String("loader", "", "page loader: http or browser")

	runCmd.MarkFlagRequired("url")

	viper.BindPFlag("page.loader", runCmd.Flags().Lookup("loader"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
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

	logger.Info("starting the cold-mailer", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	url := strings.TrimSpace(cmd.Flag("url").Value.String())

	c := &clients{config: config, logger: logger}

	generator, err := c.generator(ctx)
	if err != nil {
		logger.Fatal("building the model client", zap.Error(err))
	}

	store, index, err := c.portfolioStore(ctx)
	if err != nil {
		logger.Fatal("opening the portfolio index", zap.Error(err))
	}
	defer closeIndex(index, logger)

	if err := loadPortfolio(ctx, store, config.Portfolio.File, logger); err != nil {
		logger.Fatal("loading the portfolio", zap.Error(err))
	}

	loader, err := page.New(config.Page.Loader, page.Options{
		Timeout:   config.Timeouts.Fetch,
		UserAgent: config.Page.UserAgent,
	}, logger)
	if err != nil {
		logger.Fatal("building the page loader", zap.Error(err))
	}

	p, err := pipeline.New(pipeline.Deps{
		Loader:    loader,
		Extractor: extraction.NewExtractor(generator, logger, config.AI.Gemini.MaxLogLength),
		Matcher:   pipeline.NewMatcher(store, config.Matching.Results),
		Writer: generation.NewGenerator(generator, generation.Sender{
			Name:  config.Sender.Name,
			Pitch: config.Sender.Pitch,
		}, logger, config.AI.Gemini.MaxLogLength),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	logger.Info("processing the careers page", zap.String("url", url))

	drafts, err := p.Run(ctx, url)
	if err != nil {
		logger.Fatal("generating drafts", zap.Error(err))
	}

	if drafts.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no job postings found"))
		return
	}

	action := PromptPrint
	auto := cmd.Flag("yes").Value.String() == "true"
	for {
		if !auto {
			_, action, err = prompt.Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}

		if err := handleAction(action, cmd.OutOrStdout(), cmd.Flag("out").Value.String(), logger, drafts); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}

		if auto {
			return
		}
	}
}

func handleAction(action string, out io.Writer, dir string, logger *zap.Logger, drafts *jobs.Drafts) error {
	switch action {
	case PromptPrint:
		printDrafts(out, drafts)
		return nil
	case PromptSave:
		paths, err := drafts.WriteToDir(dir)
		if err != nil {
			return fmt.Errorf("save drafts: %w", err)
		}
		logger.Info("drafts saved", zap.Strings("files", paths))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func printDrafts(out io.Writer, drafts *jobs.Drafts) {
	for idx, draft := range drafts.Items {
		fmt.Fprintf(out, "=== Cold email %d: %s ===\n", idx+1, draft.Posting.Title())
		if len(draft.Links) > 0 {
			fmt.Fprintf(out, "Portfolio links: %s\n", strings.Join(draft.Links, ", "))
		}
		fmt.Fprintf(out, "\n%s\n\n", draft.Text)
	}
}

func loadPortfolio(ctx context.Context, store *portfolio.Store, path string, logger *zap.Logger) error {
	count, err := store.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Debug("portfolio already indexed", zap.Int("count", count))
		return nil
	}

	entries, err := portfolio.ReadCSVFile(path)
	if err != nil {
		return err
	}

	added, err := store.Load(ctx, entries)
	if err != nil {
		return err
	}

	logger.Info("portfolio loaded", zap.String("file", path), zap.Int("entries", added))
	return nil
}
