package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arvindnair/webanalyzer/internal/config"
	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/run"
)

// crawlFlags is the flag set shared by run and watch: one field per
// recognized config option.
type crawlFlags struct {
	configFile     string
	configFileTOML string

	applicationID      string
	maxCrawlDepth      int
	maxPagesToCrawl    int
	maxLinksToValidate int

	extractStatic   bool
	extractDynamic  bool
	extractResource bool
	extractExternal bool

	requestTimeout        time.Duration
	maxConcurrentRequests int
	retryAttempts         int
	userAgent             string

	validatorConcurrency int
	wallClockCeiling     time.Duration
}

func (f *crawlFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configFile, "config", "", "JSON config file (flags override file values)")
	cmd.Flags().StringVar(&f.configFileTOML, "config-toml", "", "TOML config file (flags override file values)")
	cmd.Flags().StringVar(&f.applicationID, "app-id", "", "application id to record on the run")
	cmd.Flags().IntVar(&f.maxCrawlDepth, "max-depth", 0, "BFS depth bound from the seed [1,5]")
	cmd.Flags().IntVar(&f.maxPagesToCrawl, "max-pages", 0, "upper bound on distinct URLs fetched [10,1000]")
	cmd.Flags().IntVar(&f.maxLinksToValidate, "max-links", 0, "upper bound on edges validated [10,2000]")
	cmd.Flags().BoolVar(&f.extractStatic, "extract-static", true, "extract static anchor/link/area hrefs")
	cmd.Flags().BoolVar(&f.extractDynamic, "extract-dynamic", false, "extract onclick/data-url/inline-script URLs")
	cmd.Flags().BoolVar(&f.extractResource, "extract-resource", false, "extract img/script/stylesheet/source URLs")
	cmd.Flags().BoolVar(&f.extractExternal, "extract-external", false, "record links to other hosts")
	cmd.Flags().DurationVar(&f.requestTimeout, "timeout", 0, "per-request deadline")
	cmd.Flags().IntVar(&f.maxConcurrentRequests, "concurrency", 0, "fetcher concurrency bound")
	cmd.Flags().IntVar(&f.retryAttempts, "retries", 0, "retry attempts on transport error or 5xx")
	cmd.Flags().StringVar(&f.userAgent, "user-agent", "", "User-Agent header for all requests")
	cmd.Flags().IntVar(&f.validatorConcurrency, "validator-concurrency", 0, "link validator concurrency bound")
	cmd.Flags().DurationVar(&f.wallClockCeiling, "wall-clock-ceiling", 0, "hard wall-clock ceiling for the whole run")
}

// build assembles the run config: file first (when given), then every flag
// the user set on top of it.
func (f *crawlFlags) build(cmd *cobra.Command, seedURL string) (config.Config, error) {
	var cfg *config.Config
	switch {
	case f.configFile != "":
		loaded, err := config.WithConfigFile(f.configFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = &loaded
	case f.configFileTOML != "":
		loaded, err := config.WithConfigFileTOML(f.configFileTOML)
		if err != nil {
			return config.Config{}, err
		}
		cfg = &loaded
	default:
		cfg = config.WithDefault(seedURL)
	}

	if seedURL != "" {
		cfg.WithSeedURL(seedURL)
	}
	if f.applicationID != "" {
		cfg.WithApplicationID(f.applicationID)
	}
	if cmd.Flags().Changed("max-depth") {
		cfg.WithMaxCrawlDepth(f.maxCrawlDepth)
	}
	if cmd.Flags().Changed("max-pages") {
		cfg.WithMaxPagesToCrawl(f.maxPagesToCrawl)
	}
	if cmd.Flags().Changed("max-links") {
		cfg.WithMaxLinksToValidate(f.maxLinksToValidate)
	}
	if cmd.Flags().Changed("extract-static") {
		cfg.WithExtractStatic(f.extractStatic)
	}
	if cmd.Flags().Changed("extract-dynamic") {
		cfg.WithExtractDynamic(f.extractDynamic)
	}
	if cmd.Flags().Changed("extract-resource") {
		cfg.WithExtractResource(f.extractResource)
	}
	if cmd.Flags().Changed("extract-external") {
		cfg.WithExtractExternal(f.extractExternal)
	}
	if cmd.Flags().Changed("timeout") {
		cfg.WithRequestTimeout(f.requestTimeout)
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.WithMaxConcurrentRequests(f.maxConcurrentRequests)
	}
	if cmd.Flags().Changed("retries") {
		cfg.WithRetryAttempts(f.retryAttempts)
	}
	if f.userAgent != "" {
		cfg.WithUserAgent(f.userAgent)
	}
	if cmd.Flags().Changed("validator-concurrency") {
		cfg.WithValidatorConcurrency(f.validatorConcurrency)
	}
	if cmd.Flags().Changed("wall-clock-ceiling") {
		cfg.WithWallClockCeiling(f.wallClockCeiling)
	}

	return cfg.Build()
}

func newRunCmd() *cobra.Command {
	flags := &crawlFlags{}
	cmd := &cobra.Command{
		Use:   "run [seed-url]",
		Short: "Crawl a website and persist the analysis",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := ""
			if len(args) == 1 {
				seed = args[0]
			}
			cfg, err := flags.build(cmd, seed)
			if err != nil {
				return err
			}

			sink := newSink()
			st, cleanup, err := buildStore(cmd.Context(), sink)
			if err != nil {
				return err
			}
			defer cleanup()

			driver := run.NewDriver(st, sink)
			started, startErr := driver.StartRun(cfg)
			if startErr != nil {
				return startErr
			}
			fmt.Printf("run %s started\n", started.RunID)

			status, err := pollUntilTerminal(cmd, driver, started.TaskHandle)
			if err != nil {
				return err
			}
			if status.Failed {
				return fmt.Errorf("run failed: %s", status.Info)
			}

			bundle, getErr := st.GetRun(cmd.Context(), started.RunID)
			if getErr != nil {
				return getErr
			}
			printSummary(bundle)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// pollUntilTerminal blocks until the run reaches completed or failed,
// respecting command-context cancellation (ctrl-c cancels the run).
func pollUntilTerminal(cmd *cobra.Command, driver *run.Driver, handle string) (run.StatusResult, error) {
	for {
		select {
		case <-cmd.Context().Done():
			_ = driver.Cancel(handle)
			return run.StatusResult{}, cmd.Context().Err()
		case <-time.After(200 * time.Millisecond):
		}
		status, err := driver.RunStatus(handle)
		if err != nil {
			return run.StatusResult{}, err
		}
		if status.Ready {
			return status, nil
		}
	}
}

func printSummary(bundle model.RunBundle) {
	r := bundle.Run
	fmt.Printf("run %s: %s\n", r.RunID, r.State)
	fmt.Printf("  pages analyzed: %d\n", r.PagesAnalyzed)
	fmt.Printf("  links found:    %d\n", r.LinksFound)
	fmt.Printf("  broken links:   %d\n", r.BrokenCount)
	fmt.Printf("  blank pages:    %d\n", r.BlankCount)
	fmt.Printf("  content pages:  %d\n", r.ContentPageCount)
	fmt.Printf("  score:          %d/100\n", r.Score)
}
