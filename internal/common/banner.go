package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the pipeline startup banner for a single run.
func PrintBanner(config *Config, logger arbor.ILogger) {
	version := GetVersion()

	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")
	b.PrintTopLine()
	b.PrintCenteredText("JOBPIPELINE")
	b.PrintCenteredText("Job Ingestion & Classification Pipeline")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", version, 15)
	b.PrintKeyValue("Environment", config.Environment, 15)
	b.PrintKeyValue("Storage", config.Storage.Backend, 15)
	b.PrintKeyValue("LLM Provider", string(config.LLM.DefaultProvider), 15)
	b.PrintBottomLine()
	fmt.Printf("\n")

	logger.Info().
		Str("version", version).
		Str("environment", config.Environment).
		Str("storage_backend", config.Storage.Backend).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Msg("Pipeline run started")

	printCapabilities(config, logger)
	fmt.Printf("\n")
}

// printCapabilities displays the configured run's capabilities.
func printCapabilities(config *Config, logger arbor.ILogger) {
	fmt.Printf("Run configuration:\n")
	fmt.Printf("   - Storage backend: %s\n", config.Storage.Backend)
	fmt.Printf("   - Classifier provider: %s (%s profile)\n", config.LLM.DefaultProvider, config.Classifier.Type)
	fmt.Printf("   - Classifier batch size: %d, max concurrent batches: %d\n",
		config.Classifier.BatchSize, config.Classifier.MaxConcurrentBatches)
	if config.LinkTracker.Enabled {
		fmt.Printf("   - Link tracker: enabled (%s)\n", config.LinkTracker.BaseURL)
	} else {
		fmt.Printf("   - Link tracker: disabled\n")
	}
	if config.Checkpoint.Enabled {
		fmt.Printf("   - Checkpointing: enabled (%s)\n", config.Checkpoint.Dir)
	} else {
		fmt.Printf("   - Checkpointing: disabled\n")
	}

	logger.Info().
		Str("classifier_type", config.Classifier.Type).
		Int("classifier_batch_size", config.Classifier.BatchSize).
		Int("classifier_max_concurrent", config.Classifier.MaxConcurrentBatches).
		Bool("link_tracker_enabled", config.LinkTracker.Enabled).
		Bool("checkpoint_enabled", config.Checkpoint.Enabled).
		Msg("Run capabilities")
}

// PrintShutdownBanner displays the shutdown banner once a run completes.
func PrintShutdownBanner(logger arbor.ILogger) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(42)

	b.PrintTopLine()
	b.PrintCenteredText("RUN COMPLETE")
	b.PrintCenteredText("JOBPIPELINE")
	b.PrintBottomLine()
	fmt.Println()

	logger.Info().Msg("Pipeline run finished")
}

// PrintColorizedMessage prints a message with specified color and logs through Arbor.
func PrintColorizedMessage(color, message string, logger arbor.ILogger) {
	fmt.Printf("%s%s%s\n", color, message, banner.ColorReset)
}

// PrintSuccess prints a success message in green and logs it.
func PrintSuccess(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorGreen, fmt.Sprintf("[ok] %s", message), logger)
	logger.Info().Str("type", "success").Msg(message)
}

// PrintError prints an error message in red and logs it.
func PrintError(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorRed, fmt.Sprintf("[error] %s", message), logger)
	logger.Error().Str("type", "error").Msg(message)
}

// PrintWarning prints a warning message in yellow and logs it.
func PrintWarning(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorYellow, fmt.Sprintf("[warn] %s", message), logger)
	logger.Warn().Str("type", "warning").Msg(message)
}

// PrintInfo prints an info message in cyan and logs it.
func PrintInfo(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorCyan, fmt.Sprintf("[info] %s", message), logger)
	logger.Info().Str("type", "info").Msg(message)
}
