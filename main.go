package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jadenpxrk/fileprompt/internal/collector"
	"github.com/jadenpxrk/fileprompt/internal/fsprovider"
	"github.com/jadenpxrk/fileprompt/internal/gitprovider"
	"github.com/jadenpxrk/fileprompt/internal/report"
	"github.com/jadenpxrk/fileprompt/internal/resolve"
	"github.com/jadenpxrk/fileprompt/internal/tokens"
	"github.com/jadenpxrk/fileprompt/internal/webprovider"
)

// version is the application version, set via ldflags.
var version = "dev"

const appName = "fileprompt"

// options is the resolved configuration for one invocation.
type options struct {
	InstructionExtensions []string
	Include               []string
	Exclude               []string
	RespectGitignore      bool
	IgnoreHidden          bool
	PrefixMap             []string
	Root                  string

	OutputFile      string
	CopyToClipboard bool
	PDFOutputFile   string
	Summary         bool

	CountTokens    bool
	TokenizerType  string
	TokenizerModel string
	TokenizerFile  string
	Threads        int

	TraverseLinks bool
	LinkDepth     int

	Interactive bool
	Verbose     bool
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   appName + " [PATHS...]",
		Short: "Collect files and the files they reference into a single prompt-ready report.",
		Long: `fileprompt collects the given files and directories, follows path references
found inside instruction files (by default *.txt), and prints a report with a
source tree and the content of every collected file.

Git remotes (*.git, git@...) are cloned and web pages (http, https) are fetched
and converted to Markdown.`,
		Version:      version,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, loadOptions(v, cmd.Flags()))
		},
	}

	flags := cmd.Flags()
	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/fileprompt/config.toml)")

	// Collection
	flags.StringSliceP("instruction-extensions", "i", []string{"txt"}, "File extensions to treat as instruction files")
	flags.StringArray("include", nil, "Glob patterns (file base names) to include")
	flags.StringArrayP("exclude", "e", nil, "Glob patterns (base names) to exclude")
	flags.Bool("no-gitignore", false, "Do not respect .gitignore files")
	flags.BoolP("show-hidden", "H", false, "Include hidden files and directories (starting with .)")
	flags.StringSlice("prefix-map", []string{"google3=."}, "Prefix mappings in format prefix=path")
	flags.String("root", "", "Base for root-relative references (default: highest existing ancestor of the first input)")

	// Output
	flags.StringP("output", "f", "", "Write the report to a file")
	flags.BoolP("clipboard", "c", false, "Copy the report to the clipboard")
	flags.String("pdf", "", "Write the report as a PDF file")
	flags.Bool("summary", false, "Append a summary section to the report")

	// Tokens
	flags.Bool("tokens", false, "Count tokens per file (implies --summary)")
	flags.String("tokenizer", "tiktoken", "Tokenizer to use: tiktoken or huggingface")
	flags.String("tokenizer-model", "", "Tokenizer model (default gpt-4o for tiktoken, gpt2 for huggingface)")
	flags.String("tokenizer-file", "", "Local tokenizer.json for the huggingface tokenizer")
	flags.IntP("threads", "t", 0, "Token counting workers (0 for number of CPUs)")

	// Web
	flags.Bool("traverse-links", false, "Follow links on fetched web pages")
	flags.Int("link-depth", 1, "Maximum link depth when following links")

	flags.Bool("interactive", false, "Pick input paths with a fuzzy finder")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})

	return cmd
}

// initConfig reads the config file and FILEPROMPT_* environment variables.
func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("toml")
	}

	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", appName)
}

// globFlag returns a glob list. Command-line values are taken whole so that
// brace patterns such as *.{go,py} are not split at the comma.
func globFlag(v *viper.Viper, flags *pflag.FlagSet, name string) []string {
	if f := flags.Lookup(name); f != nil && f.Changed {
		if globs, err := flags.GetStringArray(name); err == nil {
			return globs
		}
	}
	return v.GetStringSlice(name)
}

func loadOptions(v *viper.Viper, flags *pflag.FlagSet) options {
	return options{
		InstructionExtensions: v.GetStringSlice("instruction_extensions"),
		Include:               globFlag(v, flags, "include"),
		Exclude:               globFlag(v, flags, "exclude"),
		RespectGitignore:      !v.GetBool("no_gitignore"),
		IgnoreHidden:          !v.GetBool("show_hidden"),
		PrefixMap:             v.GetStringSlice("prefix_map"),
		Root:                  v.GetString("root"),
		OutputFile:            v.GetString("output"),
		CopyToClipboard:       v.GetBool("clipboard"),
		PDFOutputFile:         v.GetString("pdf"),
		Summary:               v.GetBool("summary"),
		CountTokens:           v.GetBool("tokens"),
		TokenizerType:         v.GetString("tokenizer"),
		TokenizerModel:        v.GetString("tokenizer_model"),
		TokenizerFile:         v.GetString("tokenizer_file"),
		Threads:               v.GetInt("threads"),
		TraverseLinks:         v.GetBool("traverse_links"),
		LinkDepth:             v.GetInt("link_depth"),
		Interactive:           v.GetBool("interactive"),
		Verbose:               v.GetBool("verbose"),
	}
}

func newLogger(verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{Prefix: appName, Level: level})
}

func run(cmd *cobra.Command, args []string, opts options) error {
	logger := newLogger(opts.Verbose)

	mappings, err := resolve.ParsePrefixMap(opts.PrefixMap)
	if err != nil {
		return err
	}
	fsConfig := fsprovider.Config{
		Include:               opts.Include,
		Exclude:               opts.Exclude,
		InstructionExtensions: opts.InstructionExtensions,
		PrefixMap:             mappings,
		Root:                  opts.Root,
		RespectGitignore:      opts.RespectGitignore,
		IgnoreHidden:          opts.IgnoreHidden,
		Logger:                logger,
	}
	local, err := fsprovider.New(fsConfig)
	if err != nil {
		return err
	}

	inputs := args
	if opts.Interactive {
		inputs, err = runInteractiveFinder(fsConfig)
		if err != nil {
			return fmt.Errorf("interactive mode error: %w", err)
		}
		if inputs == nil {
			return nil
		}
	}
	if len(inputs) == 0 {
		inputs = []string{"."}
	}

	var progress io.Writer
	if opts.Verbose {
		progress = os.Stderr
	}
	git := gitprovider.New(gitprovider.Options{Local: local, Progress: progress, Logger: logger})
	defer func() {
		if err := git.Close(); err != nil {
			logger.Warn("Could not remove clone", "error", err)
		}
	}()
	web := webprovider.New(webprovider.Options{
		TraverseLinks: opts.TraverseLinks,
		MaxDepth:      opts.LinkDepth,
		Logger:        logger,
	})

	records, stats, err := collector.New(logger, web, git, local).Collect(inputs)
	if err != nil {
		return err
	}

	base, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	data := report.Build(records, base, loadLanguages(logger), logger)
	if len(data.Files) == 0 {
		logger.Warn("No files found matching the specified criteria")
		return nil
	}

	if opts.CountTokens {
		countTokens(&data, opts, logger)
	}
	if opts.Summary || opts.CountTokens {
		data.Summarize(opts.CountTokens, len(stats.Unclaimed))
	}

	if opts.PDFOutputFile != "" {
		if err := report.WritePDF(opts.PDFOutputFile, data); err != nil {
			return fmt.Errorf("failed to generate output: %w", err)
		}
		logger.Info("Saved PDF", "path", opts.PDFOutputFile)
		return nil
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, data); err != nil {
		return fmt.Errorf("failed to generate output: %w", err)
	}
	return writeOutput(cmd.OutOrStdout(), buf.String(), opts, logger)
}

// loadLanguages layers an optional languages.yml over the built-in table.
func loadLanguages(logger *log.Logger) *report.Languages {
	path := report.FindLanguages(configDir(), ".")
	if path == "" {
		return report.DefaultLanguages()
	}
	langs, err := report.LoadLanguages(path)
	if err != nil {
		logger.Warn("Could not load language definitions, using built-in table", "error", err)
		return report.DefaultLanguages()
	}
	logger.Debug("Loaded language definitions", "path", path)
	return langs
}

func countTokens(data *report.Data, opts options, logger *log.Logger) {
	counter, err := tokens.New(tokens.Options{
		Kind:   opts.TokenizerType,
		Model:  opts.TokenizerModel,
		File:   opts.TokenizerFile,
		Logger: logger,
	})
	if err != nil {
		logger.Warn("Token counting disabled", "error", err)
		return
	}
	defer counter.Close()

	texts := make([]string, len(data.Files))
	for i, f := range data.Files {
		texts[i] = f.Content
	}
	for i, n := range tokens.CountAll(counter, texts, opts.Threads) {
		data.Files[i].Tokens = n
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
