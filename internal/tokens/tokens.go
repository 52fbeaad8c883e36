// Package tokens counts LLM tokens in report content.
package tokens

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	tiktoken "github.com/pkoukk/tiktoken-go"
	hf "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Counter counts tokens in text.
type Counter interface {
	Count(text string) int
	Close()
}

const (
	defaultTiktokenModel = "gpt-4o"
	defaultHFModel       = "gpt2"
)

// Options selects a tokenizer.
type Options struct {
	Kind   string // "tiktoken" or "huggingface"
	Model  string
	File   string // local tokenizer.json, huggingface only
	Logger *log.Logger
}

// New returns the Counter described by opts.
func New(opts Options) (Counter, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	switch strings.ToLower(opts.Kind) {
	case "", "tiktoken":
		return loadTiktoken(opts.Model, logger)
	case "huggingface":
		return loadHuggingFace(opts.Model, opts.File, logger)
	default:
		return nil, fmt.Errorf("unsupported tokenizer type: %s. Use 'tiktoken' or 'huggingface'", opts.Kind)
	}
}

type tiktokenCounter struct {
	ttk *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.ttk.EncodeOrdinary(text))
}

func (c *tiktokenCounter) Close() {}

func loadTiktoken(model string, logger *log.Logger) (Counter, error) {
	if model == "" {
		model = defaultTiktokenModel
	}
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		logger.Warn("Tiktoken model not found, using default", "model", model, "default", defaultTiktokenModel, "error", err)
		tke, err = tiktoken.EncodingForModel(defaultTiktokenModel)
		if err != nil {
			return nil, fmt.Errorf("failed to get tiktoken encoding for default model '%s': %w", defaultTiktokenModel, err)
		}
	}
	return &tiktokenCounter{ttk: tke}, nil
}

type hfCounter struct {
	htk    *hf.Tokenizer
	logger *log.Logger
}

func (c *hfCounter) Count(text string) int {
	en, err := c.htk.EncodeSingle(text)
	if err != nil {
		c.logger.Warn("HuggingFace tokenizer failed to encode text", "error", err)
		return 0
	}
	return len(en.Tokens)
}

func (c *hfCounter) Close() {}

func loadHuggingFace(model, file string, logger *log.Logger) (Counter, error) {
	if file == "" {
		if model == "" {
			model = defaultHFModel
		}
		logger.Info("Loading HuggingFace tokenizer (this may download files)", "model", model)
		path, err := hf.CachedPath(model, "tokenizer.json")
		if err != nil {
			return nil, fmt.Errorf("failed to get cache path for model %s: %w", model, err)
		}
		file = path
	}

	ttk, err := pretrained.FromFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer from file %s: %w", file, err)
	}
	return &hfCounter{htk: ttk, logger: logger}, nil
}

type job struct {
	index int
	text  string
}

// CountAll counts every text on a pool of workers (NumCPU when workers <= 0)
// and returns the counts in input order.
func CountAll(c Counter, texts []string, workers int) []int {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	counts := make([]int, len(texts))
	jobs := make(chan job, len(texts))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if j.text != "" {
					counts[j.index] = c.Count(j.text)
				}
			}
		}()
	}

	for i, text := range texts {
		jobs <- job{index: i, text: text}
	}
	close(jobs)
	wg.Wait()
	return counts
}
