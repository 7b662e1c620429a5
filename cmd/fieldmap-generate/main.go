package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/taxpilot/fieldmap/internal/cache"
	"github.com/taxpilot/fieldmap/internal/inventory"
	"github.com/taxpilot/fieldmap/internal/logging"
	"github.com/taxpilot/fieldmap/internal/mapping"
	"github.com/taxpilot/fieldmap/internal/oracle"
	"github.com/taxpilot/fieldmap/internal/watcher"
)

var (
	formType      = flag.String("type", "", "Form type key (derived from the file name if empty)")
	formVersion   = flag.String("formversion", "", "Form version key (derived from the file name if empty)")
	cachePath     = flag.String("cache", "fieldmap.db", "Mapping cache database path")
	model         = flag.String("model", oracle.DefaultModel, "Reasoning model")
	timeout       = flag.Duration("timeout", oracle.DefaultTimeout, "Per-call oracle timeout")
	baseDelay     = flag.Duration("basedelay", oracle.DefaultBaseDelay, "Base delay before retrying a throttled oracle call")
	stepDelay     = flag.Duration("stepdelay", oracle.DefaultStepDelay, "Per-attempt increment of the oracle retry delay")
	maxRetries    = flag.Int("maxretries", oracle.DefaultMaxRetries, "Retries per oracle call before giving up")
	batchSize     = flag.Int("batchsize", mapping.DefaultBatchSize, "Fields per gap-filling call")
	maxRounds     = flag.Int("maxrounds", mapping.DefaultMaxRounds, "Maximum gap-filling rounds")
	coverage      = flag.Float64("coverage", mapping.DefaultCoverageThreshold, "Validation coverage threshold")
	inventoryOnly = flag.Bool("inventory-only", false, "Dump the field inventory without calling the oracle")
	logLevel      = flag.String("loglevel", "warn", "Log level (debug, info, warn, error)")
	help          = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: PDF file path required\n\n")
		printUsage()
		os.Exit(1)
	}

	pdfPath := flag.Arg(0)
	if _, err := os.Stat(pdfPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found: %s\n", pdfPath)
		os.Exit(1)
	}

	logger, err := logging.New(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ft, fv := watcher.TemplateKey(pdfPath)
	if *formType != "" {
		ft = *formType
	}
	if *formVersion != "" {
		fv = *formVersion
	}

	extractor := inventory.NewExtractor(logger)
	inv, err := extractor.ExtractFile(pdfPath, ft, fv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting inventory: %v\n", err)
		os.Exit(1)
	}

	if *inventoryOnly {
		outputJSON(inv)
		return
	}

	apiKey := os.Getenv("FIELDMAP_ORACLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	oracleClient, err := oracle.NewGenAIClient(ctx, oracle.GenAIConfig{
		APIKey:      apiKey,
		Model:       *model,
		CallTimeout: *timeout,
		BaseDelay:   *baseDelay,
		StepDelay:   *stepDelay,
		MaxRetries:  *maxRetries,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating oracle client: %v\n", err)
		fmt.Fprintln(os.Stderr, "Set FIELDMAP_ORACLE_API_KEY (or GEMINI_API_KEY) to run the mapping engine.")
		os.Exit(1)
	}

	store, err := cache.NewSQLiteStore(*cachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening cache: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	agent := mapping.NewAgent(oracleClient, store, mapping.AgentConfig{
		CoverageThreshold: *coverage,
		BatchSize:         *batchSize,
		MaxRounds:         *maxRounds,
	}, logger)

	fmt.Fprintf(os.Stderr, "🔍 Mapping %s (%s/%s), %d fields\n", pdfPath, ft, fv, len(inv.Fields))

	doc, err := agent.Generate(ctx, inv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Mapping run degraded: %v\n", err)
	}
	if doc == nil {
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "✅ Coverage %.1f%%, validated=%t, rounds=%d (cached in %s)\n",
		doc.Coverage*100, doc.Validated, doc.IterationsUsed, *cachePath)
	outputJSON(doc)
}

func outputJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("fieldmap-generate - build the semantic field mapping for one PDF form template")
	fmt.Println()
	fmt.Println("Extracts the template's field inventory, runs the iterative mapping engine")
	fmt.Println("against the reasoning oracle, validates the result and caches it by")
	fmt.Println("(form_type, form_version). Designed for tax forms (1040, W-2, 1099, ...)")
	fmt.Println("but works with any AcroForm PDF.")
	fmt.Println()
	printUsage()
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  fieldmap-generate f1040-2024.pdf")
	fmt.Println("  fieldmap-generate -inventory-only w9-2024.pdf")
	fmt.Println("  fieldmap-generate -type f1040 -formversion 2024 /tmp/template.pdf")
}

func printUsage() {
	fmt.Println("USAGE:")
	fmt.Println("  fieldmap-generate [OPTIONS] <pdf_file>")
}

func init() {
	flag.Usage = printHelp
}
