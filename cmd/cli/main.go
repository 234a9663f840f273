package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/colaso96/beforeyouradvisor/internal/app"
	"github.com/colaso96/beforeyouradvisor/internal/classify"
	"github.com/colaso96/beforeyouradvisor/internal/config"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/eval"
	"github.com/colaso96/beforeyouradvisor/internal/filestore"
	"github.com/colaso96/beforeyouradvisor/internal/infra/postgres"
	"github.com/colaso96/beforeyouradvisor/internal/jobs"
	"github.com/colaso96/beforeyouradvisor/internal/llm"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
	"github.com/colaso96/beforeyouradvisor/internal/notionsync"
	"github.com/colaso96/beforeyouradvisor/internal/profiles"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	log := logger.Configure(cfg.LogFormat, cfg.LogLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "migrate":
		runMigrate(cfg, log)
	case "ingest":
		runIngest(cfg, log)
	case "analyze":
		runAnalyze(cfg, log)
	case "chat":
		runChat(cfg, log)
	case "summary":
		runSummary(cfg, log)
	case "sync-notion":
		runSyncNotion(cfg, log)
	case "upload":
		runUpload(cfg, log)
	case "eval":
		runEval(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Before Your Advisor CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  migrate      Apply the database schema")
	fmt.Println("  ingest       Import every statement in a folder for a user")
	fmt.Println("  analyze      Classify a user's transactions for tax deductibility")
	fmt.Println("  chat         Ask questions about a user's transactions")
	fmt.Println("  summary      Print deductible totals per category")
	fmt.Println("  sync-notion  Mirror deductible transactions into Notion")
	fmt.Println("  upload       Upload a statement file to GCS")
	fmt.Println("  eval         Measure classification accuracy on a labeled CSV")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func openApp(ctx context.Context, cfg config.Config, log zerolog.Logger) *app.App {
	a, err := app.New(ctx, ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	return a
}

func requireUser(log zerolog.Logger, userID string) {
	if strings.TrimSpace(userID) == "" {
		log.Fatal().Msg("Error: --user is required")
	}
}

func runMigrate(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	printOnly := fs.Bool("print", false, "Print the schema instead of applying it")
	fs.Parse(os.Args[2:])

	if *printOnly {
		fmt.Print(postgres.Schema())
		return
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("Error: DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	fmt.Println("Schema applied.")
}

// waitForJob stops the queue, which drains the job, and returns its final state.
func waitForJob(ctx context.Context, a *app.App, log zerolog.Logger, job *jobs.Job, userID string) *jobs.Job {
	if err := a.Queue.Stop(ctx); err != nil {
		log.Fatal().Err(err).Msg("Job did not finish")
	}
	final, err := a.Service.JobStatus(ctx, job.ID, userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read job status")
	}
	return final
}

func printJob(job *jobs.Job) {
	fmt.Printf("Job %s (%s): %s, %d/%d\n", job.ID, job.Kind, job.State, job.Processed, job.Total)
	if job.Error != nil {
		fmt.Printf("Error: %s\n", *job.Error)
	}
}

func runIngest(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	userID := fs.String("user", "", "User ID that owns the transactions")
	folderID := fs.String("folder", "", "Drive folder ID, GCS prefix or local directory")
	token := fs.String("token", os.Getenv("DRIVE_TOKEN"), "OAuth access token for Drive (or set DRIVE_TOKEN env)")
	local := fs.String("local", "", "Read statements from this directory instead of FILESTORE")
	fs.Parse(os.Args[2:])

	requireUser(log, *userID)
	if *local != "" {
		cfg.FileStore = "local"
		cfg.LocalRoot = *local
		if *folderID == "" {
			*folderID = "."
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log)
	defer a.Close()

	job, err := a.Service.StartIngestion(ctx, *userID, *token, *folderID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start ingestion")
	}
	printJob(waitForJob(ctx, a, log, job, *userID))
}

func runAnalyze(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	userID := fs.String("user", "", "User ID to analyze")
	businessType := fs.String("business-type", "", "Business profile key or alias")
	aggressiveness := fs.String("aggressiveness", string(classify.Moderate), "conservative, moderate or aggressive")
	note := fs.String("note", "", "Extra context for the classifier")
	fs.Parse(os.Args[2:])

	requireUser(log, *userID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log)
	defer a.Close()

	job, err := a.Service.StartAnalysis(ctx, *userID, classify.Request{
		BusinessType:   *businessType,
		Aggressiveness: classify.Aggressiveness(*aggressiveness),
		Note:           *note,
	})
	if err != nil {
		log.Fatal().Err(err).Strs("known_profiles", a.Profiles.Keys()).Msg("Failed to start analysis")
	}
	printJob(waitForJob(ctx, a, log, job, *userID))
}

func runChat(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	userID := fs.String("user", "", "User ID to chat about")
	question := fs.String("q", "", "Ask a single question; omit for an interactive session")
	clearHistory := fs.Bool("clear", false, "Clear the chat history first")
	fs.Parse(os.Args[2:])

	requireUser(log, *userID)

	ctx := logger.WithContext(context.Background(), log)
	a := openApp(ctx, cfg, log)
	defer a.Close()

	if *clearHistory {
		if err := a.Agent.Clear(ctx, *userID); err != nil {
			log.Fatal().Err(err).Msg("Failed to clear history")
		}
	}

	ask := func(q string) {
		turnCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		msg, err := a.Agent.Ask(turnCtx, *userID, q)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		printMessage(msg)
	}

	if *question != "" {
		ask(*question)
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		if q := strings.TrimSpace(scanner.Text()); q != "" {
			ask(q)
		}
		fmt.Print("> ")
	}
	fmt.Println()
}

func printMessage(msg *domain.ChatMessage) {
	fmt.Println(msg.Content)
	if msg.SQL != nil {
		fmt.Printf("\nSQL: %s\n", *msg.SQL)
	}
	if msg.Result == nil || len(msg.Result.Rows) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(msg.Result.Columns, "\t"))
	for _, row := range msg.Result.Rows {
		cells := make([]string, len(msg.Result.Columns))
		for i, c := range msg.Result.Columns {
			cells[i] = fmt.Sprint(row[c])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
}

func runSummary(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	userID := fs.String("user", "", "User ID to summarize")
	fromBigQuery := fs.Bool("bigquery", false, "Read totals from the BigQuery export instead of Postgres")
	fs.Parse(os.Args[2:])

	requireUser(log, *userID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log)
	defer a.Close()

	var (
		totals []domain.CategoryTotal
		err    error
	)
	if *fromBigQuery {
		if a.Exporter == nil {
			log.Fatal().Msg("Error: BIGQUERY_PROJECT is not configured")
		}
		totals, err = a.Exporter.DeductionSummary(ctx, *userID)
	} else {
		totals, err = a.Transactions.DeductionTotals(ctx, *userID)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load totals")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Category\tCount\tTotal\tDeductible\t")
	var deductible float64
	for _, t := range totals {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t\n", t.Category, t.Count, t.Total, t.Deductible)
		deductible += t.Deductible
	}
	w.Flush()
	fmt.Printf("\nTotal deductible: %.2f\n", deductible)
}

func runSyncNotion(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	userID := fs.String("user", "", "User ID to export")
	notionToken := fs.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := fs.String("notion-db-id", cfg.NotionDatabaseID, "Notion database ID (or set NOTION_DATABASE_ID env)")
	dryRun := fs.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	fs.Parse(os.Args[2:])

	requireUser(log, *userID)
	if *notionToken == "" || *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-token and --notion-db-id are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log)
	defer a.Close()

	stats, err := notionsync.SyncDeductions(ctx, a.Transactions, notionsync.NewNotionClient(*notionToken), *notionDBID, *userID, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Notion sync failed")
	}
	fmt.Printf("Created %d, updated %d, archived %d, failed %d\n", stats.Created, stats.Updated, stats.Deleted, stats.Failed)
}

func runUpload(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.GCSBucket, "GCS bucket name (or set GCS_BUCKET env)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local statement file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}
	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}
	if !filestore.Supported(filestore.DetectMIME(*objectName, "")) {
		log.Fatal().Str("object", *objectName).Msg("Only .csv and .pdf statements are supported")
	}

	ctx := logger.WithContext(context.Background(), log)

	store, err := filestore.NewGCS(ctx, *bucketName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer store.Close()

	uri, err := store.UploadFile(ctx, *objectName, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func runEval(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	file := fs.String("file", "", "Labeled CSV file")
	labelColumn := fs.String("label-column", "label", "Column holding the expected label")
	features := fs.String("features", "", "Comma-separated feature columns (default: all but the label)")
	businessType := fs.String("business-type", "", "Business profile key or alias")
	aggressiveness := fs.String("aggressiveness", string(classify.Moderate), "conservative, moderate or aggressive")
	target := fs.String("target", string(eval.TargetCategory), "Compare the label with: category or deductible")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}
	if cfg.GeminiAPIKey == "" {
		log.Fatal().Msg("Error: GEMINI_API_KEY is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read dataset")
	}
	ds, err := eval.LoadDataset(data, *labelColumn, strings.Split(*features, ","))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}

	ctx := logger.WithContext(context.Background(), log)
	reg, err := profiles.Load(cfg.ProfilesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load profiles")
	}
	gen, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create model client")
	}
	engine := classify.NewEngine(gen, reg, classify.Options{MaxRetries: cfg.ClassifyMaxRetries, BaseDelay: cfg.ClassifyBaseDelay})

	p := &eval.ClassifierPredictor{
		Classifier: engine,
		Request: classify.Request{
			BusinessType:   *businessType,
			Aggressiveness: classify.ParseAggressiveness(*aggressiveness),
		},
		Target: eval.Target(*target),
	}
	report, err := eval.Evaluate(ctx, p, ds.Examples)
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}

	fmt.Printf("Examples: %d (skipped %d unlabeled)\n", report.Total, ds.Skipped)
	fmt.Printf("Accuracy: %.1f%% (%d correct, %d errors)\n\n", 100*report.Accuracy(), report.Correct, report.Errors)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Expected\tPredicted\tCount")
	for _, expected := range report.Labels() {
		predicted := report.Confusion[expected]
		keys := make([]string, 0, len(predicted))
		for k := range predicted {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\t%d\n", expected, k, predicted[k])
		}
	}
	w.Flush()
}
