package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/inboxforge/email-triage/internal/config"
	"github.com/inboxforge/email-triage/internal/export"
	"github.com/inboxforge/email-triage/internal/gemini"
	"github.com/inboxforge/email-triage/internal/imagefetch"
	"github.com/inboxforge/email-triage/internal/ingest"
	"github.com/inboxforge/email-triage/internal/redact"
	"github.com/inboxforge/email-triage/internal/store"
	"github.com/inboxforge/email-triage/internal/triage"
)

func main() {
	// A .env file is optional; real env vars always win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "ingest":
		os.Exit(runIngest(ctx, os.Args[2:]))
	case "imap":
		os.Exit(runIMAP(ctx, os.Args[2:]))
	case "process":
		os.Exit(runProcess(ctx, os.Args[2:]))
	case "prompts":
		os.Exit(runPrompts(ctx, os.Args[2:]))
	case "list":
		os.Exit(runList(ctx, os.Args[2:]))
	case "export":
		os.Exit(runExport(ctx, os.Args[2:]))
	case "clear":
		os.Exit(runClear(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func fail(format string, args ...any) int {
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintln(os.Stderr, redact.Secrets(msg))
	return 1
}

func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", strings.TrimSpace(os.Getenv("TRIAGE_CONFIG")), "Config file path (env: TRIAGE_CONFIG)")
}

func openStore(cfgPath string) (config.Config, *store.Store, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, st, nil
}

func runIngest(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := configFlag(fs)
	input := fs.String("input", "data/mock_inbox.json", "Mock inbox JSON file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_, st, err := openStore(*cfgPath)
	if err != nil {
		return fail("ingest failed: %s", err)
	}
	defer st.Close()

	f, err := os.Open(*input)
	if err != nil {
		return fail("ingest failed: %s", err)
	}
	defer f.Close()

	count, err := ingest.LoadMockInbox(ctx, st, f)
	if err != nil {
		return fail("ingest failed: %s", err)
	}
	fmt.Printf("loaded %d emails from %s\n", count, *input)
	return 0
}

func runIMAP(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("imap", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := configFlag(fs)
	limit := fs.Int("limit", 0, "Max messages to fetch (0 = config value)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, st, err := openStore(*cfgPath)
	if err != nil {
		return fail("imap fetch failed: %s", err)
	}
	defer st.Close()

	if cfg.IMAP.Username == "" || cfg.IMAP.Password == "" {
		return fail("imap fetch failed: IMAP_USERNAME and IMAP_PASSWORD are required")
	}
	n := *limit
	if n <= 0 {
		n = cfg.IMAP.Limit
	}

	client := ingest.NewIMAPClient(cfg.IMAPClientConfig())
	emails, err := client.FetchInbox(ctx, n)
	if err != nil {
		return fail("imap fetch failed: %s", err)
	}
	if err := st.SaveEmails(ctx, emails); err != nil {
		return fail("imap fetch failed: %s", err)
	}
	fmt.Printf("fetched %d emails from %s\n", len(emails), cfg.IMAP.Host)
	return 0
}

func runProcess(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := configFlag(fs)
	batchSize := fs.Int("batch-size", 0, "Emails per model request (0 = config value, env: BATCH_SIZE)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	log, err := newLogger()
	if err != nil {
		return fail("process failed: %s", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, st, err := openStore(*cfgPath)
	if err != nil {
		return fail("process failed: %s", err)
	}
	defer st.Close()

	size := *batchSize
	if size <= 0 {
		size = cfg.Pipeline.BatchSize
	}

	emails, err := st.Unprocessed(ctx)
	if err != nil {
		return fail("process failed: %s", err)
	}
	if len(emails) == 0 {
		fmt.Println("no unprocessed emails")
		return 0
	}

	prompts, err := st.Prompts(ctx)
	if err != nil {
		return fail("process failed: %s", err)
	}

	gateway, err := gemini.New(ctx, gemini.Config{
		APIKey:       cfg.Gemini.APIKey,
		Model:        cfg.Gemini.Model,
		BaseURL:      cfg.Gemini.BaseURL,
		RateLimitRPS: cfg.Gemini.RateLimitRPS,
	})
	if err != nil {
		return fail("process failed: %s", err)
	}

	items := make([]triage.WorkItem, 0, len(emails))
	for _, e := range emails {
		items = append(items, triage.WorkItem{
			ID:       e.ID,
			Sender:   e.Sender,
			Body:     e.Body,
			ImageURL: e.ImageURL,
		})
	}

	fetcher := imagefetch.New(cfg.Pipeline.ImageTimeout.Std(), cfg.Pipeline.ImageMaxBytes)
	pipe := triage.NewPipeline(gateway, st, fetcher, log)

	err = pipe.Run(ctx, items, prompts, size, func(fraction float64) {
		fmt.Printf("progress: %.0f%%\n", fraction*100)
	})
	if err != nil {
		return fail("process failed: %s", err)
	}
	fmt.Printf("processed %d emails\n", len(items))
	return 0
}

func runPrompts(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("prompts", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := configFlag(fs)
	name := fs.String("set", "", "Prompt to update: categorization, extraction or auto_reply")
	text := fs.String("text", "", "New prompt text (required with --set)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_, st, err := openStore(*cfgPath)
	if err != nil {
		return fail("prompts failed: %s", err)
	}
	defer st.Close()

	if *name != "" {
		if strings.TrimSpace(*text) == "" {
			return fail("prompts failed: --set requires --text")
		}
		if err := st.UpdatePrompt(ctx, *name, *text); err != nil {
			return fail("prompts failed: %s", err)
		}
		fmt.Printf("updated prompt %q\n", *name)
		return 0
	}

	prompts, err := st.Prompts(ctx)
	if err != nil {
		return fail("prompts failed: %s", err)
	}
	fmt.Printf("categorization: %s\n\n", prompts.Categorization)
	fmt.Printf("extraction: %s\n\n", prompts.Extraction)
	fmt.Printf("auto_reply: %s\n", prompts.AutoReply)
	return 0
}

func runList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := configFlag(fs)
	unprocessedOnly := fs.Bool("unprocessed", false, "Only list unprocessed emails")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_, st, err := openStore(*cfgPath)
	if err != nil {
		return fail("list failed: %s", err)
	}
	defer st.Close()

	emails, err := st.All(ctx)
	if err != nil {
		return fail("list failed: %s", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSENDER\tSUBJECT\tCATEGORY\tSUMMARY")
	for _, e := range emails {
		if *unprocessedOnly && e.Processed {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Sender, truncate(e.Subject, 40), e.Category, truncate(e.Summary, 60))
	}
	_ = w.Flush()
	return 0
}

func runExport(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := configFlag(fs)
	output := fs.String("output", "", "Output CSV file path")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *output == "" {
		return fail("export requires --output")
	}

	_, st, err := openStore(*cfgPath)
	if err != nil {
		return fail("export failed: %s", err)
	}
	defer st.Close()

	emails, err := st.All(ctx)
	if err != nil {
		return fail("export failed: %s", err)
	}

	f, err := os.Create(*output)
	if err != nil {
		return fail("export failed: %s", err)
	}
	defer f.Close()

	if err := export.WriteCSV(f, emails); err != nil {
		return fail("export failed: %s", err)
	}
	if err := f.Close(); err != nil {
		return fail("export failed: %s", err)
	}
	fmt.Printf("exported %d emails to %s\n", len(emails), *output)
	return 0
}

func runClear(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_, st, err := openStore(*cfgPath)
	if err != nil {
		return fail("clear failed: %s", err)
	}
	defer st.Close()

	if err := st.Clear(ctx); err != nil {
		return fail("clear failed: %s", err)
	}
	fmt.Println("cleared all emails")
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `triage: batch email triage with a Gemini backend

Usage:
  triage <command> [flags]

Commands:
  ingest   Load a mock inbox JSON file into the store
  imap     Fetch recent INBOX messages over IMAP
  process  Triage unprocessed emails in batches
  prompts  Show or update the instruction prompts
  list     List stored emails
  export   Export stored emails as CSV
  clear    Delete all stored emails

Environment:
  TRIAGE_CONFIG    Config file path (YAML)
  TRIAGE_DB        SQLite database path
  GEMINI_API_KEY   Gemini API key (required for process)
  GEMINI_MODEL     Gemini model name
  GEMINI_BASE_URL  Optional base URL override (proxies/testing)
  RATE_LIMIT_RPS   Global model request rate limit (0 disables)
  BATCH_SIZE       Emails per model request
  IMAP_HOST        IMAP server host
  IMAP_PORT        IMAP server port
  IMAP_USERNAME    IMAP account
  IMAP_PASSWORD    IMAP app password
  IMAP_LIMIT       Max messages per IMAP fetch

`)
}
