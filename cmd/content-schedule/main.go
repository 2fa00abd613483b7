package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/renderinc/content-schedule/internal/config"
	"github.com/renderinc/content-schedule/internal/schedule"
	"github.com/renderinc/content-schedule/internal/search"
	"github.com/renderinc/content-schedule/internal/storage"
	"github.com/renderinc/content-schedule/internal/sync"
	"github.com/renderinc/content-schedule/internal/versioning"
	"github.com/renderinc/content-schedule/internal/visibility"
	"github.com/renderinc/content-schedule/internal/web"
)

var cfg *config.Config

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Parse global flags
	globalFlags := flag.NewFlagSet("global", flag.ExitOnError)
	dataDirFlag := globalFlags.String("data-dir", cfg.DataDir, "Directory for database and index files")

	// Check if we have any arguments
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Find where the command starts (skip global flags)
	commandIdx := 1
	for i := 1; i < len(os.Args); i++ {
		if !strings.HasPrefix(os.Args[i], "-") {
			commandIdx = i
			break
		}
	}

	// Parse global flags if any exist before the command
	if commandIdx > 1 {
		globalFlags.Parse(os.Args[1:commandIdx])
	}
	cfg.DataDir = *dataDirFlag

	command := os.Args[commandIdx]
	args := os.Args[commandIdx+1:]

	switch command {
	case "import":
		if len(args) < 1 {
			fmt.Println("Error: manifest file required")
			fmt.Println("Usage: content-schedule [--data-dir=<dir>] import <manifest.json>")
			os.Exit(1)
		}
		runImport(args[0])
	case "serve":
		// Parse serve flags
		serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
		port := serveFlags.String("port", cfg.Port, "Port to listen on")
		host := serveFlags.String("host", cfg.Host, "Host to bind to")

		serveFlags.Parse(args)

		cfg.Host, cfg.Port = *host, *port
		runServe()
	case "list":
		listFlags := flag.NewFlagSet("list", flag.ExitOnError)
		stageName := listFlags.String("stage", "live", "Stage to list (live or draft)")
		preview := listFlags.Bool("preview", false, "List with elevated view privilege")
		admin := listFlags.Bool("admin", false, "List as an administrator (no schedule filtering)")
		limit := listFlags.Int("limit", 0, "Maximum number of documents (0 = all)")

		listFlags.Parse(args)

		stage, ok := versioning.ParseStage(*stageName)
		if !ok {
			log.Fatalf("Error: unknown stage %q", *stageName)
		}
		runList(visibility.AccessContext{
			Administrative:        *admin,
			ElevatedViewPrivilege: *preview,
			Stage:                 stage,
		}, *limit)
	case "status":
		if len(args) < 1 {
			fmt.Println("Error: document ID required")
			fmt.Println("Usage: content-schedule [--data-dir=<dir>] status <document-id>")
			os.Exit(1)
		}
		runStatus(args[0])
	case "schedule":
		scheduleFlags := flag.NewFlagSet("schedule", flag.ExitOnError)
		embargo := scheduleFlags.String("embargo", "", "Embargo until (RFC3339, empty clears)")
		expire := scheduleFlags.String("expire", "", "Expire after (RFC3339, empty clears)")

		scheduleFlags.Parse(args)

		if scheduleFlags.NArg() < 1 {
			fmt.Println("Error: document ID required")
			fmt.Println("Usage: content-schedule [--data-dir=<dir>] schedule [flags] <document-id>")
			os.Exit(1)
		}

		set := make(map[string]bool)
		scheduleFlags.Visit(func(f *flag.Flag) { set[f.Name] = true })
		runSchedule(scheduleFlags.Arg(0), *embargo, set["embargo"], *expire, set["expire"])
	case "publish":
		if len(args) < 1 {
			fmt.Println("Error: document ID required")
			fmt.Println("Usage: content-schedule [--data-dir=<dir>] publish <document-id>")
			os.Exit(1)
		}
		runPublish(args[0])
	case "unpublish":
		if len(args) < 1 {
			fmt.Println("Error: document ID required")
			fmt.Println("Usage: content-schedule [--data-dir=<dir>] unpublish <document-id>")
			os.Exit(1)
		}
		runUnpublish(args[0])
	case "search":
		searchFlags := flag.NewFlagSet("search", flag.ExitOnError)
		all := searchFlags.Bool("all", false, "Include embargoed and expired documents")

		searchFlags.Parse(args)

		if searchFlags.NArg() < 1 {
			fmt.Println("Error: search query required")
			fmt.Println("Usage: content-schedule [--data-dir=<dir>] search [flags] <query>")
			os.Exit(1)
		}

		query := strings.Join(searchFlags.Args(), " ")
		runSearch(query, *all)
	case "reindex":
		runReindex()
	case "stats":
		runStats()
	case "get-doc":
		getFlags := flag.NewFlagSet("get-doc", flag.ExitOnError)
		stageName := getFlags.String("stage", "live", "Stage to read (live or draft)")

		getFlags.Parse(args)

		if getFlags.NArg() < 1 {
			fmt.Println("Error: document ID required")
			fmt.Println("Usage: content-schedule [--data-dir=<dir>] get-doc [flags] <document-id>")
			os.Exit(1)
		}
		stage, ok := versioning.ParseStage(*stageName)
		if !ok {
			log.Fatalf("Error: unknown stage %q", *stageName)
		}
		runGetDoc(stage, getFlags.Arg(0))
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Content Schedule - Embargo and expiry scheduling for published content")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  content-schedule [global-flags] <command> [flags]")
	fmt.Println()
	fmt.Println("Global Flags:")
	fmt.Println("  --data-dir=<dir>  Directory for database and index files (default: $CONTENT_SCHEDULE_DATA_DIR or ./data)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  import <file>              Import documents and announcements from a JSON manifest")
	fmt.Println("  serve [flags]              Start web server")
	fmt.Println("  list [flags]               List documents visible to an access context")
	fmt.Println("  status <id>                Show the schedule status of a document")
	fmt.Println("  schedule [flags] <id>      Set the embargo/expiry window of a draft")
	fmt.Println("  publish <id>               Copy a draft to live")
	fmt.Println("  unpublish <id>             Remove the live snapshot of a document")
	fmt.Println("  search [flags] <query>     Search live documents")
	fmt.Println("  reindex                    Rebuild Bleve keyword index from live documents")
	fmt.Println("  stats                      Show index statistics")
	fmt.Println("  get-doc [flags] <id>       Retrieve document markdown by ID")
	fmt.Println()
	fmt.Println("Serve Flags:")
	fmt.Println("  -host=<host>      Host to bind to (default: localhost)")
	fmt.Println("  -port=<port>      Port to listen on (default: 6893)")
	fmt.Println()
	fmt.Println("List Flags:")
	fmt.Println("  -stage=<stage>    live or draft (default: live)")
	fmt.Println("  -preview          Elevated view privilege (draft stage is unfiltered)")
	fmt.Println("  -admin            Administrative context (never filtered)")
	fmt.Println("  -limit=<n>        Maximum number of documents")
	fmt.Println()
	fmt.Println("Schedule Flags:")
	fmt.Println("  -embargo=<time>   Embargo until, RFC3339 (\"\" clears)")
	fmt.Println("  -expire=<time>    Expire after, RFC3339 (\"\" clears)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  content-schedule import docs.json")
	fmt.Println("  content-schedule schedule -embargo=2030-01-01T09:00:00Z launch-plan")
	fmt.Println("  content-schedule publish launch-plan")
	fmt.Println("  content-schedule list -stage=draft -preview")
	fmt.Println("  content-schedule search kubernetes")
	fmt.Println("  content-schedule serve -port=3000")
	fmt.Println()
	fmt.Println("Using custom data directory:")
	fmt.Println("  content-schedule --data-dir=/path/to/data list")
	fmt.Println("  CONTENT_SCHEDULE_DATA_DIR=$HOME/.content-schedule content-schedule serve")
}

func openDB() *storage.DB {
	db, err := storage.Open(cfg.DBPath())
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	return db
}

func openIndex() *search.Index {
	idx, err := search.Open(cfg.IndexPath())
	if err != nil {
		log.Fatalf("Error opening search index: %v", err)
	}
	return idx
}

func newLabeler() *schedule.Labeler {
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Error loading timezone: %v", err)
	}
	return schedule.NewLabeler(loc)
}

func runImport(path string) {
	manifest, err := sync.LoadManifest(path)
	if err != nil {
		log.Fatalf("Error loading manifest: %v", err)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Error creating data directory: %v", err)
	}

	db := openDB()
	defer db.Close()

	idx := openIndex()
	defer idx.Close()

	worker := sync.NewWorker(db, idx, cfg.ImportConcurrency)

	// Stop between documents on Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stats, err := worker.Sync(ctx, manifest)
	if err != nil {
		log.Fatalf("Error importing: %v", err)
	}

	// Print summary
	fmt.Println()
	fmt.Println("=== Import Complete ===")
	fmt.Printf("Total documents: %d\n", stats.TotalDocs)
	fmt.Printf("New:             %d\n", stats.NewDocs)
	fmt.Printf("Updated:         %d\n", stats.UpdatedDocs)
	fmt.Printf("Skipped:         %d\n", stats.SkippedDocs)
	fmt.Printf("Published:       %d\n", stats.PublishedDocs)
	fmt.Printf("Announcements:   %d\n", stats.Announcements)
	fmt.Printf("Errors:          %d\n", stats.Errors)
	fmt.Printf("Duration:        %v\n", stats.Duration)
}

func runList(ctx visibility.AccessContext, limit int) {
	now := time.Now()

	db := openDB()
	defer db.Close()

	q := &storage.Query{Stage: ctx.Stage, Limit: limit}
	if p := visibility.BuildPredicate(storage.TableFor(ctx.Stage), now, ctx); p != nil {
		q.Where(p.SQL, p.Args...)
	}
	docs, err := db.List(q)
	if err != nil {
		log.Fatalf("Error listing documents: %v", err)
	}

	if len(docs) == 0 {
		fmt.Println("No documents")
		return
	}

	evaluator := schedule.NewEvaluator(storage.IsVersioned)
	labeler := newLabeler()
	tag := schedule.ParseLocale(cfg.Locale)

	fmt.Printf("%d documents on %s:\n\n", len(docs), ctx.Stage)
	for _, doc := range docs {
		window := evaluator.Window(doc)
		status := schedule.Evaluate(window, now)
		fmt.Printf("%-24s %-10s %s\n", doc.ID, status, doc.Title)
		if label := labeler.LabelFor(status, window, tag); label != "" {
			fmt.Printf("%-24s %-10s %s\n", "", "", label)
		}
	}
}

func runStatus(docID string) {
	now := time.Now()

	db := openDB()
	defer db.Close()

	doc, err := db.Get(versioning.Draft, docID)
	if err != nil {
		log.Fatalf("Error retrieving document: %v", err)
	}
	if doc == nil {
		fmt.Printf("Document not found: %s\n", docID)
		os.Exit(1)
	}

	evaluator := schedule.NewEvaluator(storage.IsVersioned)
	labeler := newLabeler()
	tag := schedule.ParseLocale(cfg.Locale)

	window := evaluator.Window(doc)
	status := schedule.Evaluate(window, now)

	fmt.Printf("Document:  %s (%s)\n", doc.Title, doc.ID)
	fmt.Printf("Status:    %s\n", status)
	if label := labeler.LabelFor(status, window, tag); label != "" {
		fmt.Printf("Label:     %s\n", label)
	}
	if doc.EmbargoUntil != nil {
		fmt.Printf("Embargo:   %s\n", doc.EmbargoUntil.Format(time.RFC3339))
	}
	if doc.ExpireAfter != nil {
		fmt.Printf("Expiry:    %s\n", doc.ExpireAfter.Format(time.RFC3339))
	}
	if doc.PublishedAt != nil {
		fmt.Printf("Published: %s\n", doc.PublishedAt.Format(time.RFC3339))
	}

	// The live snapshot keeps the window it was published with
	live, err := db.Get(versioning.Live, docID)
	if err != nil {
		log.Fatalf("Error retrieving live document: %v", err)
	}
	if live != nil {
		fmt.Printf("Live:      %s\n", schedule.Evaluate(evaluator.Window(live), now))
	}
}

func parseScheduleTime(name, value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		log.Fatalf("Error: invalid -%s time %q: %v", name, value, err)
	}
	return &t
}

func runSchedule(docID, embargo string, embargoSet bool, expire string, expireSet bool) {
	db := openDB()
	defer db.Close()

	doc, err := db.Get(versioning.Draft, docID)
	if err != nil {
		log.Fatalf("Error retrieving document: %v", err)
	}
	if doc == nil {
		fmt.Printf("Document not found: %s\n", docID)
		os.Exit(1)
	}

	// Unset flags keep the current bound
	embargoUntil, expireAfter := doc.EmbargoUntil, doc.ExpireAfter
	if embargoSet {
		embargoUntil = parseScheduleTime("embargo", embargo)
	}
	if expireSet {
		expireAfter = parseScheduleTime("expire", expire)
	}

	if err := db.SetSchedule(docID, embargoUntil, expireAfter); err != nil {
		log.Fatalf("Error setting schedule: %v", err)
	}

	fmt.Printf("✓ Scheduled draft: %s\n", doc.Title)
	if doc.Published {
		fmt.Println("Publish again to apply the new window to the live version.")
	}
}

func runPublish(docID string) {
	db := openDB()
	defer db.Close()

	idx := openIndex()
	defer idx.Close()

	if err := db.Publish(docID, time.Now()); err != nil {
		log.Fatalf("Error publishing: %v", err)
	}
	if err := sync.IndexLive(db, idx, docID); err != nil {
		log.Fatalf("Error indexing: %v", err)
	}
	fmt.Printf("✓ Published: %s\n", docID)
}

func runUnpublish(docID string) {
	db := openDB()
	defer db.Close()

	idx := openIndex()
	defer idx.Close()

	if err := db.Unpublish(docID); err != nil {
		log.Fatalf("Error unpublishing: %v", err)
	}
	if err := sync.IndexLive(db, idx, docID); err != nil {
		log.Fatalf("Error indexing: %v", err)
	}
	fmt.Printf("✓ Unpublished: %s\n", docID)
}

func runSearch(query string, all bool) {
	now := time.Now()

	idx := openIndex()
	defer idx.Close()

	var window *search.WindowFilter
	if !all {
		window = &search.WindowFilter{Now: now}
	}

	results, err := idx.Search(query, 10, window)
	if err != nil {
		log.Fatalf("Error searching: %v", err)
	}

	// Display results
	if len(results) == 0 {
		fmt.Println("No results found")
		return
	}

	evaluator := schedule.NewEvaluator(storage.IsVersioned)
	labeler := newLabeler()
	tag := schedule.ParseLocale(cfg.Locale)

	fmt.Printf("\nFound %d results:\n\n", len(results))

	for i, result := range results {
		fmt.Printf("%d. %s\n", i+1, result.Title)
		if result.Author != "" {
			fmt.Printf("   Author: %s\n", result.Author)
		}
		if result.URL != "" {
			fmt.Printf("   URL: %s\n", result.URL)
		}
		if label := labeler.Label(evaluator.Window(result), now, tag); label != "" {
			fmt.Printf("   Schedule: %s\n", label)
		}
		fmt.Printf("   Score: %.3f\n", result.Score)

		// Show content snippets if available
		if snippets, ok := result.Fragments["Content"]; ok && len(snippets) > 0 {
			fmt.Printf("   Preview: %s\n", snippets[0])
		}
		fmt.Println()
	}
}

func runStats() {
	db := openDB()
	defer db.Close()

	idx := openIndex()
	defer idx.Close()

	draftCount, err := db.Count(versioning.Draft)
	if err != nil {
		log.Fatalf("Error getting draft count: %v", err)
	}
	liveCount, err := db.Count(versioning.Live)
	if err != nil {
		log.Fatalf("Error getting live count: %v", err)
	}
	indexCount, err := idx.Count()
	if err != nil {
		log.Fatalf("Error getting index count: %v", err)
	}

	fmt.Println("=== Index Statistics ===")
	fmt.Printf("Draft documents:    %d\n", draftCount)
	fmt.Printf("Live documents:     %d\n", liveCount)
	fmt.Printf("Documents in index: %d\n", indexCount)
}

func runGetDoc(stage versioning.Stage, docID string) {
	db := openDB()
	defer db.Close()

	// Retrieve document
	doc, err := db.Get(stage, docID)
	if err != nil {
		log.Fatalf("Error retrieving document: %v", err)
	}

	if doc == nil {
		fmt.Printf("Document not found: %s\n", docID)
		os.Exit(1)
	}

	// Output markdown content
	fmt.Println(doc.Content)
}

func runReindex() {
	fmt.Println("Rebuilding Bleve keyword search index...")
	fmt.Println()

	db := openDB()
	defer db.Close()

	liveCount, err := db.Count(versioning.Live)
	if err != nil {
		log.Fatalf("Error counting documents: %v", err)
	}

	fmt.Printf("Found %d live documents in database\n", liveCount)
	startTime := time.Now()

	fmt.Println("Opening Bleve index...")
	idx := openIndex()
	defer idx.Close()

	fmt.Println("Rebuilding index...")
	progressFn := func(current, total int) {
		percent := float64(current) / float64(total) * 100
		fmt.Printf("\rIndexing: %d/%d (%.1f%%)  ", current, total, percent)
	}

	if err := idx.Rebuild(db, progressFn); err != nil {
		log.Fatalf("\nError rebuilding index: %v", err)
	}

	duration := time.Since(startTime)

	indexCount, err := idx.Count()
	if err != nil {
		log.Fatalf("\nError getting index count: %v", err)
	}

	fmt.Println() // New line after progress
	fmt.Println()
	fmt.Println("=== Reindex Complete ===")
	fmt.Printf("Documents indexed: %d\n", indexCount)
	fmt.Printf("Duration:          %v\n", duration.Round(time.Second))
}

func runServe() {
	db := openDB()
	defer db.Close()

	idx := openIndex()
	defer idx.Close()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Error loading timezone: %v", err)
	}
	if cfg.AdminToken == "" {
		log.Printf("Warning: CONTENT_SCHEDULE_ADMIN_TOKEN not set, /admin/ is disabled")
	}

	server, err := web.NewServer(db, idx, web.Options{
		AdminToken:   cfg.AdminToken,
		PreviewToken: cfg.PreviewToken,
		Locale:       schedule.ParseLocale(cfg.Locale),
		Location:     loc,
	})
	if err != nil {
		log.Fatalf("Error creating server: %v", err)
	}

	addr := cfg.Addr()

	fmt.Println()
	fmt.Println("=== Content Schedule Web Server ===")
	fmt.Printf("Server running at: http://%s\n", addr)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	if err := http.ListenAndServe(addr, server.Handler()); err != nil {
		log.Fatalf("Error starting server: %v", err)
	}
}
