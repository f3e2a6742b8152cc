package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/sponsorscan/sponsorscan/internal/audience"
	"github.com/sponsorscan/sponsorscan/internal/config"
	"github.com/sponsorscan/sponsorscan/internal/contact"
	"github.com/sponsorscan/sponsorscan/internal/history"
	"github.com/sponsorscan/sponsorscan/internal/llm"
	"github.com/sponsorscan/sponsorscan/internal/mailbox"
	"github.com/sponsorscan/sponsorscan/internal/pipeline"
	"github.com/sponsorscan/sponsorscan/internal/store"
	"github.com/sponsorscan/sponsorscan/internal/tags"
	"github.com/sponsorscan/sponsorscan/internal/web"
)

var cfgFile string

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "sponsorscan",
		Short: "SponsorScan - Newsletter sponsor detection pipeline",
		Long: `SponsorScan reads newsletters from an email inbox, detects sponsor
and affiliate placements in them, and builds a database of companies
that pay to appear in newsletters, including a contact email for each.

It connects to your inbox over IMAP, scores sponsor candidates, and
stores the results in MongoDB.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sponsorscan/config.yaml)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(reanalyzeCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long:  "Create a new configuration file with inbox, database, and analysis settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func scanCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan cycle over unread newsletters",
		Long: `Fetch a batch of unread emails from the configured inbox, detect
sponsor and affiliate placements, and store the results. Each email
is marked read once its analysis is complete.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the cycle result as JSON")

	return cmd
}

func reanalyzeCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reanalyze",
		Short: "Retry contact discovery for sponsors without a contact",
		Long: `Re-run contact discovery for sponsors that were saved without a
contact email and are still pending.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReanalyze(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of sponsors to reanalyze")

	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start a local HTTP server exposing the scanner:

  POST /api/run     trigger a scan cycle
  GET  /api/stats   sponsor repository statistics
  GET  /api/cycles  recent cycle history`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, \":8090\")")

	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show sponsor database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scan cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent cycles to show")

	return cmd
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("📬 SponsorScan Configuration Setup")
	fmt.Println("==================================")
	fmt.Println()

	cfg := &config.Config{}

	fmt.Println("📧 Inbox (the mailbox that receives your newsletters)")
	fmt.Println()

	provider := prompt(reader, "Provider (gmail/outlook/imap) [gmail]: ")
	if provider == "" {
		provider = "gmail"
	}
	cfg.Inbox.Provider = provider
	cfg.Inbox.Email = prompt(reader, "Email address: ")
	cfg.Inbox.Password = prompt(reader, "App password (16-character code): ")
	if provider == "imap" {
		cfg.Inbox.Server = prompt(reader, "IMAP server: ")
		cfg.Inbox.Port = 993
	}

	fmt.Println()
	fmt.Println("🗄️  MongoDB")
	fmt.Println()

	uri := prompt(reader, "Connection URI [mongodb://localhost:27017]: ")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	cfg.Mongo.URI = uri

	fmt.Println()
	fmt.Println("🤖 LLM (optional, improves contact discovery and tagging)")
	fmt.Println()

	cfg.LLM.APIKey = prompt(reader, "OpenAI API key (leave empty to use OPENAI_API_KEY or skip): ")

	fmt.Println()
	fmt.Println("📰 Your newsletter (so your own links are never recorded as sponsors)")
	fmt.Println()

	cfg.Newsletter.Name = prompt(reader, "Newsletter name (optional): ")
	domains := prompt(reader, "Your domains, comma-separated (optional): ")
	for _, d := range strings.Split(domains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			cfg.Newsletter.SelfDomains = append(cfg.Newsletter.SelfDomains, d)
		}
	}

	configPath := resolveConfigPath()
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("✅ Configuration saved to: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit the config file if needed")
	fmt.Println("  2. Run 'sponsorscan scan' to process unread newsletters")
	fmt.Println("  3. Run 'sponsorscan stats' to see what was found")

	return nil
}

// buildPipeline wires every component from the config. The returned
// cleanup closes the Mongo client and the history store.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Orchestrator, *store.Client, *history.Store, func(), error) {
	client, err := store.NewClient(ctx, cfg.Mongo)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	hist, err := history.NewStore(history.DefaultDBPath())
	if err != nil {
		client.Close(ctx)
		return nil, nil, nil, nil, fmt.Errorf("failed to initialize history: %w", err)
	}

	cleanup := func() {
		hist.Close()
		client.Close(context.Background())
	}

	llmClient := llm.New(cfg.LLM)
	sponsors := client.Sponsors()

	orch, err := pipeline.New(cfg.Analysis, pipeline.Deps{
		Mailbox:   mailbox.New(cfg.Inbox),
		Sponsors:  sponsors,
		Affs:      client.Affiliates(),
		Denied:    client.DeniedDomains(),
		Contacts:  contact.NewDiscoverer(llmClient, cfg.Analysis),
		Audience:  audience.New(llmClient, sponsors.MaxAudienceForNewsletter),
		Tagger:    tags.New(llmClient),
		Recorder:  hist,
		SelfOwned: cfg.Newsletter.SelfDomains,
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}

	return orch, client, hist, cleanup, nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runScan(asJSON bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch, _, _, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if !cfg.LLM.Enabled() {
		fmt.Println("ℹ️  No LLM API key configured; using scrape and heuristic fallbacks")
	}

	fmt.Printf("📬 Scanning up to %d unread emails...\n", cfg.Analysis.MaxEmailsPerRun)
	fmt.Println()

	result := orch.RunCycle(ctx)

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("📊 Cycle complete in %.1fs\n", result.DurationSeconds)
	fmt.Printf("  Emails processed: %d\n", result.EmailsProcessed)
	fmt.Printf("  New sponsors:     %d\n", result.NewSponsorsAdded)
	fmt.Printf("  Complete:         %d\n", result.Complete)
	fmt.Printf("  Need review:      %d\n", result.NeedReview)

	if len(result.RejectionStats) > 0 {
		fmt.Println()
		fmt.Println("  Rejections:")
		for reason, count := range result.RejectionStats {
			fmt.Printf("    %-22s %d\n", reason, count)
		}
	}

	if result.Error != "" {
		return fmt.Errorf("cycle failed: %s", result.Error)
	}
	return nil
}

func runReanalyze(limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch, _, _, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("🔁 Reanalyzing up to %d pending sponsors...\n", limit)

	updated, err := orch.ReanalyzePending(ctx, limit)
	if err != nil {
		return fmt.Errorf("reanalysis failed: %w", err)
	}

	fmt.Printf("✅ Found contacts for %d sponsors\n", updated)
	return nil
}

func runServe(addr string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch, client, hist, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	server := web.NewServer(addr, orch, client.Sponsors(), hist)

	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	return server.ListenAndServe()
}

func runStats() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := store.NewClient(ctx, cfg.Mongo)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer client.Close(ctx)

	stats, err := client.Sponsors().Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Println("📊 SponsorScan Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Printf("  Total sponsors:  %d\n", stats.Total)
	fmt.Printf("  Complete:        %d\n", stats.Complete)
	fmt.Printf("  Pending contact: %d\n", stats.Pending)
	fmt.Printf("  Manual review:   %d\n", stats.ManualReview)

	return nil
}

func runHistory(limit int) error {
	hist, err := history.NewStore(history.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer hist.Close()

	totals, err := hist.Totals()
	if err != nil {
		return fmt.Errorf("failed to get totals: %w", err)
	}

	fmt.Println("📜 Scan History")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Printf("  Cycles run:       %d\n", totals.Cycles)
	fmt.Printf("  Emails processed: %d\n", totals.EmailsProcessed)
	fmt.Printf("  Sponsors added:   %d\n", totals.NewSponsors)

	records, err := hist.Recent(limit)
	if err != nil {
		return fmt.Errorf("failed to get recent cycles: %w", err)
	}

	if len(records) > 0 {
		fmt.Println()
		fmt.Printf("Recent cycles (last %d):\n", limit)
		for _, r := range records {
			status := "✅"
			if r.Error != "" {
				status = "❌"
			}
			fmt.Printf("%s %s - %d emails, %d new sponsors (%.1fs)\n",
				status,
				r.StartedAt.Format("2006-01-02 15:04"),
				r.EmailsProcessed,
				r.NewSponsorsAdded,
				r.DurationSeconds,
			)
			if r.Error != "" {
				fmt.Printf("   Error: %s\n", r.Error)
			}
		}
	}

	return nil
}

func prompt(reader *bufio.Reader, message string) string {
	fmt.Print(message)
	input, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(input)
}
