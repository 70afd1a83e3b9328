package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/TobiSchelling/nexus/internal/access"
	"github.com/TobiSchelling/nexus/internal/audit"
	"github.com/TobiSchelling/nexus/internal/config"
	"github.com/TobiSchelling/nexus/internal/content"
	"github.com/TobiSchelling/nexus/internal/database"
	"github.com/TobiSchelling/nexus/internal/editor"
	"github.com/TobiSchelling/nexus/internal/hierarchy"
	"github.com/TobiSchelling/nexus/internal/importer"
	"github.com/TobiSchelling/nexus/internal/keywordsync"
	"github.com/TobiSchelling/nexus/internal/links"
	"github.com/TobiSchelling/nexus/internal/logger"
	"github.com/TobiSchelling/nexus/internal/meta"
	"github.com/TobiSchelling/nexus/internal/server"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	log        *logger.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "nexus",
	Short:   "Pillar / sub-pillar / cluster taxonomy for site content",
	Long:    "Nexus tags content items into a three-level SEO hierarchy and reports on it through an admin UI, an audit and a read API.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			log = logger.New("info")
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		log = logger.New(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(metaCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(linksCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("nexus", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/nexus/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the site URL, the feeds to import and the API key variable.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and taxonomy status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		stats, err := db.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		tree, err := hierarchy.Load(ctx, db)
		if err != nil {
			return fmt.Errorf("building hierarchy: %w", err)
		}
		counts := tree.Counts()

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Items:")
		fmt.Printf("  Total: %d\n", stats.TotalItems)
		fmt.Printf("  Published: %d\n", stats.PublishedItems)
		fmt.Printf("  Tagged: %d\n", stats.TaggedItems)
		fmt.Printf("  Content types: %d\n", stats.ContentTypes)
		fmt.Printf("  Meta rows: %d\n", stats.MetaRows)
		fmt.Println("\nHierarchy:")
		fmt.Printf("  Pillars: %d\n", counts.Pillars)
		fmt.Printf("  Sub-pillars: %d\n", counts.SubPillars)
		fmt.Printf("  Clusters: %d\n", counts.Clusters)
		fmt.Printf("  Orphans: %d\n", counts.Orphans)
		if counts.DroppedClusters > 0 {
			fmt.Printf("  Clusters without a sub-pillar: %d\n", counts.DroppedClusters)
		}
		fmt.Println("\nRead API:")
		if cfg.APIKey() == "" {
			fmt.Printf("  Key: not set (export %s)\n", cfg.API.KeyEnv)
		} else {
			fmt.Println("  Key: set")
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin UI and read API",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(db, cfg, access.NewStatic(cfg.Access.Capabilities), log)
		if err != nil {
			return err
		}
		if cfg.APIKey() == "" {
			log.Warn("read api key not set, every api request will be rejected", "env", cfg.API.KeyEnv)
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return srv.ListenAndServe(port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- sync command ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fill empty nexus keywords from the SEO plugin focus keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		synced, err := keywordsync.New(db, access.AllowAll{}, log).BulkSync(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d items with keywords from SEO plugins.\n", synced)
		return nil
	},
}

// --- import command ---

var (
	importFeedURL     string
	importContentType string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import items from the configured feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		feeds := cfg.Import.Feeds
		if importFeedURL != "" {
			feeds = []config.Feed{{URL: importFeedURL, ContentType: importContentType}}
		}
		if len(feeds) == 0 {
			fmt.Println("No feeds configured. Add one under import.feeds or pass --feed.")
			return nil
		}

		im := importer.New(db, cfg.ImportTimeout(), cfg.Import.FetchContent, log)
		result := im.ImportAll(cmd.Context(), feeds)

		fmt.Println("\nImport complete:")
		fmt.Printf("  Total found: %d\n", result.Found)
		fmt.Printf("  Created: %d\n", result.Created)
		fmt.Printf("  Updated: %d\n", result.Updated)
		fmt.Printf("  Skipped: %d\n", result.Skipped)
		if result.Failed > 0 {
			fmt.Printf("  Failed feeds: %d\n", result.Failed)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFeedURL, "feed", "", "Import this feed URL instead of the configured feeds")
	importCmd.Flags().StringVar(&importContentType, "content-type", "post", "Content type for items of --feed")
}

// --- items command ---

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Manage content items",
}

var (
	itemContentType string
	itemStatus      string
	itemBody        string
	itemTags        []string
	listContentType string
)

var itemsAddCmd = &cobra.Command{
	Use:   "add [title] [url]",
	Short: "Add or replace an item by URL",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		id, created, err := db.UpsertItem(ctx, database.NewItem{
			Title:       args[0],
			URL:         args[1],
			Content:     itemBody,
			ContentType: itemContentType,
			Status:      itemStatus,
		})
		if err != nil {
			return err
		}
		if len(itemTags) > 0 {
			if err := db.SetItemTags(ctx, id, itemTags); err != nil {
				return err
			}
		}

		verb := "Updated"
		if created {
			verb = "Added"
		}
		fmt.Printf("%s item [%d]: %s\n", verb, id, args[0])
		return nil
	},
}

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List published items with their nexus type",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		f := content.Filter{Status: content.StatusPublish, Order: content.OrderTitle}
		if listContentType != "" {
			f.ContentTypes = []string{listContentType}
		}
		items, err := db.QueryItems(ctx, f)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No items. Add one with: nexus items add, or run: nexus import")
			return nil
		}

		acc := meta.NewAccessor(db)
		for _, it := range items {
			tag, err := acc.Tag(ctx, it.ID)
			if err != nil {
				return err
			}
			label := "-"
			if tag.HasType() {
				label = tag.Type.Label()
			}
			fmt.Printf("  [%d] %-10s %s (%s)\n", it.ID, label, it.Title, it.ContentTypeName)
			if tag.Keyword != "" {
				fmt.Printf("        keyword: %s\n", tag.Keyword)
			}
		}
		return nil
	},
}

var (
	tagType    string
	tagKeyword string
	tagParent  string
)

var itemsTagCmd = &cobra.Command{
	Use:   "tag [id]",
	Short: "Set the nexus type, keyword and parent keyword of an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ed := newEditor(db)
		ctx := cmd.Context()
		if err := ed.SaveItem(ctx, id, editor.Fields{Type: tagType, Keyword: tagKeyword, ParentKeyword: tagParent}); err != nil {
			return err
		}
		t, err := ed.Load(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Item [%d] %s: type=%q keyword=%q parent=%q\n", id, t.Title, t.Tag.Type, t.Tag.Keyword, t.Tag.ParentKeyword)
		return nil
	},
}

var itemsBulkTypeCmd = &cobra.Command{
	Use:   "bulk-type [type] [id...]",
	Short: "Set the nexus type of several items",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args)-1)
		for _, raw := range args[1:] {
			id, err := parseID(raw)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		updated, err := newEditor(db).BulkUpdateType(cmd.Context(), args[0], ids)
		if err != nil {
			return err
		}
		fmt.Printf("Updated %d items to %q.\n", updated, args[0])
		return nil
	},
}

func init() {
	itemsAddCmd.Flags().StringVar(&itemContentType, "content-type", "post", "Content type")
	itemsAddCmd.Flags().StringVar(&itemStatus, "status", content.StatusPublish, "Status (publish or draft)")
	itemsAddCmd.Flags().StringVar(&itemBody, "body", "", "HTML body")
	itemsAddCmd.Flags().StringSliceVar(&itemTags, "tag", nil, "Platform tag (repeatable)")

	itemsListCmd.Flags().StringVar(&listContentType, "content-type", "", "Only list this content type")

	itemsTagCmd.Flags().StringVar(&tagType, "type", "", "Nexus type: pillar, sub-pillar or cluster (empty clears)")
	itemsTagCmd.Flags().StringVar(&tagKeyword, "keyword", "", "Nexus keyword")
	itemsTagCmd.Flags().StringVar(&tagParent, "parent", "", "Parent keyword")

	itemsCmd.AddCommand(itemsAddCmd)
	itemsCmd.AddCommand(itemsListCmd)
	itemsCmd.AddCommand(itemsTagCmd)
	itemsCmd.AddCommand(itemsBulkTypeCmd)
}

// --- meta command ---

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Read and write raw item metadata",
}

var metaGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Print every metadata key of an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		all, err := db.AllMeta(cmd.Context(), id)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", k, all[k])
		}
		return nil
	},
}

var metaSetCmd = &cobra.Command{
	Use:   "set [id] [key] [value]",
	Short: "Write one metadata value, e.g. an SEO plugin field",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		it, err := db.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if it == nil {
			return fmt.Errorf("item %d not found", id)
		}
		if err := db.SetMeta(ctx, id, args[1], args[2]); err != nil {
			return err
		}
		fmt.Printf("Item [%d] %s = %s\n", id, args[1], args[2])
		return nil
	},
}

func init() {
	metaCmd.AddCommand(metaGetCmd)
	metaCmd.AddCommand(metaSetCmd)
}

// --- tree command ---

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the pillar / sub-pillar / cluster hierarchy",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tree, err := hierarchy.Load(cmd.Context(), db)
		if err != nil {
			return err
		}
		if tree.Empty() {
			fmt.Println("No items with a nexus type found.")
			return nil
		}

		for _, p := range tree.Pillars {
			fmt.Printf("%s [%s]\n", p.Title, p.Tag.Keyword)
			for _, sp := range p.SubPillars {
				printSubPillar(tree, sp, "  ")
			}
		}
		if len(tree.OrphanSubPillars) > 0 {
			fmt.Println("\nOrphan sub-pillars:")
			for _, sp := range tree.OrphanSubPillars {
				printSubPillar(tree, sp, "  ")
			}
		}
		if len(tree.DroppedClusters) > 0 {
			fmt.Println("\nClusters without a sub-pillar:")
			for _, c := range tree.DroppedClusters {
				fmt.Printf("  %s (parent %q)\n", c.Title, c.Tag.ParentKeyword)
			}
		}
		return nil
	},
}

func printSubPillar(tree *hierarchy.Tree, sp meta.Tagged, indent string) {
	fmt.Printf("%s%s [%s]\n", indent, sp.Title, sp.Tag.Keyword)
	for _, c := range tree.Clusters(sp) {
		fmt.Printf("%s  %s [%s]\n", indent, c.Title, c.Tag.Keyword)
	}
}

// --- audit command ---

var (
	auditIssue string
	auditPage  int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List published items with incomplete SEO metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		engine := audit.NewEngine(db, audit.Options{
			SiteURL:           cfg.Site.URL,
			LowScoreThreshold: cfg.Audit.LowScoreThreshold,
			PageSize:          cfg.Audit.PerPage,
		}, log)
		report, err := engine.FindIncomplete(cmd.Context(), audit.Query{Page: auditPage, Issue: auditIssue})
		if err != nil {
			return err
		}

		fmt.Printf("%d items with issues (page %d of %d)\n\n", report.Total, report.Page, report.TotalPages)
		for _, f := range report.Items {
			labels := make([]string, len(f.Issues))
			for i, is := range f.Issues {
				labels[i] = is.Label
			}
			fmt.Printf("  [%d] %s\n        %s\n", f.Item.ID, f.Item.Title, strings.Join(labels, ", "))
		}

		fmt.Println("\nBy issue:")
		for _, flt := range audit.Filters {
			if flt.Code == "" {
				continue
			}
			fmt.Printf("  %s: %d\n", flt.Label, report.ByIssue[flt.Code])
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditIssue, "issue", "", "Only items with this issue code (e.g. no_tags)")
	auditCmd.Flags().IntVar(&auditPage, "page", 1, "Page number")
}

// --- links command ---

var (
	linksTypes  []string
	linksFormat string
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Print the tagged items as the read API returns them",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := links.ParseFormat(linksFormat)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		p, err := links.NewProjector(db, cfg.Site.Charset)
		if err != nil {
			return err
		}
		list, err := p.Links(cmd.Context(), links.ParseTypes(linksTypes))
		if err != nil {
			return err
		}
		return p.Write(os.Stdout, format, list)
	},
}

func init() {
	linksCmd.Flags().StringSliceVar(&linksTypes, "type", nil, "Nexus types to include (default all)")
	linksCmd.Flags().StringVar(&linksFormat, "format", "json", "Output format: json or xml")
}

func newEditor(db *database.DB) *editor.Editor {
	checker := access.AllowAll{}
	return editor.New(db, checker, keywordsync.New(db, checker, log), cfg.Editor.PerPage, log)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item ID: %s", raw)
	}
	return id, nil
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "nexus.db")
	return database.Open(dbPath, database.WithLogger(log))
}
