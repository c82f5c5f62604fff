package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bnema/sitedata-sweeper/internal/converter"
	"github.com/bnema/sitedata-sweeper/internal/fetcher"
	"github.com/bnema/sitedata-sweeper/internal/pending"
	"github.com/bnema/sitedata-sweeper/internal/rules"
	"github.com/bnema/sitedata-sweeper/internal/settings"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNoPendingStore = errors.New("pending.path is not set; the pending set only lives in memory")

var resolveCmd = &cobra.Command{
	Use:   "resolve <hostname>...",
	Short: "Show which cleanup type applies to each hostname",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Inspect the domains queued for cleanup at next startup",
}

var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending domains",
	RunE:  runPendingList,
}

var pendingClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget all pending domains",
	RunE:  runPendingClear,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cookie rules as WebKit content blocker JSON",
	RunE:  runExport,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE:  runInit,
}

func init() {
	pendingCmd.AddCommand(pendingListCmd, pendingClearCmd)

	exportCmd.Flags().StringP("output", "o", "./output", "output directory")
	exportCmd.Flags().Bool("dry-run", false, "show what would be generated without writing files")
}

func runResolve(cmd *cobra.Command, args []string) error {
	c, err := loadedConfig()
	if err != nil {
		return err
	}
	log, err := commandLogger()
	if err != nil {
		return err
	}
	snap, err := buildSnapshot(cmd.Context(), c, log)
	if err != nil {
		return err
	}

	store := rules.New(snap.Rules, snap.FallbackRule)
	out := cmd.OutOrStdout()
	for _, host := range args {
		r, ok := store.Match(host)
		if !ok {
			fmt.Fprintf(out, "%s: %s (fallback)\n", host, store.Fallback())
			continue
		}
		fmt.Fprintf(out, "%s: %s (rule %q)\n", host, r.Type, r.Pattern)
		if verbose {
			for _, m := range store.Matching(host) {
				fmt.Fprintf(out, "    matches %s %s\n", m.Pattern, m.Type)
			}
		}
	}
	return nil
}

func openPendingStore(cmd *cobra.Command) (*pending.Set, error) {
	c, err := loadedConfig()
	if err != nil {
		return nil, err
	}
	if c.Pending.Path == "" {
		return nil, errNoPendingStore
	}
	log, err := commandLogger()
	if err != nil {
		return nil, err
	}
	return openPending(cmd.Context(), c, log)
}

func runPendingList(cmd *cobra.Command, args []string) error {
	set, err := openPendingStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = set.Close() }()

	out := cmd.OutOrStdout()
	hosts := set.Hostnames()
	if len(hosts) == 0 {
		fmt.Fprintln(out, "No pending domains")
		return nil
	}
	fmt.Fprintf(out, "Pending domains (%d):\n", len(hosts))
	for _, h := range hosts {
		fmt.Fprintf(out, "  %s\n", h)
	}
	return nil
}

func runPendingClear(cmd *cobra.Command, args []string) error {
	set, err := openPendingStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = set.Close() }()

	n := set.Len()
	set.Clear()
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d pending domains\n", n)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	outputDir, _ := cmd.Flags().GetString("output")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	c, err := loadedConfig()
	if err != nil {
		return err
	}
	log, err := commandLogger()
	if err != nil {
		return err
	}
	collected, err := settings.CollectRules(cmd.Context(), c, fetcher.New(c.HTTP), log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exporting %d cleanup rules...\n", len(collected))
	if dryRun {
		fmt.Fprintln(out, "[DRY RUN] No files will be written")
	}

	conv := converter.New()
	webkit := converter.Deduplicate(conv.Convert(collected, c.FallbackRule, c.CleanThirdPartyCookies.BeforeCreation))
	stats := conv.Stats()
	fmt.Fprintf(out, "  Converted: %d rules (skipped: %d)\n", len(webkit), stats.Skipped)
	if verbose {
		for reason, count := range stats.SkipReasons {
			fmt.Fprintf(out, "    - %s: %d\n", reason, count)
		}
	}

	if len(webkit) == 0 {
		fmt.Fprintln(out, "\nNothing to export")
		return nil
	}

	parts := converter.NewSplitter(c.Output.MaxRulesPerFile).Split(webkit, "cookie-rules")
	if converter.Crosses(parts) {
		fmt.Fprintf(out, "  WARNING: exceptions span %d files and only apply within their own file; raise output.max_rules_per_file\n", len(parts))
	}
	for _, part := range parts {
		if dryRun {
			fmt.Fprintf(out, "  would write %s.json (%d rules)\n", part.Name, len(part.Rules))
			continue
		}
		if err := writeJSON(outputDir, part.Name+".json", part.Rules); err != nil {
			fmt.Fprintf(out, "  ERROR writing %s: %v\n", part.Name, err)
		}
	}

	fmt.Fprintln(out, "\nDone!")
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := "./configs/sweeper.toml"
	if cfgFile != "" {
		configPath = cfgFile
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", configPath)
	return nil
}

// commandLogger logs only when --verbose is set
func commandLogger() (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return newLogger()
}

func writeJSON(dir, filename string, data any) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

const defaultConfig = `# Site data sweeper configuration

# Containers swept at startup
containers = ["firefox-default"]

# Cleanup type for hostnames no rule matches: never, startup, leave, instantly
fallback_rule = "leave"

# Optional local rules file, one "pattern type" per line
# rules_file = "./configs/rules.txt"

# HTTP client settings for rule list subscriptions
[http]
timeout = "30s"
retries = 3

# WebKit export settings
[output]
max_rules_per_file = 50000

# Persist the domains queued for cleanup at next startup.
# Leave empty to keep them in memory only.
[pending]
path = ""

[domain_leave]
enabled = true
types = ["cookies", "localStorage"]

[instantly]
enabled = true
types = ["cookies", "localStorage"]

[startup]
enabled = true
types = ["cookies", "localStorage"]

[clean_third_party_cookies]
before_creation = false

# Rules: the most specific matching pattern wins
[[rules]]
pattern = "*.github.com"
type = "never"

[[rules]]
pattern = "accounts.google.com"
type = "startup"

# Remote rule lists
# Set enabled = true to subscribe
[[rule_lists]]
name = "trackers"
url = "https://example.org/sweeper/trackers.txt"
enabled = false
`
