// skillvault-cli is an interactive inspection shell over a snapshot
// database. It runs commands against the store directly, so the daemon must
// not hold the database open at the same time.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/skillvault/skillvault/internal/logging"
	"github.com/skillvault/skillvault/internal/storage"
	"github.com/skillvault/skillvault/internal/storage/export"
	"github.com/skillvault/skillvault/internal/storage/query"
	"github.com/skillvault/skillvault/internal/storage/types"
	"github.com/skillvault/skillvault/internal/store"
)

func main() {
	dbPath := flag.String("db", "skillvault.db", "database path")
	flag.Parse()

	// The shell is for humans; keep log noise out of the prompt.
	logging.Init("error", false)

	cfg := storage.DefaultConfig()
	cfg.Store.Path = *dbPath

	svc, err := storage.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer svc.Close()

	sh := &shell{svc: svc}

	// Non-interactive invocation: run the single command from argv.
	if flag.NArg() > 0 || !term.IsTerminal(int(os.Stdin.Fd())) {
		sh.execute(strings.Join(flag.Args(), " "))
		return
	}

	fmt.Printf("skillvault-cli (db: %s). Type 'help' for commands, 'exit' to quit.\n", *dbPath)
	p := prompt.New(
		sh.execute,
		sh.complete,
		prompt.OptionTitle("skillvault"),
		prompt.OptionPrefix("skillvault> "),
		prompt.OptionPrefixTextColor(prompt.Cyan),
	)
	p.Run()
}

type shell struct {
	svc *storage.Service
}

var commands = []prompt.Suggest{
	{Text: "trend", Description: "trend <entity> <metric> <timeframe>: plot a metric over time"},
	{Text: "levelups", Description: "levelups <entity> [timeframe]: recent level-up events"},
	{Text: "compact", Description: "compact <hourly|daily|weekly|all>: run a compaction stage"},
	{Text: "stats", Description: "service and compaction statistics"},
	{Text: "config", Description: "retention policy and its history"},
	{Text: "export", Description: "export <hourly|daily|weekly|all> <path>: write Parquet"},
	{Text: "help", Description: "list commands"},
	{Text: "exit", Description: "quit"},
}

func (s *shell) complete(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	if strings.Contains(text, " ") {
		// Argument positions: offer timeframes and tiers where they fit.
		fields := strings.Fields(text)
		switch fields[0] {
		case "trend", "levelups":
			var out []prompt.Suggest
			for _, tf := range types.AllTimeframes() {
				out = append(out, prompt.Suggest{Text: tf.String()})
			}
			return prompt.FilterHasPrefix(out, d.GetWordBeforeCursor(), true)
		case "compact", "export":
			tiers := []prompt.Suggest{{Text: "hourly"}, {Text: "daily"}, {Text: "weekly"}, {Text: "all"}}
			return prompt.FilterHasPrefix(tiers, d.GetWordBeforeCursor(), true)
		}
		return nil
	}
	return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
}

func (s *shell) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "trend":
		s.cmdTrend(fields[1:])
	case "levelups":
		s.cmdLevelUps(fields[1:])
	case "compact":
		s.cmdCompact(fields[1:])
	case "stats":
		s.cmdStats()
	case "config":
		s.cmdConfig()
	case "export":
		s.cmdExport(fields[1:])
	case "help":
		s.cmdHelp()
	case "exit", "quit":
		s.svc.Close()
		os.Exit(0)
	default:
		fmt.Printf("unknown command %q, try 'help'\n", fields[0])
	}
}

func (s *shell) cmdHelp() {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\t%s\n", c.Text, c.Description)
	}
	w.Flush()
}

func (s *shell) cmdTrend(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: trend <entity> <metric> [timeframe]")
		return
	}
	entity, metric := args[0], strings.ToUpper(args[1])

	tf := types.TimeframeMonth
	if len(args) > 2 {
		parsed, err := types.ParseTimeframe(args[2])
		if err != nil {
			fmt.Printf("bad timeframe %q: %v\n", args[2], err)
			return
		}
		tf = parsed
	}

	result := s.svc.GetTrend(context.Background(), entity, metric, tf)
	switch r := result.(type) {
	case query.Success:
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tLEVEL")
		for _, p := range r.Points {
			fmt.Fprintf(w, "%s\t%d\n", p.Time().Format(time.RFC3339), p.Level)
		}
		w.Flush()
		fmt.Printf("%d points\n", len(r.Points))
	case query.NoData:
		fmt.Printf("no data: %s\n", r.Reason)
	case query.Error:
		fmt.Printf("error: %s\n", r.Message)
	}
}

func (s *shell) cmdLevelUps(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: levelups <entity> [timeframe]")
		return
	}

	tf := types.TimeframeMonth
	if len(args) > 1 {
		parsed, err := types.ParseTimeframe(args[1])
		if err != nil {
			fmt.Printf("bad timeframe %q: %v\n", args[1], err)
			return
		}
		tf = parsed
	}

	events, err := s.svc.GetLevelUps(args[0], tf, 50)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if len(events) == 0 {
		fmt.Println("no level-ups")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tSKILL\tLEVEL")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%d → %d\n",
			time.UnixMilli(e.TimestampMs).UTC().Format(time.RFC3339), e.Skill, e.OldLevel, e.NewLevel)
	}
	w.Flush()
}

func (s *shell) cmdCompact(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: compact <hourly|daily|weekly|all>")
		return
	}

	var compacted, deleted int64
	switch args[0] {
	case "hourly":
		compacted, deleted = s.svc.CompactRawToHourly()
	case "daily":
		compacted, deleted = s.svc.CompactHourlyToDaily()
	case "weekly":
		compacted, deleted = s.svc.CompactDailyToWeekly()
	case "all":
		compacted, deleted = s.svc.CompactAll()
	default:
		fmt.Printf("unknown stage %q\n", args[0])
		return
	}
	fmt.Printf("compacted %d, deleted %d\n", compacted, deleted)
}

func (s *shell) cmdStats() {
	stats := s.svc.Stats()
	fmt.Printf("uptime:              %s\n", stats.Uptime.Round(time.Second))
	fmt.Printf("snapshots recorded:  %d\n", stats.SnapshotsRecorded)
	fmt.Printf("level-ups recorded:  %d\n", stats.LevelUpsRecorded)
	fmt.Printf("record failures:     %d\n", stats.RecordFailures)
	fmt.Printf("compaction runs:     %d (%d failed)\n", stats.Compaction.StageRuns, stats.Compaction.StageFailures)
	fmt.Printf("rows compacted:      %d\n", stats.Compaction.RowsCompacted)
	fmt.Printf("rows deleted:        %d\n", stats.Compaction.RowsDeleted)

	// Last-run metadata, if any stage has run.
	st := s.svc.Store()
	keys := map[string]string{
		"raw to hourly":   store.MetaLastCompactionHourly,
		"hourly to daily": store.MetaLastCompactionDaily,
		"daily to weekly": store.MetaLastCompactionWeekly,
	}
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v, err := st.GetMetadata(keys[name]); err == nil && v != "" {
			fmt.Printf("last %s: %s\n", name, v)
		}
	}
}

func (s *shell) cmdConfig() {
	policy := s.svc.RetentionPolicy()
	fmt.Printf("effective policy: raw=%dd hourly=%dd daily=%dd weekly=%dy\n",
		policy.RawDays, policy.HourlyDays, policy.DailyDays, policy.WeeklyYears)

	history, err := s.svc.ConfigHistory()
	if err != nil {
		fmt.Printf("history: %v\n", err)
		return
	}
	if len(history) == 0 {
		fmt.Println("no recorded history (defaults in effect)")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EFFECTIVE FROM\tRAW\tHOURLY\tDAILY\tWEEKLY")
	for _, snap := range history {
		fmt.Fprintf(w, "%s\t%dd\t%dd\t%dd\t%dy\n",
			time.UnixMilli(snap.EffectiveFromMs).UTC().Format(time.RFC3339),
			snap.Policy.RawDays, snap.Policy.HourlyDays, snap.Policy.DailyDays, snap.Policy.WeeklyYears)
	}
	w.Flush()
}

func (s *shell) cmdExport(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: export <hourly|daily|weekly|all> <path>")
		return
	}

	exp := export.New(s.svc.Store(), export.DefaultOptions())

	var n int64
	var err error
	switch args[0] {
	case "all":
		n, err = exp.ExportAllTiers(args[1])
	case "hourly", "daily", "weekly":
		tier, perr := types.ParseTier(args[0])
		if perr != nil {
			fmt.Printf("error: %v\n", perr)
			return
		}
		n, err = exp.ExportTier(args[1], tier)
	default:
		fmt.Printf("unknown tier %q\n", args[0])
		return
	}
	if err != nil {
		fmt.Printf("export: %v\n", err)
		return
	}
	fmt.Printf("wrote %d rows\n", n)
}
