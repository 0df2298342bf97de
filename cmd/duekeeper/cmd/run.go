package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/duekeeper/duekeeper/internal/core/config"
	"github.com/duekeeper/duekeeper/internal/core/db"
	"github.com/duekeeper/duekeeper/internal/core/logging"
	"github.com/duekeeper/duekeeper/internal/dataset"
	"github.com/duekeeper/duekeeper/internal/ingest"
	"github.com/duekeeper/duekeeper/internal/report"
	"github.com/duekeeper/duekeeper/internal/rules"
	"github.com/duekeeper/duekeeper/internal/rulesets"
	"github.com/duekeeper/duekeeper/internal/types"
)

const Version = "0.1.0"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate rule chains over a line-item export and write reports",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("rulesets", "", "ruleset YAML file (required)")
	runCmd.Flags().String("input", "", "FBL5N line-item export file (required)")
	runCmd.Flags().String("dms", "", "UDM_DISPUTE case export file (optional)")
	runCmd.Flags().String("entity", "", "report only the named entity")
	runCmd.Flags().String("out", "", "report output directory (overrides config)")
	runCmd.Flags().String("country", "", "country of the export scope")
	runCmd.Flags().String("company-code", "", "company code of the export scope")
	runCmd.Flags().String("case-pattern", `\d{6,10}`, "case number pattern for ID extraction")
	runCmd.MarkFlagRequired("rulesets")
	runCmd.MarkFlagRequired("input")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(logLevel, logFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	rulesetsPath, _ := cmd.Flags().GetString("rulesets")
	inputPath, _ := cmd.Flags().GetString("input")
	dmsPath, _ := cmd.Flags().GetString("dms")
	onlyEntity, _ := cmd.Flags().GetString("entity")
	country, _ := cmd.Flags().GetString("country")
	companyCode, _ := cmd.Flags().GetString("company-code")
	casePattern, _ := cmd.Flags().GetString("case-pattern")
	if cmd.Flags().Changed("out") {
		outDir, _ := cmd.Flags().GetString("out")
		cfg.ReportDir = outDir
	}

	entities, err := rulesets.LoadFile(rulesetsPath)
	if err != nil {
		return fmt.Errorf("failed to load rulesets: %w", err)
	}

	raw, err := os.ReadFile(resolveInputPath(cfg.DataDir, inputPath))
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	ds, err := ingest.ParseLineItems(string(raw), casePattern, ingest.Scope{
		Country:     country,
		CompanyCode: companyCode,
	})
	if err != nil {
		return fmt.Errorf("failed to parse line items: %w", err)
	}

	if dmsPath != "" {
		rawDMS, err := os.ReadFile(resolveInputPath(cfg.DataDir, dmsPath))
		if err != nil {
			return fmt.Errorf("failed to read dispute export: %w", err)
		}
		disputes, err := ingest.ParseDisputes(string(rawDMS))
		if err != nil {
			return fmt.Errorf("failed to parse dispute export: %w", err)
		}
		ds = ingest.MergeDisputes(ds, disputes)
		log.Info("dispute data merged",
			zap.Int("disputes", disputes.Len()),
			zap.Int("records", ds.Len()))
	}

	runID := types.NewRunID()
	startedAt := time.Now()
	log.Info("run starting",
		zap.String("version", Version),
		zap.String("run_id", string(runID)),
		zap.Int("records", ds.Len()),
		zap.Int("entities", len(entities)))

	res, err := runEngine(ds, entities, cfg, log.Named("engine"))
	if err != nil {
		return fmt.Errorf("run %s failed: %w", runID, err)
	}

	if err := os.MkdirAll(cfg.ReportDir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	processed := make(map[string]bool, len(res.Chains))
	for _, c := range res.Chains {
		processed[c.Entity] = true
	}
	write, empty := reportPlan(entities, processed, onlyEntity)
	for _, name := range empty {
		log.Warn("entity resolved no records", zap.String("entity", name))
	}

	var lastSummary report.Summary
	reported := 0
	for _, entity := range write {
		rep := report.Assemble(res, entity, report.DefaultClassifier, log.Named("report"))
		rep.RunID = runID
		path := filepath.Join(cfg.ReportDir, fmt.Sprintf("%s_%s.xlsx", entity.Name, runID))
		if err := report.WriteWorkbook(path, rep); err != nil {
			return fmt.Errorf("failed to write report for %s: %w", entity.Name, err)
		}
		log.Info("report written",
			zap.String("entity", entity.Name),
			zap.String("path", path))
		lastSummary = rep.Summary
		reported++
	}

	duration := time.Since(startedAt)
	if dbURL != "" && reported > 0 {
		if err := persistSummary(runID, res, lastSummary, startedAt, duration, cfg.LogRetentionDays); err != nil {
			log.Warn("failed to persist run summary", zap.Error(err))
		}
	}

	for _, c := range res.Chains {
		if c.Failed() {
			log.Error("entity chain failed",
				zap.String("entity", c.Entity),
				zap.Error(c.Err))
		}
	}
	if failed := res.FailedEntities(); len(failed) > 0 {
		return fmt.Errorf("run %s completed with %d failed entity chains", runID, len(failed))
	}

	log.Info("run completed",
		zap.String("run_id", string(runID)),
		zap.Int("reports", reported),
		zap.Int("unresolved", res.Unresolved),
		zap.Duration("duration", duration))
	return nil
}

// runEngine runs the rule engine under the configured run_timeout.
func runEngine(ds *dataset.Dataset, entities []*types.EntityRuleset, cfg *config.EngineConfig, log *zap.Logger) (*rules.Result, error) {
	type outcome struct {
		res *rules.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := rules.Run(ds, entities, cfg.MaxWorkers, log)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-time.After(cfg.RunTimeout):
		return nil, fmt.Errorf("rule evaluation exceeded run_timeout %v", cfg.RunTimeout)
	}
}

// resolveInputPath resolves a relative export path against the
// configured data directory when it does not exist as given.
func resolveInputPath(dataDir, path string) string {
	if filepath.IsAbs(path) || dataDir == "" {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	joined := filepath.Join(dataDir, path)
	if _, err := os.Stat(joined); err == nil {
		return joined
	}
	return path
}

// reportPlan decides which loaded entities get a workbook. Entities that
// resolved no records are surfaced for a warning, and still reported
// (empty) when explicitly selected with --entity.
func reportPlan(entities []*types.EntityRuleset, processed map[string]bool, only string) (write []*types.EntityRuleset, empty []string) {
	for _, e := range entities {
		if only != "" && e.Name != only {
			continue
		}
		if processed[e.Name] {
			write = append(write, e)
			continue
		}
		empty = append(empty, e.Name)
		if e.Name == only {
			write = append(write, e)
		}
	}
	return write, empty
}

func persistSummary(runID types.RunID, res *rules.Result, sum report.Summary, startedAt time.Time, duration time.Duration, retentionDays int) error {
	database, err := db.Open(dbURL)
	if err != nil {
		return err
	}
	defer database.Close()

	store, err := db.NewRunStore(database)
	if err != nil {
		return err
	}

	entity := "all"
	if len(res.Chains) == 1 {
		entity = res.Chains[0].Entity
	}
	if err := store.SaveRun(db.SummaryRecord(runID, entity, sum, startedAt, duration)); err != nil {
		return err
	}

	_, err = store.PruneRuns(time.Now().AddDate(0, 0, -retentionDays))
	return err
}
