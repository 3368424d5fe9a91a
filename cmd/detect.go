package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phasebridge/transition-cli/internal/detect"
	"github.com/phasebridge/transition-cli/internal/ingest"
	"github.com/phasebridge/transition-cli/internal/model"
	"github.com/phasebridge/transition-cli/internal/taxonomy"
)

var (
	detectAwardsPath    string
	detectContractsPath string
	detectPatentsPath   string
	detectLabelsPath    string
	detectTaxonomyPath  string
	detectFromStore     bool
	detectMinScore      float64
	detectWorkers       int
	detectBaseScore     float64
	detectFormat        string
	detectOutputPath    string
	detectSave          bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Score award/contract pairs and report detected transitions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := applyDetectOverrides(cmd); err != nil {
			return err
		}

		tax, err := loadTaxonomy()
		if err != nil {
			return err
		}

		awards, contracts, inputs, err := loadDetectInputs(ctx)
		if err != nil {
			return err
		}

		detector := detect.NewDetector(cfg, tax)
		result, err := detector.Detect(ctx, awards, contracts, inputs)
		if err != nil {
			return eris.Wrap(err, "detect")
		}

		zap.L().Info("detection complete",
			zap.String("run_id", result.RunID),
			zap.Int("transitions", len(result.Transitions)),
			zap.Int64("pairs_scored", result.Stats.PairsScored),
			zap.Duration("elapsed", result.Stats.Elapsed),
		)

		if detectSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
			n, err := st.SaveTransitions(ctx, result.Transitions)
			if err != nil {
				return eris.Wrap(err, "save transitions")
			}
			zap.L().Info("transitions saved", zap.Int64("rows", n))
		}

		out, closeOut, err := openOutput(detectOutputPath)
		if err != nil {
			return err
		}
		defer closeOut()

		return writeDetectResult(out, result, detectFormat)
	},
}

func init() {
	detectCmd.Flags().StringVar(&detectAwardsPath, "awards", "", "awards feed file (csv or xlsx)")
	detectCmd.Flags().StringVar(&detectContractsPath, "contracts", "", "contracts feed file (csv or xlsx)")
	detectCmd.Flags().StringVar(&detectPatentsPath, "patents", "", "patent references file (optional)")
	detectCmd.Flags().StringVar(&detectLabelsPath, "labels", "", "tech-area labels file (optional)")
	detectCmd.Flags().StringVar(&detectTaxonomyPath, "taxonomy", "", "taxonomy yaml (default: built-in)")
	detectCmd.Flags().BoolVar(&detectFromStore, "from-store", false, "read awards, contracts, and signal inputs from the store")
	detectCmd.Flags().Float64Var(&detectMinScore, "min-score", 0, "reporting floor override")
	detectCmd.Flags().IntVar(&detectWorkers, "workers", 0, "worker count override")
	detectCmd.Flags().Float64Var(&detectBaseScore, "base-score", 0, "base prior override")
	detectCmd.Flags().StringVar(&detectFormat, "format", "table", "output format: json, csv, or table")
	detectCmd.Flags().StringVar(&detectOutputPath, "output", "", "write output to file instead of stdout")
	detectCmd.Flags().BoolVar(&detectSave, "save", false, "persist transitions to the store")
	rootCmd.AddCommand(detectCmd)
}

// applyDetectOverrides folds changed flags into the loaded config and
// re-validates, so an override that breaks an invariant fails exactly like a
// bad config file.
func applyDetectOverrides(cmd *cobra.Command) error {
	if cmd.Flags().Changed("min-score") {
		cfg.Detect.MinReportScore = detectMinScore
	}
	if cmd.Flags().Changed("workers") {
		cfg.Detect.Workers = detectWorkers
	}
	if cmd.Flags().Changed("base-score") {
		cfg.Detect.BaseScore = detectBaseScore
	}
	if cmd.Flags().Changed("taxonomy") {
		cfg.Taxonomy.Path = detectTaxonomyPath
	}
	return cfg.Validate()
}

func loadTaxonomy() (*taxonomy.Taxonomy, error) {
	if cfg.Taxonomy.Path == "" {
		return taxonomy.Default(), nil
	}
	return taxonomy.Load(cfg.Taxonomy.Path)
}

func loadDetectInputs(ctx context.Context) ([]*model.Award, []*model.Contract, *model.SignalInputs, error) {
	if detectFromStore {
		st, err := initStore(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return nil, nil, nil, eris.Wrap(err, "migrate store")
		}

		awards, err := st.ListAwards(ctx)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "list awards")
		}
		contracts, err := st.ListContracts(ctx)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "list contracts")
		}
		inputs, err := st.LoadInputs(ctx)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "load signal inputs")
		}
		return awards, contracts, inputs, nil
	}

	if detectAwardsPath == "" || detectContractsPath == "" {
		return nil, nil, nil, eris.New("either --from-store or both --awards and --contracts are required")
	}

	awards, err := ingest.ReadAwards(detectAwardsPath)
	if err != nil {
		return nil, nil, nil, err
	}
	contracts, err := ingest.ReadContracts(detectContractsPath)
	if err != nil {
		return nil, nil, nil, err
	}

	inputs := &model.SignalInputs{}
	if detectPatentsPath != "" {
		inputs.Patents, err = ingest.ReadPatents(detectPatentsPath)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if detectLabelsPath != "" {
		inputs.AwardTechAreas, inputs.ContractTechAreas, err = ingest.ReadTechLabels(detectLabelsPath)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	return awards, contracts, inputs, nil
}

// openOutput returns stdout when path is empty, otherwise a created file.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output file %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}

func writeDetectResult(out io.Writer, result *detect.Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "csv":
		return writeTransitionsCSV(out, result.Transitions)
	case "table":
		formatTransitionsTable(out, result)
		return nil
	default:
		return eris.Errorf("unknown format: %s (want json, csv, or table)", format)
	}
}

func writeTransitionsCSV(out io.Writer, transitions []*model.Transition) error {
	w := csv.NewWriter(out)
	header := []string{
		"transition_id", "version", "award_id", "contract_id",
		"company", "company_uei", "phase", "match_method",
		"likelihood", "confidence", "days_to_contract", "detected_at",
	}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "write csv header")
	}

	for _, t := range transitions {
		days := ""
		if t.Signals.DaysBetween != nil {
			days = strconv.Itoa(*t.Signals.DaysBetween)
		}
		row := []string{
			t.ID,
			strconv.Itoa(t.Version),
			t.AwardID,
			t.ContractID,
			t.CompanyName,
			t.CompanyUEI,
			string(t.Phase),
			string(t.Match.Method),
			strconv.FormatFloat(t.LikelihoodScore, 'f', 4, 64),
			string(t.Confidence),
			days,
			t.DetectedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}

	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

func formatTransitionsTable(out io.Writer, result *detect.Result) {
	if len(result.Transitions) == 0 {
		fmt.Fprintln(out, "No transitions detected.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "AWARD\tCONTRACT\tCOMPANY\tPHASE\tMATCH\tSCORE\tCONF\tDAYS")
	_, _ = fmt.Fprintln(w, "-----\t--------\t-------\t-----\t-----\t-----\t----\t----")

	for _, t := range result.Transitions {
		days := "-"
		if t.Signals.DaysBetween != nil {
			days = strconv.Itoa(*t.Signals.DaysBetween)
		}
		company := t.CompanyName
		if len(company) > 30 {
			company = company[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.3f\t%s\t%s\n",
			t.AwardID,
			t.ContractID,
			company,
			t.Phase,
			t.Match.Method,
			t.LikelihoodScore,
			t.Confidence,
			days,
		)
	}
	_ = w.Flush()

	s := result.Stats
	_, _ = fmt.Fprintf(out, "\n%d transitions (HIGH %d / LIKELY %d / POSSIBLE %d) from %d scored pairs in %s\n",
		s.Emitted,
		s.ByBand[model.ConfidenceHigh],
		s.ByBand[model.ConfidenceLikely],
		s.ByBand[model.ConfidencePossible],
		s.PairsScored,
		s.Elapsed.Round(time.Millisecond),
	)
}
