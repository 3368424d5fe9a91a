package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/phasebridge/transition-cli/internal/analytics"
	"github.com/phasebridge/transition-cli/internal/model"
	"github.com/phasebridge/transition-cli/internal/store"
)

var (
	analyticsInputPath  string
	analyticsFormat     string
	analyticsOutputPath string
	analyticsXLSXPath   string
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Roll up stored or exported transitions",
	Long:  "Aggregates transitions into portfolio rollups: confidence and phase counts, agency and tech-area distributions, per-company profiles, and timing percentiles.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		transitions, err := loadAnalyticsTransitions(ctx)
		if err != nil {
			return err
		}

		rollup := analytics.Summarize(transitions)

		if analyticsXLSXPath != "" {
			if err := writeRollupXLSX(analyticsXLSXPath, rollup); err != nil {
				return err
			}
			zap.L().Info("workbook written", zap.String("path", analyticsXLSXPath))
		}

		out, closeOut, err := openOutput(analyticsOutputPath)
		if err != nil {
			return err
		}
		defer closeOut()

		return writeRollup(out, rollup, analyticsFormat)
	},
}

func init() {
	analyticsCmd.Flags().StringVar(&analyticsInputPath, "input", "", "transitions json file (default: read from store)")
	analyticsCmd.Flags().StringVar(&analyticsFormat, "format", "table", "output format: json, csv, or table")
	analyticsCmd.Flags().StringVar(&analyticsOutputPath, "output", "", "write output to file instead of stdout")
	analyticsCmd.Flags().StringVar(&analyticsXLSXPath, "xlsx", "", "also export an xlsx workbook, one sheet per rollup dimension")
	rootCmd.AddCommand(analyticsCmd)
}

func loadAnalyticsTransitions(ctx context.Context) ([]*model.Transition, error) {
	if analyticsInputPath != "" {
		return readTransitionsFile(analyticsInputPath)
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return nil, eris.Wrap(err, "migrate store")
	}

	return st.ListTransitions(ctx, store.TransitionFilter{})
}

// readTransitionsFile accepts either a detect result document or a bare
// transitions array.
func readTransitionsFile(path string) ([]*model.Transition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read input file")
	}

	var doc struct {
		Transitions []*model.Transition `json:"transitions"`
	}
	if err := json.Unmarshal(data, &doc); err == nil && doc.Transitions != nil {
		return doc.Transitions, nil
	}

	var list []*model.Transition
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, eris.Wrap(err, "parse transitions json")
	}
	return list, nil
}

func writeRollup(out io.Writer, r *analytics.Rollup, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "csv":
		return writeRollupCSV(out, r)
	case "table":
		formatRollupTable(out, r)
		return nil
	default:
		return eris.Errorf("unknown format: %s (want json, csv, or table)", format)
	}
}

var confidenceOrder = []model.Confidence{
	model.ConfidenceHigh,
	model.ConfidenceLikely,
	model.ConfidencePossible,
}

var phaseOrder = []model.Phase{
	model.PhaseI,
	model.PhaseII,
	model.PhaseIII,
	model.PhaseUnknown,
}

// countEntry is one key of a rollup dimension with its transition count.
type countEntry struct {
	Key   string
	Count int
}

// sortedCounts orders a counting map by count descending, then key, so
// every output format lists dimensions deterministically.
func sortedCounts[K ~string](m map[K]int) []countEntry {
	entries := make([]countEntry, 0, len(m))
	for k, v := range m {
		entries = append(entries, countEntry{Key: string(k), Count: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// maxTableRows caps per-dimension rows in table output; json, csv, and xlsx
// exports carry everything.
const maxTableRows = 10

func formatRollupTable(out io.Writer, r *analytics.Rollup) {
	if r.TotalTransitions == 0 {
		fmt.Fprintln(out, "No transitions to report.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Transitions:\t%d\n", r.TotalTransitions)
	_, _ = fmt.Fprintf(w, "Patent-backed:\t%.1f%%\n", r.PatentBackedRate*100)
	for _, c := range confidenceOrder {
		_, _ = fmt.Fprintf(w, "%s:\t%d\n", c, r.CountsByConfidence[c])
	}
	if r.Timing.Samples > 0 {
		_, _ = fmt.Fprintf(w, "Days to contract:\tp25 %d / median %d / p75 %d / p90 %d (%d samples)\n",
			r.Timing.P25, r.Timing.Median, r.Timing.P75, r.Timing.P90, r.Timing.Samples)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintln(out, "\nBy phase:")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, p := range phaseOrder {
		if n := r.ByPhase[p]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", p, n)
		}
	}
	_ = w.Flush()

	formatCountSection(out, "Top agencies:", sortedCounts(r.ByAgency))
	formatCountSection(out, "Top tech areas:", sortedCounts(r.ByTechArea))

	_, _ = fmt.Fprintln(out, "\nTop companies:")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "  COMPANY\tTRANSITIONS\tHIGH\tAVG SCORE\tAGENCIES")
	for i, p := range r.ByCompany {
		if i >= maxTableRows {
			break
		}
		name := p.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "  %s\t%d\t%d\t%.3f\t%s\n",
			name, p.Transitions, p.High, p.AvgScore, strings.Join(p.Agencies, "; "))
	}
	_ = w.Flush()
}

func formatCountSection(out io.Writer, title string, entries []countEntry) {
	_, _ = fmt.Fprintf(out, "\n%s\n", title)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, e := range entries {
		if i >= maxTableRows {
			break
		}
		_, _ = fmt.Fprintf(w, "  %s\t%d\n", e.Key, e.Count)
	}
	_ = w.Flush()
}

// writeRollupCSV flattens the rollup to dimension,key,value rows.
func writeRollupCSV(out io.Writer, r *analytics.Rollup) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"dimension", "key", "value"}); err != nil {
		return eris.Wrap(err, "write csv header")
	}

	write := func(dimension, key, value string) {
		_ = w.Write([]string{dimension, key, value})
	}

	write("summary", "total_transitions", strconv.Itoa(r.TotalTransitions))
	write("summary", "patent_backed_rate", strconv.FormatFloat(r.PatentBackedRate, 'f', 4, 64))
	for _, c := range confidenceOrder {
		write("confidence", string(c), strconv.Itoa(r.CountsByConfidence[c]))
	}
	for _, p := range phaseOrder {
		if n := r.ByPhase[p]; n > 0 {
			write("phase", string(p), strconv.Itoa(n))
		}
	}
	for _, e := range sortedCounts(r.ByAgency) {
		write("agency", e.Key, strconv.Itoa(e.Count))
	}
	for _, e := range sortedCounts(r.ByTechArea) {
		write("tech_area", e.Key, strconv.Itoa(e.Count))
	}
	for _, e := range sortedCounts(r.ByAward) {
		write("award", e.Key, strconv.Itoa(e.Count))
	}
	for _, p := range r.ByCompany {
		write("company", p.Key, strconv.Itoa(p.Transitions))
	}
	if r.Timing.Samples > 0 {
		write("timing", "samples", strconv.Itoa(r.Timing.Samples))
		write("timing", "p25_days", strconv.Itoa(r.Timing.P25))
		write("timing", "median_days", strconv.Itoa(r.Timing.Median))
		write("timing", "p75_days", strconv.Itoa(r.Timing.P75))
		write("timing", "p90_days", strconv.Itoa(r.Timing.P90))
	}

	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

// writeRollupXLSX exports the rollup as a workbook with one sheet per
// dimension.
func writeRollupXLSX(path string, r *analytics.Rollup) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "add summary sheet")
	}
	addKVRow(summary, "Metric", "Value")
	row := summary.AddRow()
	row.AddCell().SetString("Total transitions")
	row.AddCell().SetInt(r.TotalTransitions)
	row = summary.AddRow()
	row.AddCell().SetString("Patent-backed rate")
	row.AddCell().SetFloat(r.PatentBackedRate)

	confidence := make(map[string]int, len(r.CountsByConfidence))
	for c, n := range r.CountsByConfidence {
		confidence[string(c)] = n
	}
	if err := addCountSheet(f, "Confidence", confidence); err != nil {
		return err
	}

	phases := make(map[string]int, len(r.ByPhase))
	for p, n := range r.ByPhase {
		phases[string(p)] = n
	}
	if err := addCountSheet(f, "Phase", phases); err != nil {
		return err
	}
	if err := addCountSheet(f, "Agencies", r.ByAgency); err != nil {
		return err
	}
	if err := addCountSheet(f, "Tech Areas", r.ByTechArea); err != nil {
		return err
	}
	if err := addCountSheet(f, "Awards", r.ByAward); err != nil {
		return err
	}

	companies, err := f.AddSheet("Companies")
	if err != nil {
		return eris.Wrap(err, "add companies sheet")
	}
	header := companies.AddRow()
	for _, h := range []string{"Key", "Name", "Transitions", "High", "Avg Score", "Agencies"} {
		header.AddCell().SetString(h)
	}
	for _, p := range r.ByCompany {
		row := companies.AddRow()
		row.AddCell().SetString(p.Key)
		row.AddCell().SetString(p.Name)
		row.AddCell().SetInt(p.Transitions)
		row.AddCell().SetInt(p.High)
		row.AddCell().SetFloat(p.AvgScore)
		row.AddCell().SetString(strings.Join(p.Agencies, "; "))
	}

	timing, err := f.AddSheet("Timing")
	if err != nil {
		return eris.Wrap(err, "add timing sheet")
	}
	addKVRow(timing, "Metric", "Days")
	for _, kv := range []struct {
		name  string
		value int
	}{
		{"Samples", r.Timing.Samples},
		{"P25", r.Timing.P25},
		{"Median", r.Timing.Median},
		{"P75", r.Timing.P75},
		{"P90", r.Timing.P90},
	} {
		row := timing.AddRow()
		row.AddCell().SetString(kv.name)
		row.AddCell().SetInt(kv.value)
	}

	return eris.Wrapf(f.Save(path), "save workbook %s", path)
}

func addCountSheet(f *xlsx.File, name string, counts map[string]int) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "add %s sheet", name)
	}
	addKVRow(sheet, "Key", "Transitions")
	for _, e := range sortedCounts(counts) {
		row := sheet.AddRow()
		row.AddCell().SetString(e.Key)
		row.AddCell().SetInt(e.Count)
	}
	return nil
}

func addKVRow(sheet *xlsx.Sheet, k, v string) {
	row := sheet.AddRow()
	row.AddCell().SetString(k)
	row.AddCell().SetString(v)
}
