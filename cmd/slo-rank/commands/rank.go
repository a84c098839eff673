package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/miradorstack/slo-ranker/internal/config"
	"github.com/miradorstack/slo-ranker/internal/engine"
	"github.com/miradorstack/slo-ranker/internal/models"
	"github.com/miradorstack/slo-ranker/internal/services"
	"github.com/miradorstack/slo-ranker/internal/table"
	"github.com/miradorstack/slo-ranker/internal/utils"
)

type rankOptions struct {
	normalPath   string
	abnormalPath string
	graphPath    string
	targetNode   string
	metric       string
	statistic    string
	analyzer     string
	reference    string
	window       int
	top          int
	impute       string
	topK         int
	seed         uint64
	output       string
}

func newRankCommand(globals *globalOptions) *cobra.Command {
	opts := &rankOptions{}
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank root causes from two CSV metrics tables",
		Long: `Rank reads a normal and an abnormal metrics table whose columns are named
node::metric::statistic and prints the ranked root causes for the target node.`,
		Example: `  slo-rank rank --normal normal.csv --abnormal abnormal.csv \
    --target-node PetSite --metric latency --statistic Average`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRank(cmd, globals, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.normalPath, "normal", "", "CSV file with the normal (baseline) metrics")
	flags.StringVar(&opts.abnormalPath, "abnormal", "", "CSV file with the abnormal metrics")
	flags.StringVar(&opts.graphPath, "graph", "", "Optional YAML service graph")
	flags.StringVar(&opts.targetNode, "target-node", "", "Node whose SLO was violated")
	flags.StringVar(&opts.metric, "metric", "", "Violated metric, e.g. latency")
	flags.StringVar(&opts.statistic, "statistic", "", "Violated statistic, e.g. Average")
	flags.StringVar(&opts.analyzer, "analyzer", "", "Analyzer: kstest or hollow")
	flags.StringVar(&opts.reference, "reference", "", "Reference column for similarity scoring")
	flags.IntVar(&opts.window, "window", 0, "Trailing rows used for change and similarity")
	flags.IntVar(&opts.top, "top", 0, "Candidates kept by the change filter")
	flags.StringVar(&opts.impute, "impute", "", "Imputation: none, mean, median, zero, ffill, bfill, interpolate")
	flags.IntVar(&opts.topK, "top-k", 0, "Causes returned by the hollow analyzer")
	flags.Uint64Var(&opts.seed, "seed", 0, "Seed for the hollow analyzer (0 picks one at random)")
	flags.StringVarP(&opts.output, "output", "o", "text", "Output format: text or json")

	for _, name := range []string{"normal", "abnormal", "target-node", "metric", "statistic"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runRank(cmd *cobra.Command, globals *globalOptions, opts *rankOptions) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q", opts.output)
	}

	cfg, err := config.Load(globals.configPath)
	if err != nil {
		return err
	}
	opts.applyTo(cmd, cfg)
	if globals.logLevel != "" {
		cfg.Logging.Level = globals.logLevel
	}
	logger := utils.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.JSON)

	analyzerOpts, err := engine.OptionsFromConfig(cfg.Analysis)
	if err != nil {
		return err
	}
	analyzer, err := engine.New(analyzerOpts, logger)
	if err != nil {
		return err
	}

	normal, err := readTable(opts.normalPath)
	if err != nil {
		return err
	}
	abnormal, err := readTable(opts.abnormalPath)
	if err != nil {
		return err
	}
	graph, err := readGraph(opts.graphPath)
	if err != nil {
		return err
	}

	service := services.NewRankingService(logger, analyzer, nil, nil, 0)
	result, err := service.RankRootCauses(context.Background(), models.AnalysisRequest{
		AnalysisInput: models.AnalysisInput{
			Graph:           graph,
			TargetNode:      opts.targetNode,
			TargetMetric:    opts.metric,
			TargetStatistic: opts.statistic,
			NormalMetrics:   normal,
			AbnormalMetrics: abnormal,
		},
	})
	if err != nil {
		return err
	}

	if opts.output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return writeText(cmd.OutOrStdout(), result)
}

// applyTo lets explicitly set flags win over the configuration file and environment.
func (o *rankOptions) applyTo(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("analyzer") {
		cfg.Analysis.Kind = o.analyzer
	}
	if flags.Changed("reference") {
		cfg.Analysis.ReferenceNode = o.reference
	}
	if flags.Changed("window") {
		cfg.Analysis.WindowSize = o.window
	}
	if flags.Changed("top") {
		cfg.Analysis.TopN = o.top
	}
	if flags.Changed("impute") {
		cfg.Analysis.Imputation = o.impute
		cfg.Analysis.Hollow.Imputation = o.impute
	}
	if flags.Changed("top-k") {
		cfg.Analysis.Hollow.TopK = o.topK
	}
	if flags.Changed("seed") {
		cfg.Analysis.Hollow.Seed = o.seed
	}
}

func readTable(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tbl, err := table.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tbl, nil
}

func readGraph(path string) (models.ServiceGraph, error) {
	if path == "" {
		return models.ServiceGraph{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ServiceGraph{}, err
	}
	var graph models.ServiceGraph
	if err := yaml.Unmarshal(data, &graph); err != nil {
		return models.ServiceGraph{}, fmt.Errorf("parse graph %s: %w", path, err)
	}
	return graph, nil
}

func writeText(w io.Writer, result models.AnalysisResult) error {
	fmt.Fprintf(w, "analysis %s (%s) target %s %s/%s\n",
		result.AnalysisID, result.Analyzer, result.TargetNode, result.TargetMetric, result.TargetStatistic)

	if len(result.RootCauses) == 0 {
		fmt.Fprintln(w, "no root causes found")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tNODE\tMETRIC\tSCORE")
		for i, cause := range result.RootCauses {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.4f\n", i+1, cause.Node, cause.Metric, cause.Score)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	for _, d := range result.Diagnostics {
		line := fmt.Sprintf("note: %s: %s", d.Kind, d.Message)
		if len(d.Columns) > 0 {
			line += " [" + strings.Join(d.Columns, ", ") + "]"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
