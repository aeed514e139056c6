package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gilchrisn/graph-model-fitting/pkg/adjacency"
	"github.com/gilchrisn/graph-model-fitting/pkg/gof"
	"github.com/gilchrisn/graph-model-fitting/pkg/lsm"
	"github.com/gilchrisn/graph-model-fitting/pkg/sbm"
)

// sbmFitOutput is the encoded form of an SBM fit. NaN values become null.
type sbmFitOutput struct {
	Directed            bool         `json:"directed" yaml:"directed"`
	NumClusters         int          `json:"num_clusters" yaml:"num_clusters"`
	ClusterSizes        []int        `json:"cluster_sizes" yaml:"cluster_sizes"`
	Clusters            []int        `json:"clusters" yaml:"clusters"`
	NodeOrder           []int        `json:"node_order" yaml:"node_order"`
	SingularValues      []float64    `json:"singular_values" yaml:"singular_values"`
	BlockProb           [][]*float64 `json:"block_prob" yaml:"block_prob"`
	LogLikelihood       *float64     `json:"log_likelihood" yaml:"log_likelihood"`
	LegacyLogLikelihood *float64     `json:"legacy_log_likelihood" yaml:"legacy_log_likelihood"`
	RuntimeMS           int64        `json:"runtime_ms" yaml:"runtime_ms"`
}

func newSbmFitOutput(r *sbm.FitResult) sbmFitOutput {
	rows := r.BlockProbRows()
	prob := make([][]*float64, len(rows))
	for i, row := range rows {
		prob[i] = make([]*float64, len(row))
		for j, p := range row {
			prob[i][j] = nullable(p)
		}
	}
	return sbmFitOutput{
		Directed:            r.Directed,
		NumClusters:         r.NumClusters,
		ClusterSizes:        r.ClusterSizes,
		Clusters:            r.Clusters,
		NodeOrder:           r.NodeOrder(),
		SingularValues:      r.SingularValues,
		BlockProb:           prob,
		LogLikelihood:       nullable(r.LogLikelihood),
		LegacyLogLikelihood: nullable(r.Estimate.LegacyLogLik),
		RuntimeMS:           r.RuntimeMS,
	}
}

type lsmFitOutput struct {
	Dimension     int                  `json:"dimension" yaml:"dimension"`
	Bias          *float64             `json:"bias" yaml:"bias"`
	LogLikelihood *float64             `json:"log_likelihood" yaml:"log_likelihood"`
	Positions     [][]*float64         `json:"positions" yaml:"positions"`
	Diagnostics   lsmDiagnosticsOutput `json:"diagnostics" yaml:"diagnostics"`
}

type lsmDiagnosticsOutput struct {
	Iterations      int      `json:"iterations" yaml:"iterations"`
	FuncEvaluations int      `json:"func_evaluations" yaml:"func_evaluations"`
	Converged       bool     `json:"converged" yaml:"converged"`
	GradNorm        *float64 `json:"grad_norm" yaml:"grad_norm"`
	Status          string   `json:"status" yaml:"status"`
	RuntimeMS       int64    `json:"runtime_ms" yaml:"runtime_ms"`
}

func newLsmFitOutput(r *lsm.FitResult) lsmFitOutput {
	n, _ := r.Positions.Dims()
	pos := make([][]*float64, n)
	for i := range pos {
		row := r.Positions.RawRowView(i)
		pos[i] = make([]*float64, len(row))
		for j, v := range row {
			pos[i][j] = nullable(v)
		}
	}
	d := r.Diagnostics
	return lsmFitOutput{
		Dimension:     r.Dimension,
		Bias:          nullable(r.Bias),
		LogLikelihood: nullable(r.LogLikelihood),
		Positions:     pos,
		Diagnostics: lsmDiagnosticsOutput{
			Iterations:      d.Iterations,
			FuncEvaluations: d.FuncEvaluations,
			Converged:       d.Converged,
			GradNorm:        nullable(d.GradNorm),
			Status:          d.Status,
			RuntimeMS:       d.Runtime.Milliseconds(),
		},
	}
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// outputFormat resolves --format through the report configuration so a
// config file can set output.format too.
func outputFormat(cmd *cobra.Command) (string, error) {
	config := gof.NewConfig()
	if err := loadConfig(cmd, config); err != nil {
		return "", err
	}
	return config.OutputFormat(), nil
}

// withOutput runs write against --out, or stdout when it is empty.
func withOutput(cmd *cobra.Command, write func(w io.Writer) error) error {
	path := mustString(cmd, "out")
	if path == "" {
		return write(cmd.OutOrStdout())
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := write(file); err != nil {
		return err
	}
	return file.Close()
}

func writeResult(cmd *cobra.Command, v interface{}) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	return withOutput(cmd, func(w io.Writer) error {
		switch format {
		case gof.FormatJSON:
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		case gof.FormatYAML, "yml":
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(v); err != nil {
				return err
			}
			return enc.Close()
		default:
			return fmt.Errorf("unsupported output format %q", format)
		}
	})
}

func writeReport(cmd *cobra.Command, report *gof.Report) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	rw, err := gof.NewReportWriter(format)
	if err != nil {
		return err
	}
	return withOutput(cmd, func(w io.Writer) error {
		return rw.Write(w, report)
	})
}

func writeAdjacency(cmd *cobra.Command, adj *adjacency.Matrix) error {
	return withOutput(cmd, func(w io.Writer) error {
		return adjacency.Write(w, adj)
	})
}
