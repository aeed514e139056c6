package models

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy shared by every fitting and simulation package.
var (
	// ErrInvalidParameter marks bad input caught at an API boundary:
	// out-of-range cluster counts, bad dimensions, malformed matrices.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDegenerateModel marks a model whose parameters cannot be defined
	// at all for the given input (e.g. latent positions for a graph without edges).
	// Degenerate probability estimates are reported as NaN/±Inf values instead.
	ErrDegenerateModel = errors.New("degenerate model")
)

// InvalidParameterf wraps ErrInvalidParameter with a formatted message.
func InvalidParameterf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidParameter)
}

// ClusterAssignment maps node index -> cluster id in [0, K)
type ClusterAssignment []int

// NumClusters returns K = max label + 1, or 0 for an empty assignment
func (c ClusterAssignment) NumClusters() int {
	k := 0
	for _, id := range c {
		if id+1 > k {
			k = id + 1
		}
	}
	return k
}

// Sizes returns the number of nodes in each cluster
func (c ClusterAssignment) Sizes() []int {
	sizes := make([]int, c.NumClusters())
	for _, id := range c {
		if id >= 0 {
			sizes[id]++
		}
	}
	return sizes
}

// Groups returns the node indices of every cluster in increasing order
func (c ClusterAssignment) Groups() [][]int {
	groups := make([][]int, c.NumClusters())
	for node, cid := range c {
		if cid >= 0 {
			groups[cid] = append(groups[cid], node)
		}
	}
	return groups
}

// Validate checks the assignment covers n nodes with non-negative labels
func (c ClusterAssignment) Validate(n int) error {
	if len(c) != n {
		return InvalidParameterf("cluster assignment has %d entries, want %d", len(c), n)
	}
	for node, cid := range c {
		if cid < 0 {
			return InvalidParameterf("node %d has negative cluster id %d", node, cid)
		}
	}
	return nil
}

// FitDiagnostics describes how an iterative estimator terminated
type FitDiagnostics struct {
	Iterations      int           `json:"iterations" yaml:"iterations"`
	FuncEvaluations int           `json:"func_evaluations" yaml:"func_evaluations"`
	Converged       bool          `json:"converged" yaml:"converged"`
	GradNorm        float64       `json:"grad_norm" yaml:"grad_norm"`
	Status          string        `json:"status" yaml:"status"`
	Runtime         time.Duration `json:"runtime" yaml:"runtime"`
}
