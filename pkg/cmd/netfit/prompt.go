package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
)

// printSingularValues lists values with their rank so a cluster count can
// be read off the gap.
func printSingularValues(w io.Writer, values []float64) {
	fmt.Fprintln(w, "Singular values:")
	for i, v := range values {
		fmt.Fprintf(w, "%4d  %.6f\n", i+1, v)
	}
}

// promptClusterCount shows the spectrum and asks for the number of clusters.
func promptClusterCount(w io.Writer, values []float64, maxClusters int) (int, error) {
	printSingularValues(w, values)

	var input string
	err := huh.NewInput().
		Title("Number of clusters").
		Description(fmt.Sprintf("Pick a count between 1 and %d from the singular values above", maxClusters)).
		Value(&input).
		Validate(func(s string) error {
			_, err := parseClusterCount(s, maxClusters)
			return err
		}).
		Run()
	if err != nil {
		return 0, fmt.Errorf("cluster count prompt failed: %w", err)
	}
	return parseClusterCount(input, maxClusters)
}

func parseClusterCount(s string, maxClusters int) (int, error) {
	k, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	if k < 1 || k > maxClusters {
		return 0, fmt.Errorf("number of clusters must be between 1 and %d", maxClusters)
	}
	return k, nil
}
