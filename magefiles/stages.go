//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Mapping resolves the codelist mapping of one dataset
// (e.g. mage mapping 151_914).
func Mapping(datasetID string) error {
	mg.Deps(Init, Build)
	return sh.RunV(binPath(), "mapping", datasetID)
}

// Constraints resolves the constraints of one dataset. Run Mapping first.
func Constraints(datasetID string) error {
	mg.Deps(Init, Build)
	return sh.RunV(binPath(), "constraints", datasetID)
}

// Extract writes the Series Records of one dataset. Run Constraints first.
func Extract(datasetID string) error {
	mg.Deps(Init, Build)
	return sh.RunV(binPath(), "extract", datasetID)
}

// Pipeline runs all three stages for one dataset, then refreshes the catalog.
func Pipeline(datasetID string) error {
	mg.Deps(Init, Build)
	if err := sh.RunV(binPath(), "run", datasetID); err != nil {
		return err
	}
	return sh.RunV(binPath(), "catalog", "index")
}
