//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups the single-stage targets.
type Pipeline mg.Namespace

// Ingest extracts and flattens the archives in data/ under the configured policy.
func (Pipeline) Ingest() error {
	mg.Deps(Init, Build)
	return sh.RunV(binPath(), "ingest")
}

// Reset wipes extracted, flattened and retained ingestion state.
func (Pipeline) Reset() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "reset")
}

// History lists recorded pipeline runs.
func (Pipeline) History() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "history")
}
