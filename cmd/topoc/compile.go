package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/cidrware/topoc"
	"github.com/cidrware/topoc/internal/builder"
	"github.com/cidrware/topoc/internal/emitter"
	"github.com/cidrware/topoc/internal/intent"
	"github.com/cidrware/topoc/internal/validator"
)

// compile runs the full pipeline on one intent document:
// read → build → validate → emit.
func compile(path string, logger *log.Logger) ([]topoc.Node, error) {
	in, err := intent.Read(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("intent parsed", "path", path, "subnets", len(in.Subnets))

	g, err := builder.Build(in)
	if err != nil {
		return nil, err
	}
	logger.Debug("graph built", "nodes", len(g.Nodes))

	if err := validator.Validate(g); err != nil {
		return nil, err
	}

	return emitter.Emit(g)
}

// loadState reads a previously saved `topoc build` output.
func loadState(path string) ([]topoc.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state topoc.BuildResult
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	return state.Resources, nil
}
