package digraph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/tickwise/tickwise/internal/logger"
)

// ErrInvalidScheduleFile is returned for paths that are not YAML schedules.
var ErrInvalidScheduleFile = errors.New("invalid schedule file")

// LoadOptions contains options for loading a schedule definition.
type LoadOptions struct {
	name string
}

// LoadOption is a function type for setting LoadOptions.
type LoadOption func(*LoadOptions)

// WithName overrides the schedule name from the file.
func WithName(name string) LoadOption {
	return func(o *LoadOptions) {
		o.name = name
	}
}

// Load reads and builds the schedule graph at the given path.
func Load(ctx context.Context, path string, opts ...LoadOption) (*Graph, error) {
	var options LoadOptions
	for _, opt := range opts {
		opt(&options)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidScheduleFile, path)
	}

	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file %s: %w", path, err)
	}

	graph, err := LoadYAML(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule file %s: %w", path, err)
	}
	if options.name != "" {
		graph.Name = options.name
	}
	if graph.Name == "" {
		graph.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return graph, nil
}

// LoadYAML builds a schedule graph from raw YAML bytes.
func LoadYAML(ctx context.Context, data []byte) (*Graph, error) {
	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule definition: %w", err)
	}

	graph, err := build(&def)
	if err != nil {
		return nil, err
	}

	logger.Debug(ctx, "Schedule definition loaded",
		"name", graph.Name, "nodes", len(graph.Nodes))
	return graph, nil
}
