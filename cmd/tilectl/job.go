package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/tilekit/internal/tensor"
	"github.com/born-ml/tilekit/internal/tiling"
	"github.com/born-ml/tilekit/ops"
)

// Job is one operator invocation described in YAML:
//
//	op: clip
//	dtype: float16
//	inputs:
//	  - [1, 1, 1]
//	  - [4, 4]
//	  - [4, 4]
//	platform:
//	  cores: 4
//	seed: 7
type Job struct {
	Op       string         `yaml:"op"`
	DType    string         `yaml:"dtype"`
	Inputs   []tensor.Shape `yaml:"inputs"`
	Compare  string         `yaml:"compare,omitempty"`
	Diagonal int            `yaml:"diagonal,omitempty"`
	Perm     []int          `yaml:"perm,omitempty"`
	Region   []SliceSpec    `yaml:"region,omitempty"`
	Strategy string         `yaml:"strategy,omitempty"`
	Tiles    []int          `yaml:"tiles,omitempty"`
	Platform PlatformSpec   `yaml:"platform,omitempty"`
	Seed     uint64         `yaml:"seed,omitempty"`
	Repeat   int            `yaml:"repeat,omitempty"`

	NoReuse bool `yaml:"no_reuse,omitempty"`
	NoSkip  bool `yaml:"no_skip,omitempty"`

	dtype    tensor.DataType
	strategy tiling.Strategy
	compare  ops.Comparison
}

// SliceSpec is the YAML form of one region slice.
type SliceSpec struct {
	Start int `yaml:"start"`
	Stop  int `yaml:"stop"`
	Step  int `yaml:"step,omitempty"`
}

// PlatformSpec is the YAML form of the simulated platform.
type PlatformSpec struct {
	Cores   int `yaml:"cores,omitempty"`
	UBBytes int `yaml:"ub_bytes,omitempty"`
	Align   int `yaml:"align,omitempty"`
}

// arity is the number of input tensors each operator takes.
var arity = map[string]int{
	"clip":      3,
	"maximum":   2,
	"minimum":   2,
	"where":     3,
	"compare":   2,
	"tril":      1,
	"triu":      1,
	"reducesum": 1,
	"reducemax": 1,
	"transpose": 1,
	"assign":    2, // destination, value
}

var comparisons = map[string]ops.Comparison{
	"eq": ops.Equal,
	"ne": ops.NotEqual,
	"lt": ops.Less,
	"le": ops.LessEqual,
	"gt": ops.Greater,
	"ge": ops.GreaterEqual,
}

// LoadJob reads and checks a YAML job file.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	return ParseJob(data)
}

// ParseJob decodes and checks a YAML job.
func ParseJob(data []byte) (*Job, error) {
	var j Job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	if err := j.normalize(); err != nil {
		return nil, err
	}
	return &j, nil
}

func (j *Job) normalize() error {
	j.Op = strings.ToLower(j.Op)
	n, ok := arity[j.Op]
	if !ok {
		return fmt.Errorf("job: unknown op %q", j.Op)
	}
	if len(j.Inputs) != n {
		return fmt.Errorf("job: %s takes %d inputs, got %d", j.Op, n, len(j.Inputs))
	}

	if j.DType == "" {
		j.DType = "float32"
	}
	dt, err := tensor.ParseDataType(j.DType)
	if err != nil {
		return fmt.Errorf("job: %w", err)
	}
	j.dtype = dt

	if j.strategy, err = tiling.ParseStrategy(j.Strategy); err != nil {
		return fmt.Errorf("job: %w", err)
	}

	if j.Op == "compare" {
		cmp, ok := comparisons[j.Compare]
		if !ok {
			return fmt.Errorf("job: compare needs one of eq, ne, lt, le, gt, ge; got %q", j.Compare)
		}
		j.compare = cmp
	}
	if len(j.Tiles) > 2 {
		return fmt.Errorf("job: tiles takes at most [rows, cols], got %v", j.Tiles)
	}
	if j.Repeat <= 0 {
		j.Repeat = 1
	}
	return nil
}

// region returns the job's region slices with the default step filled in.
func (j *Job) region() []ops.Slice {
	out := make([]ops.Slice, len(j.Region))
	for i, s := range j.Region {
		step := s.Step
		if step == 0 {
			step = 1
		}
		out[i] = ops.Slice{Start: s.Start, Stop: s.Stop, Step: step}
	}
	return out
}

// options converts the job's tuning fields into operator options.
func (j *Job) options() []ops.Option {
	opts := []ops.Option{
		ops.WithPlatform(ops.Platform{
			Cores:   j.Platform.Cores,
			UBBytes: j.Platform.UBBytes,
			Align:   j.Platform.Align,
		}),
		ops.WithStrategy(j.strategy),
	}
	if len(j.Tiles) > 0 {
		rows, cols := j.Tiles[0], 0
		if len(j.Tiles) == 2 {
			cols = j.Tiles[1]
		}
		opts = append(opts, ops.WithTiles(rows, cols))
	}
	if j.NoReuse {
		opts = append(opts, ops.WithoutReuse())
	}
	if j.NoSkip {
		opts = append(opts, ops.WithoutDegenerateSkip())
	}
	return opts
}

// inputTypes returns the element type of every input tensor.
func (j *Job) inputTypes() []tensor.DataType {
	types := make([]tensor.DataType, len(j.Inputs))
	for i := range types {
		types[i] = j.dtype
	}
	if j.Op == "where" {
		types[0] = tensor.Bool
	}
	return types
}
