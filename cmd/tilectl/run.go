package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"github.com/x448/float16"

	"github.com/born-ml/tilekit/internal/kernels"
	"github.com/born-ml/tilekit/internal/reference"
	"github.com/born-ml/tilekit/internal/tensor"
	"github.com/born-ml/tilekit/ops"
)

func newRunCmd(logger func() *slog.Logger) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "run JOB.yaml",
		Short: "Run an operator job on random data",
		Long: `Run loads a YAML job, fills its inputs with seeded random values, runs the
operator on the simulated cores and prints per-core statistics. With --verify
the result is compared bit for bit against the naive reference.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := LoadJob(args[0])
			if err != nil {
				return err
			}
			return runJob(cmd.OutOrStdout(), job, verify, logger())
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", true, "compare against the reference implementation")
	return cmd
}

// Result is the outcome of one job run.
type Result struct {
	Output *tensor.Raw
	Golden *tensor.Raw
	Report ops.Report
	Took   time.Duration
}

func runJob(w io.Writer, job *Job, verify bool, log *slog.Logger) error {
	res, err := Execute(job, verify, log)
	if err != nil {
		return err
	}
	printReport(w, job, res)
	if verify {
		if !bytes.Equal(res.Output.Data(), res.Golden.Data()) {
			return fmt.Errorf("%s: output differs from reference", job.Op)
		}
		fmt.Fprintln(w, "verify: ok")
	}
	return nil
}

// Execute runs job and, when verify is set, its reference.
func Execute(job *Job, verify bool, log *slog.Logger) (*Result, error) {
	inputs, err := jobInputs(job)
	if err != nil {
		return nil, err
	}

	var dst *tensor.Raw
	if job.Op == "assign" {
		dst = inputs[0].Clone()
	}

	res := &Result{}
	opts := append(job.options(), ops.WithReport(&res.Report), ops.WithLogger(log))
	start := time.Now()
	for range job.Repeat {
		out, err := apply(job, inputs, dst, opts)
		if err != nil {
			return nil, err
		}
		res.Output = out
	}
	res.Took = time.Since(start) / time.Duration(job.Repeat)

	if verify {
		golden, err := goldenOf(job, inputs)
		if err != nil {
			return nil, err
		}
		res.Golden = golden
	}
	return res, nil
}

// jobInputs allocates the inputs of job and fills them from its seed.
func jobInputs(job *Job) ([]*tensor.Raw, error) {
	rng := rand.New(rand.NewPCG(job.Seed, job.Seed^0x9e3779b97f4a7c15))
	types := job.inputTypes()
	inputs := make([]*tensor.Raw, len(job.Inputs))
	for i, shape := range job.Inputs {
		r, err := tensor.NewRaw(shape, types[i])
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		fill(r, rng)
		inputs[i] = r
	}
	return inputs, nil
}

func apply(job *Job, in []*tensor.Raw, dst *tensor.Raw, opts []ops.Option) (*tensor.Raw, error) {
	switch job.Op {
	case "clip":
		return ops.Clip(in[0], in[1], in[2], opts...)
	case "maximum":
		return ops.Maximum(in[0], in[1], opts...)
	case "minimum":
		return ops.Minimum(in[0], in[1], opts...)
	case "where":
		return ops.Where(in[0], in[1], in[2], opts...)
	case "compare":
		return ops.Compare(in[0], in[1], job.compare, opts...)
	case "tril":
		return ops.Tril(in[0], job.Diagonal, opts...)
	case "triu":
		return ops.Triu(in[0], job.Diagonal, opts...)
	case "reducesum":
		return ops.ReduceSum(in[0], opts...)
	case "reducemax":
		return ops.ReduceMax(in[0], opts...)
	case "transpose":
		return ops.Transpose(in[0], job.Perm, opts...)
	case "assign":
		// Every repeat writes the same values, so assigning in place is idempotent.
		if err := ops.StridedAssign(dst, job.region(), in[1], opts...); err != nil {
			return nil, err
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("unknown op %q", job.Op)
	}
}

// goldenOf computes the reference result of job.
func goldenOf(job *Job, in []*tensor.Raw) (*tensor.Raw, error) {
	switch job.dtype {
	case tensor.Float32:
		return golden[float32, float32](kernels.Native[float32]{}, kernels.Same[float32]{}, job, in)
	case tensor.Float64:
		return golden[float64, float64](kernels.Native[float64]{}, kernels.Same[float64]{}, job, in)
	case tensor.Int8:
		return golden[int8, int8](kernels.Native[int8]{}, kernels.Same[int8]{}, job, in)
	case tensor.Int32:
		return golden[int32, int32](kernels.Native[int32]{}, kernels.Same[int32]{}, job, in)
	case tensor.Int64:
		return golden[int64, int64](kernels.Native[int64]{}, kernels.Same[int64]{}, job, in)
	case tensor.Uint8:
		return golden[uint8, uint8](kernels.Native[uint8]{}, kernels.Same[uint8]{}, job, in)
	case tensor.Float16:
		return golden[float16.Float16, float32](kernels.Half{}, kernels.HalfToFloat32{}, job, in)
	default:
		return goldenMove[bool](job, in)
	}
}

func golden[T tensor.DType, W any](ar kernels.Arith[T], acc kernels.Accumulator[T, W], job *Job, in []*tensor.Raw) (*tensor.Raw, error) {
	switch job.Op {
	case "clip":
		return reference.Clip(ar, in[0], in[1], in[2]), nil
	case "maximum":
		return reference.Maximum(ar, in[0], in[1]), nil
	case "minimum":
		return reference.Minimum(ar, in[0], in[1]), nil
	case "where":
		return reference.Where[T](in[0], in[1], in[2]), nil
	case "compare":
		return reference.Compare(ar, job.compare, in[0], in[1]), nil
	case "reducesum":
		return reference.ReduceSum(acc, in[0]), nil
	case "reducemax":
		return reference.ReduceMax(ar, in[0]), nil
	default:
		return goldenMove[T](job, in)
	}
}

// goldenMove covers the operators that only move data.
func goldenMove[T tensor.DType](job *Job, in []*tensor.Raw) (*tensor.Raw, error) {
	switch job.Op {
	case "tril", "triu":
		return reference.Triangular[T](in[0], job.Diagonal, job.Op == "triu"), nil
	case "transpose":
		return reference.Transpose[T](in[0], job.Perm), nil
	case "assign":
		return reference.Assign[T](in[0], job.region(), in[1]), nil
	default:
		return nil, fmt.Errorf("%s is not defined for %s", job.Op, job.dtype)
	}
}

// fill writes small random values: exact in every element type, with
// repeats so that comparisons hit equality.
func fill(r *tensor.Raw, rng *rand.Rand) {
	small := func() int { return rng.IntN(16) - 8 }
	switch r.DType() {
	case tensor.Float32:
		s := tensor.As[float32](r)
		for i := range s {
			s[i] = float32(small()) / 4
		}
	case tensor.Float64:
		s := tensor.As[float64](r)
		for i := range s {
			s[i] = float64(small()) / 4
		}
	case tensor.Float16:
		s := tensor.As[float16.Float16](r)
		for i := range s {
			s[i] = float16.Fromfloat32(float32(small()) / 4)
		}
	case tensor.Int8:
		s := tensor.As[int8](r)
		for i := range s {
			s[i] = int8(small())
		}
	case tensor.Int32:
		s := tensor.As[int32](r)
		for i := range s {
			s[i] = int32(small())
		}
	case tensor.Int64:
		s := tensor.As[int64](r)
		for i := range s {
			s[i] = int64(small())
		}
	case tensor.Uint8:
		s := tensor.As[uint8](r)
		for i := range s {
			s[i] = uint8(rng.IntN(16))
		}
	case tensor.Bool:
		s := tensor.As[bool](r)
		for i := range s {
			s[i] = rng.IntN(2) == 1
		}
	}
}

func printReport(w io.Writer, job *Job, res *Result) {
	rep := res.Report
	fmt.Fprintf(w, "op:         %s (%s)\n", job.Op, job.dtype)
	fmt.Fprintf(w, "key:        %s\n", rep.Key)
	fmt.Fprintf(w, "invocation: %s\n", rep.Invocation)
	fmt.Fprintf(w, "output:     %v\n", res.Output.Shape())
	fmt.Fprintf(w, "time:       %s per run\n", res.Took)
	fmt.Fprintf(w, "tiles:      %d on %d cores\n", rep.Tiles(), len(rep.Cores))
	for i := range job.Inputs {
		if job.Op == "assign" && i == 0 {
			continue
		}
		in := i
		if job.Op == "assign" {
			in = 0
		}
		fmt.Fprintf(w, "input %d:    fetched %d, reused %d, skipped %d\n",
			i, rep.Fetches(in), rep.Reuses(in), rep.Skips(in))
	}
}
