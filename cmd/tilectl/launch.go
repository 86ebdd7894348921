package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/born-ml/tilekit/internal/dispatch"
	"github.com/born-ml/tilekit/internal/engine"
	"github.com/born-ml/tilekit/internal/tensor"
	"github.com/born-ml/tilekit/internal/tiling"
)

func newLaunchCmd(logger func() *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "launch JOB.yaml PLAN",
		Short: "Run a job from a saved plan blob",
		Long: `Launch maps a blob written by "tilectl plan --out" and hands it to the
kernel entry point of the job's operator without planning again. The job file
supplies the operand shapes and seed. The output is verified against the
naive reference.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := LoadJob(args[0])
			if err != nil {
				return err
			}
			return launchJob(cmd.OutOrStdout(), job, args[1], logger())
		},
	}
}

// kernelOp returns the dispatch operator that serves the job's op.
func kernelOp(op string) (dispatch.Op, error) {
	switch op {
	case "tril", "triu":
		return dispatch.OpTriangular, nil
	case "reducesum", "reducemax":
		return dispatch.OpReduce, nil
	default:
		return dispatch.ParseOp(op)
	}
}

func launchJob(w io.Writer, job *Job, path string, log *slog.Logger) error {
	bf, err := tiling.OpenBlobFile(path)
	if err != nil {
		return err
	}
	defer func() { _ = bf.Close() }()

	p, err := bf.Plan()
	if err != nil {
		return err
	}
	op, err := kernelOp(job.Op)
	if err != nil {
		return err
	}
	table, err := dispatch.Lookup(op)
	if err != nil {
		return err
	}

	inputs, err := jobInputs(job)
	if err != nil {
		return err
	}
	var (
		operands = inputs
		output   *tensor.Raw
	)
	if job.Op == "assign" {
		operands = inputs[1:]
		output = inputs[0].Clone()
	} else {
		_, outType := table.Signature(p.Key.Elem())
		if output, err = tensor.NewRaw(p.Out.Shape.Shape(), outType); err != nil {
			return err
		}
	}

	opts := []dispatch.Option{dispatch.WithLogger(log)}
	if job.NoReuse {
		opts = append(opts, dispatch.WithoutReuse())
	}
	if job.NoSkip {
		opts = append(opts, dispatch.WithoutDegenerateSkip())
	}
	rep, err := table.Launch(operands, output, nil, bf.Bytes(), opts...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	printLaunch(w, path, op, rep)

	golden, err := goldenOf(job, inputs)
	if err != nil {
		return err
	}
	if !bytes.Equal(output.Data(), golden.Data()) {
		return fmt.Errorf("%s: output differs from reference", job.Op)
	}
	fmt.Fprintln(w, "verify: ok")
	return nil
}

func printLaunch(w io.Writer, path string, op dispatch.Op, rep engine.Report) {
	fmt.Fprintf(w, "plan:       %s\n", path)
	fmt.Fprintf(w, "kernel:     %s %s\n", op, rep.Key)
	fmt.Fprintf(w, "invocation: %s\n", rep.Invocation)
	fmt.Fprintf(w, "tiles:      %d on %d cores\n", rep.Tiles(), len(rep.Cores))
}
