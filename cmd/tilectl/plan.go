package main

import (
	"crypto/sha256"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/born-ml/tilekit/internal/dispatch"
	"github.com/born-ml/tilekit/internal/engine"
	"github.com/born-ml/tilekit/internal/tiling"
)

func newPlanCmd() *cobra.Command {
	var (
		tiles bool
		out   string
	)
	cmd := &cobra.Command{
		Use:   "plan JOB.yaml",
		Short: "Print the tiling plan of a job",
		Long: `Plan runs the host planner for a job and prints the resulting tiling plan,
its blob encoding and the iteration range of every core. With --out the blob
is also saved for "tilectl launch". Triangular jobs also
show how many tiles of each core lie above, on and below the diagonal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := LoadJob(args[0])
			if err != nil {
				return err
			}
			p, err := PlanJob(job)
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), job, p, tiles)
		},
	}
	cmd.Flags().BoolVar(&tiles, "tiles", false, "list every tile of every core")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the plan blob to `FILE` for the launch command")
	return cmd
}

// PlanJob runs the host planner the operator of job would run.
func PlanJob(job *Job) (*tiling.Plan, error) {
	pl := tiling.NewPlanner(tiling.Platform{
		Cores:   job.Platform.Cores,
		UBBytes: job.Platform.UBBytes,
		Align:   job.Platform.Align,
	})

	switch job.Op {
	case "clip", "maximum", "minimum", "where", "compare":
		op, err := dispatch.ParseOp(job.Op)
		if err != nil {
			return nil, err
		}
		t, err := dispatch.Lookup(op)
		if err != nil {
			return nil, err
		}
		inTypes, outType := t.Signature(job.dtype)
		return pl.PlanElementwise(tiling.ElementwiseRequest{
			Inputs:   job.Inputs,
			InTypes:  inTypes,
			OutType:  outType,
			Elem:     job.dtype,
			Strategy: job.strategy,
			Attr:     job.compare,
		})
	case "tril", "triu":
		req := tiling.TriangularRequest{
			Shape:    job.Inputs[0],
			Diagonal: job.Diagonal,
			Upper:    job.Op == "triu",
			Elem:     job.dtype,
			Strategy: job.strategy,
		}
		if len(job.Tiles) > 0 {
			req.RowTile = job.Tiles[0]
		}
		if len(job.Tiles) > 1 {
			req.ColTile = job.Tiles[1]
		}
		return pl.PlanTriangular(req)
	case "reducesum":
		return pl.PlanReduce(job.Inputs[0], job.dtype, tiling.ReduceSum, job.strategy)
	case "reducemax":
		return pl.PlanReduce(job.Inputs[0], job.dtype, tiling.ReduceMax, job.strategy)
	case "transpose":
		return pl.PlanTranspose(job.Inputs[0], job.Perm, job.dtype, job.strategy)
	case "assign":
		return pl.PlanAssign(job.Inputs[0], job.region(), job.Inputs[1], job.dtype, job.strategy)
	default:
		return nil, fmt.Errorf("unknown op %q", job.Op)
	}
}

func printPlan(w io.Writer, job *Job, p *tiling.Plan, listTiles bool) error {
	blob, err := tiling.Encode(p)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "key:         %s\n", p.Key)
	fmt.Fprintf(w, "output:      %v\n", p.Out.Shape)
	fmt.Fprintf(w, "split axis:  %d (extent %d)\n", p.SplitAxis, p.SplitDim())
	fmt.Fprintf(w, "row tiles:   %d x %d, tail %d\n", p.SplitTiles(), p.TileFormer, p.TileTail)
	if p.ColSplit() {
		fmt.Fprintf(w, "col tiles:   %d x %d, tail %d\n", p.ColTiles(), p.ColFormer, p.ColTail)
	}
	fmt.Fprintf(w, "iterations:  %d (period %d)\n", p.TotalIterations(), p.Period())
	fmt.Fprintf(w, "cores:       %d used, block %d, tail %d\n", p.UsedCoreCount, p.BlockFormer, p.BlockTail)
	fmt.Fprintf(w, "ub bytes:    %d\n", p.UBBytes)
	fmt.Fprintf(w, "blob:        %d bytes, sha256 %x\n", len(blob), sha256.Sum256(blob))
	for i, in := range p.Inputs {
		fmt.Fprintf(w, "input %d:     strides %v, fan-in %d\n", i, in.Strides, in.FanIn)
	}
	fmt.Fprintln(w)

	triangular := job.Op == "tril" || job.Op == "triu"
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if triangular {
		fmt.Fprintln(tw, "core\tfirst\tcount\tabove\ton\tbelow")
	} else {
		fmt.Fprintln(tw, "core\tfirst\tcount")
	}
	for core := 0; core < p.UsedCoreCount; core++ {
		n := p.Blocks(core)
		if !triangular {
			fmt.Fprintf(tw, "%d\t%d\t%d\n", core, core*p.BlockFormer, n)
			continue
		}
		var count [3]int
		for tc := range engine.Iterations(core, p) {
			count[classify(p, tc).Position]++
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\n", core, core*p.BlockFormer, n,
			count[engine.AboveDiagonal], count[engine.OnDiagonal], count[engine.BelowDiagonal])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if listTiles {
		fmt.Fprintln(w)
		for core := 0; core < p.UsedCoreCount; core++ {
			for tc := range engine.Iterations(core, p) {
				t := engine.TileOf(tc, p)
				fmt.Fprintf(w, "core %d #%d: index %v rows %d cols %d", core, tc.Local, tc.Index, t.Rows, t.Cols)
				if triangular {
					g := classify(p, tc)
					fmt.Fprintf(w, " %s head %d mid %d tail %d", g.Position, g.HeadRows, g.MidRows, g.TailRows)
				}
				fmt.Fprintln(w)
			}
		}
	}
	return nil
}

func classify(p *tiling.Plan, tc engine.TileCoordinate) engine.BlockGeometry {
	t := engine.TileOf(tc, p)
	return engine.Classify(t.RowOffset, t.ColOffset, p.DiagonalOffset, t.Rows, t.Cols)
}
