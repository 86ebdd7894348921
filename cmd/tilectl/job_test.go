package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tilekit/internal/tensor"
	"github.com/born-ml/tilekit/internal/tiling"
	"github.com/born-ml/tilekit/ops"
)

func TestParseJob(t *testing.T) {
	job, err := ParseJob([]byte(`
op: Compare
dtype: int8
inputs:
  - [3, 4]
  - [4]
compare: ge
strategy: tiled
platform:
  cores: 2
  ub_bytes: 4096
seed: 11
`))
	require.NoError(t, err)

	assert.Equal(t, "compare", job.Op)
	assert.Equal(t, tensor.Int8, job.dtype)
	assert.Equal(t, tiling.StrategyTiled, job.strategy)
	assert.Equal(t, ops.GreaterEqual, job.compare)
	assert.Equal(t, []tensor.Shape{{3, 4}, {4}}, job.Inputs)
	assert.Equal(t, 2, job.Platform.Cores)
	assert.Equal(t, 4096, job.Platform.UBBytes)
	assert.Equal(t, uint64(11), job.Seed)
	assert.Equal(t, 1, job.Repeat)
	assert.Equal(t, []tensor.DataType{tensor.Int8, tensor.Int8}, job.inputTypes())
}

func TestParseJobDefaults(t *testing.T) {
	job, err := ParseJob([]byte("op: where\ninputs: [[2], [2], [2]]\n"))
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, job.dtype)
	assert.Equal(t, tiling.Strategy(0), job.strategy)
	assert.Equal(t, []tensor.DataType{tensor.Bool, tensor.Float32, tensor.Float32}, job.inputTypes())
}

func TestParseJobErrors(t *testing.T) {
	tests := map[string]string{
		"unknown op":      "op: softmax\ninputs: [[2]]",
		"arity":           "op: clip\ninputs: [[2], [2]]",
		"dtype":           "op: tril\ndtype: complex64\ninputs: [[2, 2]]",
		"strategy":        "op: tril\nstrategy: sideways\ninputs: [[2, 2]]",
		"comparison":      "op: compare\ncompare: approx\ninputs: [[2], [2]]",
		"tiles":           "op: tril\ntiles: [1, 2, 3]\ninputs: [[2, 2]]",
		"malformed yaml":  "op: [tril",
		"missing compare": "op: compare\ninputs: [[2], [2]]",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJob([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestJobRegion(t *testing.T) {
	job, err := ParseJob([]byte(`
op: assign
inputs: [[6, 8], [1]]
region:
  - {start: 1, stop: 6, step: 2}
  - {start: 0, stop: 8}
`))
	require.NoError(t, err)
	assert.Equal(t, []ops.Slice{{Start: 1, Stop: 6, Step: 2}, {Start: 0, Stop: 8, Step: 1}}, job.region())
}

func TestLoadJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("op: transpose\ninputs: [[2, 3]]\nperm: [1, 0]\n"), 0o600))
	job, err := LoadJob(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, job.Perm)

	_, err = LoadJob(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExecuteVerifies(t *testing.T) {
	jobs := []string{
		"op: clip\ndtype: float16\ninputs: [[1, 1, 1], [4, 4], [4, 4]]\nplatform: {cores: 1, ub_bytes: 64}\nstrategy: tiled",
		"op: maximum\ndtype: int64\ninputs: [[3, 1, 5], [4, 1]]\nplatform: {cores: 3}",
		"op: minimum\ndtype: uint8\ninputs: [[7], [1]]",
		"op: where\ndtype: float64\ninputs: [[2, 1], [2, 3], [3]]",
		"op: compare\ndtype: int32\ncompare: lt\ninputs: [[4, 4], [4]]\nno_reuse: true",
		"op: tril\ndtype: float32\ninputs: [[2, 10, 12]]\ndiagonal: -1\ntiles: [4, 5]\nplatform: {cores: 4}",
		"op: triu\ndtype: bool\ninputs: [[9, 9]]\ndiagonal: 2\nstrategy: tiny\nno_skip: true",
		"op: reducesum\ndtype: float16\ninputs: [[3, 33]]\nrepeat: 2",
		"op: reducemax\ndtype: int8\ninputs: [[2, 2, 5]]",
		"op: transpose\ndtype: float64\ninputs: [[2, 3, 4]]\nperm: [2, 0, 1]\nplatform: {cores: 2, ub_bytes: 256}",
		"op: assign\ndtype: int32\ninputs: [[6, 8], [1, 3]]\nregion: [{start: 1, stop: 6, step: 2}, {start: 2, stop: 8, step: 2}]\nrepeat: 3",
	}
	for _, doc := range jobs {
		job, err := ParseJob([]byte(doc))
		require.NoError(t, err, doc)

		var out bytes.Buffer
		require.NoError(t, runJob(&out, job, true, nil), doc)
		assert.Contains(t, out.String(), "verify: ok", doc)
		assert.Contains(t, out.String(), "key:", doc)
	}
}

func TestExecuteDeterministic(t *testing.T) {
	job, err := ParseJob([]byte("op: clip\ninputs: [[5, 5], [1], [5]]\nseed: 42"))
	require.NoError(t, err)
	a, err := Execute(job, false, nil)
	require.NoError(t, err)
	b, err := Execute(job, false, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Output.Data(), b.Output.Data())
	assert.Nil(t, a.Golden)
}

func TestPlanCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tril.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
op: tril
inputs: [[4, 6, 8]]
tiles: [4, 4]
platform: {cores: 4}
`), 0o600))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"plan", "--tiles", path})
	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "key:         200(tiled,float32)")
	assert.Contains(t, text, "iterations:  16 (period 4)")
	assert.Contains(t, text, "cores:       4 used, block 4, tail 4")
	// The tile at rows 0-3, columns 4-7 of the first matrix.
	assert.Contains(t, text, "core 0 #1: index [0 0 4] rows 4 cols 4 above head 4 mid 0 tail 0")
	assert.Equal(t, 1+16, strings.Count(text, "\ncore "), "header plus one line per tile")
}

func TestRunCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.yaml")
	require.NoError(t, os.WriteFile(path, []byte("op: clip\ninputs: [[1], [3, 3], [3]]\n"), 0o600))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"run", path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "verify: ok")
	assert.Contains(t, out.String(), "input 0:    fetched")
}

func TestVersionAndInfo(t *testing.T) {
	for _, args := range [][]string{{"version"}, {"info"}} {
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute())
		assert.NotEmpty(t, out.String())
	}
}

func TestLaunchCommand(t *testing.T) {
	dir := t.TempDir()
	jobs := map[string]string{
		"tril":   "op: tril\ndtype: float16\ninputs: [[3, 7, 9]]\ndiagonal: 2\ntiles: [3, 4]\nplatform: {cores: 4}",
		"clip":   "op: clip\ndtype: int32\ninputs: [[1], [6, 5], [5]]\nplatform: {cores: 3, ub_bytes: 128}\nstrategy: tiled",
		"reduce": "op: reducemax\ndtype: float64\ninputs: [[4, 9]]",
		"assign": "op: assign\ndtype: int8\ninputs: [[5, 6], [1, 3]]\nregion: [{start: 0, stop: 5, step: 2}, {start: 1, stop: 6, step: 2}]",
	}
	for name, doc := range jobs {
		t.Run(name, func(t *testing.T) {
			jobPath := filepath.Join(dir, name+".yaml")
			blobPath := filepath.Join(dir, name+tiling.BlobFileExt)
			require.NoError(t, os.WriteFile(jobPath, []byte(doc), 0o600))

			cmd := newRootCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetArgs([]string{"plan", "--out", blobPath, jobPath})
			require.NoError(t, cmd.Execute())

			cmd = newRootCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"launch", jobPath, blobPath})
			require.NoError(t, cmd.Execute())
			assert.Contains(t, out.String(), "verify: ok")
			assert.Contains(t, out.String(), "plan:       "+blobPath)
		})
	}
}

func TestLaunchMismatchedJob(t *testing.T) {
	dir := t.TempDir()
	clip, err := ParseJob([]byte("op: clip\ninputs: [[4], [4], [4]]"))
	require.NoError(t, err)
	p, err := PlanJob(clip)
	require.NoError(t, err)
	blobPath := filepath.Join(dir, "clip"+tiling.BlobFileExt)
	require.NoError(t, tiling.WriteBlobFile(blobPath, p))

	tril, err := ParseJob([]byte("op: tril\ninputs: [[4, 4]]"))
	require.NoError(t, err)
	assert.Error(t, launchJob(&bytes.Buffer{}, tril, blobPath, nil))

	assert.Error(t, launchJob(&bytes.Buffer{}, clip, filepath.Join(dir, "missing"+tiling.BlobFileExt), nil))
}
