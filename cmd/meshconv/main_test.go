package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/resmesh/internal/config"
	"github.com/Faultbox/resmesh/internal/export"
	"github.com/Faultbox/resmesh/internal/meshbuild"
	"github.com/Faultbox/resmesh/pkg/resfile"
)

const quadOBJ = `mtllib quad.mtl
o Quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
usemtl Stone
f 1/1 2/2 3/3 4/4
`

const quadMTL = `newmtl Stone
map_Kd stone.png
`

func newJob(t *testing.T, dir string) *job {
	t.Helper()
	conv, err := meshbuild.NewConverter(config.Default())
	if err != nil {
		t.Fatal(err)
	}
	return &job{
		conv:      conv,
		input:     filepath.Join(dir, "quad.obj"),
		output:    filepath.Join(dir, "out", "quad.rmsh"),
		materials: filepath.Join(dir, "out", "quad.yaml"),
	}
}

func writeInput(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "quad.obj"), []byte(quadOBJ), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "quad.mtl"), []byte(quadMTL), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestJobRun(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir)
	j := newJob(t, dir)

	if err := j.run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	model, _, err := resfile.Load(j.output)
	if err != nil {
		t.Fatalf("loading output: %v", err)
	}
	if len(model.Meshes) != 1 || model.Meshes[0].VertexCount() != 4 || len(model.Meshes[0].Primitives) != 2 {
		t.Errorf("unexpected model: %+v", model.Stats())
	}

	materials, err := export.LoadMaterials(j.materials)
	if err != nil {
		t.Fatalf("loading materials: %v", err)
	}
	if len(materials) != 1 || materials[0].Name != "Stone" || len(materials[0].Textures) != 1 {
		t.Errorf("materials = %+v", materials)
	}
	if materials[0].Hash != model.Meshes[0].MaterialHash {
		t.Errorf("material hash %d does not match mesh %d", materials[0].Hash, model.Meshes[0].MaterialHash)
	}
}

func TestJobRun_FailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	j := newJob(t, dir)

	if err := j.run(context.Background()); err == nil {
		t.Fatal("run succeeded without input")
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Errorf("output directory created on failure (stat error %v)", err)
	}

	writeInput(t, dir)
	j.output = ""
	if err := j.run(context.Background()); err == nil {
		t.Error("run succeeded without output path")
	}
}

func TestJobRun_SaveFailureLeavesNoPartialOutput(t *testing.T) {
	t.Run("model", func(t *testing.T) {
		dir := t.TempDir()
		writeInput(t, dir)
		j := newJob(t, dir)
		if err := os.MkdirAll(j.output, 0755); err != nil {
			t.Fatal(err)
		}

		if err := j.run(context.Background()); err == nil {
			t.Fatal("run succeeded with a directory as output")
		}
		if _, err := os.Stat(j.materials); !os.IsNotExist(err) {
			t.Errorf("material file written on failure (stat error %v)", err)
		}
	})

	t.Run("materials", func(t *testing.T) {
		dir := t.TempDir()
		writeInput(t, dir)
		j := newJob(t, dir)
		if err := os.MkdirAll(j.materials, 0755); err != nil {
			t.Fatal(err)
		}

		if err := j.run(context.Background()); err == nil {
			t.Fatal("run succeeded with a directory as material output")
		}
		if _, err := os.Stat(j.output); !os.IsNotExist(err) {
			t.Errorf("model file left on failure (stat error %v)", err)
		}
	})
}

func TestWatch_ConvertsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir)
	j := newJob(t, dir)
	j.materials = ""

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watch(ctx, j) }()

	// the watcher registers asynchronously, so the input is rewritten with
	// gaps longer than the debounce until a conversion lands
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(2 * watchDebounce)
		if _, err := os.Stat(j.output); err == nil {
			break
		}
		writeInput(t, dir)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch returned %v", err)
	}
	if _, err := os.Stat(j.output); err != nil {
		t.Errorf("output not written after change: %v", err)
	}
}

func TestWatch_RequiresInputOnDisk(t *testing.T) {
	j := newJob(t, t.TempDir())
	if err := watch(context.Background(), j); err == nil {
		t.Error("watch accepted a missing input")
	}
}
