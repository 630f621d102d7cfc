package master

import (
	"testing"

	"github.com/DRNaser/solvereign/internal/blockbuilder"
	"github.com/DRNaser/solvereign/internal/colgen"
	"github.com/DRNaser/solvereign/internal/config"
	"github.com/DRNaser/solvereign/internal/model"
)

func weekInstances(id string, startMin, durMin int) []model.TourInstance {
	var out []model.TourInstance
	for day := 1; day <= 5; day++ {
		out = append(out, model.TourInstance{TemplateID: id, InstanceNo: day, Day: day, StartMin: startMin, EndMin: (startMin + durMin) % 1440})
	}
	return out
}

func buildPool(instances []model.TourInstance) colgen.Pool {
	byDay := map[int][]model.TourInstance{}
	for _, ti := range instances {
		byDay[ti.Day] = append(byDay[ti.Day], ti)
	}
	pool := colgen.Pool{}
	caps := blockbuilder.DefaultCaps()
	cfg := config.Defaults()
	for day := 1; day <= 7; day++ {
		pool[day] = blockbuilder.BuildBlocks(day, byDay[day], caps, cfg)
	}
	return pool
}

func TestSolveCoversEveryInstance(t *testing.T) {
	var instances []model.TourInstance
	instances = append(instances, weekInstances("a", 480, 480)...) // 08:00-16:00
	instances = append(instances, weekInstances("b", 0, 120)...)   // 00:00-02:00

	pool := buildPool(instances)
	cfg := config.Defaults()
	res, err := Solve(instances, pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	covered := map[string]bool{}
	for _, a := range res.Assignments {
		covered[a.TourInstanceID] = true
	}
	for _, ti := range instances {
		if !covered[ti.ID()] {
			t.Fatalf("instance %s not covered", ti.ID())
		}
	}
}

func TestSolveDeterministic(t *testing.T) {
	var instances []model.TourInstance
	instances = append(instances, weekInstances("a", 480, 480)...)
	pool := buildPool(instances)
	cfg := config.Defaults()

	r1, err := Solve(instances, pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := Solve(instances, pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r1.LexCost != r2.LexCost || r1.DriversTotal != r2.DriversTotal {
		t.Fatalf("non-deterministic solve: %+v vs %+v", r1, r2)
	}
	if len(r1.Assignments) != len(r2.Assignments) {
		t.Fatalf("non-deterministic assignment count")
	}
	for i := range r1.Assignments {
		if r1.Assignments[i] != r2.Assignments[i] {
			t.Fatalf("non-deterministic assignment at %d: %+v vs %+v", i, r1.Assignments[i], r2.Assignments[i])
		}
	}
}

func TestSolveEmptyInstancesReturnsEmptyResult(t *testing.T) {
	res, err := Solve(nil, colgen.Pool{}, config.Defaults())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DriversTotal != 0 || len(res.Assignments) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestLexicographicCostMatchesWeights(t *testing.T) {
	var instances []model.TourInstance
	instances = append(instances, weekInstances("a", 480, 480)...)
	pool := buildPool(instances)
	cfg := config.Defaults()
	res, err := Solve(instances, pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := int64(res.DriversTotal)*WeightDrivers + int64(res.PTDrivers)*WeightPT +
		int64(res.SplitBlocks)*WeightSplit + int64(res.SingletonBlks)*WeightSingleton
	if res.LexCost != expected {
		t.Fatalf("lex cost mismatch: got %d want %d", res.LexCost, expected)
	}
}
