package portfolio

import (
	"testing"

	"github.com/DRNaser/solvereign/internal/blockbuilder"
	"github.com/DRNaser/solvereign/internal/colgen"
	"github.com/DRNaser/solvereign/internal/config"
	"github.com/DRNaser/solvereign/internal/model"
)

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

func weekInstances(id string, startMin, durMin int) []model.TourInstance {
	var out []model.TourInstance
	for day := 1; day <= 5; day++ {
		out = append(out, model.TourInstance{TemplateID: id, InstanceNo: day, Day: day, StartMin: startMin, EndMin: (startMin + durMin) % 1440})
	}
	return out
}

func TestSelectPathDefaultsToFastForCalmInstance(t *testing.T) {
	instances := weekInstances("a", 480, 480)
	pool := buildPool(instances)
	profile := ProfileInstances(instances, pool)
	if got := SelectPath(profile); got != PathFast {
		t.Fatalf("expected FAST for a calm single-tour-per-day instance, got %s", got)
	}
}

func TestSelectPathEscalatesOnPoolPressure(t *testing.T) {
	profile := Profile{PoolPressure: 2.0}
	if got := SelectPath(profile); got != PathHeavy {
		t.Fatalf("expected HEAVY for high pool pressure, got %s", got)
	}
}

func TestRunCoversEveryInstance(t *testing.T) {
	instances := weekInstances("a", 480, 480)
	pool := buildPool(instances)
	cfg := config.Defaults()
	out, err := Run(instances, pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	covered := map[string]bool{}
	for _, a := range out.Result.Assignments {
		covered[a.TourInstanceID] = true
	}
	for _, ti := range instances {
		if !covered[ti.ID()] {
			t.Fatalf("instance %s not covered by portfolio run", ti.ID())
		}
	}
}

func TestRunEmptyInstances(t *testing.T) {
	out, err := Run(nil, colgen.Pool{}, config.Defaults())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Result.DriversTotal != 0 {
		t.Fatalf("expected zero drivers for empty instance set, got %+v", out.Result)
	}
}
