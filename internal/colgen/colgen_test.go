package colgen

import (
	"testing"

	"github.com/DRNaser/solvereign/internal/config"
	"github.com/DRNaser/solvereign/internal/model"
)

func inst(id string, day, start, dur int) model.TourInstance {
	return model.TourInstance{TemplateID: id, InstanceNo: 1, Day: day, StartMin: start, EndMin: (start + dur) % 1440}
}

func block(day int, kind model.BlockKind, tours ...model.TourInstance) model.Block {
	work := 0
	for _, t := range tours {
		work += t.DurationMin()
	}
	last := tours[len(tours)-1]
	first := tours[0]
	return model.Block{
		Day:     day,
		Tours:   tours,
		WorkMin: work,
		SpanMin: (last.StartMin + last.DurationMin()) - first.StartMin,
		Kind:    kind,
	}
}

func simplePool() Pool {
	pool := Pool{}
	for day := 1; day <= 7; day++ {
		t := inst("t", day, 480, 480) // 08:00-16:00, 8h
		pool[day] = []model.Block{block(day, model.BlockB1, t)}
	}
	return pool
}

func TestGenerateDeterministic(t *testing.T) {
	pool := simplePool()
	cfg := config.Defaults()
	req1 := Request{DriverType: model.DriverFTE, Duals: map[string]float64{}, Seed: 94, MaxColumns: 3}
	req2 := Request{DriverType: model.DriverFTE, Duals: map[string]float64{}, Seed: 94, MaxColumns: 3}
	cols1 := Generate(pool, cfg, req1)
	cols2 := Generate(pool, cfg, req2)
	if len(cols1) != len(cols2) {
		t.Fatalf("non-deterministic column count: %d vs %d", len(cols1), len(cols2))
	}
	for i := range cols1 {
		if cols1[i].Fingerprint != cols2[i].Fingerprint {
			t.Fatalf("non-deterministic fingerprint at %d", i)
		}
	}
}

func TestGenerateNeverDuplicatesFingerprint(t *testing.T) {
	pool := simplePool()
	cfg := config.Defaults()
	seen := map[string]bool{}
	req := Request{DriverType: model.DriverFTE, Duals: map[string]float64{}, Seed: 1, MaxColumns: 10, Seen: seen}
	cols := Generate(pool, cfg, req)
	fps := map[string]bool{}
	for _, c := range cols {
		if fps[c.Fingerprint] {
			t.Fatalf("duplicate fingerprint emitted: %s", c.Fingerprint)
		}
		fps[c.Fingerprint] = true
	}
}

func TestPTColumnNeverReachesFTEFloor(t *testing.T) {
	pool := Pool{}
	for day := 1; day <= 7; day++ {
		t := inst("t", day, 360, 600) // 10h/day, would exceed PT floor fast
		pool[day] = []model.Block{block(day, model.BlockB1, t)}
	}
	cfg := config.Defaults()
	req := Request{DriverType: model.DriverPT, Duals: map[string]float64{}, Seed: 7, MaxColumns: 5}
	cols := Generate(pool, cfg, req)
	for _, c := range cols {
		if c.WeeklyMin >= FTEFloorMin {
			t.Fatalf("PT column reached FTE floor: %d minutes", c.WeeklyMin)
		}
	}
}

func TestRestViolationRejected(t *testing.T) {
	pool := Pool{}
	// Day 1: tour ending at 23:00 (1380). Day 2: tour starting at 00:00 (0),
	// which is only 60 minutes later absolute -- violates the 660-min rest floor.
	d1 := inst("a", 1, 1320, 60) // 22:00-23:00
	d2 := inst("b", 2, 0, 60)    // 00:00-01:00 next day
	pool[1] = []model.Block{block(1, model.BlockB1, d1)}
	pool[2] = []model.Block{block(2, model.BlockB1, d2)}
	for day := 3; day <= 7; day++ {
		pool[day] = nil
	}
	cfg := config.Defaults()
	req := Request{DriverType: model.DriverFTE, Duals: map[string]float64{}, Seed: 3, MaxColumns: 1}
	cols := Generate(pool, cfg, req)
	if len(cols) == 0 {
		t.Fatalf("expected at least one column")
	}
	c := cols[0]
	if c.Days[1] != nil && c.Days[2] != nil {
		t.Fatalf("expected rest violation to prevent both day-1 and day-2 blocks in the same column")
	}
}
