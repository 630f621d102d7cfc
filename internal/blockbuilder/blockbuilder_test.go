package blockbuilder

import (
	"testing"

	"github.com/DRNaser/solvereign/internal/config"
	"github.com/DRNaser/solvereign/internal/model"
)

func tour(id string, start, dur int) model.TourInstance {
	return model.TourInstance{TemplateID: id, InstanceNo: 1, Day: 1, StartMin: start, EndMin: (start + dur) % 1440}
}

func TestBuildBlocksEmptyDay(t *testing.T) {
	if got := BuildBlocks(1, nil, DefaultCaps(), config.Defaults()); got != nil {
		t.Fatalf("expected nil for empty day, got %v", got)
	}
}

func TestGapBoundaries(t *testing.T) {
	cfg := config.Defaults()
	caps := DefaultCaps()

	// 121-minute gap: forbidden zone, rejected.
	a := tour("a", 360, 120)       // 06:00-08:00
	b121 := tour("b", 360+120+121, 120) // starts 121 min after a ends
	blocks := BuildBlocks(1, []model.TourInstance{a, b121}, caps, cfg)
	for _, blk := range blocks {
		if len(blk.Tours) == 2 {
			t.Fatalf("expected 121-min gap to be rejected, got block %+v", blk)
		}
	}

	// 120-minute gap: accepted as REGULAR.
	b120 := tour("b", 360+120+120, 120)
	blocks = BuildBlocks(1, []model.TourInstance{a, b120}, caps, cfg)
	found := false
	for _, blk := range blocks {
		if len(blk.Tours) == 2 && blk.Kind == model.BlockB2Reg {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 120-min gap to produce a B2_REG block")
	}

	// 239-minute gap: forbidden zone, rejected.
	b239 := tour("b", 360+120+239, 120)
	blocks = BuildBlocks(1, []model.TourInstance{a, b239}, caps, cfg)
	for _, blk := range blocks {
		if len(blk.Tours) == 2 {
			t.Fatalf("expected 239-min gap to be rejected, got block %+v", blk)
		}
	}

	// 240-minute gap: accepted as SPLIT.
	b240 := tour("b", 360+120+240, 120)
	blocks = BuildBlocks(1, []model.TourInstance{a, b240}, caps, cfg)
	found = false
	for _, blk := range blocks {
		if len(blk.Tours) == 2 && blk.Kind == model.BlockB2Split {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 240-min gap to produce a B2_SPLIT block")
	}

	// 30-minute and 360-minute gaps accepted at the opposite boundaries.
	b30 := tour("b", 360+120+30, 120)
	blocks = BuildBlocks(1, []model.TourInstance{a, b30}, caps, cfg)
	found = false
	for _, blk := range blocks {
		if len(blk.Tours) == 2 && blk.Kind == model.BlockB2Reg {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 30-min gap to be accepted as REGULAR")
	}

	b360 := tour("b", 360+120+360, 120)
	blocks = BuildBlocks(1, []model.TourInstance{a, b360}, caps, cfg)
	found = false
	for _, blk := range blocks {
		if len(blk.Tours) == 2 && blk.Kind == model.BlockB2Split {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 360-min gap to be accepted as SPLIT")
	}
}

func TestDeterministicOrder(t *testing.T) {
	cfg := config.Defaults()
	caps := DefaultCaps()
	instances := []model.TourInstance{
		tour("a", 360, 120),
		tour("b", 600, 90),
		tour("c", 900, 60),
	}
	b1 := BuildBlocks(1, instances, caps, cfg)
	b2 := BuildBlocks(1, instances, caps, cfg)
	if len(b1) != len(b2) {
		t.Fatalf("non-deterministic block count: %d vs %d", len(b1), len(b2))
	}
	for i := range b1 {
		if b1[i].Kind != b2[i].Kind || b1[i].FirstStartMin() != b2[i].FirstStartMin() {
			t.Fatalf("non-deterministic order at index %d", i)
		}
	}
}

func TestNoBlockExceedsSpanCaps(t *testing.T) {
	cfg := config.Defaults()
	caps := DefaultCaps()
	instances := []model.TourInstance{
		tour("a", 0, 60),
		tour("b", 200, 60),   // gap 140: outside both the regular and split zones
	}
	blocks := BuildBlocks(1, instances, caps, cfg)
	for _, b := range blocks {
		switch b.Kind {
		case model.BlockB1, model.BlockB2Reg:
			if b.SpanMin > SpanRegularMax {
				t.Fatalf("block %+v exceeds regular span cap", b)
			}
		case model.BlockB2Split, model.BlockB3:
			if b.SpanMin > SpanWideMax {
				t.Fatalf("block %+v exceeds wide span cap", b)
			}
		}
	}
}

func TestThreeTourChainRequiresAllRegularGaps(t *testing.T) {
	cfg := config.Defaults()
	caps := DefaultCaps()
	a := tour("a", 0, 60)    // 00:00-01:00
	b := tour("b", 150, 60)  // gap 90 (regular), 02:30-03:30
	c := tour("c", 500, 60)  // gap from b = 500-210 = 290 (split zone, not regular)
	blocks := BuildBlocks(1, []model.TourInstance{a, b, c}, caps, cfg)
	for _, blk := range blocks {
		if len(blk.Tours) == 3 {
			t.Fatalf("expected no 3-tour block when second gap is not regular, got %+v", blk)
		}
	}
}
