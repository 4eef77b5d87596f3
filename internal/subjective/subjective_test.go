package subjective

import (
	"testing"

	"github.com/nbacklab/ecg-workload/internal/study"
)

func TestExtract_GroupsBySegment(t *testing.T) {
	rows := []study.CogEvalRow{
		{Item: "mental_demand_C", Value: 10},
		{Item: "physical_demand_C", Value: 2},
		{Item: "temporal_demand_C", Value: 6},
		{Item: "own_performance_C", Value: 8},
		{Item: "effort_C", Value: 12},
		{Item: "frustration_level_C", Value: 4},
		{Item: "mental_demand_2B", Value: 18},
		{Item: "effort_2B", Value: 16},
	}

	scores := Extract("P01", rows)

	if len(scores) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(scores))
	}
	// Порядок появления сегментов сохраняется
	if scores[0].Segment != "C" || scores[1].Segment != "2B" {
		t.Errorf("unexpected segment order: %s, %s", scores[0].Segment, scores[1].Segment)
	}

	c := scores[0]
	if c.MentalDemand != 10 || c.Effort != 12 {
		t.Errorf("unexpected C values: %+v", c)
	}
	// QtotalMW = (10+2+6+8+12+4)/6 = 7
	if c.TotalWorkload != 7 {
		t.Errorf("expected total workload 7, got %v", c.TotalWorkload)
	}

	// Для 2B заполнены только две метрики: среднее берется по отвеченным
	twoBack := scores[1]
	if twoBack.TotalWorkload != 17 {
		t.Errorf("expected total workload 17, got %v", twoBack.TotalWorkload)
	}
}

func TestExtract_MalformedItemsSkipped(t *testing.T) {
	rows := []study.CogEvalRow{
		{Item: "noseparator", Value: 1},
		{Item: "effort_C", Value: 5},
	}

	scores := Extract("P01", rows)

	if len(scores) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(scores))
	}
	if scores[0].Segment != "C" {
		t.Errorf("unexpected segment: %s", scores[0].Segment)
	}
}
