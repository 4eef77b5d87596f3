package segmentation

import (
	"fmt"
	"log"
	"strings"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// Смещение усеченного варианта fixation_cross: по 30 секунд с каждого края
const fixationTrimMS = 30000

// Segmenter нарезает сигнал ЭКГ на сегменты по журналу событий эксперимента
type Segmenter struct{}

func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Segment обходит уникальные метки журнала в порядке первого появления.
// Каждая метка *_begin порождает сегмент; курсор текущего условия обновляется
// короткими кодами (C, 0B, 2B) и действует до следующего кода. После нарезки
// фазы каждого условия склеиваются в блоки {условие}.1 и {условие}.2.
func (sg *Segmenter) Segment(participant string, ecg []models.Sample, events []models.EventEntry) *SegmentSet {
	index := newEventIndex(events)
	set := NewSegmentSet()

	var conditionOrder []models.Condition
	condition := ""

	for _, label := range index.labels {
		if !strings.HasSuffix(label, beginSuffix) {
			continue
		}
		name := strings.TrimSuffix(label, beginSuffix)

		// Короткий первый фрагмент метки переключает курсор условия
		if token := firstToken(name); len(token) <= 2 {
			condition = token
		}
		if cond, ok := conditionFromToken(condition); ok && !containsCondition(conditionOrder, cond) {
			conditionOrder = append(conditionOrder, cond)
		}

		beginTS, _ := index.timestamp(label)
		endTS, usedFallback, err := resolveEnd(index, name)
		if err != nil {
			log.Printf("[SEGMENT] Skipping segment %s for participant %s: %v", name, participant, err)
			continue
		}

		set.Put(extractSegment(name, ecg, beginTS, endTS))

		// Усеченный вариант опорного сегмента существует только когда его
		// конец пришлось искать по концу условия
		if usedFallback && name == "fixation_cross" {
			set.Put(extractSegment("fixation_cross_v2", ecg, beginTS+fixationTrimMS, endTS-fixationTrimMS))
		}
	}

	for _, cond := range conditionOrder {
		if combined := combinePhases(set, cond, 1, 6, fmt.Sprintf("%s.1", cond)); combined != nil {
			set.Put(combined)
		}
		if combined := combinePhases(set, cond, 7, 12, fmt.Sprintf("%s.2", cond)); combined != nil {
			set.Put(combined)
		}
	}

	return set
}

// resolveEnd ищет конец сегмента: сначала точную метку {имя}_end, затем конец
// условия {первый фрагмент}_end
func resolveEnd(index *eventIndex, name string) (int64, bool, error) {
	if ts, ok := index.timestamp(name + endSuffix); ok {
		return ts, false, nil
	}
	if ts, ok := index.timestamp(firstToken(name) + endSuffix); ok {
		return ts, true, nil
	}
	return 0, false, fmt.Errorf("no end event for %s: %w", name, models.ErrMissingBoundary)
}

// extractSegment вырезает отсчёты в границах, включая обе границы
func extractSegment(name string, ecg []models.Sample, beginMS, endMS int64) *models.Segment {
	segment := &models.Segment{
		Name:    name,
		BeginMS: beginMS,
		EndMS:   endMS,
	}
	for _, sample := range ecg {
		if sample.TimestampMS >= beginMS && sample.TimestampMS <= endMS {
			segment.Samples = append(segment.Samples, sample)
		}
	}
	return segment
}

// combinePhases склеивает присутствующие фазы условия в возрастающем порядке
// номеров. Отсутствующие фазы пропускаются; без единой фазы блок не создается.
func combinePhases(set *SegmentSet, cond models.Condition, fromPhase, toPhase int, name string) *models.Segment {
	var combined *models.Segment
	for phase := fromPhase; phase <= toPhase; phase++ {
		phaseName := fmt.Sprintf("%s_phase_%d", cond, phase)
		segment, ok := set.Get(phaseName)
		if !ok {
			continue
		}
		if combined == nil {
			combined = &models.Segment{
				Name:    name,
				BeginMS: segment.BeginMS,
			}
		}
		combined.EndMS = segment.EndMS
		combined.Samples = append(combined.Samples, segment.Samples...)
	}
	return combined
}

func containsCondition(conditions []models.Condition, cond models.Condition) bool {
	for _, c := range conditions {
		if c == cond {
			return true
		}
	}
	return false
}
