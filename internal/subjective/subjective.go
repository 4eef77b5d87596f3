package subjective

import (
	"log"
	"strings"

	"github.com/nbacklab/ecg-workload/internal/stats"
	"github.com/nbacklab/ecg-workload/internal/study"
	"github.com/nbacklab/ecg-workload/pkg/models"
)

// Метрики анкеты NASA-TLX в порядке опросника
var nasaTLXMetrics = []string{
	"mental_demand",
	"physical_demand",
	"temporal_demand",
	"own_performance",
	"effort",
	"frustration_level",
}

// Extract собирает субъективные оценки рабочей нагрузки участника.
// Каждая строка cog_evals.csv имеет вид {метрика}_{сегмент}; имя сегмента
// отделяется по последнему подчеркиванию. Интегральная оценка QtotalMW -
// среднее шести метрик анкеты.
func Extract(participant string, rows []study.CogEvalRow) []models.SubjectiveScore {
	// Сегмент -> метрика -> значение, с сохранением порядка появления сегментов
	var order []string
	bySegment := make(map[string]map[string]float64)

	for _, row := range rows {
		idx := strings.LastIndex(row.Item, "_")
		if idx <= 0 || idx == len(row.Item)-1 {
			log.Printf("[SUBJECTIVE] Skipping malformed item %q for participant %s", row.Item, participant)
			continue
		}
		measure, segment := row.Item[:idx], row.Item[idx+1:]

		if _, seen := bySegment[segment]; !seen {
			order = append(order, segment)
			bySegment[segment] = make(map[string]float64)
		}
		bySegment[segment][measure] = row.Value
	}

	scores := make([]models.SubjectiveScore, 0, len(order))
	for _, segment := range order {
		values := bySegment[segment]
		score := models.SubjectiveScore{
			Participant:      participant,
			Segment:          segment,
			MentalDemand:     values["mental_demand"],
			PhysicalDemand:   values["physical_demand"],
			TemporalDemand:   values["temporal_demand"],
			OwnPerformance:   values["own_performance"],
			Effort:           values["effort"],
			FrustrationLevel: values["frustration_level"],
		}

		answered := make([]float64, 0, len(nasaTLXMetrics))
		for _, metric := range nasaTLXMetrics {
			if value, ok := values[metric]; ok {
				answered = append(answered, value)
			}
		}
		score.TotalWorkload = stats.Mean(answered)

		scores = append(scores, score)
	}
	return scores
}
