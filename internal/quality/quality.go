package quality

import (
	"context"
	"log"

	"github.com/nbacklab/ecg-workload/internal/signal"
	"github.com/nbacklab/ecg-workload/internal/stats"
	"github.com/nbacklab/ecg-workload/pkg/models"
)

// DefaultSegments перечисляет сегменты, по которым считается индекс качества
func DefaultSegments() []string {
	return []string{"fixation_cross", "C", "0B", "2B"}
}

// Численные веса текстовых классов качества zhao2018
var ratingScores = map[string]float64{
	signal.QualityUnacceptable:     0.1,
	signal.QualityBarelyAcceptable: 0.5,
	signal.QualityExcellent:        1.0,
}

// ScoreForRating переводит текстовый класс качества в вес.
// Неизвестный класс получает вес неприемлемого.
func ScoreForRating(rating string) float64 {
	if score, ok := ratingScores[rating]; ok {
		return score
	}
	return ratingScores[signal.QualityUnacceptable]
}

// Evaluator оценивает качество очищенных сегментов через DSP коллаборатора
type Evaluator struct {
	scorer       signal.QualityScorer
	samplingRate int
	verbose      bool
}

func NewEvaluator(scorer signal.QualityScorer, samplingRate int, verbose bool) *Evaluator {
	return &Evaluator{scorer: scorer, samplingRate: samplingRate, verbose: verbose}
}

// Evaluate оценивает сегменты интереса участника для каждого метода очистки.
// Возвращает оценки по сегментам и средний индекс качества по методам,
// округленный до двух знаков.
func (e *Evaluator) Evaluate(ctx context.Context, participant string, cleaned map[models.CleaningMethod]*signal.CleanedSet, segments []string) ([]models.QualityScore, []models.QualityIndex, error) {
	var scores []models.QualityScore
	var indices []models.QualityIndex

	for _, method := range models.SupportedMethods() {
		cleanedSet, ok := cleaned[method]
		if !ok {
			continue
		}

		var methodScores []float64
		for _, name := range segments {
			segment, ok := cleanedSet.Segments.Get(name)
			if !ok {
				continue
			}

			rating, err := e.scorer.ScoreQuality(ctx, segment.Values(), e.samplingRate)
			if err != nil {
				log.Printf("[QUALITY] Failed to score segment %s for participant %s: %v", name, participant, err)
				continue
			}

			score := ScoreForRating(rating)
			if e.verbose {
				log.Printf("[QUALITY] Segment %s of participant %s cleaned with %s: %s (%.1f)",
					name, participant, method, rating, score)
			}

			scores = append(scores, models.QualityScore{
				Participant: participant,
				Method:      string(method),
				Segment:     name,
				Rating:      rating,
				Score:       score,
			})
			methodScores = append(methodScores, score)
		}

		if len(methodScores) > 0 {
			indices = append(indices, models.QualityIndex{
				Participant: participant,
				Method:      string(method),
				Index:       stats.Round2(stats.Mean(methodScores)),
			})
		}
	}

	return scores, indices, nil
}
