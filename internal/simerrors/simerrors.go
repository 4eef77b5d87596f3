package simerrors

import (
	"log"
	"strings"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// Отметка совершённой ошибки в таблице наблюдения
const errorMark = "X"

// Extract считает ошибки пилотирования по таблице наблюдения участника.
// Первая строка таблицы содержит заголовки блоков условий с текстовыми
// вариантами в скобках; колонки блока определяются позицией заголовка:
// блок с колонки 1 занимает колонки 1-7, с колонки 8 - 8-14, с колонки 15 -
// все оставшиеся. Остальные строки - типы ошибок с отметками X.
func Extract(participant string, grid [][]string) []models.ErrorCount {
	if len(grid) < 2 {
		return nil
	}

	positions := blockPositions(participant, grid[0])

	counts := make([]models.ErrorCount, 0, len(models.Conditions()))
	byCondition := make(map[models.Condition]*models.ErrorCount)
	for _, cond := range models.Conditions() {
		counts = append(counts, models.ErrorCount{
			Participant: participant,
			Segment:     string(cond),
			ByType:      make(map[string]int),
		})
		byCondition[cond] = &counts[len(counts)-1]
	}

	for _, row := range grid[1:] {
		if len(row) == 0 {
			continue
		}
		errorType := strings.TrimSpace(row[0])
		if errorType == "" {
			continue
		}

		for cond, start := range positions {
			end := blockEnd(start, len(row))
			for col := start; col < end && col < len(row); col++ {
				if strings.TrimSpace(row[col]) == errorMark {
					count := byCondition[cond]
					count.ByType[errorType]++
					count.Total++
				}
			}
		}
	}

	return counts
}

// blockPositions находит стартовую колонку блока каждого условия по
// текстовому варианту в скобках в строке заголовков
func blockPositions(participant string, header []string) map[models.Condition]int {
	positions := make(map[models.Condition]int)
	for col, title := range header {
		idx := strings.Index(title, "(")
		if idx < 0 {
			continue
		}
		variant := title[idx:]
		cond, ok := models.NormalizeCondition(variant)
		if !ok {
			log.Printf("[ERRORS] Unknown condition variant %q in error grid of participant %s", variant, participant)
			continue
		}
		positions[cond] = col
	}
	return positions
}

// blockEnd возвращает колонку после последней колонки блока
func blockEnd(start, rowLen int) int {
	switch start {
	case 1:
		return 8
	case 8:
		return 15
	case 15:
		return rowLen
	default:
		return rowLen
	}
}
