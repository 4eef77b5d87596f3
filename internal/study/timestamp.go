package study

import (
	"fmt"
	"time"
)

// Форматы времени источников: регистратор ЭКГ пишет день/месяц/год,
// журнал симулятора - ISO-подобный порядок
const (
	ecgTimeLayout = "02/01/2006 15:04:05.999"
	logTimeLayout = "2006-01-02 15:04:05.999"
)

// millisecondsSinceMidnight нормализует время суток в миллисекунды от полуночи.
// Обе шкалы источников приводятся к этой оси, чтобы отсчёты ЭКГ и события
// симулятора были сопоставимы между собой.
func millisecondsSinceMidnight(t time.Time) int64 {
	return int64(t.Hour())*3600000 +
		int64(t.Minute())*60000 +
		int64(t.Second())*1000 +
		int64(t.Nanosecond())/1000000
}

// ParseECGTime разбирает метку времени регистратора ЭКГ
func ParseECGTime(raw string) (int64, error) {
	t, err := time.Parse(ecgTimeLayout, raw)
	if err != nil {
		return 0, fmt.Errorf("invalid ECG time %q: %w", raw, err)
	}
	return millisecondsSinceMidnight(t), nil
}

// ParseLogTime разбирает метку времени журнала событий
func ParseLogTime(raw string) (int64, error) {
	t, err := time.Parse(logTimeLayout, raw)
	if err != nil {
		return 0, fmt.Errorf("invalid log time %q: %w", raw, err)
	}
	return millisecondsSinceMidnight(t), nil
}
