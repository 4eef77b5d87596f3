package models

import (
	"errors"
	"fmt"
	"time"
)

// Sample представляет один отсчёт сигнала ЭКГ
type Sample struct {
	TimestampMS int64   `json:"timestamp_ms"`
	Value       float64 `json:"value"`
}

// EventEntry представляет строку журнала событий симулятора
type EventEntry struct {
	TimestampMS int64  `json:"timestamp_ms"`
	Label       string `json:"label"`
}

// Segment представляет фрагмент сигнала, вырезанный по границам события
type Segment struct {
	Name    string   `json:"name"`
	BeginMS int64    `json:"begin_ms"`
	EndMS   int64    `json:"end_ms"`
	Samples []Sample `json:"samples"`
}

// Len возвращает число отсчётов в сегменте
func (s *Segment) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Samples)
}

// Values возвращает значения сигнала без временных меток
func (s *Segment) Values() []float64 {
	if s == nil {
		return nil
	}
	values := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		values[i] = sample.Value
	}
	return values
}

// DurationSec возвращает длительность сегмента в секундах по меткам первого
// и последнего отсчёта
func (s *Segment) DurationSec() float64 {
	if s == nil || len(s.Samples) == 0 {
		return 0
	}
	durationMS := s.Samples[len(s.Samples)-1].TimestampMS - s.Samples[0].TimestampMS
	return float64(durationMS) / 1000
}

// Condition представляет экспериментальное условие протокола n-back
type Condition string

const (
	ConditionControl  Condition = "C"
	ConditionZeroBack Condition = "0B"
	ConditionTwoBack  Condition = "2B"
)

// Conditions перечисляет условия в порядке протокола
func Conditions() []Condition {
	return []Condition{ConditionControl, ConditionZeroBack, ConditionTwoBack}
}

// Текстовые варианты условий из французских журналов симулятора
var conditionAliases = map[string]Condition{
	"(controle)": ConditionControl,
	"(Contrôle)": ConditionControl,
	"(CONTRÔLE)": ConditionControl,
	"(0back)":    ConditionZeroBack,
	"(0B)":       ConditionZeroBack,
	"(0BACK)":    ConditionZeroBack,
	"(2back)":    ConditionTwoBack,
	"(2B)":       ConditionTwoBack,
	"(2BACK)":    ConditionTwoBack,
}

// NormalizeCondition приводит текстовый вариант условия к каноническому коду
func NormalizeCondition(raw string) (Condition, bool) {
	if cond, ok := conditionAliases[raw]; ok {
		return cond, true
	}
	switch Condition(raw) {
	case ConditionControl, ConditionZeroBack, ConditionTwoBack:
		return Condition(raw), true
	}
	return "", false
}

// CleaningMethod представляет метод очистки сигнала ЭКГ
type CleaningMethod string

const (
	MethodNeurokit        CleaningMethod = "neurokit"
	MethodPanTompkins1985 CleaningMethod = "pantompkins1985"
	MethodHamilton2002    CleaningMethod = "hamilton2002"
	MethodElgendi2010     CleaningMethod = "elgendi2010"
	MethodEngzeeMod2012   CleaningMethod = "engzeemod2012"
	MethodVG              CleaningMethod = "vg"
	MethodBiosppy         CleaningMethod = "biosppy"
)

// SupportedMethods перечисляет поддерживаемые методы очистки
func SupportedMethods() []CleaningMethod {
	return []CleaningMethod{
		MethodNeurokit,
		MethodPanTompkins1985,
		MethodHamilton2002,
		MethodElgendi2010,
		MethodEngzeeMod2012,
		MethodVG,
		MethodBiosppy,
	}
}

// ParseCleaningMethod проверяет имя метода очистки
func ParseCleaningMethod(raw string) (CleaningMethod, error) {
	for _, method := range SupportedMethods() {
		if CleaningMethod(raw) == method {
			return method, nil
		}
	}
	return "", fmt.Errorf("method %q: %w", raw, ErrUnsupportedMethod)
}

// HRVRecord представляет плоскую строку метрик ВСР для одного сегмента
type HRVRecord struct {
	Participant string         `json:"participant"`
	Method      CleaningMethod `json:"method"`
	Segment     string         `json:"segment"`
	MeanHR      float64        `json:"mean_hr"`
	MeanNN      float64        `json:"mean_nn"`
	SDNN        float64        `json:"sdnn"`
	RMSSD       float64        `json:"rmssd"`
	SDSD        float64        `json:"sdsd"`
	CVNN        float64        `json:"cvnn"`
	MedianNN    float64        `json:"median_nn"`
	MadNN       float64        `json:"mad_nn"`
	PNN50       float64        `json:"pnn50"`
	PNN20       float64        `json:"pnn20"`
	VLF         float64        `json:"vlf"`
	LF          float64        `json:"lf"`
	HF          float64        `json:"hf"`
	LFHF        float64        `json:"lf_hf"`
	LFn         float64        `json:"lf_n"`
	HFn         float64        `json:"hf_n"`
}

// QualityScore представляет оценку качества одного сегмента
type QualityScore struct {
	Participant string  `json:"participant"`
	Method      string  `json:"method"`
	Segment     string  `json:"segment"`
	Rating      string  `json:"rating"`
	Score       float64 `json:"score"`
}

// QualityIndex представляет средний индекс качества участника для метода
type QualityIndex struct {
	Participant string  `json:"participant"`
	Method      string  `json:"method"`
	Index       float64 `json:"index"`
}

// SubjectiveScore представляет ответы NASA-TLX участника для сегмента
type SubjectiveScore struct {
	Participant      string  `json:"participant"`
	Segment          string  `json:"segment"`
	MentalDemand     float64 `json:"mental_demand"`
	PhysicalDemand   float64 `json:"physical_demand"`
	TemporalDemand   float64 `json:"temporal_demand"`
	OwnPerformance   float64 `json:"own_performance"`
	Effort           float64 `json:"effort"`
	FrustrationLevel float64 `json:"frustration_level"`
	TotalWorkload    float64 `json:"total_workload"`
}

// ErrorCount представляет число ошибок участника в блоке условия
type ErrorCount struct {
	Participant string         `json:"participant"`
	Segment     string         `json:"segment"`
	ByType      map[string]int `json:"by_type"`
	Total       int            `json:"total"`
}

// RunStatus представляет статус батч-прогона анализа
type RunStatus string

const (
	RunStatusPending RunStatus = "PENDING"
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusDone    RunStatus = "DONE"
	RunStatusFailed  RunStatus = "FAILED"
)

// RunConfig содержит параметры прогона анализа
type RunConfig struct {
	SamplingRate     int              `json:"sampling_rate"`
	Methods          []CleaningMethod `json:"methods"`
	MinSegmentLength int              `json:"min_segment_length"`
	Verbose          bool             `json:"verbose"`
}

// RunProgress содержит счётчики выполнения прогона
type RunProgress struct {
	TotalParticipants int    `json:"total_participants"`
	Completed         int    `json:"completed"`
	Skipped           int    `json:"skipped"`
	CurrentStage      string `json:"current_stage,omitempty"`
}

// Run представляет один прогон анализа исследования
type Run struct {
	RunID      string      `json:"run_id"`
	StudyDir   string      `json:"study_dir"`
	Config     RunConfig   `json:"config"`
	Status     RunStatus   `json:"status"`
	Progress   RunProgress `json:"progress"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// ProgressEvent представляет событие хода анализа для трансляции клиентам
type ProgressEvent struct {
	RunID       string    `json:"run_id"`
	Participant string    `json:"participant,omitempty"`
	Stage       string    `json:"stage"`
	Message     string    `json:"message,omitempty"`
	Completed   int       `json:"completed"`
	Total       int       `json:"total"`
	Timestamp   time.Time `json:"timestamp"`
}

// RunResults собирает все результаты прогона
type RunResults struct {
	RunID      string            `json:"run_id"`
	HRV        []HRVRecord       `json:"hrv"`
	Quality    []QualityScore    `json:"quality"`
	Indices    []QualityIndex    `json:"quality_indices"`
	Subjective []SubjectiveScore `json:"subjective"`
	Errors     []ErrorCount      `json:"errors"`
}

// Структуры ответов API
type UploadResponse struct {
	RunID        string   `json:"run_id"`
	Status       string   `json:"status"`
	Participants []string `json:"participants"`
	Message      string   `json:"message,omitempty"`
}

type StartResponse struct {
	RunID  string    `json:"run_id"`
	Status RunStatus `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Ошибки
var (
	ErrRunNotFound       = errors.New("run not found")
	ErrRunExpired        = errors.New("run expired")
	ErrUnsupportedMethod = errors.New("cleaning method is not supported")
	ErrMissingBoundary   = errors.New("segment boundary not found")
	ErrShortSegment      = errors.New("segment is empty or too short")
	ErrMissingRecording  = errors.New("participant recording files missing")
)
