package study

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// CogEvalRow представляет один ответ субъективной оценки из cog_evals.csv
type CogEvalRow struct {
	Item  string
	Value float64
}

// ParticipantData содержит все исходные данные одного участника
type ParticipantData struct {
	Participant string
	ECG         []models.Sample
	Events      []models.EventEntry
	CogEvals    []CogEvalRow
	ErrorGrid   [][]string // nil, если таблица ошибок отсутствует
}

// Loader читает каталог исследования: по подкаталогу на участника
type Loader struct {
	root string
}

func NewLoader(root string) *Loader {
	return &Loader{root: root}
}

// Participants возвращает отсортированный список идентификаторов участников
func (l *Loader) Participants() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read study root %s: %w", l.root, err)
	}

	var participants []string
	for _, entry := range entries {
		if entry.IsDir() {
			participants = append(participants, entry.Name())
		}
	}
	sort.Strings(participants)
	return participants, nil
}

// LoadParticipant загружает ЭКГ, журнал событий и субъективные оценки участника.
// Отсутствие любого из трёх обязательных файлов означает пропуск участника
// целиком (models.ErrMissingRecording).
func (l *Loader) LoadParticipant(participant string) (*ParticipantData, error) {
	folder := filepath.Join(l.root, participant)

	ecgFile, err := findECGFile(filepath.Join(folder, "ECG"))
	if err != nil {
		return nil, fmt.Errorf("participant %s: %w", participant, models.ErrMissingRecording)
	}

	logEventPath := filepath.Join(folder, "SIMU", "log_event.csv")
	cogEvalsPath := filepath.Join(folder, "SIMU", "cog_evals.csv")
	if _, err := os.Stat(logEventPath); err != nil {
		return nil, fmt.Errorf("participant %s: %w", participant, models.ErrMissingRecording)
	}
	if _, err := os.Stat(cogEvalsPath); err != nil {
		return nil, fmt.Errorf("participant %s: %w", participant, models.ErrMissingRecording)
	}

	ecg, err := readECGFile(ecgFile)
	if err != nil {
		return nil, fmt.Errorf("participant %s: %w", participant, err)
	}

	events, err := readEventLog(logEventPath)
	if err != nil {
		return nil, fmt.Errorf("participant %s: %w", participant, err)
	}

	cogEvals, err := readCogEvals(cogEvalsPath)
	if err != nil {
		return nil, fmt.Errorf("participant %s: %w", participant, err)
	}

	data := &ParticipantData{
		Participant: participant,
		ECG:         ecg,
		Events:      events,
		CogEvals:    cogEvals,
	}

	// Таблица ошибок опциональна: при её отсутствии участник остаётся в выборке
	errorPath := filepath.Join(folder, fmt.Sprintf("Tableau_suivi_erreur_%s.csv", participant))
	grid, err := readErrorGrid(errorPath)
	if err != nil {
		log.Printf("[STUDY] Missing error file for participant %s: %v", participant, err)
	} else {
		data.ErrorGrid = grid
	}

	return data, nil
}

// findECGFile ищет первый CSV файл с 'ECG' в имени внутри каталога записи
func findECGFile(ecgFolder string) (string, error) {
	entries, err := os.ReadDir(ecgFolder)
	if err != nil {
		return "", fmt.Errorf("failed to read ECG folder: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.Contains(name, "ECG") && strings.HasSuffix(name, ".csv") {
			return filepath.Join(ecgFolder, name), nil
		}
	}
	return "", fmt.Errorf("no ECG csv file in %s", ecgFolder)
}

// readECGFile читает сигнал регистратора: колонки Time и EcgWaveform,
// разделитель запятая
func readECGFile(path string) ([]models.Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ECG file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read ECG header: %w", err)
	}

	timeCol := findColumn(header, "Time")
	valueCol := findColumn(header, "EcgWaveform")
	if timeCol < 0 || valueCol < 0 {
		return nil, fmt.Errorf("ECG file %s lacks Time/EcgWaveform columns", path)
	}

	var samples []models.Sample
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ECG line %d: %w", line+1, err)
		}
		line++
		if len(record) <= timeCol || len(record) <= valueCol {
			continue
		}

		ts, err := ParseECGTime(strings.TrimSpace(record[timeCol]))
		if err != nil {
			return nil, fmt.Errorf("ECG line %d: %w", line, err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[valueCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("ECG line %d: invalid waveform value: %w", line, err)
		}

		samples = append(samples, models.Sample{TimestampMS: ts, Value: value})
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples in ECG file %s", path)
	}
	return samples, nil
}

// readEventLog читает журнал симулятора: колонки datetime и events,
// разделитель точка с запятой
func readEventLog(path string) ([]models.EventEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = ';'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read event log header: %w", err)
	}

	timeCol := findColumn(header, "datetime")
	eventCol := findColumn(header, "events")
	if timeCol < 0 || eventCol < 0 {
		return nil, fmt.Errorf("event log %s lacks datetime/events columns", path)
	}

	var entries []models.EventEntry
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event log line %d: %w", line+1, err)
		}
		line++
		if len(record) <= timeCol || len(record) <= eventCol {
			continue
		}

		ts, err := ParseLogTime(strings.TrimSpace(record[timeCol]))
		if err != nil {
			return nil, fmt.Errorf("event log line %d: %w", line, err)
		}

		entries = append(entries, models.EventEntry{
			TimestampMS: ts,
			Label:       strings.TrimSpace(record[eventCol]),
		})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no events in log %s", path)
	}
	return entries, nil
}

// readCogEvals читает ответы NASA-TLX: колонки items и values
func readCogEvals(path string) ([]CogEvalRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cog evals %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = ';'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read cog evals header: %w", err)
	}

	itemCol := findColumn(header, "items")
	valueCol := findColumn(header, "values")
	if itemCol < 0 || valueCol < 0 {
		return nil, fmt.Errorf("cog evals %s lacks items/values columns", path)
	}

	var rows []CogEvalRow
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read cog evals line %d: %w", line+1, err)
		}
		line++
		if len(record) <= itemCol || len(record) <= valueCol {
			continue
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(record[valueCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("cog evals line %d: invalid value: %w", line, err)
		}

		rows = append(rows, CogEvalRow{
			Item:  strings.TrimSpace(record[itemCol]),
			Value: value,
		})
	}

	return rows, nil
}

// readErrorGrid читает таблицу наблюдения ошибок. Файл приходит из Excel
// в Latin-1, поэтому перед разбором поток декодируется
func readErrorGrid(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open error grid %s: %w", path, err)
	}
	defer file.Close()

	decoded := transform.NewReader(file, charmap.ISO8859_1.NewDecoder())
	reader := csv.NewReader(decoded)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read error grid %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty error grid %s", path)
	}
	return rows, nil
}

func findColumn(header []string, name string) int {
	for i, column := range header {
		if strings.EqualFold(strings.TrimSpace(column), name) {
			return i
		}
	}
	return -1
}
