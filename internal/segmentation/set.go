package segmentation

import (
	"github.com/nbacklab/ecg-workload/pkg/models"
)

// SegmentSet представляет упорядоченную коллекцию сегментов одного участника.
// Порядок вставки сохраняется, повторная вставка с тем же именем заменяет
// сегмент на прежней позиции.
type SegmentSet struct {
	names  []string
	byName map[string]*models.Segment
}

func NewSegmentSet() *SegmentSet {
	return &SegmentSet{
		byName: make(map[string]*models.Segment),
	}
}

// Put добавляет сегмент в коллекцию
func (s *SegmentSet) Put(segment *models.Segment) {
	if segment == nil {
		return
	}
	if _, exists := s.byName[segment.Name]; !exists {
		s.names = append(s.names, segment.Name)
	}
	s.byName[segment.Name] = segment
}

// Get возвращает сегмент по имени
func (s *SegmentSet) Get(name string) (*models.Segment, bool) {
	segment, ok := s.byName[name]
	return segment, ok
}

// Delete удаляет сегмент, сохраняя порядок остальных
func (s *SegmentSet) Delete(name string) {
	if _, exists := s.byName[name]; !exists {
		return
	}
	delete(s.byName, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}
}

// Names возвращает имена сегментов в порядке вставки
func (s *SegmentSet) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// Len возвращает число сегментов в коллекции
func (s *SegmentSet) Len() int {
	return len(s.names)
}
