package segmentation

import (
	"log"

	"github.com/nbacklab/ecg-workload/pkg/models"
)

// Filter удаляет пустые и слишком короткие сегменты из коллекций.
// Короткие сегменты ломают извлечение метрик ВСР, поэтому отбрасываются
// до дальнейшей обработки.
type Filter struct {
	MinLength int
	Verbose   bool
}

func NewFilter(minLength int, verbose bool) *Filter {
	return &Filter{MinLength: minLength, Verbose: verbose}
}

// FilterRaw чистит коллекцию сырых сегментов участника на месте.
// Возвращает число удаленных сегментов.
func (f *Filter) FilterRaw(participant string, set *SegmentSet) int {
	removed := 0
	for _, name := range set.Names() {
		segment, _ := set.Get(name)
		if segment.Len() < f.MinLength {
			set.Delete(name)
			removed++
			if f.Verbose {
				log.Printf("[SEGMENT] Deleted segment %s from subject %s", name, participant)
			}
		}
	}
	return removed
}

// FilterCleaned чистит коллекцию очищенных сегментов участника для одного
// метода. Коллекции каждого метода фильтруются независимо от сырых; вместе
// с сегментом удаляются и его R-зубцы.
func (f *Filter) FilterCleaned(participant string, method models.CleaningMethod, set *SegmentSet, peaks map[string][]int) int {
	removed := 0
	for _, name := range set.Names() {
		segment, _ := set.Get(name)
		if segment.Len() < f.MinLength {
			set.Delete(name)
			delete(peaks, name)
			removed++
			if f.Verbose {
				log.Printf("[SEGMENT] Deleted segment %s from subject %s, cleaned with %s method", name, participant, method)
			}
		}
	}
	return removed
}
