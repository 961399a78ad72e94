package detection

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// PlateLabel is the class name that marks a whole-plate detection.
	PlateLabel = "plate"

	// AssociationThreshold is the IoA a character must exceed to belong to a plate.
	AssociationThreshold = 0.5

	// SuppressionThreshold is the IoU at or above which a character is treated
	// as a duplicate of the character kept just before it.
	SuppressionThreshold = 0.3

	// DefaultMinConfidence is the score cut applied when the caller has no
	// preference.
	DefaultMinConfidence = 0.5
)

// Detection is one raw output unit from the detector.
type Detection struct {
	Box     Box     `json:"box"`
	Score   float64 `json:"score"`
	LabelID int     `json:"label_id"`
}

// Category is one entry of a category index.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CategoryIndex maps detector class ids to categories.
type CategoryIndex map[int]Category

// Resolve returns the class name for a label id.
func (idx CategoryIndex) Resolve(labelID int) (string, error) {
	c, ok := idx[labelID]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownLabel, labelID)
	}
	return c.Name, nil
}

// Sorted returns the categories ordered by id.
func (idx CategoryIndex) Sorted() []Category {
	out := make([]Category, 0, len(idx))
	for _, c := range idx {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Character is a glyph detection that survived the confidence cut.
type Character struct {
	Box   Box     `json:"box"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// PlateRecord pairs a plate box with its ordered, deduplicated characters.
type PlateRecord struct {
	Box        Box         `json:"box"`
	Characters []Character `json:"characters"`
}

// Text concatenates the character labels in order.
func (p PlateRecord) Text() string {
	var sb strings.Builder
	for _, c := range p.Characters {
		sb.WriteString(c.Label)
	}
	return sb.String()
}

// Stats counts what each stage did to one image's detections.
type Stats struct {
	Detections              int `json:"detections"`
	BelowConfidence         int `json:"below_confidence"`
	PlateBoxes              int `json:"plate_boxes"`
	CharacterCandidates     int `json:"character_candidates"`
	PlatesWithoutCharacters int `json:"plates_without_characters"`
	DuplicatesSuppressed    int `json:"duplicates_suppressed"`
}

// Result is the outcome of assembling one image.
type Result struct {
	// Plates holds one record per plate that kept at least one character,
	// in plate discovery order.
	Plates []PlateRecord `json:"plates"`

	// Texts holds Plates[i].Text() for each plate.
	Texts []string `json:"texts"`

	// Count is len(Plates).
	Count int `json:"count"`

	Stats Stats `json:"stats"`
}

// Partition drops detections scoring below minConfidence and splits the rest
// into plate boxes and character candidates. Input order is preserved in
// both outputs.
//
// Labels are resolved only for detections that pass the confidence cut.
func Partition(dets []Detection, idx CategoryIndex, minConfidence float64) ([]Box, []Character, error) {
	plates := make([]Box, 0)
	chars := make([]Character, 0, len(dets))

	for i, d := range dets {
		if d.Score < minConfidence {
			continue
		}
		label, err := idx.Resolve(d.LabelID)
		if err != nil {
			return nil, nil, fmt.Errorf("detection %d: %w", i, err)
		}
		if label == PlateLabel {
			plates = append(plates, d.Box)
			continue
		}
		chars = append(chars, Character{Box: d.Box, Label: label, Score: d.Score})
	}

	return plates, chars, nil
}

// Associate attaches to each plate every candidate whose IoA against it
// exceeds AssociationThreshold. Each plate is matched against the full
// candidate pool, so one character may land on several plates. Plates that
// attract no candidates are dropped. Characters keep pool order; see
// OrderLeftToRight.
func Associate(plates []Box, chars []Character) ([]PlateRecord, error) {
	records := make([]PlateRecord, 0, len(plates))

	for pi, plate := range plates {
		var attached []Character
		for ci, c := range chars {
			ioa, err := IntersectionOverArea(c.Box, plate)
			if err != nil {
				return nil, fmt.Errorf("plate %d, character %d: %w", pi, ci, err)
			}
			if ioa > AssociationThreshold {
				attached = append(attached, c)
			}
		}
		if len(attached) == 0 {
			continue
		}
		records = append(records, PlateRecord{Box: plate, Characters: attached})
	}

	return records, nil
}

// OrderLeftToRight sorts characters in place by their left edge. Ties keep
// their existing relative order.
func OrderLeftToRight(chars []Character) {
	sort.SliceStable(chars, func(i, j int) bool {
		return chars[i].Box.StartX < chars[j].Box.StartX
	})
}

// SuppressOverlaps walks an ordered character list and drops every character
// whose IoU with the last kept character reaches SuppressionThreshold.
//
// Only the most recently kept character is consulted. A duplicate separated
// from its twin by another kept character survives.
func SuppressOverlaps(chars []Character) ([]Character, error) {
	if len(chars) == 0 {
		return []Character{}, nil
	}

	kept := make([]Character, 0, len(chars))
	kept = append(kept, chars[0])
	last := chars[0]

	for i := 1; i < len(chars); i++ {
		iou, err := IntersectionOverUnion(chars[i].Box, last.Box)
		if err != nil {
			return nil, fmt.Errorf("character %d: %w", i, err)
		}
		if iou < SuppressionThreshold {
			kept = append(kept, chars[i])
			last = chars[i]
		}
	}

	return kept, nil
}

// AssemblePlates runs the full pipeline over one image's detector output.
//
// boxes, scores and labelIDs must be index-aligned. The returned result is
// built fresh on every call; nothing is retained between calls.
func AssemblePlates(boxes []Box, scores []float64, labelIDs []int, idx CategoryIndex, minConfidence float64) (*Result, error) {
	if len(boxes) != len(scores) || len(boxes) != len(labelIDs) {
		return nil, fmt.Errorf("%w: %d boxes, %d scores, %d label ids",
			ErrInputShape, len(boxes), len(scores), len(labelIDs))
	}

	dets := make([]Detection, len(boxes))
	for i := range boxes {
		dets[i] = Detection{Box: boxes[i], Score: scores[i], LabelID: labelIDs[i]}
	}

	plates, chars, err := Partition(dets, idx, minConfidence)
	if err != nil {
		return nil, err
	}

	stats := Stats{
		Detections:          len(dets),
		BelowConfidence:     len(dets) - len(plates) - len(chars),
		PlateBoxes:          len(plates),
		CharacterCandidates: len(chars),
	}

	records, err := Associate(plates, chars)
	if err != nil {
		return nil, err
	}
	stats.PlatesWithoutCharacters = len(plates) - len(records)

	texts := make([]string, 0, len(records))
	for i := range records {
		OrderLeftToRight(records[i].Characters)

		kept, err := SuppressOverlaps(records[i].Characters)
		if err != nil {
			return nil, fmt.Errorf("plate %d: %w", i, err)
		}
		stats.DuplicatesSuppressed += len(records[i].Characters) - len(kept)
		records[i].Characters = kept

		texts = append(texts, records[i].Text())
	}

	return &Result{
		Plates: records,
		Texts:  texts,
		Count:  len(records),
		Stats:  stats,
	}, nil
}

// AssemblePlateText returns one string per plate found in the detections,
// in plate discovery order. The slice is empty, never nil, when no plate
// kept a character.
func AssemblePlateText(boxes []Box, scores []float64, labelIDs []int, idx CategoryIndex, minConfidence float64) ([]string, error) {
	res, err := AssemblePlates(boxes, scores, labelIDs, idx, minConfidence)
	if err != nil {
		return nil, err
	}
	return res.Texts, nil
}
