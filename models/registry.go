// Package models - registry for class sets.
package models

import (
	"fmt"
	"sort"
	"sync"
)

const (
	// FamilyObject is the single generic "object" class of the default detector.
	FamilyObject Family = "object"
	// FamilyFace is the single "face" class of face detectors.
	FamilyFace Family = "face"
	// FamilyYOLO is the 80 COCO classes, no background.
	FamilyYOLO Family = "yolo"
	// FamilyVOC is the 20 Pascal VOC classes, no background.
	FamilyVOC Family = "voc"
)

// ObjectClasses is the default single-class set.
var ObjectClasses = mustClassSet(FamilyObject, "object")

// FaceClasses is the single-class face set.
var FaceClasses = mustClassSet(FamilyFace, "face")

// YOLOClasses is the 80 COCO classes (no background).
// YOLO models index directly into this zero-based list.
var YOLOClasses = mustClassSet(FamilyYOLO,
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "stop sign", "parking meter", "bench",
	"bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra",
	"giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup",
	"fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
)

// PascalVOCClasses is the 20 Pascal VOC classes (no background).
var PascalVOCClasses = mustClassSet(FamilyVOC,
	"aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car", "cat",
	"chair", "cow", "diningtable", "dog", "horse", "motorbike", "person",
	"pottedplant", "sheep", "sofa", "train", "tvmonitor",
)

// ClassManager holds all registered class sets.
type ClassManager struct {
	mu   sync.RWMutex
	sets map[Family]*ClassSet
}

// NewClassManager initializes and registers the given sets.
func NewClassManager(sets ...*ClassSet) *ClassManager {
	mgr := &ClassManager{sets: make(map[Family]*ClassSet, len(sets))}
	for _, set := range sets {
		mgr.sets[set.Family] = set
	}
	return mgr
}

// DefaultClasses holds the built-in class sets.
var DefaultClasses = NewClassManager(ObjectClasses, FaceClasses, YOLOClasses, PascalVOCClasses)

// Register adds or replaces a class set.
func (m *ClassManager) Register(set *ClassSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[set.Family] = set
}

// Lookup returns a registered class set.
//
// Arguments:
//   - family: The class set identifier.
//
// Returns:
//   - *ClassSet: The class set.
//   - error: An error if no set is registered under family.
func (m *ClassManager) Lookup(family Family) (*ClassSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.sets[family]
	if !ok {
		return nil, fmt.Errorf("class set %q not registered", family)
	}
	return set, nil
}

// Families returns the registered identifiers in sorted order.
func (m *ClassManager) Families() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.sets))
	for f := range m.sets {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}
