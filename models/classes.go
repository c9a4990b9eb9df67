// Package models - Class label sets of detection heads.
package models

import (
	"fmt"
	"strings"
)

// Family identifies the naming convention / dataset of a class set.
type Family string

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int `json:"index" yaml:"index"`
	// The human-readable label.
	Name string `json:"name" yaml:"name"`
}

// ClassSet is an ordered list of labels indexed from zero, as emitted by a
// detection head with one score row per class.
type ClassSet struct {
	// Family is the class set identifier.
	Family Family
	// Classes are the labels in class index order.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewClassSet builds a class set from labels in class index order.
//
// Arguments:
//   - family: The class set identifier.
//   - labels: The labels. Must be non-empty and unique.
//
// Returns:
//   - *ClassSet: The class set.
//   - error: An error if labels is empty, or a label is blank or repeated.
func NewClassSet(family Family, labels []string) (*ClassSet, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("class set %q has no labels", family)
	}

	set := &ClassSet{
		Family:    family,
		Classes:   make([]OutputClass, len(labels)),
		nameToIdx: make(map[string]int, len(labels)),
	}
	for i, label := range labels {
		name := strings.TrimSpace(label)
		if name == "" {
			return nil, fmt.Errorf("class set %q: blank label at index %d", family, i)
		}
		if prev, dup := set.nameToIdx[name]; dup {
			return nil, fmt.Errorf("class set %q: label %q at index %d repeats index %d", family, name, i, prev)
		}
		set.Classes[i] = OutputClass{Index: i, Name: name}
		set.nameToIdx[name] = i
	}
	return set, nil
}

// mustClassSet is NewClassSet for the built-in sets.
func mustClassSet(family Family, labels ...string) *ClassSet {
	set, err := NewClassSet(family, labels)
	if err != nil {
		panic(err)
	}
	return set
}

// Len returns the number of classes, which is the number of class score rows
// of the detection head.
func (s *ClassSet) Len() int {
	return len(s.Classes)
}

// Labels returns the labels in class index order.
func (s *ClassSet) Labels() []string {
	labels := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		labels[i] = c.Name
	}
	return labels
}

// Name returns the label for a class index.
//
// Arguments:
//   - idx: The class index emitted by the decoder.
//
// Returns:
//   - string: The label.
//   - error: An error if idx is out of range.
func (s *ClassSet) Name(idx int) (string, error) {
	if idx < 0 || idx >= len(s.Classes) {
		return "", fmt.Errorf("index %d out of range for class set %q", idx, s.Family)
	}
	return s.Classes[idx].Name, nil
}

// Index returns the class index of a label.
//
// Arguments:
//   - name: The label.
//
// Returns:
//   - int: The class index, -1 if not found.
//   - error: An error if the label is not in the set.
func (s *ClassSet) Index(name string) (int, error) {
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, fmt.Errorf("name %q not found in class set %q", name, s.Family)
	}
	return idx, nil
}
