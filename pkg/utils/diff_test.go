package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name       string
		before     map[string]any
		after      map[string]any
		wantBefore map[string]any
		wantAfter  map[string]any
	}{
		{
			name:       "unchanged key dropped",
			before:     map[string]any{"a": "1", "b": "x"},
			after:      map[string]any{"a": "1", "b": "y"},
			wantBefore: map[string]any{"b": "x"},
			wantAfter:  map[string]any{"b": "y"},
		},
		{
			name:       "nulls become absent",
			before:     map[string]any{"a": nil, "b": "2"},
			after:      map[string]any{"a": "1", "b": nil},
			wantBefore: map[string]any{"b": "2"},
			wantAfter:  map[string]any{"a": "1"},
		},
		{
			name:       "creation has empty before",
			before:     nil,
			after:      map[string]any{"name": "Backend", "parentId": nil},
			wantBefore: map[string]any{},
			wantAfter:  map[string]any{"name": "Backend"},
		},
		{
			name:       "identical records",
			before:     map[string]any{"a": 1, "b": true},
			after:      map[string]any{"a": 1, "b": true},
			wantBefore: map[string]any{},
			wantAfter:  map[string]any{},
		},
		{
			name:       "key missing on one side",
			before:     map[string]any{"a": 1},
			after:      map[string]any{"b": 2},
			wantBefore: map[string]any{"a": float64(1)},
			wantAfter:  map[string]any{"b": float64(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotBefore, gotAfter := Diff(tt.before, tt.after)
			assert.Equal(t, tt.wantBefore, gotBefore)
			assert.Equal(t, tt.wantAfter, gotAfter)
		})
	}
}

func TestDiff_PointersAndTimes(t *testing.T) {
	parent := "group-1"
	same := "group-1"
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tsCopy := ts

	before := map[string]any{"parentId": &parent, "activeSince": &ts}
	after := map[string]any{"parentId": &same, "activeSince": &tsCopy}

	gotBefore, gotAfter := Diff(before, after)
	assert.Empty(t, gotBefore)
	assert.Empty(t, gotAfter)

	var nilParent *string
	gotBefore, gotAfter = Diff(map[string]any{"parentId": &parent}, map[string]any{"parentId": nilParent})
	assert.Equal(t, map[string]any{"parentId": "group-1"}, gotBefore)
	assert.Empty(t, gotAfter)
}

func TestSnapshot(t *testing.T) {
	type sample struct {
		Name  string  `json:"name"`
		Count int     `json:"count"`
		Note  *string `json:"note"`
	}

	assert.Nil(t, Snapshot(nil))

	var nilSample *sample
	assert.Nil(t, Snapshot(nilSample))

	got := Snapshot(&sample{Name: "x", Count: 3})
	assert.Equal(t, map[string]any{"name": "x", "count": float64(3), "note": nil}, got)
}
