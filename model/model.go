// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"reflect"
	"time"
)

// Kind names a collection of resources tracked on the docker engine.
type Kind string

// Supported kinds.
const (
	Containers Kind = "containers"
	Images     Kind = "images"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{Containers, Images}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	return k == Containers || k == Images
}

// Key defines the field mapping to retrieve an item from the cache.
type Key struct {
	// Kind is the collection the item belongs to.
	Kind Kind `json:"kind"`

	// ID is the unique ID for an item within its kind.
	ID string `json:"id"`
}

// Item is one tracked resource.
type Item struct {
	// ID is the docker identifier of the resource.
	ID string `json:"id"`

	// Kind is the collection the item belongs to.
	Kind Kind `json:"kind"`

	// Data holds the listing attributes overlaid with the detail attributes.
	Data map[string]interface{} `json:"data"`
}

// Clone returns a copy of the item whose Data map can be modified freely.
// Nested values are shared.
func (i Item) Clone() Item {
	i.Data = Merge(i.Data, nil)
	return i
}

// Equal reports whether both items carry the same identity and attributes.
func (i Item) Equal(o Item) bool {
	return i.ID == o.ID && i.Kind == o.Kind && reflect.DeepEqual(i.Data, o.Data)
}

// Merge overlays detail on top of listing and returns a new map. Detail
// attributes win on key collision. Neither input is modified.
func Merge(listing, detail map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(listing)+len(detail))
	for k, v := range listing {
		merged[k] = v
	}
	for k, v := range detail {
		merged[k] = v
	}
	return merged
}

// SampleBatch is one delivery of the metric sample feed. Samples are keyed by
// an external name (a cgroup, for instance) that must be resolved to an item ID
// before it can be merged.
type SampleBatch struct {
	Timestamp time.Time
	Samples   map[string][]float64
}
