// Package yamler builds yaml.Node trees by hand.
//
// yaml.Marshal of a Go value cannot attach comments to individual keys;
// building the nodes directly can. folk init uses this to write a
// folklore.yaml whose keys carry their own documentation.
package yamler

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Option adjusts a node after construction.
type Option func(*yaml.Node) *yaml.Node

func WithStyle(s yaml.Style) Option {
	return func(n *yaml.Node) *yaml.Node {
		n.Style = s
		return n
	}
}

func WithHeadComment(comment string) Option {
	return func(n *yaml.Node) *yaml.Node {
		n.HeadComment = comment
		return n
	}
}

func scalar(value string, options []Option) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	for _, opt := range options {
		n = opt(n)
	}
	return n
}

// Text is a string scalar.
func Text(value string, options ...Option) *yaml.Node {
	return scalar(value, options)
}

type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Number is a numeric scalar.
func Number[N Numeric](value N, options ...Option) *yaml.Node {
	return scalar(fmt.Sprint(value), options)
}

// MapEntry is one key-value pair of Map.
type MapEntry struct {
	Key   *yaml.Node
	Value *yaml.Node
}

func Entry(k *yaml.Node, v *yaml.Node) MapEntry {
	return MapEntry{Key: k, Value: v}
}

// Map is a mapping node keeping the given entry order.
func Map(entries ...MapEntry) *yaml.Node {
	content := make([]*yaml.Node, 0, len(entries)*2)
	for _, e := range entries {
		content = append(content, e.Key, e.Value)
	}
	return &yaml.Node{Kind: yaml.MappingNode, Content: content}
}
