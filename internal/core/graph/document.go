package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// DocumentVersion is the current graph document format
const DocumentVersion = "1.0.0"

// Document is the portable form of a canvas, used for import/export
// and draft persistence
type Document struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Nodes     []*Node   `json:"nodes"`
	Edges     []*Edge   `json:"edges"`
}

// NewDocument captures a snapshot as a document. Missing handles get the
// default "output"/"input" names.
func NewDocument(s *Snapshot) *Document {
	doc := &Document{
		Version:   DocumentVersion,
		Timestamp: time.Now().UTC(),
		Nodes:     make([]*Node, 0, len(s.nodes)),
		Edges:     make([]*Edge, 0, len(s.edges)),
	}
	for _, n := range s.nodes {
		doc.Nodes = append(doc.Nodes, n.Clone())
	}
	for _, e := range s.edges {
		c := *e
		if c.SourceHandle == "" {
			c.SourceHandle = DefaultSourceHandle
		}
		if c.TargetHandle == "" {
			c.TargetHandle = DefaultTargetHandle
		}
		doc.Edges = append(doc.Edges, &c)
	}
	return doc
}

// Validate checks the document envelope and every node and edge
func (d *Document) Validate() error {
	if d.Version == "" {
		return fmt.Errorf("%w: missing version", ErrInvalidDocument)
	}
	if d.Version != DocumentVersion {
		return fmt.Errorf("%w: %s", ErrUnsupportedDocument, d.Version)
	}
	for i, n := range d.Nodes {
		if n == nil {
			return fmt.Errorf("%w: node %d is empty", ErrInvalidDocument, i)
		}
		if err := n.Validate(); err != nil {
			return fmt.Errorf("%w: node %d: %w", ErrInvalidDocument, i, err)
		}
	}
	for i, e := range d.Edges {
		if e == nil || e.Source == "" || e.Target == "" {
			return fmt.Errorf("%w: edge %d needs source and target", ErrInvalidDocument, i)
		}
	}
	return nil
}

// ParseDocument decodes a JSON or YAML document and validates it
func ParseDocument(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidDocument)
	}
	if trimmed[0] != '{' {
		converted, err := yamlToJSON(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
		trimmed = converted
	}
	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// JSON encodes the document with indentation
func (d *Document) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// YAML encodes the document as YAML using the JSON field names
func (d *Document) YAML() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

// yamlToJSON re-encodes YAML so the JSON decoders of Node apply
func yamlToJSON(data []byte) ([]byte, error) {
	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeYAML(generic))
}

// normalizeYAML converts map[interface{}]interface{} values, which
// encoding/json cannot marshal, into string-keyed maps
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case map[string]interface{}:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	}
	return v
}

// Import loads a document into the store, replacing its contents
func (s *Store) Import(doc *Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	return s.Load(doc.Nodes, doc.Edges)
}

// Export captures the store as a document
func (s *Store) Export() *Document {
	return NewDocument(s.Snapshot())
}
