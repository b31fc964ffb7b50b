package draft

import (
	"encoding/json"
	"fmt"

	"github.com/flowgraph/mpcflow/internal/core/graph"
	"github.com/flowgraph/mpcflow/pkg/serialization"
)

// documentRecord is the stored form of a document. Node payloads are an
// interface type, so the document travels as its JSON encoding, which
// keeps the "type" discriminator the node decoder dispatches on.
type documentRecord struct {
	Version string `json:"version"`
	Data    []byte `json:"data"`
}

// EncodeDocument serializes a document through s
func EncodeDocument(s *serialization.Serializer, doc *graph.Document) ([]byte, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return s.Serialize(documentRecord{Version: doc.Version, Data: data})
}

// DecodeDocument reverses EncodeDocument and validates the result
func DecodeDocument(s *serialization.Serializer, data []byte) (*graph.Document, error) {
	var rec documentRecord
	if err := s.Deserialize(data, &rec); err != nil {
		return nil, err
	}
	return graph.ParseDocument(rec.Data)
}
