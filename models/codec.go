// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

package models

import (
	"encoding/json"
	"fmt"
)

// Codec is the marshalling boundary between native objects and wire
// documents. The engine treats the encoded data as opaque bytes; hosts
// may plug in their own representation.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	EncodeList(docs []Document) ([]byte, error)
	DecodeList(data []byte) ([]Document, error)
}

// JSONCodec is the default Codec backed by encoding/json.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode object: %w", err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode object: %w", err)
	}
	return nil
}

func (JSONCodec) EncodeList(docs []Document) ([]byte, error) {
	data, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("encode document list: %w", err)
	}
	return data, nil
}

func (JSONCodec) DecodeList(data []byte) ([]Document, error) {
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode document list: %w", err)
	}
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return nil, fmt.Errorf("decode document list: %w", err)
		}
	}
	return docs, nil
}
