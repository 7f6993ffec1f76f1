package ontology

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// #region artifact-load

// LoadArtifact reads a domain-knowledge YAML document and compiles it.
// Decoding is strict: unknown fields are rejected so a typo in an
// artifact fails loudly instead of silently dropping a rule.
func LoadArtifact(path string) (*Constraints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ontology artifact: %w", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact compiles an in-memory YAML document.
func ParseArtifact(data []byte) (*Constraints, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse ontology artifact: %w", err)
	}
	return Compile(doc)
}

// #endregion artifact-load
