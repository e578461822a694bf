package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, for log lines and reports.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// Domain-specific hash types
type (
	SchemaHash  Hash
	DatasetHash Hash
)

func NewSchemaHash(data []byte) SchemaHash   { return SchemaHash(NewHash(data)) }
func NewDatasetHash(data []byte) DatasetHash { return DatasetHash(NewHash(data)) }

func (h SchemaHash) String() string  { return Hash(h).String() }
func (h DatasetHash) String() string { return Hash(h).String() }

// ComputeDatasetHash fingerprints a table by header order and cell contents.
// Row order matters: the split is only reproducible for identically ordered input.
func ComputeDatasetHash(headers []string, rows [][]string) DatasetHash {
	var data strings.Builder
	data.WriteString(strings.Join(headers, "\x1f"))
	data.WriteByte('\n')
	for _, row := range rows {
		data.WriteString(strings.Join(row, "\x1f"))
		data.WriteByte('\n')
	}
	data.WriteString(fmt.Sprintf("rows:%d", len(rows)))
	return NewDatasetHash([]byte(data.String()))
}
