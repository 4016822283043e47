package postgres

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// placeholder returns a placeholder for PostgreSQL ($1, $2, ...)
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns n placeholders starting from $1
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// marshalStringList serializes a string list to its JSONB column form.
func marshalStringList(list []string) (string, error) {
	if len(list) == 0 {
		return "[]", nil
	}
	buf, err := json.Marshal(list)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal string list")
	}
	return string(buf), nil
}

// unmarshalStringList parses a JSON/JSONB column back into a string list.
func unmarshalStringList(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal string list")
	}
	return list, nil
}

// parseVectorText parses pgvector's text representation "[0.1,0.2,...]".
// Reads go through ::text so a NULL embedding scans as an empty string
// instead of tripping the vector codec.
func parseVectorText(raw string) ([]float32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		return []float32{}, nil
	}
	parts := strings.Split(raw, ",")
	vector := make([]float32, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse vector component")
		}
		vector[i] = float32(v)
	}
	return vector, nil
}
