package requests

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GetOpType extracts the op name from a single JSON operation without full
// unmarshaling
func GetOpType(data []byte) (OpType, error) {
	var meta struct {
		Op OpType `json:"op"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", err
	}
	return meta.Op, nil
}

// UnmarshalBatch decodes a batch document. format is "json" or "yaml".
func UnmarshalBatch(data []byte, format string) ([]OpDTO, error) {
	var batch BatchDTO
	switch format {
	case "json":
		ops, err := unmarshalJSONOps(data)
		if err != nil {
			return nil, err
		}
		batch.Ops = ops
	case "yaml":
		if err := yaml.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("failed to parse YAML batch: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported batch format: %s", format)
	}

	for i, op := range batch.Ops {
		if op.Op == "" {
			return nil, fmt.Errorf("batch op %d has no op", i)
		}
	}
	return batch.Ops, nil
}

// LoadBatchFile reads a batch from a .yaml, .yml or .json file
func LoadBatchFile(path string) ([]OpDTO, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return UnmarshalBatch(data, "yaml")
	case ".json":
		return UnmarshalBatch(data, "json")
	default:
		return nil, fmt.Errorf("unsupported batch file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// unmarshalJSONOps decodes each op on its own so a malformed op is reported
// with its index and op name
func unmarshalJSONOps(data []byte) ([]OpDTO, error) {
	var raw struct {
		Ops []json.RawMessage `json:"ops"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON batch: %w", err)
	}

	ops := make([]OpDTO, 0, len(raw.Ops))
	for i, rawOp := range raw.Ops {
		opType, err := GetOpType(rawOp)
		if err != nil {
			return nil, fmt.Errorf("batch op %d: %w", i, err)
		}
		var op OpDTO
		if err := json.Unmarshal(rawOp, &op); err != nil {
			return nil, fmt.Errorf("batch op %d (%s): %w", i, opType, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func valueOrDefault[T any](ptr *T, defaultVal T) T {
	if ptr != nil {
		return *ptr
	}
	return defaultVal
}
