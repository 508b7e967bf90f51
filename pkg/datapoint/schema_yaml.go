package datapoint

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RawSchemaDef represents a product schema loaded from YAML.
//
// Example:
//
//	product_id: blliqpsj
//	category: szjqr
//	datapoints:
//	  - id: 1
//	    name: switch
//	    type: bool
//	  - id: 101
//	    name: mode
//	    type: enum
//	    values: [push, switch, program]
type RawSchemaDef struct {
	ProductID  string            `yaml:"product_id"`
	Category   string            `yaml:"category"`
	Datapoints []RawDatapointDef `yaml:"datapoints"`
}

// RawDatapointDef represents a single datapoint declaration.
type RawDatapointDef struct {
	ID     uint8    `yaml:"id"`
	Name   string   `yaml:"name"`
	Type   string   `yaml:"type"` // "raw", "bool", "value", "string", "enum", "bitmap", "program"
	Values []string `yaml:"values"`
}

// kindNames maps YAML type names to kinds.
var kindNames = map[string]Kind{
	"raw":     KindRaw,
	"bool":    KindBool,
	"value":   KindValue,
	"string":  KindString,
	"enum":    KindEnum,
	"bitmap":  KindBitmap,
	"program": KindProgram,
}

// ParseSchemaYAML parses a YAML product schema definition.
func ParseSchemaYAML(data []byte) (*Schema, error) {
	var raw RawSchemaDef
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if raw.ProductID == "" {
		return nil, fmt.Errorf("schema is missing product_id")
	}

	defs := make([]Def, 0, len(raw.Datapoints))
	seen := make(map[uint8]string, len(raw.Datapoints))
	for _, dp := range raw.Datapoints {
		kind, ok := kindNames[dp.Type]
		if !ok {
			return nil, fmt.Errorf("dp %d (%s): unknown type %q", dp.ID, dp.Name, dp.Type)
		}
		if kind == KindEnum && len(dp.Values) == 0 {
			return nil, fmt.Errorf("dp %d (%s): enum declares no values", dp.ID, dp.Name)
		}
		if prev, dup := seen[dp.ID]; dup {
			return nil, fmt.Errorf("dp %d declared twice (%s, %s)", dp.ID, prev, dp.Name)
		}
		seen[dp.ID] = dp.Name
		defs = append(defs, Def{ID: dp.ID, Name: dp.Name, Kind: kind, Values: dp.Values})
	}
	return NewSchema(raw.ProductID, raw.Category, defs), nil
}

// LoadSchemaFile loads a product schema from a YAML file.
func LoadSchemaFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	schema, err := ParseSchemaYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return schema, nil
}
