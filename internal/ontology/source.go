package ontology

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the serialization of an ontology source.
type Format string

// Supported ontology formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the format from a file extension. Unknown extensions are treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// rawOntology mirrors the on-disk layout before semantic checks.
type rawOntology struct {
	Version               string             `json:"version"`
	Skills                []rawSkill         `json:"skills" validate:"dive"`
	Roles                 map[string]rawRole `json:"roles" validate:"dive"`
	Recommendations       map[string]string  `json:"recommendations"`
	DefaultRecommendation string             `json:"default_recommendation"`
}

type rawSkill struct {
	ID          string   `json:"id" validate:"required"`
	DisplayName string   `json:"display_name" validate:"required"`
	Aliases     []string `json:"aliases" validate:"dive,required"`
}

type rawRole struct {
	Category       string             `json:"category" validate:"required"`
	RequiredSkills map[string]float64 `json:"required_skills" validate:"dive,gt=0,lte=1"`
}

// toJSON converts the source to JSON so both formats share one schema check.
// Duplicate object keys are rejected in both formats: the YAML decoder does it itself,
// JSON is checked token by token since encoding/json keeps the last value.
func toJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		if err := checkDuplicateKeys(json.NewDecoder(bytes.NewReader(data)), ""); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		return data, nil
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert YAML to JSON: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported ontology format %q", format)
	}
}

// checkDuplicateKeys consumes one JSON value from dec and fails on the first object
// that repeats a key. path is the dotted location of the value, empty for the root.
func checkDuplicateKeys(dec *json.Decoder, path string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch tok {
	case json.Delim('{'):
		seen := make(map[string]struct{})
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ := keyTok.(string)
			if _, dup := seen[key]; dup {
				where := path
				if where == "" {
					where = "(root)"
				}
				return fmt.Errorf("duplicate key %q in %s", key, where)
			}
			seen[key] = struct{}{}
			if err := checkDuplicateKeys(dec, joinPath(path, key)); err != nil {
				return err
			}
		}
		_, err = dec.Token()
		return err
	case json.Delim('['):
		for i := 0; dec.More(); i++ {
			if err := checkDuplicateKeys(dec, joinPath(path, fmt.Sprint(i))); err != nil {
				return err
			}
		}
		_, err = dec.Token()
		return err
	}
	return nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
