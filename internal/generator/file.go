package generator

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/xeipuuv/gojsonschema"

	"github.com/xkilldash9x/signup-cli/api/schemas"
)

// ErrInvalidDataFile is wrapped by every LoadFile failure other than a
// missing file.
var ErrInvalidDataFile = errors.New("invalid test data file")

// Document is the on-disk layout of a test-data file.
type Document struct {
	GeneratedAt time.Time              `json:"generated_at"`
	TestData    []schemas.SignupRecord `json:"test_data"`
}

const documentSchema = `{
  "type": "object",
  "required": ["test_data"],
  "properties": {
    "generated_at": {"type": "string"},
    "test_data": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["first_name", "last_name", "email", "company", "job_title"],
        "properties": {
          "first_name":     {"type": "string", "minLength": 1},
          "last_name":      {"type": "string", "minLength": 1},
          "email":          {"type": "string", "minLength": 1},
          "company":        {"type": "string", "minLength": 1},
          "job_title":      {"type": "string", "minLength": 1},
          "cloud_provider": {"type": "string"},
          "edition":        {"type": "string"}
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

// LoadFile reads, validates and decodes a test-data file. Edition and cloud
// provider values are normalised the same way as on the command line.
func LoadFile(path string) ([]schemas.SignupRecord, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataFile, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDataFile, expanded, err)
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidDataFile, expanded, strings.Join(problems, "; "))
	}

	// generated_at is informational; decode only the records.
	var doc struct {
		TestData []schemas.SignupRecord `json:"test_data"`
	}
	if err := jsoniter.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDataFile, expanded, err)
	}
	for i := range doc.TestData {
		doc.TestData[i].Edition = schemas.ParseEdition(string(doc.TestData[i].Edition))
		doc.TestData[i].CloudProvider = schemas.ParseCloudProvider(string(doc.TestData[i].CloudProvider))
	}
	return doc.TestData, nil
}

// Encode renders doc as indented JSON.
func Encode(doc Document) ([]byte, error) {
	return jsoniter.MarshalIndent(doc, "", "  ")
}

// WriteFile stores doc at path, replacing any existing file.
func WriteFile(path string, doc Document) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("encoding test data: %w", err)
	}
	return os.WriteFile(expanded, append(data, '\n'), 0o644)
}

// PickRecord returns a random record from the file at path. If the file is
// missing, invalid or empty it returns DemoRecord and the reason.
func PickRecord(rng *rand.Rand, path string) (schemas.SignupRecord, error) {
	records, err := LoadFile(path)
	if err == nil && len(records) == 0 {
		err = fmt.Errorf("%w: %s has no entries", ErrInvalidDataFile, path)
	}
	if err != nil {
		return DemoRecord(rng), err
	}
	return records[rng.IntN(len(records))], nil
}
