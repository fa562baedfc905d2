package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Cap maps arrive from the store as raw JSON. The shape is validated before
// the values enter engine logic so a malformed row surfaces at the boundary
// instead of as a silent zero cap.
const capSchemaJSON = `{
	"type": "object",
	"additionalProperties": {"type": "number", "minimum": 0}
}`

var capSchema = jsonschema.MustCompileString("category_caps.json", capSchemaJSON)

// ParseCategoryCaps decodes a category cap column into typed decimals. A nil
// or empty column yields an empty map, meaning no category is capped.
func ParseCategoryCaps(raw datatypes.JSON) (map[ActivityType]decimal.Decimal, error) {
	caps := map[ActivityType]decimal.Decimal{}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return caps, nil
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("category caps are not valid json: %w", err)
	}
	if err := capSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("category caps have invalid shape: %w", err)
	}

	var decoded map[string]json.Number
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode category caps: %w", err)
	}

	for category, value := range decoded {
		if !KnownActivityType(ActivityType(category)) {
			return nil, fmt.Errorf("unknown activity category %q in caps", category)
		}
		cap, err := decimal.NewFromString(value.String())
		if err != nil {
			return nil, fmt.Errorf("invalid cap for category %q: %w", category, err)
		}
		caps[ActivityType(category)] = cap
	}

	return caps, nil
}
