// Package validate checks the optional per-request options payload against
// an embedded JSON schema before any of it influences processing.
package validate

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/MalithGihan/redact-service/pkg/types"
)

//go:embed options.schema.json
var optionsSchema string

var (
	once    sync.Once
	schema  *jsonschema.Schema
	loadErr error
)

func load() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("options.schema.json", strings.NewReader(optionsSchema)); err != nil {
		loadErr = err
		return
	}
	schema, loadErr = c.Compile("options.schema.json")
}

// Options validates and decodes the raw options field. An empty payload
// yields the given default match mode.
func Options(raw string, defaultMode types.MatchMode) (types.MatchMode, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultMode, nil
	}
	once.Do(load)
	if loadErr != nil {
		return defaultMode, loadErr
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return defaultMode, fmt.Errorf("options is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return defaultMode, fmt.Errorf("options rejected: %w", err)
	}
	var opts struct {
		Match string `json:"match"`
	}
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return defaultMode, err
	}
	if opts.Match == "" {
		return defaultMode, nil
	}
	return types.ParseMatchMode(opts.Match)
}
