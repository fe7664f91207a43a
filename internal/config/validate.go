package config

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
)

// SchemaDefinition is the CUE definition a config file must satisfy.
const SchemaDefinition = "#Config"

// ErrInvalid wraps every schema violation.
var ErrInvalid = errors.New("invalid config")

// ValidateWithCue checks the YAML file at configFile against cueFile.
func ValidateWithCue(configFile, cueFile string) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return validateBytes(configFile, data, cueFile)
}

func validateBytes(name string, data []byte, cueFile string) error {
	schema, err := os.ReadFile(cueFile)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	ctx := cuecontext.New()
	def, err := lookupDefinition(ctx, cueFile, schema)
	if err != nil {
		return err
	}

	f, err := yaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
	}
	doc := ctx.BuildFile(f)
	if doc.Err() != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, name, doc.Err())
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
	}
	return nil
}

func lookupDefinition(ctx *cue.Context, cueFile string, src []byte) (cue.Value, error) {
	v := ctx.CompileBytes(src, cue.Filename(cueFile))
	if v.Err() != nil {
		return cue.Value{}, fmt.Errorf("compile schema %s: %w", cueFile, v.Err())
	}
	def := v.LookupPath(cue.ParsePath(SchemaDefinition))
	if !def.Exists() {
		return cue.Value{}, fmt.Errorf("schema %s has no %s definition", cueFile, SchemaDefinition)
	}
	return def, nil
}
