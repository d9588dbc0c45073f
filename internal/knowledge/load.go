package knowledge

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

type catalogFile struct {
	name     string
	optional bool
}

// Catalog files, in digest order.
var catalogFiles = []catalogFile{
	{name: "items.json"},
	{name: "recipes.json"},
	{name: "tags.json", optional: true},
	{name: "heat_sources.json", optional: true},
	{name: "fuels.json", optional: true},
	{name: "mob_sources.json", optional: true},
}

// Load reads and validates every catalog file in dir.
func Load(dir string) (*Base, error) {
	var (
		d      Defs
		concat bytes.Buffer
	)
	for _, f := range catalogFiles {
		raw, err := os.ReadFile(filepath.Join(dir, f.name))
		if err != nil {
			if f.optional && os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		if err := Validate(f.name, raw); err != nil {
			return nil, err
		}
		concat.Write(raw)
		concat.WriteByte('\n')

		var target any
		switch f.name {
		case "items.json":
			target = &d.Items
		case "recipes.json":
			target = &d.Recipes
		case "tags.json":
			target = &d.Tags
		case "heat_sources.json":
			target = &d.HeatSources
		case "fuels.json":
			target = &d.Fuels
		case "mob_sources.json":
			target = &d.MobSources
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	if err := checkRefs(d); err != nil {
		return nil, err
	}
	b := Build(d)
	b.Digest = sha256Hex(concat.Bytes())
	return b, nil
}

// Validate checks raw against the embedded schema for the named catalog file.
func Validate(name string, raw []byte) error {
	s, err := compileSchema(name)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	schemaName := strings.TrimSuffix(name, ".json") + ".schema.json"
	raw, err := schemaFS.ReadFile("schemas/" + schemaName)
	if err != nil {
		return nil, fmt.Errorf("no schema for %s", name)
	}
	url := "mem://quartermaster/schemas/" + schemaName
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema %s: %w", schemaName, err)
	}
	return c.Compile(url)
}

// checkRefs rejects recipes that use undeclared tags or unknown heat sources.
func checkRefs(d Defs) error {
	heat := map[string]bool{}
	for _, h := range d.HeatSources {
		heat[h.Block] = true
	}
	for _, r := range d.Recipes {
		for _, in := range r.Inputs {
			if !strings.HasPrefix(in.Item, "#") {
				continue
			}
			if _, ok := d.Tags[strings.TrimPrefix(in.Item, "#")]; !ok {
				return fmt.Errorf("recipes.json: %s uses unknown tag %s", r.RecipeID, in.Item)
			}
		}
		if r.Kind == KindCook {
			for _, h := range r.HeatSources {
				if !heat[h] {
					return fmt.Errorf("recipes.json: %s uses unknown heat source %s", r.RecipeID, h)
				}
			}
		}
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
