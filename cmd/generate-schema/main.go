// Command generate-schema writes the JSON schema of the DittoDAV config file.
//
// Property names follow the mapstructure tags viper decodes with, defaults
// come from config.GetDefaultConfig, and enum and range constraints are
// lifted from the validate tags so editors flag what Validate would reject.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/dittodav/pkg/config"
)

const schemaID = "https://github.com/marmos91/dittodav/config.schema.json"

// durationPattern matches the strings time.ParseDuration accepts.
const durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

func main() {
	fs := pflag.NewFlagSet("generate-schema", pflag.ExitOnError)
	output := fs.StringP("output", "o", "config.schema.json", "Output file, or - for stdout")
	_ = fs.Parse(os.Args[1:])
	if fs.NArg() > 0 {
		*output = fs.Arg(0)
	}

	schema, err := buildSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building schema: %v\n", err)
		os.Exit(1)
	}

	if *output == "-" {
		if err := writeSchema(os.Stdout, schema); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing schema: %v\n", err)
			os.Exit(1)
		}
		return
	}

	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating schema file: %v\n", err)
		os.Exit(1)
	}
	if err := writeSchema(f, schema); err != nil {
		_ = f.Close()
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("JSON schema written to %s\n", *output)
}

func buildSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		FieldNameTag:               "mapstructure",
		RequiredFromJSONSchemaTags: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{
					Type:        "string",
					Pattern:     durationPattern,
					Description: "Go duration, e.g. 30s or 1h30m",
				}
			}
			return nil
		},
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = jsonschema.ID(schemaID)
	schema.Title = "DittoDAV Configuration"
	schema.Description = "Configuration file of the DittoDAV WebDAV client"

	annotate(schema, reflect.TypeOf(config.Config{}))

	// The server URL is the only setting without a default.
	if server := property(schema, "server"); server != nil {
		server.Required = []string{"url"}
	}

	defaults, err := defaultValues()
	if err != nil {
		return nil, err
	}
	applyDefaults(schema, defaults)

	return schema, nil
}

func writeSchema(w io.Writer, schema *jsonschema.Schema) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(schema)
}

func property(s *jsonschema.Schema, name string) *jsonschema.Schema {
	if s == nil || s.Properties == nil {
		return nil
	}
	prop, ok := s.Properties.Get(name)
	if !ok {
		return nil
	}
	return prop
}

// annotate copies oneof, gte and lte rules from validate tags onto the
// matching properties.
func annotate(s *jsonschema.Schema, t reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		prop := property(s, name)
		if prop == nil {
			continue
		}

		for _, rule := range strings.Split(field.Tag.Get("validate"), ",") {
			key, value, _ := strings.Cut(rule, "=")
			switch key {
			case "oneof":
				prop.Enum = nil
				for _, v := range strings.Fields(value) {
					prop.Enum = append(prop.Enum, v)
				}
			case "gte":
				if field.Type != reflect.TypeOf(time.Duration(0)) {
					prop.Minimum = json.Number(value)
				}
			case "lte":
				prop.Maximum = json.Number(value)
			}
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			annotate(prop, field.Type)
		}
	}
}

// defaultValues renders the default config in its file form, so durations
// appear as strings the way they are written in YAML.
func defaultValues() (map[string]any, error) {
	data, err := yaml.Marshal(config.GetDefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to encode defaults: %w", err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode defaults: %w", err)
	}
	return out, nil
}

func applyDefaults(s *jsonschema.Schema, defaults map[string]any) {
	for name, value := range defaults {
		prop := property(s, name)
		if prop == nil {
			continue
		}
		switch v := value.(type) {
		case nil:
		case string:
			if v != "" {
				prop.Default = v
			}
		case map[string]any:
			if prop.Properties != nil && prop.Properties.Len() > 0 {
				applyDefaults(prop, v)
			} else if len(v) > 0 {
				prop.Default = v
			}
		default:
			prop.Default = v
		}
	}
}
