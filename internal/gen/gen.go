// Package gen drives a generation run: it loads the IR document,
// dispatches to the selected backend and writes the output units.
package gen

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/quartzidl/quartz/internal/backend/swiftgen"
	"github.com/quartzidl/quartz/internal/backend/tsdgen"
	"github.com/quartzidl/quartz/internal/console"
	"github.com/quartzidl/quartz/internal/ir"
	"github.com/quartzidl/quartz/internal/ir/irjson"
)

// Version of the generator.
const Version = "v1.2.0"

// Supported generation targets.
const (
	// TargetSwift emits classes and serializers for the object-oriented
	// target.
	TargetSwift = "swift"
	// TargetTSD emits ambient type declarations for the structurally
	// typed target.
	TargetTSD = "tsd"
)

type targetWriter func(*Config, *ir.Api) error

// Gen presents the generation tool.
type Gen struct {
	targetMap map[string]targetWriter
	debug     Debugger
}

// Debugger is the interface that wraps the basic Printf method.
type Debugger interface {
	Printf(format string, v ...interface{})
}

// New creates a new Gen.
func New() *Gen {
	gen := Gen{
		debug: log.New(os.Stdout, "", log.LstdFlags),
	}

	gen.targetMap = map[string]targetWriter{
		TargetSwift: gen.writeSwift,
		TargetTSD:   gen.writeTSD,
	}

	return &gen
}

// Config presents Gen configurations.
type Config struct {
	Debugger Debugger

	// InputFile is the path of the serialized IR document.
	InputFile string

	// Target selects the backend, one of TargetSwift or TargetTSD.
	Target string

	// OutputDir is the directory output units are written into.
	OutputDir string

	// TemplateFile is the declaration template containing the types
	// marker. Required for the tsd target.
	TemplateFile string

	// OutputFile, when set, combines all namespaces into this single
	// output instead of one file per namespace. tsd target only.
	OutputFile string

	// ExcludeErrorTypes drops the generated error envelope. tsd target
	// only.
	ExcludeErrorTypes bool

	// IndentLevel is the base indentation level for emitted types.
	IndentLevel int

	// SpacesPerIndent is the indentation unit size.
	SpacesPerIndent int

	// ModuleNamePrefix prefixes declared module names.
	ModuleNamePrefix string

	// ExportNamespaces adds the export tag to each namespace block in
	// combined output.
	ExportNamespaces bool

	// ExtraArgs are the raw, repeatable structured extra-argument
	// specifications.
	ExtraArgs []string
}

// Build runs one generation pass for the configured target. The run
// either completes deterministically or aborts on the first fatal
// fault; output units are buffered fully before they are flushed, so no
// partial unit is left behind.
func (g *Gen) Build(config *Config) error {
	if config.Debugger != nil {
		g.debug = config.Debugger
	}

	writer, ok := g.targetMap[config.Target]
	if !ok {
		return fmt.Errorf("target '%s' not supported", config.Target)
	}

	api, err := irjson.LoadFile(config.InputFile)
	if err != nil {
		return err
	}
	console.Logger.Debug("loaded %d namespaces from %s", len(api.Namespaces), config.InputFile)

	if config.OutputDir != "" {
		if err := os.MkdirAll(config.OutputDir, os.ModePerm); err != nil {
			return err
		}
	}

	return writer(config, api)
}

func (g *Gen) writeSwift(config *Config, api *ir.Api) error {
	generator := swiftgen.New(config.SpacesPerIndent)

	seen := make(map[string]string)
	for _, ns := range api.Namespaces {
		out, err := generator.Generate(ns)
		if err != nil {
			return err
		}

		filename := generator.FileName(ns)
		if prev, dup := seen[filename]; dup {
			return fmt.Errorf("output path collision: namespaces %s and %s both produce %s", prev, ns.Name, filename)
		}
		seen[filename] = ns.Name

		path := filepath.Join(config.OutputDir, filename)
		if err := g.writeFile(out, path); err != nil {
			return err
		}
		console.Logger.Debug("create %s", path)
	}
	return nil
}

func (g *Gen) writeTSD(config *Config, api *ir.Api) error {
	rules, err := tsdgen.ParseExtraArgRules(config.ExtraArgs)
	if err != nil {
		return err
	}
	extraParams := tsdgen.ExtraParamsForRequests(api, rules)

	template, err := g.readTemplate(config.TemplateFile)
	if err != nil {
		return err
	}

	cfg := tsdgen.Config{
		SpacesPerIndent:   config.SpacesPerIndent,
		IndentLevel:       config.IndentLevel,
		ExcludeErrorTypes: config.ExcludeErrorTypes,
		ModuleNamePrefix:  config.ModuleNamePrefix,
		ExportNamespaces:  config.ExportNamespaces,
		SplitByNamespace:  config.OutputFile == "",
	}
	generator := tsdgen.New(cfg, extraParams)

	if config.OutputFile != "" {
		// Combined mode: every namespace spliced into one template
		// instance.
		if !tsdgen.HasTypes(api.Namespaces) {
			g.debug.Printf("no namespace contains data types, skipping output")
			return nil
		}
		out, err := generator.Generate(api.Namespaces, template)
		if err != nil {
			return err
		}
		path := filepath.Join(config.OutputDir, config.OutputFile)
		if err := g.writeFile(out, path); err != nil {
			return err
		}
		console.Logger.Debug("create %s", path)
		return nil
	}

	// Split mode: one declaration file per namespace with types.
	seen := make(map[string]string)
	for _, ns := range api.Namespaces {
		if len(ns.DataTypes) == 0 {
			continue
		}
		out, err := generator.Generate([]*ir.Namespace{ns}, template)
		if err != nil {
			return err
		}

		filename := generator.FileName(ns)
		if prev, dup := seen[filename]; dup {
			return fmt.Errorf("output path collision: namespaces %s and %s both produce %s", prev, ns.Name, filename)
		}
		seen[filename] = ns.Name

		path := filepath.Join(config.OutputDir, filename)
		if err := g.writeFile(out, path); err != nil {
			return err
		}
		console.Logger.Debug("create %s", path)
	}
	return nil
}

// readTemplate reads the declaration template. A missing path or an
// unreadable file is a configuration fault reported before any output
// is produced.
func (g *Gen) readTemplate(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("a template file is required for the %s target", TargetTSD)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read template file: %w", err)
	}
	return string(data), nil
}

func (g *Gen) writeFile(b []byte, file string) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}

	defer f.Close()

	_, err = f.Write(b)

	return err
}
