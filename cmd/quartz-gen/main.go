package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/quartzidl/quartz/internal/console"
	"github.com/quartzidl/quartz/internal/gen"
)

const (
	inputFlag             = "input"
	targetFlag            = "target"
	outputDirFlag         = "outdir"
	templateFlag          = "template"
	outputFileFlag        = "output"
	excludeErrorTypesFlag = "exclude-error-types"
	indentLevelFlag       = "indent-level"
	spacesPerIndentFlag   = "spaces-per-indent"
	moduleNamePrefixFlag  = "module-name-prefix"
	exportNamespacesFlag  = "export-namespaces"
	extraArgFlag          = "extra-arg"
	quietFlag             = "quiet"
	debugFlag             = "debug"
)

var generateFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    quietFlag,
		Aliases: []string{"q"},
		Usage:   "Make the logger quiet.",
	},
	&cli.StringFlag{
		Name:     inputFlag,
		Aliases:  []string{"i"},
		Usage:    "Path of the IR document (JSON or YAML) produced by the IDL front end",
		Required: true,
	},
	&cli.StringFlag{
		Name:    targetFlag,
		Aliases: []string{"t"},
		Value:   gen.TargetTSD,
		Usage:   "Generation target, one of " + gen.TargetSwift + "," + gen.TargetTSD,
	},
	&cli.StringFlag{
		Name:    outputDirFlag,
		Aliases: []string{"d"},
		Value:   "./generated",
		Usage:   "Output directory for all the generated files",
	},
	&cli.StringFlag{
		Name:  templateFlag,
		Usage: "Template used when generating the declaration file. Replaces the string /*TYPES*/ with generated type definitions",
	},
	&cli.StringFlag{
		Name:    outputFileFlag,
		Aliases: []string{"o"},
		Usage:   "Name of a single combined declaration file containing all emitted namespaces. When empty, one file is generated per namespace",
	},
	&cli.BoolFlag{
		Name:  excludeErrorTypesFlag,
		Usage: "Exclude the generated error envelope interfaces from the output",
	},
	&cli.IntFlag{
		Name:  indentLevelFlag,
		Value: 1,
		Usage: "Indentation level to emit types at",
	},
	&cli.IntFlag{
		Name:  spacesPerIndentFlag,
		Value: 2,
		Usage: "Number of spaces to use per indentation level",
	},
	&cli.StringFlag{
		Name:    moduleNamePrefixFlag,
		Aliases: []string{"p"},
		Usage:   "Prefix for data type module names. This is useful for a repo which requires an absolute path as module name",
	},
	&cli.BoolFlag{
		Name:  exportNamespacesFlag,
		Usage: "Adds the export tag to each namespace. This is useful if you are not placing each namespace inside of a module and want to export each namespace individually",
	},
	&cli.StringSliceFlag{
		Name:    extraArgFlag,
		Aliases: []string{"e"},
		Usage:   `Additional argument to add to a route's argument based on if the route has a certain attribute set. Format (JSON): {"match": ["ROUTE_ATTR", "ROUTE_VALUE_TO_MATCH"], "arg_name": "ARG_NAME", "arg_type": "ARG_TYPE", "arg_docstring": "ARG_DOCSTRING"}`,
	},
	&cli.BoolFlag{
		Name:  debugFlag,
		Usage: "Enable debug mode, disabled by default",
	},
}

func generateAction(ctx *cli.Context) error {
	target := ctx.String(targetFlag)

	switch target {
	case gen.TargetSwift, gen.TargetTSD:
	default:
		return fmt.Errorf("not supported %s target", target)
	}

	if ctx.IsSet(debugFlag) {
		console.Logger.DebugLevel = 1
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	if ctx.Bool(quietFlag) {
		logger = log.New(io.Discard, "", log.LstdFlags)
	}

	return gen.New().Build(&gen.Config{
		InputFile:         ctx.String(inputFlag),
		Target:            target,
		OutputDir:         ctx.String(outputDirFlag),
		TemplateFile:      ctx.String(templateFlag),
		OutputFile:        ctx.String(outputFileFlag),
		ExcludeErrorTypes: ctx.Bool(excludeErrorTypesFlag),
		IndentLevel:       ctx.Int(indentLevelFlag),
		SpacesPerIndent:   ctx.Int(spacesPerIndentFlag),
		ModuleNamePrefix:  ctx.String(moduleNamePrefixFlag),
		ExportNamespaces:  ctx.Bool(exportNamespacesFlag),
		ExtraArgs:         ctx.StringSlice(extraArgFlag),
		Debugger:          logger,
	})
}

func main() {
	app := cli.NewApp()
	app.Version = gen.Version
	app.Usage = "Generate target-language source from a Quartz IDL intermediate representation."
	app.Commands = []*cli.Command{
		{
			Name:    "generate",
			Aliases: []string{"g"},
			Usage:   "Generate code for one target from an IR document",
			Action:  generateAction,
			Flags:   generateFlags,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
