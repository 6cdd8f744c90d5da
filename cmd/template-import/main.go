package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ktimacloud/report-engine/internal/docx"
	"github.com/ktimacloud/report-engine/internal/template"
)

var (
	name         = flag.String("name", "", "Template name (defaults to the file name)")
	description  = flag.String("description", "", "Template description")
	outputFormat = flag.String("format", "json", "Output format: json, summary")
	output       = flag.String("o", "", "Write output to file instead of stdout")
	help         = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: DOCX file path required\n\n")
		printUsage()
		os.Exit(1)
	}

	docxPath := flag.Arg(0)
	raw, err := os.ReadFile(docxPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot read %s: %v\n", docxPath, err)
		os.Exit(1)
	}

	doc, err := docx.Parse(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing document: %v\n", err)
		os.Exit(1)
	}

	templateName := *name
	if templateName == "" {
		templateName = strings.TrimSuffix(filepath.Base(docxPath), filepath.Ext(docxPath))
	}

	tpl, err := template.Build(doc, template.BuildOptions{
		Name:           templateName,
		Description:    *description,
		SourceDocxPath: docxPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building template: %v\n", err)
		os.Exit(1)
	}

	if err := writeResult(tpl); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
}

func writeResult(tpl *template.Template) error {
	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tpl)
	case "summary":
		fmt.Fprintf(out, "Template: %s (%s)\n", tpl.Name, tpl.ID)
		fmt.Fprintf(out, "Sections: %d\n", len(tpl.Sections))
		fmt.Fprintf(out, "Requires KML: %t\n", tpl.RequiresKML)
		fmt.Fprintf(out, "Variables:\n")
		for _, v := range tpl.Variables {
			fmt.Fprintf(out, "  %s (%s", v.Name, v.Type)
			if v.IsRequired {
				fmt.Fprint(out, ", required")
			}
			fmt.Fprint(out, ")")
			if v.Expression != "" {
				fmt.Fprintf(out, " = %s", v.Expression)
			}
			fmt.Fprintln(out)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", *outputFormat)
	}
}

func printHelp() {
	fmt.Println("template-import - convert a DOCX report into a fillable template")
	fmt.Println()
	printUsage()
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  template-import report.docx")
	fmt.Println("  template-import -name 'Survey Report' -format summary report.docx")
	fmt.Println("  template-import -o template.json report.docx")
}

func printUsage() {
	fmt.Println("Usage: template-import [options] <file.docx>")
}
