// Command waiver-fill fills a waiver template from a values file or interactive prompts and
// writes the generated PDF.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-pdf-waiver/internal/waiver"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/document"
	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/form"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

const dateLayout = "2006-01-02"

type options struct {
	templatePath string
	schemaPath   string
	valuesPath   string
	outputPath   string
	today        string
	interactive  bool
	verbose      bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("waiver-fill", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.templatePath, "template", "t", "", "Template PDF (required)")
	fs.StringVarP(&opts.schemaPath, "schema", "s", "", "Field schema YAML (embedded waiver schema when empty)")
	fs.StringVar(&opts.valuesPath, "values", "", "YAML file mapping field ids to a value or a list of values")
	fs.StringVarP(&opts.outputPath, "output", "o", "waiver.pdf", "Output PDF path")
	fs.StringVar(&opts.today, "date", "", "Date used for the today token (YYYY-MM-DD, default today)")
	fs.BoolVarP(&opts.interactive, "interactive", "i", false, "Prompt for field values")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Print every drawn value")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: waiver-fill --template=waiver.pdf [options]\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  waiver-fill -t waiver.pdf --values=jane.yaml -o jane.pdf\n")
		fmt.Fprintf(stderr, "  waiver-fill -t waiver.pdf -i\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.templatePath == "" {
		fs.Usage()
		return nil, errors.New("template path required")
	}
	if opts.valuesPath == "" && !opts.interactive {
		return nil, errors.New("either --values or --interactive is required")
	}
	if opts.today != "" {
		if _, err := time.Parse(dateLayout, opts.today); err != nil {
			return nil, fmt.Errorf("invalid --date: %w", err)
		}
	}
	return opts, nil
}

func loadSchema(path string) (*schema.Schema, error) {
	if path == "" {
		return schema.Default()
	}
	return schema.LoadFile(path)
}

// loadValues reads a values file. Each key is a field id; a scalar fills instance 0 and a
// list fills one instance per item. Values keep their source text, so 02134 stays a zip code
// and 1990-05-17 stays a date.
func loadValues(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read values: %w", err)
	}
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse values %s: %w", path, err)
	}

	values := make(map[string][]string, len(raw))
	for id, node := range raw {
		switch node.Kind {
		case yaml.ScalarNode:
			values[id] = []string{scalar(&node)}
		case yaml.SequenceNode:
			items := make([]string, 0, len(node.Content))
			for _, item := range node.Content {
				if item.Kind != yaml.ScalarNode {
					return nil, fmt.Errorf("items of %s must be scalars", id)
				}
				items = append(items, scalar(item))
			}
			values[id] = items
		case yaml.AliasNode:
			return nil, fmt.Errorf("value of %s must not be an alias", id)
		default:
			return nil, fmt.Errorf("value of %s must be a scalar or a list", id)
		}
	}
	return values, nil
}

// scalar returns the text of a scalar node, with an explicit null read as empty
func scalar(node *yaml.Node) string {
	if node.ShortTag() == "!!null" {
		return ""
	}
	return node.Value
}

// applyValues stores values in schema order, growing fields and collections to the number
// of values given
func applyValues(sess *form.Session, values map[string][]string) error {
	sch := sess.Schema()
	for id := range values {
		f, ok := sch.Field(id)
		if !ok {
			return werrors.NotFoundf("unknown field %q in values", id)
		}
		if !f.IsVisible() {
			return werrors.NewFillError(werrors.ErrorTypeInvalidInput,
				"field "+id+" is generated and cannot be entered")
		}
	}

	for _, f := range sch.Ordered() {
		items, ok := values[f.ID]
		if !ok {
			continue
		}
		target := f.ID
		if f.Collection != "" {
			target = f.Collection
		}
		for sess.Snapshot().Count(f.ID) < len(items) {
			if _, err := sess.AddInstance(target); err != nil {
				return fmt.Errorf("%s: %w", f.ID, err)
			}
		}
		for i, item := range items {
			if _, err := sess.UpdateField(f.ID, i, item); err != nil {
				return err
			}
		}
	}
	return nil
}

func run(ctx context.Context, opts *options, driver promptDriver, stdout io.Writer) error {
	sch, err := loadSchema(opts.schemaPath)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	template, err := os.ReadFile(opts.templatePath)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	info, err := document.Inspect(template)
	if err != nil {
		return err
	}
	if err := info.CheckPages(sch.MaxPage()); err != nil {
		return fmt.Errorf("template does not fit schema: %w", err)
	}

	sess := form.NewSession(sch)
	if opts.valuesPath != "" {
		values, err := loadValues(opts.valuesPath)
		if err != nil {
			return err
		}
		if err := applyValues(sess, values); err != nil {
			return err
		}
	}
	if opts.interactive {
		fmt.Fprintf(stdout, "%s\n\n", sch.Title)
		if err := interview(ctx, driver, sess); err != nil {
			return err
		}
	}

	var resolverOpts []form.ResolverOption
	if opts.today != "" {
		day, _ := time.Parse(dateLayout, opts.today)
		resolverOpts = append(resolverOpts, form.WithClock(func() time.Time { return day }))
	}

	filler := waiver.NewFiller(sch, document.NewPDFCPULoader(), template, resolverOpts...)
	out, report, err := filler.Submit(ctx, sess)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(opts.outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(opts.outputPath, out, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.outputPath, err)
	}

	fmt.Fprintf(stdout, "Wrote %s (%d bytes, %d values drawn on %d page(s))\n",
		opts.outputPath, len(out), len(report.Draws), info.Pages)
	if len(report.Skipped) > 0 {
		fmt.Fprintf(stdout, "Skipped blank optional fields: %s\n", strings.Join(report.Skipped, ", "))
	}
	if opts.verbose {
		for _, d := range report.Draws {
			fmt.Fprintf(stdout, "  page %d (%.0f, %.0f) %s[%d] = %q\n", d.Page+1, d.X, d.Y, d.FieldID, d.Index, d.Text)
		}
	}
	return nil
}

func describeError(err error) string {
	var fe *werrors.FillError
	if errors.As(err, &fe) && fe.Type == werrors.ErrorTypeIncompleteFields {
		return fmt.Sprintf("%s: %s", fe.UserMessage(), strings.Join(fe.Fields, ", "))
	}
	return err.Error()
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, surveyDriver{}, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
		stop()
		os.Exit(1)
	}
}
