package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-waiver/internal/testdoc"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/document"
	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/form"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

const janeValues = `
full_name: Jane Doe
age: 34
date_of_birth: 1990-05-17
phone_number: 9705551234
address: 1 Main St
city: Boulder
state: CO
zip: 80301
email: jane@example.com
minor_full_name: [Sam Doe, Alex Doe]
minor_relation_to_user: [Parent, Parent]
`

// scriptedDriver answers prompts by message and records what was asked
type scriptedDriver struct {
	answers  map[string][]string
	confirms []bool
	asked    []string
}

func (d *scriptedDriver) next(message string) (string, error) {
	d.asked = append(d.asked, message)
	queue := d.answers[message]
	if len(queue) == 0 {
		return "", fmt.Errorf("unexpected prompt %q", message)
	}
	d.answers[message] = queue[1:]
	return queue[0], nil
}

func (d *scriptedDriver) Input(_ context.Context, message, _ string, _ bool) (string, error) {
	return d.next(message)
}

func (d *scriptedDriver) Select(_ context.Context, message string, options []string) (string, error) {
	answer, err := d.next(message)
	if err == nil && !slices.Contains(options, answer) {
		return "", fmt.Errorf("%q is not an option of %q", answer, message)
	}
	return answer, err
}

func (d *scriptedDriver) Confirm(_ context.Context, message string) (bool, error) {
	d.asked = append(d.asked, message)
	if len(d.confirms) == 0 {
		return false, fmt.Errorf("unexpected confirm %q", message)
	}
	answer := d.confirms[0]
	d.confirms = d.confirms[1:]
	return answer, nil
}

func defaultSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.Default()
	require.NoError(t, err)
	return sch
}

func label(t *testing.T, sch *schema.Schema, id string) string {
	t.Helper()
	f, ok := sch.Field(id)
	require.True(t, ok, id)
	return f.Label
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		check   func(t *testing.T, o *options)
	}{
		{
			name: "values file",
			args: []string{"--template=w.pdf", "--values=v.yaml", "-o", "out/jane.pdf"},
			check: func(t *testing.T, o *options) {
				assert.Equal(t, "w.pdf", o.templatePath)
				assert.Equal(t, "v.yaml", o.valuesPath)
				assert.Equal(t, "out/jane.pdf", o.outputPath)
				assert.False(t, o.interactive)
			},
		},
		{
			name: "interactive with defaults",
			args: []string{"-t", "w.pdf", "-i", "--date=2024-03-09"},
			check: func(t *testing.T, o *options) {
				assert.True(t, o.interactive)
				assert.Equal(t, "waiver.pdf", o.outputPath)
				assert.Equal(t, "2024-03-09", o.today)
			},
		},
		{name: "missing template", args: []string{"-i"}, wantErr: "template path required"},
		{name: "no input source", args: []string{"-t", "w.pdf"}, wantErr: "either --values or --interactive"},
		{name: "bad date", args: []string{"-t", "w.pdf", "-i", "--date=03/09/2024"}, wantErr: "invalid --date"},
		{name: "unknown flag", args: []string{"--nope"}, wantErr: "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, opts)
		})
	}
}

func TestLoadValues(t *testing.T) {
	values, err := loadValues(writeFile(t, "jane.yaml", janeValues))
	require.NoError(t, err)

	assert.Equal(t, []string{"Jane Doe"}, values["full_name"])
	assert.Equal(t, []string{"34"}, values["age"])
	assert.Equal(t, []string{"1990-05-17"}, values["date_of_birth"])
	assert.Equal(t, []string{"9705551234"}, values["phone_number"])
	assert.Equal(t, []string{"Sam Doe", "Alex Doe"}, values["minor_full_name"])

	values, err = loadValues(writeFile(t, "literal.yaml",
		"zip: 02134\nage: 0x1F\nstate: ~\nminor_birthday: [2015-06-01, 2016-01-02]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"02134"}, values["zip"], "leading zeros are kept")
	assert.Equal(t, []string{"0x1F"}, values["age"])
	assert.Equal(t, []string{""}, values["state"])
	assert.Equal(t, []string{"2015-06-01", "2016-01-02"}, values["minor_birthday"])

	_, err = loadValues(writeFile(t, "nested.yaml", "full_name: {first: Jane}\n"))
	assert.Error(t, err)

	_, err = loadValues(writeFile(t, "nested_list.yaml", "minor_full_name: [[Sam Doe]]\n"))
	assert.Error(t, err)

	_, err = loadValues(writeFile(t, "broken.yaml", "full_name: [\n"))
	assert.Error(t, err)

	_, err = loadValues(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyValues(t *testing.T) {
	sch := defaultSchema(t)
	values, err := loadValues(writeFile(t, "jane.yaml", janeValues))
	require.NoError(t, err)

	sess := form.NewSession(sch)
	require.NoError(t, applyValues(sess, values))
	require.NoError(t, sess.Validate())

	state := sess.Snapshot()
	assert.Equal(t, []string{"Sam Doe", "Alex Doe"}, state.Slots("minor_full_name"))
	assert.Equal(t, []string{"", ""}, state.Slots("minor_birthday"), "collection members grow together")
	assert.Equal(t, []string{"(970) 555-1234"}, state.Slots("phone_number"))
	assert.Equal(t, []string{"5/17/1990"}, state.Slots("date_of_birth"))
}

func TestApplyValues_Errors(t *testing.T) {
	sch := defaultSchema(t)

	tests := []struct {
		name   string
		values map[string][]string
		want   werrors.ErrorType
	}{
		{name: "unknown field", values: map[string][]string{"nickname": {"JD"}}, want: werrors.ErrorTypeNotFound},
		{name: "generated field", values: map[string][]string{"signature": {"JD"}}, want: werrors.ErrorTypeInvalidInput},
		{
			name:   "too many minors",
			values: map[string][]string{"minor_full_name": {"a", "b", "c", "d", "e"}},
			want:   werrors.ErrorTypeCapacityExceeded,
		},
		{
			name:   "invalid option",
			values: map[string][]string{"minor_relation_to_user": {"Neighbour"}},
			want:   werrors.ErrorTypeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := applyValues(form.NewSession(sch), tt.values)
			require.Error(t, err)
			assert.Equal(t, tt.want, werrors.TypeOf(err))
		})
	}
}

func TestInterview(t *testing.T) {
	sch := defaultSchema(t)
	minor := func(id string) string { return fmt.Sprintf("%s (Minors #1)", label(t, sch, id)) }

	driver := &scriptedDriver{
		answers: map[string][]string{
			label(t, sch, "full_name"):     {"", "Jane Doe"},
			label(t, sch, "age"):           {"34"},
			label(t, sch, "date_of_birth"): {"5/17/1990"},
			label(t, sch, "phone_number"):  {"970 555 1234"},
			label(t, sch, "address"):       {"1 Main St"},
			label(t, sch, "city"):          {"Boulder"},
			label(t, sch, "state"):         {"CO"},
			label(t, sch, "zip"):           {"80301"},
			label(t, sch, "email"):         {"jane@example.com"},
			minor("minor_full_name"):        {"Sam Doe"},
			minor("minor_birthday"):         {"2015-06-01"},
			minor("minor_relation_to_user"): {"Parent"},
		},
		confirms: []bool{true, false},
	}

	sess := form.NewSession(sch)
	require.NoError(t, interview(context.Background(), driver, sess))
	require.NoError(t, sess.Validate())

	state := sess.Snapshot()
	assert.Equal(t, []string{"Jane Doe"}, state.Slots("full_name"), "required fields are asked again when left blank")
	assert.Equal(t, []string{"6/1/2015"}, state.Slots("minor_birthday"))
	assert.Equal(t, []string{"Parent"}, state.Slots("minor_relation_to_user"))
	assert.Contains(t, driver.asked, "Add Minors entry #2?")
}

const guestSchema = `
title: Guest List
fields:
  - id: host
    visible: true
    required: true
    targets: [{x: 72, y: 700, page: 1}]
  - id: guest
    visible: true
    max: 2
    targets: [{x: 72, y: 650, page: 1}, {x: 72, y: 630, page: 1}]
`

func TestInterview_OptionalField(t *testing.T) {
	sch, err := schema.LoadBytes([]byte(guestSchema))
	require.NoError(t, err)
	guest := label(t, sch, "guest")

	tests := []struct {
		name     string
		confirms []bool
		answers  []string
		want     []string
	}{
		{name: "declined", confirms: []bool{false}, want: []string{}},
		{name: "one guest", confirms: []bool{true, false}, answers: []string{"Sam Doe"}, want: []string{"Sam Doe"}},
		{name: "up to the maximum", confirms: []bool{true, true}, answers: []string{"Sam Doe", "Alex Doe"}, want: []string{"Sam Doe", "Alex Doe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers := map[string][]string{label(t, sch, "host"): {"Jane Doe"}}
			for i, a := range tt.answers {
				msg := fmt.Sprintf("%s #%d", guest, i+1)
				answers[msg] = append(answers[msg], a)
			}
			driver := &scriptedDriver{answers: answers, confirms: tt.confirms}

			sess := form.NewSession(sch)
			require.NoError(t, interview(context.Background(), driver, sess))

			assert.Empty(t, driver.confirms, "every offer was made")
			assert.Equal(t, tt.want, append([]string{}, sess.Snapshot().Slots("guest")...))
			assert.Contains(t, driver.asked, fmt.Sprintf("Add %s #1?", guest))
		})
	}
}

func TestInterview_Aborted(t *testing.T) {
	sch := defaultSchema(t)
	driver := &scriptedDriver{answers: map[string][]string{}}

	err := interview(context.Background(), driver, form.NewSession(sch))
	assert.Error(t, err)
}

func TestRun_IncompleteValues(t *testing.T) {
	opts := &options{
		templatePath: testdoc.WriteBlank(t, 8),
		valuesPath:   writeFile(t, "partial.yaml", "full_name: Jane Doe\n"),
		outputPath:   filepath.Join(t.TempDir(), "jane.pdf"),
	}

	err := run(context.Background(), opts, nil, io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, werrors.ErrIncompleteFields))
	assert.Contains(t, describeError(err), "please complete all required fields: address, age, city")
	assert.NoFileExists(t, opts.outputPath)
}

func TestRun_TemplateTooShort(t *testing.T) {
	opts := &options{
		templatePath: testdoc.WriteBlank(t, 4),
		valuesPath:   writeFile(t, "jane.yaml", janeValues),
		outputPath:   filepath.Join(t.TempDir(), "jane.pdf"),
	}

	err := run(context.Background(), opts, nil, io.Discard)
	assert.True(t, errors.Is(err, werrors.ErrMissingPage))
}

func TestRun_WritesDocument(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pdfcpu round trip in short mode")
	}

	opts := &options{
		templatePath: testdoc.WriteBlank(t, 8),
		valuesPath:   writeFile(t, "jane.yaml", janeValues),
		outputPath:   filepath.Join(t.TempDir(), "nested", "jane.pdf"),
		today:        "2024-03-09",
		verbose:      true,
	}

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), opts, nil, &stdout))

	data, err := os.ReadFile(opts.outputPath)
	require.NoError(t, err)
	info, err := document.Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, 8, info.Pages)

	output := stdout.String()
	assert.Contains(t, output, "Wrote "+opts.outputPath)
	assert.Contains(t, output, `date[0] = "3/9/2024"`)
	assert.Contains(t, output, `minor_full_name[1] = "Alex Doe"`)
	assert.Contains(t, output, "Skipped blank optional fields: ")
}
