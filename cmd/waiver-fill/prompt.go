package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/form"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

// ErrAborted is returned when the user interrupts a prompt
var ErrAborted = errors.New("aborted by user")

// promptDriver abstracts the terminal so the interactive flow can be tested with scripted
// answers
type promptDriver interface {
	Input(ctx context.Context, message, help string, required bool) (string, error)
	Select(ctx context.Context, message string, options []string) (string, error)
	Confirm(ctx context.Context, message string) (bool, error)
}

type surveyDriver struct{}

func (surveyDriver) Input(ctx context.Context, message, help string, required bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	var opts []survey.AskOpt
	if required {
		opts = append(opts, survey.WithValidator(survey.Required))
	}
	if err := survey.AskOne(&survey.Input{Message: message, Help: help}, &out, opts...); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func (surveyDriver) Select(ctx context.Context, message string, options []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	if err := survey.AskOne(&survey.Select{Message: message, Options: options}, &out); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func (surveyDriver) Confirm(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var out bool
	if err := survey.AskOne(&survey.Confirm{Message: message}, &out); err != nil {
		return false, translateSurveyErr(err)
	}
	return out, nil
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}

func inputHelp(kind schema.InputKind) string {
	switch kind {
	case schema.InputDate:
		return "YYYY-MM-DD or M/D/YYYY"
	case schema.InputPhone:
		return "10 digits, formatted as (XXX) XXX-XXXX"
	case schema.InputNumber:
		return "a number"
	default:
		return ""
	}
}

// askField prompts for one instance of a visible field and stores the answer
func askField(ctx context.Context, d promptDriver, sess *form.Session, f *schema.FieldSpec, index int, suffix string) error {
	v, ok := f.Variant.(schema.Visible)
	if !ok {
		return nil
	}
	message := f.Label + suffix

	for {
		var answer string
		var err error
		if len(v.Options) > 0 {
			answer, err = d.Select(ctx, message, v.Options)
		} else {
			answer, err = d.Input(ctx, message, inputHelp(v.Input), f.Required())
		}
		if err != nil {
			return err
		}
		if _, err := sess.UpdateField(f.ID, index, strings.TrimSpace(answer)); err != nil {
			return err
		}
		if !f.Required() {
			return nil
		}
		if value, _ := sess.Snapshot().Value(f.ID, index); value != "" {
			return nil
		}
	}
}

// interview walks the schema in processing order. Standalone fields are asked for their
// existing instances and then offered further ones up to their maximum. Collections follow,
// one instance at a time.
func interview(ctx context.Context, d promptDriver, sess *form.Session) error {
	sch := sess.Schema()

	for _, f := range sch.Ordered() {
		if !f.IsVisible() || f.Collection != "" {
			continue
		}
		if err := interviewField(ctx, d, sess, f); err != nil {
			return err
		}
	}

	for _, c := range sch.Collections() {
		if err := interviewCollection(ctx, d, sess, c); err != nil {
			return err
		}
	}
	return nil
}

func interviewField(ctx context.Context, d promptDriver, sess *form.Session, f *schema.FieldSpec) error {
	suffix := func(i int) string {
		if f.MaxCount > 1 {
			return fmt.Sprintf(" #%d", i+1)
		}
		return ""
	}

	for i := 0; ; i++ {
		if i >= sess.Snapshot().Count(f.ID) {
			if i >= f.MaxCount {
				return nil
			}
			add, err := d.Confirm(ctx, fmt.Sprintf("Add %s%s?", f.Label, suffix(i)))
			if err != nil {
				return err
			}
			if !add {
				return nil
			}
			if _, err := sess.AddInstance(f.ID); err != nil {
				return err
			}
		}
		if err := askField(ctx, d, sess, f, i, suffix(i)); err != nil {
			return err
		}
	}
}

func interviewCollection(ctx context.Context, d promptDriver, sess *form.Session, c *schema.Collection) error {
	sch := sess.Schema()
	count := func() int {
		if len(c.Fields) == 0 {
			return 0
		}
		return sess.Snapshot().Count(c.Fields[0])
	}

	for i := 0; ; i++ {
		if i >= count() {
			if count() >= c.MaxCount {
				return nil
			}
			add, err := d.Confirm(ctx, fmt.Sprintf("Add %s entry #%d?", c.Title, i+1))
			if err != nil {
				return err
			}
			if !add {
				return nil
			}
			if _, err := sess.AddInstance(c.ID); err != nil {
				return err
			}
		}
		for _, id := range c.Fields {
			f, ok := sch.Field(id)
			if !ok {
				continue
			}
			if err := askField(ctx, d, sess, f, i, fmt.Sprintf(" (%s #%d)", c.Title, i+1)); err != nil {
				return err
			}
		}
	}
}
