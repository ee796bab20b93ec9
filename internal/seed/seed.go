// Package seed loads YAML fixtures of upcoming interviews, task deadlines,
// evaluations and trainings and schedules them as reminders.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/reminder"
)

// Offset places a fixture relative to the seeding time, e.g. "26h" or
// "90m", so a fixture file stays in the future. It wins over an absolute
// time.
type Offset struct {
	In string `yaml:"in"`
}

func (o Offset) resolve(at, now time.Time) (time.Time, error) {
	if o.In == "" {
		return at, nil
	}
	d, err := time.ParseDuration(o.In)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing offset %q: %w", o.In, err)
	}
	return now.Add(d).Truncate(time.Minute), nil
}

type interviewFixture struct {
	reminder.Interview `yaml:",inline"`
	Offset             `yaml:",inline"`
}

type taskFixture struct {
	reminder.TaskDeadline `yaml:",inline"`
	Offset                `yaml:",inline"`
}

type evaluationFixture struct {
	reminder.Evaluation `yaml:",inline"`
	Offset              `yaml:",inline"`
}

type trainingFixture struct {
	reminder.Training `yaml:",inline"`
	Offset            `yaml:",inline"`
}

// File is a fixture document.
type File struct {
	Interviews  []interviewFixture  `yaml:"interviews"`
	Tasks       []taskFixture       `yaml:"tasks"`
	Evaluations []evaluationFixture `yaml:"evaluations"`
	Trainings   []trainingFixture   `yaml:"trainings"`
}

// Result summarizes an Apply.
type Result struct {
	Scheduled int
	Skipped   int
}

// Load reads and parses a fixture file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes fixture YAML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	return &f, nil
}

// Specs resolves offsets against now and returns the reminder spec of
// every fixture, in file order by section.
func (f *File) Specs(now time.Time) ([]reminder.Spec, error) {
	var specs []reminder.Spec

	for _, fx := range f.Interviews {
		at, err := fx.resolve(fx.At, now)
		if err != nil {
			return nil, err
		}
		iv := fx.Interview
		iv.At = at
		specs = append(specs, iv.Spec())
	}
	for _, fx := range f.Tasks {
		at, err := fx.resolve(fx.Due, now)
		if err != nil {
			return nil, err
		}
		td := fx.TaskDeadline
		td.Due = at
		specs = append(specs, td.Spec())
	}
	for _, fx := range f.Evaluations {
		at, err := fx.resolve(fx.Due, now)
		if err != nil {
			return nil, err
		}
		ev := fx.Evaluation
		ev.Due = at
		specs = append(specs, ev.Spec())
	}
	for _, fx := range f.Trainings {
		at, err := fx.resolve(fx.At, now)
		if err != nil {
			return nil, err
		}
		tr := fx.Training
		tr.At = at
		specs = append(specs, tr.Spec())
	}

	return specs, nil
}

// Apply schedules every fixture. Fixtures in the past, invalid ones, and
// ones matching a scheduled reminder of the same type, title and target
// are skipped, so seeding twice is harmless.
func (f *File) Apply(ctx context.Context, e *reminder.Engine, now time.Time) (Result, error) {
	var res Result

	specs, err := f.Specs(now)
	if err != nil {
		return res, err
	}

	existing := make(map[string]bool)
	for _, r := range e.List() {
		if r.Status == model.ReminderScheduled {
			existing[key(r.Type, r.Title, r.TargetDate)] = true
		}
	}

	for _, spec := range specs {
		k := key(spec.Type, spec.Title, spec.TargetDate)
		switch {
		case existing[k]:
			res.Skipped++
			continue
		case spec.TargetDate.Before(now):
			log.Printf("seed: skipping %q: %s is in the past", spec.Title, spec.TargetDate.Format(time.RFC3339))
			res.Skipped++
			continue
		}

		_, err := e.Schedule(ctx, spec)
		if errors.Is(err, reminder.ErrInvalidSpec) {
			log.Printf("seed: skipping %q: %v", spec.Title, err)
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seeding %q: %w", spec.Title, err)
		}
		existing[k] = true
		res.Scheduled++
	}

	return res, nil
}

func key(t model.ReminderType, title string, at time.Time) string {
	return string(t) + "|" + title + "|" + at.UTC().Format(time.RFC3339)
}
