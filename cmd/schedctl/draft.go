package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/builder"
)

// draftFile is the YAML form of a schedule draft.
type draftFile struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description"`
	ContentID   *int               `yaml:"contentId"`
	TemplateID  *int               `yaml:"templateId"`
	Target      model.TargetFields `yaml:"target"`
	StartTime   string             `yaml:"startTime"`
	EndTime     string             `yaml:"endTime"`
	Priority    int                `yaml:"priority"`
	Recurrence  *model.Recurrence  `yaml:"recurrence"`
}

func (f draftFile) draft() (builder.Draft, error) {
	d := builder.Draft{
		Name:        f.Name,
		Description: f.Description,
		ContentID:   f.ContentID,
		TemplateID:  f.TemplateID,
		Start:       f.StartTime,
		End:         f.EndTime,
		Priority:    f.Priority,
		Recurrence:  f.Recurrence,
	}
	if f.Target.IsEmpty() {
		return d, nil
	}
	t, err := f.Target.Target()
	if err != nil {
		return d, fmt.Errorf("target: %w", err)
	}
	d.Target = t
	return d, nil
}

func parseDraft(data []byte) (builder.Draft, error) {
	var f draftFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return builder.Draft{}, fmt.Errorf("parse draft: %w", err)
	}
	return f.draft()
}

// templateFile is the YAML form of a template.
type templateFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Blocks      []struct {
		Name      string `yaml:"name"`
		StartTime string `yaml:"startTime"`
		EndTime   string `yaml:"endTime"`
		Contents  []struct {
			ContentID int `yaml:"contentId"`
			Duration  int `yaml:"duration"`
		} `yaml:"contents"`
	} `yaml:"blocks"`
}

func parseTemplate(data []byte) (model.Template, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return model.Template{}, fmt.Errorf("parse template: %w", err)
	}
	t := model.Template{Name: f.Name, Description: f.Description}
	for i, b := range f.Blocks {
		block := model.TemplateBlock{Name: b.Name, StartTime: b.StartTime, EndTime: b.EndTime, Position: i}
		for j, c := range b.Contents {
			block.Contents = append(block.Contents, model.TemplateBlockContent{ContentID: c.ContentID, Duration: c.Duration, Position: j})
		}
		t.Blocks = append(t.Blocks, block)
	}
	return t, nil
}

// readFile reads path, or the app's input for "-".
func (a *app) readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("-f is required")
	}
	if path == "-" {
		return io.ReadAll(a.in)
	}
	return os.ReadFile(path)
}
