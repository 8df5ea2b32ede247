package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/lims/lims/internal/domain/template"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the YAML document loaded by the seed command.
type Seed struct {
	Templates []template.Template `yaml:"templates"`
	Services  []LabService        `yaml:"services"`
}

// SeedReport counts what a seed run created and skipped.
type SeedReport struct {
	TemplatesCreated int `json:"templates_created"`
	TemplatesSkipped int `json:"templates_skipped"`
	ServicesCreated  int `json:"services_created"`
	ServicesSkipped  int `json:"services_skipped"`
}

// TemplateStore is the part of the template service a seed run needs.
type TemplateStore interface {
	Get(ctx context.Context, id string) (*template.Template, error)
	Create(ctx context.Context, t *template.Template) error
}

func LoadSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for i := range seed.Templates {
		if seed.Templates[i].ID == "" {
			return nil, fmt.Errorf("seed template %d: id is required", i)
		}
	}
	for i := range seed.Services {
		if seed.Services[i].ID == "" {
			return nil, fmt.Errorf("seed service %d: id is required", i)
		}
	}
	return &seed, nil
}

// DefaultSeed is the starter catalog shipped with the binary.
func DefaultSeed() *Seed {
	var seed Seed
	if err := yaml.Unmarshal(defaultSeed, &seed); err != nil {
		panic(fmt.Sprintf("catalog: embedded seed: %v", err))
	}
	return &seed
}

// ApplySeed creates the seed's templates and services. Entries whose id
// already exists are left as they are, so a seed can be re-applied.
func (s *Service) ApplySeed(ctx context.Context, seed *Seed, templates TemplateStore) (SeedReport, error) {
	var rep SeedReport
	for i := range seed.Templates {
		t := seed.Templates[i]
		t.Fields = template.CloneFields(t.Fields)
		_, err := templates.Get(ctx, t.ID)
		switch {
		case err == nil:
			rep.TemplatesSkipped++
			continue
		case !errors.Is(err, template.ErrNotFound):
			return rep, err
		}
		if err := templates.Create(ctx, &t); err != nil {
			return rep, fmt.Errorf("seed template %s: %w", t.ID, err)
		}
		rep.TemplatesCreated++
	}
	for i := range seed.Services {
		svc := seed.Services[i]
		err := s.Create(ctx, &svc)
		switch {
		case errors.Is(err, ErrAlreadyExists):
			rep.ServicesSkipped++
		case err != nil:
			return rep, fmt.Errorf("seed service %s: %w", svc.ID, err)
		default:
			rep.ServicesCreated++
		}
	}
	s.logger.Info().
		Int("templates_created", rep.TemplatesCreated).
		Int("services_created", rep.ServicesCreated).
		Msg("catalog seeded")
	return rep, nil
}
