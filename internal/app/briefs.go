package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	types "github.com/yungbote/neurobridge-delivery/internal/domain/delivery"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/dbctx"
)

// briefFile is the YAML layout accepted by ImportBriefs.
type briefFile struct {
	Concepts []struct {
		ID              string   `yaml:"id"`
		Title           string   `yaml:"title"`
		ExpectedMinutes float64  `yaml:"expected_minutes"`
		KeyPoints       []string `yaml:"key_points"`
		ExitQuestion    string   `yaml:"exit_question"`
		RecallQuestion  string   `yaml:"recall_question"`
	} `yaml:"concepts"`
}

// ParseBriefs decodes concept briefs, rejecting bad ids and negative durations.
func ParseBriefs(r io.Reader) ([]*types.ConceptBrief, error) {
	var f briefFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode briefs: %w", err)
	}
	out := make([]*types.ConceptBrief, 0, len(f.Concepts))
	for i, c := range f.Concepts {
		id, err := uuid.Parse(strings.TrimSpace(c.ID))
		if err != nil {
			return nil, fmt.Errorf("concept %d: invalid id %q: %w", i, c.ID, err)
		}
		if c.ExpectedMinutes < 0 {
			return nil, fmt.Errorf("concept %s: expected_minutes must be >= 0", id)
		}
		b := &types.ConceptBrief{
			ConceptID:       id,
			Title:           strings.TrimSpace(c.Title),
			ExpectedMinutes: c.ExpectedMinutes,
			ExitQuestion:    strings.TrimSpace(c.ExitQuestion),
			RecallQuestion:  strings.TrimSpace(c.RecallQuestion),
		}
		if len(c.KeyPoints) > 0 {
			raw, err := json.Marshal(c.KeyPoints)
			if err != nil {
				return nil, err
			}
			b.ExpectedPoints = datatypes.JSON(raw)
		}
		out = append(out, b)
	}
	return out, nil
}

// ImportBriefs upserts every brief in r in one transaction.
func (a *App) ImportBriefs(ctx context.Context, r io.Reader) (int, error) {
	briefs, err := ParseBriefs(r)
	if err != nil {
		return 0, err
	}
	err = a.Repos.Tx.InTx(ctx, func(dbc dbctx.Context) error {
		for _, b := range briefs {
			if err := a.Repos.ConceptBrief.Upsert(dbc, b); err != nil {
				return fmt.Errorf("upsert brief %s: %w", b.ConceptID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	a.Log.Info("Imported concept briefs", "count", len(briefs))
	return len(briefs), nil
}
