package settings

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/bnema/sitedata-sweeper/internal/models"
	"github.com/bnema/sitedata-sweeper/internal/parser"
	"go.uber.org/zap"
)

// Getter downloads a rule list
type Getter interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// CollectRules assembles the rule list in priority order:
// inline rules, then the local rules file, then each enabled subscription.
// A failing subscription is logged and skipped; an unreadable rules file is an error.
func CollectRules(ctx context.Context, cfg models.Config, get Getter, log *zap.Logger) ([]models.Rule, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rules := slices.Clone(cfg.Rules)

	if cfg.RulesFile != "" {
		data, err := os.ReadFile(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("reading rules file: %w", err)
		}
		parsed, err := parseList(data, cfg.RulesFile, log)
		if err != nil {
			return nil, err
		}
		rules = append(rules, parsed...)
	}

	for _, list := range cfg.EnabledLists() {
		if get == nil {
			break
		}
		data, err := get.Fetch(ctx, list.URL)
		if err != nil {
			log.Warn("rule list unavailable", zap.String("list", list.Name), zap.Error(err))
			continue
		}
		parsed, err := parseList(data, list.Name, log)
		if err != nil {
			log.Warn("rule list unreadable", zap.String("list", list.Name), zap.Error(err))
			continue
		}
		rules = append(rules, parsed...)
	}

	return rules, nil
}

func parseList(data []byte, name string, log *zap.Logger) ([]models.Rule, error) {
	p := parser.New()
	rules, err := p.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	stats := p.Stats()
	log.Debug("rule list parsed",
		zap.String("list", name),
		zap.Int("rules", stats.Rules),
		zap.Int("skipped", stats.Skipped),
		zap.Any("skip_reasons", stats.SkipReasons))
	return rules, nil
}
