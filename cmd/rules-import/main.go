// rules-import loads routing rules from a YAML file into the database.
// Fallback chains reference rules by name within the same file, so a whole
// rule set can be versioned next to the deployment and applied in one shot.
//
// Usage:
//
//	rules-import -file rules.yaml -org <organization-uuid> [-replace]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"outreach_backend/internal/directory"
	"outreach_backend/internal/events"
	"outreach_backend/internal/routing"
	"outreach_backend/internal/routing/domain"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Name       string          `yaml:"name"`
	Priority   int             `yaml:"priority"`
	LocationID string          `yaml:"locationId"`
	Conditions []conditionSpec `yaml:"conditions"`
	Target     targetSpec      `yaml:"target"`
	Fallback   string          `yaml:"fallback"`
	Active     *bool           `yaml:"active"`
}

type conditionSpec struct {
	Field   string   `yaml:"field" json:"field"`
	Op      string   `yaml:"op" json:"op"`
	Value   string   `yaml:"value" json:"value,omitempty"`
	Min     *float64 `yaml:"min" json:"min,omitempty"`
	Max     *float64 `yaml:"max" json:"max,omitempty"`
	Values  []string `yaml:"values" json:"values,omitempty"`
	Present *bool    `yaml:"present" json:"present,omitempty"`
}

type targetSpec struct {
	Type        string `yaml:"type"`
	RecipientID string `yaml:"recipientId"`
	Department  string `yaml:"department"`
}

func main() {
	var (
		file    = flag.String("file", "", "YAML rule file to import")
		org     = flag.String("org", "", "organization UUID the rules belong to")
		replace = flag.Bool("replace", false, "delete the organization's existing rules first")
	)
	flag.Parse()

	if *file == "" || *org == "" {
		flag.Usage()
		os.Exit(2)
	}
	orgID, err := uuid.Parse(*org)
	if err != nil {
		fatal("invalid organization id: %v", err)
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		fatal("read rule file: %v", err)
	}
	var rf ruleFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		fatal("parse rule file: %v", err)
	}
	if len(rf.Rules) == 0 {
		fatal("rule file contains no rules")
	}

	rules, err := buildRules(orgID, rf.Rules)
	if err != nil {
		fatal("%v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("load config: %v", err)
	}
	log := logger.New(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		fatal("connect to database: %v", err)
	}
	defer pool.Close()

	val := validator.New()
	directoryModule := directory.NewModule(pool, val, log)
	svc := routing.NewModule(pool, directoryModule.Service(), events.NewInMemoryBus(log), val, log).Service()

	if *replace {
		existing, err := svc.ListRules(ctx, orgID)
		if err != nil {
			fatal("list existing rules: %v", err)
		}
		for _, r := range existing {
			if err := svc.DeleteRule(ctx, orgID, r.ID); err != nil {
				fatal("delete rule %s: %v", r.Name, err)
			}
		}
		fmt.Printf("deleted %d existing rules\n", len(existing))
	}

	for _, r := range rules {
		if err := svc.CreateRule(ctx, r); err != nil {
			fatal("create rule %s: %v", r.Name, err)
		}
		fmt.Printf("imported rule %q (priority %d)\n", r.Name, r.Priority)
	}
	fmt.Printf("imported %d rules for organization %s\n", len(rules), orgID)
}

// buildRules resolves fallback name references in two passes: IDs are
// assigned first so a rule can point at one defined later in the file.
func buildRules(orgID uuid.UUID, specs []ruleSpec) ([]*domain.Rule, error) {
	idsByName := make(map[string]uuid.UUID, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("rule %d: name is required", i)
		}
		if _, dup := idsByName[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate rule name %q", spec.Name)
		}
		idsByName[spec.Name] = uuid.New()
	}

	out := make([]*domain.Rule, 0, len(specs))
	for _, spec := range specs {
		rule, err := buildRule(orgID, spec, idsByName)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", spec.Name, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

func buildRule(orgID uuid.UUID, spec ruleSpec, idsByName map[string]uuid.UUID) (*domain.Rule, error) {
	condJSON, err := json.Marshal(spec.Conditions)
	if err != nil {
		return nil, fmt.Errorf("encode conditions: %w", err)
	}
	conditions, err := domain.ParseConditions(condJSON)
	if err != nil {
		return nil, err
	}

	target := domain.Target{
		Type:       domain.TargetType(spec.Target.Type),
		Department: spec.Target.Department,
	}
	if spec.Target.RecipientID != "" {
		rid, err := uuid.Parse(spec.Target.RecipientID)
		if err != nil {
			return nil, fmt.Errorf("invalid target recipient id: %w", err)
		}
		target.RecipientID = &rid
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	rule := &domain.Rule{
		ID:             idsByName[spec.Name],
		OrganizationID: orgID,
		Name:           spec.Name,
		Priority:       spec.Priority,
		Conditions:     conditions,
		Target:         target,
		Active:         true,
	}
	if spec.Active != nil {
		rule.Active = *spec.Active
	}
	if spec.LocationID != "" {
		loc, err := uuid.Parse(spec.LocationID)
		if err != nil {
			return nil, fmt.Errorf("invalid location id: %w", err)
		}
		rule.LocationID = &loc
	}
	if spec.Fallback != "" {
		fb, ok := idsByName[spec.Fallback]
		if !ok {
			return nil, fmt.Errorf("fallback %q is not defined in this file", spec.Fallback)
		}
		if fb == rule.ID {
			return nil, fmt.Errorf("rule cannot fall back to itself")
		}
		rule.FallbackRuleID = &fb
	}
	return rule, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
