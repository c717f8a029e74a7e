package kit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultTemplateType is the scaffold used when a kit names none.
const DefaultTemplateType = "default"

// Template is the starter file tree of a kit.
type Template struct {
	Type  string            `json:"type"`
	Files map[string]string `json:"files"`
}

// Resource is a reference document or asset attached to a kit.
type Resource struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content,omitempty"`
}

// Kit is the application-level view of a kit.
type Kit struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Thumbnail    *string           `json:"thumbnail,omitempty"`
	IsBuiltIn    bool              `json:"isBuiltIn"`
	UserID       *uuid.UUID        `json:"userId,omitempty"`
	TeamID       *uuid.UUID        `json:"teamId,omitempty"`
	Template     Template          `json:"template"`
	NpmPackages  map[string]string `json:"npmPackages,omitempty"`
	Resources    []Resource        `json:"resources"`
	DesignTokens json.RawMessage   `json:"designTokens,omitempty"`
	SystemPrompt string            `json:"systemPrompt,omitempty"`
	McpServerIDs []string          `json:"mcpServerIds"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Config is the serialized form of every kit field without its own column.
// Every field is optional so older rows decode cleanly.
type Config struct {
	Template     *Template         `json:"template,omitempty"`
	NpmPackages  map[string]string `json:"npmPackages,omitempty"`
	Resources    []Resource        `json:"resources,omitempty"`
	DesignTokens json.RawMessage   `json:"designTokens,omitempty"`
	SystemPrompt string            `json:"systemPrompt,omitempty"`
	McpServerIDs []string          `json:"mcpServerIds,omitempty"`
}

// Row is the storage form of a kit: indexed columns plus the config blob.
type Row struct {
	ID          string
	Name        string
	Description string
	Thumbnail   *string
	IsBuiltIn   bool
	UserID      *uuid.UUID
	TeamID      *uuid.UUID
	Config      []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ToRow splits a kit into its columns and config blob.
func ToRow(k *Kit) (*Row, error) {
	cfg := Config{
		NpmPackages:  k.NpmPackages,
		Resources:    k.Resources,
		DesignTokens: k.DesignTokens,
		SystemPrompt: k.SystemPrompt,
		McpServerIDs: k.McpServerIDs,
	}
	if k.Template.Type != "" || len(k.Template.Files) > 0 {
		tmpl := k.Template
		cfg.Template = &tmpl
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding kit config: %w", err)
	}

	return &Row{
		ID:          k.ID,
		Name:        k.Name,
		Description: k.Description,
		Thumbnail:   k.Thumbnail,
		IsBuiltIn:   k.IsBuiltIn,
		UserID:      k.UserID,
		TeamID:      k.TeamID,
		Config:      data,
		CreatedAt:   k.CreatedAt,
		UpdatedAt:   k.UpdatedAt,
	}, nil
}

// FromRow merges a row's columns with its decoded config, filling defaults
// for fields older rows lack.
func FromRow(r *Row) (*Kit, error) {
	var cfg Config
	if len(r.Config) > 0 {
		if err := json.Unmarshal(r.Config, &cfg); err != nil {
			return nil, fmt.Errorf("decoding kit config for %s: %w", r.ID, err)
		}
	}

	k := &Kit{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		Thumbnail:    r.Thumbnail,
		IsBuiltIn:    r.IsBuiltIn,
		UserID:       r.UserID,
		TeamID:       r.TeamID,
		NpmPackages:  cfg.NpmPackages,
		Resources:    cfg.Resources,
		DesignTokens: cfg.DesignTokens,
		SystemPrompt: cfg.SystemPrompt,
		McpServerIDs: cfg.McpServerIDs,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if cfg.Template != nil {
		k.Template = *cfg.Template
	}
	k.applyDefaults()
	return k, nil
}

func (k *Kit) applyDefaults() {
	if k.Template.Type == "" {
		k.Template.Type = DefaultTemplateType
	}
	if k.Template.Files == nil {
		k.Template.Files = map[string]string{}
	}
	if k.Resources == nil {
		k.Resources = []Resource{}
	}
	if k.McpServerIDs == nil {
		k.McpServerIDs = []string{}
	}
}
