// Package collab runs the conditional multi-agent pipeline: a planner and a
// writer always run, and a reviewer runs only for complex queries, consuming
// a compressed view of the draft instead of the full text.
package collab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/threadloom/threadloom/gateway"
	"github.com/threadloom/threadloom/logging"
	"github.com/threadloom/threadloom/storage"
	"github.com/threadloom/threadloom/types"
	"github.com/threadloom/threadloom/usage"
)

// Per-stage call parameters. The reviewer runs cooler than the creative
// stages, and its input is capped at maxKeySectionChars of draft material.
const (
	plannerTemperature = 0.7
	plannerMaxTokens   = 500

	writerTemperature = 0.7
	writerMaxTokens   = 1500

	reviewerTemperature = 0.5
	reviewerMaxTokens   = 1500

	maxKeySectionChars = 800
)

// Request is one collaboration query.
type Request struct {
	Query             string
	Context           string
	UserID            string
	IncludeProcess    bool
	ForceFullPipeline bool
}

// Step records one pipeline stage. Skipped stages carry the reason and the
// complexity score that caused the skip.
type Step struct {
	Role       string `json:"role"`
	Model      string `json:"model,omitempty"`
	Output     string `json:"output,omitempty"`
	Tokens     int    `json:"tokens"`
	DurationMS int64  `json:"duration_ms"`
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// Metadata summarizes a finished collaboration.
type Metadata struct {
	CollaborationID string          `json:"collaboration_id"`
	Complexity      ComplexityScore `json:"complexity"`
	StagesRun       []string        `json:"stages_run"`
	TotalTokens     int             `json:"total_tokens"`
	DurationMS      int64           `json:"duration_ms"`
}

// Result is the outcome of a collaboration run. Steps is populated only when
// the request asked for the process trace.
type Result struct {
	FinalResponse string   `json:"final_response"`
	Metadata      Metadata `json:"metadata"`
	Steps         []Step   `json:"process,omitempty"`
}

// Pipeline orchestrates the planner, writer and reviewer agents.
type Pipeline struct {
	client  gateway.Client
	configs *ConfigTable
	tracker *usage.Tracker
	logger  logging.Logger
}

// NewPipeline creates a collaboration pipeline.
func NewPipeline(client gateway.Client, configs *ConfigTable, tracker *usage.Tracker, logger logging.Logger) *Pipeline {
	return &Pipeline{
		client:  client,
		configs: configs,
		tracker: tracker,
		logger:  logging.OrNoop(logger),
	}
}

// Collaborate runs the pipeline end to end. A failure in any stage aborts
// the whole collaboration; no partial result is returned.
func (p *Pipeline) Collaborate(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	collabID := uuid.New().String()

	score := ClassifyComplexity(req.Query, req.Context)
	useReviewer := score.IsComplex || req.ForceFullPipeline

	p.logger.Info("collaboration_started",
		"collaboration_id", collabID,
		"complexity_score", score.Score,
		"use_reviewer", useReviewer,
		"forced", req.ForceFullPipeline,
	)

	var steps []Step
	totalTokens := 0

	plan, plannerStep, err := p.runStage(ctx, collabID, req.UserID, RolePlanner, plannerPromptFor(req), plannerTemperature, plannerMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("planner stage: %w", err)
	}
	steps = append(steps, plannerStep)
	totalTokens += plannerStep.Tokens

	draft, writerStep, err := p.runStage(ctx, collabID, req.UserID, RoleWriter, writerPromptFor(req, plan), writerTemperature, writerMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("writer stage: %w", err)
	}
	steps = append(steps, writerStep)
	totalTokens += writerStep.Tokens

	finalResponse := draft
	if useReviewer {
		draftSummary := extractKeySections(draft, maxKeySectionChars)
		reviewed, reviewerStep, err := p.runStage(ctx, collabID, req.UserID, RoleReviewer, reviewerPromptFor(req, plan, draftSummary), reviewerTemperature, reviewerMaxTokens)
		if err != nil {
			return nil, fmt.Errorf("reviewer stage: %w", err)
		}
		steps = append(steps, reviewerStep)
		totalTokens += reviewerStep.Tokens
		finalResponse = reviewed
	} else {
		steps = append(steps, Step{
			Role:       RoleReviewer,
			Skipped:    true,
			SkipReason: fmt.Sprintf("complexity score %d below threshold %d", score.Score, complexityThreshold),
		})
	}

	stagesRun := make([]string, 0, len(steps))
	for _, s := range steps {
		if !s.Skipped {
			stagesRun = append(stagesRun, s.Role)
		}
	}

	result := &Result{
		FinalResponse: finalResponse,
		Metadata: Metadata{
			CollaborationID: collabID,
			Complexity:      score,
			StagesRun:       stagesRun,
			TotalTokens:     totalTokens,
			DurationMS:      time.Since(started).Milliseconds(),
		},
	}
	if req.IncludeProcess {
		result.Steps = steps
	}

	p.logger.Info("collaboration_finished",
		"collaboration_id", collabID,
		"stages", strings.Join(stagesRun, ","),
		"total_tokens", totalTokens,
		"duration_ms", result.Metadata.DurationMS,
	)
	return result, nil
}

// runStage issues one gateway call for a role and records its usage.
func (p *Pipeline) runStage(ctx context.Context, collabID, userID, role, userPrompt string, temperature float64, maxTokens int) (string, Step, error) {
	cfg, err := p.configs.GetConfig(role)
	if err != nil {
		return "", Step{}, err
	}

	started := time.Now()
	result, err := p.client.Complete(ctx, gateway.Request{
		Model: cfg.Model,
		Messages: []types.Entry{
			{Role: types.RoleSystem, Content: cfg.SystemPrompt},
			{Role: types.RoleUser, Content: userPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", Step{}, err
	}
	elapsed := time.Since(started)

	if p.tracker != nil {
		_ = p.tracker.Track(ctx, usage.Event{
			UserID:          userID,
			CollaborationID: collabID,
			Model:           cfg.Model,
			OperationType:   storage.OperationCollaboration,
			Usage:           result.Usage,
		})
	}

	step := Step{
		Role:       role,
		Model:      cfg.Model,
		Output:     result.Content,
		Tokens:     result.Usage.TotalTokens,
		DurationMS: elapsed.Milliseconds(),
	}
	return result.Content, step, nil
}

func plannerPromptFor(req Request) string {
	var b strings.Builder
	b.WriteString("Request: ")
	b.WriteString(req.Query)
	if req.Context != "" {
		b.WriteString("\n\nAdditional context: ")
		b.WriteString(req.Context)
	}
	b.WriteString("\n\nProduce a numbered outline of 3-5 points for answering this request.")
	return b.String()
}

func writerPromptFor(req Request, plan string) string {
	var b strings.Builder
	b.WriteString("Request: ")
	b.WriteString(req.Query)
	if req.Context != "" {
		b.WriteString("\n\nAdditional context: ")
		b.WriteString(req.Context)
	}
	b.WriteString("\n\nOutline:\n")
	b.WriteString(plan)
	b.WriteString("\n\nWrite the full response following the outline.")
	return b.String()
}

func reviewerPromptFor(req Request, plan, draftSummary string) string {
	var b strings.Builder
	b.WriteString("Request: ")
	b.WriteString(req.Query)
	b.WriteString("\n\nOutline:\n")
	b.WriteString(plan)
	b.WriteString("\n\nKey sections of the draft:\n")
	b.WriteString(draftSummary)
	b.WriteString("\n\nProduce the polished final answer.")
	return b.String()
}
