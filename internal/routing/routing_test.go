package routing_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/scribe/internal/entity"
	"github.com/MrWong99/scribe/internal/routing"
)

type staticProjects []entity.Entity

func (s staticProjects) AllProjects() []entity.Entity { return s }

func projects() staticProjects {
	off := false
	return staticProjects{
		{
			ID: "atlas", Name: "Atlas", Type: entity.TypeProject,
			Classification: &entity.Classification{ExplicitPhrases: []string{"data platform"}},
		},
		{
			ID: "phoenix", Name: "Phoenix", Type: entity.TypeProject,
			Classification: &entity.Classification{ExplicitPhrases: []string{"rewrite", "fenix"}},
			Routing:        &entity.Routing{Destination: "Projects/Phoenix"},
		},
		{
			ID: "legacy", Name: "Legacy", Type: entity.TypeProject, Active: &off,
			Routing: &entity.Routing{Destination: "Archive"},
		},
	}
}

func TestPhraseRouter_Route(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		rc          routing.Context
		wantProject string
		wantDest    string
		wantConf    float64
	}{
		{
			name:        "phrase hits pick project",
			rc:          routing.Context{TranscriptText: "Met with Jon about Phoenix. The rewrite is late."},
			wantProject: "phoenix",
			wantDest:    "Projects/Phoenix",
			wantConf:    0.7,
		},
		{
			name:     "no hits falls back",
			rc:       routing.Context{TranscriptText: "Groceries: milk, eggs."},
			wantDest: "Inbox",
			wantConf: 0,
		},
		{
			name:        "hint wins",
			rc:          routing.Context{TranscriptText: "phoenix phoenix phoenix", ProjectHint: "data platform"},
			wantProject: "atlas",
			wantDest:    "Inbox",
			wantConf:    0.95,
		},
		{
			name:     "inactive projects ignored",
			rc:       routing.Context{TranscriptText: "The legacy system is down.", ProjectHint: "legacy"},
			wantDest: "Inbox",
			wantConf: 0,
		},
		{
			name:        "confidence capped",
			rc:          routing.Context{TranscriptText: strings.Repeat("phoenix ", 20)},
			wantProject: "phoenix",
			wantDest:    "Projects/Phoenix",
			wantConf:    0.9,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := routing.NewPhraseRouter(projects(), "Inbox")
			d, err := r.Route(context.Background(), tc.rc)
			if err != nil {
				t.Fatalf("Route: %v", err)
			}
			if d.ProjectID != tc.wantProject {
				t.Errorf("ProjectID = %q, want %q", d.ProjectID, tc.wantProject)
			}
			if d.Destination != tc.wantDest {
				t.Errorf("Destination = %q, want %q", d.Destination, tc.wantDest)
			}
			if diff := d.Confidence - tc.wantConf; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Confidence = %v, want %v", d.Confidence, tc.wantConf)
			}
			if d.Reasoning == "" {
				t.Error("Reasoning must not be empty")
			}
		})
	}
}

func TestPhraseRouter_MinConfidence(t *testing.T) {
	t.Parallel()

	r := routing.NewPhraseRouter(projects(), "Inbox", routing.WithMinConfidence(0.8))
	d, err := r.Route(context.Background(), routing.Context{TranscriptText: "phoenix"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if d.ProjectID != "" || d.Destination != "Inbox" {
		t.Errorf("expected fallback below threshold, got %+v", d)
	}
}

func TestPhraseRouter_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := routing.NewPhraseRouter(projects(), "Inbox").Route(ctx, routing.Context{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestBuildOutputPath(t *testing.T) {
	t.Parallel()

	date := time.Date(2026, time.March, 7, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		d    routing.Decision
		rc   routing.Context
		want string
	}{
		{
			name: "monthly default",
			d:    routing.Decision{Destination: "Projects/Phoenix"},
			rc:   routing.Context{AudioDate: date, SourceFile: "/rec/Standup Notes.m4a"},
			want: filepath.Join("Projects/Phoenix", "2026", "03", "2026-03-07-standup-notes.md"),
		},
		{
			name: "flat",
			d:    routing.Decision{Destination: "Inbox", Structure: routing.StructureFlat},
			rc:   routing.Context{AudioDate: date, SourceFile: "memo.txt"},
			want: filepath.Join("Inbox", "2026-03-07-memo.md"),
		},
		{
			name: "stem already dated",
			d:    routing.Decision{Destination: "Inbox"},
			rc:   routing.Context{AudioDate: date, SourceFile: "2026-03-07-standup.txt"},
			want: filepath.Join("Inbox", "2026", "03", "2026-03-07-standup.md"),
		},
		{
			name: "undated and unnamed",
			d:    routing.Decision{},
			rc:   routing.Context{},
			want: "transcript.md",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := routing.BuildOutputPath(tc.d, tc.rc); got != tc.want {
				t.Errorf("BuildOutputPath = %q, want %q", got, tc.want)
			}
		})
	}
}
