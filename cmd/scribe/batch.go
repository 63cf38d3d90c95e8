package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/scribe/internal/clarify"
	"github.com/MrWong99/scribe/internal/config"
	"github.com/MrWong99/scribe/internal/enhance"
	"github.com/MrWong99/scribe/internal/enhance/tools"
	"github.com/MrWong99/scribe/internal/entity"
	"github.com/MrWong99/scribe/internal/feedback"
	"github.com/MrWong99/scribe/internal/routing"
	"github.com/MrWong99/scribe/internal/transcript"
	"github.com/MrWong99/scribe/pkg/provider/llm"
)

// lowRetention is the share of kept tokens below which a result is flagged
// as a possible summary instead of a correction.
const lowRetention = 0.6

// batch enhances a set of transcript files.
type batch struct {
	cfg      *config.Config
	fs       afero.Fs
	provider llm.Provider
	store    entity.Store
	router   routing.Router
	handler  clarify.Handler
	writer   *transcript.Writer
	review   *feedback.Log
	dryRun   bool
	out      io.Writer
}

// summary is the per-file outcome printed after the batch.
type summary struct {
	RunID          string
	Source         string
	Output         string
	Project        string
	Confidence     float64
	Iterations     int
	ToolsUsed      []string
	Changes        int
	Unexplained    []transcript.Change
	ContextChanges int
	Retention      float64
	Err            error
}

// Run processes paths with bounded parallelism. A failing file does not
// stop the others; all failures are returned joined.
func (b *batch) Run(ctx context.Context, paths []string) error {
	limit := b.workers()
	resolved := tools.NewResolved()
	results := make([]summary, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = b.processFile(gctx, path, resolved)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, s := range results {
		b.print(s)
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Source, s.Err))
		}
		b.record(s)
	}
	if n := resolved.Len(); n > 0 {
		slog.Info("batch resolved names", "count", n)
	}
	return errors.Join(errs...)
}

// workers returns the number of files processed at once. Runs with a
// clarification handler are sequential: only one question is pending at a
// time, and wizard answers read, modify and commit store entities, which
// must not interleave across transcripts.
func (b *batch) workers() int {
	if b.handler != nil || b.cfg.Enhance.Interactive || b.cfg.Enhance.Concurrency < 1 {
		return 1
	}
	return b.cfg.Enhance.Concurrency
}

func (b *batch) processFile(ctx context.Context, path string, resolved *tools.Resolved) summary {
	s := summary{Source: path, RunID: uuid.NewString()}
	log := slog.With("source", path, "run_id", s.RunID)

	raw, err := afero.ReadFile(b.fs, path)
	if err != nil {
		s.Err = fmt.Errorf("read transcript: %w", err)
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		s.Err = errors.New("transcript is empty")
		return s
	}

	rc := routing.Context{
		TranscriptText: text,
		AudioDate:      b.audioDate(path),
		SourceFile:     path,
	}
	ex := enhance.New(b.provider, &tools.Context{
		AudioDate:   rc.AudioDate,
		SourceFile:  path,
		Store:       b.store,
		Router:      b.router,
		Interactive: b.cfg.Enhance.Interactive,
		Handler:     b.handler,
	},
		enhance.WithResolved(resolved),
		enhance.WithTemperature(b.cfg.LLM.Temperature),
	)

	start := time.Now()
	res := ex.Process(ctx, text)
	log.Info("transcript enhanced",
		"confidence", res.State.Confidence,
		"iterations", res.Iterations,
		"tools", res.ToolsUsed,
		"tokens", res.TotalTokens,
		"context_changes", len(res.ContextChanges),
		"elapsed", time.Since(start),
	)

	d := b.decide(ctx, res, rc)
	s.Confidence = res.State.Confidence
	s.Iterations = res.Iterations
	s.ToolsUsed = res.ToolsUsed
	s.ContextChanges = len(res.ContextChanges)
	s.Project = d.ProjectID

	diff := transcript.Compare(text, res.EnhancedText)
	s.Changes = len(diff.Changes)
	s.Retention = diff.Retention()
	s.Unexplained = diff.Unexplained(res.State.ResolvedEntities)
	for _, c := range s.Unexplained {
		log.Debug("unexplained change", "before", c.Before, "after", c.After)
	}
	if s.Retention < lowRetention {
		log.Warn("enhanced text differs heavily from the original", "retention", s.Retention)
	}

	rel := b.router.BuildOutputPath(d, rc)
	if b.dryRun {
		s.Output = rel
		return s
	}
	out, err := b.writer.Write(ctx, rel, transcript.NewNote(res, d, rc))
	if err != nil {
		s.Err = err
		return s
	}
	s.Output = out
	return s
}

// decide returns the route chosen during enhancement or, failing that,
// asks the router about the enhanced text.
func (b *batch) decide(ctx context.Context, res *enhance.Result, rc routing.Context) routing.Decision {
	if d := res.State.RouteDecision; d != nil {
		return *d
	}
	rc.TranscriptText = res.EnhancedText
	d, err := b.router.Route(ctx, rc)
	if err != nil {
		slog.Warn("routing failed, using default destination", "source", rc.SourceFile, "err", err)
		return routing.Decision{Destination: b.cfg.Routing.DefaultDestination, Reasoning: "routing failed"}
	}
	return d
}

// audioDate reads a leading YYYY-MM-DD from the file name, falling back to
// the modification time.
func (b *batch) audioDate(path string) time.Time {
	base := filepath.Base(path)
	if len(base) >= 10 {
		if t, err := time.Parse("2006-01-02", base[:10]); err == nil {
			return t
		}
	}
	if fi, err := b.fs.Stat(path); err == nil {
		return fi.ModTime()
	}
	return time.Time{}
}

// record appends s to the review log, if one is configured. Dry runs are
// not recorded.
func (b *batch) record(s summary) {
	if b.review == nil || b.dryRun {
		return
	}
	r := feedback.Record{
		RunID:          s.RunID,
		Source:         s.Source,
		Output:         s.Output,
		Project:        s.Project,
		Confidence:     s.Confidence,
		Retention:      s.Retention,
		ToolsUsed:      s.ToolsUsed,
		ContextChanges: s.ContextChanges,
		Unexplained:    s.Unexplained,
	}
	if s.Err != nil {
		r.Error = s.Err.Error()
	}
	if err := b.review.Append(r); err != nil {
		slog.Warn("failed to append review record", "source", s.Source, "err", err)
	}
}

func (b *batch) print(s summary) {
	if s.Err != nil {
		fmt.Fprintf(b.out, "FAIL %s: %v\n", s.Source, s.Err)
		return
	}
	verb := "wrote"
	if b.dryRun {
		verb = "would write"
	}
	fmt.Fprintf(b.out, "ok   %s: %s %s (confidence %.1f, %d changes, %.0f%% kept, %d tool turns, %d context changes)\n",
		s.Source, verb, s.Output, s.Confidence, s.Changes, s.Retention*100, s.Iterations, s.ContextChanges)
}
