package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"strand/internal/config"
	"strand/internal/layout"
	"strand/internal/logging"
	"strand/internal/reports"
	"strand/internal/runstore"
	"strand/internal/services"
	"strand/internal/tools"
)

// stderrTailBytes bounds the error detail stored in stage metrics.
const stderrTailBytes = 4096

// Sequencer drives one run through the fixed stage sequence. A sequencer
// instance is bound to a single run and is the only writer for that run's
// stage and artifact rows.
type Sequencer struct {
	cfg    *config.Config
	store  *runstore.Store
	runner tools.Runner
	logger *slog.Logger
}

// NewSequencer builds a sequencer. Tool execution can be overridden through
// tools.WithRunner for tests.
func NewSequencer(cfg *config.Config, store *runstore.Store, logger *slog.Logger, opts ...tools.Option) *Sequencer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sequencer{
		cfg:    cfg,
		store:  store,
		runner: tools.NewRunner(opts...),
		logger: logger.With(logging.String(logging.FieldComponent, "pipeline")),
	}
}

type runState struct {
	ws        layout.Workspace
	stem      string
	r1        string
	r2        string
	trimmedR1 string
	trimmedR2 string
	bam       string
}

type stageOutcome struct {
	failed    bool
	metrics   map[string]string
	artifact  string
	artifacts []runstore.Artifact
}

type stageStep struct {
	name       string
	checkpoint float64
	terminal   bool
	run        func(ctx context.Context, st *runState) (stageOutcome, error)
}

func (s *Sequencer) steps() []stageStep {
	return []stageStep{
		{name: "pre_fastqc", checkpoint: 15, run: s.runPreFastQC},
		{name: "trim_fastp", checkpoint: 45, run: s.runTrimFastp},
		{name: "post_fastqc", checkpoint: 65, run: s.runPostFastQC},
		{name: "align_star", checkpoint: 85, run: s.runAlignStar},
		{name: "featurecounts", checkpoint: 95, run: s.runFeatureCounts},
		{name: "summary", checkpoint: 100, terminal: true, run: s.runSummary},
	}
}

// Run executes the full pipeline for the given run. Stage rows are committed
// strictly in pipeline order; a tool failure commits a failed stage at that
// stage's checkpoint and stops. Cancellation between stages returns without
// committing a partial stage.
func (s *Sequencer) Run(ctx context.Context, runID string) error {
	ctx = services.WithRunID(ctx, runID)
	log := logging.WithContext(ctx, s.logger)

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}

	st, guardErr := s.prepare(run)
	if guardErr != "" {
		log.Warn("run rejected before first stage", logging.String("reason", guardErr))
		if commitErr := s.store.AppendStage(ctx, runID, runstore.StageInput{
			Name:     "error",
			Status:   runstore.StageFailed,
			Progress: 100,
			Metrics:  map[string]string{"error": guardErr},
		}); commitErr != nil {
			return fmt.Errorf("commit guard stage: %w", commitErr)
		}
		return services.Wrap(services.ErrMissingInput, "error", "prepare", guardErr, nil)
	}

	for _, step := range s.steps() {
		if err := ctx.Err(); err != nil {
			return err
		}
		stageCtx := services.WithStage(ctx, step.name)
		stageLog := logging.WithContext(stageCtx, s.logger)
		stageLog.Info("stage started", logging.Float64("checkpoint", step.checkpoint))

		outcome, err := step.run(stageCtx, st)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			outcome = stageOutcome{failed: true, metrics: map[string]string{"error": err.Error()}}
		}

		for _, artifact := range outcome.artifacts {
			if addErr := s.store.AddArtifact(stageCtx, runID, artifact.Kind, artifact.Path); addErr != nil {
				return fmt.Errorf("register artifact %s: %w", artifact.Kind, addErr)
			}
		}

		status := runstore.StageRunning
		switch {
		case outcome.failed:
			status = runstore.StageFailed
		case step.terminal:
			status = runstore.StageFinished
		}
		if commitErr := s.store.AppendStage(stageCtx, runID, runstore.StageInput{
			Name:         step.name,
			Status:       status,
			Progress:     step.checkpoint,
			Metrics:      outcome.metrics,
			ArtifactPath: outcome.artifact,
		}); commitErr != nil {
			return fmt.Errorf("commit stage %s: %w", step.name, commitErr)
		}

		if outcome.failed {
			stageLog.Error("stage failed", logging.String(logging.FieldErrorHint, outcome.metrics["error"]))
			return services.Wrap(services.ErrExternalTool, step.name, "run", "stage failed", nil)
		}
		stageLog.Info("stage committed", logging.Float64("progress", step.checkpoint))
	}

	log.Info("run finished")
	return nil
}

// prepare resolves the run's inputs and creates the working directory tree.
// A non-empty guard message means the run must fail before any tool runs.
func (s *Sequencer) prepare(run *runstore.Run) (*runState, string) {
	if len(run.SampleFiles) == 0 {
		return nil, "no FASTQ files"
	}

	resolved := make([]string, 0, len(run.SampleFiles))
	for _, file := range run.SampleFiles {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Sprintf("unresolvable input %s", file)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Sprintf("input file not found: %s", abs)
		}
		resolved = append(resolved, abs)
	}

	st := &runState{
		ws:   layout.Workspace{Root: s.cfg.RunWorkDir(run.ID)},
		stem: layout.Stem(resolved[0]),
		r1:   resolved[0],
	}
	if len(resolved) > 1 {
		st.r2 = resolved[1]
	}

	for _, dir := range st.ws.Directories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Sprintf("create work dir %s: %v", dir, err)
		}
	}
	return st, ""
}

// fastqcScan runs FastQC over each input into outDir, concurrently in paired
// mode. Both scans must succeed.
func (s *Sequencer) fastqcScan(ctx context.Context, outDir string, inputs ...string) (tools.Result, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	results := make([]tools.Result, len(inputs))
	for i, input := range inputs {
		group.Go(func() error {
			result, err := s.runner.Run(groupCtx, tools.Invocation{
				Binary: s.cfg.Tools.FastQC,
				Args:   []string{input, "-o", outDir, "--extract", "--quiet"},
			})
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return tools.Result{}, err
	}
	for _, result := range results {
		if result.Failed() {
			return result, nil
		}
	}
	return tools.Result{}, nil
}

func (s *Sequencer) runPreFastQC(ctx context.Context, st *runState) (stageOutcome, error) {
	inputs := []string{st.r1}
	if st.r2 != "" {
		inputs = append(inputs, st.r2)
	}
	failed, err := s.fastqcScan(ctx, st.ws.RawFastQCDir(), inputs...)
	if err != nil {
		return stageOutcome{}, err
	}
	if failed.Failed() {
		return toolFailure(failed), nil
	}

	extract := layout.FastQCExtractDir(st.ws.RawFastQCDir(), st.stem)
	return stageOutcome{
		metrics:   reports.ParseFastQCSummary(extract),
		artifact:  layout.FastQCReportHTML(st.ws.RawFastQCDir(), st.stem),
		artifacts: collectPlots(layout.FastQCImagesDir(st.ws.RawFastQCDir(), st.stem), "raw"),
	}, nil
}

func (s *Sequencer) runTrimFastp(ctx context.Context, st *runState) (stageOutcome, error) {
	st.trimmedR1 = st.ws.TrimmedR1(st.stem)
	html := st.ws.FastpHTML(st.stem)
	jsonPath := st.ws.FastpJSON(st.stem)
	threads := strconv.Itoa(s.cfg.Tools.Threads)

	var args []string
	if st.r2 != "" {
		st.trimmedR2 = st.ws.TrimmedR2(st.stem)
		args = []string{
			"-i", st.r1, "-I", st.r2,
			"-o", st.trimmedR1, "-O", st.trimmedR2,
			"-h", html, "-j", jsonPath, "-w", threads,
		}
	} else {
		args = []string{
			"-i", st.r1,
			"-o", st.trimmedR1,
			"-h", html, "-j", jsonPath, "-w", threads,
		}
	}

	result, err := s.runner.Run(ctx, tools.Invocation{Binary: s.cfg.Tools.Fastp, Args: args})
	if err != nil {
		return stageOutcome{}, err
	}
	if result.Failed() {
		return toolFailure(result), nil
	}

	return stageOutcome{
		metrics:  reports.ParseFastpSummary(jsonPath),
		artifact: html,
	}, nil
}

func (s *Sequencer) runPostFastQC(ctx context.Context, st *runState) (stageOutcome, error) {
	inputs := []string{st.trimmedR1}
	if st.trimmedR2 != "" {
		inputs = append(inputs, st.trimmedR2)
	}
	failed, err := s.fastqcScan(ctx, st.ws.PostFastQCDir(), inputs...)
	if err != nil {
		return stageOutcome{}, err
	}
	if failed.Failed() {
		return toolFailure(failed), nil
	}

	postStem := layout.Stem(st.trimmedR1)
	extract := layout.FastQCExtractDir(st.ws.PostFastQCDir(), postStem)
	return stageOutcome{
		metrics:   reports.ParseFastQCSummary(extract),
		artifact:  layout.FastQCReportHTML(st.ws.PostFastQCDir(), postStem),
		artifacts: collectPlots(layout.FastQCImagesDir(st.ws.PostFastQCDir(), postStem), "post"),
	}, nil
}

func (s *Sequencer) runAlignStar(ctx context.Context, st *runState) (stageOutcome, error) {
	reads := []string{st.trimmedR1}
	if st.trimmedR2 != "" {
		reads = append(reads, st.trimmedR2)
	}
	args := []string{
		"--runThreadN", strconv.Itoa(s.cfg.Tools.Threads),
		"--genomeDir", s.cfg.References.StarIndexDir,
		"--readFilesIn",
	}
	args = append(args, reads...)
	args = append(args,
		"--readFilesCommand", "gunzip", "-c",
		"--outSAMtype", "BAM", "SortedByCoordinate",
		"--outFileNamePrefix", st.ws.StarOutputPrefix(st.stem),
	)

	result, err := s.runner.Run(ctx, tools.Invocation{
		Binary: s.cfg.Tools.Star,
		Args:   args,
		Dir:    st.ws.StarDir(),
	})
	if err != nil {
		return stageOutcome{}, err
	}
	if result.Failed() {
		return toolFailure(result), nil
	}

	st.bam = st.ws.StarBAM(st.stem)
	metrics := reports.ParseStarLog(st.ws.StarFinalLog(st.stem))

	report := st.ws.StarReportHTML()
	if err := writeStarReport(report, filepath.Base(st.bam), metrics); err != nil {
		return stageOutcome{}, fmt.Errorf("write alignment report: %w", err)
	}

	return stageOutcome{
		metrics:  metrics,
		artifact: report,
		artifacts: []runstore.Artifact{
			{Kind: "star_bam", Path: st.bam},
			{Kind: "star_report", Path: report},
		},
	}, nil
}

func (s *Sequencer) runFeatureCounts(ctx context.Context, st *runState) (stageOutcome, error) {
	countsOut := st.ws.CountsTable(st.stem)
	result, err := s.runner.Run(ctx, tools.Invocation{
		Binary: s.cfg.Tools.FeatureCounts,
		Args: []string{
			"-T", strconv.Itoa(s.cfg.Tools.Threads),
			"-a", s.cfg.References.AnnotationGTF,
			"-o", countsOut,
			st.bam,
		},
		Dir: st.ws.CountsDir(),
	})
	if err != nil {
		return stageOutcome{}, err
	}
	if result.Failed() {
		return toolFailure(result), nil
	}

	return stageOutcome{
		metrics:   map[string]string{"note": "featureCounts complete"},
		artifact:  countsOut,
		artifacts: []runstore.Artifact{{Kind: "counts_table", Path: countsOut}},
	}, nil
}

func (s *Sequencer) runSummary(_ context.Context, st *runState) (stageOutcome, error) {
	return stageOutcome{
		metrics:  map[string]string{"status": "complete"},
		artifact: st.ws.Root,
	}, nil
}

func toolFailure(result tools.Result) stageOutcome {
	detail := result.Tail(stderrTailBytes)
	if detail == "" {
		detail = fmt.Sprintf("tool exited with status %d", result.ExitCode)
	}
	return stageOutcome{failed: true, metrics: map[string]string{"error": detail}}
}

// collectPlots registers every plot image FastQC extracted, tagged by scan
// phase and plot name.
func collectPlots(imagesDir, tag string) []runstore.Artifact {
	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		return nil
	}
	var artifacts []runstore.Artifact
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".png" {
			continue
		}
		name := layout.Stem(entry.Name())
		artifacts = append(artifacts, runstore.Artifact{
			Kind: fmt.Sprintf("fastqc_plot_%s:%s", tag, name),
			Path: filepath.Join(imagesDir, entry.Name()),
		})
	}
	return artifacts
}
