package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobarin/factshorts/internal/models"
	"github.com/bobarin/factshorts/internal/scheduler"
	"github.com/bobarin/factshorts/internal/services"
)

// ---------------------------------------------------------------------------
// Pipeline orchestrator
//
// FetchFact → ParseFact → GenerateScript → Narration → Footage (≤N picks)
// → Music* → Captions* → Mix → Composite → Metadata → Publish*
//
// Stages marked * degrade: a failure is logged and the job continues without
// the artifact. Any other failure aborts the job and removes its directory.
// ---------------------------------------------------------------------------

// Kind classifies a stage failure.
type Kind int

const (
	KindRetryable Kind = iota
	KindDegradable
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindDegradable:
		return "degradable"
	case KindFatal:
		return "fatal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Stage names, as recorded on StageError and in job error messages.
const (
	StageFact      = "fetch_fact"
	StageScript    = "generate_script"
	StageNarration = "narration"
	StageFootage   = "footage"
	StageMusic     = "music"
	StageCaptions  = "captions"
	StageMix       = "mix_audio"
	StageComposite = "composite"
	StageMetadata  = "metadata"
	StagePublish   = "publish"
)

type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func fatal(stage string, err error) *StageError {
	return &StageError{Stage: stage, Kind: KindFatal, Err: err}
}

func degraded(stage string, err error) *StageError {
	return &StageError{Stage: stage, Kind: KindDegradable, Err: err}
}

// classify tells the footage loop whether another candidate is worth trying.
func classify(err error) Kind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindFatal
	}
	return KindRetryable
}

// Collaborators. The services package provides the production versions.

type FactFetcher interface {
	Name() string
	FetchFact(ctx context.Context) (*models.Fact, error)
}

type Narrator interface {
	Synthesize(ctx context.Context, text, outputPath, voiceID string) (*models.NarrationResult, error)
}

type FootageFinder interface {
	FindBestClip(ctx context.Context, keywords []string, minDuration float64, exclude ...string) (*models.AssetCandidate, error)
	ResolveURL(candidate models.AssetCandidate) (string, error)
	Download(ctx context.Context, url, destPath string) error
}

type CaptionWriter interface {
	WriteFile(words []models.WordTiming, outputPath string) error
}

type MediaRenderer interface {
	MixAudio(ctx context.Context, voicePath, musicPath, outputPath string) (string, error)
	Composite(ctx context.Context, req services.CompositeRequest) error
}

type PublishQueue interface {
	Enqueue(item scheduler.Item, scheduledTime time.Time) (int64, error)
}

// Dependencies wires the orchestrator. Script, Captions and Queue may be nil.
type Dependencies struct {
	Facts    FactFetcher
	Script   services.ScriptWriter
	Speech   Narrator
	Footage  FootageFinder
	Captions CaptionWriter
	Media    MediaRenderer
	Queue    PublishQueue
}

type Settings struct {
	OutputDir         string
	MusicDir          string
	MinClipDuration   float64
	SelectionAttempts int
	KeywordLimit      int
	DefaultVoice      string
}

// RunOptions are per-job choices.
type RunOptions struct {
	Fact       string // skips the fact source when set
	Voice      string
	Publish    bool
	ScheduleIn time.Duration
}

// Result describes a finished video.
type Result struct {
	Job          *models.VideoJob
	Metadata     *models.VideoMetadata
	MetadataPath string
	QueueEntryID int64
	Degraded     []*StageError
}

type Orchestrator struct {
	deps     Dependencies
	settings Settings
	now      func() time.Time
}

func NewOrchestrator(deps Dependencies, settings Settings) *Orchestrator {
	if settings.SelectionAttempts <= 0 {
		settings.SelectionAttempts = 3
	}
	if settings.KeywordLimit <= 0 {
		settings.KeywordLimit = 3
	}
	if settings.DefaultVoice == "" {
		settings.DefaultVoice = services.DefaultVoice
	}
	return &Orchestrator{deps: deps, settings: settings, now: time.Now}
}

// Run executes one generation job. On error no result is returned and the
// job directory is gone; the error is a *StageError.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (result *Result, err error) {
	started := o.now()

	fact, serr := o.fetchFact(ctx, opts.Fact)
	if serr != nil {
		return nil, serr
	}
	log.Printf("[Pipeline] Fact (%d chars): %s", fact.Length, truncateLog(fact.Text, 80))

	res := &Result{}
	script := o.generateScript(ctx, fact.Text, res)
	log.Printf("[Pipeline] Script %q (%d words)", script.Title, len(strings.Fields(script.Script)))

	job, err := o.newJob(started)
	if err != nil {
		return nil, fatal(StageMetadata, err)
	}
	res.Job = job
	defer func() {
		if err != nil {
			log.Printf("[Pipeline] Job %s aborted, removing %s", job.VideoID, job.VideoDir)
			os.RemoveAll(job.VideoDir)
		}
	}()

	voice := opts.Voice
	if voice == "" {
		voice = o.settings.DefaultVoice
	}
	narration, nerr := o.deps.Speech.Synthesize(ctx, script.Script, filepath.Join(job.VideoDir, "narration.wav"), voice)
	if nerr != nil {
		return nil, fatal(StageNarration, nerr)
	}
	job.Narration = narration
	job.TargetDuration = narration.Duration

	keywords := script.Keywords
	if len(keywords) == 0 {
		keywords = services.ExtractKeywords(fact.Text, o.settings.KeywordLimit)
	}
	clipSource, ferr := o.acquireFootage(ctx, job, keywords)
	if ferr != nil {
		return nil, ferr
	}

	o.pickMusic(job, res)
	o.renderCaptions(job, res)

	mixed, merr := o.deps.Media.MixAudio(ctx, narration.AudioPath, job.MusicPath, filepath.Join(job.VideoDir, "mixed_audio.m4a"))
	if merr != nil {
		return nil, fatal(StageMix, merr)
	}
	job.MixedAudioPath = mixed

	final := filepath.Join(job.VideoDir, "final.mp4")
	if cerr := o.deps.Media.Composite(ctx, services.CompositeRequest{
		ClipPath:     job.BackgroundClipPath,
		AudioPath:    job.MixedAudioPath,
		SubtitlePath: job.SubtitlePath,
		Duration:     job.TargetDuration,
		OutputPath:   final,
	}); cerr != nil {
		return nil, fatal(StageComposite, cerr)
	}
	job.FinalOutputPath = final

	meta := &models.VideoMetadata{
		VideoID:           job.VideoID,
		VideoPath:         final,
		Title:             script.Title,
		Description:       script.Description,
		Hashtags:          script.Hashtags,
		Fact:              fact.Text,
		Script:            script.Script,
		Keywords:          keywords,
		Duration:          job.TargetDuration,
		ClipSource:        clipSource,
		UsedFallbackVoice: narration.UsedFallback,
		HasCaptions:       job.SubtitlePath != "",
		HasMusic:          job.MusicPath != "",
		CreatedAt:         o.now().UTC(),
	}
	metaPath := filepath.Join(job.VideoDir, "metadata.json")
	if werr := writeJSONAtomic(metaPath, meta); werr != nil {
		return nil, fatal(StageMetadata, werr)
	}
	res.Metadata = meta
	res.MetadataPath = metaPath

	if opts.Publish {
		o.enqueuePublish(meta, opts.ScheduleIn, res)
	}

	log.Printf("[Pipeline] Video %s ready in %s (%.2fs, %d degraded stages)",
		job.VideoID, o.now().Sub(started).Round(time.Millisecond), job.TargetDuration, len(res.Degraded))
	return res, nil
}

func (o *Orchestrator) fetchFact(ctx context.Context, provided string) (*models.Fact, *StageError) {
	if provided != "" {
		fact, err := services.ParseFact(services.CleanFactText(provided))
		if err != nil {
			return nil, fatal(StageFact, err)
		}
		return fact, nil
	}
	if o.deps.Facts == nil {
		return nil, fatal(StageFact, fmt.Errorf("no fact source configured"))
	}
	fact, err := o.deps.Facts.FetchFact(ctx)
	if err != nil {
		return nil, fatal(StageFact, fmt.Errorf("%s: %w", o.deps.Facts.Name(), err))
	}
	// sources return parsed facts; normalise punctuation for narration
	fact, err = services.ParseFact(services.CleanFactText(fact.Text))
	if err != nil {
		return nil, fatal(StageFact, err)
	}
	return fact, nil
}

// generateScript never fails: a backend error falls back to a script built
// from the fact itself.
func (o *Orchestrator) generateScript(ctx context.Context, fact string, res *Result) *models.Script {
	if o.deps.Script == nil {
		return services.FallbackScript(fact)
	}
	script, err := o.deps.Script.GenerateScript(ctx, fact)
	if err == nil && script == nil {
		err = fmt.Errorf("empty response")
	}
	if err != nil {
		o.degrade(res, degraded(StageScript, fmt.Errorf("%s: %w", o.deps.Script.Name(), err)))
		return services.FallbackScript(fact)
	}
	return script
}

// newJob creates the video directory. Ids are second-resolution timestamps;
// a clash within the same second gets a numeric suffix.
func (o *Orchestrator) newJob(now time.Time) (*models.VideoJob, error) {
	if err := os.MkdirAll(o.settings.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	base := now.Format("20060102_150405")
	id := base
	for i := 2; ; i++ {
		dir := filepath.Join(o.settings.OutputDir, id)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return &models.VideoJob{VideoID: id, VideoDir: dir}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create video dir: %w", err)
		}
		id = fmt.Sprintf("%s_%d", base, i)
	}
}

// acquireFootage picks and downloads a background clip, moving on to a
// different candidate when resolving or downloading one fails.
func (o *Orchestrator) acquireFootage(ctx context.Context, job *models.VideoJob, keywords []string) (string, *StageError) {
	dest := filepath.Join(job.VideoDir, "background.mp4")
	var tried []string
	var lastErr error

	for attempt := 1; attempt <= o.settings.SelectionAttempts; attempt++ {
		candidate, err := o.deps.Footage.FindBestClip(ctx, keywords, o.settings.MinClipDuration, tried...)
		if err != nil {
			if errors.Is(err, services.ErrNoCandidateFound) && len(tried) > 0 {
				break
			}
			return "", fatal(StageFootage, err)
		}
		tried = append(tried, services.CandidateKey(*candidate))
		log.Printf("[Pipeline] Footage pick %d/%d: %s %s (%.1fs, keyword %q)",
			attempt, o.settings.SelectionAttempts, candidate.Source, candidate.ID, candidate.Duration, candidate.Keyword)

		url, err := o.deps.Footage.ResolveURL(*candidate)
		if err == nil {
			err = o.deps.Footage.Download(ctx, url, dest)
		}
		if err == nil {
			job.BackgroundClipPath = dest
			return string(candidate.Source), nil
		}

		lastErr = err
		se := &StageError{Stage: StageFootage, Kind: classify(err), Err: err}
		if se.Kind != KindRetryable {
			se.Kind = KindFatal
			return "", se
		}
		log.Printf("[Pipeline] Warning: %v", se)
	}

	return "", fatal(StageFootage, fmt.Errorf("%w after %d candidates: %v", services.ErrDownloadExhausted, len(tried), lastErr))
}

func (o *Orchestrator) pickMusic(job *models.VideoJob, res *Result) {
	if o.settings.MusicDir == "" {
		return
	}
	music := services.PickMusic(o.settings.MusicDir)
	if music == "" {
		o.degrade(res, degraded(StageMusic, fmt.Errorf("no music in %s", o.settings.MusicDir)))
		return
	}
	job.MusicPath = music
}

func (o *Orchestrator) renderCaptions(job *models.VideoJob, res *Result) {
	if o.deps.Captions == nil {
		return
	}
	path := filepath.Join(job.VideoDir, "captions.ass")
	if err := o.deps.Captions.WriteFile(job.Narration.WordTimings, path); err != nil {
		os.Remove(path)
		o.degrade(res, degraded(StageCaptions, err))
		return
	}
	job.SubtitlePath = path
}

// enqueuePublish hands the finished video to the upload scheduler. The
// video already exists, so a failure here only degrades the job.
func (o *Orchestrator) enqueuePublish(meta *models.VideoMetadata, delay time.Duration, res *Result) {
	if o.deps.Queue == nil {
		o.degrade(res, degraded(StagePublish, fmt.Errorf("no upload queue configured")))
		return
	}
	var when time.Time
	if delay > 0 {
		when = o.now().Add(delay)
	}
	id, err := o.deps.Queue.Enqueue(scheduler.Item{
		VideoPath:   meta.VideoPath,
		Title:       meta.Title,
		Description: meta.Description,
		Tags:        meta.Hashtags,
	}, when)
	if err != nil {
		o.degrade(res, degraded(StagePublish, err))
		return
	}
	res.QueueEntryID = id
}

func (o *Orchestrator) degrade(res *Result, se *StageError) {
	log.Printf("[Pipeline] Warning: continuing without %s: %v", se.Stage, se.Err)
	res.Degraded = append(res.Degraded, se)
}

// writeJSONAtomic writes v to path through a temp file in the same directory.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}
	return nil
}

func truncateLog(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
