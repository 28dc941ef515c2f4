package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"chronoreel-pipeline/archivist"
	"chronoreel-pipeline/artdept"
	"chronoreel-pipeline/cinematographer"
	"chronoreel-pipeline/config"
	"chronoreel-pipeline/costs"
	"chronoreel-pipeline/distributor"
	"chronoreel-pipeline/editor"
	"chronoreel-pipeline/falclient"
	"chronoreel-pipeline/improver"
	"chronoreel-pipeline/kieclient"
	"chronoreel-pipeline/publishers"
	"chronoreel-pipeline/screenwriter"
	"chronoreel-pipeline/socialmeta"
	"chronoreel-pipeline/soundengineer"
	"chronoreel-pipeline/types"
)

const duplicateRetries = 5

func main() {
	// .env is local-dev convenience; CI injects real env vars
	_ = godotenv.Load()

	var (
		style      string
		configPath string
		dryRun     bool
		phase      int
		resumeID   string
		verbose    bool
	)
	flag.StringVar(&style, "style", "default", "style name, selects configs/<style>.yaml")
	flag.StringVar(&style, "s", "default", "shorthand for -style")
	flag.StringVar(&configPath, "config", "", "explicit config file path (overrides -style)")
	flag.StringVar(&configPath, "c", "", "shorthand for -config")
	flag.BoolVar(&dryRun, "dry-run", false, "verify config and report the plan without calling any API")
	flag.IntVar(&phase, "phase", 4, "run phases 1..N")
	flag.StringVar(&resumeID, "resume", "", "skip generation and assemble an ANIMATION_DONE scenario (id, or 'latest')")
	flag.BoolVar(&verbose, "verbose", false, "log request/response detail")
	flag.BoolVar(&verbose, "v", false, "shorthand for -verbose")
	flag.Parse()

	if verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	settings, err := config.Load(config.ResolvePath(style, configPath))
	if err != nil {
		log.Fatalf("❌ config: %v", err)
	}
	modelCfg, err := config.LoadModelConfig(filepath.Dir(settings.ConfigPath))
	if err != nil {
		log.Fatalf("❌ model config: %v", err)
	}

	runID := uuid.NewString()[:8]
	printBanner(settings, modelCfg, runID, phase)

	if phase < 1 || phase > 4 {
		log.Fatalf("❌ -phase must be 1..4, got %d", phase)
	}
	if dryRun {
		log.Println("[main] dry run: config OK, no API calls made")
		return
	}
	if phase == 1 {
		log.Println("[main] ✅ phase 1 complete (config verified)")
		return
	}

	ctx := context.Background()
	tracker := costs.NewTracker()
	started := time.Now()

	state := &types.RunState{RunID: runID, StartedAt: started.UTC().Format(time.RFC3339)}
	defer func() {
		state.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		if state.Scenario != nil {
			saveJSON(filepath.Join(scenarioDir(settings, state.Scenario.ID), "run_state.json"), state)
		}
		tracker.PrintSummary()
		if _, err := tracker.SaveToFile(settings.OutputDir); err != nil {
			log.Printf("⚠️  could not save cost log: %v", err)
		}
		log.Printf("[main] elapsed: %s", time.Since(started).Round(time.Second))
		if state.Error != "" {
			log.Printf("❌ run failed: %s", state.Error)
			os.Exit(1)
		}
	}()

	run, err := newRun(ctx, settings, modelCfg, tracker)
	if err != nil {
		state.Error = err.Error()
		return
	}

	if resumeID != "" {
		if err := run.resume(ctx, state, resumeID); err != nil {
			state.Error = fmt.Sprintf("resume: %v", err)
		}
		return
	}

	// ━━━ Phase 2: scenario + keyframes ━━━
	log.Println("\n━━━ PHASE 2: Scenario & Keyframes ━━━")
	if err := run.phase2(ctx, state); err != nil {
		state.Error = fmt.Sprintf("phase 2: %v", err)
		run.markFailed(ctx, state)
		return
	}
	if phase < 3 {
		return
	}

	// ━━━ Phase 3: animation + audio ━━━
	log.Println("\n━━━ PHASE 3: Animation & Audio ━━━")
	if err := run.phase3(ctx, state); err != nil {
		state.Error = fmt.Sprintf("phase 3: %v", err)
		run.markFailed(ctx, state)
		return
	}
	if phase < 4 {
		return
	}

	// ━━━ Phase 4: assembly + distribution ━━━
	log.Println("\n━━━ PHASE 4: Assembly & Distribution ━━━")
	if err := run.phase4(ctx, state); err != nil {
		state.Error = fmt.Sprintf("phase 4: %v", err)
		run.markFailed(ctx, state)
		return
	}

	log.Printf("✅ run complete! video: %s", state.VideoURL)
}

// pipelineRun bundles the stage workers for one invocation.
type pipelineRun struct {
	settings *config.Settings
	modelCfg *config.ModelConfig
	tracker  *costs.Tracker

	arch   *archivist.Archivist
	writer *screenwriter.Writer
	imp    *improver.Improver
	art    *artdept.Department
	cine   *cinematographer.Cinematographer
	sound  *soundengineer.Engineer
}

func newRun(ctx context.Context, settings *config.Settings, modelCfg *config.ModelConfig, tracker *costs.Tracker) (*pipelineRun, error) {
	arch, err := archivist.New(ctx, settings.GoogleSheetID)
	if err != nil {
		return nil, err
	}

	fal, err := falclient.New()
	if err != nil && !modelCfg.Kie.Enabled {
		return nil, err
	}
	var kie *kieclient.Client
	if modelCfg.Kie.Enabled {
		if kie, err = kieclient.New(); err != nil {
			return nil, err
		}
	}

	model := settings.Gemini.Model
	writer, err := screenwriter.New(ctx, model, tracker)
	if err != nil {
		return nil, err
	}
	imp, err := improver.New(ctx, model, settings.Style, tracker)
	if err != nil {
		return nil, err
	}
	art, err := artdept.New(ctx, fal, kie, modelCfg, settings.ImageRetries, tracker)
	if err != nil {
		return nil, err
	}

	return &pipelineRun{
		settings: settings,
		modelCfg: modelCfg,
		tracker:  tracker,
		arch:     arch,
		writer:   writer,
		imp:      imp,
		art:      art,
		cine:     cinematographer.New(fal, kie, modelCfg, settings.Style, tracker),
		sound:    soundengineer.New(fal, modelCfg, settings.AudioMood, tracker),
	}, nil
}

func (r *pipelineRun) phase2(ctx context.Context, state *types.RunState) error {
	premises, err := r.arch.AllPremises(ctx)
	if err != nil {
		return err
	}

	var scenario *types.Scenario
	for attempt := 1; attempt <= duplicateRetries; attempt++ {
		scenario, err = r.writer.Generate(ctx, premises)
		if err != nil {
			return err
		}
		err = r.arch.StoreScenario(ctx, scenario)
		if err == nil {
			break
		}
		if err != archivist.ErrDuplicate {
			return err
		}
		log.Printf("[main] ⚠️  duplicate premise, regenerating (%d/%d)", attempt, duplicateRetries)
		premises = append(premises, scenario.Premise)
		scenario = nil
	}
	if scenario == nil {
		return fmt.Errorf("could not find a fresh premise in %d attempts", duplicateRetries)
	}
	state.Scenario = scenario

	dir := scenarioDir(r.settings, scenario.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	r.imp.ImproveAll(ctx, scenario)
	if err := r.arch.UpdateFullScenario(ctx, scenario); err != nil {
		log.Printf("⚠️  could not persist improved prompts: %v", err)
	}

	keyframes, err := r.art.GenerateKeyframes(ctx, scenario, dir)
	if err != nil {
		return err
	}
	state.Keyframes = keyframes

	scenario.Status = types.StatusImagesDone
	if err := r.arch.UpdateStatus(ctx, scenario.ID, scenario.Status, ""); err != nil {
		return err
	}
	r.backup(ctx, scenario.ID, dir)
	return nil
}

func (r *pipelineRun) phase3(ctx context.Context, state *types.RunState) error {
	scenario := state.Scenario
	dir := scenarioDir(r.settings, scenario.ID)

	clips, err := r.cine.AnimateAll(ctx, scenario, state.Keyframes, dir)
	if err != nil {
		return err
	}
	state.VideoClips = clips

	audio, err := r.sound.GenerateAll(ctx, scenario, clips, dir)
	if err != nil {
		return err
	}
	state.AudioClips = audio

	scenario.Status = types.StatusAnimationDone
	if err := r.arch.UpdateStatus(ctx, scenario.ID, scenario.Status, ""); err != nil {
		return err
	}
	r.backup(ctx, scenario.ID, dir)
	return nil
}

func (r *pipelineRun) phase4(ctx context.Context, state *types.RunState) error {
	scenario := state.Scenario
	dir := scenarioDir(r.settings, scenario.ID)

	ed := editor.New(r.modelCfg.Editor, dir)
	finalCut, err := ed.Assemble(ctx, scenario, state.VideoClips, state.AudioClips)
	if err != nil {
		return err
	}
	state.FinalVideo = finalCut

	videoURL, err := r.distribute(ctx, scenario, finalCut, dir)
	if err != nil {
		return err
	}
	state.VideoURL = videoURL
	scenario.VideoURL = videoURL

	scenario.Status = types.StatusCompleted
	if err := r.arch.UpdateStatus(ctx, scenario.ID, scenario.Status, videoURL); err != nil {
		return err
	}
	if err := r.arch.UpdateCost(ctx, scenario.ID, r.tracker.ScenarioTotal(scenario.ID)); err != nil {
		log.Printf("⚠️  could not record cost: %v", err)
	}

	if r.settings.Social.Enabled {
		r.publish(ctx, scenario, finalCut, videoURL, dir)
	}
	return nil
}

func (r *pipelineRun) distribute(ctx context.Context, scenario *types.Scenario, finalCut, dir string) (string, error) {
	switch {
	case r.settings.GCSBucket != "":
		dist, err := distributor.New(ctx, r.settings.GCSBucket, r.settings.DriveFolderID, r.tracker)
		if err != nil {
			return "", err
		}
		url, err := dist.UploadVideo(ctx, scenario.ID, finalCut)
		if err != nil {
			return "", err
		}
		if err := dist.UploadFolder(ctx, scenario.ID, dir); err != nil {
			log.Printf("⚠️  folder backup failed: %v", err)
		}
		if _, err := dist.MirrorToDrive(ctx, finalCut); err != nil {
			log.Printf("⚠️  drive mirror failed: %v", err)
		}
		return url, nil
	case r.settings.DriveFolderID != "":
		dist, err := distributor.New(ctx, "", r.settings.DriveFolderID, r.tracker)
		if err != nil {
			return "", err
		}
		fileID, err := dist.MirrorToDrive(ctx, finalCut)
		if err != nil {
			return "", err
		}
		return "https://drive.google.com/file/d/" + fileID, nil
	default:
		log.Println("⚠️  no gcs_bucket or drive_folder_id configured, skipping upload")
		return "", nil
	}
}

func (r *pipelineRun) publish(ctx context.Context, scenario *types.Scenario, finalCut, hostedURL, dir string) {
	gen, err := socialmeta.New(ctx, r.settings.Gemini.Model, r.settings.ChannelName, r.tracker)
	var bundle *socialmeta.Bundle
	if err != nil {
		log.Printf("⚠️  metadata generator unavailable: %v", err)
		bundle = socialmeta.Fallback(scenario)
	} else {
		bundle = gen.Generate(ctx, scenario)
	}
	saveJSON(filepath.Join(dir, "social_metadata.json"), bundle)

	pubs := publishers.ForConfig(r.settings.Social)
	if len(pubs) == 0 {
		log.Println("[publish] social enabled but no platform switched on")
		return
	}
	results := publishers.PublishAll(ctx, r.settings.Social, pubs, finalCut, hostedURL, bundle)
	if _, err := publishers.SaveResults(dir, results); err != nil {
		log.Printf("⚠️  could not save publish results: %v", err)
	}
}

// resume reconstructs an ANIMATION_DONE scenario from the ledger and
// the files on disk, then runs phase 4 alone. Missing audio files are
// fine: clips with embedded audio never had separate beds.
func (r *pipelineRun) resume(ctx context.Context, state *types.RunState, resumeID string) error {
	var scenario *types.Scenario
	var err error
	if resumeID == "latest" {
		scenario, err = r.arch.LatestWithStatus(ctx, types.StatusAnimationDone)
	} else {
		scenario, err = r.arch.FindByID(ctx, resumeID)
	}
	if err != nil {
		return err
	}
	if scenario == nil {
		return fmt.Errorf("no resumable scenario found for %q", resumeID)
	}
	if scenario.Status != types.StatusAnimationDone {
		return fmt.Errorf("scenario %s is %s, need %s", scenario.ID, scenario.Status, types.StatusAnimationDone)
	}
	if scenario.Title == "" {
		scenario.Title = "What if " + strings.TrimSuffix(scenario.Premise, ".") + "?"
	}
	log.Printf("[main] resuming scenario %s (%s)", scenario.ID, scenario.Premise)
	state.Scenario = scenario

	dir := scenarioDir(r.settings, scenario.ID)
	clips, audio, err := editor.LoadStageMedia(scenario, dir, fallbackClipDuration(r.modelCfg))
	if err != nil {
		return err
	}
	state.VideoClips = clips
	state.AudioClips = audio

	log.Println("\n━━━ PHASE 4: Assembly & Distribution (resumed) ━━━")
	if err := r.phase4(ctx, state); err != nil {
		r.markFailed(ctx, state)
		return err
	}
	log.Printf("✅ resume complete! video: %s", state.VideoURL)
	return nil
}

// fallbackClipDuration is the provider-configured clip length, used
// when a resumed file cannot be probed.
func fallbackClipDuration(modelCfg *config.ModelConfig) float64 {
	if modelCfg.Kie.Enabled {
		return float64(modelCfg.KieVideo.Seedance.Duration)
	}
	return modelCfg.FalVideo.Duration
}

func (r *pipelineRun) markFailed(ctx context.Context, state *types.RunState) {
	if state.Scenario == nil {
		return
	}
	state.Scenario.Status = types.StatusFailed
	if err := r.arch.UpdateStatus(ctx, state.Scenario.ID, types.StatusFailed, ""); err != nil {
		log.Printf("⚠️  could not mark scenario FAILED: %v", err)
	}
}

func (r *pipelineRun) backup(ctx context.Context, scenarioID, dir string) {
	if r.settings.GCSBucket == "" {
		return
	}
	dist, err := distributor.New(ctx, r.settings.GCSBucket, "", r.tracker)
	if err == nil {
		err = dist.UploadFolder(ctx, scenarioID, dir)
	}
	if err != nil {
		log.Printf("⚠️  GCS backup failed (continuing): %v", err)
	}
}

func scenarioDir(settings *config.Settings, scenarioID string) string {
	return filepath.Join(settings.OutputDir, scenarioID)
}

func printBanner(settings *config.Settings, modelCfg *config.ModelConfig, runID string, phase int) {
	provider := "fal.ai"
	if modelCfg.Kie.Enabled {
		provider = "kie.ai"
	}
	log.Printf("🎬 ChronoReel pipeline — run %s", runID)
	log.Printf("   channel:  %s", settings.ChannelName)
	log.Printf("   style:    %s", settings.Style.Name)
	log.Printf("   provider: %s", provider)
	log.Printf("   phases:   1..%d", phase)
	log.Printf("   output:   %s", settings.OutputDir)
}

func saveJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("⚠️  could not marshal %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("⚠️  could not save %s: %v", path, err)
	}
}
