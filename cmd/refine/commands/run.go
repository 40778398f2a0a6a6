package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"go-refine-pipeline/internal/checkpoint"
	"go-refine-pipeline/internal/config"
	"go-refine-pipeline/internal/metrics"
	"go-refine-pipeline/internal/model"
	"go-refine-pipeline/internal/refine"
	"go-refine-pipeline/internal/render"
	"go-refine-pipeline/internal/runner"
	"go-refine-pipeline/internal/sequencer"
	"go-refine-pipeline/internal/store"
	"go-refine-pipeline/pkg/utils"
)

// RunCommand holds the flags of the run command.
type RunCommand struct {
	configPath string
	mode       string
	startFrom  string
}

// NewRunCommand builds the run command.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sequential refinement pipeline",
		Long:  "Run the sequential refinement pipeline in batch mode (process all pending files once) or stream mode (poll indefinitely until the operator types STOP).",
		RunE:  rc.run,
	}

	cmd.Flags().StringVarP(&rc.configPath, "config", "c", "refine.yaml", "Path to the run configuration file")
	cmd.Flags().StringVarP(&rc.mode, "mode", "m", "batch", "Run mode: batch or stream")
	cmd.Flags().StringVar(&rc.startFrom, "start-from", "", "Resume from this input filename, seeding from the preceding file's checkpoint")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	if rc.mode != "batch" && rc.mode != "stream" {
		return fmt.Errorf("%w: unknown mode %q (use batch or stream)", model.ErrConfiguration, rc.mode)
	}

	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return err
	}

	controller, cycle, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer store.CloseDB()

	if rc.startFrom != "" {
		if err := cycle.ResumeFrom(rc.startFrom, cfg.ResumeMapFunc()); err != nil {
			return err
		}
	}

	store.SaveRun(cycle.RunID, rc.mode, cfg)
	fmt.Printf("🚀 Starting sequential run %s in %s mode\n", cycle.RunID, rc.mode)

	if rc.mode == "batch" {
		return controller.RunBatch(cmd.Context())
	}
	return controller.RunStream(cmd.Context())
}

// buildPipeline wires the pipeline from a validated configuration. All
// remaining validation here is still eager: it happens before any input
// file is processed.
func buildPipeline(cfg *config.Config) (*runner.Controller, *runner.CycleRunner, error) {
	seq, err := sequencer.New(cfg.InputDataDir, cfg.FilenameOrderPattern)
	if err != nil {
		return nil, nil, err
	}
	// Eager pattern check over the current directory contents.
	if _, err := seq.Discover(); err != nil {
		return nil, nil, err
	}

	engine := refine.NewGaussianEngine(refine.CalcOptions{Xmin: cfg.Calc.Xmin, Xmax: cfg.Calc.Xmax})
	if err := refine.ValidateVariableNames(engine, cfg.RefinableVariableNames); err != nil {
		return nil, nil, err
	}
	if err := refine.ValidateVariableNames(engine, cfg.PlotVariableNames); err != nil {
		return nil, nil, err
	}
	if err := refine.ValidateResultEntryNames(cfg.PlotResultEntryNames); err != nil {
		return nil, nil, err
	}
	if err := refine.ValidateResultEntryNames(cfg.PlotIntermediateNames); err != nil {
		return nil, nil, err
	}

	bus := metrics.NewBus()
	for _, name := range cfg.PlotIntermediateNames {
		bus.Register(metrics.ChannelIntermediate, name, cfg.SampleStep)
	}
	for _, name := range cfg.PlotVariableNames {
		bus.Register(metrics.ChannelVariables, name, 1)
	}
	for _, name := range cfg.PlotResultEntryNames {
		bus.Register(metrics.ChannelResultEntries, name, 1)
	}
	if cfg.PlotY {
		bus.Register(metrics.ChannelProfiles, "y", 1)
	}
	if cfg.PlotYCalc {
		bus.Register(metrics.ChannelProfiles, "ycalc", 1)
	}

	ckpt := checkpoint.New(cfg.OutputResultDir)
	scheduler := &refine.Scheduler{
		Engine:            engine,
		Checkpoints:       ckpt,
		Bus:               bus,
		IntermediateNames: cfg.PlotIntermediateNames,
	}

	if cfg.Journal.Enabled {
		if err := store.InitDB(cfg.Journal.Path); err != nil {
			return nil, nil, fmt.Errorf("failed to open run journal %s: %w", cfg.Journal.Path, err)
		}
	}

	cycle := &runner.CycleRunner{
		RunID:                uuid.New().String(),
		Sequencer:            seq,
		Scheduler:            scheduler,
		Checkpoints:          ckpt,
		Bus:                  bus,
		RefinableNames:       cfg.RefinableVariableNames,
		PlotVariableNames:    cfg.PlotVariableNames,
		PlotResultEntryNames: cfg.PlotResultEntryNames,
		PlotY:                cfg.PlotY,
		PlotYCalc:            cfg.PlotYCalc,
		Seed:                 model.VariableValueMap(cfg.InitialVariableValues).Clone(),
	}

	sinks := []render.Sink{render.NewConsoleSink(os.Stdout)}
	if cfg.Charts.Enabled {
		sinks = append(sinks, render.NewChartSink(cfg.Charts.Path))
	}

	controller := &runner.Controller{
		Runner:          cycle,
		Bus:             bus,
		Sinks:           sinks,
		PollInterval:    utils.ParseDuration(cfg.PollInterval, time.Second),
		RenderInterval:  utils.ParseDuration(cfg.RenderInterval, time.Second),
		Console:         os.Stdin,
		Out:             os.Stdout,
		MetricsDumpPath: filepath.Join(cfg.OutputResultDir, "metrics_dump.json"),
	}
	return controller, cycle, nil
}
