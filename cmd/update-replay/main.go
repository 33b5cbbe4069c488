package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/betepahos/incubator-aurora/internal/config"
	"github.com/betepahos/incubator-aurora/internal/replay"
	"github.com/betepahos/incubator-aurora/internal/updater"
)

const (
	exitSuccess      = 0
	exitUpdateFailed = 1
	exitRunError     = 2
)

var errUsage = errors.New("usage error")

// stringSlice collects repeated flag values.
type stringSlice []string

func (s *stringSlice) String() string { return strings.Join(*s, ",") }

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// run replays the batches and reports whether the update would have been aborted.
func run(ctx context.Context, logger logr.Logger, args []string, stdout io.Writer) (bool, error) {
	fs := flag.NewFlagSet("update-replay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		jobFile     string
		jobName     string
		batchesFile string
		printConfig bool
		vars        stringSlice
	)
	fs.StringVar(&jobFile, "job", "", "Path to the HCL job configuration")
	fs.StringVar(&jobName, "job-name", "", "Job to replay (name or role/environment/name); optional when the file has one job")
	fs.StringVar(&batchesFile, "batches", "", "Path to the YAML document of recorded batch outcomes")
	fs.BoolVar(&printConfig, "print-config", false, "Print the job configuration with update defaults applied and exit")
	fs.Var(&vars, "var", "Variable for the job configuration as key=value (repeatable)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(stdout)
			_, _ = fmt.Fprintf(stdout, "Usage of %s:\n", fs.Name())
			fs.PrintDefaults()
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", errUsage, err)
	}
	if jobFile == "" {
		return false, fmt.Errorf("%w: -job is required", errUsage)
	}

	ctyVars, err := config.ParseVars(vars)
	if err != nil {
		return false, err
	}
	jobs, err := config.Load(jobFile, ctyVars)
	if err != nil {
		return false, err
	}

	if printConfig {
		_, err := stdout.Write(config.RenderJobs(jobs))
		return false, err
	}

	if batchesFile == "" {
		return false, fmt.Errorf("%w: -batches is required", errUsage)
	}

	job, err := config.FindJob(jobs, jobName)
	if err != nil {
		return false, err
	}
	params, err := job.UpdateParameters()
	if err != nil {
		return false, err
	}

	input, err := replay.LoadInput(batchesFile)
	if err != nil {
		return false, err
	}

	logger = logger.WithValues("job", job.Key())
	logger.Info("Replaying update",
		"batches", len(input.Batches),
		"batchSize", params.BatchSize(),
		"maxPerInstanceFailures", params.MaxPerInstanceFailures(),
		"maxTotalFailures", params.MaxTotalFailures())

	metrics := updater.NewMetrics(job.Key())
	defer metrics.Clear()

	result, err := replay.Run(ctx, logger, params, input.Batches, metrics)
	if err != nil {
		return false, err
	}

	for _, batch := range result.Batches {
		_, _ = fmt.Fprintf(stdout, "batch %d: failed=%v over-limit=%v\n", batch.Index, batch.Failed, batch.OverLimit)
	}
	if result.Failed() {
		_, _ = fmt.Fprintf(stdout, "update failed after batch %d: %d instances over limit, maximum allowed is %d\n",
			result.FailedAtBatch, result.Report.Exceeded, result.Report.Limit)
		return true, nil
	}
	_, _ = fmt.Fprintf(stdout, "update succeeded: %d instances over limit, maximum allowed is %d\n",
		result.Report.Exceeded, result.Report.Limit)
	return false, nil
}

func main() {
	ctx := context.Background()
	logger := zap.New(zap.UseDevMode(true))

	failed, err := run(ctx, logger, os.Args[1:], os.Stdout)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "update-replay error: %v\n", err)
		os.Exit(exitRunError)
	}
	if failed {
		os.Exit(exitUpdateFailed)
	}

	os.Exit(exitSuccess)
}
