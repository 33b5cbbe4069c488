package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"k8s.io/utils/ptr"

	"github.com/betepahos/incubator-aurora/internal/constants"
	operrors "github.com/betepahos/incubator-aurora/internal/errors"
	"github.com/betepahos/incubator-aurora/internal/updater"
)

// File is the top level of a job configuration file.
type File struct {
	Jobs []Job `hcl:"job,block"`
}

// Job is a single job definition.
type Job struct {
	Name         string        `hcl:"name,label"`
	Role         string        `hcl:"role"`
	Environment  string        `hcl:"environment"`
	Instances    *int          `hcl:"instances,optional"`
	UpdateConfig *UpdateConfig `hcl:"update_config,block"`
}

// UpdateConfig is the update_config block of a job. Omitted attributes are
// filled in by ApplyDefaults.
type UpdateConfig struct {
	BatchSize              *int `hcl:"batch_size,optional"`
	RestartThreshold       *int `hcl:"restart_threshold,optional"`
	WatchSecs              *int `hcl:"watch_secs,optional"`
	MaxPerInstanceFailures *int `hcl:"max_per_instance_failures,optional"`
	MaxTotalFailures       *int `hcl:"max_total_failures,optional"`
}

// Key returns the role/environment/name triple identifying the job.
func (j *Job) Key() string {
	return j.Role + "/" + j.Environment + "/" + j.Name
}

// ApplyDefaults fills in a missing update_config block and any omitted
// attributes with the default update parameters.
func (j *Job) ApplyDefaults() {
	if j.UpdateConfig == nil {
		j.UpdateConfig = &UpdateConfig{}
	}
	uc := j.UpdateConfig
	if uc.BatchSize == nil {
		uc.BatchSize = ptr.To(constants.DefaultBatchSize)
	}
	if uc.RestartThreshold == nil {
		uc.RestartThreshold = ptr.To(constants.DefaultRestartThresholdSecs)
	}
	if uc.WatchSecs == nil {
		uc.WatchSecs = ptr.To(constants.DefaultWatchSecs)
	}
	if uc.MaxPerInstanceFailures == nil {
		uc.MaxPerInstanceFailures = ptr.To(constants.DefaultMaxPerInstanceFailures)
	}
	if uc.MaxTotalFailures == nil {
		uc.MaxTotalFailures = ptr.To(constants.DefaultMaxTotalFailures)
	}
}

// UpdateParameters validates the job's update_config. Defaults are applied
// first, so the job is modified in place.
func (j *Job) UpdateParameters() (updater.UpdateParameters, error) {
	j.ApplyDefaults()
	uc := j.UpdateConfig

	params, err := updater.NewUpdateParameters(
		*uc.BatchSize,
		*uc.RestartThreshold,
		*uc.WatchSecs,
		*uc.MaxPerInstanceFailures,
		*uc.MaxTotalFailures,
	)
	if err != nil {
		return updater.UpdateParameters{}, fmt.Errorf("job %s: %w", j.Key(), err)
	}
	return params, nil
}

// Load parses the job file at path. vars are exposed to expressions as var.<name>.
func Load(path string, vars map[string]cty.Value) ([]Job, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, operrors.WrapPermanentConfig(fmt.Errorf("failed to parse %s: %w", path, diags))
	}
	return decode(file.Body, vars)
}

// Parse parses job configuration from src. filename is only used in diagnostics.
func Parse(src []byte, filename string, vars map[string]cty.Value) ([]Job, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, operrors.WrapPermanentConfig(fmt.Errorf("failed to parse %s: %w", filename, diags))
	}
	return decode(file.Body, vars)
}

func decode(body hcl.Body, vars map[string]cty.Value) ([]Job, error) {
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			constants.VariablesRoot: cty.ObjectVal(vars),
		},
	}

	var file File
	if diags := gohcl.DecodeBody(body, evalCtx, &file); diags.HasErrors() {
		return nil, operrors.WrapPermanentConfig(fmt.Errorf("failed to decode job configuration: %w", diags))
	}

	seen := make(map[string]struct{}, len(file.Jobs))
	for i := range file.Jobs {
		key := file.Jobs[i].Key()
		if _, ok := seen[key]; ok {
			return nil, operrors.WrapPermanentConfig(fmt.Errorf("duplicate job %s", key))
		}
		seen[key] = struct{}{}
		file.Jobs[i].ApplyDefaults()
	}
	return file.Jobs, nil
}

// FindJob returns the job called name. An empty name selects the only job in
// jobs and fails when there is more than one.
func FindJob(jobs []Job, name string) (*Job, error) {
	if name == "" {
		if len(jobs) != 1 {
			return nil, operrors.WrapPermanentConfig(fmt.Errorf("expected exactly one job, found %d", len(jobs)))
		}
		return &jobs[0], nil
	}
	for i := range jobs {
		if jobs[i].Name == name || jobs[i].Key() == name {
			return &jobs[i], nil
		}
	}
	return nil, operrors.WrapPermanentConfig(fmt.Errorf("job %q not found", name))
}

// ParseVars parses key=value pairs. Integer values become numbers, everything
// else is a string.
func ParseVars(pairs []string) (map[string]cty.Value, error) {
	vars := make(map[string]cty.Value, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, operrors.WrapPermanentConfig(fmt.Errorf("invalid variable %q (expected key=value)", pair))
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			vars[key] = cty.NumberIntVal(n)
			continue
		}
		vars[key] = cty.StringVal(value)
	}
	return vars, nil
}
