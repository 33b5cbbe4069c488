package config

import (
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/betepahos/incubator-aurora/internal/constants"
)

type hclUpdateConfig struct {
	BatchSize              int `hcl:"batch_size"`
	RestartThreshold       int `hcl:"restart_threshold"`
	WatchSecs              int `hcl:"watch_secs"`
	MaxPerInstanceFailures int `hcl:"max_per_instance_failures"`
	MaxTotalFailures       int `hcl:"max_total_failures"`
}

// RenderJobs renders jobs with every update_config attribute spelled out.
// Defaults are applied to each job before rendering.
func RenderJobs(jobs []Job) []byte {
	file := hclwrite.NewEmptyFile()
	body := file.Body()

	for i := range jobs {
		if i > 0 {
			body.AppendNewline()
		}
		body.AppendBlock(buildJobBlock(&jobs[i]))
	}

	return file.Bytes()
}

func buildJobBlock(job *Job) *hclwrite.Block {
	job.ApplyDefaults()

	block := hclwrite.NewBlock(constants.BlockJob, []string{job.Name})
	body := block.Body()
	body.SetAttributeValue("role", cty.StringVal(job.Role))
	body.SetAttributeValue("environment", cty.StringVal(job.Environment))
	if job.Instances != nil {
		body.SetAttributeValue("instances", cty.NumberIntVal(int64(*job.Instances)))
	}
	body.AppendNewline()

	uc := job.UpdateConfig
	update := body.AppendNewBlock(constants.BlockUpdateConfig, nil)
	gohcl.EncodeIntoBody(hclUpdateConfig{
		BatchSize:              *uc.BatchSize,
		RestartThreshold:       *uc.RestartThreshold,
		WatchSecs:              *uc.WatchSecs,
		MaxPerInstanceFailures: *uc.MaxPerInstanceFailures,
		MaxTotalFailures:       *uc.MaxTotalFailures,
	}, update.Body())

	return block
}
