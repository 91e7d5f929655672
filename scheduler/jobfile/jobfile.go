// Package jobfile loads the jobs the daemon starts with from a YAML or JSON file.
//
//	defaults:
//	  partition: gpu
//	  gpus: 1
//	  script: render.py
//	jobs:
//	  - id: render_001
//	    spec:
//	      args: {frames: "1-100"}
//	  - id: render_002
//	    spec:
//	      gpus: 2
//
// Each job's spec is applied over the defaults; map fields are merged.
package jobfile

import (
	"bytes"
	"encoding/json"
	"io/ioutil"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/twitter/jobgate/scheduler/domain"
)

type file struct {
	Defaults json.RawMessage `json:"defaults"`
	Jobs     []entry         `json:"jobs"`
}

type entry struct {
	ID   string          `json:"id"`
	Spec json.RawMessage `json:"spec"`
}

// Load reads and parses path.
func Load(path string) ([]domain.Job, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading job file %s", path)
	}
	jobs, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "job file %s", path)
	}
	return jobs, nil
}

// Parse decodes a job file. Every job is validated, all problems are reported together.
func Parse(data []byte) ([]domain.Job, error) {
	var f file
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, err
	}

	var result *multierror.Error
	jobs := make([]domain.Job, 0, len(f.Jobs))
	seen := map[string]bool{}
	for i, e := range f.Jobs {
		var spec domain.JobSpec
		if err := overlay(&spec, f.Defaults, e.Spec); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "job %d (%s)", i, e.ID))
			continue
		}
		job := domain.Job{ID: e.ID, Spec: spec.WithDefaults()}
		if err := domain.ValidateJob(job); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "job %d", i))
			continue
		}
		if seen[job.ID] {
			result = multierror.Append(result, errors.Errorf("job %d: duplicate id %s", i, job.ID))
			continue
		}
		seen[job.ID] = true
		jobs = append(jobs, job)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func overlay(spec *domain.JobSpec, layers ...json.RawMessage) error {
	for _, raw := range layers {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(spec); err != nil {
			return err
		}
	}
	return nil
}
