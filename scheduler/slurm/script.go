package slurm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/twitter/jobgate/scheduler/domain"
)

var oneLine = strings.NewReplacer("\n", " ", "\r", " ")

// CommentPrefix marks the --comment of every job jobgate submits.
const CommentPrefix = "jobgate"

// BuildScript renders the batch script for one attempt of a job.
// submissionID is recorded in the job's comment so an attempt can be found in sacct.
func BuildScript(job domain.Job, attempt int, submissionID string) string {
	spec := job.Spec
	var b strings.Builder
	b.WriteString("#!/bin/bash\n\n")

	directive := func(name, value string) {
		fmt.Fprintf(&b, "#SBATCH --%s=%s\n", name, oneLine.Replace(value))
	}
	directive("job-name", job.ID)
	if spec.LogDir != "" {
		directive("output", strings.TrimRight(spec.LogDir, "/")+"/%x.log")
	}
	directive("partition", spec.Partition)
	directive("ntasks", "1")
	directive("cpus-per-task", fmt.Sprint(spec.CPUs))
	directive("mem", spec.Memory)
	directive("time", spec.TimeLimit)
	if spec.GPUs > 0 {
		directive("gres", fmt.Sprintf("gpu:%d", spec.GPUs))
	}
	if spec.MailType != "" && spec.MailUser != "" {
		directive("mail-type", spec.MailType)
		directive("mail-user", spec.MailUser)
	}
	directive("comment", fmt.Sprintf("%s:%s:%d", CommentPrefix, submissionID, attempt))
	for _, key := range sortedKeys(spec.ExtraParams) {
		if v := spec.ExtraParams[key]; v != "" {
			directive(key, v)
		} else {
			fmt.Fprintf(&b, "#SBATCH --%s\n", key)
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "export SBATCH_PARTITION=%s\n", spec.Partition)
	b.WriteString("echo \"Running on host: $(hostname)\"\n")
	b.WriteString("echo \"Time is: $(date)\"\n")
	b.WriteString("echo \"Directory is: $(pwd)\"\n\n")

	if spec.WorkingDir != "" {
		fmt.Fprintf(&b, "cd %s || exit 1\n\n", shellQuote(spec.WorkingDir))
	}
	if spec.CondaEnv != "" {
		b.WriteString("source $(conda info --base)/etc/profile.d/conda.sh\n")
		fmt.Fprintf(&b, "conda activate %s\n\n", shellQuote(spec.CondaEnv))
	}

	b.WriteString(strings.Join(commandLine(spec), " "))
	b.WriteString("\n")
	return b.String()
}

// commandLine is the executor invocation. Blender runs headless and takes the script through --python.
func commandLine(spec domain.JobSpec) []string {
	cmd := []string{shellQuote(spec.Executor)}
	isBlender := strings.Contains(strings.ToLower(spec.Executor), "blender")
	if isBlender && !contains(spec.ExecutorArgs, "--background") {
		cmd = append(cmd, "--background")
	}
	for _, a := range spec.ExecutorArgs {
		cmd = append(cmd, shellQuote(a))
	}
	if isBlender {
		cmd = append(cmd, "--python")
	}
	cmd = append(cmd, shellQuote(spec.Script))

	if len(spec.Args) > 0 || isBlender {
		cmd = append(cmd, spec.ArgsSeparator)
	}
	for _, k := range spec.SortedArgKeys() {
		cmd = append(cmd, shellQuote(fmt.Sprintf("--%s=%s", k, spec.Args[k])))
	}
	return cmd
}

// shellQuote single quotes s unless it is made only of characters the shell leaves alone.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
