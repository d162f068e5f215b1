// Package sge bridges job submissions to a Sun Grid Engine style batch
// scheduler through its command line tools. The scheduler remains the
// source of truth for job state; the bridge only submits and probes.
package sge

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nicholsn/opencga/internal/common"
)

// Status is the scheduler-side job state reported by the bridge.
type Status string

const (
	StatusQueued         Status = "QUEUED"
	StatusRunning        Status = "RUNNING"
	StatusTransferred    Status = "TRANSFERRED"
	StatusError          Status = "ERROR"
	StatusFinished       Status = "FINISHED"
	StatusExecutionError Status = "EXECUTION_ERROR"
	StatusQueueError     Status = "QUEUE_ERROR"
	StatusUnknown        Status = "UNKNOWN"
)

// qstat state letters for jobs still known to the active queue.
var stateTable = map[string]Status{
	"r":   StatusRunning,
	"t":   StatusTransferred,
	"qw":  StatusQueued,
	"Eqw": StatusError,
}

// Manager submits and probes scheduler jobs. The runner is injectable so
// tests exercise the parsing and queue selection without a live scheduler.
type Manager struct {
	cfg    common.SGEConfig
	runner CommandRunner
}

// NewManager builds a bridge over the given scheduler configuration. A nil
// runner defaults to executing the real binaries.
func NewManager(cfg common.SGEConfig, runner CommandRunner) *Manager {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Manager{cfg: cfg, runner: runner}
}

// JobName renders the scheduler-side job name for a catalog job.
func JobName(tool string, jobID int) string {
	return fmt.Sprintf("%s_%d", tool, jobID)
}

// Queue submits commandLine under the name {tool}_{jobID}, writing stdout
// and stderr to sge_out.log and sge_err.log inside outDir. An empty queue
// triggers selection from the configured tool lists. Submission is
// fire-and-forget: acceptance by the scheduler is success.
func (m *Manager) Queue(ctx context.Context, tool string, jobID int, outDir, commandLine, queue string) error {
	if queue == "" {
		var err error
		queue, err = m.selectQueue(tool)
		if err != nil {
			return err
		}
	}
	args := []string{
		"-V",
		"-N", JobName(tool, jobID),
		"-o", filepath.Join(outDir, "sge_out.log"),
		"-e", filepath.Join(outDir, "sge_err.log"),
		"-q", queue,
		"-b", "y",
		commandLine,
	}
	_, err := m.runner.Run(ctx, "qsub", args...)
	return err
}

// selectQueue scans every non-default queue in configuration order and
// keeps the last queue whose tool list contains the tool, case
// insensitively. No match falls back to the default queue; a missing
// default queue is a configuration error.
func (m *Manager) selectQueue(tool string) (string, error) {
	if m.cfg.DefaultQueue == "" {
		return "", common.NewErrInternal("sge.defaultQueue is not defined")
	}
	selected := m.cfg.DefaultQueue
	for _, q := range m.cfg.Queues {
		if q.Name == m.cfg.DefaultQueue {
			continue
		}
		for _, t := range q.Tools {
			if strings.EqualFold(t, tool) {
				selected = q.Name
			}
		}
	}
	return selected, nil
}

// Status reports the scheduler state of {tool}_{jobID}: first from the
// active queue (qstat), then from the post-mortem accounting (qacct).
// StatusUnknown means neither probe had a record of the job.
func (m *Manager) Status(ctx context.Context, tool string, jobID int) (Status, error) {
	name := JobName(tool, jobID)

	out, err := m.runner.Run(ctx, "qstat", "-xml")
	if err != nil {
		return StatusUnknown, err
	}
	status, found, err := parseQstat(out, name)
	if err != nil {
		return StatusUnknown, err
	}
	if found {
		return status, nil
	}

	// qacct exits non-zero when it has no record of the job, so a runner
	// failure on the post-mortem probe reads as absence.
	out, err = m.runner.Run(ctx, "qacct", "-j", name)
	if err != nil {
		return StatusUnknown, nil
	}
	return parseQacct(out)
}

// parseQstat streams the qstat XML and returns the mapped state of the
// first job whose name contains target.
func parseQstat(out []byte, target string) (Status, bool, error) {
	decoder := xml.NewDecoder(bytes.NewReader(out))
	var name, state, field string
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return StatusUnknown, false, nil
		}
		if err != nil {
			return StatusUnknown, false, common.NewErrInvalidArgument("malformed qstat output: %v", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			field = t.Name.Local
		case xml.CharData:
			switch field {
			case "JB_name":
				name = strings.TrimSpace(string(t))
			case "state":
				state = strings.TrimSpace(string(t))
			}
		case xml.EndElement:
			field = ""
			if t.Name.Local == "job_list" {
				if strings.Contains(name, target) {
					mapped, ok := stateTable[state]
					if !ok {
						return StatusUnknown, false, common.NewErrInvalidArgument("unknown qstat state '%s' for job %s", state, name)
					}
					return mapped, true, nil
				}
				name, state = "", ""
			}
		}
	}
}

// parseQacct classifies a terminated job from the qacct accounting record:
// a non-zero "failed" field means the scheduler could not run the job, a
// zero "exit_status" is a clean finish, anything else failed in execution.
func parseQacct(out []byte) (Status, error) {
	var exitStatus, failed int
	var haveExit, haveFailed bool
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "exit_status":
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return StatusUnknown, common.NewErrInvalidArgument("malformed qacct exit_status '%s'", fields[1])
			}
			exitStatus, haveExit = n, true
		case "failed":
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return StatusUnknown, common.NewErrInvalidArgument("malformed qacct failed field '%s'", fields[1])
			}
			failed, haveFailed = n, true
		}
	}
	if !haveExit && !haveFailed {
		return StatusUnknown, nil
	}
	if failed != 0 {
		return StatusQueueError, nil
	}
	if exitStatus == 0 {
		return StatusFinished, nil
	}
	return StatusExecutionError, nil
}
