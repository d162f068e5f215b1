package sge

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicholsn/opencga/internal/common"
)

// fakeRunner records invocations and replays canned output per binary.
type fakeRunner struct {
	calls   [][]string
	outputs map[string][]byte
	errs    map[string]error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return f.outputs[name], nil
}

func queueConfig() common.SGEConfig {
	return common.SGEConfig{
		DefaultQueue: "default",
		Queues: []common.QueueConfig{
			{Name: "fast", Tools: []string{"samtools", "gatk"}},
			{Name: "default", Tools: []string{"samtools"}},
			{Name: "big", Tools: []string{"GATK"}},
		},
	}
}

func TestQueueRendersQsubTemplate(t *testing.T) {
	runner := &fakeRunner{}
	m := NewManager(common.SGEConfig{DefaultQueue: "default"}, runner)

	require.NoError(t, m.Queue(context.Background(), "samtools", 7, "/jobs/7", "samtools view in.bam", ""))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{
		"qsub", "-V",
		"-N", "samtools_7",
		"-o", "/jobs/7/sge_out.log",
		"-e", "/jobs/7/sge_err.log",
		"-q", "default",
		"-b", "y",
		"samtools view in.bam",
	}, runner.calls[0])
}

func TestQueueSelection(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		supplied string
		want     string
	}{
		{"SuppliedQueueWins", "samtools", "urgent", "urgent"},
		{"NonDefaultMatch", "samtools", "", "fast"},
		{"CaseInsensitiveMatch", "gAtK", "", "big"},
		{"LastMatchOverwritesEarlier", "gatk", "", "big"},
		{"NoMatchUsesDefault", "bwa", "", "default"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{}
			m := NewManager(queueConfig(), runner)
			require.NoError(t, m.Queue(context.Background(), tc.tool, 1, "/out", "true", tc.supplied))
			require.Len(t, runner.calls, 1)
			args := runner.calls[0]
			assert.Equal(t, tc.want, args[len(args)-4], "queue argument")
		})
	}
}

func TestQueueSelectionWithoutDefault(t *testing.T) {
	runner := &fakeRunner{}
	m := NewManager(common.SGEConfig{}, runner)

	err := m.Queue(context.Background(), "bwa", 1, "/out", "true", "")
	require.Error(t, err)
	assert.True(t, common.IsErrInternal(err))
	assert.Empty(t, runner.calls, "nothing may be submitted without a queue")

	// An explicitly supplied queue does not need the default.
	require.NoError(t, m.Queue(context.Background(), "bwa", 1, "/out", "true", "urgent"))
	require.Len(t, runner.calls, 1)
}

const qstatOutput = `<?xml version='1.0'?>
<job_info>
  <queue_info>
    <job_list state="running">
      <JB_job_number>101</JB_job_number>
      <JB_name>samtools_7</JB_name>
      <state>r</state>
    </job_list>
    <job_list state="pending">
      <JB_job_number>102</JB_job_number>
      <JB_name>gatk_8</JB_name>
      <state>qw</state>
    </job_list>
    <job_list state="pending">
      <JB_job_number>103</JB_job_number>
      <JB_name>gatk_9</JB_name>
      <state>Eqw</state>
    </job_list>
  </queue_info>
</job_info>`

func TestStatusFromActiveQueue(t *testing.T) {
	tests := []struct {
		tool  string
		jobID int
		want  Status
	}{
		{"samtools", 7, StatusRunning},
		{"gatk", 8, StatusQueued},
		{"gatk", 9, StatusError},
	}
	for _, tc := range tests {
		runner := &fakeRunner{outputs: map[string][]byte{"qstat": []byte(qstatOutput)}}
		m := NewManager(common.SGEConfig{}, runner)
		got, err := m.Status(context.Background(), tc.tool, tc.jobID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s_%d", tc.tool, tc.jobID)
		require.Len(t, runner.calls, 1, "the post-mortem probe must not run when qstat knows the job")
	}
}

func TestStatusFallsBackToQacct(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   Status
	}{
		{"CleanFinish", "qname  default\nexit_status  0\nfailed  0\n", StatusFinished},
		{"ExecutionError", "exit_status  1\nfailed  0\n", StatusExecutionError},
		{"QueueError", "exit_status  0\nfailed  26\n", StatusQueueError},
		{"FailedTrumpsExitStatus", "exit_status  1\nfailed  100\n", StatusQueueError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{outputs: map[string][]byte{
				"qstat": []byte(qstatOutput),
				"qacct": []byte(tc.record),
			}}
			m := NewManager(common.SGEConfig{}, runner)
			got, err := m.Status(context.Background(), "bwa", 3)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			require.Len(t, runner.calls, 2)
			assert.Equal(t, []string{"qacct", "-j", "bwa_3"}, runner.calls[1])
		})
	}
}

func TestStatusUnknownWhenBothProbesSilent(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[string][]byte{"qstat": []byte(qstatOutput)},
		errs:    map[string]error{"qacct": common.NewErrInternal("no record")},
	}
	m := NewManager(common.SGEConfig{}, runner)
	got, err := m.Status(context.Background(), "bwa", 4)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, got)
}

func TestStatusSurfacesQstatFailure(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{"qstat": common.NewErrInternal("qstat not on PATH")}}
	m := NewManager(common.SGEConfig{}, runner)
	_, err := m.Status(context.Background(), "bwa", 4)
	assert.True(t, common.IsErrInternal(err))
}

func TestStatusRejectsMalformedOutput(t *testing.T) {
	runner := &fakeRunner{outputs: map[string][]byte{"qstat": []byte("<job_info><job_list>")}}
	m := NewManager(common.SGEConfig{}, runner)
	_, err := m.Status(context.Background(), "bwa", 4)
	assert.True(t, common.IsErrInvalidArgument(err))

	runner = &fakeRunner{outputs: map[string][]byte{
		"qstat": []byte(qstatOutput),
		"qacct": []byte("exit_status  NaN\n"),
	}}
	m = NewManager(common.SGEConfig{}, runner)
	_, err = m.Status(context.Background(), "bwa", 4)
	assert.True(t, common.IsErrInvalidArgument(err))
}

func TestStatusMatchesNameBySubstring(t *testing.T) {
	out := strings.Replace(qstatOutput, "samtools_7", "prefix_samtools_7_suffix", 1)
	runner := &fakeRunner{outputs: map[string][]byte{"qstat": []byte(out)}}
	m := NewManager(common.SGEConfig{}, runner)
	got, err := m.Status(context.Background(), "samtools", 7)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got)
}
