package manager

import (
	"context"

	"github.com/nicholsn/opencga/internal/catalog/audit"
	"github.com/nicholsn/opencga/internal/catalog/authorization"
	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
	"github.com/nicholsn/opencga/internal/catalog/persistence"
	"github.com/nicholsn/opencga/internal/scheduler/sge"
)

func jobRef(job model.Job) authorization.EntityRef {
	return authorization.EntityRef{Kind: model.KindJob, ID: job.ID, StudyID: job.StudyID}
}

// CreateJob registers a job, materializes its output directory and, when
// enqueue is set, submits it to the batch scheduler. The scheduler-side
// name is always "{tool}_{id}".
func (c *Catalog) CreateJob(ctx context.Context, caller string, studyID int, job model.Job, enqueue bool) (model.Job, error) {
	if err := c.auth.CheckStudyPermission(ctx, studyID, caller, model.CreateJobs); err != nil {
		return model.Job{}, err
	}
	if job.Name == "" || job.ToolName == "" {
		return model.Job{}, common.NewErrInvalidArgument("job name and tool name are required")
	}
	if enqueue && c.scheduler == nil {
		return model.Job{}, common.NewErrPrecondition("no batch scheduler is configured")
	}

	study, err := c.db.GetStudy(ctx, studyID)
	if err != nil {
		return model.Job{}, err
	}
	owner, err := c.db.GetStudyOwner(ctx, studyID)
	if err != nil {
		return model.Job{}, err
	}
	id, err := c.db.NextID(ctx)
	if err != nil {
		return model.Job{}, err
	}

	if job.OutDir == "" {
		outDir, err := c.io.CreateJobOutDir(ctx, owner, study.ProjectID, studyID, id)
		if err != nil {
			return model.Job{}, err
		}
		job.OutDir = outDir
	}
	job.ID = id
	job.StudyID = studyID
	job.SchedulerName = sge.JobName(job.ToolName, id)
	job.ExecutionStatus = model.JobStatusPrepared
	job.Date = common.GetCurrentTimestamp()
	job.Status = model.Status{Name: model.StatusReady, Date: job.Date}
	if err := c.db.CreateJob(ctx, job); err != nil {
		return model.Job{}, err
	}
	audit.Log(ctx, c.audit, caller, "job.create", "job", id, job.Name)

	if enqueue {
		if err := c.scheduler.Queue(ctx, job.ToolName, id, job.OutDir, job.CommandLine, job.Queue); err != nil {
			return model.Job{}, err
		}
		job.ExecutionStatus = model.JobStatusQueued
		if err := c.db.UpdateJob(ctx, job); err != nil {
			return model.Job{}, err
		}
		audit.Log(ctx, c.audit, caller, "job.queue", "job", id, job.SchedulerName)
	}
	return job, nil
}

func (c *Catalog) GetJob(ctx context.Context, caller string, jobID int) (model.Job, error) {
	job, err := c.db.GetJob(ctx, jobID)
	if err != nil {
		return model.Job{}, err
	}
	if err := c.auth.CheckPermission(ctx, jobRef(job), caller, model.View); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

// SearchJobs lists the study's jobs matching the filter, restricted to the
// ones the caller can view.
func (c *Catalog) SearchJobs(ctx context.Context, caller string, studyID int, filter persistence.JobFilter) ([]model.Job, error) {
	jobs, err := c.db.ListJobs(ctx, studyID, filter)
	if err != nil {
		return nil, err
	}
	return c.auth.FilterJobs(ctx, caller, jobs)
}

// VisitJob marks the job as seen by its consumer. Only the first visit
// writes; later ones are no-ops.
func (c *Catalog) VisitJob(ctx context.Context, caller string, jobID int) (model.Job, error) {
	job, err := c.db.GetJob(ctx, jobID)
	if err != nil {
		return model.Job{}, err
	}
	if err := c.auth.CheckPermission(ctx, jobRef(job), caller, model.View); err != nil {
		return model.Job{}, err
	}
	if !job.Visited {
		job.Visited = true
		if err := c.db.UpdateJob(ctx, job); err != nil {
			return model.Job{}, err
		}
	}
	return job, nil
}

// schedulerStatusMap reconciles scheduler-side states with the catalog's
// execution statuses. UNKNOWN leaves the stored status untouched.
var schedulerStatusMap = map[sge.Status]string{
	sge.StatusQueued:         model.JobStatusQueued,
	sge.StatusTransferred:    model.JobStatusQueued,
	sge.StatusRunning:        model.JobStatusRunning,
	sge.StatusFinished:       model.JobStatusDone,
	sge.StatusError:          model.JobStatusError,
	sge.StatusExecutionError: model.JobStatusError,
	sge.StatusQueueError:     model.JobStatusError,
}

// RefreshJobStatus probes the scheduler and stores the reconciled
// execution status. It returns the up-to-date job.
func (c *Catalog) RefreshJobStatus(ctx context.Context, caller string, jobID int) (model.Job, error) {
	job, err := c.db.GetJob(ctx, jobID)
	if err != nil {
		return model.Job{}, err
	}
	if err := c.auth.CheckPermission(ctx, jobRef(job), caller, model.View); err != nil {
		return model.Job{}, err
	}
	if c.scheduler == nil {
		return job, nil
	}
	status, err := c.scheduler.Status(ctx, job.ToolName, job.ID)
	if err != nil {
		return model.Job{}, err
	}
	mapped, ok := schedulerStatusMap[status]
	if !ok || mapped == job.ExecutionStatus {
		return job, nil
	}
	job.ExecutionStatus = mapped
	if err := c.db.UpdateJob(ctx, job); err != nil {
		return model.Job{}, err
	}
	audit.Log(ctx, c.audit, caller, "job.status", "job", job.ID, mapped)
	return job, nil
}

func (c *Catalog) DeleteJob(ctx context.Context, caller string, jobID int) error {
	job, err := c.db.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if err := c.auth.CheckPermission(ctx, jobRef(job), caller, model.Delete); err != nil {
		return err
	}
	if err := c.db.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	audit.Log(ctx, c.audit, caller, "job.delete", "job", jobID, job.Name)
	return nil
}
