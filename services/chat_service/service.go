package chat_service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"healthbot/agent-app/capture"
	"healthbot/agent-app/core"
	"healthbot/agent-app/lib"
	"healthbot/agent-app/sanitize"
	"healthbot/agent-app/store"
	"healthbot/agent-app/team"
)

const (
	MissingCredentialsWarning = "Please enter both API keys to continue."
	MissingQuestionWarning    = "Please enter a question."

	taskCollection   = "agent:session"
	latestCollection = "agent:latest"
	latestTaskID     = "latest"
)

var ErrMissingCredentials = errors.New("both API keys are required")

// Credentials are passed through to the agent team unvalidated; they only
// have to be present.
type Credentials struct {
	PlatformKey string `form:"phi_api_key" json:"phi_api_key" binding:"required"`
	ModelKey    string `form:"model_api_key" json:"model_api_key" binding:"required"`
}

type AskRequest struct {
	Credentials
	Question string `form:"question" json:"question"`
}

// Submission is what the display layer renders for one question.
type Submission struct {
	Question string     `json:"question"`
	Output   string     `json:"output"`
	Warning  string     `json:"warning,omitempty"`
	Error    string     `json:"error,omitempty"`
	TaskId   int64      `json:"task_id,omitempty"`
	Status   string     `json:"status,omitempty"`
	Stats    core.Stats `json:"stats"`
}

type LatestTask struct {
	Id         string `json:"id" store:"id"`
	TaskId     int64  `json:"taskId"`
	LastTaskId int64  `json:"lastTaskId"`
}

// Runner continues a task and streams its answer to out.
type Runner interface {
	Run(ctx context.Context, taskHistory *core.TaskHistory, input core.LLMInput, out io.Writer) (core.LLMOutput, error)
}

// RunnerFactory builds the runner for one request.
type RunnerFactory func(ctx context.Context, creds Credentials) (Runner, error)

// NewTeamFactory builds the healthcare team with the request's model key.
func NewTeamFactory(b *team.Builder) RunnerFactory {
	return func(ctx context.Context, creds Credentials) (Runner, error) {
		leader, err := b.Build(ctx, creds.ModelKey)
		if err != nil {
			return nil, err
		}
		return leader, nil
	}
}

type Service struct {
	factory   RunnerFactory
	store     *store.Store
	validator *lib.Validator
	timeout   time.Duration
}

func NewService(factory RunnerFactory, st *store.Store, validator *lib.Validator, timeout time.Duration) *Service {
	if st == nil {
		st = store.New()
	}
	if validator == nil {
		validator = lib.NewValidator()
	}
	return &Service{factory: factory, store: st, validator: validator, timeout: timeout}
}

// CheckCredentials returns ErrMissingCredentials unless both keys are set.
func (s *Service) CheckCredentials(creds Credentials) error {
	creds.PlatformKey = strings.TrimSpace(creds.PlatformKey)
	creds.ModelKey = strings.TrimSpace(creds.ModelKey)
	if err := s.validator.ValidateStruct(creds); err != nil {
		return fmt.Errorf("%w: missing %s", ErrMissingCredentials, strings.Join(lib.MissingFields(err), ", "))
	}
	return nil
}

// Ask answers one question. Failures are reported in the Submission; the
// captured output is returned in every case where the team was run.
func (s *Service) Ask(ctx context.Context, req AskRequest) Submission {
	sub := Submission{Question: req.Question}

	if err := s.CheckCredentials(req.Credentials); err != nil {
		slog.WarnContext(ctx, "ask rejected", "error", err)
		sub.Warning = MissingCredentialsWarning
		return sub
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		sub.Warning = MissingQuestionWarning
		return sub
	}

	runner, err := s.factory(ctx, req.Credentials)
	if err != nil {
		slog.ErrorContext(ctx, "build agent team", "error", err)
		sub.Error = fmt.Sprintf("An error occurred: %v", err)
		return sub
	}

	ds := s.store.WithPartitionKey(partitionKey(req.PlatformKey))
	history, err := loadLastTask(ds)
	if err != nil {
		slog.ErrorContext(ctx, "load task history", "error", err)
		sub.Error = fmt.Sprintf("An error occurred: %v", err)
		return sub
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var stats core.Stats
	delegate := capture.DelegateFunc(func(ctx context.Context, query string, out io.Writer) error {
		result, err := runner.Run(ctx, history, core.LLMInput{Text: query}, out)
		stats = result.Stats
		return err
	})

	start := time.Now()
	raw, runErr := capture.Run(ctx, delegate, question)
	sub.Output = sanitize.Strip(raw)
	if runErr != nil {
		slog.ErrorContext(ctx, "agent run failed", "error", runErr, "elapsed", time.Since(start))
		sub.Error = fmt.Sprintf("An error occurred: %v", runErr)
		return sub
	}

	if err := saveTask(ds, history); err != nil {
		slog.WarnContext(ctx, "save task history", "error", err)
	}
	slog.InfoContext(ctx, "question answered",
		"task", history.TaskId, "status", history.Status,
		"tokens", stats.TotalTokenCount, "elapsed", time.Since(start))

	sub.TaskId = history.TaskId
	sub.Status = history.Status
	sub.Stats = stats
	return sub
}

// LastTask returns the most recent task recorded for the platform key.
func (s *Service) LastTask(platformKey string) (*core.TaskHistory, bool, error) {
	ds := s.store.WithPartitionKey(partitionKey(platformKey))
	latest := LatestTask{}
	exist, err := ds.Collection(latestCollection).GetOne(latestTaskID, &latest)
	if err != nil || !exist {
		return nil, false, err
	}
	id := latest.TaskId
	if id == 0 {
		id = latest.LastTaskId
	}
	task := core.NewTaskHistory()
	exist, err = ds.Collection(taskCollection).GetOne(taskKey(id), task)
	if err != nil || !exist {
		return nil, false, err
	}
	return task, true, nil
}

// partitionKey keeps raw credentials out of the store.
func partitionKey(platformKey string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(platformKey)))
	return hex.EncodeToString(sum[:16])
}

func taskKey(taskId int64) string {
	return fmt.Sprintf("%019d", taskId)
}

func loadLastTask(ds *store.DataStore) (*core.TaskHistory, error) {
	tasks := ds.Collection(taskCollection)
	latest := LatestTask{}
	exist, err := ds.Collection(latestCollection).GetOne(latestTaskID, &latest)
	if err != nil {
		return nil, err
	}

	taskHistory := core.NewTaskHistory()
	if exist {
		if latest.LastTaskId != 0 {
			previousTask := core.NewTaskHistory()
			found, err := tasks.GetOne(taskKey(latest.LastTaskId), previousTask)
			if err != nil {
				return nil, err
			}
			if found {
				taskHistory.SetPreviousTask(previousTask)
			}
		}
		if latest.TaskId != 0 {
			found, err := tasks.GetOne(taskKey(latest.TaskId), taskHistory)
			if err != nil {
				return nil, err
			}
			if found {
				return taskHistory, nil
			}
		}
	}

	taskHistory.TaskId = max(latest.TaskId, latest.LastTaskId) + 1
	taskHistory.Id = taskKey(taskHistory.TaskId)
	taskHistory.Status = core.StatusInProgress
	return taskHistory, nil
}

func saveTask(ds *store.DataStore, taskHistory *core.TaskHistory) error {
	if err := ds.Collection(taskCollection).UpsertOne(taskHistory); err != nil {
		return err
	}
	latest := LatestTask{Id: latestTaskID}
	if taskHistory.Status == core.StatusCompleted {
		latest.LastTaskId = taskHistory.TaskId
	} else {
		latest.TaskId = taskHistory.TaskId
		if prev := taskHistory.GetPreviousTask(); prev != nil {
			latest.LastTaskId = prev.TaskId
		}
	}
	return ds.Collection(latestCollection).UpsertOne(latest)
}
