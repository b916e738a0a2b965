package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stevecastle/sarview/appconfig"
	"github.com/stevecastle/sarview/auth"
	"github.com/stevecastle/sarview/catalog"
	"github.com/stevecastle/sarview/downloads"
	"github.com/stevecastle/sarview/jobqueue"
	"github.com/stevecastle/sarview/renderer"
	"github.com/stevecastle/sarview/stream"
	"github.com/stevecastle/sarview/tasks"
)

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func newServer(deps *Dependencies) http.Handler {
	renderer.AuthMiddleware = deps.Auth.Middleware

	public := func(h http.HandlerFunc) http.HandlerFunc { return renderer.ApplyMiddlewares(h, renderer.RolePublic) }
	admin := func(h http.HandlerFunc) http.HandlerFunc { return renderer.ApplyMiddlewares(h, renderer.RoleAdmin) }

	mux := http.NewServeMux()
	mux.HandleFunc("OPTIONS /", public(func(w http.ResponseWriter, r *http.Request) {}))
	mux.HandleFunc("POST /login", public(loginHandler(deps)))
	mux.HandleFunc("GET /health", public(healthHandler(deps)))
	mux.HandleFunc("GET /stream", stream.StreamHandler)
	mux.HandleFunc("GET /tasks", public(tasksHandler()))

	mux.HandleFunc("GET /users", admin(usersHandler(deps)))
	mux.HandleFunc("POST /users", admin(createUserHandler(deps)))
	mux.HandleFunc("DELETE /users/{name}", admin(deleteUserHandler(deps)))

	mux.HandleFunc("GET /jobs", public(jobsListHandler(deps)))
	mux.HandleFunc("POST /jobs", admin(createJobHandler(deps)))
	mux.HandleFunc("GET /jobs/{id}", public(detailHandler(deps)))
	mux.HandleFunc("POST /jobs/{id}/cancel", admin(cancelHandler(deps)))
	mux.HandleFunc("POST /jobs/{id}/copy", admin(copyHandler(deps)))
	mux.HandleFunc("POST /jobs/{id}/remove", admin(removeHandler(deps)))
	mux.HandleFunc("POST /jobs/clear", admin(clearNonRunningJobsHandler(deps)))

	mux.HandleFunc("GET /scenes", public(scenesHandler(deps)))
	mux.HandleFunc("GET /scenes/{product}", public(sceneHandler(deps)))
	mux.HandleFunc("GET /fetches", public(fetchesHandler()))
	mux.HandleFunc("DELETE /fetches", admin(forgetFetchesHandler()))
	mux.HandleFunc("POST /fetches/{id}/cancel", admin(cancelFetchHandler()))

	mux.HandleFunc("GET /config", admin(configHandler()))
	mux.HandleFunc("POST /config", admin(updateConfigHandler()))
	return mux
}

// -----------------------------------------------------------------------------
// Auth
// -----------------------------------------------------------------------------

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func loginHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := renderer.ReadJSON(r, &req); err != nil {
			renderer.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		token, err := deps.Auth.Login(req.Username, req.Password)
		if errors.Is(err, auth.ErrInvalidCreds) {
			renderer.Error(w, http.StatusUnauthorized, err.Error())
			return
		} else if err != nil {
			renderer.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		renderer.JSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func usersHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := deps.Auth.ListUsers()
		if err != nil {
			renderer.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		renderer.JSON(w, http.StatusOK, map[string]any{"users": users})
	}
}

func createUserHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := renderer.ReadJSON(r, &req); err != nil {
			renderer.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		switch err := deps.Auth.Register(req.Username, req.Password); {
		case errors.Is(err, auth.ErrUserExists):
			renderer.Error(w, http.StatusConflict, err.Error())
		case err != nil:
			renderer.Error(w, http.StatusBadRequest, err.Error())
		default:
			renderer.JSON(w, http.StatusCreated, map[string]string{"username": req.Username})
		}
	}
}

func deleteUserHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch err := deps.Auth.DeleteUser(r.PathValue("name")); {
		case errors.Is(err, auth.ErrUserNotFound):
			renderer.Error(w, http.StatusNotFound, err.Error())
		case errors.Is(err, auth.ErrLastUser):
			renderer.Error(w, http.StatusConflict, err.Error())
		case err != nil:
			renderer.Error(w, http.StatusInternalServerError, err.Error())
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// -----------------------------------------------------------------------------
// Jobs
// -----------------------------------------------------------------------------

func jobsListHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderer.JSON(w, http.StatusOK, map[string]any{"jobs": deps.Queue.GetJobs()})
	}
}

// jobDetail adds the stdout lines a job list leaves out.
type jobDetail struct {
	jobqueue.Job
	Stdout []string `json:"stdout"`
}

func detailHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job := deps.Queue.GetJob(r.PathValue("id"))
		if job == nil {
			renderer.Error(w, http.StatusNotFound, "job not found")
			return
		}
		renderer.JSON(w, http.StatusOK, jobDetail{Job: *job, Stdout: append([]string{}, job.Stdout...)})
	}
}

// CreateJobRequest accepts either a command line in Input ("convert
// --format=png /data/S1A.SAFE"), an explicit Command with Arguments, or a
// workflow of Tasks.
type CreateJobRequest struct {
	Command      string                  `json:"command"`
	Arguments    []string                `json:"arguments"`
	Input        string                  `json:"input"`
	Dependencies []string                `json:"dependencies"`
	Tasks        []jobqueue.WorkflowTask `json:"tasks"`
}

func knownTask(command string) bool {
	_, ok := tasks.Lookup(command)
	return ok
}

func createJobHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateJobRequest
		if err := renderer.ReadJSON(r, &req); err != nil {
			renderer.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		if len(req.Tasks) > 0 {
			for _, t := range req.Tasks {
				if !knownTask(t.Command) {
					renderer.Error(w, http.StatusBadRequest, "unknown task: "+t.Command)
					return
				}
			}
			ids, err := deps.Queue.AddWorkflow(jobqueue.Workflow{Tasks: req.Tasks})
			if err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, jobqueue.ErrJobExists) {
					status = http.StatusConflict
				}
				renderer.Error(w, status, err.Error())
				return
			}
			renderer.JSON(w, http.StatusCreated, map[string]any{"ids": ids})
			return
		}

		cmd, args, input := req.Command, req.Arguments, req.Input
		if cmd == "" {
			parts := ParseCommand(req.Input)
			if len(parts) == 0 {
				renderer.Error(w, http.StatusBadRequest, "invalid input")
				return
			}
			cmd, args, input = parts[0], nil, ""
			if len(parts) > 1 {
				// options first, the last non-option word is the input
				for _, p := range parts[1:] {
					if strings.HasPrefix(p, "-") {
						args = append(args, p)
					} else {
						input = p
					}
				}
			}
		}
		if !knownTask(cmd) {
			renderer.Error(w, http.StatusBadRequest, "unknown task: "+cmd)
			return
		}

		id, err := deps.Queue.AddJob("", cmd, args, input, req.Dependencies)
		if err != nil {
			renderer.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		renderer.JSON(w, http.StatusCreated, map[string]string{"id": id})
	}
}

func jobError(w http.ResponseWriter, err error) {
	if errors.Is(err, jobqueue.ErrJobNotFound) {
		renderer.Error(w, http.StatusNotFound, err.Error())
		return
	}
	renderer.Error(w, http.StatusConflict, err.Error())
}

func cancelHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Queue.CancelJob(r.PathValue("id")); err != nil {
			jobError(w, err)
			return
		}
		renderer.JSON(w, http.StatusOK, map[string]string{"message": "Job cancelled successfully"})
	}
}

func copyHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		newID, err := deps.Queue.CopyJob(r.PathValue("id"))
		if err != nil {
			jobError(w, err)
			return
		}
		renderer.JSON(w, http.StatusCreated, map[string]string{"id": newID, "message": "Job copied successfully"})
	}
}

func removeHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Queue.RemoveJob(r.PathValue("id")); err != nil {
			jobError(w, err)
			return
		}
		renderer.JSON(w, http.StatusOK, map[string]string{"message": "Job removed successfully"})
	}
}

func clearNonRunningJobsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clearedCount, err := deps.Queue.ClearNonRunningJobs()
		if err != nil {
			renderer.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		renderer.JSON(w, http.StatusOK, map[string]any{
			"cleared_count": clearedCount,
			"message":       "Cleared " + strconv.Itoa(clearedCount) + " non-running jobs",
		})
	}
}

// TaskInfo is the public view of a registered task.
type TaskInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func tasksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var taskList []TaskInfo
		for _, t := range tasks.List() {
			taskList = append(taskList, TaskInfo{ID: t.ID, Name: t.Name})
		}
		renderer.JSON(w, http.StatusOK, map[string]any{"tasks": taskList})
	}
}

// healthHandler provides system health information including stream connections
func healthHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderer.JSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"stream":    stream.GetConnectionStats(),
			"jobs":      deps.Queue.Counts(),
			"fetches":   len(downloads.GetManager().List()),
		})
	}
}

// -----------------------------------------------------------------------------
// Scenes and fetches
// -----------------------------------------------------------------------------

func queryInt(r *http.Request, key string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

func scenesHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset := queryInt(r, "offset", 0, 0)
		limit := queryInt(r, "limit", 50, 500)
		if limit == 0 {
			limit = 50
		}
		scenes, hasMore, err := catalog.List(deps.DB, offset, limit, r.URL.Query().Get("q"))
		if err != nil {
			renderer.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if scenes == nil {
			scenes = []catalog.Scene{}
		}
		renderer.JSON(w, http.StatusOK, map[string]any{"scenes": scenes, "hasMore": hasMore})
	}
}

func sceneHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := catalog.Get(deps.DB, r.PathValue("product"))
		if err != nil {
			renderer.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s == nil {
			renderer.Error(w, http.StatusNotFound, "scene not found")
			return
		}
		renderer.JSON(w, http.StatusOK, s)
	}
}

func fetchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderer.JSON(w, http.StatusOK, map[string]any{"fetches": downloads.GetManager().List()})
	}
}

func forgetFetchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		downloads.GetManager().Forget()
		renderer.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// cancelFetchHandler stops a download without touching its job; the fetch
// task then ends the job cancelled.
func cancelFetchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !downloads.GetManager().Cancel(r.PathValue("id")) {
			renderer.Error(w, http.StatusNotFound, "no running fetch with that id")
			return
		}
		renderer.JSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
	}
}

// -----------------------------------------------------------------------------
// Config
// -----------------------------------------------------------------------------

const redacted = "********"

func redact(c appconfig.Config) appconfig.Config {
	if c.JWTSecret != "" {
		c.JWTSecret = redacted
	}
	if c.S3.SecretAccessKey != "" {
		c.S3.SecretAccessKey = redacted
	}
	return c
}

func configHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderer.JSON(w, http.StatusOK, redact(appconfig.Get()))
	}
}

// updateConfigHandler merges the posted fields into the current config and
// saves it. Redacted or empty secrets keep their current values. A changed
// dbPath takes effect on the next start.
func updateConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oldCfg := appconfig.Get()
		newCfg := oldCfg
		if err := renderer.ReadJSON(r, &newCfg); err != nil {
			renderer.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if newCfg.JWTSecret == "" || newCfg.JWTSecret == redacted {
			newCfg.JWTSecret = oldCfg.JWTSecret
		}
		if newCfg.S3.SecretAccessKey == "" || newCfg.S3.SecretAccessKey == redacted {
			newCfg.S3.SecretAccessKey = oldCfg.S3.SecretAccessKey
		}
		newCfg.DBPath = strings.TrimSpace(newCfg.DBPath)
		if newCfg.DBPath == "" {
			renderer.Error(w, http.StatusBadRequest, "dbPath cannot be empty")
			return
		}
		if err := newCfg.Processing.Validate(); err != nil {
			renderer.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		cfgPath, err := saveConfig(newCfg)
		if err != nil {
			renderer.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		appconfig.Set(newCfg)

		old, _ := json.Marshal(oldCfg)
		cur, _ := json.Marshal(newCfg)
		renderer.JSON(w, http.StatusOK, map[string]any{
			"status":          "ok",
			"configPath":      cfgPath,
			"changed":         string(old) != string(cur),
			"restartRequired": newCfg.DBPath != oldCfg.DBPath || newCfg.ListenAddr != oldCfg.ListenAddr,
		})
	}
}

// saveConfig is replaced in tests.
var saveConfig = appconfig.Save

// ParseCommand splits a command line on spaces, keeping double-quoted
// sections together.
func ParseCommand(input string) []string {
	var (
		result   []string
		current  strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch c {
		case '"':
			inQuotes = !inQuotes
		case ' ':
			if inQuotes {
				current.WriteByte(c)
			} else if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
		default:
			current.WriteByte(c)
		}
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}
