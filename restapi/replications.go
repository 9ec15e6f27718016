package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/backend"
)

// Replications holds the replication REST handlers.
type Replications struct {
	Jobs *Jobs
}

// Register adds the replication methods to r.
func (h Replications) Register(r *Registry) error {
	if err := r.RegisterMethod(POST, "/replications", h.PostReplication); err != nil {
		return err
	}
	if err := r.RegisterMethod(GET, "/replications", h.GetReplications); err != nil {
		return err
	}
	return r.RegisterMethod(GET_ONE, "/replications/:id", h.GetReplication)
}

// PostReplication starts a replication job described by the JSON body and responds with its
// initial state.
func (h Replications) PostReplication(c *gin.Context) {
	job := backend.NewJob(backend.Config{}, backend.Config{})
	if err := c.ShouldBindJSON(&job); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "invalid replication job: " + err.Error()})
		return
	}
	state, err := h.Jobs.Start(job)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	c.Header("Location", c.FullPath()+"/"+state.ID.String())
	c.IndentedJSON(http.StatusAccepted, state)
}

// GetReplications responds with the list of all jobs.
func (h Replications) GetReplications(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, h.Jobs.List())
}

// GetReplication responds with the job whose id matches the id parameter.
func (h Replications) GetReplication(c *gin.Context) {
	id, err := coverage.ParseUUID(c.Param("id"))
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "invalid job id"})
		return
	}
	state, err := h.Jobs.Get(id)
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, state)
}

// NewRouter returns a gin engine serving the replication methods under /api/v1. Handlers are
// wrapped by wrap when not nil, e.g. for bearer token checks.
func NewRouter(jobs *Jobs, wrap func(gin.HandlerFunc) gin.HandlerFunc) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	r := NewRegistry()
	if err := (Replications{Jobs: jobs}).Register(r); err != nil {
		return nil, err
	}
	if err := r.Mount(router.Group("/api/v1"), wrap); err != nil {
		return nil, err
	}
	return router, nil
}
