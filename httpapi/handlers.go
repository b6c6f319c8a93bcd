package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kkloberdanz/jobrun/job"
)

// jobIDParam parses the ":id" path parameter. On failure it writes 400 and
// returns ok=false; callers should return immediately.
func jobIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return 0, false
	}
	return id, true
}

// listJobs handles GET /jobs.
func (s *Server) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, s.reg.GetJobList())
}

// createJob handles POST /jobs and POST /jobs/.
func (s *Server) createJob(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJobBodyBytes)

	var spec job.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.reg.InsertJob(spec)
	if err != nil {
		status, msg := registryErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, id)
}

// clearJobs handles DELETE /jobs: clear the registry, then trigger graceful
// shutdown.
func (s *Server) clearJobs(c *gin.Context) {
	s.reg.ClearJobs()
	c.Status(http.StatusNoContent)

	select {
	case <-s.shutdownCh:
		// An earlier DELETE /jobs already closed the channel; nothing more to do.
	default:
		close(s.shutdownCh)
	}
}

// waitJob handles GET /jobs/{id}: start the job implicitly if needed, block
// until it exits, and report 204. There is no request timeout on this
// route.
func (s *Server) waitJob(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}

	if err := s.reg.WaitJob(id); err != nil {
		status, msg := registryErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.Status(http.StatusNoContent)
}

// updateJob handles PUT /jobs/{id}: replace an unstarted job's spec.
func (s *Server) updateJob(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJobBodyBytes)

	var spec job.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.reg.UpdateJob(id, spec); err != nil {
		status, msg := registryErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.Status(http.StatusOK)
}

// deleteJob handles DELETE /jobs/{id}: terminate the job's group and remove
// it from the registry.
func (s *Server) deleteJob(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}

	if err := s.reg.DeleteJob(id); err != nil {
		status, msg := registryErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.Status(http.StatusNoContent)
}

// listJobFiles handles GET /jobs/{id}/files.
func (s *Server) listJobFiles(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}

	paths, err := s.reg.ListJobFiles(id)
	if err != nil {
		status, msg := registryErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, paths)
}

// getJobFile handles GET /jobs/{id}/files/{name}.
func (s *Server) getJobFile(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}

	data, err := s.reg.GetJobFile(id, c.Param("name"))
	if err != nil {
		status, msg := registryErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.Data(http.StatusOK, "application/octet-stream", data)
}

// putJobFile handles PUT /jobs/{id}/files/{name}: raw bytes in the request
// body, not JSON.
func (s *Server) putJobFile(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.reg.PutJobFile(id, c.Param("name"), body); err != nil {
		status, msg := registryErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.Status(http.StatusOK)
}
