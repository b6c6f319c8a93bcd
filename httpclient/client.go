// Package httpclient is a thin typed wrapper over the job server's REST
// surface, used by the REPL shell.
package httpclient

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"

	"github.com/kkloberdanz/jobrun/job"
)

// DefaultServerAddress is the server this client talks to when none is
// given to New.
const DefaultServerAddress = "http://localhost:3030"

// Client wraps an HTTP connection to a job server.
type Client struct {
	serverAddr string
	http       *resty.Client
}

// New creates a Client pointed at serverAddr. An empty serverAddr defaults
// to DefaultServerAddress.
func New(serverAddr string) *Client {
	if serverAddr == "" {
		serverAddr = DefaultServerAddress
	}
	return &Client{
		serverAddr: serverAddr,
		http:       resty.New(),
	}
}

// ServerAddress returns the address this client is configured to talk to.
func (c *Client) ServerAddress() string {
	return c.serverAddr
}

// ListJobs requests the current job ids in the server's registry.
func (c *Client) ListJobs() ([]int, error) {
	var ids []int
	resp, err := c.http.R().SetResult(&ids).Get(c.serverAddr + "/jobs")
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	if resp.IsError() {
		return nil, statusError("list jobs", resp)
	}
	return ids, nil
}

// CreateJob submits spec and returns the assigned JobId.
func (c *Client) CreateJob(spec job.Spec) (int, error) {
	var id int
	resp, err := c.http.R().
		SetBody(spec).
		SetResult(&id).
		Post(c.serverAddr + "/jobs")
	if err != nil {
		return 0, fmt.Errorf("failed to create job: %w", err)
	}
	if resp.IsError() {
		return 0, statusError("create job", resp)
	}
	return id, nil
}

// UpdateJob replaces the spec of an unstarted job.
func (c *Client) UpdateJob(id int, spec job.Spec) error {
	resp, err := c.http.R().
		SetBody(spec).
		Put(fmt.Sprintf("%s/jobs/%d", c.serverAddr, id))
	if err != nil {
		return fmt.Errorf("failed to update job %d: %w", id, err)
	}
	if resp.IsError() {
		return statusError(fmt.Sprintf("update job %d", id), resp)
	}
	return nil
}

// DeleteJob terminates the job's process group and removes it from the
// registry.
func (c *Client) DeleteJob(id int) error {
	resp, err := c.http.R().Delete(fmt.Sprintf("%s/jobs/%d", c.serverAddr, id))
	if err != nil {
		return fmt.Errorf("failed to delete job %d: %w", id, err)
	}
	if resp.IsError() {
		return statusError(fmt.Sprintf("delete job %d", id), resp)
	}
	return nil
}

// WaitJob blocks until the job exits. Per the spec's ordering guarantees,
// this call MUST NOT time out, since a job may run arbitrarily long; the
// request's per-call timeout is explicitly disabled here rather than relying
// on the client's default.
func (c *Client) WaitJob(id int) error {
	resp, err := c.http.R().
		SetTimeout(0).
		Get(fmt.Sprintf("%s/jobs/%d", c.serverAddr, id))
	if err != nil {
		return fmt.Errorf("failed to wait for job %d: %w", id, err)
	}
	if resp.IsError() {
		return statusError(fmt.Sprintf("wait job %d", id), resp)
	}
	return nil
}

// ListJobFiles requests the absolute paths of every file in the job's
// working directory.
func (c *Client) ListJobFiles(id int) ([]string, error) {
	var paths []string
	resp, err := c.http.R().
		SetResult(&paths).
		Get(fmt.Sprintf("%s/jobs/%d/files", c.serverAddr, id))
	if err != nil {
		return nil, fmt.Errorf("failed to list files for job %d: %w", id, err)
	}
	if resp.IsError() {
		return nil, statusError(fmt.Sprintf("list files for job %d", id), resp)
	}
	return paths, nil
}

// GetJobFile downloads a job file's bytes and writes them to a local file of
// the same name in the current directory.
func (c *Client) GetJobFile(id int, name string) error {
	resp, err := c.http.R().Get(fmt.Sprintf("%s/jobs/%d/files/%s", c.serverAddr, id, name))
	if err != nil {
		return fmt.Errorf("failed to download file %q for job %d: %w", name, id, err)
	}
	if resp.IsError() {
		return statusError(fmt.Sprintf("download file %q for job %d", name, id), resp)
	}

	if err := os.WriteFile(name, resp.Body(), 0o644); err != nil {
		return fmt.Errorf("failed to save file %q: %w", name, err)
	}
	return nil
}

// PutJobFile uploads the raw bytes of a local file as name inside the job's
// working directory.
func (c *Client) PutJobFile(id int, name string, data []byte) error {
	resp, err := c.http.R().
		SetBody(data).
		Put(fmt.Sprintf("%s/jobs/%d/files/%s", c.serverAddr, id, name))
	if err != nil {
		return fmt.Errorf("failed to upload file %q for job %d: %w", name, id, err)
	}
	if resp.IsError() {
		return statusError(fmt.Sprintf("upload file %q for job %d", name, id), resp)
	}
	return nil
}

// Shutdown requests the server clear all jobs and gracefully stop.
func (c *Client) Shutdown() error {
	resp, err := c.http.R().Delete(c.serverAddr + "/jobs")
	if err != nil {
		return fmt.Errorf("failed to request shutdown: %w", err)
	}
	if resp.IsError() {
		return statusError("shutdown server", resp)
	}
	return nil
}

func statusError(action string, resp *resty.Response) error {
	return fmt.Errorf("%s: server returned %s: %s", action, resp.Status(), resp.String())
}
