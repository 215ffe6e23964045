package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ProvisionRequest is the body of POST /auto-provision.
type ProvisionRequest struct {
	UserID      string `json:"userId"`
	ProjectName string `json:"projectName,omitempty"`
}

// ProvisionResponse is the success body of POST /auto-provision.
type ProvisionResponse struct {
	Success        bool   `json:"success"`
	ProjectSlug    string `json:"projectSlug"`
	TeamSlug       string `json:"teamSlug"`
	DeploymentName string `json:"deploymentName"`
	DeploymentURL  string `json:"deploymentUrl"`
	AdminKey       string `json:"adminKey"`
}

type createProjectRequest struct {
	Team           string `json:"team"`
	ProjectName    string `json:"projectName"`
	DeploymentType string `json:"deploymentType"`
}

type createProjectResponse struct {
	ProjectSlug    string `json:"projectSlug"`
	ProjectID      int64  `json:"projectId"`
	TeamSlug       string `json:"teamSlug"`
	DeploymentName string `json:"deploymentName"`
	// ProdURL carries the dev deployment URL despite the name; that is
	// what the provider returns for deploymentType "dev".
	ProdURL  string `json:"prodUrl"`
	AdminKey string `json:"adminKey"`
}

// AutoProvision handles POST /auto-provision: it creates a project under
// the operator's team via the hosting provider and returns the connection
// credentials.
func (a *API) AutoProvision(w http.ResponseWriter, r *http.Request) {
	if a.token == nil || a.teamSlug == "" {
		a.logger.Error("provisioning service token or team slug not configured")
		writeError(w, http.StatusInternalServerError, "Server configuration error")
		return
	}

	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	projectName := req.ProjectName
	if projectName == "" {
		projectName = fmt.Sprintf("user-%s-%d", req.UserID, time.Now().UnixMilli())
	}
	projectName = Slugify(projectName)

	created, err := a.createProject(r, projectName)
	if err != nil {
		a.logger.Error("creating project",
			slog.String("project_name", projectName),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to provision project")
		return
	}

	if a.projects != nil {
		if err := a.projects.Append(req.UserID, created.ProjectSlug, created.TeamSlug, created.DeploymentName); err != nil {
			a.logger.Error("recording provisioned project", slog.String("error", err.Error()))
		}
	}

	writeJSON(w, http.StatusOK, ProvisionResponse{
		Success:        true,
		ProjectSlug:    created.ProjectSlug,
		TeamSlug:       created.TeamSlug,
		DeploymentName: created.DeploymentName,
		DeploymentURL:  created.ProdURL,
		AdminKey:       created.AdminKey,
	})
}

func (a *API) createProject(r *http.Request, projectName string) (*createProjectResponse, error) {
	body, err := json.Marshal(createProjectRequest{
		Team:           a.teamSlug,
		ProjectName:    projectName,
		DeploymentType: "dev",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, a.host+"/api/create_project", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := a.token.Open()
	if err != nil {
		return nil, fmt.Errorf("opening service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.String())
	token.Destroy()

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, msg)
	}

	var created createProjectResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding provider response: %w", err)
	}
	return &created, nil
}
