package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pulsewatch/internal/models"
)

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *APIClient) doRequest(method, path string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(respBody))
	}

	return respBody, nil
}

func (c *APIClient) ListRules(enabled *bool) ([]models.Alert, error) {
	path := "/api/v1/rules"
	if enabled != nil {
		path = fmt.Sprintf("%s?enabled=%v", path, *enabled)
	}

	resp, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}
	var rules []models.Alert
	if err := json.Unmarshal(resp, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *APIClient) GetRule(id uint) (*models.Alert, error) {
	resp, err := c.doRequest("GET", fmt.Sprintf("/api/v1/rules/%d", id), nil)
	if err != nil {
		return nil, err
	}
	var rule models.Alert
	if err := json.Unmarshal(resp, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (c *APIClient) CreateRule(req map[string]interface{}) (*models.Alert, error) {
	resp, err := c.doRequest("POST", "/api/v1/rules", req)
	if err != nil {
		return nil, err
	}
	var rule models.Alert
	if err := json.Unmarshal(resp, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (c *APIClient) UpdateRule(id uint, req map[string]interface{}) error {
	_, err := c.doRequest("PUT", fmt.Sprintf("/api/v1/rules/%d", id), req)
	return err
}

func (c *APIClient) DeleteRule(id uint) error {
	_, err := c.doRequest("DELETE", fmt.Sprintf("/api/v1/rules/%d", id), nil)
	return err
}

func (c *APIClient) EnableRule(id uint) error {
	_, err := c.doRequest("PUT", fmt.Sprintf("/api/v1/rules/%d/enable", id), nil)
	return err
}

func (c *APIClient) DisableRule(id uint) error {
	_, err := c.doRequest("PUT", fmt.Sprintf("/api/v1/rules/%d/disable", id), nil)
	return err
}

func (c *APIClient) ImportRules(rules []models.Alert) error {
	_, err := c.doRequest("POST", "/api/v1/rules/import", rules)
	return err
}

func (c *APIClient) ExportRules() ([]models.Alert, error) {
	resp, err := c.doRequest("GET", "/api/v1/rules/export", nil)
	if err != nil {
		return nil, err
	}
	var rules []models.Alert
	if err := json.Unmarshal(resp, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *APIClient) ListAlerts() ([]models.Alert, error) {
	resp, err := c.doRequest("GET", "/api/v1/alerts", nil)
	if err != nil {
		return nil, err
	}
	var alerts []models.Alert
	if err := json.Unmarshal(resp, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (c *APIClient) AcknowledgeAlert(id uint, actor string) error {
	body := map[string]string{"actor": actor}
	_, err := c.doRequest("POST", fmt.Sprintf("/api/v1/alerts/%d/acknowledge", id), body)
	return err
}

func (c *APIClient) ListProjects() ([]models.Project, error) {
	resp, err := c.doRequest("GET", "/api/v1/projects", nil)
	if err != nil {
		return nil, err
	}
	var projects []models.Project
	if err := json.Unmarshal(resp, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *APIClient) CreateProject(name, description string) (*models.Project, error) {
	body := map[string]string{"name": name, "description": description}
	resp, err := c.doRequest("POST", "/api/v1/projects", body)
	if err != nil {
		return nil, err
	}
	var project models.Project
	if err := json.Unmarshal(resp, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *APIClient) PushSample(sample *models.MetricSample) error {
	_, err := c.doRequest("POST", "/api/v1/metrics", sample)
	return err
}
