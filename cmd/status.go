package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(cmd, fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}
	jobID := args[0]
	return getJobStatus(cmd, fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func listJobs(cmd *cobra.Command, url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		printf(cmd, "No jobs found\n")
		return nil
	}

	printf(cmd, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		config, _ := job["config"].(map[string]interface{})
		printf(cmd, "Job ID: %s\n", job["id"])
		printf(cmd, "  State: %s\n", job["state"])
		printf(cmd, "  Objective: %v (N=%v)\n", config["objective"], config["dimension"])
		printf(cmd, "  Evaluations: %v\n", job["evaluations"])
		printf(cmd, "  Best value: %v\n", job["bestValue"])
		printf(cmd, "\n")
	}

	return nil
}

func getJobStatus(cmd *cobra.Command, url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	printf(cmd, "Job: %s\n", status["id"])
	printf(cmd, "State: %s\n\n", status["state"])

	config, _ := status["config"].(map[string]interface{})
	printf(cmd, "Configuration:\n")
	printf(cmd, "  Objective: %v\n", config["objective"])
	printf(cmd, "  Dimension: %v\n", config["dimension"])
	printf(cmd, "  Bounds: %v .. %v\n", config["lower"], config["upper"])
	printf(cmd, "  Sweeps: %v, Budget: %v, Local: %v, Gamma: %v, Smax: %v\n\n",
		config["nsweeps"], config["maxEvaluations"], config["localSearchDepth"], config["gamma"], config["smax"])

	printf(cmd, "Progress:\n")
	printf(cmd, "  Best value: %v\n", status["bestValue"])
	if point, ok := status["bestPoint"].([]interface{}); ok && len(point) > 0 {
		printf(cmd, "  Best point: %v\n", point)
	}
	printf(cmd, "  Evaluations: %v (local %v, infeasible %v)\n",
		status["evaluations"], status["localEvaluations"], status["infeasible"])
	if exit, ok := status["exitStatus"].(string); ok && exit != "" {
		printf(cmd, "  Exit status: %s\n", exit)
	}

	if elapsed, ok := status["elapsed"].(float64); ok {
		printf(cmd, "  Elapsed: %s\n", time.Duration(elapsed*float64(time.Second)).Round(time.Millisecond))
	}
	if rate, ok := status["evalsPerSecond"].(float64); ok && rate > 0 {
		printf(cmd, "  Throughput: %.0f evaluations/sec\n", rate)
	}

	if msg, ok := status["error"].(string); ok && msg != "" {
		printf(cmd, "\nError: %s\n", msg)
	}

	return nil
}
