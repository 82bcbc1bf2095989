package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/studygen/internal/clients/jobapi"
	"github.com/yungbote/studygen/internal/domain/jobs"
)

var statusCmd = &cobra.Command{
	Use:   "status JOB_ID",
	Short: "Print a job record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd, nil)
		if err != nil {
			return err
		}
		defer log.Sync()
		client, err := jobapi.New(log, cfg.APIURL)
		if err != nil {
			return err
		}
		job, err := client.GetJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel JOB_ID",
	Short: "Cancel a pending or processing job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd, nil)
		if err != nil {
			return err
		}
		defer log.Sync()
		client, err := jobapi.New(log, cfg.APIURL)
		if err != nil {
			return err
		}
		if err := client.CancelJob(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", args[0])
		return nil
	},
}

var (
	submitType       string
	submitKind       string
	submitFailAtStep int
	submitWatch      bool
)

var submitCmd = &cobra.Command{
	Use:   "submit SOURCE",
	Short: "Start a generation job for a video URL or uploaded file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitType, "type", "summary", "summary, quiz or flashcards")
	submitCmd.Flags().StringVar(&submitKind, "kind", "", "video_url or upload (default: inferred from SOURCE)")
	submitCmd.Flags().IntVar(&submitFailAtStep, "fail-at-step", 0, "ask the dev server to fail the job at this step (1-4)")
	submitCmd.Flags().BoolVar(&submitWatch, "watch", false, "follow the job after submitting it")
	addWatchFlags(submitCmd)

	rootCmd.AddCommand(statusCmd, cancelCmd, submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd, watchOverrides(cmd))
	if err != nil {
		return err
	}
	defer log.Sync()

	req, err := buildCreateRequest(args[0], submitType, submitKind, submitFailAtStep)
	if err != nil {
		return err
	}
	client, err := jobapi.New(log, cfg.APIURL)
	if err != nil {
		return err
	}
	job, err := client.CreateJob(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), job.ID)
	if !submitWatch {
		return nil
	}
	return watchJob(cmd, log, cfg, client, job.ID)
}

func buildCreateRequest(source, typ, kind string, failAtStep int) (jobapi.CreateJobRequest, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return jobapi.CreateJobRequest{}, fmt.Errorf("source is required")
	}
	jt, err := parseJobType(typ)
	if err != nil {
		return jobapi.CreateJobRequest{}, err
	}
	sk := jobs.SourceKind(strings.ToLower(strings.TrimSpace(kind)))
	switch sk {
	case "":
		sk = jobs.SourceUpload
		if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
			sk = jobs.SourceVideoURL
		}
	case jobs.SourceUpload, jobs.SourceVideoURL:
	default:
		return jobapi.CreateJobRequest{}, fmt.Errorf("unknown source kind %q", kind)
	}

	req := jobapi.CreateJobRequest{Type: jt, SourceKind: sk, SourceName: source}
	if failAtStep > 0 {
		req.Options = map[string]any{"fail_at_step": failAtStep}
	}
	return req, nil
}

func parseJobType(s string) (jobs.JobType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "summary", string(jobs.JobTypeSummary):
		return jobs.JobTypeSummary, nil
	case "quiz", string(jobs.JobTypeQuiz):
		return jobs.JobTypeQuiz, nil
	case "flashcard", "flashcards", string(jobs.JobTypeFlashcard):
		return jobs.JobTypeFlashcard, nil
	default:
		return "", fmt.Errorf("unknown job type %q", s)
	}
}
