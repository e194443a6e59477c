package main

import (
	"context"
	"fmt"

	"github.com/novaguard-ai/ckg-pipeline/internal/config"
	"github.com/novaguard-ai/ckg-pipeline/internal/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show the state of an analysis request",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg.ValidateOrFatal(config.ValidationContextSubmit)

	ctx := context.Background()
	s, err := store.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("connect to request store: %w", err)
	}
	defer s.Close()

	req, err := s.GetRequest(ctx, args[0])
	if err != nil {
		return fmt.Errorf("load request %s: %w", args[0], err)
	}

	fmt.Printf("Request:    %s\n", req.RequestID)
	fmt.Printf("Kind:       %s\n", req.Kind)
	fmt.Printf("Project:    %s\n", req.ProjectID)
	fmt.Printf("Repository: %s (%s)\n", req.RepoURL, req.RepoBranch)
	fmt.Printf("Status:     %s\n", req.Status)
	fmt.Printf("Requested:  %s\n", req.RequestedAt.Format("2006-01-02 15:04:05 MST"))
	if req.StartedAt != nil {
		fmt.Printf("Started:    %s\n", req.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if req.CompletedAt != nil {
		fmt.Printf("Completed:  %s\n", req.CompletedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if req.ErrorMessage != "" {
		fmt.Printf("Error:      %s\n", req.ErrorMessage)
	}
	if req.ProjectGraphID != "" {
		fmt.Printf("Graph:      %s\n", req.ProjectGraphID)
	}
	return nil
}
