// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/InitiativeHub/pkg/streamio"
)

// httpClient has no overall timeout; streamed runs can legitimately run
// for minutes. Connection setup is still bounded.
var httpClient = &http.Client{
	Transport: &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
	},
}

type askRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`
	Provider  string `json:"provider,omitempty"`
}

func newAskCmd() *cobra.Command {
	var stream bool
	var showSteps bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			if stream {
				return runStreamingAsk(question)
			}
			return runOneShotAsk(question, showSteps)
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "stream reasoning steps live")
	cmd.Flags().BoolVar(&showSteps, "steps", false, "print intermediate steps after the answer")
	return cmd
}

func runOneShotAsk(question string, showSteps bool) error {
	body, err := postJSON("/v1/ask", askRequest{
		SessionID: sessionID, Query: question, Provider: provider,
	})
	if err != nil {
		return err
	}

	var resp struct {
		Answer     string `json:"answer"`
		RunID      string `json:"run_id"`
		SessionID  string `json:"session_id"`
		Iterations int    `json:"iterations"`
		Steps      []struct {
			Iteration int    `json:"iteration"`
			Thought   string `json:"thought"`
			Tool      string `json:"tool"`
		} `json:"steps"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	fmt.Println(render(answerStyle, resp.Answer))
	if showSteps {
		for _, s := range resp.Steps {
			line := fmt.Sprintf("  [%d] %s", s.Iteration, s.Thought)
			if s.Tool != "" {
				line += " -> " + s.Tool
			}
			fmt.Println(render(dimStyle, line))
		}
	}
	fmt.Println(render(dimStyle, fmt.Sprintf("session %s | run %s | %d iterations",
		resp.SessionID, resp.RunID, resp.Iterations)))
	return nil
}

func runStreamingAsk(question string) error {
	data, _ := json.Marshal(askRequest{
		SessionID: sessionID, Query: question, Provider: provider,
	})
	req, err := http.NewRequest(http.MethodPost, serverURL+"/v1/ask/stream", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to assistant: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	result, err := streamio.Process(resp.Body, streamio.Handler{
		OnRunStarted: func(sess, run string) {
			fmt.Println(render(dimStyle, fmt.Sprintf("session %s | run %s (cancel with: initiativectl cancel %s)", sess, run, run)))
		},
		OnThought: func(content string) {
			fmt.Println(render(thoughtStyle, "thinking: "+content))
		},
		OnAction: func(tool string, _ map[string]any) {
			fmt.Println(render(actionStyle, "using tool: "+tool))
		},
		OnObservation: func(_, errMsg string) {
			if errMsg != "" {
				fmt.Println(render(dimStyle, "tool note: "+errMsg))
			}
		},
		OnError: func(errMsg string) {
			fmt.Println(render(errorStyle, "run failed: "+errMsg))
		},
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(render(answerStyle, result.Answer))
	if !result.ChainOK {
		fmt.Println(render(errorStyle, "warning: stream integrity check failed; the answer may be incomplete"))
	}
	return nil
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [run-id]",
		Short: "Cancel an in-flight run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := postJSON("/v1/runs/cancel", map[string]string{"run_id": args[0]})
			if err != nil {
				return err
			}
			var resp struct {
				Cancelled bool `json:"cancelled"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			if resp.Cancelled {
				fmt.Println("run cancelled")
			} else {
				fmt.Println("run was already cancelled")
			}
			return nil
		},
	}
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the model providers available to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodGet, serverURL+"/v1/providers", nil)
			if err != nil {
				return err
			}
			setAuth(req)
			resp, err := httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("connect to assistant: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return readAPIError(resp)
			}

			var body struct {
				Providers []struct {
					ID        string `json:"id"`
					Tier      string `json:"capability_tier"`
					Available bool   `json:"availability"`
				} `json:"providers"`
				Default string `json:"default"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			for _, p := range body.Providers {
				line := p.ID
				if p.ID == body.Default {
					line += " (default)"
				}
				line += " tier=" + p.Tier
				if !p.Available {
					line += " [unavailable]"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func postJSON(path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, serverURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to assistant: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

func setAuth(req *http.Request) {
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
	}
	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}
