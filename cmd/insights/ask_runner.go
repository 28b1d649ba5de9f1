// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wizelai/insights/services/insights/datatypes"
)

// askClient is shared by both endpoints. Streaming responses are
// long-lived, so there is no client-level timeout; the server enforces
// its own ceiling.
var askClient = &http.Client{}

func runAskCommand(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	payload := map[string]any{"question": question}
	if len(storeIDs) > 0 {
		payload["store_ids"] = storeIDs
	}
	if expertise != "" {
		payload["expertise_level"] = expertise
	}
	body, err := json.Marshal(payload)
	if err != nil {
		fatalf("failed to encode request: %v", err)
	}

	if stream {
		runAskStreaming(body)
		return
	}
	runAskBuffered(body)
}

// =============================================================================
// Buffered
// =============================================================================

func runAskBuffered(body []byte) {
	resp, err := postAnalyze("/v1/analyze", body)
	if err != nil {
		fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fatalf("failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp datatypes.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			printError(errResp)
			os.Exit(1)
		}
		fatalf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var analyzeResp datatypes.AnalyzeResponse
	if err := json.Unmarshal(data, &analyzeResp); err != nil {
		fatalf("unexpected response: %v", err)
	}

	if showSQL && analyzeResp.Metadata != nil {
		fmt.Println("-- SQL --")
		fmt.Println(analyzeResp.Metadata.SQL)
		fmt.Println()
	}
	fmt.Println(analyzeResp.Analysis)
	if analyzeResp.Metadata != nil {
		printFooter(os.Stdout, analyzeResp.Metadata)
	}
}

func printError(errResp datatypes.ErrorResponse) {
	fmt.Fprintf(os.Stderr, "error (%s): %s\n", errResp.Kind, errResp.Error)
	if len(errResp.UnauthorizedStores) > 0 {
		fmt.Fprintf(os.Stderr, "unauthorized stores: %s\n", strings.Join(errResp.UnauthorizedStores, ", "))
	}
	if errResp.SQL != "" {
		fmt.Fprintf(os.Stderr, "failing SQL: %s\n", errResp.SQL)
	}
}

func printFooter(out io.Writer, meta *datatypes.AnalyzeMetadata) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "[%s mode] %d store(s), last %d days, %d rows in %s",
		meta.Mode, meta.StoreCount, meta.TimeRangeDays, meta.RowCount, meta.ExecutionTime)
	if meta.Cost != nil {
		fmt.Fprintf(out, ", $%.4f", meta.Cost.TotalUSD)
	}
	fmt.Fprintln(out)
	for _, w := range meta.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
}

// =============================================================================
// Streaming
// =============================================================================

func runAskStreaming(body []byte) {
	resp, err := postAnalyze("/v1/analyze/stream", body)
	if err != nil {
		fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		fatalf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	if err := consumeStream(resp.Body, os.Stdout, os.Stderr); err != nil {
		fatalf("%v", err)
	}
}

// consumeStream reads SSE frames and renders them: chunks to out as
// they arrive, progress and failures to errOut. Returns an error when
// the stream ends with a terminal error event.
func consumeStream(r io.Reader, out, errOut io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var sawChunk bool
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			// Event-name lines, comments, and blank separators.
			continue
		}

		var ev datatypes.StreamEvent
		if err := json.Unmarshal([]byte(line[len("data: "):]), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case datatypes.EventStatus:
			fmt.Fprintf(errOut, "[%s] %s\n", ev.Stage, ev.Message)
		case datatypes.EventSQL:
			if showSQL {
				fmt.Fprintf(errOut, "-- SQL --\n%s\n", ev.SQL)
			}
		case datatypes.EventQueryComplete:
			fmt.Fprintf(errOut, "[query] %d rows\n", ev.RowCount)
		case datatypes.EventAnalysisChunk:
			fmt.Fprint(out, ev.Chunk)
			sawChunk = true
		case datatypes.EventComplete:
			if sawChunk {
				fmt.Fprintln(out)
			}
			if ev.Metadata != nil {
				printFooter(out, ev.Metadata)
			}
			return nil
		case datatypes.EventError:
			if sawChunk {
				fmt.Fprintln(out)
			}
			return fmt.Errorf("analysis failed (%s): %s", ev.Kind, ev.Error)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream interrupted: %w", err)
	}
	return fmt.Errorf("stream ended without a terminal event")
}

// =============================================================================
// Status
// =============================================================================

func runStatusCommand(cmd *cobra.Command, args []string) {
	req, err := http.NewRequest(http.MethodGet, serverURL()+"/v1/status", nil)
	if err != nil {
		fatalf("failed to build request: %v", err)
	}
	setAuth(req)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fatalf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		fmt.Println(pretty.String())
		return
	}
	fmt.Println(string(data))
}

// =============================================================================
// Helpers
// =============================================================================

func postAnalyze(path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, serverURL()+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req)
	return askClient.Do(req)
}

func setAuth(req *http.Request) {
	if token := authToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
