// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"strings"
	"testing"
)

const successStream = `event: status
data: {"type":"status","stage":"resolving_access","message":"Resolving store access"}

event: sql
data: {"type":"sql","sql":"SELECT 1"}

event: query_complete
data: {"type":"query_complete","row_count":3}

: ping

event: analysis_chunk
data: {"type":"analysis_chunk","chunk":"Revenue is "}

event: analysis_chunk
data: {"type":"analysis_chunk","chunk":"up 12%."}

event: complete
data: {"type":"complete","metadata":{"question":"q","mode":"portfolio","store_count":2,"stores":["A","B"],"time_range_days":14,"row_count":3,"execution_time":"9ms"}}

`

func TestConsumeStreamSuccess(t *testing.T) {
	var out, errOut strings.Builder
	if err := consumeStream(strings.NewReader(successStream), &out, &errOut); err != nil {
		t.Fatalf("consumeStream: %v", err)
	}

	if !strings.Contains(out.String(), "Revenue is up 12%.") {
		t.Errorf("stdout = %q, want assembled chunks", out.String())
	}
	if !strings.Contains(out.String(), "portfolio mode") {
		t.Errorf("stdout = %q, want metadata footer", out.String())
	}
	if !strings.Contains(errOut.String(), "[resolving_access]") {
		t.Errorf("stderr = %q, want status lines", errOut.String())
	}
	if !strings.Contains(errOut.String(), "[query] 3 rows") {
		t.Errorf("stderr = %q, want query line", errOut.String())
	}
}

func TestConsumeStreamErrorEvent(t *testing.T) {
	stream := `event: status
data: {"type":"status","stage":"generating_query","message":"Writing the query"}

event: error
data: {"type":"error","kind":"execution_failed","error":"query execution failed"}

`
	var out, errOut strings.Builder
	err := consumeStream(strings.NewReader(stream), &out, &errOut)
	if err == nil {
		t.Fatal("expected error for terminal error event")
	}
	if !strings.Contains(err.Error(), "execution_failed") {
		t.Errorf("error = %v, want kind in message", err)
	}
}

func TestConsumeStreamTruncated(t *testing.T) {
	stream := `event: status
data: {"type":"status","stage":"analyzing","message":"Interpreting the results"}

`
	var out, errOut strings.Builder
	if err := consumeStream(strings.NewReader(stream), &out, &errOut); err == nil {
		t.Fatal("expected error for stream without terminal event")
	}
}
