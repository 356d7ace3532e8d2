// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provider

import (
	"fmt"
	"strings"
)

// renderSystem combines the caller's system instructions with the tool
// protocol for the schemas visible to this run. Backends share this so
// every provider sees the same contract.
func renderSystem(req Request) string {
	var b strings.Builder
	b.WriteString(req.System)

	if len(req.Tools) == 0 {
		b.WriteString("\n\nNo tools are available. Reply with:\nThought: <reasoning>\nFinal Answer: <answer>\n")
		return b.String()
	}

	b.WriteString("\n\nYou can use these tools, at most one per turn:\n")
	for _, t := range req.Tools {
		b.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
		for _, p := range t.Parameters {
			req := "optional"
			if p.Required {
				req = "required"
			}
			b.WriteString(fmt.Sprintf("    %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description))
		}
	}

	b.WriteString(`
Reply in exactly one of these two forms.

To call a tool:
Thought: <why this tool>
Action: <tool name>
Action Input: <JSON object of arguments>

To finish:
Thought: <reasoning>
Final Answer: <answer for the user>
`)
	return b.String()
}
