// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	symbolPattern = regexp.MustCompile(`[` +
		`\x{1F300}-\x{1F5FF}\x{1F600}-\x{1F64F}\x{1F680}-\x{1F6FF}\x{1F700}-\x{1F77F}` +
		`\x{1F780}-\x{1F7FF}\x{1F800}-\x{1F8FF}\x{1F900}-\x{1F9FF}\x{1FA00}-\x{1FAFF}` +
		`\x{2500}-\x{2BEF}\x{2700}-\x{27BF}\x{1F1E6}-\x{1F1FF}\x{2600}-\x{26FF}` +
		`]+`)
	headerPattern     = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	boldPattern       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern     = regexp.MustCompile(`\*(.*?)\*`)
	bulletPattern     = regexp.MustCompile(`(?m)^[-*•‣●▪–—]\s+`)
	rulePattern       = regexp.MustCompile(`(?m)^[-=*_]{2,}$`)
	blankLinesPattern = regexp.MustCompile(`\n{2,}`)
	spacesPattern     = regexp.MustCompile(`[ \t]{2,}`)
)

// CleanContent prepares page text for storage and embedding. It applies
// NFKD normalization, drops emoji and pictographic symbols, strips markdown
// emphasis, headers, bullets and rules, and collapses runs of blank lines
// and spaces.
func CleanContent(content string) string {
	if content == "" {
		return ""
	}
	content = norm.NFKD.String(content)
	content = symbolPattern.ReplaceAllString(content, "")
	content = headerPattern.ReplaceAllString(content, "")
	content = boldPattern.ReplaceAllString(content, "$1")
	content = italicPattern.ReplaceAllString(content, "$1")
	content = bulletPattern.ReplaceAllString(content, "")
	content = rulePattern.ReplaceAllString(content, "")
	content = blankLinesPattern.ReplaceAllString(content, "\n")
	content = spacesPattern.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}
