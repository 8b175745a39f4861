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

package core

import "strings"

// RepairJSON fixes the malformed JSON models commonly emit: object keys
// missing their opening quote or both quotes, and trailing commas before a
// closing brace or bracket. String literals are copied untouched and valid
// JSON comes back unchanged.
func RepairJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	inString, escaped := false, false
	// keyPos is set after '{' or ',' where an object key may start.
	keyPos := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			keyPos = false
			b.WriteByte(c)
		case c == ',' && closerFollows(s, i+1):
			// trailing comma
		case c == '{' || c == ',':
			keyPos = true
			b.WriteByte(c)
		case isJSONSpace(c):
			b.WriteByte(c)
		case keyPos && isIdentStart(c):
			end := i + 1
			for end < len(s) && isIdentPart(s[end]) {
				end++
			}
			next := end
			if next < len(s) && s[next] == '"' {
				next++
			}
			if colon := skipJSONSpace(s, next); colon < len(s) && s[colon] == ':' {
				b.WriteByte('"')
				b.WriteString(s[i:end])
				b.WriteByte('"')
				i = next - 1
			} else {
				b.WriteByte(c)
			}
			keyPos = false
		default:
			keyPos = false
			b.WriteByte(c)
		}
	}
	return b.String()
}

func closerFollows(s string, i int) bool {
	i = skipJSONSpace(s, i)
	return i < len(s) && (s[i] == '}' || s[i] == ']')
}

func skipJSONSpace(s string, i int) int {
	for i < len(s) && isJSONSpace(s[i]) {
		i++
	}
	return i
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
