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

package retrieval

import (
	"log/slog"
	"runtime"
	"strings"
)

const (
	// DefaultMaxRounds bounds the judge/fetch cycle of a FilterLoop.
	DefaultMaxRounds = 8

	// DefaultMaxVectorCandidates caps the candidates kept by a VectorFilter.
	DefaultMaxVectorCandidates = 10
)

// DefaultExcludedExtensions lists file types that cannot be summarized as text.
var DefaultExcludedExtensions = []string{".pdf", ".png", ".docx", ".jpeg", ".jpg"}

type options struct {
	logger              *slog.Logger
	poolSize            int
	excluded            []string
	maxRounds           int
	monitor             FilterMonitor
	maxVectorCandidates int
}

func defaultOptions() options {
	poolSize := runtime.NumCPU()
	if poolSize < 4 {
		poolSize = 4
	}
	return options{
		logger:              slog.Default(),
		poolSize:            poolSize,
		excluded:            DefaultExcludedExtensions,
		maxRounds:           DefaultMaxRounds,
		monitor:             &noopMonitor{},
		maxVectorCandidates: DefaultMaxVectorCandidates,
	}
}

// Option configures the components of this package. Options that do not
// apply to a component are ignored by it.
type Option func(*options)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
	}
}

// WithPoolSize sets the number of concurrent searches an Aggregator runs.
func WithPoolSize(size int) Option {
	return func(o *options) {
		if size < 1 {
			size = 1
		}
		o.poolSize = size
	}
}

// WithExcludedExtensions replaces the list of title extensions an Aggregator
// discards. Matching is case-insensitive.
func WithExcludedExtensions(exts ...string) Option {
	return func(o *options) {
		o.excluded = make([]string, 0, len(exts))
		for _, ext := range exts {
			if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
				o.excluded = append(o.excluded, ext)
			}
		}
	}
}

// WithMaxRounds caps the judge rounds of a FilterLoop. Zero or less removes
// the cap.
func WithMaxRounds(n int) Option {
	return func(o *options) {
		o.maxRounds = n
	}
}

// WithMonitor observes the progress of a FilterLoop.
func WithMonitor(monitor FilterMonitor) Option {
	return func(o *options) {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		o.monitor = monitor
	}
}

// WithMaxVectorCandidates caps the candidates a VectorFilter keeps.
func WithMaxVectorCandidates(n int) Option {
	return func(o *options) {
		o.maxVectorCandidates = n
	}
}
