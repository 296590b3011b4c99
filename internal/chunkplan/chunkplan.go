// Package chunkplan derives the ordered list of overlapping chunks a source
// track is split into before separation, grounded on
// original_source/app/audio.py's split_plan and spec §3/§4.6 step 3.
package chunkplan

import (
	"fmt"

	"descant/internal/pipelineerr"
)

// Chunk is one contiguous slice of the source, in seconds.
type Chunk struct {
	Start    float64
	Duration float64
}

// Plan is the ordered, never-persisted chunk list for one job.
type Plan struct {
	TotalDuration float64
	Chunks        []Chunk
}

// Params bundles the configuration knobs that shape a Plan.
type Params struct {
	ChunkSeconds     float64
	OverlapSeconds   float64
	ChunkMax         int
	ChunkingEnabled  bool
}

// Build computes the chunk plan for a source of the given total duration.
//
// When total <= ChunkSeconds, or chunking is disabled, a single chunk
// covering the whole file is returned (spec §8 boundary: duration ==
// CHUNK_SECONDS produces exactly one chunk, no crossfade). When the
// resulting chunk count would exceed ChunkMax, Build rejects with
// pipelineerr.ErrPlanExceeded (spec §9's "reject" resolution of the open
// question, logged by the Processor as event=plan_exceeded).
func Build(total float64, p Params) (Plan, error) {
	if total <= 0 {
		return Plan{}, fmt.Errorf("chunkplan: total duration must be positive, got %v", total)
	}

	if !p.ChunkingEnabled || total <= p.ChunkSeconds {
		return Plan{TotalDuration: total, Chunks: []Chunk{{Start: 0, Duration: total}}}, nil
	}

	step := p.ChunkSeconds
	if step <= 0 {
		return Plan{}, fmt.Errorf("chunkplan: chunk_seconds must be positive")
	}

	var chunks []Chunk
	boundary := 0.0
	for i := 0; boundary < total; i++ {
		start := boundary
		if i > 0 {
			start -= p.OverlapSeconds
			if start < 0 {
				start = 0
			}
		}
		end := boundary + step
		if end > total {
			end = total
		}
		dur := end - start

		chunks = append(chunks, Chunk{Start: start, Duration: dur})
		if p.ChunkMax > 0 && len(chunks) > p.ChunkMax {
			return Plan{}, pipelineerr.Wrap(pipelineerr.ErrPlanExceeded, "chunkplan", "build",
				fmt.Sprintf("source requires more than %d chunks at %vs with %vs overlap", p.ChunkMax, step, p.OverlapSeconds), nil)
		}
		boundary = end
	}

	return Plan{TotalDuration: total, Chunks: chunks}, nil
}

// Count returns the number of chunks in the plan.
func (p Plan) Count() int { return len(p.Chunks) }
