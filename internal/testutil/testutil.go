// Package testutil holds the shared fakes used by unit tests: a recording
// graph driver, a queued LLM and a deterministic embedder.
package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

type Call struct {
	Query  string
	Params map[string]interface{}
}

// RecordingDriver captures every executed query and answers via the Handler
// when set, otherwise with an empty result.
type RecordingDriver struct {
	Calls   []Call
	Handler func(query string, params map[string]interface{}) (neo4j.EagerResult, error)
	Err     error
}

func (d *RecordingDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	d.Calls = append(d.Calls, Call{Query: query, Params: params})
	if d.Err != nil {
		return neo4j.EagerResult{}, d.Err
	}
	if d.Handler != nil {
		return d.Handler(query, params)
	}
	return neo4j.EagerResult{}, nil
}

func (d *RecordingDriver) BuildIndices(ctx context.Context) error { return nil }

func (d *RecordingDriver) Close(ctx context.Context) error { return nil }

// LastCall returns the most recent call, or a zero Call.
func (d *RecordingDriver) LastCall() Call {
	if len(d.Calls) == 0 {
		return Call{}
	}
	return d.Calls[len(d.Calls)-1]
}

// Result builds an EagerResult from column keys and row values.
func Result(keys []string, rows ...[]interface{}) neo4j.EagerResult {
	records := make([]*db.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, &db.Record{Keys: keys, Values: row})
	}
	return neo4j.EagerResult{Keys: keys, Records: records}
}

// QueueLLM returns queued responses in order, then the fallback Response.
type QueueLLM struct {
	Response      string
	ResponseQueue []string
	Prompts       []string
	SystemPrompts []string
	Err           error
}

func (m *QueueLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.ResponseQueue) > 0 {
		resp := m.ResponseQueue[0]
		m.ResponseQueue = m.ResponseQueue[1:]
		return resp, nil
	}
	return m.Response, nil
}

func (m *QueueLLM) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	m.SystemPrompts = append(m.SystemPrompts, systemPrompt)
	return m.Generate(ctx, userPrompt)
}

// HashEmbedder maps text to a deterministic unit vector. Identical text gives
// identical vectors (cosine 1.0). Vectors can pin exact embeddings per text.
type HashEmbedder struct {
	Dim     int
	Vectors map[string][]float32
	Err     error
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	if v, ok := e.Vectors[text]; ok {
		return v, nil
	}

	dim := e.Dim
	if dim == 0 {
		dim = 8
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed>>16)%1000)/1000.0 + 0.001
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}
