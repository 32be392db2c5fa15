package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockLLM provides deterministic model responses for testing. It matches
// user message content against registered patterns and returns the
// corresponding response, streamed in fixed-size fragments when a callback
// is present.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu        sync.Mutex
	responses []mockRule
	fallback  string
	failWith  error
	chunkSize int
	calls     []MockCall
}

type mockRule struct {
	pattern  string // substring match in user message
	response string
	err      error
}

// MockCall records a single call to the mock model.
type MockCall struct {
	UserMessage string
	System      string
	Response    string
}

// NewMockLLM creates a mock with the given fallback response, returned
// when no pattern matches.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback, chunkSize: 12}
}

// AddResponse registers a pattern-response pair. When a user message
// contains the pattern (case-insensitive), the response is returned.
// Patterns are checked in registration order; first match wins.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// AddError registers a pattern that fails generation with err.
func (m *MockLLM) AddError(pattern string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern: strings.ToLower(pattern),
		err:     err,
	})
}

// FailWith makes every call fail with err until reset with nil.
func (m *MockLLM) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// SetChunkSize controls how many bytes each streamed fragment carries.
func (m *MockLLM) SetChunkSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.chunkSize = n
	}
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Reset clears all recorded calls, keeping registered responses.
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// RegisterModel registers the mock as a Genkit model named
// "mock/test-model" and returns a reference.
func (m *MockLLM) RegisterModel(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, "mock/test-model", &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			SystemRole: true,
		},
	}, m.generate)
}

// generate is the Genkit model function.
func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var userText, systemText string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			userText = req.Messages[i].Text()
			break
		}
	}
	for _, msg := range req.Messages {
		if msg.Role == ai.RoleSystem {
			systemText = msg.Text()
			break
		}
	}

	m.mu.Lock()
	if m.failWith != nil {
		err := m.failWith
		m.mu.Unlock()
		return nil, err
	}

	var matched *mockRule
	lower := strings.ToLower(userText)
	for i := range m.responses {
		if strings.Contains(lower, m.responses[i].pattern) {
			matched = &m.responses[i]
			break
		}
	}
	if matched != nil && matched.err != nil {
		err := matched.err
		m.mu.Unlock()
		return nil, err
	}

	responseText := m.fallback
	if matched != nil {
		responseText = matched.response
	}
	m.calls = append(m.calls, MockCall{
		UserMessage: userText,
		System:      systemText,
		Response:    responseText,
	})
	chunkSize := m.chunkSize
	m.mu.Unlock()

	if cb != nil {
		for _, fragment := range splitFragments(responseText, chunkSize) {
			if err := cb(ctx, &ai.ModelResponseChunk{
				Content: []*ai.Part{ai.NewTextPart(fragment)},
			}); err != nil {
				return nil, err
			}
		}
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: []*ai.Part{ai.NewTextPart(responseText)},
		},
	}, nil
}

// splitFragments cuts s into pieces of at most n bytes.
func splitFragments(s string, n int) []string {
	if n <= 0 || len(s) <= n {
		return []string{s}
	}
	var parts []string
	for len(s) > n {
		parts = append(parts, s[:n])
		s = s[n:]
	}
	return append(parts, s)
}

// MockEmbedder provides deterministic embedding vectors for testing. By
// default it derives a normalized vector from the content hash; explicit
// mappings give precise cosine similarity control.
//
// Thread-safe for concurrent use.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	dim     int
}

// NewMockEmbedder creates a mock embedder with the given vector dimensions.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// SetVector registers an explicit vector for a content string.
func (e *MockEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// RegisterEmbedder registers the mock as a Genkit embedder named
// "mock/test-embedder".
func (e *MockEmbedder) RegisterEmbedder(g *genkit.Genkit) ai.Embedder {
	return genkit.DefineEmbedder(g, "mock/test-embedder", &ai.EmbedderOptions{
		Label:      "Mock Test Embedder",
		Dimensions: e.dim,
	}, e.embed)
}

func (e *MockEmbedder) embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		embeddings[i] = &ai.Embedding{
			Embedding: e.vectorFor(documentText(doc)),
		}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func (e *MockEmbedder) vectorFor(content string) []float32 {
	e.mu.Lock()
	if v, ok := e.vectors[content]; ok {
		e.mu.Unlock()
		return v
	}
	e.mu.Unlock()
	return deterministicVector(content, e.dim)
}

// documentText extracts all text content from a Document's parts.
func documentText(doc *ai.Document) string {
	var sb strings.Builder
	for _, p := range doc.Content {
		if p.Kind == ai.PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// deterministicVector generates a normalized vector from content using
// SHA-256, so the same content always produces the same vector.
func deterministicVector(content string, dim int) []float32 {
	hash := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)
	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32],
			hash[(idx+1)%32],
			hash[(idx+2)%32],
			hash[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
