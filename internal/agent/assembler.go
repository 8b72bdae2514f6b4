package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/dpolishuk/coderag/internal/telemetry"
	"github.com/google/uuid"
	"github.com/jcgregorio/slog"
	"github.com/patrickmn/go-cache"
)

// ContextSize is how many retrieval hits back one answer.
const ContextSize = 8

const noContextNotice = "No relevant code snippets were found in the codebase for this question."

const systemInstruction = "You are a code analysis assistant helping developers understand their codebase. " +
	"Your goal is to answer questions ACCURATELY based ONLY on the provided code context.\n\n" +
	"RULES:\n" +
	"1. Answer strictly based on the provided Context. Do NOT use outside knowledge or make assumptions.\n" +
	"2. If the Context does not contain the answer, explicitly state: \"I cannot answer this based on the retrieved code.\"\n" +
	"3. Cite the specific classes or methods you are referencing.\n" +
	"4. Be concise and technical.\n" +
	"5. If the user asks for code that isn't in the context, do not invent it."

// Searcher retrieves the hits a question is answered from.
type Searcher interface {
	SearchByQuery(ctx context.Context, codebaseID, query string, kind models.ElementKind, k int) ([]models.SearchHit, error)
}

type conversation struct {
	mu        sync.Mutex
	exchanges []models.Exchange
}

// Assembler answers questions about a codebase from retrieved code and keeps
// per-conversation history in memory.
type Assembler struct {
	search    Searcher
	generator Generator
	timeout   time.Duration
	log       slog.Logger
	metrics   *telemetry.Metrics

	createMu      sync.Mutex
	conversations *cache.Cache
}

// NewAssembler builds an assembler. A zero ttl keeps conversations until
// cleared; a zero timeout leaves provider calls bounded by the caller only.
func NewAssembler(search Searcher, generator Generator, timeout, ttl time.Duration, log slog.Logger, metrics *telemetry.Metrics) *Assembler {
	expiry, cleanup := ttl, 10*time.Minute
	if ttl <= 0 {
		expiry, cleanup = cache.NoExpiration, 0
	}
	return &Assembler{
		search:        search,
		generator:     generator,
		timeout:       timeout,
		log:           log,
		metrics:       metrics,
		conversations: cache.New(expiry, cleanup),
	}
}

// Ask answers question from the codebase's most relevant code. An empty
// conversationID starts a new conversation. The exchange is recorded only
// when the provider answered.
func (a *Assembler) Ask(ctx context.Context, codebaseID, question, conversationID string) (*models.ChatAnswer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required: %w", errs.ErrInvalidInput)
	}
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	hits, err := a.search.SearchByQuery(ctx, codebaseID, question, models.KindAll, ContextSize)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	if len(hits) == 0 {
		a.log.Warningf("no relevant code found in codebase %s for question %q", codebaseID, question)
	}

	answer, err := a.generate(ctx, systemInstruction, UserPrompt(hits, question))
	if err != nil {
		return nil, err
	}

	a.append(conversationID, models.Exchange{Question: question, Answer: answer, AskedAt: time.Now().UTC()})

	sources := make([]models.SourceRef, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, models.SourceRef{
			Kind:       h.ElementKind,
			Name:       h.ElementName,
			ClassID:    h.ClassID,
			Similarity: h.Similarity,
		})
	}
	return &models.ChatAnswer{
		Answer:         answer,
		Sources:        sources,
		ConversationID: conversationID,
	}, nil
}

// generate calls the provider within the assembler's timeout.
func (a *Assembler) generate(ctx context.Context, system, user string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	answer, err := a.generator.Generate(ctx, system, user)
	a.metrics.ChatRequest(a.generator.Name(), err == nil)
	return answer, err
}

// UserPrompt renders the retrieved hits and the question as the user message.
func UserPrompt(hits []models.SearchHit, question string) string {
	var b strings.Builder
	if len(hits) == 0 {
		b.WriteString(noContextNotice)
	}
	for _, h := range hits {
		fmt.Fprintf(&b, "--- SOURCE: %s %s ---\n%s\n--- END SOURCE ---\n\n", h.ElementKind, h.ElementName, h.TextPreview)
	}
	return "Context:\n" + b.String() + "\n\nQuestion: " + question
}

func (a *Assembler) entry(id string) *conversation {
	a.createMu.Lock()
	defer a.createMu.Unlock()

	if v, ok := a.conversations.Get(id); ok {
		return v.(*conversation)
	}
	c := &conversation{}
	a.conversations.Set(id, c, cache.DefaultExpiration)
	return c
}

func (a *Assembler) append(id string, ex models.Exchange) {
	c := a.entry(id)
	c.mu.Lock()
	c.exchanges = append(c.exchanges, ex)
	c.mu.Unlock()
	// Refresh the expiry.
	a.conversations.Set(id, c, cache.DefaultExpiration)
}

// History returns the exchanges of a conversation, oldest first.
func (a *Assembler) History(id string) *models.Conversation {
	out := &models.Conversation{ID: id, Exchanges: []models.Exchange{}}
	v, ok := a.conversations.Get(id)
	if !ok {
		return out
	}
	c := v.(*conversation)
	c.mu.Lock()
	defer c.mu.Unlock()
	out.Exchanges = append(out.Exchanges, c.exchanges...)
	return out
}

func (a *Assembler) Clear(id string) {
	a.conversations.Delete(id)
}

// Close drops every conversation.
func (a *Assembler) Close() {
	n := a.conversations.ItemCount()
	a.conversations.Flush()
	a.log.Infof("dropped %d conversations", n)
}
