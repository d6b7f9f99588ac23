package usecase

import (
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
)

// UseCases bundles the question answering pipeline for one process
type UseCases struct {
	Gate         *Gate
	Retriever    *Retriever
	Agent        *Agent
	Conversation *Conversation
}

type Option func(*options)

type options struct {
	gate      []GateOption
	retriever []RetrieverOption
	agent     []AgentOption
}

func WithGateOptions(opts ...GateOption) Option {
	return func(o *options) {
		o.gate = append(o.gate, opts...)
	}
}

func WithRetrieverOptions(opts ...RetrieverOption) Option {
	return func(o *options) {
		o.retriever = append(o.retriever, opts...)
	}
}

func WithAgentOptions(opts ...AgentOption) Option {
	return func(o *options) {
		o.agent = append(o.agent, opts...)
	}
}

// RetrievalToolFactory builds the per-request tool factory from the
// retriever. It is supplied by the caller so that this package does not
// depend on tool implementations.
type RetrievalToolFactory func(r *Retriever) ToolFactory

// New wires gate, retriever, agent and conversation together
func New(index interfaces.EmbeddingIndex, pdp interfaces.PolicyDecisionPoint, llm gollem.LLMClient, newTools RetrievalToolFactory, opts ...Option) *UseCases {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	gate := NewGate(pdp, o.gate...)
	retriever := NewRetriever(index, gate, o.retriever...)
	agent := NewAgent(llm, o.agent...)

	return &UseCases{
		Gate:         gate,
		Retriever:    retriever,
		Agent:        agent,
		Conversation: NewConversation(agent, newTools(retriever)),
	}
}
