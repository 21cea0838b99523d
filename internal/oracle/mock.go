package oracle

import (
	"context"
	"sync"

	"github.com/conceptcatch/conceptcatch/internal/quiz"
)

// Mock is a deterministic ContentOracle for tests. Generate returns canned
// question sets FIFO; Judge answers from a queue or a fixed function. All
// requests are recorded.
type Mock struct {
	mu sync.Mutex

	GenerateQueue []GenerateReply
	JudgeQueue    []JudgeReply
	// JudgeFunc, when set, answers Judge calls once the queue is drained.
	JudgeFunc func(req JudgeRequest) (Judgment, error)

	GenerateCalls []GenerationSpec
	JudgeCalls    []JudgeRequest
}

type GenerateReply struct {
	Questions []quiz.Question
	Err       error
}

type JudgeReply struct {
	Judgment Judgment
	Err      error
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Generate(_ context.Context, spec GenerationSpec) ([]quiz.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateCalls = append(m.GenerateCalls, spec)
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	if len(m.GenerateQueue) == 0 {
		return nil, ErrGenerationFailed
	}
	reply := m.GenerateQueue[0]
	m.GenerateQueue = m.GenerateQueue[1:]
	if reply.Err != nil {
		return nil, reply.Err
	}
	if err := checkOutput(spec, reply.Questions); err != nil {
		return nil, err
	}
	return reply.Questions, nil
}

func (m *Mock) Judge(_ context.Context, req JudgeRequest) (Judgment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.JudgeCalls = append(m.JudgeCalls, req)
	if len(m.JudgeQueue) > 0 {
		reply := m.JudgeQueue[0]
		m.JudgeQueue = m.JudgeQueue[1:]
		if reply.Err != nil {
			return Judgment{}, reply.Err
		}
		j := reply.Judgment
		clampCredit(&j)
		return j, nil
	}
	if m.JudgeFunc != nil {
		j, err := m.JudgeFunc(req)
		if err != nil {
			return Judgment{}, err
		}
		clampCredit(&j)
		return j, nil
	}
	return Judgment{}, ErrJudgmentFailed
}
