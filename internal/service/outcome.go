package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrModelUnavailable  = errors.New("language model not configured")
	ErrMissingAPIKey     = errors.New("api key not configured")
	ErrMalformedResponse = errors.New("malformed model response")
	ErrUnknownKind       = errors.New("unknown run kind")
)

// Cause 降级原因
type Cause string

const (
	CauseNone              Cause = ""
	CauseMissingCredential Cause = "missing_credential"
	CauseUpstream          Cause = "upstream_unavailable"
	CauseMalformed         Cause = "malformed_response"
	CauseRender            Cause = "render_failure"
	CauseEmptyInput        Cause = "empty_input"
)

// Outcome 每个阶段的结果: 正常值, 或降级值加原因
type Outcome[T any] struct {
	Value    T
	Degraded bool
	Cause    Cause
	Err      error
}

func ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

func degraded[T any](v T, cause Cause, err error) Outcome[T] {
	return Outcome[T]{Value: v, Degraded: true, Cause: cause, Err: err}
}

// classify 把错误映射为降级原因
func classify(err error) Cause {
	switch {
	case err == nil:
		return CauseNone
	case errors.Is(err, ErrModelUnavailable), errors.Is(err, ErrMissingAPIKey):
		return CauseMissingCredential
	case errors.Is(err, ErrMalformedResponse):
		return CauseMalformed
	default:
		return CauseUpstream
	}
}

// causeSet 收集一次运行中出现过的降级原因
type causeSet map[Cause]struct{}

func (s causeSet) add(c Cause) {
	if c != CauseNone {
		s[c] = struct{}{}
	}
}

func (s causeSet) String() string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}
