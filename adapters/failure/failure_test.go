package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/satriahrh/lingua/domain"
)

func TestClassify(t *testing.T) {
	refused := &url.Error{Op: "Post", URL: "http://localhost:11434", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}

	tests := []struct {
		name string
		err  error
		want domain.Kind
	}{
		{"connection refused", refused, domain.KindModelUnavailable},
		{"wrapped refused", fmt.Errorf("stream: %w", refused), domain.KindModelUnavailable},
		{"model not found", &openai.APIError{HTTPStatusCode: 404, Message: "model not found"}, domain.KindModelUnavailable},
		{"bad request", &openai.APIError{HTTPStatusCode: 400, Message: "bad"}, domain.KindGenerationFailure},
		{"plain", errors.New("boom"), domain.KindGenerationFailure},
		{"already classified", domain.InvalidRequest("nope"), domain.KindInvalidRequest},
		{"cancelled request", &url.Error{Op: "Post", Err: context.Canceled}, domain.KindGenerationFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.KindOf(Classify(tc.err, domain.KindGenerationFailure, "generation failed"))
			if got != tc.want {
				t.Errorf("kind = %q, want %q", got, tc.want)
			}
		})
	}

	if Classify(nil, domain.KindGenerationFailure, "x") != nil {
		t.Error("Classify(nil) should be nil")
	}
}
