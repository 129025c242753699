package forge

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"

	"github.com/sergeknystautas/arachne/internal/model"
)

func TestClassifyError_RateLimit(t *testing.T) {
	err := &github.RateLimitError{
		Rate: github.Rate{Reset: github.Timestamp{Time: time.Now().Add(30 * time.Second)}},
	}
	got := classifyError(err, nil)
	if kind, ok := model.KindOf(got); !ok || kind != model.ErrForgeRate {
		t.Errorf("classifyError(RateLimitError) kind = %v (ok=%v), want ErrForgeRate", kind, ok)
	}
}

func TestClassifyError_AbuseRateLimit(t *testing.T) {
	err := &github.AbuseRateLimitError{}
	got := classifyError(err, nil)
	if kind, ok := model.KindOf(got); !ok || kind != model.ErrForgeRate {
		t.Errorf("classifyError(AbuseRateLimitError) kind = %v (ok=%v), want ErrForgeRate", kind, ok)
	}
}

func TestClassifyError_AuthFailure(t *testing.T) {
	resp := &github.Response{Response: &http.Response{StatusCode: http.StatusUnauthorized}}
	got := classifyError(errors.New("unauthorized"), resp)
	if kind, ok := model.KindOf(got); !ok || kind != model.ErrForgeAuth {
		t.Errorf("classifyError(401) kind = %v (ok=%v), want ErrForgeAuth", kind, ok)
	}
}

func TestClassifyError_NotFound(t *testing.T) {
	resp := &github.Response{Response: &http.Response{StatusCode: http.StatusNotFound}}
	got := classifyError(errors.New("not found"), resp)
	if kind, ok := model.KindOf(got); !ok || kind != model.ErrForgeNetwork {
		t.Errorf("classifyError(404) kind = %v (ok=%v), want ErrForgeNetwork", kind, ok)
	}
}

func TestClassifyError_GenericNetwork(t *testing.T) {
	got := classifyError(errors.New("connection reset"), nil)
	if kind, ok := model.KindOf(got); !ok || kind != model.ErrForgeNetwork {
		t.Errorf("classifyError(generic) kind = %v (ok=%v), want ErrForgeNetwork", kind, ok)
	}
}
