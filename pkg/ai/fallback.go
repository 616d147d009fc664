package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
)

// FallbackService tries each provider in order and returns the first
// successful reply.
type FallbackService struct {
	providers []TextGenerator
	log       *zap.Logger
}

func NewFallbackService(log *zap.Logger, providers ...TextGenerator) *FallbackService {
	return &FallbackService{providers: providers, log: log}
}

func (f *FallbackService) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

func (f *FallbackService) Generate(ctx context.Context, system, prompt string) (string, error) {
	var lastErr error
	for i, p := range f.providers {
		out, err := p.Generate(ctx, system, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		reason := "error"
		switch {
		case isQuotaError(err):
			reason = "quota"
		case isConnectionError(err):
			reason = "connection"
		}
		if i < len(f.providers)-1 {
			f.log.Warn("AI provider failed, falling back",
				zap.String("provider", p.Name()),
				zap.String("next", f.providers[i+1].Name()),
				zap.String("reason", reason),
				zap.Error(err),
			)
		}
	}
	if lastErr == nil {
		return "", fmt.Errorf("no AI provider available")
	}
	return "", fmt.Errorf("all AI providers failed: %w", lastErr)
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"resource_exhausted",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
