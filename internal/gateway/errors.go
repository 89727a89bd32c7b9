package gateway

import (
	"context"
	"errors"
	"strings"
)

// errMissingCredential marks a backend used without its API key.
var errMissingCredential = errors.New("service credential is not configured")

// User-safe messages. Transport detail never reaches a transcript.
const (
	msgConfigurationInit   = "There seems to be a configuration issue. I'm unable to connect to my core services right now."
	msgConfigurationTurn   = "I'm encountering a configuration problem and can't connect at the moment. Please try again later."
	msgInitialization      = "I'm having trouble getting started. Please check your connection or try refreshing the page."
	msgNetwork             = "I'm having trouble connecting to my servers. Please check your internet connection and try again."
	msgService             = "I'm sorry, I encountered a technical difficulty. Could you please try again in a moment?"
	msgGeneration          = "I'm having trouble creating a new look. Please try again in a moment."
	msgGenerationConfig    = "I'm having trouble with my image generation service due to a configuration issue."
	msgMalformedAttachment = "I couldn't read that attachment. Could you try sending it again?"
)

var credentialMarkers = []string{
	"api key",
	"api_key",
	"credential",
	"unauthenticated",
	"unauthorized",
	"permission denied",
	"401",
	"403",
}

var networkMarkers = []string{
	"connection",
	"network",
	"dial tcp",
	"no such host",
	"timeout",
	"deadline exceeded",
	"broken pipe",
	"connection reset",
}

func isCredentialError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errMissingCredential) {
		return true
	}
	return containsAny(strings.ToLower(err.Error()), credentialMarkers)
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return containsAny(strings.ToLower(err.Error()), networkMarkers)
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
