package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		language string
		domain   string
	}{
		{
			name:     "react dashboard",
			text:     "Build a React dashboard with TypeScript",
			language: "javascript",
			domain:   "web-frontend",
		},
		{
			name:     "python web app",
			text:     "Create a Python Django web application with user authentication",
			language: "python",
			domain:   "security",
		},
		{
			name:     "go microservice",
			text:     "Implement a golang REST api endpoint for payments",
			language: "go",
			domain:   "web-backend",
		},
		{
			name:     "devops ticket",
			text:     "Add a Dockerfile and kubernetes manifests for deployment",
			language: LanguageUnknown,
			domain:   "devops",
		},
		{
			name:     "no markers",
			text:     "Please fix the thing",
			language: LanguageUnknown,
			domain:   DomainGeneral,
		},
		{
			name:     "empty text",
			text:     "",
			language: LanguageUnknown,
			domain:   DomainGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.text)
			assert.Equal(t, tt.language, got.Language)
			assert.Equal(t, tt.domain, got.Domain)
		})
	}
}

func TestDetectDeterministic(t *testing.T) {
	text := "Migrate the Spring Boot service and its gradle build to Java 21"
	first := Detect(text)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, Detect(text))
	}
}

func TestDetectTieBreaksByDeclarationOrder(t *testing.T) {
	// One marker each for python and rust; python is declared first.
	got := Detect("rewrite the cargo tooling in python")
	assert.Equal(t, "python", got.Language)
}

func TestConfidenceBounds(t *testing.T) {
	tests := []string{
		"python",
		"python django flask fastapi pandas numpy .py pip install pytest",
		"nothing relevant here",
	}
	for _, text := range tests {
		got := Detect(text)
		assert.GreaterOrEqual(t, got.Confidence, 0.0)
		assert.LessOrEqual(t, got.Confidence, 1.0)
	}
}
