package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestBasePrompt_ContainsResumeContext is a smoke test that the prompt
// assembly actually folds the resume in.
func TestBasePrompt_ContainsResumeContext(t *testing.T) {
	p := BasePrompt()
	assert.Contains(t, p, "JonaBot")
	assert.Contains(t, p, Resume.Name)
	assert.Contains(t, p, Resume.Contact.Email)
	assert.Contains(t, p, "--EXPERIENCE--")
}

// TestOriginPrompts_ExtendBase verifies each branded variant carries the
// base context plus its own framing.
func TestOriginPrompts_ExtendBase(t *testing.T) {
	base := BasePrompt()
	for name, p := range map[string]string{
		"huggingface": HuggingFacePrompt(),
		"energyhub":   EnergyHubPrompt(),
		"renew-job":   RenewJobPrompt(),
	} {
		assert.True(t, strings.Contains(p, Resume.Name), "%s must include resume context", name)
		assert.Greater(t, len(p), len(base)/2, "%s should not be a stub", name)
		assert.NotEqual(t, base, p, "%s must differ from the base prompt", name)
	}
}
