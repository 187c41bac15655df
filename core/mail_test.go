package core_test

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carosello75/courseconnect/core"
	"github.com/carosello75/courseconnect/tests"
)

func TestEmailMessage_Render(t *testing.T) {
	logger := new(testutil.Logger)
	core.ParseEmailTemplates(logger)
	require.Empty(t, logger.Entries("error"))
	conf := core.NewTestConfig()

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Jane", Address: "jane@test.cd"}},
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{"Name": "Jane", "Username": "jane"},
	}
	assert.False(t, msg.Ready())
	require.NoError(t, msg.Render(conf))
	assert.True(t, msg.Ready())
	assert.Contains(t, msg.TextContent, "Hi Jane")
	assert.Contains(t, msg.TextContent, `Your account "jane" is ready`)
	assert.Contains(t, msg.HTMLContent, "<b>jane</b>")
	assert.Contains(t, msg.HTMLContent, conf.FrontendBaseURL+"/courses")

	t.Run("missing data", func(t *testing.T) {
		msg := &core.EmailMessage{TemplateName: "welcome", TemplateData: map[string]interface{}{"Name": "Jane"}}
		assert.Error(t, msg.Render(conf))
	})

	t.Run("unknown template", func(t *testing.T) {
		msg := &core.EmailMessage{TemplateName: "nope"}
		assert.Error(t, msg.Render(conf))
	})

	t.Run("no recipient", func(t *testing.T) {
		msg := &core.EmailMessage{TemplateName: "welcome", TemplateData: map[string]interface{}{"Name": "Jane", "Username": "jane"}}
		require.NoError(t, msg.Render(conf))
		assert.False(t, msg.Ready())
	})
}
