package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/core"
	"github.com/target/notify-dispatch/internal/domain/model"
	"github.com/target/notify-dispatch/internal/mocks"
	"go.uber.org/mock/gomock"
)

func TestEmailDispatcher_Send(t *testing.T) {
	srv, seen := fakeProvider(t, 200, `{"type":"success","message_id":"em-1"}`)
	d, err := NewEmailDispatcher(EmailOptions{Config: providerConfig(srv.URL)})
	require.NoError(t, err)
	assert.Equal(t, model.ChannelEmail, d.Channel())

	out := d.Send(context.Background(), model.SendRequest{
		JobID:              "job-1",
		Destination:        "Asha <asha@example.com>",
		RecipientName:      "Asha",
		Subject:            "Welcome Asha",
		Body:               "plain",
		BodyRich:           "<p>rich</p>",
		ProviderTemplateID: "tmpl-welcome",
		Variables:          model.TemplateVariables{{Name: "name", Value: "Asha"}},
	})

	require.True(t, out.Success, out.Error)
	assert.Equal(t, "em-1", out.MessageID)

	req := <-seen
	assert.Equal(t, "Welcome Asha", req.Body["subject"])
	assert.Equal(t, "tmpl-welcome", req.Body["template_id"])
	content := req.Body["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "text/html", content["type"])
	assert.Equal(t, "<p>rich</p>", content["value"])
	to := req.Body["to"].([]any)[0].(map[string]any)
	assert.Equal(t, "asha@example.com", to["email"])
	assert.Equal(t, map[string]any{"name": "Asha"}, req.Body["variables"])
}

func TestEmailDispatcher_PlainFallback(t *testing.T) {
	srv, seen := fakeProvider(t, 200, `{"status":"success"}`)
	d, err := NewEmailDispatcher(EmailOptions{Config: providerConfig(srv.URL)})
	require.NoError(t, err)

	out := d.Send(context.Background(), model.SendRequest{Destination: "a@example.com", Subject: "s", Body: "plain only"})
	require.True(t, out.Success, out.Error)

	content := (<-seen).Body["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "text/plain", content["type"])
	assert.Equal(t, "plain only", content["value"])
}

func TestEmailDispatcher_Failures(t *testing.T) {
	t.Run("missing sender", func(t *testing.T) {
		cfg := providerConfig("http://127.0.0.1:1")
		cfg.Sender = ""
		d, err := NewEmailDispatcher(EmailOptions{Config: cfg})
		require.NoError(t, err)
		out := d.Send(context.Background(), model.SendRequest{Destination: "a@example.com"})
		assert.False(t, out.Success)
		assert.Contains(t, out.Error, "EMAIL_PROVIDER_SENDER")
	})

	t.Run("invalid address", func(t *testing.T) {
		d, err := NewEmailDispatcher(EmailOptions{Config: providerConfig("http://127.0.0.1:1")})
		require.NoError(t, err)
		out := d.Send(context.Background(), model.SendRequest{Destination: "not-an-email"})
		assert.False(t, out.Success)
		assert.Contains(t, out.Error, "invalid email address")
	})

	t.Run("provider rejection carries body", func(t *testing.T) {
		srv, _ := fakeProvider(t, 400, `{"error":"bad recipient"}`)
		d, err := NewEmailDispatcher(EmailOptions{Config: providerConfig(srv.URL)})
		require.NoError(t, err)
		out := d.Send(context.Background(), model.SendRequest{Destination: "a@example.com"})
		assert.False(t, out.Success)
		assert.Contains(t, out.Error, `{"error":"bad recipient"}`)
	})
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"a@example.com", "Bob <bob@mail.example.co.uk>", "x@sub.example.in"}
	for _, addr := range valid {
		_, err := ValidateEmail(addr)
		assert.NoError(t, err, addr)
	}
	invalid := []string{"", "plain", "a@localhost", "a@example.notarealtld", "a@com"}
	for _, addr := range invalid {
		_, err := ValidateEmail(addr)
		assert.ErrorIs(t, err, ErrInvalidEmail, addr)
	}
}

func TestSMSDispatcher_Send(t *testing.T) {
	srv, seen := fakeProvider(t, 200, `{"status":"success","data":{"id":"sms-7"}}`)
	cfg := providerConfig(srv.URL)
	cfg.Sender = "NOTIFY"
	d, err := NewSMSDispatcher(SMSOptions{Config: cfg, DefaultCountryCode: "91"})
	require.NoError(t, err)
	assert.Equal(t, model.ChannelSMS, d.Channel())

	out := d.Send(context.Background(), model.SendRequest{
		Destination: "098765 43210",
		Subject:     "ignored",
		Body:        "Your code is 1234",
		BodyRich:    "<b>ignored</b>",
	})
	require.True(t, out.Success, out.Error)
	assert.Equal(t, "sms-7", out.MessageID)

	req := <-seen
	assert.Equal(t, "+919876543210", req.Body["to"])
	assert.Equal(t, "Your code is 1234", req.Body["message"])
	assert.Equal(t, "NOTIFY", req.Body["sender"])
	assert.NotContains(t, req.Body, "variables")
}

func TestSMSDispatcher_Failures(t *testing.T) {
	t.Run("missing configuration", func(t *testing.T) {
		d, err := NewSMSDispatcher(SMSOptions{DefaultCountryCode: "91"})
		require.NoError(t, err)
		out := d.Send(context.Background(), model.SendRequest{Destination: "+919876543210", Body: "x"})
		assert.False(t, out.Success)
		assert.Contains(t, out.Error, "SMS_PROVIDER_URL")
	})

	t.Run("invalid phone", func(t *testing.T) {
		d, err := NewSMSDispatcher(SMSOptions{Config: providerConfig("http://127.0.0.1:1"), DefaultCountryCode: "91"})
		require.NoError(t, err)
		out := d.Send(context.Background(), model.SendRequest{Destination: "call me", Body: "x"})
		assert.False(t, out.Success)
		assert.Contains(t, out.Error, "invalid phone number")
	})
}

func TestChatDispatcher_InvitationLayout(t *testing.T) {
	srv, seen := fakeProvider(t, 200, `{"type":"success","message_id":"wa-1"}`)
	d, err := NewChatDispatcher(ChatOptions{Config: providerConfig(srv.URL), DefaultCountryCode: "91"})
	require.NoError(t, err)
	assert.Equal(t, model.ChannelChat, d.Channel())

	out := d.Send(context.Background(), model.SendRequest{
		Destination:        "+91 98765 43210",
		ProviderTemplateID: "invitation",
		// Declared out of slot order on purpose.
		Variables: model.TemplateVariables{
			{Name: "invite_link", Value: "https://x/inv"},
			{Name: "organization_name", Value: "Acme"},
			{Name: "recipient_name", Value: "Asha"},
			{Name: "inviter_name", Value: "Ravi"},
		},
		Metadata: map[string]any{"media_url": "https://cdn/x.png"},
	})
	require.True(t, out.Success, out.Error)
	assert.Equal(t, "wa-1", out.MessageID)

	req := <-seen
	assert.Equal(t, "template", req.Body["type"])
	tmpl := req.Body["template"].(map[string]any)
	assert.Equal(t, "invitation", tmpl["name"])
	components := tmpl["components"].([]any)
	require.Len(t, components, 2)

	header := components[0].(map[string]any)
	assert.Equal(t, "header", header["type"])
	headerParam := header["parameters"].([]any)[0].(map[string]any)
	assert.Equal(t, "image", headerParam["type"])
	assert.Equal(t, "https://cdn/x.png", headerParam["image"].(map[string]any)["link"])

	body := components[1].(map[string]any)
	var texts []string
	for _, p := range body["parameters"].([]any) {
		texts = append(texts, p.(map[string]any)["text"].(string))
	}
	assert.Equal(t, []string{"Asha", "Ravi", "Acme", "https://x/inv"}, texts)
}

func TestChatDispatcher_RequiresTemplateName(t *testing.T) {
	d, err := NewChatDispatcher(ChatOptions{Config: providerConfig("http://127.0.0.1:1"), DefaultCountryCode: "91"})
	require.NoError(t, err)

	out := d.Send(context.Background(), model.SendRequest{Destination: "+919876543210"})
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, ErrChatTemplateRequired.Error())
}

func TestPositionalValues(t *testing.T) {
	declared := model.TemplateVariables{{Name: "b", Value: "2"}, {Name: "a", Value: "1"}}
	named := model.TemplateVariables{{Name: "recipient_name", Value: "Ann"}}
	named = append(named, declared...)

	assert.Equal(t, []string{"2", "1"}, PositionalValues("order_update", named, declared))
	assert.Equal(t, []string{"Ann", "", "", ""}, PositionalValues("invitation", named, declared))
	assert.Empty(t, PositionalValues("order_update", named, nil))
}

func TestMediaHeader(t *testing.T) {
	_, ok := mediaHeader(nil)
	assert.False(t, ok)

	c, ok := mediaHeader(map[string]any{"media_url": "https://cdn/v.mp4", "media_type": "VIDEO"})
	require.True(t, ok)
	assert.Equal(t, "video", c.Parameters[0].Type)
	assert.Equal(t, "https://cdn/v.mp4", c.Parameters[0].Video.Link)
}

func TestInAppDispatcher_Send(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockInAppRepository(ctrl)

	repo.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, n *model.InAppNotification) (*model.InAppNotification, error) {
			assert.Equal(t, "user-9", n.UserID)
			assert.Equal(t, "tenant-1", n.TenantID)
			assert.Equal(t, "Hello", n.Title)
			assert.Equal(t, "Body", n.Body)
			assert.JSONEq(t, `{"k":"v"}`, string(n.Metadata))
			require.NotNil(t, n.JobID)
			assert.Equal(t, "job-1", *n.JobID)
			out := *n
			out.ID = "row-1"
			return &out, nil
		})

	d, err := NewInAppDispatcher(repo)
	require.NoError(t, err)
	out := d.Send(context.Background(), model.SendRequest{
		JobID:       "job-1",
		TenantID:    "tenant-1",
		Destination: "user-9",
		Subject:     "Hello",
		Body:        "Body",
		Metadata:    map[string]any{"k": "v"},
	})
	require.True(t, out.Success, out.Error)
	assert.Equal(t, "row-1", out.MessageID)
}

func TestInAppDispatcher_Failures(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockInAppRepository(ctrl)
	d, err := NewInAppDispatcher(repo)
	require.NoError(t, err)

	out := d.Send(context.Background(), model.SendRequest{TenantID: "t"})
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "user id is required")

	repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
	out = d.Send(context.Background(), model.SendRequest{TenantID: "t", UserID: "u"})
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "db down")

	_, err = NewInAppDispatcher(nil)
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockInAppRepository(ctrl)

	reg, err := NewDefaultRegistry(RegistryOptions{
		Channels: config.ChannelsConfig{DefaultCountryCode: "91"},
		InApp:    repo,
	})
	require.NoError(t, err)

	for _, ch := range model.AllChannels() {
		d, err := reg.Lookup(ch)
		require.NoError(t, err)
		assert.Equal(t, ch, d.Channel())
	}

	_, err = reg.Lookup(model.Channel("fax"))
	require.ErrorIs(t, err, core.ErrUnknownChannel)
}

func TestNewRegistry_RequiresEveryChannel(t *testing.T) {
	ctrl := gomock.NewController(t)
	email, err := NewEmailDispatcher(EmailOptions{})
	require.NoError(t, err)

	_, err = NewRegistry(email)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"sms"`)
	assert.Contains(t, err.Error(), `"in_app"`)

	inApp, err := NewInAppDispatcher(mocks.NewMockInAppRepository(ctrl))
	require.NoError(t, err)
	sms, _ := NewSMSDispatcher(SMSOptions{})
	chat, _ := NewChatDispatcher(ChatOptions{})

	_, err = NewRegistry(email, sms, chat, inApp, email)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	reg, err := NewRegistry(email, sms, chat, inApp)
	require.NoError(t, err)
	assert.NotNil(t, reg)
}
