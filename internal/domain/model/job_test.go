package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_Valid(t *testing.T) {
	for _, s := range []JobStatus{
		JobStatusScheduled, JobStatusQueued, JobStatusProcessing,
		JobStatusSent, JobStatusFailed, JobStatusDelivered, JobStatusRead,
	} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, JobStatus("bounced").Valid())
}

func TestJob_EffectiveMaxRetries(t *testing.T) {
	assert.Equal(t, DefaultMaxRetries, (&Job{}).EffectiveMaxRetries())
	assert.Equal(t, DefaultMaxRetries, (&Job{MaxRetries: -1}).EffectiveMaxRetries())
	assert.Equal(t, 5, (&Job{MaxRetries: 5}).EffectiveMaxRetries())

	var nilJob *Job
	assert.Equal(t, DefaultMaxRetries, nilJob.EffectiveMaxRetries())
}

func TestEnvironment_UnmarshalText(t *testing.T) {
	var e Environment
	require.NoError(t, e.UnmarshalText([]byte(" TEST ")))
	assert.Equal(t, EnvironmentTest, e)

	require.NoError(t, e.UnmarshalText(nil))
	assert.Equal(t, EnvironmentLive, e)

	assert.Error(t, e.UnmarshalText([]byte("staging")))
}

func TestJob_RenderVariables(t *testing.T) {
	j := &Job{
		RecipientName:    "Ann",
		RecipientAddress: "ann@example.com",
		Payload: json.RawMessage(`{
			"recipient_data": {"city": "Pune", "name": "Annie"},
			"variables": {"code": 1234, "name": "Ann B."}
		}`),
		TemplateVariables: TemplateVariables{{Name: "code", Value: "9999"}},
	}

	vars := j.RenderVariables()

	name, ok := vars.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Ann B.", name)

	code, _ := vars.Get("code")
	assert.Equal(t, "9999", code, "job template variables take precedence")

	city, _ := vars.Get("city")
	assert.Equal(t, "Pune", city)

	names := make([]string, 0, len(vars))
	for _, v := range vars {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"recipient_name", "name", "recipient_address", "city", "code"}, names)
}

func TestJob_RenderVariables_IgnoresMalformedPayload(t *testing.T) {
	j := &Job{RecipientName: "Ann", Payload: json.RawMessage(`not json`)}
	vars := j.RenderVariables()
	assert.Equal(t, map[string]string{"recipient_name": "Ann", "name": "Ann"}, vars.Map())
}

func TestJob_MetadataMap(t *testing.T) {
	j := &Job{Metadata: json.RawMessage(`{"media_url":"https://cdn.example.com/a.png"}`)}
	assert.Equal(t, "https://cdn.example.com/a.png", j.MetadataMap()["media_url"])

	assert.Empty(t, (&Job{Metadata: json.RawMessage(`[1,2]`)}).MetadataMap())
	assert.Empty(t, (&Job{}).MetadataMap())
}

func TestCreateJobRequest_Validate(t *testing.T) {
	valid := CreateJobRequest{
		TenantID:         "t1",
		EventType:        "order_shipped",
		Channel:          ChannelEmail,
		RecipientAddress: "ann@example.com",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *CreateJobRequest)
		msg    string
	}{
		{name: "tenant", mutate: func(r *CreateJobRequest) { r.TenantID = " " }, msg: "tenant id is required"},
		{name: "event", mutate: func(r *CreateJobRequest) { r.EventType = "" }, msg: "event type is required"},
		{name: "channel", mutate: func(r *CreateJobRequest) { r.Channel = "fax" }, msg: "invalid channel"},
		{name: "address", mutate: func(r *CreateJobRequest) { r.RecipientAddress = "" }, msg: "recipient address is required"},
		{name: "retries", mutate: func(r *CreateJobRequest) { r.MaxRetries = -1 }, msg: "max retries must be >= 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
