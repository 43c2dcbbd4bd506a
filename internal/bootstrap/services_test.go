package bootstrap

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/adapters/amqpdlq"
	"github.com/target/notify-dispatch/internal/service/failurenotifier"
)

func TestErrorChannelBufferSize(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{name: "no services enabled", want: 1},
		{name: "http only", modes: []config.ServiceMode{config.ServiceModeHTTP}, want: 2},
		{
			name:  "all services enabled",
			modes: config.ValidServiceModes(),
			want:  4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}
			assert.Equal(t, tt.want, errorChannelBufferSize(enabled))
		})
	}
}

func TestDeadLetterPublishers(t *testing.T) {
	disabled := ObservabilityContainer{
		FailureNotifier: failurenotifier.NewService(failurenotifier.Options{Logger: discardLogger()}),
	}
	assert.Empty(t, deadLetterPublishers(disabled, nil))

	pub, err := amqpdlq.New(amqpdlq.Options{
		Config: config.DeadLetterConfig{Enabled: true, URL: "amqp://localhost:5672/", Exchange: "dlx"},
		Logger: discardLogger(),
	})
	require.NoError(t, err)
	assert.Len(t, deadLetterPublishers(disabled, pub), 1)
}

func TestBuildDeadLetterPublisher_Disabled(t *testing.T) {
	pub, err := buildDeadLetterPublisher(config.DeadLetterConfig{}, discardLogger())

	require.NoError(t, err)
	assert.Nil(t, pub)
}

func TestObservabilityMetricsSink_NilStaysNil(t *testing.T) {
	assert.Nil(t, ObservabilityContainer{}.metricsSink())
}

func TestBuildHTTPHandler_TriggerWithoutServicesIsNotRouted(t *testing.T) {
	handler := BuildHTTPHandler(&HTTPServerConfig{
		Config: &config.AppConfig{Trigger: config.TriggerConfig{CronSecret: "s", AllowedOrigin: "*"}},
		Logger: discardLogger(),
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/dispatch/run", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}
