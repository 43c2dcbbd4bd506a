package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateVariables_UnmarshalJSON_PreservesOrder(t *testing.T) {
	var vars TemplateVariables
	require.NoError(t, json.Unmarshal([]byte(`{"zeta":"1","alpha":2,"mid":true,"obj":{"a":1},"nil":null}`), &vars))

	assert.Equal(t, TemplateVariables{
		{Name: "zeta", Value: "1"},
		{Name: "alpha", Value: "2"},
		{Name: "mid", Value: "true"},
		{Name: "obj", Value: `{"a":1}`},
		{Name: "nil", Value: ""},
	}, vars)
}

func TestTemplateVariables_UnmarshalJSON_Array(t *testing.T) {
	var vars TemplateVariables
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"b","value":"2"},{"name":"a","value":"1"}]`), &vars))
	assert.Equal(t, TemplateVariables{{Name: "b", Value: "2"}, {Name: "a", Value: "1"}}, vars)
}

func TestTemplateVariables_UnmarshalJSON_Invalid(t *testing.T) {
	var vars TemplateVariables
	assert.Error(t, json.Unmarshal([]byte(`"just a string"`), &vars))
}

func TestTemplateVariables_MarshalJSON(t *testing.T) {
	vars := TemplateVariables{{Name: "b", Value: "2"}, {Name: "a", Value: `q"uote`}}
	b, err := json.Marshal(vars)
	require.NoError(t, err)
	assert.Equal(t, `{"b":"2","a":"q\"uote"}`, string(b))
}

func TestTemplateVariables_With(t *testing.T) {
	var vars TemplateVariables
	vars = vars.With("a", "1").With("b", "2").With("a", "3")
	assert.Equal(t, TemplateVariables{{Name: "a", Value: "3"}, {Name: "b", Value: "2"}}, vars)

	_, ok := vars.Get("missing")
	assert.False(t, ok)
}

func TestTemplateVariables_Scan(t *testing.T) {
	var vars TemplateVariables
	require.NoError(t, vars.Scan([]byte(`{"x":"y"}`)))
	assert.Equal(t, map[string]string{"x": "y"}, vars.Map())

	require.NoError(t, vars.Scan(nil))
	assert.Nil(t, vars)

	assert.Error(t, vars.Scan(42))
}

func TestParseChannel(t *testing.T) {
	tests := []struct {
		in      string
		want    Channel
		wantErr bool
	}{
		{in: "email", want: ChannelEmail},
		{in: " SMS ", want: ChannelSMS},
		{in: "whatsapp", want: ChannelChat},
		{in: "chat", want: ChannelChat},
		{in: "in-app", want: ChannelInApp},
		{in: "in_app", want: ChannelInApp},
		{in: "fax", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChannel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllChannels_AreValid(t *testing.T) {
	assert.Len(t, AllChannels(), 4)
	for _, c := range AllChannels() {
		assert.True(t, c.Valid())
	}
}
