package tmpl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

	tests := []struct {
		name    string
		tmpl    string
		data    any
		want    string
		wantErr bool
	}{
		{
			name: "simple substitution",
			tmpl: "reports/{{ .Identity }}.json",
			data: map[string]string{"Identity": "alice"},
			want: "reports/alice.json",
		},
		{
			name: "struct data",
			tmpl: "{{ .Identity }}-{{ .BatchID }}.json",
			data: struct {
				Identity string
				BatchID  string
			}{Identity: "alice", BatchID: "k3x9qa"},
			want: "alice-k3x9qa.json",
		},
		{
			name: "no variables",
			tmpl: "results.json",
			data: nil,
			want: "results.json",
		},
		{
			name:    "missing key errors",
			tmpl:    "{{ .Missing }}",
			data:    map[string]string{"Identity": "alice"},
			wantErr: true,
		},
		{
			name:    "invalid template syntax",
			tmpl:    "{{ .Identity }",
			data:    map[string]string{"Identity": "alice"},
			wantErr: true,
		},
		{
			name: "format time",
			tmpl: `{{ format "2006-01-02" .Date }}.json`,
			data: map[string]any{"Date": at},
			want: "2024-03-09.json",
		},
		{
			name: "slug keeps safe characters",
			tmpl: "{{ .Identity | slug }}",
			data: map[string]string{"Identity": "alice.smith_99"},
			want: "alice.smith_99",
		},
		{
			name: "slug replaces separators",
			tmpl: "out/{{ .Identity | slug }}.json",
			data: map[string]string{"Identity": "../etc/passwd"},
			want: "out/..-etc-passwd.json",
		},
		{
			name: "slug of dot-dot",
			tmpl: "{{ .Identity | slug }}",
			data: map[string]string{"Identity": ".."},
			want: "__",
		},
		{
			name: "slug of empty",
			tmpl: "{{ .Identity | slug }}",
			data: map[string]string{"Identity": ""},
			want: "_",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("{{ .Identity | slug }}-{{ .BatchID }}.json"))
	assert.Error(t, Validate("{{ .Identity "))
	assert.Error(t, Validate("{{ .Identity | nope }}"))
}
