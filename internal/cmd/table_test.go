package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

var rowColumns = []Column[row]{
	{Header: "NAME", DataFunc: func(r row) (string, error) { return r.Name, nil }},
	{Header: "TYPE", DataFunc: func(r row) (string, error) { return r.Type, nil }},
}

func TestRenderTable(t *testing.T) {
	header := []string{"NAME", "TYPE"}
	data := [][]string{{"fw-01", "single_fw"}, {"ips-01", "single_ips"}}

	tests := []struct {
		format   string
		contains []string
		missing  []string
	}{
		{format: "table", contains: []string{"NAME", "fw-01", "single_ips", "+"}},
		{format: "compact", contains: []string{"NAME", "fw-01"}, missing: []string{"+"}},
		{format: "table,noheader", contains: []string{"fw-01"}, missing: []string{"NAME"}},
		{format: "csv", contains: []string{"fw-01,single_fw\n"}, missing: []string{"NAME"}},
		{format: "csv,header", contains: []string{"NAME,TYPE\n", "ips-01,single_ips\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			buf := &bytes.Buffer{}
			require.NoError(t, RenderTable(buf, tt.format, header, data, nil))

			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}

			for _, s := range tt.missing {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}

	err := RenderTable(&bytes.Buffer{}, "xml", header, data, nil)
	assert.Error(t, err)
}

func TestRenderSlice(t *testing.T) {
	entries := []row{{Name: "fw-01", Type: "single_fw"}}

	buf := &bytes.Buffer{}
	require.NoError(t, RenderSlice(buf, TableFormatJSON, rowColumns, entries))
	assert.JSONEq(t, `[{"name": "fw-01", "type": "single_fw"}]`, buf.String())

	buf.Reset()
	require.NoError(t, RenderSlice(buf, TableFormatYAML, rowColumns, entries))
	assert.Equal(t, "- name: fw-01\n  type: single_fw\n", buf.String())

	buf.Reset()
	require.NoError(t, RenderSlice(buf, "csv,header", rowColumns, entries))
	assert.Equal(t, "NAME,TYPE\nfw-01,single_fw\n", buf.String())

	failing := []Column[row]{{Header: "STATE", DataFunc: func(row) (string, error) { return "", errors.New("Boom") }}}
	err := RenderSlice(&bytes.Buffer{}, TableFormatTable, failing, entries)
	assert.ErrorContains(t, err, "STATE")
}

func TestValidateFlagFormatForListOutput(t *testing.T) {
	assert.NoError(t, ValidateFlagFormatForListOutput("table"))
	assert.NoError(t, ValidateFlagFormatForListOutput("csv,header"))
	assert.NoError(t, ValidateFlagFormatForListOutput("compact,noheader"))
	assert.Error(t, ValidateFlagFormatForListOutput("csv,colour"))
	assert.Error(t, ValidateFlagFormatForListOutput("xml"))
}
