package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"Sheet", "Row", "Message"},
		Rows: []map[string]string{
			{"Sheet": "TeamA", "Row": "3", "Message": "column \"dob\": value is empty"},
			{"Sheet": "TeamB", "Row": "5", "Message": "unrecognised date"},
		},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	require.Len(t, lines, 3)
	require.Equal(t, "Sheet,Row,Message", string(bytes.TrimSpace(lines[0])))
	require.Contains(t, string(lines[1]), "TeamA")
}

func TestCSVRenderFailures(t *testing.T) {
	out, err := NewCSVExporter().RenderFailures([]FailureRecord{
		{Sheet: "TeamA", Row: 3, Player: "Alice Example", Code: "ROW_VALIDATION", Message: "column \"dob\": value is empty"},
	})
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	require.Len(t, lines, 2)
	require.Equal(t, "Sheet,Row,Player,Code,Message", string(bytes.TrimSpace(lines[0])))
	require.Contains(t, string(lines[1]), "TeamA,3,Alice Example,ROW_VALIDATION")
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	out, err := NewPDFExporter().Render(Summary{
		Title: "Form Generation Report",
		Stats: [][2]string{{"Rows read", "10"}, {"Forms generated", "20"}},
		Table: Dataset{
			Headers: []string{"Sheet", "Row", "Message"},
			Rows:    []map[string]string{{"Sheet": "TeamA", "Row": "3", "Message": "bad date"}},
		},
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFRenderWithoutTable(t *testing.T) {
	out, err := NewPDFExporter().Render(Summary{Title: "Report", Stats: [][2]string{{"Failures", "0"}}})
	require.NoError(t, err)
	require.NotEmpty(t, out)
}
