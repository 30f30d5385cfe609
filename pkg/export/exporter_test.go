package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Student", "Class", "Status"},
		Rows: []map[string]string{
			{"Student": "Ana", "Class": "Algebra I", "Status": "CONFIRMED"},
			{"Student": "Budi", "Class": "Algebra I", "Status": "PENDING"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student,Class,Status", lines[0])
	assert.Contains(t, lines[1], "Ana")
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "bookings")
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset(), "Bookings")
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
}

func TestXLSXExporterRequiresHeaders(t *testing.T) {
	_, err := NewXLSXExporter().Render(Dataset{}, "")
	require.Error(t, err)
}
