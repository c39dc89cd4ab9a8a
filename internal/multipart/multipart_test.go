package multipart

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildBody(boundary string, parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString("--")
		b.WriteString(boundary)
		b.WriteString("\r\n")
		b.WriteString(p)
	}
	b.WriteString("--")
	b.WriteString(boundary)
	b.WriteString("--\r\n")
	return b.String()
}

func TestScannerYieldsFormParameter(t *testing.T) {
	boundary := "X-BOUNDARY"
	body := buildBody(boundary,
		"Content-Disposition: form-data; name=\"field1\"\r\n\r\nvalue1\r\n",
	)
	s := NewScanner(strings.NewReader(body), boundary)

	part, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, "field1", part.FieldName)
	require.Equal(t, "", part.Filename)

	data, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	require.Equal(t, "value1", string(data))

	_, err = s.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestScannerYieldsMultipleParts(t *testing.T) {
	boundary := "sep"
	body := buildBody(boundary,
		"Content-Disposition: form-data; name=\"a\"\r\n\r\n111\r\n",
		"Content-Disposition: form-data; name=\"b\"\r\n\r\n222\r\n",
	)
	s := NewScanner(strings.NewReader(body), boundary)

	part1, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, "a", part1.FieldName)

	part2, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, "b", part2.FieldName)
	data, err := io.ReadAll(part2.Body)
	require.NoError(t, err)
	require.Equal(t, "222", string(data))

	_, err = s.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestScannerSkipsUnreadPartBeforeNext(t *testing.T) {
	boundary := "sep"
	body := buildBody(boundary,
		"Content-Disposition: form-data; name=\"a\"\r\n\r\nunread bytes here\r\n",
		"Content-Disposition: form-data; name=\"b\"\r\n\r\nvalue\r\n",
	)
	s := NewScanner(strings.NewReader(body), boundary)

	_, err := s.Next()
	require.NoError(t, err)
	// Deliberately do not read part1.Body.

	part2, err := s.Next()
	require.NoError(t, err)
	data, err := io.ReadAll(part2.Body)
	require.NoError(t, err)
	require.Equal(t, "value", string(data))
}

func TestScannerFileUploadPart(t *testing.T) {
	boundary := "sep"
	body := buildBody(boundary,
		"Content-Disposition: form-data; name=\"upload\"; filename=\"a.txt\"\r\n"+
			"Content-Type: text/plain\r\n\r\nfile contents\r\n",
	)
	s := NewScanner(strings.NewReader(body), boundary)

	part, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, "upload", part.FieldName)
	require.Equal(t, "a.txt", part.Filename)
	require.Equal(t, "text/plain", part.Headers.Get("Content-Type"))
}

func TestScannerFailsWithoutTerminator(t *testing.T) {
	boundary := "sep"
	body := "--" + boundary + "\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\nvalue"
	s := NewScanner(strings.NewReader(body), boundary)

	part, err := s.Next()
	require.NoError(t, err)
	_, err = io.ReadAll(part.Body)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestProcessRoutesParametersAndStagesFiles(t *testing.T) {
	dir := t.TempDir()
	boundary := "sep"
	body := buildBody(boundary,
		"Content-Disposition: form-data; name=\"a\"\r\n\r\nvalueA\r\n",
		"Content-Disposition: form-data; name=\"upload\"; filename=\"f.bin\"\r\n"+
			"Content-Type: application/octet-stream\r\n\r\nbinarydata\r\n",
	)

	result, err := Process(strings.NewReader(body), boundary, Options{
		Policy:  PolicyAllow,
		TempDir: dir,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"valueA"}, result.Parameters["a"])
	require.Len(t, result.Files, 1)
	require.Equal(t, "f.bin", result.Files[0].Filename)
	require.Equal(t, int64(len("binarydata")), result.Files[0].Size)

	staged, err := os.ReadFile(result.Files[0].Path)
	require.NoError(t, err)
	require.Equal(t, "binarydata", string(staged))
	_ = os.Remove(result.Files[0].Path)
}

func TestProcessRejectPolicy(t *testing.T) {
	boundary := "sep"
	body := buildBody(boundary,
		"Content-Disposition: form-data; name=\"upload\"; filename=\"f.bin\"\r\n\r\ndata\r\n",
	)
	_, err := Process(strings.NewReader(body), boundary, Options{Policy: PolicyReject})
	require.ErrorIs(t, err, Rejected)
}

func TestProcessIgnorePolicyDiscardsBytes(t *testing.T) {
	boundary := "sep"
	body := buildBody(boundary,
		"Content-Disposition: form-data; name=\"upload\"; filename=\"f.bin\"\r\n\r\ndiscarded\r\n",
		"Content-Disposition: form-data; name=\"kept\"\r\n\r\nsurvives\r\n",
	)
	result, err := Process(strings.NewReader(body), boundary, Options{Policy: PolicyIgnore})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	require.Equal(t, "", result.Files[0].Path)
	require.Equal(t, []string{"survives"}, result.Parameters["kept"])
}

func TestProcessMaxFileSizeExceeded(t *testing.T) {
	dir := t.TempDir()
	boundary := "sep"
	body := buildBody(boundary,
		"Content-Disposition: form-data; name=\"upload\"; filename=\"big.bin\"\r\n\r\n"+
			strings.Repeat("x", 100)+"\r\n",
	)
	_, err := Process(strings.NewReader(body), boundary, Options{
		Policy:      PolicyAllow,
		TempDir:     dir,
		MaxFileSize: 10,
	})
	var tooLarge *ContentTooLarge
	require.ErrorAs(t, err, &tooLarge)
	require.Equal(t, int64(10), tooLarge.Limit)
}

func TestResultCleanupRemovesStagedFiles(t *testing.T) {
	dir := t.TempDir()
	boundary := "sep"
	body := buildBody(boundary,
		"Content-Disposition: form-data; name=\"upload\"; filename=\"f.bin\"\r\n\r\ndata\r\n",
	)
	result, err := Process(strings.NewReader(body), boundary, Options{
		Policy:               PolicyAllow,
		TempDir:              dir,
		DeleteTemporaryFiles: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)

	path := result.Files[0].Path
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	result.Cleanup()
	_, statErr = os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}
