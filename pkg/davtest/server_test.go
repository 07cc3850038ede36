package davtest

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, method, url, body string, header map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestServer_Mkcol(t *testing.T) {
	s := NewServer(t, WithBasePath("dav"))

	resp, _ := do(t, "MKCOL", s.URL()+"a", "", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = do(t, "MKCOL", s.URL()+"a", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = do(t, "MKCOL", s.URL()+"x/y", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	assert.True(t, s.IsDir("a"))
	assert.Equal(t, []string{"MKCOL /a", "MKCOL /a", "MKCOL /x/y"}, func() []string {
		var out []string
		for _, r := range s.Requests() {
			out = append(out, r.String())
		}
		return out
	}())
}

func TestServer_PutGetDelete(t *testing.T) {
	s := NewServer(t)

	resp, _ := do(t, http.MethodPut, s.URL()+"f.txt", "one", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = do(t, http.MethodPut, s.URL()+"f.txt", "two", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodPut, s.URL()+"missing/f.txt", "x", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body := do(t, http.MethodGet, s.URL()+"f.txt", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "two", body)
	assert.Equal(t, s.ETag("f.txt"), resp.Header.Get("ETag"))

	s.AddFile("d/e/g.txt", []byte("g"))
	resp, _ = do(t, http.MethodDelete, s.URL()+"d", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, s.Exists("d/e/g.txt"))

	resp, _ = do(t, http.MethodDelete, s.URL()+"d", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Propfind(t *testing.T) {
	s := NewServer(t, WithBasePath("/remote.php/webdav/"))
	s.AddFile("docs/my file.pdf", []byte("pdf"))
	s.AddDir("docs/sub")

	resp, body := do(t, "PROPFIND", s.URL()+"docs", "", map[string]string{"Depth": "1"})
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)

	assert.Equal(t, 3, strings.Count(body, "<d:response>"))
	assert.Contains(t, body, "<d:href>/remote.php/webdav/docs/</d:href>")
	assert.Contains(t, body, "<d:href>/remote.php/webdav/docs/my%20file.pdf</d:href>")
	assert.Contains(t, body, "<d:href>/remote.php/webdav/docs/sub/</d:href>")
	assert.Contains(t, body, "<d:getcontentlength>3</d:getcontentlength>")

	resp, body = do(t, "PROPFIND", s.URL()+"docs", "", map[string]string{"Depth": "0"})
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	assert.Equal(t, 1, strings.Count(body, "<d:response>"))

	resp, _ = do(t, "PROPFIND", s.URL()+"nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	reqs := s.RequestsFor("PROPFIND")
	require.Len(t, reqs, 3)
	assert.Equal(t, "1", reqs[0].Depth)
	assert.Equal(t, "docs", reqs[0].Path)
}

func TestServer_FailNextQueues(t *testing.T) {
	s := NewServer(t)
	s.FailNext(http.MethodOptions, http.StatusServiceUnavailable)
	s.FailNext(http.MethodOptions, http.StatusUnauthorized)

	resp, _ := do(t, http.MethodOptions, s.URL(), "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp, _ = do(t, http.MethodOptions, s.URL(), "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = do(t, http.MethodOptions, s.URL(), "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, AllowedMethods, resp.Header.Get("Allow"))
}
