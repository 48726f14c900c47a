package aria2_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mediapipeline/internal/downloader/aria2"
	"mediapipeline/internal/domain/ports"
)

func fakeDownloader(t *testing.T, resp string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, resp)
	}))
}

func TestClientAdd(t *testing.T) {
	srv := fakeDownloader(t, `{"id":"mediapipeline","jsonrpc":"2.0","result":"2089b05ecca3d829"}`)
	defer srv.Close()

	c := aria2.New(srv.URL, "")
	h, err := c.Add(context.Background(), "magnet:?xt=urn:btih:abc")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if h != "2089b05ecca3d829" {
		t.Errorf("handle: got %q", h)
	}
}

func TestClientStatus(t *testing.T) {
	srv := fakeDownloader(t, `{
		"id":"mediapipeline","jsonrpc":"2.0",
		"result":{
			"gid":"2089b05ecca3d829",
			"status":"active",
			"totalLength":"1073741824",
			"completedLength":"536870912",
			"downloadSpeed":"1048576",
			"dir":"/data/downloads/tt0111161",
			"infoHash":"abc123",
			"files":[{"path":"/data/downloads/tt0111161/movie.mkv","length":"1073741824"}]
		}
	}`)
	defer srv.Close()

	c := aria2.New(srv.URL, "")
	status, err := c.Status(context.Background(), ports.Handle("2089b05ecca3d829"))
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != ports.DownloadActive {
		t.Errorf("Status: got %q", status.Status)
	}
	if status.TotalLength != 1073741824 {
		t.Errorf("TotalLength: got %d", status.TotalLength)
	}
	if status.CompletedLength != 536870912 {
		t.Errorf("CompletedLength: got %d", status.CompletedLength)
	}
	if len(status.Files) != 1 || status.Files[0].Path != "/data/downloads/tt0111161/movie.mkv" {
		t.Fatalf("Files: got %+v", status.Files)
	}
}

func TestClientRPCError(t *testing.T) {
	srv := fakeDownloader(t, `{"id":"mediapipeline","jsonrpc":"2.0","error":{"code":1,"message":"GID not found"}}`)
	defer srv.Close()

	c := aria2.New(srv.URL, "")
	_, err := c.Status(context.Background(), ports.Handle("missing"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestClientSecretTokenPrepended(t *testing.T) {
	var seenBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		seenBody = string(buf)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"mediapipeline","jsonrpc":"2.0","result":"ok"}`)
	}))
	defer srv.Close()

	c := aria2.New(srv.URL, "s3cr3t")
	if _, err := c.Add(context.Background(), "magnet:?xt=urn:btih:abc"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !strings.Contains(seenBody, "token:s3cr3t") {
		t.Errorf("expected secret token in request body, got %q", seenBody)
	}
}
